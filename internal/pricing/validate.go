package pricing

import (
	"fmt"

	"go.uber.org/multierr"

	pkgerrors "github.com/angelmondragon/bakeshop-backend/pkg/errors"
)

// ValidateRuleSet reports every integrity problem in a product's rules. A nil
// return means the set can be resolved deterministically.
func ValidateRuleSet(rules []PriceRule) error {
	var err error
	for i, rule := range rules {
		if rule.MinQty < 1 {
			err = multierr.Append(err, fmt.Errorf("rule %d: min_qty %d must be at least 1", i, rule.MinQty))
		}
		if rule.MaxQty != nil && *rule.MaxQty < rule.MinQty {
			err = multierr.Append(err, fmt.Errorf("rule %d: max_qty %d below min_qty %d", i, *rule.MaxQty, rule.MinQty))
		}
		switch {
		case rule.FlatPrice != nil && rule.ExtraPerUnit != nil:
			err = multierr.Append(err, fmt.Errorf("rule %d: both flat_price and extra_per_unit set", i))
		case rule.FlatPrice == nil && rule.ExtraPerUnit == nil:
			err = multierr.Append(err, fmt.Errorf("rule %d: neither flat_price nor extra_per_unit set", i))
		}
		if rule.FlatPrice != nil && rule.FlatPrice.IsNegative() {
			err = multierr.Append(err, fmt.Errorf("rule %d: flat_price is negative", i))
		}
		if rule.ExtraPerUnit != nil && rule.ExtraPerUnit.IsNegative() {
			err = multierr.Append(err, fmt.Errorf("rule %d: extra_per_unit is negative", i))
		}
	}

	sorted := sortedByMinQty(rules)
	err = multierr.Append(err, overlaps("bracket", filter(sorted, PriceRule.IsBracket)))
	err = multierr.Append(err, overlaps("incremental", filter(sorted, PriceRule.IsIncremental)))
	return err
}

// Sanitize returns the rules untouched when they are coherent. Otherwise it
// returns no rules, so the product prices at its base, plus a
// MALFORMED_RULE_SET error describing why.
func Sanitize(rules []PriceRule) ([]PriceRule, error) {
	if err := ValidateRuleSet(rules); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeMalformedRuleSet, err, "malformed price rule set").
			WithDetails(map[string]any{"problems": problemStrings(err)})
	}
	return rules, nil
}

func filter(rules []PriceRule, keep func(PriceRule) bool) []PriceRule {
	out := make([]PriceRule, 0, len(rules))
	for _, rule := range rules {
		if keep(rule) {
			out = append(out, rule)
		}
	}
	return out
}

// overlaps expects rules sorted by MinQty and tracks the furthest covered
// quantity so that non-adjacent overlaps are caught as well.
func overlaps(kind string, sorted []PriceRule) error {
	var err error
	for i := 1; i < len(sorted); i++ {
		prev := sorted[i-1]
		end, bounded := coverageEnd(sorted[:i])
		if !bounded || sorted[i].MinQty <= end {
			err = multierr.Append(err, fmt.Errorf("%s %s overlaps %s", kind, sorted[i], prev))
		}
	}
	return err
}

func coverageEnd(rules []PriceRule) (int, bool) {
	end := 0
	for _, rule := range rules {
		if rule.MaxQty == nil {
			return 0, false
		}
		if *rule.MaxQty > end {
			end = *rule.MaxQty
		}
	}
	return end, true
}

func problemStrings(err error) []string {
	errs := multierr.Errors(err)
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		out = append(out, e.Error())
	}
	return out
}
