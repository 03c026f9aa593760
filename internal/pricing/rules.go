package pricing

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// PriceRule is a single quantity tier belonging to one product. A rule is either
// a bracket (FlatPrice set) or incremental (ExtraPerUnit set), never both.
type PriceRule struct {
	MinQty       int              `json:"min_qty"`
	MaxQty       *int             `json:"max_qty,omitempty"`
	FlatPrice    *decimal.Decimal `json:"flat_price,omitempty"`
	ExtraPerUnit *decimal.Decimal `json:"extra_per_unit,omitempty"`
}

// IsBracket reports whether the rule prices a whole quantity range.
func (r PriceRule) IsBracket() bool {
	return r.FlatPrice != nil
}

// IsIncremental reports whether the rule adds a per-unit cost past MinQty.
func (r PriceRule) IsIncremental() bool {
	return r.ExtraPerUnit != nil && r.FlatPrice == nil
}

// Contains reports whether qty falls inside [MinQty, MaxQty], both ends inclusive.
func (r PriceRule) Contains(qty int) bool {
	if qty < r.MinQty {
		return false
	}
	return r.MaxQty == nil || qty <= *r.MaxQty
}

func (r PriceRule) String() string {
	upper := "∞"
	if r.MaxQty != nil {
		upper = fmt.Sprintf("%d", *r.MaxQty)
	}
	switch {
	case r.IsBracket():
		return fmt.Sprintf("bracket[%d..%s]=%s", r.MinQty, upper, r.FlatPrice.String())
	case r.IsIncremental():
		return fmt.Sprintf("incremental[%d..%s]+%s", r.MinQty, upper, r.ExtraPerUnit.String())
	}
	return fmt.Sprintf("rule[%d..%s]", r.MinQty, upper)
}

// Bracket builds a flat-price rule. A nil max leaves the bracket unbounded.
func Bracket(minQty int, maxQty *int, price decimal.Decimal) PriceRule {
	return PriceRule{MinQty: minQty, MaxQty: maxQty, FlatPrice: &price}
}

// Incremental builds a per-unit rule starting at minQty.
func Incremental(minQty int, extra decimal.Decimal) PriceRule {
	return PriceRule{MinQty: minQty, ExtraPerUnit: &extra}
}

// MinimumQuantity returns the lowest MinQty across rules, or 1 when there are none.
func MinimumQuantity(rules []PriceRule) int {
	if len(rules) == 0 {
		return 1
	}
	lowest := rules[0].MinQty
	for _, rule := range rules[1:] {
		if rule.MinQty < lowest {
			lowest = rule.MinQty
		}
	}
	return lowest
}

// Clone deep-copies a rule set so callers can hold a snapshot that no one else mutates.
func Clone(rules []PriceRule) []PriceRule {
	if rules == nil {
		return nil
	}
	out := make([]PriceRule, len(rules))
	for i, rule := range rules {
		out[i] = PriceRule{MinQty: rule.MinQty}
		if rule.MaxQty != nil {
			maxQty := *rule.MaxQty
			out[i].MaxQty = &maxQty
		}
		if rule.FlatPrice != nil {
			price := *rule.FlatPrice
			out[i].FlatPrice = &price
		}
		if rule.ExtraPerUnit != nil {
			extra := *rule.ExtraPerUnit
			out[i].ExtraPerUnit = &extra
		}
	}
	return out
}

// sortedByMinQty returns a stably sorted copy; ties keep definition order.
func sortedByMinQty(rules []PriceRule) []PriceRule {
	sorted := make([]PriceRule, len(rules))
	copy(sorted, rules)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].MinQty < sorted[j].MinQty
	})
	return sorted
}
