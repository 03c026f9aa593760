package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

const MsgQuantityNotPositive = "quantity must be greater than zero"

// MinimumQuantityMessage is the failure text for quantities below every rule.
func MinimumQuantityMessage(minQty int) string {
	return fmt.Sprintf("minimum quantity is %d units", minQty)
}

// ValidationResult is the outcome of one Resolve call. Price is nil when the
// quantity is valid but no rule matched, meaning the base price applies.
type ValidationResult struct {
	Valid   bool
	Message string
	Price   *decimal.Decimal
}

// PriceOr returns the resolved price or the supplied base price.
func (r ValidationResult) PriceOr(base decimal.Decimal) decimal.Decimal {
	if r.Price != nil {
		return *r.Price
	}
	return base
}

func valid(price *decimal.Decimal) ValidationResult {
	return ValidationResult{Valid: true, Price: price}
}

func invalid(message string) ValidationResult {
	return ValidationResult{Message: message}
}

// Resolve maps a quantity onto a product's rule set. It has no side effects.
//
// Rules are stably sorted by MinQty before matching. A bracket containing the
// quantity always wins; an incremental rule is the fallback and prices the units
// beyond the nearest lower bracket that ends below the quantity.
func Resolve(quantity int, rules []PriceRule) ValidationResult {
	if quantity <= 0 {
		return invalid(MsgQuantityNotPositive)
	}
	if len(rules) == 0 {
		return valid(nil)
	}

	sorted := sortedByMinQty(rules)

	for _, rule := range sorted {
		if rule.IsBracket() && rule.Contains(quantity) {
			price := *rule.FlatPrice
			return valid(&price)
		}
	}

	for _, rule := range sorted {
		if rule.ExtraPerUnit == nil || rule.IsBracket() || rule.MinQty > quantity {
			continue
		}
		price := incrementalPrice(quantity, rule, sorted)
		return valid(&price)
	}

	return invalid(MinimumQuantityMessage(MinimumQuantity(sorted)))
}

// incrementalPrice charges ExtraPerUnit for every unit past the nearest bracket
// that ends below quantity. With no such bracket the base is zero and counting
// starts at MinQty.
func incrementalPrice(quantity int, rule PriceRule, sorted []PriceRule) decimal.Decimal {
	basePrice := decimal.Zero
	baseQty := rule.MinQty - 1

	for i := len(sorted) - 1; i >= 0; i-- {
		candidate := sorted[i]
		if !candidate.IsBracket() || candidate.MaxQty == nil || *candidate.MaxQty >= quantity {
			continue
		}
		basePrice = *candidate.FlatPrice
		baseQty = *candidate.MaxQty
		break
	}

	additional := decimal.NewFromInt(int64(quantity - baseQty))
	return basePrice.Add(additional.Mul(*rule.ExtraPerUnit))
}
