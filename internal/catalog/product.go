package catalog

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/bakeshop-backend/internal/pricing"
	"github.com/angelmondragon/bakeshop-backend/pkg/db/models"
)

// Product is the read-only view of a listing the pricing core works with.
type Product struct {
	ID                 uuid.UUID           `json:"id"`
	Name               string              `json:"name"`
	Description        string              `json:"description,omitempty"`
	BasePrice          decimal.Decimal     `json:"base_price"`
	HasChocolateOption bool                `json:"has_chocolate_option"`
	Rules              []pricing.PriceRule `json:"rules"`
	MinQty             int                 `json:"min_qty"`
}

func toProduct(row models.Product) Product {
	product := Product{
		ID:                 row.ID,
		Name:               row.Name,
		BasePrice:          row.BasePrice,
		HasChocolateOption: row.HasChocolateOption,
		Rules:              toRules(row.PriceRules),
	}
	if row.Description != nil {
		product.Description = *row.Description
	}
	return product
}

func toRules(rows []models.PriceRule) []pricing.PriceRule {
	if len(rows) == 0 {
		return nil
	}
	rules := make([]pricing.PriceRule, 0, len(rows))
	for _, row := range rows {
		rule := pricing.PriceRule{MinQty: row.MinQty}
		if row.MaxQty != nil {
			maxQty := *row.MaxQty
			rule.MaxQty = &maxQty
		}
		if row.FlatPrice.Valid {
			price := row.FlatPrice.Decimal
			rule.FlatPrice = &price
		}
		if row.ExtraPerUnit.Valid {
			extra := row.ExtraPerUnit.Decimal
			rule.ExtraPerUnit = &extra
		}
		rules = append(rules, rule)
	}
	return rules
}
