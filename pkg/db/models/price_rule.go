package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PriceRule is one quantity tier of a product. Position preserves the order in
// which the catalog defined the rules.
type PriceRule struct {
	ID           uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	ProductID    uuid.UUID           `gorm:"column:product_id;type:uuid;not null"`
	Position     int                 `gorm:"column:position;not null;default:0"`
	MinQty       int                 `gorm:"column:min_qty;not null"`
	MaxQty       *int                `gorm:"column:max_qty"`
	FlatPrice    decimal.NullDecimal `gorm:"column:flat_price;type:numeric(10,2)"`
	ExtraPerUnit decimal.NullDecimal `gorm:"column:extra_per_unit;type:numeric(10,2)"`
	CreatedAt    time.Time           `gorm:"column:created_at;autoCreateTime"`
}

func (PriceRule) TableName() string { return "price_rules" }

func (r *PriceRule) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
