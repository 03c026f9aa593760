package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product is a catalog listing with its base unit price.
type Product struct {
	ID                 uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Name               string          `gorm:"column:name;not null"`
	Description        *string         `gorm:"column:description"`
	BasePrice          decimal.Decimal `gorm:"column:base_price;type:numeric(10,2);not null"`
	HasChocolateOption bool            `gorm:"column:has_chocolate_option;not null;default:false"`
	IsActive           bool            `gorm:"column:is_active;not null;default:true"`
	PriceRules         []PriceRule     `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt          time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (Product) TableName() string { return "products" }

// BeforeCreate assigns an id so inserts work on drivers without gen_random_uuid.
func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
