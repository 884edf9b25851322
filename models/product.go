package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type Product struct {
	ID            int             `gorm:"primary_key" json:"id"`
	TenantId      string          `gorm:"index;not null" json:"tenant_id"`
	Name          string          `gorm:"size:255;not null" json:"name"`
	Sku           string          `gorm:"size:100;index" json:"sku"`
	StockQuantity int             `gorm:"not null;default:0" json:"stock_quantity"`
	Cogs          decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"cogs"`
	Weight        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"weight"`
	// upstream catalog payload as synced (attributes, variations)
	RawAttributes datatypes.JSON     `json:"raw_attributes,omitempty"`
	Variations    []ProductVariation `gorm:"foreignKey:ProductId" json:"variations,omitempty"`
	CreatedAt     time.Time          `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time          `gorm:"autoUpdateTime" json:"updated_at"`
}

type InternalProduct struct {
	ID            int             `gorm:"primary_key" json:"id"`
	TenantId      string          `gorm:"index;not null" json:"tenant_id"`
	Name          string          `gorm:"size:255;not null" json:"name"`
	Sku           string          `gorm:"size:100" json:"sku"`
	StockQuantity int             `gorm:"not null;default:0" json:"stock_quantity"`
	UnitCost      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unit_cost"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}
