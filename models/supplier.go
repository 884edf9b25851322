package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Supplier struct {
	ID        int            `gorm:"primary_key" json:"id"`
	TenantId  string         `gorm:"index;not null" json:"tenant_id"`
	Name      string         `gorm:"size:255;not null" json:"name"`
	Items     []SupplierItem `gorm:"foreignKey:SupplierId" json:"items,omitempty"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

type SupplierItem struct {
	ID           int             `gorm:"primary_key" json:"id"`
	TenantId     string          `gorm:"index;not null" json:"tenant_id"`
	SupplierId   int             `gorm:"index;not null" json:"supplier_id"`
	Name         string          `gorm:"size:255;not null" json:"name"`
	Sku          string          `gorm:"size:100" json:"sku"`
	UnitCost     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unit_cost"`
	AvailableQty int             `gorm:"not null;default:0" json:"available_qty"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}
