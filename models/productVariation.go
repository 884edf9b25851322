package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProductVariation is a narrower SKU of a Product, keyed by (ProductId, VariationId)
// where VariationId is the upstream ordinal.
type ProductVariation struct {
	ID            int             `gorm:"primary_key" json:"id"`
	TenantId      string          `gorm:"index;not null;uniqueIndex:idx_variation_owner,priority:1" json:"tenant_id"`
	ProductId     int             `gorm:"not null;uniqueIndex:idx_variation_owner,priority:2" json:"product_id"`
	VariationId   int             `gorm:"not null;uniqueIndex:idx_variation_owner,priority:3" json:"variation_id"`
	Name          string          `gorm:"size:255" json:"name"`
	Sku           string          `gorm:"size:100;index" json:"sku"`
	StockQuantity int             `gorm:"not null;default:0" json:"stock_quantity"`
	Cogs          decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"cogs"`
	Weight        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"weight"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func findVariation(variations []*ProductVariation, variationId int) *ProductVariation {
	for _, v := range variations {
		if v.VariationId == variationId {
			return v
		}
	}
	return nil
}

// lowest row id wins when several variations share a sku
func findVariationBySku(variations []*ProductVariation, sku string) *ProductVariation {
	var found *ProductVariation
	for _, v := range variations {
		if v.Sku == "" || v.Sku != sku {
			continue
		}
		if found == nil || v.ID < found.ID {
			found = v
		}
	}
	return found
}
