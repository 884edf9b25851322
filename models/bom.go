package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrCompositionInvalid       = errors.New("invalid composition")
	ErrCompositionSelfReference = errors.New("component cannot reference its own product")
)

// BOM is keyed by (ProductId, VariationId). VariationId 0 is the base product.
type BOM struct {
	ID          int       `gorm:"primary_key" json:"id"`
	TenantId    string    `gorm:"not null;uniqueIndex:idx_bom_owner,priority:1" json:"tenant_id"`
	ProductId   int       `gorm:"not null;uniqueIndex:idx_bom_owner,priority:2" json:"product_id"`
	VariationId int       `gorm:"not null;uniqueIndex:idx_bom_owner,priority:3" json:"variation_id"`
	Items       []BOMItem `gorm:"foreignKey:BomId" json:"items"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (BOM) TableName() string { return "boms" }

// BOMItem references exactly one of a supplier item, a sibling product (optionally one of
// its variations) or an internal product.
type BOMItem struct {
	ID                int             `gorm:"primary_key" json:"id"`
	TenantId          string          `gorm:"index;not null" json:"tenant_id"`
	BomId             int             `gorm:"index;not null" json:"bom_id"`
	SupplierItemId    *int            `gorm:"index" json:"supplier_item_id"`
	ChildProductId    *int            `gorm:"index" json:"child_product_id"`
	ChildVariationId  *int            `json:"child_variation_id"`
	InternalProductId *int            `gorm:"index" json:"internal_product_id"`
	Quantity          decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity"`
	WasteFactor       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"waste_factor"`
	SortOrder         int             `gorm:"not null;default:0" json:"sort_order"`
}

func (BOMItem) TableName() string { return "bom_items" }

type NewBOMItem struct {
	SupplierItemId    *int            `json:"supplier_item_id" validate:"omitempty,gt=0"`
	ChildProductId    *int            `json:"child_product_id" validate:"omitempty,gt=0"`
	ChildVariationId  *int            `json:"child_variation_id" validate:"omitempty,gte=0"`
	InternalProductId *int            `json:"internal_product_id" validate:"omitempty,gt=0"`
	Quantity          decimal.Decimal `json:"quantity"`
	WasteFactor       decimal.Decimal `json:"waste_factor"`
}

type NewComposition struct {
	Items []NewBOMItem `json:"items" validate:"max=500,dive"`
}

func setRef(id *int) bool {
	return id != nil && *id > 0
}

// Kind reports which reference is set, or ComponentKindInvalid unless exactly one is.
func (item BOMItem) Kind() ComponentKind {
	return componentKind(item.SupplierItemId, item.ChildProductId, item.ChildVariationId, item.InternalProductId)
}

// per-unit consumption: quantity * (1 + wasteFactor)
func (item BOMItem) Consumption() decimal.Decimal {
	return item.Quantity.Mul(decimal.NewFromInt(1).Add(item.WasteFactor))
}

func (item BOMItem) childVariation() int {
	if setRef(item.ChildVariationId) {
		return *item.ChildVariationId
	}
	return 0
}

func componentKind(supplierItemId, childProductId, childVariationId, internalProductId *int) ComponentKind {
	n := 0
	kind := ComponentKindInvalid
	if setRef(supplierItemId) {
		n++
		kind = ComponentKindSupplierItem
	}
	if setRef(childProductId) {
		n++
		kind = ComponentKindProduct
	}
	if setRef(internalProductId) {
		n++
		kind = ComponentKindInternalProduct
	}
	if n != 1 {
		return ComponentKindInvalid
	}
	// a variation only narrows a child product
	if setRef(childVariationId) && kind != ComponentKindProduct {
		return ComponentKindInvalid
	}
	return kind
}

// validate one input item against its owning product
func (input NewBOMItem) validate(index int, ownerProductId int) error {
	if componentKind(input.SupplierItemId, input.ChildProductId, input.ChildVariationId, input.InternalProductId) == ComponentKindInvalid {
		return fmt.Errorf("%w: item %d must reference exactly one of supplier item, child product or internal product", ErrCompositionInvalid, index)
	}
	if setRef(input.ChildProductId) && *input.ChildProductId == ownerProductId {
		return fmt.Errorf("%w: item %d references product %d", ErrCompositionSelfReference, index, ownerProductId)
	}
	if !input.Quantity.IsPositive() {
		return fmt.Errorf("%w: item %d quantity must be greater than 0", ErrCompositionInvalid, index)
	}
	if input.WasteFactor.IsNegative() {
		return fmt.Errorf("%w: item %d waste factor must not be negative", ErrCompositionInvalid, index)
	}
	return nil
}

func (input NewBOMItem) toBOMItem(tenantId string, bomId int, sortOrder int) BOMItem {
	item := BOMItem{
		TenantId:    tenantId,
		BomId:       bomId,
		Quantity:    input.Quantity,
		WasteFactor: input.WasteFactor,
		SortOrder:   sortOrder,
	}
	if setRef(input.SupplierItemId) {
		item.SupplierItemId = input.SupplierItemId
	}
	if setRef(input.ChildProductId) {
		item.ChildProductId = input.ChildProductId
		if setRef(input.ChildVariationId) {
			item.ChildVariationId = input.ChildVariationId
		}
	}
	if setRef(input.InternalProductId) {
		item.InternalProductId = input.InternalProductId
	}
	return item
}
