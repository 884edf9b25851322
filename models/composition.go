package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MerlinStacks/overseek-sub002/config"
	"github.com/MerlinStacks/overseek-sub002/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Composition is a BOM with its items resolved against live component entities.
type Composition struct {
	BomId       int                `json:"bom_id"`
	TenantId    string             `json:"tenant_id"`
	ProductId   int                `json:"product_id"`
	VariationId int                `json:"variation_id"`
	Items       []*CompositionItem `json:"items"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

type CompositionItem struct {
	BOMItem
	Kind ComponentKind `json:"kind"`
	// false when the referenced entity is missing; such items count as zero stock
	Resolved        bool              `json:"resolved"`
	Label           string            `json:"label"`
	SupplierItem    *SupplierItem     `json:"supplier_item,omitempty"`
	ChildProduct    *Product          `json:"child_product,omitempty"`
	ChildVariation  *ProductVariation `json:"child_variation,omitempty"`
	InternalProduct *InternalProduct  `json:"internal_product,omitempty"`
}

// AvailableStock is the component stock usable for production. Unresolved items have none.
func (it *CompositionItem) AvailableStock() int {
	if !it.Resolved {
		return 0
	}
	switch it.Kind {
	case ComponentKindSupplierItem:
		return it.SupplierItem.AvailableQty
	case ComponentKindInternalProduct:
		return it.InternalProduct.StockQuantity
	case ComponentKindProduct:
		if it.childVariation() > 0 {
			return it.ChildVariation.StockQuantity
		}
		return it.ChildProduct.StockQuantity
	}
	return 0
}

// UnitCost prefers variation cost, then product cost, then supplier item cost.
// A zero cost counts as unset.
func (it *CompositionItem) UnitCost() decimal.Decimal {
	if it.ChildVariation != nil && !it.ChildVariation.Cogs.IsZero() {
		return it.ChildVariation.Cogs
	}
	if it.ChildProduct != nil && !it.ChildProduct.Cogs.IsZero() {
		return it.ChildProduct.Cogs
	}
	if it.SupplierItem != nil && !it.SupplierItem.UnitCost.IsZero() {
		return it.SupplierItem.UnitCost
	}
	if it.InternalProduct != nil {
		return it.InternalProduct.UnitCost
	}
	return decimal.Zero
}

// Cogs = sum(unitCost * quantity * (1 + wasteFactor))
func (c *Composition) Cogs() decimal.Decimal {
	total := decimal.Zero
	if c == nil {
		return total
	}
	for _, it := range c.Items {
		total = total.Add(it.UnitCost().Mul(it.Consumption()))
	}
	return total.Round(4)
}

func GetComposition(ctx context.Context, productId int, variationId int) (*Composition, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, utils.ErrTenantRequired
	}
	db := config.GetDB()
	return getComposition(ctx, db, tenantId, productId, variationId, componentLoaderFor(ctx, db, tenantId))
}

func getComposition(ctx context.Context, tx *gorm.DB, tenantId string, productId int, variationId int, loader ComponentLoader) (*Composition, error) {
	var bom BOM
	err := tx.WithContext(ctx).
		Where("tenant_id = ? AND product_id = ? AND variation_id = ?", tenantId, productId, variationId).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order, id") }).
		First(&bom).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return hydrateComposition(ctx, loader, &bom)
}

// ListCompositions hydrates every BOM of the tenant, ordered by owner.
func ListCompositions(ctx context.Context, tenantId string) ([]*Composition, error) {
	db := config.GetDB()
	var boms []BOM
	err := db.WithContext(ctx).
		Where("tenant_id = ?", tenantId).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order, id") }).
		Order("product_id, variation_id").
		Find(&boms).Error
	if err != nil {
		return nil, err
	}
	loader := componentLoaderFor(ctx, db, tenantId)
	out := make([]*Composition, 0, len(boms))
	for i := range boms {
		comp, err := hydrateComposition(ctx, loader, &boms[i])
		if err != nil {
			return nil, err
		}
		out = append(out, comp)
	}
	return out, nil
}

// hydrateComposition resolves items in one batch per entity type. Missing references
// become unresolved items and are logged, never dropped.
func hydrateComposition(ctx context.Context, loader ComponentLoader, bom *BOM) (*Composition, error) {
	var supplierIds, productIds, internalIds []int
	for _, item := range bom.Items {
		switch item.Kind() {
		case ComponentKindSupplierItem:
			supplierIds = append(supplierIds, *item.SupplierItemId)
		case ComponentKindProduct:
			productIds = append(productIds, *item.ChildProductId)
		case ComponentKindInternalProduct:
			internalIds = append(internalIds, *item.InternalProductId)
		}
	}

	supplierItems, err := loader.SupplierItems(ctx, supplierIds)
	if err != nil {
		return nil, fmt.Errorf("load supplier items: %w", err)
	}
	products, err := loader.Products(ctx, productIds)
	if err != nil {
		return nil, fmt.Errorf("load child products: %w", err)
	}
	variations, err := loader.Variations(ctx, productIds)
	if err != nil {
		return nil, fmt.Errorf("load child variations: %w", err)
	}
	internals, err := loader.InternalProducts(ctx, internalIds)
	if err != nil {
		return nil, fmt.Errorf("load internal products: %w", err)
	}

	logger := config.GetLogger()
	comp := &Composition{
		BomId:       bom.ID,
		TenantId:    bom.TenantId,
		ProductId:   bom.ProductId,
		VariationId: bom.VariationId,
		Items:       make([]*CompositionItem, 0, len(bom.Items)),
		UpdatedAt:   bom.UpdatedAt,
	}
	for _, item := range bom.Items {
		it := &CompositionItem{BOMItem: item, Kind: item.Kind()}
		fields := logrus.Fields{
			"tenant_id":   bom.TenantId,
			"product_id":  bom.ProductId,
			"bom_id":      bom.ID,
			"bom_item_id": item.ID,
		}

		switch it.Kind {
		case ComponentKindSupplierItem:
			if si := supplierItems[*item.SupplierItemId]; si != nil {
				it.SupplierItem = si
				it.Resolved = true
				it.Label = si.Name
			} else {
				fields["supplier_item_id"] = *item.SupplierItemId
				logger.WithFields(fields).Warn("bom.hydrate.supplier_item_missing")
			}

		case ComponentKindProduct:
			childId := *item.ChildProductId
			if childId == bom.ProductId {
				it.Kind = ComponentKindInvalid
				it.Label = "self reference"
				logger.WithFields(fields).Warn("bom.hydrate.self_reference")
				break
			}
			child := products[childId]
			it.ChildProduct = child
			variationId := item.childVariation()
			if variationId == 0 {
				if child != nil {
					it.Resolved = true
					it.Label = child.Name
				} else {
					fields["child_product_id"] = childId
					logger.WithFields(fields).Warn("bom.hydrate.product_missing")
				}
				break
			}
			if v := findVariation(variations[childId], variationId); v != nil && child != nil {
				it.ChildVariation = v
				it.Resolved = true
				it.Label = variationDisplayName(child, v)
				break
			}
			// variation never synced: recover a label from the parent's raw payload
			fields["child_product_id"] = childId
			fields["child_variation_id"] = variationId
			if child != nil {
				if label, ok := VariationLabelFromRaw(child.RawAttributes, variationId); ok {
					it.Label = child.Name + " - " + label
				} else {
					it.Label = fmt.Sprintf("%s - Variation #%d", child.Name, variationId)
				}
			} else {
				it.Label = fmt.Sprintf("Product #%d - Variation #%d", childId, variationId)
			}
			logger.WithFields(fields).Warn("bom.hydrate.variation_missing")

		case ComponentKindInternalProduct:
			if ip := internals[*item.InternalProductId]; ip != nil {
				it.InternalProduct = ip
				it.Resolved = true
				it.Label = ip.Name
			} else {
				fields["internal_product_id"] = *item.InternalProductId
				logger.WithFields(fields).Warn("bom.hydrate.internal_product_missing")
			}

		default:
			it.Label = "invalid reference"
			logger.WithFields(fields).Warn("bom.hydrate.invalid_reference")
		}
		comp.Items = append(comp.Items, it)
	}
	return comp, nil
}

func variationDisplayName(p *Product, v *ProductVariation) string {
	if v.Name != "" {
		return p.Name + " - " + v.Name
	}
	if label, ok := VariationLabelFromRaw(p.RawAttributes, v.VariationId); ok {
		return p.Name + " - " + label
	}
	return p.Name + " - " + v.Sku
}

// SetComposition replaces the whole item list of the (productId, variationId) BOM in one
// transaction. A non-empty list recomputes the owner's COGS; an empty list keeps it.
// Callers serialize concurrent edits of the same BOM.
func SetComposition(ctx context.Context, productId int, variationId int, input NewComposition) (*Composition, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, utils.ErrTenantRequired
	}
	if err := utils.ValidateStruct(input); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCompositionInvalid, err)
	}
	for i, item := range input.Items {
		if err := item.validate(i, productId); err != nil {
			return nil, err
		}
	}

	db := config.GetDB()
	var comp *Composition
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		product, variation, err := loadCompositionOwner(ctx, tx, tenantId, productId, variationId)
		if err != nil {
			return err
		}

		bom, err := upsertBOM(ctx, tx, tenantId, productId, variationId)
		if err != nil {
			return err
		}

		if err := tx.Where("tenant_id = ? AND bom_id = ?", tenantId, bom.ID).Delete(&BOMItem{}).Error; err != nil {
			return err
		}
		items := make([]BOMItem, 0, len(input.Items))
		for i, in := range input.Items {
			items = append(items, in.toBOMItem(tenantId, bom.ID, i))
		}
		if len(items) > 0 {
			if err := tx.Create(&items).Error; err != nil {
				return err
			}
		}
		bom.Items = items

		comp, err = hydrateComposition(ctx, NewComponentLoader(tx, tenantId), bom)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			// manually curated cost survives composition removal
			return nil
		}

		cogs := comp.Cogs()
		if variation != nil {
			return tx.Model(&ProductVariation{}).
				Where("tenant_id = ? AND id = ?", tenantId, variation.ID).
				Update("cogs", cogs).Error
		}
		return tx.Model(&Product{}).
			Where("tenant_id = ? AND id = ?", tenantId, product.ID).
			Update("cogs", cogs).Error
	})
	if err != nil {
		return nil, err
	}
	return comp, nil
}

// DeleteComposition removes the BOM and its items. The owner's COGS is left as is.
func DeleteComposition(ctx context.Context, productId int, variationId int) error {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return utils.ErrTenantRequired
	}
	db := config.GetDB()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var bom BOM
		err := tx.Where("tenant_id = ? AND product_id = ? AND variation_id = ?", tenantId, productId, variationId).First(&bom).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.ErrorRecordNotFound
		}
		if err != nil {
			return err
		}
		if err := tx.Where("tenant_id = ? AND bom_id = ?", tenantId, bom.ID).Delete(&BOMItem{}).Error; err != nil {
			return err
		}
		return tx.Where("tenant_id = ? AND id = ?", tenantId, bom.ID).Delete(&BOM{}).Error
	})
}

// loadCompositionOwner returns the product and, for variationId > 0, the variation.
func loadCompositionOwner(ctx context.Context, tx *gorm.DB, tenantId string, productId int, variationId int) (*Product, *ProductVariation, error) {
	product, err := utils.FetchModel[Product](ctx, tx, tenantId, productId)
	if err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			return nil, nil, fmt.Errorf("product %d: %w", productId, err)
		}
		return nil, nil, err
	}
	if variationId <= 0 {
		return product, nil, nil
	}
	var variation ProductVariation
	err = tx.WithContext(ctx).
		Where("tenant_id = ? AND product_id = ? AND variation_id = ?", tenantId, productId, variationId).
		First(&variation).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, fmt.Errorf("variation %d of product %d: %w", variationId, productId, utils.ErrorRecordNotFound)
	}
	if err != nil {
		return nil, nil, err
	}
	return product, &variation, nil
}

func upsertBOM(ctx context.Context, tx *gorm.DB, tenantId string, productId int, variationId int) (*BOM, error) {
	var bom BOM
	err := tx.WithContext(ctx).
		Where("tenant_id = ? AND product_id = ? AND variation_id = ?", tenantId, productId, variationId).
		First(&bom).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		bom = BOM{TenantId: tenantId, ProductId: productId, VariationId: variationId}
		if err := tx.Create(&bom).Error; err != nil {
			return nil, err
		}
		return &bom, nil
	}
	if err != nil {
		return nil, err
	}
	if err := tx.Model(&bom).Update("updated_at", time.Now()).Error; err != nil {
		return nil, err
	}
	return &bom, nil
}
