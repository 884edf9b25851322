package models

import (
	"context"
	"errors"

	"github.com/MerlinStacks/overseek-sub002/config"
	"github.com/MerlinStacks/overseek-sub002/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ComponentBreakdown struct {
	BomItemId      int             `json:"bom_item_id"`
	Kind           ComponentKind   `json:"kind"`
	Label          string          `json:"label"`
	Resolved       bool            `json:"resolved"`
	AvailableStock int             `json:"available_stock"`
	PerUnit        decimal.Decimal `json:"per_unit"`
	Buildable      int             `json:"buildable"`
	Reason         string          `json:"reason,omitempty"`
}

type EffectiveStockResult struct {
	ProductId          int                  `json:"product_id"`
	VariationId        int                  `json:"variation_id"`
	EffectiveStock     *int                 `json:"effective_stock"`
	CurrentStoredStock *int                 `json:"current_stored_stock"`
	NeedsSync          bool                 `json:"needs_sync"`
	Breakdown          []ComponentBreakdown `json:"breakdown"`
}

// CalculateEffectiveStock returns how many finished units the composition can build
// from current component stock. It is pure; callers decide whether to write it back.
//
// Unresolved or malformed items contribute 0 so the result never overstates buildability.
func CalculateEffectiveStock(comp *Composition, currentStoredStock *int) EffectiveStockResult {
	result := EffectiveStockResult{
		CurrentStoredStock: currentStoredStock,
		Breakdown:          []ComponentBreakdown{},
	}
	if comp == nil {
		return result
	}
	result.ProductId = comp.ProductId
	result.VariationId = comp.VariationId
	if len(comp.Items) == 0 {
		// nothing constrains production
		return result
	}

	effective := -1
	for _, it := range comp.Items {
		b := ComponentBreakdown{
			BomItemId: it.ID,
			Kind:      it.Kind,
			Label:     it.Label,
			Resolved:  it.Resolved,
			PerUnit:   it.Consumption(),
		}
		switch {
		case it.Kind == ComponentKindInvalid:
			b.Reason = "invalid reference"
		case !it.Resolved:
			b.Reason = "unresolved component"
		case !b.PerUnit.IsPositive():
			b.Reason = "non-positive consumption"
		default:
			b.AvailableStock = it.AvailableStock()
			b.Buildable = buildableUnits(b.AvailableStock, b.PerUnit)
		}
		if effective < 0 || b.Buildable < effective {
			effective = b.Buildable
		}
		result.Breakdown = append(result.Breakdown, b)
	}

	result.EffectiveStock = &effective
	result.NeedsSync = currentStoredStock == nil || *currentStoredStock != effective
	return result
}

// buildableUnits = floor(available / perUnit), clamped at 0.
func buildableUnits(available int, perUnit decimal.Decimal) int {
	if available <= 0 || !perUnit.IsPositive() {
		return 0
	}
	avail := decimal.NewFromInt(int64(available))
	q := avail.Div(perUnit).Floor()
	// Div rounds at DivisionPrecision; settle the boundary exactly.
	for q.Mul(perUnit).GreaterThan(avail) {
		q = q.Sub(decimal.NewFromInt(1))
	}
	for q.Add(decimal.NewFromInt(1)).Mul(perUnit).LessThanOrEqual(avail) {
		q = q.Add(decimal.NewFromInt(1))
	}
	if q.IsNegative() {
		return 0
	}
	return int(q.IntPart())
}

// GetEffectiveStock loads the composition and the owner's stored stock and runs the calculator.
// It returns nil when the owner has no BOM.
func GetEffectiveStock(ctx context.Context, productId int, variationId int) (*EffectiveStockResult, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, utils.ErrTenantRequired
	}
	db := config.GetDB()
	return getEffectiveStock(ctx, db, tenantId, productId, variationId, componentLoaderFor(ctx, db, tenantId))
}

func getEffectiveStock(ctx context.Context, tx *gorm.DB, tenantId string, productId int, variationId int, loader ComponentLoader) (*EffectiveStockResult, error) {
	comp, err := getComposition(ctx, tx, tenantId, productId, variationId, loader)
	if err != nil {
		return nil, err
	}
	if comp == nil {
		return nil, nil
	}
	stored, err := storedStock(ctx, tx, tenantId, productId, variationId)
	if err != nil {
		return nil, err
	}
	result := CalculateEffectiveStock(comp, stored)
	return &result, nil
}

// storedStock is nil when the owner row is gone.
func storedStock(ctx context.Context, tx *gorm.DB, tenantId string, productId int, variationId int) (*int, error) {
	var qty int
	var err error
	if variationId > 0 {
		err = tx.WithContext(ctx).Model(&ProductVariation{}).
			Where("tenant_id = ? AND product_id = ? AND variation_id = ?", tenantId, productId, variationId).
			Select("stock_quantity").Take(&qty).Error
	} else {
		err = tx.WithContext(ctx).Model(&Product{}).
			Where("tenant_id = ? AND id = ?", tenantId, productId).
			Select("stock_quantity").Take(&qty).Error
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &qty, nil
}

// ApplyEffectiveStock writes the calculated value into the owner's stock when it diverges.
// Returns whether a write happened.
func ApplyEffectiveStock(ctx context.Context, tx *gorm.DB, tenantId string, result *EffectiveStockResult) (bool, error) {
	if result == nil || result.EffectiveStock == nil || !result.NeedsSync {
		return false, nil
	}
	var res *gorm.DB
	if result.VariationId > 0 {
		res = tx.WithContext(ctx).Model(&ProductVariation{}).
			Where("tenant_id = ? AND product_id = ? AND variation_id = ?", tenantId, result.ProductId, result.VariationId).
			Update("stock_quantity", *result.EffectiveStock)
	} else {
		res = tx.WithContext(ctx).Model(&Product{}).
			Where("tenant_id = ? AND id = ?", tenantId, result.ProductId).
			Update("stock_quantity", *result.EffectiveStock)
	}
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, utils.ErrorRecordNotFound
	}
	return true, nil
}

// SyncEffectiveStock recomputes and, when it diverges, writes back effective stock in one transaction.
func SyncEffectiveStock(ctx context.Context, productId int, variationId int) (*EffectiveStockResult, bool, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, false, utils.ErrTenantRequired
	}
	var (
		result  *EffectiveStockResult
		applied bool
	)
	err := config.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		result, err = getEffectiveStock(ctx, tx, tenantId, productId, variationId, NewComponentLoader(tx, tenantId))
		if err != nil {
			return err
		}
		if result == nil {
			return utils.ErrorRecordNotFound
		}
		applied, err = ApplyEffectiveStock(ctx, tx, tenantId, result)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return result, applied, nil
}
