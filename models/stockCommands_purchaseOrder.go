package models

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MerlinStacks/overseek-sub002/config"
	"github.com/MerlinStacks/overseek-sub002/utils"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

var tracer = otel.Tracer("github.com/MerlinStacks/overseek-sub002/models")

type StockMutationError struct {
	DetailId  int    `json:"detail_id"`
	ProductId int    `json:"product_id"`
	Sku       string `json:"sku"`
	Message   string `json:"message"`
}

type StockMutationResult struct {
	UpdatedCount      int                  `json:"updated_count"`
	UpdatedProductIds []int                `json:"updated_product_ids"`
	Errors            []StockMutationError `json:"errors"`
}

// stockTarget is where a purchase order line lands: a variation row or the product itself.
type stockTarget struct {
	productId      int
	variationRowId int
}

// ReceiveStock increments stock for every line of the order. Item failures are collected
// in the result; the remaining lines still apply. The caller guarantees the order is not
// already received and triggers reindexing of UpdatedProductIds.
func ReceiveStock(tx *gorm.DB, tenantId string, purchaseOrderId int) (*StockMutationResult, error) {
	return applyPurchaseOrderStock(tx, tenantId, purchaseOrderId, 1)
}

// UnreceiveStock is the exact inverse of ReceiveStock: same target resolution, negated
// quantities, no clamping.
func UnreceiveStock(tx *gorm.DB, tenantId string, purchaseOrderId int) (*StockMutationResult, error) {
	return applyPurchaseOrderStock(tx, tenantId, purchaseOrderId, -1)
}

func applyPurchaseOrderStock(tx *gorm.DB, tenantId string, purchaseOrderId int, sign int) (*StockMutationResult, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx is nil")
	}
	if tenantId == "" {
		return nil, utils.ErrTenantRequired
	}
	ctx := tx.Statement.Context
	if ctx == nil {
		ctx = context.Background()
	}
	op := "stock.receive"
	if sign < 0 {
		op = "stock.unreceive"
	}
	ctx, span := tracer.Start(ctx, op, trace.WithAttributes(
		attribute.String("tenant_id", tenantId),
		attribute.Int("purchase_order_id", purchaseOrderId),
	))
	defer span.End()
	tx = tx.WithContext(ctx)

	po, err := FetchPurchaseOrder(ctx, tx, tenantId, purchaseOrderId)
	if err != nil {
		return nil, err
	}

	productIds := make([]int, 0, len(po.Details))
	for _, d := range po.Details {
		productIds = append(productIds, d.ProductId)
	}
	products, err := utils.FetchModelsByIds(ctx, tx, tenantId, productIds, func(p *Product) int { return p.ID })
	if err != nil {
		return nil, err
	}
	variations, err := LoadVariationsByProduct(ctx, tx, tenantId, productIds)
	if err != nil {
		return nil, err
	}

	logger := config.GetLogger()
	result := &StockMutationResult{UpdatedProductIds: []int{}, Errors: []StockMutationError{}}
	var touched []int
	for i := range po.Details {
		d := &po.Details[i]
		if d.DetailQty == 0 {
			continue
		}
		target, err := resolveStockTarget(d, products, variations)
		if err == nil {
			err = writeStockDelta(tx, tenantId, target, sign*d.DetailQty)
		}
		if err != nil {
			result.Errors = append(result.Errors, StockMutationError{
				DetailId:  d.ID,
				ProductId: d.ProductId,
				Sku:       d.Sku,
				Message:   err.Error(),
			})
			logger.WithFields(logrus.Fields{
				"tenant_id":         tenantId,
				"purchase_order_id": po.ID,
				"detail_id":         d.ID,
				"product_id":        d.ProductId,
				"sku":               d.Sku,
				"error":             err.Error(),
			}).Warn(op + ".item_failed")
			continue
		}
		result.UpdatedCount++
		touched = append(touched, target.productId)
	}

	touched = utils.SortedUnique(touched)
	if len(touched) > 0 {
		parents, err := BomParentProductIds(ctx, tx, tenantId, touched)
		if err != nil {
			return nil, err
		}
		touched = utils.SortedUnique(append(touched, parents...))
	}
	result.UpdatedProductIds = touched

	span.SetAttributes(
		attribute.Int("updated_count", result.UpdatedCount),
		attribute.Int("error_count", len(result.Errors)),
	)
	return result, nil
}

// resolveStockTarget: explicit variation link, else sku match among the product's
// variations, else the product itself.
func resolveStockTarget(d *PurchaseOrderDetail, products map[int]*Product, variations map[int][]*ProductVariation) (stockTarget, error) {
	if d.VariationId != nil && *d.VariationId > 0 {
		v := findVariation(variations[d.ProductId], *d.VariationId)
		if v == nil {
			return stockTarget{}, fmt.Errorf("variation %d of product %d not found", *d.VariationId, d.ProductId)
		}
		return stockTarget{productId: d.ProductId, variationRowId: v.ID}, nil
	}
	if sku := strings.TrimSpace(d.Sku); sku != "" {
		if v := findVariationBySku(variations[d.ProductId], sku); v != nil {
			return stockTarget{productId: d.ProductId, variationRowId: v.ID}, nil
		}
	}
	if products[d.ProductId] == nil {
		return stockTarget{}, fmt.Errorf("product %d not found", d.ProductId)
	}
	return stockTarget{productId: d.ProductId}, nil
}

// writeStockDelta runs in its own savepoint so a failed line leaves the others intact.
func writeStockDelta(tx *gorm.DB, tenantId string, target stockTarget, delta int) error {
	return tx.Transaction(func(itx *gorm.DB) error {
		var res *gorm.DB
		if target.variationRowId > 0 {
			res = itx.Model(&ProductVariation{}).
				Where("tenant_id = ? AND id = ?", tenantId, target.variationRowId).
				Update("stock_quantity", gorm.Expr("stock_quantity + ?", delta))
		} else {
			res = itx.Model(&Product{}).
				Where("tenant_id = ? AND id = ?", tenantId, target.productId).
				Update("stock_quantity", gorm.Expr("stock_quantity + ?", delta))
		}
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errors.New("stock target no longer exists")
		}
		return nil
	})
}

// BomParentProductIds returns owners of BOMs that consume any of the given products.
func BomParentProductIds(ctx context.Context, tx *gorm.DB, tenantId string, productIds []int) ([]int, error) {
	if len(productIds) == 0 {
		return nil, nil
	}
	var ids []int
	err := tx.WithContext(ctx).Model(&BOM{}).
		Joins("JOIN bom_items ON bom_items.bom_id = boms.id").
		Where("boms.tenant_id = ? AND bom_items.child_product_id IN ?", tenantId, productIds).
		Distinct().
		Pluck("boms.product_id", &ids).Error
	return ids, err
}

// ApplyPurchaseOrderStockForStatusTransition applies stock changes for a status transition.
//
// * -> RECEIVED : receive
// RECEIVED -> * : unreceive
func ApplyPurchaseOrderStockForStatusTransition(tx *gorm.DB, tenantId string, purchaseOrderId int, oldStatus PurchaseOrderStatus, newStatus PurchaseOrderStatus) (*StockMutationResult, error) {
	empty := &StockMutationResult{UpdatedProductIds: []int{}, Errors: []StockMutationError{}}
	if oldStatus == newStatus {
		return empty, nil
	}
	switch {
	case newStatus == PurchaseOrderStatusReceived:
		return ReceiveStock(tx, tenantId, purchaseOrderId)
	case oldStatus == PurchaseOrderStatusReceived:
		return UnreceiveStock(tx, tenantId, purchaseOrderId)
	}
	return empty, nil
}

// TransitionPurchaseOrderStatus changes status and applies the matching stock effect within tx.
// The conditional status write makes a concurrent transition fail instead of applying twice.
func TransitionPurchaseOrderStatus(ctx context.Context, tx *gorm.DB, tenantId string, purchaseOrderId int, newStatus PurchaseOrderStatus) (*StockMutationResult, error) {
	if !newStatus.IsValid() {
		return nil, ErrInvalidPurchaseOrderStatus
	}
	po, err := FetchPurchaseOrder(ctx, tx, tenantId, purchaseOrderId)
	if err != nil {
		return nil, err
	}
	oldStatus := po.CurrentStatus
	if oldStatus == newStatus {
		return &StockMutationResult{UpdatedProductIds: []int{}, Errors: []StockMutationError{}}, nil
	}
	if err := SetPurchaseOrderStatus(ctx, tx, tenantId, po.ID, oldStatus, newStatus); err != nil {
		return nil, err
	}
	return ApplyPurchaseOrderStockForStatusTransition(tx.WithContext(ctx), tenantId, po.ID, oldStatus, newStatus)
}
