package models

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MerlinStacks/overseek-sub002/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var ErrPurchaseOrderStatusConflict = errors.New("purchase order status changed concurrently")

type PurchaseOrder struct {
	ID            int                   `gorm:"primary_key" json:"id"`
	TenantId      string                `gorm:"index;not null" json:"tenant_id"`
	SupplierId    int                   `gorm:"index" json:"supplier_id"`
	OrderNumber   string                `gorm:"size:100;not null" json:"order_number"`
	CurrentStatus PurchaseOrderStatus   `gorm:"size:20;index;not null" json:"current_status"`
	ReceivedAt    *time.Time            `json:"received_at"`
	Details       []PurchaseOrderDetail `json:"purchase_order_details"`
	CreatedAt     time.Time             `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time             `gorm:"autoUpdateTime" json:"updated_at"`
}

type PurchaseOrderDetail struct {
	ID              int    `gorm:"primary_key" json:"id"`
	TenantId        string `gorm:"index;not null" json:"tenant_id"`
	PurchaseOrderId int    `gorm:"index;not null" json:"purchase_order_id"`
	ProductId       int    `gorm:"index;not null" json:"product_id"`
	// upstream variation ordinal; nil until resolved
	VariationId    *int            `json:"variation_id"`
	Sku            string          `gorm:"size:100" json:"sku"`
	Name           string          `gorm:"size:255" json:"name"`
	DetailQty      int             `gorm:"not null;default:0" json:"detail_qty"`
	DetailUnitCost decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"detail_unit_cost"`
}

type NewPurchaseOrder struct {
	SupplierId    int                      `json:"supplier_id" validate:"gte=0"`
	OrderNumber   string                   `json:"order_number" validate:"required,max=100"`
	CurrentStatus PurchaseOrderStatus      `json:"current_status"`
	Details       []NewPurchaseOrderDetail `json:"details" validate:"required,min=1,dive"`
}

type NewPurchaseOrderDetail struct {
	ProductId      int             `json:"product_id" validate:"required,gt=0"`
	VariationId    *int            `json:"variation_id" validate:"omitempty,gt=0"`
	Sku            string          `json:"sku" validate:"max=100"`
	Name           string          `json:"name" validate:"max=255"`
	DetailQty      int             `json:"detail_qty" validate:"gt=0"`
	DetailUnitCost decimal.Decimal `json:"detail_unit_cost"`
}

// FetchPurchaseOrder loads the order with details in id order.
func FetchPurchaseOrder(ctx context.Context, tx *gorm.DB, tenantId string, id int) (*PurchaseOrder, error) {
	var po PurchaseOrder
	err := tx.WithContext(ctx).
		Where("tenant_id = ?", tenantId).
		Preload("Details", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		First(&po, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrorRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &po, nil
}

// CreatePurchaseOrder always inserts a DRAFT. A requested RECEIVED status is reached
// through the regular transition inside the same transaction, so stock is applied once.
func CreatePurchaseOrder(ctx context.Context, tx *gorm.DB, tenantId string, input *NewPurchaseOrder) (*PurchaseOrder, *StockMutationResult, error) {
	if tenantId == "" {
		return nil, nil, utils.ErrTenantRequired
	}
	if err := utils.ValidateStruct(input); err != nil {
		return nil, nil, err
	}
	requestedStatus := input.CurrentStatus
	if requestedStatus == "" {
		requestedStatus = PurchaseOrderStatusDraft
	}
	if !requestedStatus.IsValid() {
		return nil, nil, ErrInvalidPurchaseOrderStatus
	}

	po := PurchaseOrder{
		TenantId:      tenantId,
		SupplierId:    input.SupplierId,
		OrderNumber:   strings.TrimSpace(input.OrderNumber),
		CurrentStatus: PurchaseOrderStatusDraft,
	}
	for _, d := range input.Details {
		po.Details = append(po.Details, PurchaseOrderDetail{
			TenantId:       tenantId,
			ProductId:      d.ProductId,
			VariationId:    d.VariationId,
			Sku:            strings.TrimSpace(d.Sku),
			Name:           d.Name,
			DetailQty:      d.DetailQty,
			DetailUnitCost: d.DetailUnitCost,
		})
	}
	if err := tx.WithContext(ctx).Create(&po).Error; err != nil {
		return nil, nil, err
	}

	if requestedStatus == PurchaseOrderStatusDraft {
		return &po, &StockMutationResult{UpdatedProductIds: []int{}, Errors: []StockMutationError{}}, nil
	}
	result, err := TransitionPurchaseOrderStatus(ctx, tx, tenantId, po.ID, requestedStatus)
	if err != nil {
		return nil, nil, err
	}
	reloaded, err := FetchPurchaseOrder(ctx, tx, tenantId, po.ID)
	if err != nil {
		return nil, nil, err
	}
	return reloaded, result, nil
}

// SetPurchaseOrderStatus moves from -> to only if the row still has status from.
// Moving to RECEIVED stamps received_at.
func SetPurchaseOrderStatus(ctx context.Context, tx *gorm.DB, tenantId string, id int, from PurchaseOrderStatus, to PurchaseOrderStatus) error {
	updates := map[string]interface{}{"current_status": to}
	if to == PurchaseOrderStatusReceived {
		updates["received_at"] = time.Now().UTC()
	}
	return updatePurchaseOrderStatus(ctx, tx, tenantId, id, from, updates)
}

// RestorePurchaseOrderStatus is the conditional move of SetPurchaseOrderStatus without
// touching received_at, for repairs that put an order back where it was.
func RestorePurchaseOrderStatus(ctx context.Context, tx *gorm.DB, tenantId string, id int, from PurchaseOrderStatus, to PurchaseOrderStatus) error {
	return updatePurchaseOrderStatus(ctx, tx, tenantId, id, from, map[string]interface{}{"current_status": to})
}

func updatePurchaseOrderStatus(ctx context.Context, tx *gorm.DB, tenantId string, id int, from PurchaseOrderStatus, updates map[string]interface{}) error {
	res := tx.WithContext(ctx).Model(&PurchaseOrder{}).
		Where("tenant_id = ? AND id = ? AND current_status = ?", tenantId, id, from).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("purchase order %d not in status %s: %w", id, from, ErrPurchaseOrderStatusConflict)
	}
	return nil
}

// BackfillVariationLinks sets variation_id on details that lack one when their sku matches
// exactly one of the product's variations (lowest id on duplicates). Returns the count linked.
func BackfillVariationLinks(ctx context.Context, tx *gorm.DB, tenantId string, po *PurchaseOrder) (int, error) {
	var pending []*PurchaseOrderDetail
	var productIds []int
	for i := range po.Details {
		d := &po.Details[i]
		if d.VariationId != nil || strings.TrimSpace(d.Sku) == "" {
			continue
		}
		pending = append(pending, d)
		productIds = append(productIds, d.ProductId)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	variations, err := LoadVariationsByProduct(ctx, tx, tenantId, productIds)
	if err != nil {
		return 0, err
	}

	linked := 0
	for _, d := range pending {
		v := findVariationBySku(variations[d.ProductId], strings.TrimSpace(d.Sku))
		if v == nil {
			continue
		}
		err := tx.WithContext(ctx).Model(&PurchaseOrderDetail{}).
			Where("tenant_id = ? AND id = ?", tenantId, d.ID).
			Update("variation_id", v.VariationId).Error
		if err != nil {
			return linked, err
		}
		variationId := v.VariationId
		d.VariationId = &variationId
		linked++
	}
	return linked, nil
}

// ListReceivedPurchaseOrderIds returns the tenant's RECEIVED orders in id order.
func ListReceivedPurchaseOrderIds(ctx context.Context, tx *gorm.DB, tenantId string) ([]int, error) {
	var ids []int
	err := tx.WithContext(ctx).Model(&PurchaseOrder{}).
		Where("tenant_id = ? AND current_status = ?", tenantId, PurchaseOrderStatusReceived).
		Order("id").
		Pluck("id", &ids).Error
	return ids, err
}
