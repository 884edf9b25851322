package workflow

import (
	"context"
	"time"

	"github.com/MerlinStacks/overseek-sub002/config"
	"github.com/MerlinStacks/overseek-sub002/models"
	"github.com/MerlinStacks/overseek-sub002/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	stockLockType = "stockLock"
	stockLockTTL  = 30 * time.Second
)

// PurchaseOrderWorkflow owns the status precondition for stock mutation and reindexes
// touched products once the transaction has committed.
type PurchaseOrderWorkflow struct {
	DB      *gorm.DB
	Logger  *logrus.Logger
	Indexer Reindexer
}

func NewPurchaseOrderWorkflow(db *gorm.DB, logger *logrus.Logger, indexer Reindexer) *PurchaseOrderWorkflow {
	return &PurchaseOrderWorkflow{DB: db, Logger: workflowLogger(logger), Indexer: reindexerOrNoop(indexer)}
}

func (w *PurchaseOrderWorkflow) Create(ctx context.Context, input *models.NewPurchaseOrder) (*models.PurchaseOrder, *models.StockMutationResult, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, nil, utils.ErrTenantRequired
	}
	release, err := utils.TenantLock(ctx, stockLockType, tenantId, stockLockTTL, "PurchaseOrderWorkflow", "Create")
	if err != nil {
		return nil, nil, err
	}
	defer release()

	var (
		po     *models.PurchaseOrder
		result *models.StockMutationResult
	)
	err = w.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		po, result, err = models.CreatePurchaseOrder(ctx, tx, tenantId, input)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	w.afterCommit(ctx, tenantId, po.ID, result)
	return po, result, nil
}

func (w *PurchaseOrderWorkflow) TransitionStatus(ctx context.Context, purchaseOrderId int, status models.PurchaseOrderStatus) (*models.PurchaseOrder, *models.StockMutationResult, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, nil, utils.ErrTenantRequired
	}
	release, err := utils.TenantLock(ctx, stockLockType, tenantId, stockLockTTL, "PurchaseOrderWorkflow", "TransitionStatus")
	if err != nil {
		return nil, nil, err
	}
	defer release()

	var (
		po     *models.PurchaseOrder
		result *models.StockMutationResult
	)
	err = w.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		result, err = models.TransitionPurchaseOrderStatus(ctx, tx, tenantId, purchaseOrderId, status)
		if err != nil {
			return err
		}
		po, err = models.FetchPurchaseOrder(ctx, tx, tenantId, purchaseOrderId)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	w.afterCommit(ctx, tenantId, po.ID, result)
	return po, result, nil
}

func (w *PurchaseOrderWorkflow) afterCommit(ctx context.Context, tenantId string, purchaseOrderId int, result *models.StockMutationResult) {
	if result == nil {
		return
	}
	if len(result.Errors) > 0 {
		w.Logger.WithFields(logrus.Fields{
			"tenant_id":         tenantId,
			"purchase_order_id": purchaseOrderId,
			"error_count":       len(result.Errors),
		}).Warn("purchase_order.stock.partial")
	}
	if len(result.UpdatedProductIds) > 0 {
		w.Indexer.IndexProducts(utils.DetachedContext(ctx), tenantId, result.UpdatedProductIds)
	}
}

// workflowLogger falls back to the shared logger for zero-value workflows.
func workflowLogger(l *logrus.Logger) *logrus.Logger {
	if l != nil {
		return l
	}
	return config.GetLogger()
}
