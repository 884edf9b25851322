package workflow

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/MerlinStacks/overseek-sub002/config"
	"github.com/MerlinStacks/overseek-sub002/models"
	"github.com/MerlinStacks/overseek-sub002/utils"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

var tracer = otel.Tracer("github.com/MerlinStacks/overseek-sub002/workflow")

const (
	reprocessLockType = "reprocessLock"
	reprocessLockTTL  = 2 * time.Minute
)

// StockMutator applies purchase order stock inside the caller's transaction.
type StockMutator interface {
	ReceiveStock(tx *gorm.DB, tenantId string, purchaseOrderId int) (*models.StockMutationResult, error)
	UnreceiveStock(tx *gorm.DB, tenantId string, purchaseOrderId int) (*models.StockMutationResult, error)
}

type modelStockMutator struct{}

func (modelStockMutator) ReceiveStock(tx *gorm.DB, tenantId string, purchaseOrderId int) (*models.StockMutationResult, error) {
	return models.ReceiveStock(tx, tenantId, purchaseOrderId)
}

func (modelStockMutator) UnreceiveStock(tx *gorm.DB, tenantId string, purchaseOrderId int) (*models.StockMutationResult, error) {
	return models.UnreceiveStock(tx, tenantId, purchaseOrderId)
}

// Reprocessor re-applies the stock of every received purchase order of a tenant so that
// lines which were booked against the parent product land on their variation.
//
// Each order is unreceived, relinked, demoted, re-received and restored inside one
// transaction. A failed order rolls back and is re-asserted as RECEIVED.
type Reprocessor struct {
	DB           *gorm.DB
	Logger       *logrus.Logger
	Indexer      Reindexer
	Tracker      *ReprocessTracker
	Stock        StockMutator
	UseRedisLock bool
}

func NewReprocessor(db *gorm.DB, logger *logrus.Logger, indexer Reindexer, tracker *ReprocessTracker) *Reprocessor {
	if tracker == nil {
		tracker = NewReprocessTracker(config.ReprocessRetention())
	}
	return &Reprocessor{
		DB:           db,
		Logger:       workflowLogger(logger),
		Indexer:      reindexerOrNoop(indexer),
		Tracker:      tracker,
		Stock:        modelStockMutator{},
		UseRedisLock: config.ReprocessUseRedisLock(),
	}
}

// Start launches a background run and returns its initial snapshot. When the tenant already
// has a run in progress it returns that snapshot with ErrReprocessAlreadyRunning.
func (r *Reprocessor) Start(ctx context.Context, tenantId string) (ReprocessProgress, error) {
	if tenantId == "" {
		return ReprocessProgress{}, utils.ErrTenantRequired
	}
	runId := uuid.NewString()
	snapshot, err := r.Tracker.begin(tenantId, runId)
	if err != nil {
		return snapshot, err
	}

	runCtx := utils.SetRunIdInContext(utils.DetachedContext(ctx), runId)
	go func() {
		entry := r.entry(runCtx, tenantId, runId)
		defer func() {
			if rec := recover(); rec != nil {
				entry.WithFields(logrus.Fields{
					"panic": fmt.Sprint(rec),
					"stack": string(debug.Stack()),
				}).Error("reprocess.panic")
				r.Tracker.finish(tenantId, ReprocessStatusFailed)
			}
		}()
		r.run(runCtx, tenantId, entry)
	}()
	return snapshot, nil
}

// Run processes synchronously and returns the final snapshot.
func (r *Reprocessor) Run(ctx context.Context, tenantId string) (ReprocessProgress, error) {
	if tenantId == "" {
		return ReprocessProgress{}, utils.ErrTenantRequired
	}
	runId := uuid.NewString()
	if snapshot, err := r.Tracker.begin(tenantId, runId); err != nil {
		return snapshot, err
	}
	ctx = utils.SetRunIdInContext(utils.SetTenantIdInContext(ctx, tenantId), runId)
	return r.run(ctx, tenantId, r.entry(ctx, tenantId, runId))
}

func (r *Reprocessor) Status(tenantId string) ReprocessProgress {
	return r.Tracker.Status(tenantId)
}

func (r *Reprocessor) entry(ctx context.Context, tenantId string, runId string) *logrus.Entry {
	return r.Logger.WithFields(config.ContextFields(ctx)).WithFields(logrus.Fields{
		"tenant_id": tenantId,
		"run_id":    runId,
	})
}

func (r *Reprocessor) run(ctx context.Context, tenantId string, entry *logrus.Entry) (ReprocessProgress, error) {
	ctx = utils.SetTenantIdInContext(ctx, tenantId)
	ctx, span := tracer.Start(ctx, "reprocess.run", trace.WithAttributes(attribute.String("tenant_id", tenantId)))
	defer span.End()

	runErr := r.process(ctx, tenantId, entry)

	status := ReprocessStatusCompleted
	if runErr != nil {
		status = ReprocessStatusFailed
		span.RecordError(runErr)
		span.SetStatus(codes.Error, runErr.Error())
		entry.WithField("error", runErr.Error()).Error("reprocess.failed")
	}
	final := r.Tracker.finish(tenantId, status)
	entry.WithFields(logrus.Fields{
		"status":      final.Status,
		"total_pos":   final.TotalPOs,
		"processed":   final.Processed,
		"repaired":    final.Repaired,
		"error_count": len(final.Errors),
	}).Info("reprocess.finished")
	return final, runErr
}

func (r *Reprocessor) process(ctx context.Context, tenantId string, entry *logrus.Entry) error {
	var lease *utils.TenantLease
	if r.UseRedisLock {
		var err error
		lease, err = utils.ObtainTenantLease(ctx, reprocessLockType, tenantId, reprocessLockTTL)
		if errors.Is(err, utils.ErrLockBusy) {
			return ErrReprocessAlreadyRunning
		}
		if err != nil {
			return err
		}
		defer lease.Release()
	}

	ids, err := models.ListReceivedPurchaseOrderIds(ctx, r.DB, tenantId)
	if err != nil {
		return err
	}
	r.Tracker.update(tenantId, func(p *ReprocessProgress) { p.TotalPOs = len(ids) })
	entry.WithField("total_pos", len(ids)).Info("reprocess.started")

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := lease.Refresh(ctx); err != nil {
			return fmt.Errorf("refresh reprocess lock: %w", err)
		}

		outcome := r.reprocessOne(ctx, tenantId, id, entry)
		r.Tracker.update(tenantId, func(p *ReprocessProgress) {
			p.Processed++
			if outcome.repaired {
				p.Repaired++
			}
			p.Errors = append(p.Errors, outcome.errors...)
		})
	}

	// full sweep, not only touched products
	n, err := r.Indexer.IndexAllProducts(ctx, tenantId)
	if err != nil {
		config.LogError(r.Logger, "Reprocessor", "process", "full reindex", tenantId, err)
	}
	r.Tracker.update(tenantId, func(p *ReprocessProgress) { p.Reindexed = n })
	return nil
}

type reprocessOutcome struct {
	repaired bool
	errors   []ReprocessError
}

func (r *Reprocessor) reprocessOne(ctx context.Context, tenantId string, purchaseOrderId int, entry *logrus.Entry) reprocessOutcome {
	ctx, span := tracer.Start(ctx, "reprocess.purchase_order", trace.WithAttributes(attribute.Int("purchase_order_id", purchaseOrderId)))
	defer span.End()

	var (
		out         reprocessOutcome
		orderNumber string
		skipped     bool
	)
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		po, err := models.FetchPurchaseOrder(ctx, tx, tenantId, purchaseOrderId)
		if err != nil {
			return fmt.Errorf("load: %w", err)
		}
		orderNumber = po.OrderNumber
		if po.CurrentStatus != models.PurchaseOrderStatusReceived {
			skipped = true
			return nil
		}

		// a skipped line would be added twice by re-receive, so any line error aborts the order
		down, err := r.Stock.UnreceiveStock(tx, tenantId, po.ID)
		if err != nil {
			return fmt.Errorf("unreceive: %w", err)
		}
		if err := lineErrors(down); err != nil {
			return fmt.Errorf("unreceive: %w", err)
		}
		linked, err := models.BackfillVariationLinks(ctx, tx, tenantId, po)
		if err != nil {
			return fmt.Errorf("backfill: %w", err)
		}
		if err := models.SetPurchaseOrderStatus(ctx, tx, tenantId, po.ID, models.PurchaseOrderStatusReceived, models.PurchaseOrderStatusDraft); err != nil {
			return fmt.Errorf("demote: %w", err)
		}
		up, err := r.Stock.ReceiveStock(tx, tenantId, po.ID)
		if err != nil {
			return fmt.Errorf("re-receive: %w", err)
		}
		if err := lineErrors(up); err != nil {
			return fmt.Errorf("re-receive: %w", err)
		}
		// received_at keeps the original receipt time
		if err := models.RestorePurchaseOrderStatus(ctx, tx, tenantId, po.ID, models.PurchaseOrderStatusDraft, models.PurchaseOrderStatusReceived); err != nil {
			return fmt.Errorf("restore: %w", err)
		}

		out.repaired = linked > 0
		return nil
	})
	if skipped {
		entry.WithField("purchase_order_id", purchaseOrderId).Info("reprocess.skipped_not_received")
		return out
	}
	if err == nil {
		return out
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	out.repaired = false
	out.errors = []ReprocessError{{
		PurchaseOrderId: purchaseOrderId,
		OrderNumber:     orderNumber,
		Message:         err.Error(),
	}}
	entry.WithFields(logrus.Fields{
		"purchase_order_id": purchaseOrderId,
		"order_number":      orderNumber,
		"error":             err.Error(),
	}).Warn("reprocess.purchase_order_failed")

	if restoreErr := r.restoreReceived(tenantId, purchaseOrderId); restoreErr != nil {
		out.errors[0].Critical = true
		out.errors[0].Message = fmt.Sprintf("%s; restore to RECEIVED failed: %s", err.Error(), restoreErr.Error())
		entry.WithFields(logrus.Fields{
			"purchase_order_id": purchaseOrderId,
			"order_number":      orderNumber,
			"critical":          true,
			"error":             restoreErr.Error(),
		}).Error("reprocess.restore.failed")
	}
	return out
}

// lineErrors turns per-line mutation errors into one error naming each failed line.
func lineErrors(res *models.StockMutationResult) error {
	if res == nil || len(res.Errors) == 0 {
		return nil
	}
	msgs := make([]string, 0, len(res.Errors))
	for _, e := range res.Errors {
		msgs = append(msgs, fmt.Sprintf("detail %d (product %d, sku %q): %s", e.DetailId, e.ProductId, e.Sku, e.Message))
	}
	return fmt.Errorf("%d item(s) failed: %s", len(res.Errors), strings.Join(msgs, "; "))
}

// restoreReceived re-asserts RECEIVED outside any transaction and regardless of the
// current status. It ignores the run's cancellation.
func (r *Reprocessor) restoreReceived(tenantId string, purchaseOrderId int) error {
	ctx, cancel := context.WithTimeout(utils.SetTenantIdInContext(context.Background(), tenantId), 30*time.Second)
	defer cancel()
	return r.DB.WithContext(ctx).Model(&models.PurchaseOrder{}).
		Where("tenant_id = ? AND id = ?", tenantId, purchaseOrderId).
		Update("current_status", models.PurchaseOrderStatusReceived).Error
}
