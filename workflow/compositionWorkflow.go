package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/MerlinStacks/overseek-sub002/config"
	"github.com/MerlinStacks/overseek-sub002/models"
	"github.com/MerlinStacks/overseek-sub002/utils"
	"github.com/sirupsen/logrus"
)

const (
	bomLockType = "bomLock"
	bomLockTTL  = 30 * time.Second
)

// bomLockScope makes the lock key bomLock:<tenant>:<product>:<variation>.
func bomLockScope(tenantId string, productId int, variationId int) string {
	return fmt.Sprintf("%s:%d:%d", tenantId, productId, variationId)
}

type CompositionWorkflow struct {
	Logger  *logrus.Logger
	Indexer Reindexer
}

func NewCompositionWorkflow(logger *logrus.Logger, indexer Reindexer) *CompositionWorkflow {
	return &CompositionWorkflow{Logger: workflowLogger(logger), Indexer: reindexerOrNoop(indexer)}
}

// SetComposition replaces the owner's BOM and reindexes the owner, whose COGS changed.
func (w *CompositionWorkflow) SetComposition(ctx context.Context, productId int, variationId int, input models.NewComposition) (*models.Composition, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, utils.ErrTenantRequired
	}
	release, err := utils.TenantLock(ctx, bomLockType, bomLockScope(tenantId, productId, variationId), bomLockTTL, "CompositionWorkflow", "SetComposition")
	if err != nil {
		return nil, err
	}
	defer release()

	comp, err := models.SetComposition(ctx, productId, variationId, input)
	if err != nil {
		return nil, err
	}
	w.Indexer.IndexProducts(utils.DetachedContext(ctx), tenantId, []int{productId})
	return comp, nil
}

func (w *CompositionWorkflow) DeleteComposition(ctx context.Context, productId int, variationId int) error {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return utils.ErrTenantRequired
	}
	release, err := utils.TenantLock(ctx, bomLockType, bomLockScope(tenantId, productId, variationId), bomLockTTL, "CompositionWorkflow", "DeleteComposition")
	if err != nil {
		return err
	}
	defer release()
	return models.DeleteComposition(ctx, productId, variationId)
}

// SyncEffectiveStock writes back effective stock and reindexes the owner when it changed.
func (w *CompositionWorkflow) SyncEffectiveStock(ctx context.Context, productId int, variationId int) (*models.EffectiveStockResult, bool, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return nil, false, utils.ErrTenantRequired
	}
	result, applied, err := models.SyncEffectiveStock(ctx, productId, variationId)
	if err != nil {
		return nil, false, err
	}
	if applied {
		w.Indexer.IndexProducts(utils.DetachedContext(ctx), tenantId, []int{productId})
	}
	return result, applied, nil
}

type CompositionSyncRow struct {
	ProductId      int    `json:"product_id"`
	VariationId    int    `json:"variation_id"`
	EffectiveStock *int   `json:"effective_stock"`
	StoredStock    *int   `json:"stored_stock"`
	NeedsSync      bool   `json:"needs_sync"`
	Applied        bool   `json:"applied"`
	Error          string `json:"error,omitempty"`
}

// SyncTenant computes effective stock for every BOM of the tenant. With apply it writes
// diverging values back. Without continueOnError the first failure stops the run.
func (w *CompositionWorkflow) SyncTenant(ctx context.Context, tenantId string, apply bool, continueOnError bool) ([]CompositionSyncRow, error) {
	ctx = utils.SetTenantIdInContext(ctx, tenantId)
	comps, err := models.ListCompositions(ctx, tenantId)
	if err != nil {
		return nil, err
	}

	rows := make([]CompositionSyncRow, 0, len(comps))
	var touched []int
	for _, comp := range comps {
		row := CompositionSyncRow{ProductId: comp.ProductId, VariationId: comp.VariationId}
		var (
			result  *models.EffectiveStockResult
			applied bool
			err     error
		)
		if apply {
			result, applied, err = models.SyncEffectiveStock(ctx, comp.ProductId, comp.VariationId)
		} else {
			result, err = models.GetEffectiveStock(ctx, comp.ProductId, comp.VariationId)
		}
		if err != nil {
			row.Error = err.Error()
			rows = append(rows, row)
			config.LogError(w.Logger, "CompositionWorkflow", "SyncTenant", "sync composition", row, err)
			if !continueOnError {
				return rows, err
			}
			continue
		}
		if result != nil {
			row.EffectiveStock = result.EffectiveStock
			row.StoredStock = result.CurrentStoredStock
			row.NeedsSync = result.NeedsSync
		}
		row.Applied = applied
		if applied {
			touched = append(touched, comp.ProductId)
		}
		rows = append(rows, row)
	}
	if len(touched) > 0 {
		w.Indexer.IndexProducts(utils.DetachedContext(ctx), tenantId, touched)
	}
	return rows, nil
}
