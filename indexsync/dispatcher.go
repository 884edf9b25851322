package indexsync

import (
	"context"
	"sync"

	"github.com/MerlinStacks/overseek-sub002/config"
	"github.com/MerlinStacks/overseek-sub002/models"
	"github.com/MerlinStacks/overseek-sub002/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const defaultBatchSize = 100

type indexJob struct {
	tenantId      string
	productIds    []int
	correlationId string
}

// Dispatcher pushes product snapshots to the index in the background. Callers enqueue
// after commit; the queue is bounded and a full queue drops the request.
type Dispatcher struct {
	DB         *gorm.DB
	Logger     *logrus.Logger
	Publisher  Publisher
	Invalidate CacheInvalidator
	BatchSize  int

	queue   chan indexJob
	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup
}

func NewDispatcher(db *gorm.DB, logger *logrus.Logger, publisher Publisher) *Dispatcher {
	return &Dispatcher{
		DB:         db,
		Logger:     logger,
		Publisher:  publisher,
		Invalidate: redisInvalidator,
		BatchSize:  defaultBatchSize,
		queue:      make(chan indexJob, config.ReindexQueueSize()),
	}
}

// Start runs the worker until Stop. The worker uses its own context so queued jobs
// still drain after the server context is cancelled.
func (d *Dispatcher) Start() {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for job := range d.queue {
			d.runJob(job)
		}
	}()
}

// Stop closes the queue and waits for queued jobs to finish.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	close(d.queue)
	d.mu.Unlock()
	d.wg.Wait()
	if d.Publisher != nil {
		if err := d.Publisher.Close(); err != nil {
			config.LogError(d.Logger, "indexsync", "Stop", "close publisher", nil, err)
		}
	}
}

// IndexProducts enqueues a reindex of the given products and never blocks.
func (d *Dispatcher) IndexProducts(ctx context.Context, tenantId string, productIds []int) {
	ids := utils.SortedUnique(productIds)
	if tenantId == "" || len(ids) == 0 {
		return
	}
	correlationId, _ := utils.GetCorrelationIdFromContext(ctx)
	job := indexJob{tenantId: tenantId, productIds: ids, correlationId: correlationId}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		d.Logger.WithFields(logrus.Fields{"tenant_id": tenantId, "product_ids": ids}).Warn("indexsync.dropped_after_stop")
		return
	}
	select {
	case d.queue <- job:
	default:
		d.Logger.WithFields(logrus.Fields{
			"tenant_id":      tenantId,
			"product_ids":    ids,
			"correlation_id": correlationId,
		}).Warn("indexsync.queue_full")
	}
}

func (d *Dispatcher) runJob(job indexJob) {
	ctx := utils.SetTenantIdInContext(context.Background(), job.tenantId)
	if job.correlationId != "" {
		ctx = utils.SetCorrelationIdInContext(ctx, job.correlationId)
	}
	if _, err := d.publishBatches(ctx, job.tenantId, job.productIds); err != nil {
		config.LogError(d.Logger, "indexsync", "runJob", "publish", map[string]any{
			"tenant_id":      job.tenantId,
			"product_ids":    job.productIds,
			"correlation_id": job.correlationId,
		}, err)
	}
}

// IndexAllProducts synchronously publishes every product of the tenant.
// Returns the number of snapshots published.
func (d *Dispatcher) IndexAllProducts(ctx context.Context, tenantId string) (int, error) {
	var ids []int
	err := d.DB.WithContext(ctx).Model(&models.Product{}).
		Where("tenant_id = ?", tenantId).
		Order("id").
		Pluck("id", &ids).Error
	if err != nil {
		return 0, err
	}
	return d.publishBatches(ctx, tenantId, ids)
}

// publishBatches builds and publishes snapshots batch by batch, then drops the cache
// entries of each batch. Publish failures of single products are logged and skipped.
func (d *Dispatcher) publishBatches(ctx context.Context, tenantId string, ids []int) (int, error) {
	size := d.BatchSize
	if size <= 0 {
		size = defaultBatchSize
	}
	ctx = utils.SetTenantIdInContext(ctx, tenantId)
	published := 0
	for start := 0; start < len(ids); start += size {
		if err := ctx.Err(); err != nil {
			return published, err
		}
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		batch := ids[start:end]
		snapshots, err := BuildProductSnapshots(ctx, d.DB, tenantId, batch)
		if err != nil {
			return published, err
		}
		for _, s := range snapshots {
			if err := d.Publisher.Publish(ctx, s); err != nil {
				d.Logger.WithFields(logrus.Fields{
					"tenant_id":  tenantId,
					"product_id": s.ProductId,
					"error":      err.Error(),
				}).Warn("indexsync.publish_failed")
				continue
			}
			published++
		}
		if d.Invalidate != nil {
			if err := d.Invalidate(productCacheKeys(tenantId, batch)...); err != nil {
				d.Logger.WithFields(logrus.Fields{
					"tenant_id": tenantId,
					"error":     err.Error(),
				}).Warn("indexsync.cache_invalidate_failed")
			}
		}
	}
	return published, nil
}
