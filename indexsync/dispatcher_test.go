package indexsync

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/MerlinStacks/overseek-sub002/config"
	"github.com/MerlinStacks/overseek-sub002/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const testTenant = "tenant-a"

type fakePublisher struct {
	mu        sync.Mutex
	snapshots []ProductSnapshot
	failFor   map[int]bool
	closed    bool
}

func (f *fakePublisher) Publish(ctx context.Context, s ProductSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor[s.ProductId] {
		return errors.New("publish failed")
	}
	f.snapshots = append(f.snapshots, s)
	return nil
}

func (f *fakePublisher) Close() error {
	f.closed = true
	return nil
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := config.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := models.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func seed(t *testing.T, db *gorm.DB) (*models.Product, *models.Product) {
	t.Helper()
	plain := &models.Product{TenantId: testTenant, Name: "Mug", Sku: "MUG", StockQuantity: 4, Cogs: decimal.NewFromInt(2)}
	shirt := &models.Product{TenantId: testTenant, Name: "Shirt", Sku: "SHIRT", StockQuantity: 0}
	for _, p := range []*models.Product{plain, shirt} {
		if err := db.Create(p).Error; err != nil {
			t.Fatal(err)
		}
	}
	v := &models.ProductVariation{TenantId: testTenant, ProductId: shirt.ID, VariationId: 3, Sku: "SHIRT-RED", StockQuantity: 7}
	if err := db.Create(v).Error; err != nil {
		t.Fatal(err)
	}
	return plain, shirt
}

func TestDispatcher_IndexProductsDrainsOnStop(t *testing.T) {
	db := setupDB(t)
	plain, shirt := seed(t, db)

	pub := &fakePublisher{}
	var invalidated []string
	d := NewDispatcher(db, quietLogger(), pub)
	d.Invalidate = func(keys ...string) error {
		invalidated = append(invalidated, keys...)
		return nil
	}
	d.Start()
	d.IndexProducts(context.Background(), testTenant, []int{shirt.ID, plain.ID, shirt.ID, 4242})
	d.Stop()

	if !pub.closed {
		t.Fatalf("publisher must be closed on stop")
	}
	if len(pub.snapshots) != 3 {
		t.Fatalf("expected 3 snapshots, got %d", len(pub.snapshots))
	}
	byId := map[int]ProductSnapshot{}
	for _, s := range pub.snapshots {
		byId[s.ProductId] = s
	}
	if byId[plain.ID].StockQuantity != 4 || !byId[plain.ID].Cogs.Equal(decimal.NewFromInt(2)) {
		t.Fatalf("unexpected plain snapshot %+v", byId[plain.ID])
	}
	if vs := byId[shirt.ID].Variations; len(vs) != 1 || vs[0].StockQuantity != 7 {
		t.Fatalf("expected variation in snapshot, got %+v", vs)
	}
	if !byId[4242].Deleted {
		t.Fatalf("missing product must publish a deleted snapshot")
	}
	if len(invalidated) != 3 || invalidated[0] != config.ProductCacheKey(testTenant, plain.ID) {
		t.Fatalf("unexpected invalidated keys %v", invalidated)
	}

	// enqueue after stop is dropped without panicking
	d.IndexProducts(context.Background(), testTenant, []int{plain.ID})
}

func TestDispatcher_QueueFullDrops(t *testing.T) {
	db := setupDB(t)
	plain, shirt := seed(t, db)

	pub := &fakePublisher{}
	d := NewDispatcher(db, quietLogger(), pub)
	d.Invalidate = nil
	d.queue = make(chan indexJob, 1)

	d.IndexProducts(context.Background(), testTenant, []int{plain.ID})
	d.IndexProducts(context.Background(), testTenant, []int{shirt.ID})
	d.Start()
	d.Stop()

	if len(pub.snapshots) != 1 || pub.snapshots[0].ProductId != plain.ID {
		t.Fatalf("expected only the first job to run, got %+v", pub.snapshots)
	}
}

func TestDispatcher_IndexAllProductsSkipsFailures(t *testing.T) {
	db := setupDB(t)
	plain, shirt := seed(t, db)
	other := &models.Product{TenantId: "tenant-b", Name: "Other"}
	if err := db.Create(other).Error; err != nil {
		t.Fatal(err)
	}

	pub := &fakePublisher{failFor: map[int]bool{plain.ID: true}}
	d := NewDispatcher(db, quietLogger(), pub)
	d.Invalidate = nil
	d.BatchSize = 1

	n, err := d.IndexAllProducts(context.Background(), testTenant)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 || len(pub.snapshots) != 1 || pub.snapshots[0].ProductId != shirt.ID {
		t.Fatalf("expected only shirt published, got n=%d %+v", n, pub.snapshots)
	}
}
