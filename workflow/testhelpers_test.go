package workflow

import (
	"context"
	"io"
	"sync"
	"testing"

	"github.com/MerlinStacks/overseek-sub002/config"
	"github.com/MerlinStacks/overseek-sub002/models"
	"github.com/MerlinStacks/overseek-sub002/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const testTenant = "tenant-a"

func setupTestDB(t *testing.T) (context.Context, *gorm.DB) {
	t.Helper()
	db, err := config.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := models.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	prev := config.GetDB()
	config.SetDB(db)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
		config.SetDB(prev)
	})
	return utils.SetTenantIdInContext(context.Background(), testTenant), db
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

type fakeReindexer struct {
	mu       sync.Mutex
	products [][]int
	fullRuns []string
}

func (f *fakeReindexer) IndexProducts(ctx context.Context, tenantId string, productIds []int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.products = append(f.products, productIds)
}

func (f *fakeReindexer) IndexAllProducts(ctx context.Context, tenantId string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fullRuns = append(f.fullRuns, tenantId)
	return 0, nil
}

func mustCreate(t *testing.T, db *gorm.DB, value interface{}) {
	t.Helper()
	if err := db.Create(value).Error; err != nil {
		t.Fatalf("create %T: %v", value, err)
	}
}

func seedReceivedOrder(t *testing.T, ctx context.Context, db *gorm.DB, number string, details ...models.NewPurchaseOrderDetail) *models.PurchaseOrder {
	t.Helper()
	var po *models.PurchaseOrder
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		po, _, err = models.CreatePurchaseOrder(ctx, tx, testTenant, &models.NewPurchaseOrder{
			OrderNumber:   number,
			CurrentStatus: models.PurchaseOrderStatusReceived,
			Details:       details,
		})
		return err
	})
	if err != nil {
		t.Fatalf("create purchase order: %v", err)
	}
	return po
}

func orderStatus(t *testing.T, db *gorm.DB, id int) models.PurchaseOrderStatus {
	t.Helper()
	var po models.PurchaseOrder
	if err := db.First(&po, id).Error; err != nil {
		t.Fatal(err)
	}
	return po.CurrentStatus
}

func productStock(t *testing.T, db *gorm.DB, id int) int {
	t.Helper()
	var p models.Product
	if err := db.First(&p, id).Error; err != nil {
		t.Fatal(err)
	}
	return p.StockQuantity
}

func variationStock(t *testing.T, db *gorm.DB, id int) int {
	t.Helper()
	var v models.ProductVariation
	if err := db.First(&v, id).Error; err != nil {
		t.Fatal(err)
	}
	return v.StockQuantity
}
