package middlewares

import (
	"context"
	"testing"

	"github.com/MerlinStacks/overseek-sub002/config"
	"github.com/MerlinStacks/overseek-sub002/models"
	"gorm.io/gorm"
)

func setupLoaderDB(t *testing.T) *gorm.DB {
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

func TestLoaders_TenantScopedBatches(t *testing.T) {
	db := setupLoaderDB(t)
	mine := &models.Product{TenantId: "a", Name: "Mug", Sku: "MUG"}
	theirs := &models.Product{TenantId: "b", Name: "Cup", Sku: "CUP"}
	for _, p := range []*models.Product{mine, theirs} {
		if err := db.Create(p).Error; err != nil {
			t.Fatal(err)
		}
	}
	for _, v := range []*models.ProductVariation{
		{TenantId: "a", ProductId: mine.ID, VariationId: 1, Name: "Red", Sku: "MUG-R"},
		{TenantId: "a", ProductId: mine.ID, VariationId: 2, Name: "Blue", Sku: "MUG-B"},
	} {
		if err := db.Create(v).Error; err != nil {
			t.Fatal(err)
		}
	}

	loaders := NewLoaders(db, "a")
	ctx := context.Background()

	products, err := loaders.Products(ctx, []int{mine.ID, theirs.ID, mine.ID, 999})
	if err != nil {
		t.Fatal(err)
	}
	if len(products) != 1 || products[mine.ID] == nil {
		t.Fatalf("expected only the tenant's product, got %v", products)
	}

	variations, err := loaders.Variations(ctx, []int{mine.ID, theirs.ID})
	if err != nil {
		t.Fatal(err)
	}
	if len(variations[mine.ID]) != 2 || len(variations[theirs.ID]) != 0 {
		t.Fatalf("unexpected variation grouping: %v", variations)
	}

	items, err := loaders.SupplierItems(ctx, nil)
	if err != nil || len(items) != 0 {
		t.Fatalf("empty id list must short-circuit, got %v %v", items, err)
	}
}

func TestGenerateLoaderResults_KeepsIdOrder(t *testing.T) {
	rows := []models.Product{{ID: 3, Name: "c"}, {ID: 1, Name: "a"}}
	results := generateLoaderResults(rows, []int{1, 2, 3}, func(p *models.Product) int { return p.ID })
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].Data.Name != "a" || results[1].Data != nil || results[2].Data.Name != "c" {
		t.Fatalf("results out of order")
	}
}
