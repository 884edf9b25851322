package models

import (
	"context"
	"testing"

	"github.com/MerlinStacks/overseek-sub002/config"
	"github.com/MerlinStacks/overseek-sub002/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const testTenant = "tenant-a"

// setupTestDB installs a fresh in-memory sqlite database as the global DB.
func setupTestDB(t *testing.T) (context.Context, *gorm.DB) {
	t.Helper()
	db, err := config.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := Migrate(db); err != nil {
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

func mustCreate(t *testing.T, db *gorm.DB, value interface{}) {
	t.Helper()
	if err := db.Create(value).Error; err != nil {
		t.Fatalf("create %T: %v", value, err)
	}
}

func seedProduct(t *testing.T, db *gorm.DB, name string, sku string, stock int, cogs string) *Product {
	t.Helper()
	p := &Product{TenantId: testTenant, Name: name, Sku: sku, StockQuantity: stock, Cogs: decimal.RequireFromString(cogs)}
	mustCreate(t, db, p)
	return p
}

func seedVariation(t *testing.T, db *gorm.DB, productId int, variationId int, sku string, stock int, cogs string) *ProductVariation {
	t.Helper()
	v := &ProductVariation{
		TenantId:      testTenant,
		ProductId:     productId,
		VariationId:   variationId,
		Name:          sku,
		Sku:           sku,
		StockQuantity: stock,
		Cogs:          decimal.RequireFromString(cogs),
	}
	mustCreate(t, db, v)
	return v
}

func seedSupplierItem(t *testing.T, db *gorm.DB, name string, available int, unitCost string) *SupplierItem {
	t.Helper()
	s := &Supplier{TenantId: testTenant, Name: "Supplier " + name}
	mustCreate(t, db, s)
	si := &SupplierItem{TenantId: testTenant, SupplierId: s.ID, Name: name, AvailableQty: available, UnitCost: decimal.RequireFromString(unitCost)}
	mustCreate(t, db, si)
	return si
}

func productStock(t *testing.T, db *gorm.DB, id int) int {
	t.Helper()
	var p Product
	if err := db.First(&p, id).Error; err != nil {
		t.Fatalf("load product %d: %v", id, err)
	}
	return p.StockQuantity
}

func variationStock(t *testing.T, db *gorm.DB, id int) int {
	t.Helper()
	var v ProductVariation
	if err := db.First(&v, id).Error; err != nil {
		t.Fatalf("load variation %d: %v", id, err)
	}
	return v.StockQuantity
}
