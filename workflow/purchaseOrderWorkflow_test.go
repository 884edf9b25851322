package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/MerlinStacks/overseek-sub002/models"
	"github.com/MerlinStacks/overseek-sub002/utils"
	"github.com/shopspring/decimal"
)

func TestPurchaseOrderWorkflow_TransitionReindexesAfterCommit(t *testing.T) {
	ctx, db := setupTestDB(t)
	wick := &models.Product{TenantId: testTenant, Name: "Wick", Sku: "WICK"}
	mustCreate(t, db, wick)
	candle := &models.Product{TenantId: testTenant, Name: "Candle", Sku: "CANDLE"}
	mustCreate(t, db, candle)

	indexer := &fakeReindexer{}
	compositions := NewCompositionWorkflow(quietLogger(), indexer)
	if _, err := compositions.SetComposition(ctx, candle.ID, 0, models.NewComposition{Items: []models.NewBOMItem{
		{ChildProductId: &wick.ID, Quantity: decimal.NewFromInt(2)},
	}}); err != nil {
		t.Fatal(err)
	}

	w := NewPurchaseOrderWorkflow(db, quietLogger(), indexer)
	po, res, err := w.Create(ctx, &models.NewPurchaseOrder{
		OrderNumber: "PO-9",
		Details:     []models.NewPurchaseOrderDetail{{ProductId: wick.ID, DetailQty: 6}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if po.CurrentStatus != models.PurchaseOrderStatusDraft || res.UpdatedCount != 0 {
		t.Fatalf("draft create must not touch stock: %+v", res)
	}

	po, res, err = w.TransitionStatus(ctx, po.ID, models.PurchaseOrderStatusReceived)
	if err != nil {
		t.Fatal(err)
	}
	if po.CurrentStatus != models.PurchaseOrderStatusReceived || productStock(t, db, wick.ID) != 6 {
		t.Fatalf("receive not applied")
	}
	last := indexer.products[len(indexer.products)-1]
	if len(last) != 2 {
		t.Fatalf("expected wick and its BOM parent reindexed, got %v", last)
	}

	eff, err := models.GetEffectiveStock(ctx, candle.ID, 0)
	if err != nil {
		t.Fatal(err)
	}
	if *eff.EffectiveStock != 3 || !eff.NeedsSync {
		t.Fatalf("expected effective stock 3 needing sync, got %+v", eff)
	}
	_, applied, err := compositions.SyncEffectiveStock(ctx, candle.ID, 0)
	if err != nil || !applied {
		t.Fatalf("expected write-back, applied=%v err=%v", applied, err)
	}
	if productStock(t, db, candle.ID) != 3 {
		t.Fatalf("expected candle stock 3")
	}
}

func TestPurchaseOrderWorkflow_RequiresTenant(t *testing.T) {
	_, db := setupTestDB(t)
	w := NewPurchaseOrderWorkflow(db, quietLogger(), nil)
	if _, _, err := w.TransitionStatus(context.Background(), 1, models.PurchaseOrderStatusReceived); !errors.Is(err, utils.ErrTenantRequired) {
		t.Fatalf("expected tenant error, got %v", err)
	}
}

func TestCompositionWorkflow_SyncTenant(t *testing.T) {
	ctx, db := setupTestDB(t)
	part := &models.InternalProduct{TenantId: testTenant, Name: "Frame", StockQuantity: 9}
	mustCreate(t, db, part)
	kitA := &models.Product{TenantId: testTenant, Name: "Kit A", StockQuantity: 3}
	mustCreate(t, db, kitA)
	kitB := &models.Product{TenantId: testTenant, Name: "Kit B"}
	mustCreate(t, db, kitB)

	indexer := &fakeReindexer{}
	w := NewCompositionWorkflow(quietLogger(), indexer)
	for _, owner := range []int{kitA.ID, kitB.ID} {
		if _, err := w.SetComposition(ctx, owner, 0, models.NewComposition{Items: []models.NewBOMItem{
			{InternalProductId: &part.ID, Quantity: decimal.NewFromInt(3)},
		}}); err != nil {
			t.Fatal(err)
		}
	}

	rows, err := w.SyncTenant(ctx, testTenant, false, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("unexpected dry run rows %+v", rows)
	}
	for _, row := range rows {
		if row.Applied || *row.EffectiveStock != 3 {
			t.Fatalf("dry run must not write, got %+v", row)
		}
	}
	if productStock(t, db, kitB.ID) != 0 {
		t.Fatalf("dry run wrote stock")
	}

	rows, err = w.SyncTenant(ctx, testTenant, true, false)
	if err != nil {
		t.Fatal(err)
	}
	applied := 0
	for _, row := range rows {
		if row.Applied {
			applied++
		}
	}
	if applied != 1 || productStock(t, db, kitB.ID) != 3 || productStock(t, db, kitA.ID) != 3 {
		t.Fatalf("expected only kit B written, applied=%d", applied)
	}
}

func TestBomLockScope(t *testing.T) {
	cases := []struct {
		product, variation int
		want               string
	}{
		{12, 0, "tenant-a:12:0"},
		{12, 7, "tenant-a:12:7"},
	}
	for _, tc := range cases {
		if got := bomLockScope(testTenant, tc.product, tc.variation); got != tc.want {
			t.Fatalf("got %q, want %q", got, tc.want)
		}
	}
}
