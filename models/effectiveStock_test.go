package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func intPtr(v int) *int { return &v }

func supplierComponent(id int, available int, qty string, waste string) *CompositionItem {
	return &CompositionItem{
		BOMItem: BOMItem{
			ID:             id,
			SupplierItemId: intPtr(id),
			Quantity:       decimal.RequireFromString(qty),
			WasteFactor:    decimal.RequireFromString(waste),
		},
		Kind:         ComponentKindSupplierItem,
		Resolved:     true,
		SupplierItem: &SupplierItem{ID: id, Name: "S", AvailableQty: available},
	}
}

func TestCalculateEffectiveStock_WorkedExample(t *testing.T) {
	comp := &Composition{ProductId: 1, Items: []*CompositionItem{supplierComponent(10, 19, "2", "0.1")}}

	res := CalculateEffectiveStock(comp, intPtr(5))

	if res.EffectiveStock == nil || *res.EffectiveStock != 8 {
		t.Fatalf("expected effective stock 8, got %v", res.EffectiveStock)
	}
	if !res.NeedsSync {
		t.Fatalf("expected needsSync when stored stock is 5")
	}
	if len(res.Breakdown) != 1 || res.Breakdown[0].Buildable != 8 {
		t.Fatalf("unexpected breakdown: %+v", res.Breakdown)
	}
	if !res.Breakdown[0].PerUnit.Equal(decimal.RequireFromString("2.2")) {
		t.Fatalf("expected per-unit consumption 2.2, got %s", res.Breakdown[0].PerUnit)
	}
}

func TestCalculateEffectiveStock_InSyncWhenStoredMatches(t *testing.T) {
	comp := &Composition{ProductId: 1, Items: []*CompositionItem{supplierComponent(10, 19, "2", "0.1")}}
	res := CalculateEffectiveStock(comp, intPtr(8))
	if res.NeedsSync {
		t.Fatalf("expected no sync needed")
	}
}

func TestCalculateEffectiveStock_NoItemsIsUndefined(t *testing.T) {
	for _, comp := range []*Composition{nil, {ProductId: 1}} {
		res := CalculateEffectiveStock(comp, intPtr(3))
		if res.EffectiveStock != nil {
			t.Fatalf("expected nil effective stock, got %d", *res.EffectiveStock)
		}
		if res.NeedsSync {
			t.Fatalf("expected needsSync=false without items")
		}
	}
}

func TestCalculateEffectiveStock_FailClosed(t *testing.T) {
	unresolved := &CompositionItem{
		BOMItem:  BOMItem{ID: 2, ChildProductId: intPtr(99), ChildVariationId: intPtr(7), Quantity: decimal.NewFromInt(1)},
		Kind:     ComponentKindProduct,
		Resolved: false,
		Label:    "Shirt - Red / Large",
	}
	invalid := &CompositionItem{
		BOMItem: BOMItem{ID: 3, SupplierItemId: intPtr(1), InternalProductId: intPtr(2), Quantity: decimal.NewFromInt(1)},
		Kind:    ComponentKindInvalid,
	}

	cases := []struct {
		name string
		item *CompositionItem
	}{
		{"unresolved", unresolved},
		{"invalid", invalid},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			comp := &Composition{ProductId: 1, Items: []*CompositionItem{supplierComponent(10, 1000, "1", "0"), tc.item}}
			res := CalculateEffectiveStock(comp, nil)
			if res.EffectiveStock == nil || *res.EffectiveStock != 0 {
				t.Fatalf("expected 0, got %v", res.EffectiveStock)
			}
			if res.Breakdown[1].Reason == "" {
				t.Fatalf("expected a reason on the failing component")
			}
			if !res.NeedsSync {
				t.Fatalf("nil stored stock must need sync")
			}
		})
	}
}

func TestCalculateEffectiveStock_MinAcrossComponents(t *testing.T) {
	internal := &CompositionItem{
		BOMItem:         BOMItem{ID: 4, InternalProductId: intPtr(4), Quantity: decimal.NewFromInt(3)},
		Kind:            ComponentKindInternalProduct,
		Resolved:        true,
		InternalProduct: &InternalProduct{ID: 4, StockQuantity: 10},
	}
	variation := &CompositionItem{
		BOMItem:        BOMItem{ID: 5, ChildProductId: intPtr(5), ChildVariationId: intPtr(1), Quantity: decimal.NewFromInt(1)},
		Kind:           ComponentKindProduct,
		Resolved:       true,
		ChildProduct:   &Product{ID: 5, StockQuantity: 1},
		ChildVariation: &ProductVariation{ID: 50, ProductId: 5, VariationId: 1, StockQuantity: 6},
	}
	comp := &Composition{ProductId: 1, Items: []*CompositionItem{
		supplierComponent(10, 100, "1", "0"),
		internal,
		variation,
	}}

	res := CalculateEffectiveStock(comp, nil)
	// internal: floor(10/3)=3, variation uses its own stock: 6
	if *res.EffectiveStock != 3 {
		t.Fatalf("expected 3, got %d", *res.EffectiveStock)
	}
	if res.Breakdown[2].AvailableStock != 6 {
		t.Fatalf("variation component must use variation stock, got %d", res.Breakdown[2].AvailableStock)
	}
}

func TestCalculateEffectiveStock_Monotonic(t *testing.T) {
	prev := -1
	for available := 0; available <= 60; available++ {
		comp := &Composition{ProductId: 1, Items: []*CompositionItem{
			supplierComponent(10, available, "2", "0.15"),
			supplierComponent(11, 25, "1", "0.05"),
		}}
		res := CalculateEffectiveStock(comp, nil)
		if *res.EffectiveStock < prev {
			t.Fatalf("effective stock decreased from %d to %d at available=%d", prev, *res.EffectiveStock, available)
		}
		prev = *res.EffectiveStock
	}
}

func TestBuildableUnits(t *testing.T) {
	cases := []struct {
		available int
		perUnit   string
		want      int
	}{
		{19, "2.2", 8},
		{22, "2.2", 10},
		{0, "1", 0},
		{-5, "1", 0},
		{5, "0", 0},
		{1, "0.3333", 3},
		{10, "3", 3},
	}
	for _, tc := range cases {
		got := buildableUnits(tc.available, decimal.RequireFromString(tc.perUnit))
		if got != tc.want {
			t.Fatalf("buildableUnits(%d, %s) = %d, want %d", tc.available, tc.perUnit, got, tc.want)
		}
	}
}
