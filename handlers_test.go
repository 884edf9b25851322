package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/MerlinStacks/overseek-sub002/config"
	"github.com/MerlinStacks/overseek-sub002/models"
	"github.com/MerlinStacks/overseek-sub002/workflow"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const testTenant = "tenant-a"

func setupServer(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)
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

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	app := &App{}
	app.init(db, logger, nil)
	app.Reprocessor.UseRedisLock = false

	r := gin.New()
	registerRoutes(r, app)
	return r, db
}

func do(t *testing.T, r *gin.Engine, method string, path string, body any, tenant string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if tenant != "" {
		req.Header.Set("x-tenant-id", tenant)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCompositionRoutes(t *testing.T) {
	r, db := setupServer(t)
	owner := &models.Product{TenantId: testTenant, Name: "Lamp", StockQuantity: 5}
	if err := db.Create(owner).Error; err != nil {
		t.Fatal(err)
	}
	supplier := &models.Supplier{TenantId: testTenant, Name: "Acme"}
	if err := db.Create(supplier).Error; err != nil {
		t.Fatal(err)
	}
	bulb := &models.SupplierItem{TenantId: testTenant, SupplierId: supplier.ID, Name: "Bulb", AvailableQty: 19, UnitCost: decimal.NewFromInt(2)}
	if err := db.Create(bulb).Error; err != nil {
		t.Fatal(err)
	}
	base := "/api/compositions/" + strconv.Itoa(owner.ID) + "/0"

	if w := do(t, r, http.MethodGet, base, nil, ""); w.Code != http.StatusBadRequest {
		t.Fatalf("missing tenant: expected 400, got %d", w.Code)
	}
	if w := do(t, r, http.MethodGet, base, nil, testTenant); w.Code != http.StatusNotFound {
		t.Fatalf("absent composition: expected 404, got %d", w.Code)
	}

	self := map[string]any{"items": []map[string]any{{"child_product_id": owner.ID, "quantity": "1"}}}
	if w := do(t, r, http.MethodPut, base, self, testTenant); w.Code != http.StatusBadRequest {
		t.Fatalf("self reference: expected 400, got %d: %s", w.Code, w.Body.String())
	}

	body := map[string]any{"items": []map[string]any{{"supplier_item_id": bulb.ID, "quantity": "2", "waste_factor": "0.1"}}}
	if w := do(t, r, http.MethodPut, base, body, testTenant); w.Code != http.StatusOK {
		t.Fatalf("set composition: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w := do(t, r, http.MethodGet, base+"/effective-stock", nil, testTenant)
	if w.Code != http.StatusOK {
		t.Fatalf("effective stock: expected 200, got %d", w.Code)
	}
	var result models.EffectiveStockResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatal(err)
	}
	if result.EffectiveStock == nil || *result.EffectiveStock != 8 || !result.NeedsSync {
		t.Fatalf("unexpected result %+v", result)
	}

	if w := do(t, r, http.MethodGet, base, nil, "tenant-b"); w.Code != http.StatusNotFound {
		t.Fatalf("other tenant must not see composition, got %d", w.Code)
	}

	if w := do(t, r, http.MethodPost, base+"/sync-stock", nil, testTenant); w.Code != http.StatusOK {
		t.Fatalf("sync: expected 200, got %d", w.Code)
	}
	if w := do(t, r, http.MethodDelete, base, nil, testTenant); w.Code != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", w.Code)
	}
	if w := do(t, r, http.MethodDelete, base, nil, testTenant); w.Code != http.StatusNotFound {
		t.Fatalf("second delete: expected 404, got %d", w.Code)
	}
}

func TestPurchaseOrderAndReprocessRoutes(t *testing.T) {
	r, db := setupServer(t)
	p := &models.Product{TenantId: testTenant, Name: "Mug"}
	if err := db.Create(p).Error; err != nil {
		t.Fatal(err)
	}

	create := map[string]any{
		"order_number": "PO-1",
		"details":      []map[string]any{{"product_id": p.ID, "detail_qty": 4}},
	}
	w := do(t, r, http.MethodPost, "/api/purchase-orders", create, testTenant)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var created struct {
		PurchaseOrder models.PurchaseOrder `json:"purchase_order"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}
	statusPath := "/api/purchase-orders/" + strconv.Itoa(created.PurchaseOrder.ID) + "/status"

	if w := do(t, r, http.MethodPost, statusPath, map[string]string{"status": "shipped"}, testTenant); w.Code != http.StatusBadRequest {
		t.Fatalf("bad status: expected 400, got %d", w.Code)
	}
	if w := do(t, r, http.MethodPost, statusPath, map[string]string{"status": "received"}, testTenant); w.Code != http.StatusOK {
		t.Fatalf("receive: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var mug models.Product
	db.First(&mug, p.ID)
	if mug.StockQuantity != 4 {
		t.Fatalf("expected stock 4, got %d", mug.StockQuantity)
	}

	if w := do(t, r, http.MethodGet, "/api/ops/reprocess-purchase-orders", nil, testTenant); w.Code != http.StatusOK || !bytes.Contains(w.Body.Bytes(), []byte(`"idle"`)) {
		t.Fatalf("expected idle status, got %d %s", w.Code, w.Body.String())
	}
	if w := do(t, r, http.MethodPost, "/api/ops/reprocess-purchase-orders", nil, testTenant); w.Code != http.StatusAccepted {
		t.Fatalf("start: expected 202, got %d", w.Code)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		w := do(t, r, http.MethodGet, "/api/ops/reprocess-purchase-orders", nil, testTenant)
		var progress workflow.ReprocessProgress
		if err := json.Unmarshal(w.Body.Bytes(), &progress); err != nil {
			t.Fatal(err)
		}
		if progress.Status == workflow.ReprocessStatusCompleted {
			if progress.Processed != 1 {
				t.Fatalf("unexpected progress %+v", progress)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("reprocess did not complete: %+v", progress)
		}
		time.Sleep(20 * time.Millisecond)
	}
	db.First(&mug, p.ID)
	if mug.StockQuantity != 4 {
		t.Fatalf("reprocess changed stock to %d", mug.StockQuantity)
	}
}

func TestRoutes_NotReady(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	registerRoutes(r, &App{})
	if w := do(t, r, http.MethodGet, "/healthz", nil, ""); w.Code != http.StatusNoContent {
		t.Fatalf("healthz: expected 204, got %d", w.Code)
	}
	if w := do(t, r, http.MethodGet, "/api/ops/reprocess-purchase-orders", nil, testTenant); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 before init, got %d", w.Code)
	}
}
