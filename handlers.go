package main

import (
	"errors"
	"net/http"
	"strconv"
	"sync/atomic"

	"github.com/MerlinStacks/overseek-sub002/config"
	"github.com/MerlinStacks/overseek-sub002/middlewares"
	"github.com/MerlinStacks/overseek-sub002/models"
	"github.com/MerlinStacks/overseek-sub002/utils"
	"github.com/MerlinStacks/overseek-sub002/workflow"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// App holds the workflows behind the HTTP routes. Routes answer 503 until init ran.
type App struct {
	ready atomic.Bool

	Logger         *logrus.Logger
	Compositions   *workflow.CompositionWorkflow
	PurchaseOrders *workflow.PurchaseOrderWorkflow
	Reprocessor    *workflow.Reprocessor
}

func (a *App) init(db *gorm.DB, logger *logrus.Logger, indexer workflow.Reindexer) {
	a.Logger = logger
	a.Compositions = workflow.NewCompositionWorkflow(logger, indexer)
	a.PurchaseOrders = workflow.NewPurchaseOrderWorkflow(db, logger, indexer)
	a.Reprocessor = workflow.NewReprocessor(db, logger, indexer, nil)
	a.ready.Store(true)
}

func (a *App) readiness() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !a.ready.Load() || config.GetDB() == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	}
}

func registerRoutes(r *gin.Engine, app *App) {
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	api := r.Group("/api",
		middlewares.CorrelationMiddleware(),
		app.readiness(),
		middlewares.TenantMiddleware(),
		middlewares.LoaderMiddleware(),
	)

	compositions := api.Group("/compositions/:productId/:variationId")
	compositions.GET("", app.getComposition)
	compositions.PUT("", app.setComposition)
	compositions.DELETE("", app.deleteComposition)
	compositions.GET("/effective-stock", app.getEffectiveStock)
	compositions.POST("/sync-stock", app.syncEffectiveStock)

	api.POST("/purchase-orders", app.createPurchaseOrder)
	api.POST("/purchase-orders/:id/status", app.transitionPurchaseOrder)

	api.POST("/ops/reprocess-purchase-orders", app.startReprocess)
	api.GET("/ops/reprocess-purchase-orders", app.reprocessStatus)

	r.NoRoute(customNotFoundHandler)
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
}

func compositionOwner(c *gin.Context) (int, int, bool) {
	productId, err := strconv.Atoi(c.Param("productId"))
	if err != nil || productId <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product id"})
		return 0, 0, false
	}
	variationId, err := strconv.Atoi(c.Param("variationId"))
	if err != nil || variationId < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid variation id"})
		return 0, 0, false
	}
	return productId, variationId, true
}

func (a *App) getComposition(c *gin.Context) {
	productId, variationId, ok := compositionOwner(c)
	if !ok {
		return
	}
	comp, err := models.GetComposition(c.Request.Context(), productId, variationId)
	if err != nil {
		writeError(c, err)
		return
	}
	if comp == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "composition not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"composition": comp, "cogs": comp.Cogs()})
}

func (a *App) setComposition(c *gin.Context) {
	productId, variationId, ok := compositionOwner(c)
	if !ok {
		return
	}
	var input models.NewComposition
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	comp, err := a.Compositions.SetComposition(c.Request.Context(), productId, variationId, input)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"composition": comp, "cogs": comp.Cogs()})
}

func (a *App) deleteComposition(c *gin.Context) {
	productId, variationId, ok := compositionOwner(c)
	if !ok {
		return
	}
	if err := a.Compositions.DeleteComposition(c.Request.Context(), productId, variationId); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *App) getEffectiveStock(c *gin.Context) {
	productId, variationId, ok := compositionOwner(c)
	if !ok {
		return
	}
	result, err := models.GetEffectiveStock(c.Request.Context(), productId, variationId)
	if err != nil {
		writeError(c, err)
		return
	}
	if result == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "composition not found"})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (a *App) syncEffectiveStock(c *gin.Context) {
	productId, variationId, ok := compositionOwner(c)
	if !ok {
		return
	}
	result, applied, err := a.Compositions.SyncEffectiveStock(c.Request.Context(), productId, variationId)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": result, "applied": applied})
}

func (a *App) createPurchaseOrder(c *gin.Context) {
	var input models.NewPurchaseOrder
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if input.CurrentStatus != "" {
		status, err := models.ParsePurchaseOrderStatus(string(input.CurrentStatus))
		if err != nil {
			writeError(c, err)
			return
		}
		input.CurrentStatus = status
	}
	po, result, err := a.PurchaseOrders.Create(c.Request.Context(), &input)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"purchase_order": po, "stock": result})
}

type statusInput struct {
	Status string `json:"status"`
}

func (a *App) transitionPurchaseOrder(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid purchase order id"})
		return
	}
	var input statusInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	status, err := models.ParsePurchaseOrderStatus(input.Status)
	if err != nil {
		writeError(c, err)
		return
	}
	po, result, err := a.PurchaseOrders.TransitionStatus(c.Request.Context(), id, status)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"purchase_order": po, "stock": result})
}

func (a *App) startReprocess(c *gin.Context) {
	tenantId, _ := utils.GetTenantIdFromContext(c.Request.Context())
	progress, err := a.Reprocessor.Start(c.Request.Context(), tenantId)
	if errors.Is(err, workflow.ErrReprocessAlreadyRunning) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "progress": progress})
		return
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, progress)
}

func (a *App) reprocessStatus(c *gin.Context) {
	tenantId, _ := utils.GetTenantIdFromContext(c.Request.Context())
	c.JSON(http.StatusOK, a.Reprocessor.Status(tenantId))
}

// writeError maps domain errors to HTTP status codes. Anything unknown is a 500.
func writeError(c *gin.Context, err error) {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.As(err, &validationErrors):
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": utils.ProcessValidationErrors(err)})
	case errors.Is(err, models.ErrCompositionInvalid),
		errors.Is(err, models.ErrCompositionSelfReference),
		errors.Is(err, models.ErrInvalidPurchaseOrderStatus),
		errors.Is(err, utils.ErrTenantRequired):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, utils.ErrorRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrPurchaseOrderStatusConflict),
		errors.Is(err, utils.ErrLockBusy):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
