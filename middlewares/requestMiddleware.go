package middlewares

import (
	"net/http"
	"strings"

	"github.com/MerlinStacks/overseek-sub002/utils"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	HeaderTenantId      = "x-tenant-id"
	HeaderCorrelationId = "x-correlation-id"
)

// CorrelationMiddleware propagates x-correlation-id or assigns a new one.
func CorrelationMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		correlationId := strings.TrimSpace(c.GetHeader(HeaderCorrelationId))
		if correlationId == "" {
			correlationId = uuid.NewString()
		}
		c.Header(HeaderCorrelationId, correlationId)
		ctx := utils.SetCorrelationIdInContext(c.Request.Context(), correlationId)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// TenantMiddleware requires x-tenant-id. Authentication happens upstream.
func TenantMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantId := strings.TrimSpace(c.GetHeader(HeaderTenantId))
		if tenantId == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "x-tenant-id header is required"})
			return
		}
		ctx := utils.SetTenantIdInContext(c.Request.Context(), tenantId)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
