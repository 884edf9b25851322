package utils

import (
	"context"

	"github.com/MerlinStacks/overseek-sub002/appctx"
)

var (
	ContextKeyTenantId        = appctx.ContextKeyTenantId
	ContextKeyCorrelationId   = appctx.ContextKeyCorrelationId
	ContextKeyRunId           = appctx.ContextKeyRunId
	ContextKeySkipTenantScope = appctx.ContextKeySkipTenantScope
)

func GetTenantIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyTenantId)
}

func GetCorrelationIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyCorrelationId)
}

func SetTenantIdInContext(ctx context.Context, tenantId string) context.Context {
	return appctx.Set(ctx, ContextKeyTenantId, tenantId)
}

func SetCorrelationIdInContext(ctx context.Context, correlationId string) context.Context {
	return appctx.Set(ctx, ContextKeyCorrelationId, correlationId)
}

func SetRunIdInContext(ctx context.Context, runId string) context.Context {
	return appctx.Set(ctx, ContextKeyRunId, runId)
}

// DetachedContext keeps tenant and correlation values but drops the parent's
// cancellation, for work that outlives the request that started it.
func DetachedContext(parent context.Context) context.Context {
	ctx := context.Background()
	if v, ok := GetTenantIdFromContext(parent); ok {
		ctx = SetTenantIdInContext(ctx, v)
	}
	if v, ok := GetCorrelationIdFromContext(parent); ok {
		ctx = SetCorrelationIdInContext(ctx, v)
	}
	return ctx
}
