package middlewares

import (
	"context"

	"github.com/MerlinStacks/overseek-sub002/models"
	"github.com/graph-gophers/dataloader/v7"
	"gorm.io/gorm"
)

type productReader struct {
	db       *gorm.DB
	tenantId string
}

func (r *productReader) getProducts(ctx context.Context, ids []int) []*dataloader.Result[*models.Product] {
	var results []models.Product
	err := r.db.WithContext(ctx).Where("tenant_id = ? AND id IN ?", r.tenantId, ids).Find(&results).Error
	if err != nil {
		return handleError[*models.Product](len(ids), err)
	}
	return generateLoaderResults(results, ids, func(p *models.Product) int { return p.ID })
}

type productVariationReader struct {
	db       *gorm.DB
	tenantId string
}

func (r *productVariationReader) getVariations(ctx context.Context, productIds []int) []*dataloader.Result[[]*models.ProductVariation] {
	var results []models.ProductVariation
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND product_id IN ?", r.tenantId, productIds).
		Order("id").
		Find(&results).Error
	if err != nil {
		return handleError[[]*models.ProductVariation](len(productIds), err)
	}
	return generateLoaderArrayResults(results, productIds, func(v *models.ProductVariation) int { return v.ProductId })
}

type internalProductReader struct {
	db       *gorm.DB
	tenantId string
}

func (r *internalProductReader) getInternalProducts(ctx context.Context, ids []int) []*dataloader.Result[*models.InternalProduct] {
	var results []models.InternalProduct
	err := r.db.WithContext(ctx).Where("tenant_id = ? AND id IN ?", r.tenantId, ids).Find(&results).Error
	if err != nil {
		return handleError[*models.InternalProduct](len(ids), err)
	}
	return generateLoaderResults(results, ids, func(p *models.InternalProduct) int { return p.ID })
}
