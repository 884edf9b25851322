package middlewares

import (
	"context"

	"github.com/MerlinStacks/overseek-sub002/models"
	"github.com/graph-gophers/dataloader/v7"
	"gorm.io/gorm"
)

type supplierItemReader struct {
	db       *gorm.DB
	tenantId string
}

func (r *supplierItemReader) getSupplierItems(ctx context.Context, ids []int) []*dataloader.Result[*models.SupplierItem] {
	var results []models.SupplierItem
	err := r.db.WithContext(ctx).Where("tenant_id = ? AND id IN ?", r.tenantId, ids).Find(&results).Error
	if err != nil {
		return handleError[*models.SupplierItem](len(ids), err)
	}
	return generateLoaderResults(results, ids, func(s *models.SupplierItem) int { return s.ID })
}
