package utils

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

/* DB fetching */

// fetch model from db
// (tenant_id is used in query's WHERE, may return RecordNotFound)
func FetchModel[T any](ctx context.Context, tx *gorm.DB, tenantId string, id int, associations ...string) (*T, error) {
	dbCtx := tx.WithContext(ctx).Where("tenant_id = ?", tenantId)
	for _, field := range associations {
		dbCtx = dbCtx.Preload(field)
	}
	var result T
	err := dbCtx.First(&result, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrorRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// fetch models by id, keyed by id
func FetchModelsByIds[T any](ctx context.Context, tx *gorm.DB, tenantId string, ids []int, idOf func(*T) int) (map[int]*T, error) {
	out := make(map[int]*T, len(ids))
	ids = UniqueSlice(ids)
	if len(ids) == 0 {
		return out, nil
	}
	var rows []*T
	if err := tx.WithContext(ctx).Where("tenant_id = ? AND id IN ?", tenantId, ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[idOf(r)] = r
	}
	return out, nil
}
