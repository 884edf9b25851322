package models

import (
	"context"

	"github.com/MerlinStacks/overseek-sub002/utils"
	"gorm.io/gorm"
)

// ComponentLoader fetches the live entities a composition refers to. Ids that do not
// exist are simply absent from the returned maps.
type ComponentLoader interface {
	Products(ctx context.Context, ids []int) (map[int]*Product, error)
	// keyed by product id
	Variations(ctx context.Context, productIds []int) (map[int][]*ProductVariation, error)
	SupplierItems(ctx context.Context, ids []int) (map[int]*SupplierItem, error)
	InternalProducts(ctx context.Context, ids []int) (map[int]*InternalProduct, error)
}

type componentLoaderKey struct{}

// WithComponentLoader installs a request-scoped loader used by GetComposition.
func WithComponentLoader(ctx context.Context, loader ComponentLoader) context.Context {
	return context.WithValue(ctx, componentLoaderKey{}, loader)
}

func componentLoaderFor(ctx context.Context, tx *gorm.DB, tenantId string) ComponentLoader {
	if l, ok := ctx.Value(componentLoaderKey{}).(ComponentLoader); ok && l != nil {
		return l
	}
	return NewComponentLoader(tx, tenantId)
}

type dbComponentLoader struct {
	db       *gorm.DB
	tenantId string
}

// NewComponentLoader loads with one IN query per entity type.
func NewComponentLoader(db *gorm.DB, tenantId string) ComponentLoader {
	return &dbComponentLoader{db: db, tenantId: tenantId}
}

func (l *dbComponentLoader) Products(ctx context.Context, ids []int) (map[int]*Product, error) {
	return utils.FetchModelsByIds(ctx, l.db, l.tenantId, ids, func(p *Product) int { return p.ID })
}

func (l *dbComponentLoader) SupplierItems(ctx context.Context, ids []int) (map[int]*SupplierItem, error) {
	return utils.FetchModelsByIds(ctx, l.db, l.tenantId, ids, func(s *SupplierItem) int { return s.ID })
}

func (l *dbComponentLoader) InternalProducts(ctx context.Context, ids []int) (map[int]*InternalProduct, error) {
	return utils.FetchModelsByIds(ctx, l.db, l.tenantId, ids, func(p *InternalProduct) int { return p.ID })
}

func (l *dbComponentLoader) Variations(ctx context.Context, productIds []int) (map[int][]*ProductVariation, error) {
	return LoadVariationsByProduct(ctx, l.db, l.tenantId, productIds)
}

// LoadVariationsByProduct groups the tenant's variations of the given products by product id.
func LoadVariationsByProduct(ctx context.Context, db *gorm.DB, tenantId string, productIds []int) (map[int][]*ProductVariation, error) {
	out := make(map[int][]*ProductVariation)
	productIds = utils.UniqueSlice(productIds)
	if len(productIds) == 0 {
		return out, nil
	}
	var rows []*ProductVariation
	err := db.WithContext(ctx).
		Where("tenant_id = ? AND product_id IN ?", tenantId, productIds).
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, v := range rows {
		out[v.ProductId] = append(out[v.ProductId], v)
	}
	return out, nil
}
