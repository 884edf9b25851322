package middlewares

import (
	"context"
	"time"

	"github.com/MerlinStacks/overseek-sub002/config"
	"github.com/MerlinStacks/overseek-sub002/models"
	"github.com/MerlinStacks/overseek-sub002/utils"
	"github.com/gin-gonic/gin"
	"github.com/graph-gophers/dataloader/v7"
	"gorm.io/gorm"
)

// Loaders batch component lookups for one request. They implement models.ComponentLoader.
type Loaders struct {
	productLoader           *dataloader.Loader[int, *models.Product]
	productVariationsLoader *dataloader.Loader[int, []*models.ProductVariation]
	supplierItemLoader      *dataloader.Loader[int, *models.SupplierItem]
	internalProductLoader   *dataloader.Loader[int, *models.InternalProduct]
}

// NewLoaders instantiates tenant-scoped data loaders
func NewLoaders(conn *gorm.DB, tenantId string) *Loaders {
	productReader := &productReader{db: conn, tenantId: tenantId}
	productVariationReader := &productVariationReader{db: conn, tenantId: tenantId}
	supplierItemReader := &supplierItemReader{db: conn, tenantId: tenantId}
	internalProductReader := &internalProductReader{db: conn, tenantId: tenantId}

	return &Loaders{
		productLoader:           dataloader.NewBatchedLoader(productReader.getProducts, dataloader.WithWait[int, *models.Product](time.Millisecond)),
		productVariationsLoader: dataloader.NewBatchedLoader(productVariationReader.getVariations, dataloader.WithWait[int, []*models.ProductVariation](time.Millisecond)),
		supplierItemLoader:      dataloader.NewBatchedLoader(supplierItemReader.getSupplierItems, dataloader.WithWait[int, *models.SupplierItem](time.Millisecond)),
		internalProductLoader:   dataloader.NewBatchedLoader(internalProductReader.getInternalProducts, dataloader.WithWait[int, *models.InternalProduct](time.Millisecond)),
	}
}

// LoaderMiddleware must run after TenantMiddleware.
func LoaderMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantId, _ := utils.GetTenantIdFromContext(c.Request.Context())
		loaders := NewLoaders(config.GetDB(), tenantId)
		c.Request = c.Request.WithContext(models.WithComponentLoader(c.Request.Context(), loaders))
		c.Next()
	}
}

func (l *Loaders) Products(ctx context.Context, ids []int) (map[int]*models.Product, error) {
	return loadMap(ctx, l.productLoader, ids)
}

func (l *Loaders) Variations(ctx context.Context, productIds []int) (map[int][]*models.ProductVariation, error) {
	out := make(map[int][]*models.ProductVariation)
	productIds = utils.UniqueSlice(productIds)
	if len(productIds) == 0 {
		return out, nil
	}
	data, errs := l.productVariationsLoader.LoadMany(ctx, productIds)()
	if err := firstError(errs); err != nil {
		return nil, err
	}
	for i, id := range productIds {
		if len(data[i]) > 0 {
			out[id] = data[i]
		}
	}
	return out, nil
}

func (l *Loaders) SupplierItems(ctx context.Context, ids []int) (map[int]*models.SupplierItem, error) {
	return loadMap(ctx, l.supplierItemLoader, ids)
}

func (l *Loaders) InternalProducts(ctx context.Context, ids []int) (map[int]*models.InternalProduct, error) {
	return loadMap(ctx, l.internalProductLoader, ids)
}

// loadMap drops ids the reader did not find.
func loadMap[T any](ctx context.Context, loader *dataloader.Loader[int, *T], ids []int) (map[int]*T, error) {
	out := make(map[int]*T)
	ids = utils.UniqueSlice(ids)
	if len(ids) == 0 {
		return out, nil
	}
	data, errs := loader.LoadMany(ctx, ids)()
	if err := firstError(errs); err != nil {
		return nil, err
	}
	for i, id := range ids {
		if i < len(data) && data[i] != nil {
			out[id] = data[i]
		}
	}
	return out, nil
}

func firstError(errs []error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// handleError creates array of result with the same error repeated for as many items requested
func handleError[T any](itemsLength int, err error) []*dataloader.Result[T] {
	result := make([]*dataloader.Result[T], itemsLength)
	for i := 0; i < itemsLength; i++ {
		result[i] = &dataloader.Result[T]{Error: err}
	}
	return result
}

// turns results from db into dataloader results, nil Data for missing ids
func generateLoaderResults[T any](results []T, ids []int, idOf func(*T) int) []*dataloader.Result[*T] {
	resultMap := make(map[int]*T, len(results))
	for i := range results {
		resultMap[idOf(&results[i])] = &results[i]
	}
	loaderResults := make([]*dataloader.Result[*T], 0, len(ids))
	for _, id := range ids {
		loaderResults = append(loaderResults, &dataloader.Result[*T]{Data: resultMap[id]})
	}
	return loaderResults
}

// each id has many related results
func generateLoaderArrayResults[T any](results []T, referenceIds []int, referenceOf func(*T) int) []*dataloader.Result[[]*T] {
	resultMap := make(map[int][]*T)
	for i := range results {
		ref := referenceOf(&results[i])
		resultMap[ref] = append(resultMap[ref], &results[i])
	}
	loaderResults := make([]*dataloader.Result[[]*T], 0, len(referenceIds))
	for _, id := range referenceIds {
		loaderResults = append(loaderResults, &dataloader.Result[[]*T]{Data: resultMap[id]})
	}
	return loaderResults
}
