package indexsync

import (
	"context"
	"time"

	"github.com/MerlinStacks/overseek-sub002/models"
	"github.com/MerlinStacks/overseek-sub002/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ProductSnapshot is the document pushed to the search index for one product.
type ProductSnapshot struct {
	TenantId      string              `json:"tenant_id"`
	ProductId     int                 `json:"product_id"`
	Name          string              `json:"name"`
	Sku           string              `json:"sku"`
	StockQuantity int                 `json:"stock_quantity"`
	Cogs          decimal.Decimal     `json:"cogs"`
	Variations    []VariationSnapshot `json:"variations"`
	// Deleted is set when the product no longer exists so the index can drop it.
	Deleted   bool      `json:"deleted,omitempty"`
	IndexedAt time.Time `json:"indexed_at"`
}

type VariationSnapshot struct {
	VariationId   int             `json:"variation_id"`
	Name          string          `json:"name"`
	Sku           string          `json:"sku"`
	StockQuantity int             `json:"stock_quantity"`
	Cogs          decimal.Decimal `json:"cogs"`
}

// BuildProductSnapshots reads the current state of the given products. Ids that no
// longer exist produce a Deleted snapshot. Output follows the order of ids.
func BuildProductSnapshots(ctx context.Context, db *gorm.DB, tenantId string, ids []int) ([]ProductSnapshot, error) {
	ids = utils.SortedUnique(ids)
	if len(ids) == 0 {
		return []ProductSnapshot{}, nil
	}
	products, err := utils.FetchModelsByIds(ctx, db, tenantId, ids, func(p *models.Product) int { return p.ID })
	if err != nil {
		return nil, err
	}
	variations, err := models.LoadVariationsByProduct(ctx, db, tenantId, ids)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	snapshots := make([]ProductSnapshot, 0, len(ids))
	for _, id := range ids {
		p, ok := products[id]
		if !ok {
			snapshots = append(snapshots, ProductSnapshot{TenantId: tenantId, ProductId: id, Deleted: true, IndexedAt: now, Variations: []VariationSnapshot{}})
			continue
		}
		s := ProductSnapshot{
			TenantId:      tenantId,
			ProductId:     p.ID,
			Name:          p.Name,
			Sku:           p.Sku,
			StockQuantity: p.StockQuantity,
			Cogs:          p.Cogs,
			Variations:    []VariationSnapshot{},
			IndexedAt:     now,
		}
		for _, v := range variations[id] {
			s.Variations = append(s.Variations, VariationSnapshot{
				VariationId:   v.VariationId,
				Name:          v.Name,
				Sku:           v.Sku,
				StockQuantity: v.StockQuantity,
				Cogs:          v.Cogs,
			})
		}
		snapshots = append(snapshots, s)
	}
	return snapshots, nil
}
