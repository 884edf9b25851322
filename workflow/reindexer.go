package workflow

import (
	"context"
)

// Reindexer publishes product documents after commit. Implemented by indexsync.Dispatcher.
type Reindexer interface {
	IndexProducts(ctx context.Context, tenantId string, productIds []int)
	IndexAllProducts(ctx context.Context, tenantId string) (int, error)
}

type noopReindexer struct{}

func (noopReindexer) IndexProducts(ctx context.Context, tenantId string, productIds []int) {}

func (noopReindexer) IndexAllProducts(ctx context.Context, tenantId string) (int, error) {
	return 0, nil
}

func reindexerOrNoop(r Reindexer) Reindexer {
	if r == nil {
		return noopReindexer{}
	}
	return r
}
