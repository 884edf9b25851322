package indexsync

import (
	"github.com/MerlinStacks/overseek-sub002/config"
)

// CacheInvalidator removes cached product documents. Defaults to Redis.
type CacheInvalidator func(keys ...string) error

func redisInvalidator(keys ...string) error {
	return config.RemoveRedisKey(keys...)
}

func productCacheKeys(tenantId string, productIds []int) []string {
	keys := make([]string, 0, len(productIds))
	for _, id := range productIds {
		keys = append(keys, config.ProductCacheKey(tenantId, id))
	}
	return keys
}
