package config

import (
	"context"
	"fmt"
	"os"

	"github.com/bsm/redislock"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

var (
	rdb    *redis.Client
	locker *redislock.Client
)
var ctx = context.Background()

func GetRedisDB() *redis.Client {
	return rdb
}

// GetRedisLock returns nil until ConnectRedisWithRetry succeeded.
func GetRedisLock() *redislock.Client {
	return locker
}

// SetRedisClient installs an already-connected client (tests, CLI tools).
func SetRedisClient(c *redis.Client) {
	rdb = c
	if c == nil {
		locker = nil
		return
	}
	locker = redislock.New(c)
}

// ProductCacheKey is the read-cache key for a product document.
func ProductCacheKey(tenantId string, productId int) string {
	return fmt.Sprintf("product:%s:%d", tenantId, productId)
}

func RemoveRedisKey(keys ...string) error {
	if rdb == nil || len(keys) == 0 {
		return nil
	}
	_, err := rdb.Del(ctx, keys...).Result()
	return err
}

func init() {
	_ = godotenv.Load()
}

// ConnectRedisWithRetry connects and sets the global Redis client + lock client.
// When REDIS_ADDRESS is unset Redis stays disabled: locks become best-effort no-ops
// and cache invalidation is skipped.
func ConnectRedisWithRetry() {
	redisAddr := os.Getenv("REDIS_ADDRESS")
	if redisAddr == "" {
		GetLogger().Warn("redis.disabled: REDIS_ADDRESS not set")
		return
	}

	retryUntilConnected("redis", func() error {
		client := redis.NewClient(&redis.Options{
			Addr:     redisAddr,
			Password: os.Getenv("REDIS_PASSWORD"),
			PoolSize: intFromEnv("REDIS_POOL_SIZE", 100),
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return err
		}
		SetRedisClient(client)
		return nil
	})
}
