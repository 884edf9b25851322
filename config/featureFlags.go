package config

import (
	"time"
)

// ReprocessRetention is how long a finished reprocess run stays pollable.
//
// Set via env:
// - REPROCESS_RETENTION_SECONDS=600
func ReprocessRetention() time.Duration {
	secs := intFromEnv("REPROCESS_RETENTION_SECONDS", 600)
	if secs <= 0 {
		secs = 600
	}
	return time.Duration(secs) * time.Second
}

// ReprocessUseRedisLock additionally guards reprocess runs with a Redis lock so two
// instances cannot repair the same tenant at once.
//
// Set via env:
// - REPROCESS_USE_REDIS_LOCK=true
func ReprocessUseRedisLock() bool {
	return envBool("REPROCESS_USE_REDIS_LOCK")
}

// ReindexQueueSize bounds the in-process reindex queue.
//
// Set via env:
// - REINDEX_QUEUE_SIZE=256
func ReindexQueueSize() int {
	n := intFromEnv("REINDEX_QUEUE_SIZE", 256)
	if n <= 0 {
		return 256
	}
	return n
}

// SkipMigrations disables AutoMigrate on startup (run it as a separate job instead).
func SkipMigrations() bool {
	return envBool("SKIP_MIGRATIONS")
}
