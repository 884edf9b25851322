package config

import (
	"os"
	"strings"
	"time"
)

// HTTPPort reads PORT, 8080 by default.
func HTTPPort() string {
	if p := strings.TrimSpace(os.Getenv("PORT")); p != "" {
		return p
	}
	return "8080"
}

func IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production")
}

// CORSOrigins returns the allowed origins and whether every origin is allowed.
// Production never allows all; an empty CORS_ALLOWED_ORIGINS there means no browser access.
func CORSOrigins() ([]string, bool) {
	if !IsProduction() {
		return nil, true
	}
	return splitAndTrim(os.Getenv("CORS_ALLOWED_ORIGINS")), false
}

type RateLimitConfig struct {
	Enabled bool
	Limit   int64
	Window  time.Duration
}

// RateLimit is read from RATE_LIMIT_ENABLED, RATE_LIMIT_MAX_REQUESTS (600) and
// RATE_LIMIT_WINDOW_SECONDS (60).
func RateLimit() RateLimitConfig {
	limit := intFromEnv("RATE_LIMIT_MAX_REQUESTS", 600)
	if limit <= 0 {
		limit = 600
	}
	window := intFromEnv("RATE_LIMIT_WINDOW_SECONDS", 60)
	if window <= 0 {
		window = 60
	}
	return RateLimitConfig{
		Enabled: envBool("RATE_LIMIT_ENABLED"),
		Limit:   int64(limit),
		Window:  time.Duration(window) * time.Second,
	}
}

func splitAndTrim(csv string) []string {
	var out []string
	for _, p := range strings.Split(csv, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
