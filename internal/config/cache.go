package config

import (
	"strings"
	"time"
)

// CacheConfig tunes the Redis response cache in front of the read-heavy
// browse endpoints (hall and resource listings, availability lookups).
// Only the listed methods are cached and only bodies up to MaxBodyBytes;
// anything larger passes through uncached.
type CacheConfig struct {
	Enabled      bool
	Methods      map[string]bool
	TTL          time.Duration
	KeyStrategy  string
	Prefix       string
	MaxBodyBytes int
}

// LoadCacheConfig reads CACHE_* variables.  The defaults cache GET
// responses for 30 seconds, keyed on route and query string, capped at
// 1 MiB per entry.
func LoadCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled:      envBool("CACHE_ENABLED", true),
		Methods:      methodSet(envStr("CACHE_METHODS", "GET")),
		TTL:          envDur("CACHE_TTL", 30*time.Second),
		KeyStrategy:  envStr("CACHE_KEY_STRATEGY", "route_query"),
		Prefix:       envStr("CACHE_PREFIX", "cache"),
		MaxBodyBytes: envInt("CACHE_MAX_BODY_BYTES", 1<<20),
	}
}

func methodSet(csv string) map[string]bool {
	set := make(map[string]bool)
	for _, m := range strings.Split(csv, ",") {
		if m = strings.ToUpper(strings.TrimSpace(m)); m != "" {
			set[m] = true
		}
	}
	return set
}
