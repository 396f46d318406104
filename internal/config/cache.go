package config

import "time"

// CacheConfig defines settings for the response cache middleware.  Only the
// rewards catalog is cached: it is identical for every caller and changes
// rarely.  Handlers purge the prefix after every catalog mutation.
// MaxBodyBytes caps the size of a cached response.
type CacheConfig struct {
	Enabled      bool          `envconfig:"CACHE_ENABLED" default:"true"`
	TTL          time.Duration `envconfig:"CACHE_TTL" default:"60s"`
	KeyStrategy  string        `envconfig:"CACHE_KEY_STRATEGY" default:"route_query"`
	Prefix       string        `envconfig:"CACHE_PREFIX" default:"cache:rewards"`
	MaxBodyBytes int           `envconfig:"CACHE_MAX_BODY_BYTES" default:"1048576"`
}
