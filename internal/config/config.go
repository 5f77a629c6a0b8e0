// Package config provides environment-driven configuration for the paramkeep server.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Secret wraps a sensitive string to prevent accidental logging or marshalling.
type Secret string

// String implements fmt.Stringer, returning a redacted placeholder.
func (s Secret) String() string { return "[REDACTED]" }

// GoString implements fmt.GoStringer, returning a redacted placeholder.
func (s Secret) GoString() string { return "[REDACTED]" }

// MarshalText implements encoding.TextMarshaler, returning a redacted placeholder.
func (s Secret) MarshalText() ([]byte, error) { return []byte("[REDACTED]"), nil }

// Value returns the underlying secret string.
func (s Secret) Value() string { return string(s) }

// Config holds all application configuration values.
type Config struct {
	DatabaseURL Secret
	Port        string
	ListenHost  string
	CORSOrigins []string
	LogLevel    string
	DBMaxConns  int

	// Retention policy and pruning.
	AuditMaxRecords    int
	AuditMaxDays       int
	AuditPruneSchedule string

	AuditPageSize    int
	AuditIngestQueue int
	AuditIngestBatch int

	ResolverCacheSize int
	ResolverCacheTTL  time.Duration

	RateLimit float64
	RateBurst int
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:        Secret(envOrDefault("DATABASE_URL", "")),
		Port:               envOrDefault("PORT", "3030"),
		ListenHost:         envOrDefault("LISTEN_HOST", "127.0.0.1"),
		LogLevel:           envOrDefault("LOG_LEVEL", "info"),
		AuditPruneSchedule: envOrDefault("AUDIT_PRUNE_SCHEDULE", "@every 1h"),
	}

	ints := []struct {
		key      string
		fallback int
		dst      *int
	}{
		{"DB_MAX_CONNS", 21, &cfg.DBMaxConns},
		{"AUDIT_MAX_RECORDS", 100000, &cfg.AuditMaxRecords},
		{"AUDIT_MAX_DAYS", 90, &cfg.AuditMaxDays},
		{"AUDIT_PAGE_SIZE", 100, &cfg.AuditPageSize},
		{"AUDIT_INGEST_QUEUE", 1000, &cfg.AuditIngestQueue},
		{"AUDIT_INGEST_BATCH", 100, &cfg.AuditIngestBatch},
		{"RESOLVER_CACHE_SIZE", 4096, &cfg.ResolverCacheSize},
		{"RATE_BURST", 200, &cfg.RateBurst},
	}
	for _, v := range ints {
		n, err := strconv.Atoi(envOrDefault(v.key, strconv.Itoa(v.fallback)))
		if err != nil {
			return nil, fmt.Errorf("%s must be an integer", v.key)
		}
		*v.dst = n
	}

	ttl, err := time.ParseDuration(envOrDefault("RESOLVER_CACHE_TTL", "30s"))
	if err != nil {
		return nil, fmt.Errorf("RESOLVER_CACHE_TTL must be a duration such as 30s: %w", err)
	}
	cfg.ResolverCacheTTL = ttl

	rate, err := strconv.ParseFloat(envOrDefault("RATE_LIMIT", "100"), 64)
	if err != nil {
		return nil, fmt.Errorf("RATE_LIMIT must be a number")
	}
	cfg.RateLimit = rate

	origins := envOrDefault("CORS_ORIGINS", "http://localhost:3002")
	cfg.CORSOrigins = strings.Split(origins, ",")

	for i, o := range cfg.CORSOrigins {
		cfg.CORSOrigins[i] = strings.TrimSpace(o)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// Addr returns the listen address in host:port format.
func (c *Config) Addr() string {
	return c.ListenHost + ":" + c.Port
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}
