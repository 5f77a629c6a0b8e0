package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

func (c *Config) validate() error {
	for _, check := range []func() error{
		c.validateDatabase,
		c.validateNetwork,
		c.validateCORS,
		c.validateAudit,
		c.validateLimits,
	} {
		if err := check(); err != nil {
			return err
		}
	}

	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("LOG_LEVEL is not a valid level: %w", err)
	}

	return nil
}

func (c *Config) validateDatabase() error {
	if c.DatabaseURL.Value() == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	dbURL, err := url.Parse(c.DatabaseURL.Value())
	if err != nil {
		return fmt.Errorf("DATABASE_URL is not a valid URL: %w", err)
	}

	if dbURL.Scheme != "postgres" && dbURL.Scheme != "postgresql" {
		return fmt.Errorf("DATABASE_URL scheme must be postgres:// or postgresql://")
	}

	if dbURL.Hostname() == "" {
		return fmt.Errorf("DATABASE_URL must include a host")
	}

	dbHost := dbURL.Hostname()
	if dbHost != "localhost" && dbHost != "127.0.0.1" && dbHost != "::1" {
		sslmode := dbURL.Query().Get("sslmode")
		if sslmode == "disable" {
			return fmt.Errorf("DATABASE_URL sslmode=disable is not allowed for non-local host %q", dbHost)
		}
	}

	if c.DBMaxConns < 2 || c.DBMaxConns > 500 {
		return fmt.Errorf("DB_MAX_CONNS must be between 2 and 500")
	}

	return nil
}

func (c *Config) validateNetwork() error {
	port, err := strconv.Atoi(c.Port)
	if err != nil {
		return fmt.Errorf("PORT must be a valid integer: %w", err)
	}

	if port < 1 || port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535")
	}

	// Loopback for local deployments; 0.0.0.0/:: for containers where the
	// network boundary is enforced externally.
	validHosts := map[string]bool{
		"127.0.0.1": true,
		"::1":       true,
		"localhost": true,
		"0.0.0.0":   true,
		"::":        true,
	}
	if !validHosts[c.ListenHost] {
		return fmt.Errorf("LISTEN_HOST must be a loopback address or 0.0.0.0/:: for containers (got %q)", c.ListenHost)
	}

	return nil
}

func (c *Config) validateCORS() error {
	for _, origin := range c.CORSOrigins {
		if origin == "*" {
			return fmt.Errorf("CORS_ORIGINS must not contain wildcard '*'")
		}
		if strings.ContainsAny(origin, "*?[]") {
			return fmt.Errorf("CORS_ORIGINS must not contain glob characters (*?[]), got %q", origin)
		}
		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("CORS_ORIGINS contains invalid origin %q (must have scheme and host)", origin)
		}
	}

	return nil
}

func (c *Config) validateAudit() error {
	if c.AuditMaxRecords < 0 {
		return fmt.Errorf("AUDIT_MAX_RECORDS must not be negative")
	}
	if c.AuditMaxDays < 0 {
		return fmt.Errorf("AUDIT_MAX_DAYS must not be negative")
	}
	if _, err := cron.ParseStandard(c.AuditPruneSchedule); err != nil {
		return fmt.Errorf("AUDIT_PRUNE_SCHEDULE is not a valid cron spec: %w", err)
	}
	if c.AuditPageSize < 1 || c.AuditPageSize > 1000 {
		return fmt.Errorf("AUDIT_PAGE_SIZE must be between 1 and 1000")
	}
	if c.AuditIngestQueue < 1 {
		return fmt.Errorf("AUDIT_INGEST_QUEUE must be positive")
	}
	if c.AuditIngestBatch < 1 || c.AuditIngestBatch > c.AuditIngestQueue {
		return fmt.Errorf("AUDIT_INGEST_BATCH must be between 1 and AUDIT_INGEST_QUEUE")
	}

	return nil
}

func (c *Config) validateLimits() error {
	if c.ResolverCacheSize < 1 {
		return fmt.Errorf("RESOLVER_CACHE_SIZE must be positive")
	}
	if c.ResolverCacheTTL <= 0 {
		return fmt.Errorf("RESOLVER_CACHE_TTL must be positive")
	}
	if c.RateLimit <= 0 || c.RateBurst < 1 {
		return fmt.Errorf("RATE_LIMIT and RATE_BURST must be positive")
	}

	return nil
}
