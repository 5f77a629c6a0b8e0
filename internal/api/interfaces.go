package api

import (
	"context"

	"github.com/paramkeep/paramkeep/internal/domain"
)

// Handler dependencies are the shared domain interfaces.
type (
	AuditService   = domain.AuditService
	AuditIngester  = domain.AuditIngester
	AuditPruner    = domain.AuditPruner
	CatalogService = domain.CatalogService
)

// HealthChecker reports whether the database is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// SchemaChecker reports whether the database schema is current.
type SchemaChecker func(ctx context.Context) error
