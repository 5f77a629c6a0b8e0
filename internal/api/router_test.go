package api_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/paramkeep/paramkeep/internal/api"
	"github.com/paramkeep/paramkeep/internal/middleware"
	"github.com/paramkeep/paramkeep/internal/models"
)

type keyLookup map[string]models.Session

func (k keyLookup) GetSessionByAPIKey(_ context.Context, key string) (*models.Session, error) {
	if s, ok := k[key]; ok {
		return &s, nil
	}
	return nil, models.ErrNotFound
}

func TestRouter_AuthAndRoutes(t *testing.T) {
	svc := &mockAuditService{summaryFn: func(context.Context, models.Session) (*models.AuditSummary, error) {
		return &models.AuditSummary{}, nil
	}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := api.NewRouter(ctx, &api.RouterDeps{
		Log:         testLogger(),
		Audit:       svc,
		Sessions:    middleware.NewCachedSessionLookup(keyLookup{"pk_good": testSession}),
		CORSOrigins: []string{"http://localhost:3002"},
		Version:     "test",
		RateLimit:   1000,
		RateBurst:   1000,
	})

	if w := doRequest(h, http.MethodGet, "/api/v1/health", ""); w.Code != http.StatusOK {
		t.Errorf("health: status %d", w.Code)
	}

	if w := doRequest(h, http.MethodGet, "/api/v1/audit/summary", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated summary: status %d", w.Code)
	}

	req := newAuthedRequest(http.MethodGet, "/api/v1/audit/summary", "pk_good")
	if w := serve(h, req); w.Code != http.StatusOK {
		t.Errorf("authenticated summary: status %d", w.Code)
	}

	if w := doRequest(h, http.MethodGet, "/metrics", ""); w.Code != http.StatusOK {
		t.Errorf("metrics: status %d", w.Code)
	}
}
