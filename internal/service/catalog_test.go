package service

import (
	"context"
	"errors"
	"testing"

	"github.com/paramkeep/paramkeep/internal/models"
)

func TestCatalogService_CreateEnvironmentValidates(t *testing.T) {
	called := false
	store := &mockCatalogStore{
		createEnvironment: func(_ context.Context, _ models.Session, req models.CreateNamedRequest) (*models.Environment, error) {
			called = true
			return &models.Environment{ID: "env-1", Name: req.Name}, nil
		},
	}
	svc := NewCatalogService(store, nil, quietLogger())

	if _, err := svc.CreateEnvironment(context.Background(), testSession, models.CreateNamedRequest{}); !errors.Is(err, models.ErrMissingName) {
		t.Fatalf("err = %v, want ErrMissingName", err)
	}
	if called {
		t.Fatal("store called for invalid request")
	}

	env, err := svc.CreateEnvironment(context.Background(), testSession, models.CreateNamedRequest{Name: "staging"})
	if err != nil {
		t.Fatalf("CreateEnvironment: %v", err)
	}
	if env.Name != "staging" {
		t.Errorf("name = %q, want staging", env.Name)
	}
}

func TestCatalogService_DeleteInvalidatesCache(t *testing.T) {
	cache := &mockInvalidator{}
	store := &mockCatalogStore{
		deleteEnvironment: func(_ context.Context, _ models.Session, name string) error {
			if name == "missing" {
				return &models.NotFoundError{Kind: models.KindEnvironment, Name: name}
			}
			return nil
		},
	}
	svc := NewCatalogService(store, cache, quietLogger())

	if err := svc.DeleteEnvironment(context.Background(), testSession, "missing"); err == nil {
		t.Fatal("expected error")
	}
	if len(cache.orgs) != 0 {
		t.Fatalf("invalidated on failed delete: %v", cache.orgs)
	}

	if err := svc.DeleteEnvironment(context.Background(), testSession, "staging"); err != nil {
		t.Fatalf("DeleteEnvironment: %v", err)
	}
	if len(cache.orgs) != 1 || cache.orgs[0] != "org-1" {
		t.Errorf("invalidated = %v, want [org-1]", cache.orgs)
	}
}

func TestCatalogService_CreateUserDefaultsKind(t *testing.T) {
	var got models.CreateUserRequest
	store := &mockCatalogStore{
		createUser: func(_ context.Context, _ models.Session, req models.CreateUserRequest) (*models.CreatedUser, error) {
			got = req
			return &models.CreatedUser{User: models.User{Name: req.Name, Kind: req.Kind}, APIKey: "k"}, nil
		},
	}
	svc := NewCatalogService(store, nil, quietLogger())

	if _, err := svc.CreateUser(context.Background(), testSession, models.CreateUserRequest{Name: "ci"}); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if got.Kind != models.UserKindServiceAccount {
		t.Errorf("kind = %q, want %q", got.Kind, models.UserKindServiceAccount)
	}

	if _, err := svc.CreateUser(context.Background(), testSession, models.CreateUserRequest{Name: "x", Kind: "robot"}); !errors.Is(err, models.ErrInvalidKind) {
		t.Errorf("err = %v, want ErrInvalidKind", err)
	}
}
