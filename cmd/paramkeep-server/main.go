// Command paramkeep-server runs the paramkeep API: the audit log query
// engine, the catalog it audits, and the live audit stream.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/paramkeep/paramkeep/internal/api"
	"github.com/paramkeep/paramkeep/internal/config"
	"github.com/paramkeep/paramkeep/internal/db"
	"github.com/paramkeep/paramkeep/internal/db/migrations"
	"github.com/paramkeep/paramkeep/internal/dbpool"
	"github.com/paramkeep/paramkeep/internal/middleware"
	"github.com/paramkeep/paramkeep/internal/models"
	"github.com/paramkeep/paramkeep/internal/service"
	"github.com/paramkeep/paramkeep/internal/store"
	"github.com/paramkeep/paramkeep/internal/ws"
)

const shutdownTimeout = 15 * time.Second

func main() {
	root := &cobra.Command{
		Use:          "paramkeep-server",
		Short:        "paramkeep API server",
		Version:      config.Version,
		SilenceUsage: true,
	}
	root.AddCommand(newServeCmd(), newMigrateCmd(), newBootstrapCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(level string) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	if lvl, err := logrus.ParseLevel(level); err == nil {
		log.SetLevel(lvl)
	}
	return log
}

// setup loads the configuration and opens the pool.
func setup(ctx context.Context) (*config.Config, *logrus.Logger, *dbpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("loading config: %w", err)
	}
	log := newLogger(cfg.LogLevel)

	pool, err := dbpool.NewPool(ctx, cfg.DatabaseURL.Value(), dbpool.Options{MaxConns: int32(cfg.DBMaxConns)}) //nolint:gosec // bounded by validation.
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connecting to database: %w", err)
	}
	return cfg, log, pool, nil
}

func newServeCmd() *cobra.Command {
	var skipMigrations bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, skipMigrations)
		},
	}
	cmd.Flags().BoolVar(&skipMigrations, "skip-migrations", false, "Do not apply pending migrations on start")
	return cmd
}

func serve(ctx context.Context, skipMigrations bool) error {
	cfg, log, pool, err := setup(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	if !skipMigrations {
		if err := db.RunMigrations(ctx, pool, log, migrations.FS); err != nil {
			return err
		}
	}

	base := store.Base{Pool: pool, Log: log}
	auditStore := store.NewAuditStore(base)
	policy := models.RetentionPolicy{MaxRecords: cfg.AuditMaxRecords, MaxDays: cfg.AuditMaxDays}

	resolver := service.NewCachedResolver(store.NewResolverStore(base), cfg.ResolverCacheSize, cfg.ResolverCacheTTL)
	sessions := middleware.NewCachedSessionLookup(store.NewOrgStore(pool))
	catalog := service.NewCatalogService(store.NewCatalogStore(base), service.OrgInvalidators{resolver, sessions}, log)

	engine := service.NewAuditEngine(auditStore, resolver, policy, cfg.AuditPageSize, log)
	worker := service.NewAuditWorker(auditStore, log, service.AuditWorkerOptions{
		QueueSize: cfg.AuditIngestQueue,
		BatchSize: cfg.AuditIngestBatch,
	})
	pruner := service.NewRetentionPruner(auditStore, policy, cfg.AuditPruneSchedule, log)
	hub := ws.NewHub(log)

	if err := pruner.Start(); err != nil {
		return err
	}
	defer pruner.Stop()

	if err := db.NewNotifyBridge(log, pool, hub, resolver, sessions).Start(ctx); err != nil {
		return err
	}

	handler := api.NewRouter(ctx, &api.RouterDeps{
		Log:         log,
		DB:          pool,
		Schema:      schemaChecker(pool),
		Hub:         hub,
		Audit:       engine,
		Ingest:      worker,
		Pruner:      pruner,
		Catalog:     catalog,
		Sessions:    sessions,
		CORSOrigins: cfg.CORSOrigins,
		Version:     config.Version,
		RateLimit:   cfg.RateLimit,
		RateBurst:   cfg.RateBurst,
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		worker.Run(gctx)
		return nil
	})
	g.Go(func() error {
		log.WithFields(logrus.Fields{"addr": srv.Addr, "version": config.Version}).Info("paramkeep server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		hub.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// schemaChecker reports an error while the applied schema is behind the
// migrations embedded in this binary.
func schemaChecker(pool *dbpool.Pool) api.SchemaChecker {
	want := int64(db.SchemaVersion())
	return func(ctx context.Context) error {
		got, err := db.AppliedVersion(ctx, pool, migrations.FS)
		if err != nil {
			return err
		}
		if got < want {
			return fmt.Errorf("schema version %d, want %d", got, want)
		}
		return nil
	}
}

func newMigrateCmd() *cobra.Command {
	var status bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			_, log, pool, err := setup(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			if !status {
				if err := db.RunMigrations(ctx, pool, log, migrations.FS); err != nil {
					return err
				}
			}

			states, err := db.MigrationStatus(ctx, pool, migrations.FS)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, s := range states {
				mark := "pending"
				if s.Applied {
					mark = "applied"
				}
				fmt.Fprintf(out, "%03d  %-8s %s\n", s.Version, mark, s.Path)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&status, "status", false, "Only show migration status")
	return cmd
}

func newBootstrapCmd() *cobra.Command {
	var orgName, adminName string
	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Create an organization with its default environment and an admin user",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			_, log, pool, err := setup(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := db.RunMigrations(ctx, pool, log, migrations.FS); err != nil {
				return err
			}

			org, admin, err := store.NewOrgStore(pool).Bootstrap(ctx, orgName, adminName)
			if err != nil {
				return err
			}

			log.WithFields(logrus.Fields{"org_id": org.ID, "admin": admin.Name}).Info("organization bootstrapped")
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Organization: %s (%s)\n", org.Name, org.ID)
			fmt.Fprintf(out, "Admin user:   %s\n", admin.Name)
			fmt.Fprintf(out, "API key:      %s\n", admin.APIKey)
			fmt.Fprintln(out, "Store the key now; it is not shown again.")
			return nil
		},
	}
	cmd.Flags().StringVar(&orgName, "org", "", "Organization name")
	cmd.Flags().StringVar(&adminName, "admin", "admin", "Admin user name")
	_ = cmd.MarkFlagRequired("org")
	return cmd
}
