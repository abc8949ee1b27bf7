// Command seed fills the postgres schema with a demo catalog for one tenant.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/laas-platform/laas/internal/config"
	"github.com/laas-platform/laas/internal/seed"
	"github.com/laas-platform/laas/migrations"
	pkgconfig "github.com/laas-platform/laas/pkg/config"
	"github.com/laas-platform/laas/pkg/database"
	"github.com/laas-platform/laas/pkg/logger"
)

type seedConfig struct {
	TenantID string `env:"SEED_TENANT_ID" envDefault:"6f1c2d3e-0000-4000-8000-000000000001"`
	Listings int    `env:"SEED_LISTINGS" envDefault:"200"`
	Seed     uint64 `env:"SEED_RANDOM" envDefault:"1"`
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	var sc seedConfig
	if err := pkgconfig.Load(&sc); err != nil {
		slog.Error("failed to load seed config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log := logger.New("search-seed", cfg.LogLevel)

	tenant, err := uuid.Parse(sc.TenantID)
	if err != nil {
		log.Error("invalid SEED_TENANT_ID", slog.String("value", sc.TenantID))
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres(), log)
	if err != nil {
		log.Error("failed to connect to postgres", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	if err := database.RunMigrations(ctx, pool, migrations.FS, log); err != nil {
		log.Error("failed to run migrations", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ds := seed.Generate(seed.Plan{TenantID: tenant, Listings: sc.Listings, Seed: sc.Seed})
	if _, err := seed.NewWriter(pool, log).Write(ctx, ds); err != nil {
		log.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log.Info("seed complete", slog.String("tenant_id", tenant.String()))
}
