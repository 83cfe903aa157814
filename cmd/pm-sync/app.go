package main

import (
	"context"
	"fmt"
	"os"

	"github.com/nucleus/pm-sync/internal/config"
	"github.com/nucleus/pm-sync/internal/database"
	"github.com/nucleus/pm-sync/internal/endpoint"
	"github.com/nucleus/pm-sync/internal/logging"
	"github.com/nucleus/pm-sync/internal/orchestration"
	"github.com/nucleus/pm-sync/internal/reconcile"

	_ "github.com/nucleus/pm-sync/pkg/connector"
)

// app holds the wired components shared by every command.
type app struct {
	cfg     *config.Config
	db      *database.Client
	manager *orchestration.Manager
	engine  *reconcile.Engine
}

// bootstrap loads configuration, opens the store and wires the manager and
// engine. migrate forces migrations regardless of database.auto_migrate.
func bootstrap(ctx context.Context, migrate bool) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
		Output:    os.Stderr,
	})

	enc, err := config.NewCredentialEncryptor(cfg.Security.EncryptionSecret)
	if err != nil {
		return nil, err
	}
	db, err := database.NewClient(ctx, database.Config{
		Driver:       cfg.Database.Driver,
		DSN:          cfg.Database.DSN,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	}, database.WithCipher(enc))
	if err != nil {
		return nil, err
	}
	if migrate || cfg.Database.AutoMigrate {
		if err := db.Migrate(); err != nil {
			db.Close()
			return nil, err
		}
	}
	if err := seedServices(ctx, db, cfg.Services); err != nil {
		db.Close()
		return nil, err
	}

	manager := orchestration.NewManager(db, orchestration.WithConcurrency(cfg.Sync.Concurrency))
	engine := reconcile.NewEngine(db, manager,
		reconcile.WithWorkItemLimit(cfg.Sync.WorkItemLimit),
		reconcile.WithProjectLimit(cfg.Sync.ProjectLimit),
		reconcile.WithConcurrency(cfg.Sync.Concurrency),
	)
	return &app{cfg: cfg, db: db, manager: manager, engine: engine}, nil
}

func (a *app) Close(ctx context.Context) {
	if err := a.manager.Close(ctx); err != nil {
		logging.Warn().Err(err).Msg("failed to disconnect services")
	}
	if err := a.db.Close(); err != nil {
		logging.Warn().Err(err).Msg("failed to close database")
	}
}

// connectEnabled connects every enabled service, logging failures.
func (a *app) connectEnabled(ctx context.Context) error {
	services, err := a.db.ListServices(ctx, true)
	if err != nil {
		return err
	}
	for _, svc := range services {
		if _, err := a.manager.ConnectService(ctx, svc.ID); err != nil {
			logging.Warn().Err(err).Str("service_id", svc.ID).Msg("service unavailable at startup")
		}
	}
	return nil
}

// seedServices creates configured services whose id is not stored yet.
func seedServices(ctx context.Context, db *database.Client, seeds []config.ServiceSeed) error {
	for _, seed := range seeds {
		existing, err := db.GetService(ctx, seed.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}
		_, err = db.CreateService(ctx, &database.Service{
			ID:                seed.ID,
			ServiceType:       endpoint.ServiceType(seed.Type),
			Name:              seed.Name,
			Endpoint:          seed.Endpoint,
			Credentials:       seed.Credentials,
			Enabled:           seed.Enabled,
			RequestsPerMinute: seed.RequestsPerMinute,
			RequestsPerHour:   seed.RequestsPerHour,
		})
		if err != nil {
			return fmt.Errorf("failed to seed service %s: %w", seed.ID, err)
		}
		logging.Info().Str("service_id", seed.ID).Str("service_type", seed.Type).Msg("seeded service")
	}
	return nil
}
