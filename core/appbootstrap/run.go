package appbootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"warroom/api"
	"warroom/config"
	"warroom/core/seed"
	"warroom/core/store"
	"warroom/core/utils"
)

const shutdownTimeout = 15 * time.Second

func openMigrated(ctx context.Context, cfg *config.AppConfig, logger *utils.Logger) (*sql.DB, error) {
	db, err := store.NewDB(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := store.ApplyMigrations(ctx, db, logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	return db, nil
}

// Run serves the API until ctx is cancelled, then drains connections and
// stops background workers.
func Run(ctx context.Context, cfg *config.AppConfig, logger *utils.Logger) error {
	db, err := openMigrated(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	rt, err := composeRuntime(cfg, db, logger)
	if err != nil {
		return err
	}
	srv := api.NewServer(cfg, rt.serverDeps, logger)

	errCh := make(chan error, 1)
	go func() {
		// workers outlive the signal context so they can drain during shutdown
		errCh <- srv.Start(context.WithoutCancel(ctx))
	}()

	var serveErr error
	select {
	case serveErr = <-errCh:
		logger.Errorf("server stopped: %v", serveErr)
	case <-ctx.Done():
		logger.Printf("shutdown requested")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		serveErr = errors.Join(serveErr, fmt.Errorf("shutdown: %w", err))
	}
	return serveErr
}

// Migrate applies pending schema migrations and exits.
func Migrate(ctx context.Context, cfg *config.AppConfig, logger *utils.Logger) error {
	db, err := openMigrated(ctx, cfg, logger)
	if err != nil {
		return err
	}
	logger.Printf("migrations applied (%s)", cfg.DBDriver)
	return db.Close()
}

// Seed replaces all data with generated demo incidents. A zero seed picks a
// random one.
func Seed(ctx context.Context, cfg *config.AppConfig, logger *utils.Logger, randSeed uint64) (*seed.Result, error) {
	db, err := openMigrated(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	seeder := seed.NewSeeder(db, logger)
	if randSeed != 0 {
		seeder.WithSeed(randSeed)
	}
	return seeder.Run(ctx)
}
