package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"

	"warroom/core/utils"
)

//go:embed migrations/postgres/*.sql
var postgresMigrations embed.FS

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS incidents (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		description TEXT,
		severity TEXT NOT NULL CHECK (severity IN ('critical','high','medium','low')),
		status TEXT NOT NULL DEFAULT 'open' CHECK (status IN ('open','investigating','resolved')),
		source TEXT NOT NULL CHECK (source IN ('monitoring','user_report','automated','external')),
		assigned_to TEXT,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		resolved_at TIMESTAMP
	);`,
	`CREATE INDEX IF NOT EXISTS idx_incidents_severity ON incidents(severity);`,
	`CREATE INDEX IF NOT EXISTS idx_incidents_status ON incidents(status);`,
	`CREATE INDEX IF NOT EXISTS idx_incidents_source ON incidents(source);`,
	`CREATE INDEX IF NOT EXISTS idx_incidents_created_at ON incidents(created_at);`,
	`CREATE TABLE IF NOT EXISTS timeline_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		incident_id INTEGER NOT NULL REFERENCES incidents(id) ON DELETE CASCADE,
		action TEXT NOT NULL CHECK (action IN ('created','status_change','severity_change','assigned','comment')),
		details TEXT,
		actor TEXT NOT NULL DEFAULT 'system',
		created_at TIMESTAMP NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_timeline_incident ON timeline_events(incident_id);`,
	`CREATE TABLE IF NOT EXISTS alert_configs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		severity TEXT NOT NULL CHECK (severity IN ('critical','high','medium','low')),
		threshold INTEGER NOT NULL CHECK (threshold > 0),
		window_minutes INTEGER NOT NULL CHECK (window_minutes > 0),
		enabled INTEGER NOT NULL DEFAULT 1,
		created_at TIMESTAMP NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS activity_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		request_id TEXT NOT NULL DEFAULT '',
		method TEXT NOT NULL,
		path TEXT NOT NULL,
		status_code INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		role TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_activity_created_at ON activity_log(created_at);`,
}

func ApplyMigrations(ctx context.Context, db *sql.DB, logger *utils.Logger) error {
	if isPostgresDB(db) {
		return applyGooseMigrations(ctx, db, logger)
	}
	return applySQLiteMigrations(ctx, db, logger)
}

func applySQLiteMigrations(ctx context.Context, db *sql.DB, logger *utils.Logger) error {
	if logger != nil {
		logger.Printf("applying sqlite migrations")
	}
	for i, stmt := range migrations {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite migration #%d failed: %w", i+1, err)
		}
	}
	if logger != nil {
		logger.Printf("sqlite migrations applied")
	}
	return nil
}

func applyGooseMigrations(ctx context.Context, db *sql.DB, logger *utils.Logger) error {
	goose.SetBaseFS(postgresMigrations)
	defer goose.SetBaseFS(nil)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	if logger != nil {
		goose.SetLogger(gooseLogger{logger: logger})
	}
	if err := goose.UpContext(ctx, db, "migrations/postgres"); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}

type gooseLogger struct {
	logger *utils.Logger
}

func (g gooseLogger) Fatalf(format string, v ...any) { g.logger.Errorf(format, v...) }
func (g gooseLogger) Printf(format string, v ...any) { g.logger.Printf(format, v...) }
