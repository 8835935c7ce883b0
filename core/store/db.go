package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/Songmu/retry"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"warroom/config"
	"warroom/core/utils"
)

const (
	driverSQLite   = "sqlite"
	driverPostgres = "pgx"
)

func NewDB(cfg *config.AppConfig, logger *utils.Logger) (*sql.DB, error) {
	if cfg.IsPostgres() {
		return openPostgres(cfg, logger)
	}
	return openSQLite(cfg, logger)
}

func openSQLite(cfg *config.AppConfig, logger *utils.Logger) (*sql.DB, error) {
	path := strings.TrimSpace(cfg.DBPath)
	if path == "" {
		return nil, fmt.Errorf("db_path is required for sqlite")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite", path)
	db, err := sql.Open(driverSQLite, dsn)
	if err != nil {
		return nil, err
	}
	// single writer: create/update transactions serialize on this connection
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	if logger != nil {
		logger.Printf("sqlite database opened at %s", path)
	}
	return db, nil
}

func openPostgres(cfg *config.AppConfig, logger *utils.Logger) (*sql.DB, error) {
	db, err := sql.Open(driverPostgres, cfg.DBURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	err = retry.Retry(5, 2*time.Second, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			if logger != nil {
				logger.Warnf("postgres ping failed: %v", err)
			}
			return err
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if logger != nil {
		logger.Printf("postgres connection established")
	}
	return db, nil
}

func isPostgresDB(db *sql.DB) bool {
	if db == nil {
		return false
	}
	_, ok := db.Driver().(*stdlib.Driver)
	return ok
}

// rebind rewrites ? placeholders to $n for postgres.
func rebind(pg bool, query string) string {
	if !pg || !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type boundDB struct {
	q  queryer
	pg bool
}

func (b boundDB) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return b.q.ExecContext(ctx, rebind(b.pg, query), args...)
}

func (b boundDB) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return b.q.QueryContext(ctx, rebind(b.pg, query), args...)
}

func (b boundDB) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return b.q.QueryRowContext(ctx, rebind(b.pg, query), args...)
}

// insertID runs an INSERT ... RETURNING id and returns the generated id.
func (b boundDB) insertID(ctx context.Context, query string, args ...any) (int64, error) {
	var id int64
	if err := b.queryRow(ctx, query+" RETURNING id", args...).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func nullableString(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableTime(v *time.Time) any {
	if v == nil {
		return nil
	}
	return v.UTC()
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func timePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time.UTC()
	return &t
}

var dataTables = []string{"timeline_events", "incidents", "alert_configs", "activity_log"}

// ResetData empties every domain table, children first, in one transaction.
func ResetData(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, table := range dataTables {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			tx.Rollback()
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	return tx.Commit()
}
