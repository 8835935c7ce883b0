package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type ResolutionSpan struct {
	Severity   string
	CreatedAt  time.Time
	ResolvedAt time.Time
}

type CreatedPoint struct {
	Severity  string
	CreatedAt time.Time
}

type AnalyticsStore interface {
	CountAll(ctx context.Context) (int, error)
	CountUnresolved(ctx context.Context) (int, error)
	CountBy(ctx context.Context, column string) (map[string]int, error)
	ListResolutionSpans(ctx context.Context) ([]ResolutionSpan, error)
	ListCreatedSince(ctx context.Context, since time.Time) ([]CreatedPoint, error)
}

type analyticsStore struct {
	db *sql.DB
	pg bool
}

func NewAnalyticsStore(db *sql.DB) AnalyticsStore {
	return &analyticsStore{db: db, pg: isPostgresDB(db)}
}

func (s *analyticsStore) CountAll(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM incidents`).Scan(&n)
	return n, err
}

func (s *analyticsStore) CountUnresolved(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM incidents WHERE status != 'resolved'`).Scan(&n)
	return n, err
}

// CountBy groups incidents by one of the enumerated columns.
func (s *analyticsStore) CountBy(ctx context.Context, column string) (map[string]int, error) {
	switch column {
	case "severity", "source", "status":
	default:
		return nil, fmt.Errorf("unsupported group column %q", column)
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT %s, COUNT(*) FROM incidents GROUP BY %s`, column, column))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[string]int{}
	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return nil, err
		}
		res[key] = n
	}
	return res, rows.Err()
}

func (s *analyticsStore) ListResolutionSpans(ctx context.Context) ([]ResolutionSpan, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT severity, created_at, resolved_at FROM incidents WHERE resolved_at IS NOT NULL`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []ResolutionSpan
	for rows.Next() {
		var sp ResolutionSpan
		if err := rows.Scan(&sp.Severity, &sp.CreatedAt, &sp.ResolvedAt); err != nil {
			return nil, err
		}
		sp.CreatedAt = sp.CreatedAt.UTC()
		sp.ResolvedAt = sp.ResolvedAt.UTC()
		res = append(res, sp)
	}
	return res, rows.Err()
}

func (s *analyticsStore) ListCreatedSince(ctx context.Context, since time.Time) ([]CreatedPoint, error) {
	q := boundDB{q: s.db, pg: s.pg}
	rows, err := q.query(ctx, `
		SELECT severity, created_at FROM incidents WHERE created_at >= ? ORDER BY created_at ASC, id ASC`, since.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []CreatedPoint
	for rows.Next() {
		var p CreatedPoint
		if err := rows.Scan(&p.Severity, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.CreatedAt = p.CreatedAt.UTC()
		res = append(res, p)
	}
	return res, rows.Err()
}
