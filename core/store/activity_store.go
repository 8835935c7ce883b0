package store

import (
	"context"
	"database/sql"
	"time"
)

type ActivityEntry struct {
	ID         int64     `json:"id"`
	RequestID  string    `json:"request_id"`
	Method     string    `json:"method"`
	Path       string    `json:"path"`
	StatusCode int       `json:"status_code"`
	DurationMS int64     `json:"duration_ms"`
	Role       string    `json:"role"`
	CreatedAt  time.Time `json:"created_at"`
}

type ActivityStore interface {
	LogActivity(ctx context.Context, entry *ActivityEntry) error
	ListActivity(ctx context.Context, limit int) ([]ActivityEntry, error)
	DeleteActivityBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type activityStore struct {
	db *sql.DB
	pg bool
}

func NewActivityStore(db *sql.DB) ActivityStore {
	return &activityStore{db: db, pg: isPostgresDB(db)}
}

func (s *activityStore) LogActivity(ctx context.Context, entry *ActivityEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	q := boundDB{q: s.db, pg: s.pg}
	id, err := q.insertID(ctx, `
		INSERT INTO activity_log(request_id, method, path, status_code, duration_ms, role, created_at)
		VALUES(?,?,?,?,?,?,?)`,
		entry.RequestID, entry.Method, entry.Path, entry.StatusCode, entry.DurationMS, entry.Role, entry.CreatedAt.UTC())
	if err != nil {
		return err
	}
	entry.ID = id
	return nil
}

func (s *activityStore) ListActivity(ctx context.Context, limit int) ([]ActivityEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	q := boundDB{q: s.db, pg: s.pg}
	rows, err := q.query(ctx, `
		SELECT id, request_id, method, path, status_code, duration_ms, role, created_at
		FROM activity_log ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []ActivityEntry{}
	for rows.Next() {
		var e ActivityEntry
		if err := rows.Scan(&e.ID, &e.RequestID, &e.Method, &e.Path, &e.StatusCode, &e.DurationMS, &e.Role, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.CreatedAt = e.CreatedAt.UTC()
		res = append(res, e)
	}
	return res, rows.Err()
}

func (s *activityStore) DeleteActivityBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	q := boundDB{q: s.db, pg: s.pg}
	res, err := q.exec(ctx, `DELETE FROM activity_log WHERE created_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
