package store

import (
	"context"
	"database/sql"
	"time"
)

type AlertConfig struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Severity      string    `json:"severity"`
	Threshold     int       `json:"threshold"`
	WindowMinutes int       `json:"window_minutes"`
	Enabled       bool      `json:"enabled"`
	CreatedAt     time.Time `json:"created_at"`
}

type AlertsStore interface {
	ListAlertConfigs(ctx context.Context) ([]AlertConfig, error)
	CreateAlertConfig(ctx context.Context, cfg *AlertConfig) (int64, error)
}

type alertsStore struct {
	db *sql.DB
	pg bool
}

func NewAlertsStore(db *sql.DB) AlertsStore {
	return &alertsStore{db: db, pg: isPostgresDB(db)}
}

func (s *alertsStore) ListAlertConfigs(ctx context.Context) ([]AlertConfig, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, severity, threshold, window_minutes, enabled, created_at
		FROM alert_configs ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []AlertConfig{}
	for rows.Next() {
		var c AlertConfig
		if err := rows.Scan(&c.ID, &c.Name, &c.Severity, &c.Threshold, &c.WindowMinutes, &c.Enabled, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.CreatedAt = c.CreatedAt.UTC()
		res = append(res, c)
	}
	return res, rows.Err()
}

func (s *alertsStore) CreateAlertConfig(ctx context.Context, cfg *AlertConfig) (int64, error) {
	if cfg.CreatedAt.IsZero() {
		cfg.CreatedAt = time.Now().UTC()
	}
	q := boundDB{q: s.db, pg: s.pg}
	id, err := q.insertID(ctx, `
		INSERT INTO alert_configs(name, severity, threshold, window_minutes, enabled, created_at)
		VALUES(?,?,?,?,?,?)`,
		cfg.Name, cfg.Severity, cfg.Threshold, cfg.WindowMinutes, cfg.Enabled, cfg.CreatedAt.UTC())
	if err != nil {
		return 0, err
	}
	cfg.ID = id
	return id, nil
}
