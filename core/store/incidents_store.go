package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrNotFound = errors.New("not found")

type Incident struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	Severity    string     `json:"severity"`
	Status      string     `json:"status"`
	Source      string     `json:"source"`
	AssignedTo  *string    `json:"assigned_to"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	ResolvedAt  *time.Time `json:"resolved_at"`
}

type TimelineEvent struct {
	ID         int64     `json:"id"`
	IncidentID int64     `json:"incident_id"`
	Action     string    `json:"action"`
	Details    string    `json:"details"`
	Actor      string    `json:"actor"`
	CreatedAt  time.Time `json:"created_at"`
}

type SortColumn string

const (
	SortCreatedAt SortColumn = "created_at"
	SortSeverity  SortColumn = "severity"
	SortUpdatedAt SortColumn = "updated_at"
	SortTitle     SortColumn = "title"
)

func (c SortColumn) orderExpr() string {
	switch c {
	case SortSeverity:
		return "CASE severity WHEN 'critical' THEN 4 WHEN 'high' THEN 3 WHEN 'medium' THEN 2 ELSE 1 END"
	case SortUpdatedAt:
		return "updated_at"
	case SortTitle:
		return "title"
	default:
		return "created_at"
	}
}

type IncidentFilter struct {
	Severity string
	Status   string
	Source   string
	Sort     SortColumn
	Asc      bool
	Limit    int
	Offset   int
}

// IncidentMutator edits cur in place and returns the timeline events to append.
// Returning an error aborts the transaction.
type IncidentMutator func(cur *Incident) ([]TimelineEvent, error)

type IncidentsStore interface {
	CreateIncident(ctx context.Context, incident *Incident, first *TimelineEvent) (int64, error)
	UpdateIncident(ctx context.Context, id int64, mutate IncidentMutator) (*Incident, []TimelineEvent, error)
	GetIncident(ctx context.Context, id int64) (*Incident, error)
	ListIncidents(ctx context.Context, filter IncidentFilter) ([]Incident, error)
	CountIncidents(ctx context.Context, filter IncidentFilter) (int, error)
	ListIncidentTimeline(ctx context.Context, incidentID int64) ([]TimelineEvent, error)
}

type incidentsStore struct {
	db *sql.DB
	pg bool
}

func NewIncidentsStore(db *sql.DB) IncidentsStore {
	return &incidentsStore{db: db, pg: isPostgresDB(db)}
}

const incidentColumns = `id, title, description, severity, status, source, assigned_to, created_at, updated_at, resolved_at`

func (s *incidentsStore) CreateIncident(ctx context.Context, incident *Incident, first *TimelineEvent) (int64, error) {
	now := time.Now().UTC()
	if incident.CreatedAt.IsZero() {
		incident.CreatedAt = now
	}
	if incident.UpdatedAt.IsZero() {
		incident.UpdatedAt = incident.CreatedAt
	}
	if strings.TrimSpace(incident.Status) == "" {
		incident.Status = "open"
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	q := boundDB{q: tx, pg: s.pg}
	id, err := q.insertID(ctx, `
		INSERT INTO incidents(title, description, severity, status, source, assigned_to, created_at, updated_at, resolved_at)
		VALUES(?,?,?,?,?,?,?,?,?)`,
		incident.Title, nullableString(incident.Description), incident.Severity, incident.Status, incident.Source,
		nullableString(incident.AssignedTo), incident.CreatedAt.UTC(), incident.UpdatedAt.UTC(), nullableTime(incident.ResolvedAt))
	if err != nil {
		tx.Rollback()
		return 0, err
	}
	if first != nil {
		first.IncidentID = id
		if first.CreatedAt.IsZero() {
			first.CreatedAt = incident.CreatedAt
		}
		if err := insertTimelineTx(ctx, q, first); err != nil {
			tx.Rollback()
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	incident.ID = id
	return id, nil
}

func (s *incidentsStore) UpdateIncident(ctx context.Context, id int64, mutate IncidentMutator) (*Incident, []TimelineEvent, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	q := boundDB{q: tx, pg: s.pg}
	query := `SELECT ` + incidentColumns + ` FROM incidents WHERE id=?`
	if s.pg {
		query += " FOR UPDATE"
	}
	cur, err := scanIncident(q.queryRow(ctx, query, id))
	if err != nil {
		tx.Rollback()
		return nil, nil, err
	}
	if cur == nil {
		tx.Rollback()
		return nil, nil, ErrNotFound
	}
	events, err := mutate(cur)
	if err != nil {
		tx.Rollback()
		return nil, nil, err
	}
	if _, err := q.exec(ctx, `
		UPDATE incidents SET title=?, description=?, severity=?, status=?, source=?, assigned_to=?, updated_at=?, resolved_at=?
		WHERE id=?`,
		cur.Title, nullableString(cur.Description), cur.Severity, cur.Status, cur.Source, nullableString(cur.AssignedTo),
		cur.UpdatedAt.UTC(), nullableTime(cur.ResolvedAt), id); err != nil {
		tx.Rollback()
		return nil, nil, err
	}
	for i := range events {
		events[i].IncidentID = id
		if events[i].CreatedAt.IsZero() {
			events[i].CreatedAt = cur.UpdatedAt
		}
		if err := insertTimelineTx(ctx, q, &events[i]); err != nil {
			tx.Rollback()
			return nil, nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, nil, err
	}
	return cur, events, nil
}

func (s *incidentsStore) GetIncident(ctx context.Context, id int64) (*Incident, error) {
	q := boundDB{q: s.db, pg: s.pg}
	return scanIncident(q.queryRow(ctx, `SELECT `+incidentColumns+` FROM incidents WHERE id=?`, id))
}

func (s *incidentsStore) ListIncidents(ctx context.Context, filter IncidentFilter) ([]Incident, error) {
	where, args := incidentWhere(filter)
	dir := "DESC"
	if filter.Asc {
		dir = "ASC"
	}
	query := fmt.Sprintf(`SELECT %s FROM incidents%s ORDER BY %s %s, id %s`, incidentColumns, where, filter.Sort.orderExpr(), dir, dir)
	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}
	q := boundDB{q: s.db, pg: s.pg}
	rows, err := q.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []Incident{}
	for rows.Next() {
		inc, err := scanIncidentRow(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, inc)
	}
	return res, rows.Err()
}

func (s *incidentsStore) CountIncidents(ctx context.Context, filter IncidentFilter) (int, error) {
	where, args := incidentWhere(filter)
	q := boundDB{q: s.db, pg: s.pg}
	var total int
	if err := q.queryRow(ctx, `SELECT COUNT(*) FROM incidents`+where, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (s *incidentsStore) ListIncidentTimeline(ctx context.Context, incidentID int64) ([]TimelineEvent, error) {
	q := boundDB{q: s.db, pg: s.pg}
	rows, err := q.query(ctx, `
		SELECT id, incident_id, action, details, actor, created_at
		FROM timeline_events WHERE incident_id=?
		ORDER BY created_at ASC, id ASC`, incidentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []TimelineEvent{}
	for rows.Next() {
		var ev TimelineEvent
		var details sql.NullString
		if err := rows.Scan(&ev.ID, &ev.IncidentID, &ev.Action, &details, &ev.Actor, &ev.CreatedAt); err != nil {
			return nil, err
		}
		ev.Details = details.String
		ev.CreatedAt = ev.CreatedAt.UTC()
		res = append(res, ev)
	}
	return res, rows.Err()
}

func incidentWhere(filter IncidentFilter) (string, []any) {
	var clauses []string
	var args []any
	if v := strings.TrimSpace(filter.Severity); v != "" {
		clauses = append(clauses, "severity=?")
		args = append(args, v)
	}
	if v := strings.TrimSpace(filter.Status); v != "" {
		clauses = append(clauses, "status=?")
		args = append(args, v)
	}
	if v := strings.TrimSpace(filter.Source); v != "" {
		clauses = append(clauses, "source=?")
		args = append(args, v)
	}
	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func insertTimelineTx(ctx context.Context, q boundDB, ev *TimelineEvent) error {
	if strings.TrimSpace(ev.Actor) == "" {
		ev.Actor = "system"
	}
	ev.CreatedAt = ev.CreatedAt.UTC()
	id, err := q.insertID(ctx, `
		INSERT INTO timeline_events(incident_id, action, details, actor, created_at)
		VALUES(?,?,?,?,?)`,
		ev.IncidentID, ev.Action, ev.Details, ev.Actor, ev.CreatedAt)
	if err != nil {
		return err
	}
	ev.ID = id
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIncident(row *sql.Row) (*Incident, error) {
	inc, err := scanIncidentRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &inc, nil
}

func scanIncidentRow(row rowScanner) (Incident, error) {
	var inc Incident
	var description, assigned sql.NullString
	var resolved sql.NullTime
	if err := row.Scan(&inc.ID, &inc.Title, &description, &inc.Severity, &inc.Status, &inc.Source, &assigned, &inc.CreatedAt, &inc.UpdatedAt, &resolved); err != nil {
		return inc, err
	}
	inc.Description = stringPtr(description)
	inc.AssignedTo = stringPtr(assigned)
	inc.ResolvedAt = timePtr(resolved)
	inc.CreatedAt = inc.CreatedAt.UTC()
	inc.UpdatedAt = inc.UpdatedAt.UTC()
	return inc, nil
}
