package incidents

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"warroom/config"
	"warroom/core/apperr"
	"warroom/core/live"
	"warroom/core/metrics"
	"warroom/core/store"
	"warroom/core/utils"
	"warroom/core/validation"
)

type Broadcaster interface {
	Publish(ev live.Event)
}

type Service struct {
	store        store.IncidentsStore
	hub          Broadcaster
	metrics      *metrics.Metrics
	logger       *utils.Logger
	now          func() time.Time
	defaultLimit int
	maxLimit     int
}

func NewService(cfg *config.AppConfig, st store.IncidentsStore, hub Broadcaster, m *metrics.Metrics, logger *utils.Logger) *Service {
	s := &Service{
		store:        st,
		hub:          hub,
		metrics:      m,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
		defaultLimit: defaultPageSize,
		maxLimit:     maxPageSize,
	}
	if cfg != nil {
		if cfg.Incidents.DefaultPageSize > 0 {
			s.defaultLimit = cfg.Incidents.DefaultPageSize
		}
		if cfg.Incidents.MaxPageSize > 0 {
			s.maxLimit = cfg.Incidents.MaxPageSize
		}
	}
	return s
}

// SetClock overrides the time source; timestamps are truncated to microseconds
// so they survive a round trip through either database.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Service) clock() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

var (
	msgTitleSourceRequired = "title and source are required"
	msgSourceEnum          = "source must be one of: " + joinValues(Sources())
	msgSeverityEnum        = "severity must be one of: " + joinValues(Severities())
	msgStatusEnum          = "status must be one of: " + joinValues(Statuses())
)

func validateCreate(in CreateInput) error {
	errs, err := validation.Check(in)
	if err != nil {
		return apperr.Internal(err)
	}
	switch {
	case len(errs) == 0:
		return nil
	case strings.TrimSpace(in.Title) == "" || strings.TrimSpace(in.Source) == "":
		return apperr.Validation(msgTitleSourceRequired)
	case validation.HasField(errs, "source"):
		return apperr.Validation(msgSourceEnum)
	case validation.HasField(errs, "severity"):
		return apperr.Validation(msgSeverityEnum)
	default:
		return apperr.Validation(fmt.Sprintf("invalid field %s", errs[0].Field))
	}
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*store.Incident, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Source = strings.TrimSpace(in.Source)
	in.Severity = strings.TrimSpace(in.Severity)
	if err := validateCreate(in); err != nil {
		return nil, err
	}
	source := Source(in.Source)
	severity := Severity(in.Severity)
	if severity == "" {
		severity = ClassifySeverity(in.Title, source)
	}
	now := s.clock()
	inc := &store.Incident{
		Title:       in.Title,
		Description: normalizeText(in.Description),
		Severity:    string(severity),
		Status:      string(StatusOpen),
		Source:      string(source),
		AssignedTo:  normalizeAssignee(in.AssignedTo),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	first := &store.TimelineEvent{
		Action:    string(ActionCreated),
		Details:   fmt.Sprintf("Incident created from %s", source),
		Actor:     SystemActor,
		CreatedAt: now,
	}
	if _, err := s.store.CreateIncident(ctx, inc, first); err != nil {
		s.logger.Errorf("create incident %q: %v", inc.Title, err)
		return nil, apperr.Internal(err)
	}
	s.logger.Printf("created incident %d (%s, %s)", inc.ID, inc.Severity, inc.Source)
	s.metrics.IncidentCreated(inc.Severity, inc.Source)
	s.metrics.TimelineAppended(first.Action)
	s.publish(live.EventCreated, *inc)
	return inc, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*IncidentDetail, error) {
	inc, err := s.store.GetIncident(ctx, id)
	if err != nil {
		s.logger.Errorf("get incident %d: %v", id, err)
		return nil, apperr.Internal(err)
	}
	if inc == nil {
		return nil, notFound(id)
	}
	timeline, err := s.store.ListIncidentTimeline(ctx, id)
	if err != nil {
		s.logger.Errorf("list timeline for incident %d: %v", id, err)
		return nil, apperr.Internal(err)
	}
	return &IncidentDetail{Incident: *inc, Timeline: timeline}, nil
}

func (s *Service) Update(ctx context.Context, id int64, in UpdateInput, actor string) (*store.Incident, error) {
	if in.Status != nil {
		if _, ok := ParseStatus(*in.Status); !ok {
			return nil, apperr.Validation(msgStatusEnum)
		}
	}
	if in.Severity != nil {
		if _, ok := ParseSeverity(*in.Severity); !ok {
			return nil, apperr.Validation(msgSeverityEnum)
		}
	}
	actor = normalizeActor(actor)
	var prevStatus string
	updated, events, err := s.store.UpdateIncident(ctx, id, func(cur *store.Incident) ([]store.TimelineEvent, error) {
		prevStatus = cur.Status
		now := s.stamp(cur)
		entries := diffIncident(*cur, in)
		applyUpdate(cur, in, now)
		return toEvents(entries, actor, now), nil
	})
	if err != nil {
		return nil, s.mutationError(id, err)
	}
	for _, ev := range events {
		s.metrics.TimelineAppended(ev.Action)
	}
	if updated.Status == string(StatusResolved) && prevStatus != string(StatusResolved) && updated.ResolvedAt != nil {
		s.metrics.IncidentResolved(updated.Severity, updated.ResolvedAt.Sub(updated.CreatedAt))
	}
	s.logger.Printf("updated incident %d by %s (%d timeline events)", id, actor, len(events))
	s.publish(live.EventUpdated, *updated)
	return updated, nil
}

func (s *Service) AddComment(ctx context.Context, id int64, body, actor string) (*store.TimelineEvent, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperr.Validation("comment body is required")
	}
	actor = normalizeActor(actor)
	updated, events, err := s.store.UpdateIncident(ctx, id, func(cur *store.Incident) ([]store.TimelineEvent, error) {
		now := s.stamp(cur)
		cur.UpdatedAt = now
		return toEvents([]TimelineEntry{{Action: ActionComment, Details: body}}, actor, now), nil
	})
	if err != nil {
		return nil, s.mutationError(id, err)
	}
	s.metrics.TimelineAppended(string(ActionComment))
	s.logger.Printf("comment added to incident %d by %s", id, actor)
	s.publish(live.EventUpdated, *updated)
	return &events[0], nil
}

// stamp returns the time for a mutation of cur, never earlier than its last update.
func (s *Service) stamp(cur *store.Incident) time.Time {
	now := s.clock()
	if now.Before(cur.UpdatedAt) {
		return cur.UpdatedAt
	}
	return now
}

func applyUpdate(cur *store.Incident, in UpdateInput, now time.Time) {
	if in.Status != nil {
		cur.Status = *in.Status
	}
	if in.Severity != nil {
		cur.Severity = *in.Severity
	}
	if in.AssignedTo != nil {
		cur.AssignedTo = normalizeAssignee(in.AssignedTo)
	}
	if in.Description != nil {
		cur.Description = normalizeText(in.Description)
	}
	switch {
	case in.Status != nil && *in.Status == string(StatusResolved):
		resolvedAt := now
		cur.ResolvedAt = &resolvedAt
	case cur.Status != string(StatusResolved):
		cur.ResolvedAt = nil
	}
	cur.UpdatedAt = now
}

func toEvents(entries []TimelineEntry, actor string, at time.Time) []store.TimelineEvent {
	out := make([]store.TimelineEvent, 0, len(entries))
	for _, e := range entries {
		out = append(out, store.TimelineEvent{
			Action:    string(e.Action),
			Details:   e.Details,
			Actor:     actor,
			CreatedAt: at,
		})
	}
	return out
}

func (s *Service) mutationError(id int64, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return notFound(id)
	}
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	s.logger.Errorf("update incident %d: %v", id, err)
	return apperr.Internal(err)
}

func (s *Service) publish(t live.EventType, inc store.Incident) {
	if s.hub == nil {
		return
	}
	s.hub.Publish(live.NewEvent(t, inc))
}

func notFound(id int64) error {
	return apperr.NotFound(apperr.CodeIncidentNotFound, fmt.Sprintf("Incident with id %d not found", id))
}

func normalizeActor(actor string) string {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return SystemActor
	}
	return actor
}

func normalizeText(v *string) *string {
	if v == nil {
		return nil
	}
	if strings.TrimSpace(*v) == "" {
		return nil
	}
	out := *v
	return &out
}
