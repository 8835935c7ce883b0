// Package seed fills an empty database with a week of plausible demo incidents.
package seed

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"warroom/core/incidents"
	"warroom/core/store"
	"warroom/core/utils"
)

var (
	services  = []string{"api-gateway", "auth-service", "payment-service", "order-service", "user-service", "inventory-service", "notification-service", "search-service"}
	endpoints = []string{"/api/orders", "/api/users", "/api/payments", "/api/search", "/api/inventory", "/api/auth/login"}
	symptoms  = []string{"slow page loads", "login failures", "500 errors", "timeouts", "missing data", "incorrect totals"}
	features  = []string{"checkout", "search", "user profile", "order history", "payment processing", "dashboard"}
	failures  = []string{"500 errors", "timeout errors", "connection refused", "null pointer exceptions"}
	userFlows = []string{"checkout", "login", "signup", "search", "file upload"}
	providers = []string{"Stripe", "SendGrid", "Twilio", "AWS S3", "Cloudflare", "GitHub API"}
	domains   = []string{"cdn.example.com", "api.partner.io", "feeds.data.com", "ws.realtime.io"}
	teams     = []string{"backend-team", "frontend-team", "ops-team", "platform-team", "payments-team", "security-team", "infra-team"}
	actors    = []string{"alice", "bob", "carol", "dave", "eve", "system", "frank"}
)

var pools = map[string][]string{
	"{service}":  services,
	"{endpoint}": endpoints,
	"{symptom}":  symptoms,
	"{feature}":  features,
	"{error}":    failures,
	"{action}":   userFlows,
	"{provider}": providers,
	"{domain}":   domains,
	"{days}":     {"3", "7", "14", "30"},
}

var titleTemplates = map[incidents.Source][]string{
	incidents.SourceMonitoring: {
		"CPU usage exceeding 90% on {service}",
		"Memory leak detected in {service}",
		"Response time degraded on {endpoint}",
		"Error rate spike on {service}",
		"Disk usage at 95% on {service} host",
		"Connection pool exhausted on {service}",
		"High latency detected on {endpoint}",
		"Health check failing for {service}",
	},
	incidents.SourceUserReport: {
		"Users reporting {symptom} on {feature}",
		"Intermittent {error} during {action}",
		"Customers unable to complete {action}",
		"Multiple reports of {symptom}",
	},
	incidents.SourceAutomated: {
		"Deployment rollback triggered for {service}",
		"Certificate expiring in {days} days for {service}",
		"Auto-scaling triggered for {service}",
		"Backup job failed for {service}",
	},
	incidents.SourceExternal: {
		"Third-party API {provider} returning 503",
		"DNS resolution failures for {domain}",
		"{provider} webhook delivery delays",
		"{provider} reporting degraded performance",
	},
}

type weighted[T any] struct {
	values  []T
	weights []int
}

var (
	severityMix = weighted[incidents.Severity]{incidents.Severities(), []int{10, 25, 40, 25}}
	statusMix   = weighted[incidents.Status]{incidents.Statuses(), []int{25, 15, 60}}
	sourceMix   = weighted[incidents.Source]{incidents.Sources(), []int{45, 30, 15, 10}}
)

// resolution time bounds in minutes
var resolutionMinutes = map[incidents.Severity][2]int{
	incidents.SeverityCritical: {30, 90},
	incidents.SeverityHigh:     {60, 240},
	incidents.SeverityMedium:   {240, 720},
	incidents.SeverityLow:      {720, 2880},
}

var alertConfigs = []store.AlertConfig{
	{Name: "Critical Spike", Severity: "critical", Threshold: 5, WindowMinutes: 60, Enabled: true},
	{Name: "High Severity Surge", Severity: "high", Threshold: 10, WindowMinutes: 30, Enabled: true},
	{Name: "Medium Volume Alert", Severity: "medium", Threshold: 20, WindowMinutes: 120, Enabled: false},
}

const window = 7 * 24 * time.Hour

type Result struct {
	Incidents      int
	TimelineEvents int
	AlertConfigs   int
}

type Seeder struct {
	db        *sql.DB
	incidents store.IncidentsStore
	alerts    store.AlertsStore
	logger    *utils.Logger
	rnd       *rand.Rand
	now       func() time.Time
}

func NewSeeder(db *sql.DB, logger *utils.Logger) *Seeder {
	return &Seeder{
		db:        db,
		incidents: store.NewIncidentsStore(db),
		alerts:    store.NewAlertsStore(db),
		logger:    logger,
		rnd:       rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x5eed)),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithSeed makes the generated data reproducible.
func (s *Seeder) WithSeed(seed uint64) *Seeder {
	s.rnd = rand.New(rand.NewPCG(seed, 0x5eed))
	return s
}

// Run wipes every table and inserts between 55 and 70 incidents spread over
// the last week plus the stock alert configs.
func (s *Seeder) Run(ctx context.Context) (*Result, error) {
	if err := store.ResetData(ctx, s.db); err != nil {
		return nil, fmt.Errorf("reset data: %w", err)
	}
	res := &Result{}
	now := s.now().Truncate(time.Second)
	count := s.between(55, 70)
	for i := 0; i < count; i++ {
		events, err := s.seedIncident(ctx, now)
		if err != nil {
			return nil, err
		}
		res.Incidents++
		res.TimelineEvents += events
	}
	for _, cfg := range alertConfigs {
		if _, err := s.alerts.CreateAlertConfig(ctx, &cfg); err != nil {
			return nil, fmt.Errorf("seed alert config %q: %w", cfg.Name, err)
		}
		res.AlertConfigs++
	}
	s.logger.Printf("seeded %d incidents, %d timeline events, %d alert configs", res.Incidents, res.TimelineEvents, res.AlertConfigs)
	return res, nil
}

func (s *Seeder) seedIncident(ctx context.Context, now time.Time) (int, error) {
	severity := pick(s, severityMix)
	status := pick(s, statusMix)
	source := pick(s, sourceMix)
	title := s.title(source)
	created := now.Add(-time.Duration(s.rnd.Int64N(int64(window)))).Truncate(time.Second)
	updated := created.Add(s.minutes(1, 30))

	var resolvedAt *time.Time
	switch status {
	case incidents.StatusResolved:
		bounds := resolutionMinutes[severity]
		at := created.Add(s.minutes(bounds[0], bounds[1]))
		resolvedAt = &at
		updated = at
	case incidents.StatusInvestigating:
		updated = created.Add(s.minutes(5, 60))
	}

	description := fmt.Sprintf("Incident detected: %s. Requires immediate attention.", title)
	team := s.choose(teams)
	inc := &store.Incident{
		Title:       title,
		Description: &description,
		Severity:    string(severity),
		Status:      string(status),
		Source:      string(source),
		AssignedTo:  &team,
		CreatedAt:   created,
		UpdatedAt:   updated,
		ResolvedAt:  resolvedAt,
	}
	first := &store.TimelineEvent{
		Action:    string(incidents.ActionCreated),
		Details:   fmt.Sprintf("Incident created from %s", source),
		Actor:     incidents.SystemActor,
		CreatedAt: created,
	}
	id, err := s.incidents.CreateIncident(ctx, inc, first)
	if err != nil {
		return 0, fmt.Errorf("seed incident %q: %w", title, err)
	}
	if status == incidents.StatusOpen {
		return 1, nil
	}

	history := []store.TimelineEvent{
		{Action: string(incidents.ActionStatusChange), Details: "Status changed to investigating", Actor: s.choose(actors), CreatedAt: created.Add(s.minutes(3, 15))},
		{Action: string(incidents.ActionAssigned), Details: "Assigned to " + s.choose(teams), Actor: s.choose(actors), CreatedAt: created.Add(s.minutes(5, 20))},
	}
	if resolvedAt != nil {
		commentAt := created.Add(s.minutes(20, 60))
		if !commentAt.Before(*resolvedAt) {
			commentAt = resolvedAt.Add(-time.Minute)
		}
		history = append(history,
			store.TimelineEvent{Action: string(incidents.ActionComment), Details: "Investigating root cause and applying fix", Actor: s.choose(actors), CreatedAt: commentAt},
			store.TimelineEvent{Action: string(incidents.ActionStatusChange), Details: "Status changed to resolved", Actor: s.choose(actors), CreatedAt: *resolvedAt},
		)
	}
	_, _, err = s.incidents.UpdateIncident(ctx, id, func(*store.Incident) ([]store.TimelineEvent, error) {
		return history, nil
	})
	if err != nil {
		return 0, fmt.Errorf("seed history for incident %d: %w", id, err)
	}
	return 1 + len(history), nil
}

func (s *Seeder) title(source incidents.Source) string {
	out := s.choose(titleTemplates[source])
	for key, pool := range pools {
		if strings.Contains(out, key) {
			out = strings.Replace(out, key, s.choose(pool), 1)
		}
	}
	return out
}

func (s *Seeder) choose(values []string) string {
	return values[s.rnd.IntN(len(values))]
}

func (s *Seeder) between(lo, hi int) int {
	return lo + s.rnd.IntN(hi-lo+1)
}

func (s *Seeder) minutes(lo, hi int) time.Duration {
	return time.Duration(s.between(lo, hi)) * time.Minute
}

func pick[T any](s *Seeder, w weighted[T]) T {
	total := 0
	for _, n := range w.weights {
		total += n
	}
	r := s.rnd.IntN(total)
	for i, n := range w.weights {
		if r < n {
			return w.values[i]
		}
		r -= n
	}
	return w.values[len(w.values)-1]
}
