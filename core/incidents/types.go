package incidents

import (
	"strings"

	"warroom/core/store"
)

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

type Status string

const (
	StatusOpen          Status = "open"
	StatusInvestigating Status = "investigating"
	StatusResolved      Status = "resolved"
)

type Source string

const (
	SourceMonitoring Source = "monitoring"
	SourceUserReport Source = "user_report"
	SourceAutomated  Source = "automated"
	SourceExternal   Source = "external"
)

type Action string

const (
	ActionCreated        Action = "created"
	ActionStatusChange   Action = "status_change"
	ActionSeverityChange Action = "severity_change"
	ActionAssigned       Action = "assigned"
	ActionComment        Action = "comment"
)

const SystemActor = "system"

func Severities() []Severity {
	return []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow}
}

func Statuses() []Status {
	return []Status{StatusOpen, StatusInvestigating, StatusResolved}
}

func Sources() []Source {
	return []Source{SourceMonitoring, SourceUserReport, SourceAutomated, SourceExternal}
}

func ParseSeverity(v string) (Severity, bool) {
	for _, s := range Severities() {
		if string(s) == v {
			return s, true
		}
	}
	return "", false
}

func ParseStatus(v string) (Status, bool) {
	for _, s := range Statuses() {
		if string(s) == v {
			return s, true
		}
	}
	return "", false
}

func ParseSource(v string) (Source, bool) {
	for _, s := range Sources() {
		if string(s) == v {
			return s, true
		}
	}
	return "", false
}

func joinValues[T ~string](values []T) string {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		parts = append(parts, string(v))
	}
	return strings.Join(parts, ", ")
}

type IncidentDetail struct {
	store.Incident
	Timeline []store.TimelineEvent `json:"timeline"`
}

type CreateInput struct {
	Title       string  `json:"title" validate:"required"`
	Description *string `json:"description"`
	Source      string  `json:"source" validate:"required,oneof=monitoring user_report automated external"`
	Severity    string  `json:"severity" validate:"omitempty,oneof=critical high medium low"`
	AssignedTo  *string `json:"assigned_to"`
}

// UpdateInput fields left nil are not changed.
type UpdateInput struct {
	Status      *string `json:"status"`
	Severity    *string `json:"severity"`
	AssignedTo  *string `json:"assigned_to"`
	Description *string `json:"description"`
}

func (in UpdateInput) Empty() bool {
	return in.Status == nil && in.Severity == nil && in.AssignedTo == nil && in.Description == nil
}
