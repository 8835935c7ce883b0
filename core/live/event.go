package live

import (
	"time"

	"warroom/core/store"
)

type EventType string

const (
	EventCreated EventType = "incident:created"
	EventUpdated EventType = "incident:updated"
)

// Event carries the incident row without its timeline.
type Event struct {
	Type      EventType      `json:"type"`
	Incident  store.Incident `json:"incident"`
	EmittedAt time.Time      `json:"emitted_at"`
}

func NewEvent(t EventType, inc store.Incident) Event {
	return Event{Type: t, Incident: inc, EmittedAt: time.Now().UTC()}
}
