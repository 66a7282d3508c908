package training

import (
	"context"
	"time"
)

// EventType distinguishes run events on the wire.
type EventType string

const (
	EventStateChanged EventType = "run.state_changed"
	EventEpoch        EventType = "run.epoch_completed"
)

// Event is published on every state transition and completed epoch.
type Event struct {
	Type      EventType          `json:"type"`
	RunID     string             `json:"run_id"`
	State     State              `json:"state"`
	Epoch     int                `json:"epoch,omitempty"`
	Improved  bool               `json:"improved,omitempty"`
	Metrics   map[string]float64 `json:"metrics,omitempty"`
	Error     string             `json:"error,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
}

// Publisher delivers run events.  Delivery failures must not fail the run.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, ev Event) error

func (f PublisherFunc) Publish(ctx context.Context, ev Event) error { return f(ctx, ev) }

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

// Request asks a worker to start a run.  Zero fields fall back to the
// worker's configuration.
type Request struct {
	RequestID string  `json:"request_id"`
	Params    *Params `json:"params,omitempty"`
}

//Personal.AI order the ending
