package pipeline

import (
	"context"
	"time"
)

// EventKind names a point in the life of an exchange.
type EventKind string

const (
	EventStageStarted      EventKind = "stage_started"
	EventStageRejected     EventKind = "stage_rejected"
	EventStageAccepted     EventKind = "stage_accepted"
	EventStageFailed       EventKind = "stage_failed"
	EventReviewed          EventKind = "reviewed"
	EventExchangeCompleted EventKind = "exchange_completed"
)

// Rejection reasons reported with EventStageRejected.
const (
	ReasonEmpty      = "empty output"
	ReasonJSONShaped = "json-shaped output"
)

// Event describes one observable step of the orchestrator.
type Event struct {
	Kind       EventKind
	Stage      string
	StageIndex int
	Attempt    int
	// Final marks events of the last stage, whose text becomes the reply.
	Final   bool
	Text    string
	Reason  string
	Elapsed time.Duration
	Err     error
	Time    time.Time
}

// Observer receives orchestrator events. Observe must return quickly and
// cannot influence the exchange.
type Observer interface {
	Observe(ctx context.Context, event Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, event Event)

// Observe calls f.
func (f ObserverFunc) Observe(ctx context.Context, event Event) {
	f(ctx, event)
}

// Observers fans events out to every non-nil observer in order.
type Observers []Observer

// Observe forwards event to each observer.
func (o Observers) Observe(ctx context.Context, event Event) {
	for _, observer := range o {
		if observer != nil {
			observer.Observe(ctx, event)
		}
	}
}
