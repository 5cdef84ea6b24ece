// Package observe turns pipeline and capability events into log lines and
// trace spans.
package observe

import (
	"context"
	"io"
	"log"
	"strings"

	"github.com/integerman/jaimes/internal/services/gm/capability"
	"github.com/integerman/jaimes/internal/services/gm/pipeline"
)

// LogObserver writes one log line per event.
type LogObserver struct {
	logger *log.Logger
	// Verbose also logs stage starts and accepted intermediate outputs.
	verbose bool
}

// NewLogObserver returns an observer logging to logger.
func NewLogObserver(logger *log.Logger, verbose bool) *LogObserver {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &LogObserver{logger: logger, verbose: verbose}
}

// Observe implements pipeline.Observer.
func (o *LogObserver) Observe(_ context.Context, event pipeline.Event) {
	switch event.Kind {
	case pipeline.EventStageStarted:
		if o.verbose {
			o.logger.Printf("stage %s attempt %d started", event.Stage, event.Attempt)
		}
	case pipeline.EventStageRejected:
		o.logger.Printf("stage %s attempt %d rejected: %s", event.Stage, event.Attempt, event.Reason)
	case pipeline.EventStageAccepted:
		if o.verbose {
			o.logger.Printf("stage %s accepted after %d attempt(s) in %s: %s", event.Stage, event.Attempt, event.Elapsed, excerpt(event.Text))
		}
	case pipeline.EventStageFailed:
		o.logger.Printf("stage %s failed: %v", event.Stage, event.Err)
	case pipeline.EventReviewed:
		if event.Reason != "" {
			o.logger.Printf("review of %s requested revision: %s", event.Stage, event.Reason)
		}
	case pipeline.EventExchangeCompleted:
		if o.verbose {
			o.logger.Printf("exchange completed by %s", event.Stage)
		}
	}
}

// CapabilityInvoked implements capability.Observer.
func (o *LogObserver) CapabilityInvoked(_ context.Context, invocation capability.Invocation) {
	if invocation.Err != nil {
		o.logger.Printf("capability %s failed after %s: %v", invocation.Name, invocation.Duration, invocation.Err)
		return
	}
	o.logger.Printf("capability %s succeeded in %s", invocation.Name, invocation.Duration)
}

func excerpt(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= 80 {
		return text
	}
	return string(runes[:77]) + "..."
}
