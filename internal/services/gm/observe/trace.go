package observe

import (
	"context"
	"sync"

	"github.com/integerman/jaimes/internal/services/gm/capability"
	"github.com/integerman/jaimes/internal/services/gm/pipeline"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName = "github.com/integerman/jaimes/internal/services/gm"

	// SpanStage names the span covering one stage attempt.
	SpanStage = "gm.stage"
	// SpanCapability names the span covering one capability invocation.
	SpanCapability = "gm.capability"
)

// Span outcomes recorded in gm.outcome.
const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// TraceObserver records a span per stage attempt and per capability call.
// Capability spans are children of the stage attempt that was running.
type TraceObserver struct {
	tracer trace.Tracer

	mu      sync.Mutex
	current trace.Span
}

// NewTraceObserver returns an observer using provider, or the global tracer
// provider when provider is nil.
func NewTraceObserver(provider trace.TracerProvider) *TraceObserver {
	if provider == nil {
		provider = otel.GetTracerProvider()
	}
	return &TraceObserver{tracer: provider.Tracer(tracerName)}
}

// Observe implements pipeline.Observer.
func (o *TraceObserver) Observe(ctx context.Context, event pipeline.Event) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch event.Kind {
	case pipeline.EventStageStarted:
		o.endCurrent()
		_, span := o.tracer.Start(ctx, SpanStage,
			trace.WithTimestamp(event.Time),
			trace.WithAttributes(
				attribute.String("gm.stage", event.Stage),
				attribute.Int("gm.stage_index", event.StageIndex),
				attribute.Int("gm.attempt", event.Attempt),
				attribute.Bool("gm.final", event.Final),
			))
		o.current = span
	case pipeline.EventStageRejected:
		o.finish(event, OutcomeRejected)
	case pipeline.EventStageAccepted:
		o.finish(event, OutcomeAccepted)
	case pipeline.EventStageFailed:
		o.finish(event, OutcomeFailed)
	}
}

func (o *TraceObserver) finish(event pipeline.Event, outcome string) {
	if o.current == nil {
		return
	}
	span := o.current
	o.current = nil
	span.SetAttributes(attribute.String("gm.outcome", outcome))
	if event.Reason != "" {
		span.SetAttributes(attribute.String("gm.reason", event.Reason))
	}
	if event.Err != nil {
		span.RecordError(event.Err)
		span.SetStatus(codes.Error, event.Err.Error())
	}
	span.End(trace.WithTimestamp(event.Time))
}

func (o *TraceObserver) endCurrent() {
	if o.current != nil {
		o.current.End()
		o.current = nil
	}
}

// CapabilityInvoked implements capability.Observer.
func (o *TraceObserver) CapabilityInvoked(ctx context.Context, invocation capability.Invocation) {
	o.mu.Lock()
	parent := o.current
	o.mu.Unlock()
	if parent != nil {
		ctx = trace.ContextWithSpan(ctx, parent)
	}

	_, span := o.tracer.Start(ctx, SpanCapability,
		trace.WithTimestamp(invocation.Started),
		trace.WithAttributes(attribute.String("gm.capability", invocation.Name)))
	if invocation.Err != nil {
		span.RecordError(invocation.Err)
		span.SetStatus(codes.Error, invocation.Err.Error())
	}
	span.End(trace.WithTimestamp(invocation.Started.Add(invocation.Duration)))
}
