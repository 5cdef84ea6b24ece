// Package pipeline routes one player message through an ordered chain of
// cores and folds the final reply back into the transcript.
//
// Stages run strictly in sequence. Each accepted output becomes the next
// stage's input; empty or JSON-shaped outputs are rejected and the stage is
// retried within its budget. A completed exchange appends exactly one user
// turn and one assistant turn; a failed or cancelled one appends nothing.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/integerman/jaimes/internal/platform/errors"
	"github.com/integerman/jaimes/internal/services/gm/core"
	"github.com/integerman/jaimes/internal/services/gm/review"
	"github.com/integerman/jaimes/internal/services/gm/transcript"
	"github.com/integerman/jaimes/internal/services/gm/variables"
)

// Well-known shared context keys.
const (
	KeyInputMessage = "InputMessage"
	KeyLastReply    = "LastReply"
	KeyPlayerInput  = "PlayerInput"
)

var (
	// ErrNoStages indicates an orchestrator without cores.
	ErrNoStages = errors.New("pipeline requires at least one stage")
	// ErrRetryBudgetExhausted indicates a stage that never produced usable
	// output within its attempt budget.
	ErrRetryBudgetExhausted = apperrors.New(apperrors.CodeRetryBudgetExhausted, "stage retry budget exhausted")
	// ErrGenerationFailed indicates a model or transport failure in a stage.
	ErrGenerationFailed = apperrors.New(apperrors.CodeGenerationFailed, "stage generation failed")
)

// Stage is one step of the pipeline. *core.Core implements it.
type Stage interface {
	Name() string
	MaxAttempts() int
	Invoke(ctx context.Context, message string, view transcript.View, vars variables.Context) (core.StageResult, error)
}

// Reviewer classifies a final draft.
type Reviewer interface {
	Review(ctx context.Context, text string) review.Verdict
}

// Options configures an Orchestrator.
type Options struct {
	Observer Observer
	// Reviewer, when set, reviews the final stage output.
	Reviewer Reviewer
	// MaxRevisions bounds how often the final stage is re-run on review
	// feedback.
	MaxRevisions int
	Clock        func() time.Time
}

// Input is one player message.
type Input struct {
	Text string
	// Scripted marks pre-written messages, which are resolved against the
	// shared context before use.
	Scripted bool
}

// Result reports the outcome of Run.
type Result struct {
	// Terminated is set when the input ends the session.
	Terminated bool
	Message    string
	Reply      string
	Stage      string
}

// Orchestrator runs exchanges through its stages.
type Orchestrator struct {
	stages       []Stage
	observer     Observer
	reviewer     Reviewer
	maxRevisions int
	now          func() time.Time
}

// New builds an orchestrator over stages.
func New(stages []Stage, opts Options) (*Orchestrator, error) {
	if len(stages) == 0 {
		return nil, ErrNoStages
	}
	for i, stage := range stages {
		if stage == nil {
			return nil, fmt.Errorf("pipeline stage %d is nil", i)
		}
	}
	if opts.MaxRevisions < 0 {
		return nil, fmt.Errorf("pipeline max revisions must not be negative")
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	return &Orchestrator{
		stages:       append([]Stage(nil), stages...),
		observer:     opts.Observer,
		reviewer:     opts.Reviewer,
		maxRevisions: opts.MaxRevisions,
		now:          now,
	}, nil
}

// Stages returns the stage names in order.
func (o *Orchestrator) Stages() []string {
	names := make([]string, len(o.stages))
	for i, stage := range o.stages {
		names[i] = stage.Name()
	}
	return names
}

// IsTermination reports whether text ends the session: empty, whitespace or
// "exit" in any case.
func IsTermination(text string) bool {
	trimmed := strings.TrimSpace(text)
	return trimmed == "" || strings.EqualFold(trimmed, "exit")
}

// Run performs one exchange. The transcript is only written when every stage
// succeeded and ctx is still live.
func (o *Orchestrator) Run(ctx context.Context, in Input, tx *transcript.Transcript, shared variables.Context) (Result, error) {
	if tx == nil {
		return Result{}, fmt.Errorf("run pipeline: transcript is required")
	}
	if shared == nil {
		shared = variables.Context{}
	}
	text := in.Text
	if in.Scripted {
		text = variables.Resolve(text, shared)
	}
	if IsTermination(text) {
		return Result{Terminated: true, Message: text}, nil
	}

	user := transcript.User(text)
	shared[KeyPlayerInput] = text
	view := tx.ViewWith(user)

	message := text
	for i := range o.stages {
		result, err := o.runStage(ctx, i, message, view, shared)
		if err != nil {
			return Result{}, err
		}
		message = result.Text
		shared[KeyLastReply] = message
	}

	last := len(o.stages) - 1
	if o.reviewer != nil {
		revised, err := o.review(ctx, last, message, view, shared)
		if err != nil {
			return Result{}, err
		}
		message = revised
	}

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	final := o.stages[last].Name()
	reply := transcript.Turn{Role: transcript.RoleAssistant, Author: final, Text: message}
	if err := tx.Append(user, reply); err != nil {
		return Result{}, fmt.Errorf("commit exchange: %w", err)
	}
	shared[KeyLastReply] = message
	o.emit(ctx, Event{Kind: EventExchangeCompleted, Stage: final, StageIndex: last, Final: true, Text: message})
	return Result{Message: text, Reply: message, Stage: final}, nil
}

func (o *Orchestrator) runStage(ctx context.Context, index int, message string, view transcript.View, shared variables.Context) (core.StageResult, error) {
	stage := o.stages[index]
	final := index == len(o.stages)-1
	budget := stage.MaxAttempts()
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return core.StageResult{}, err
		}
		if budget > 0 && attempt > budget {
			err := apperrors.WithMetadata(apperrors.CodeRetryBudgetExhausted,
				fmt.Sprintf("stage %s produced no usable output in %d attempts", stage.Name(), budget),
				map[string]string{"stage": stage.Name(), "attempts": strconv.Itoa(budget)})
			o.emit(ctx, Event{Kind: EventStageFailed, Stage: stage.Name(), StageIndex: index, Attempt: attempt - 1, Final: final, Err: err})
			return core.StageResult{}, err
		}

		shared[KeyInputMessage] = message
		o.emit(ctx, Event{Kind: EventStageStarted, Stage: stage.Name(), StageIndex: index, Attempt: attempt, Final: final})

		result, err := stage.Invoke(ctx, message, view, shared)
		if err != nil {
			if ctx.Err() == nil {
				err = apperrors.WrapWithMetadata(apperrors.CodeGenerationFailed,
					fmt.Sprintf("stage %s failed", stage.Name()),
					map[string]string{"stage": stage.Name()}, err)
			}
			o.emit(ctx, Event{Kind: EventStageFailed, Stage: stage.Name(), StageIndex: index, Attempt: attempt, Final: final, Elapsed: result.Elapsed, Err: err})
			return core.StageResult{}, err
		}

		if reason := rejection(result); reason != "" {
			o.emit(ctx, Event{Kind: EventStageRejected, Stage: stage.Name(), StageIndex: index, Attempt: attempt, Final: final, Text: result.Text, Reason: reason, Elapsed: result.Elapsed})
			continue
		}
		o.emit(ctx, Event{Kind: EventStageAccepted, Stage: stage.Name(), StageIndex: index, Attempt: attempt, Final: final, Text: result.Text, Elapsed: result.Elapsed})
		return result, nil
	}
}

func rejection(result core.StageResult) string {
	switch {
	case result.IsEmpty():
		return ReasonEmpty
	case result.IsJSONShaped():
		return ReasonJSONShaped
	default:
		return ""
	}
}

// review runs the gate over draft and re-runs the final stage on feedback
// until the gate accepts or the revision budget is spent. A revision that
// fails keeps the last accepted draft; only cancellation is returned.
func (o *Orchestrator) review(ctx context.Context, last int, draft string, view transcript.View, shared variables.Context) (string, error) {
	stage := o.stages[last].Name()
	for revision := 0; ; revision++ {
		verdict := o.reviewer.Review(ctx, draft)
		o.emit(ctx, Event{Kind: EventReviewed, Stage: stage, StageIndex: last, Attempt: revision + 1, Final: true, Text: draft, Reason: verdict.Feedback})
		if verdict.Acceptable || revision >= o.maxRevisions {
			return draft, nil
		}
		result, err := o.runStage(ctx, last, RevisionRequest(draft, verdict.Feedback), view, shared)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", ctxErr
			}
			return draft, nil
		}
		draft = result.Text
	}
}

// RevisionRequest asks the final stage to rewrite a rejected draft.
func RevisionRequest(draft, feedback string) string {
	var b strings.Builder
	b.WriteString("Your previous reply broke the table rules and must be rewritten.\n")
	if feedback = strings.TrimSpace(feedback); feedback != "" {
		b.WriteString("Reviewer feedback: ")
		b.WriteString(feedback)
		b.WriteString("\n")
	}
	b.WriteString("Rewrite the reply so the player keeps control of their character. Previous reply:\n")
	b.WriteString(draft)
	return b.String()
}

func (o *Orchestrator) emit(ctx context.Context, event Event) {
	if o.observer == nil {
		return
	}
	event.Time = o.now()
	o.observer.Observe(ctx, event)
}
