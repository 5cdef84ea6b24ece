package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	apperrors "github.com/integerman/jaimes/internal/platform/errors"
	"github.com/integerman/jaimes/internal/services/gm/core"
	"github.com/integerman/jaimes/internal/services/gm/review"
	"github.com/integerman/jaimes/internal/services/gm/transcript"
	"github.com/integerman/jaimes/internal/services/gm/variables"
)

type fakeStage struct {
	name        string
	maxAttempts int
	responses   []string
	errs        []error
	messages    []string
	views       []transcript.View
	onInvoke    func(ctx context.Context)
}

func (s *fakeStage) Name() string     { return s.name }
func (s *fakeStage) MaxAttempts() int { return s.maxAttempts }

func (s *fakeStage) Invoke(ctx context.Context, message string, view transcript.View, _ variables.Context) (core.StageResult, error) {
	call := len(s.messages)
	s.messages = append(s.messages, message)
	s.views = append(s.views, view)
	if s.onInvoke != nil {
		s.onInvoke(ctx)
	}
	if call < len(s.errs) && s.errs[call] != nil {
		return core.StageResult{}, s.errs[call]
	}
	text := ""
	if call < len(s.responses) {
		text = s.responses[call]
	} else if len(s.responses) > 0 {
		text = s.responses[len(s.responses)-1]
	}
	return core.NewStageResult(text, time.Millisecond), nil
}

type recordingObserver struct {
	events []Event
}

func (r *recordingObserver) Observe(_ context.Context, event Event) {
	r.events = append(r.events, event)
}

func (r *recordingObserver) kinds() []EventKind {
	kinds := make([]EventKind, len(r.events))
	for i, event := range r.events {
		kinds[i] = event.Kind
	}
	return kinds
}

type fakeReviewer struct {
	verdicts []review.Verdict
	drafts   []string
}

func (r *fakeReviewer) Review(_ context.Context, text string) review.Verdict {
	r.drafts = append(r.drafts, text)
	if len(r.verdicts) == 0 {
		return review.Verdict{Acceptable: true}
	}
	v := r.verdicts[0]
	r.verdicts = r.verdicts[1:]
	return v
}

func mustOrchestrator(t *testing.T, stages []Stage, opts Options) *Orchestrator {
	t.Helper()
	o, err := New(stages, opts)
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}
	return o
}

func TestRunRetriesEmptyOutput(t *testing.T) {
	stage := &fakeStage{name: "Game Master", responses: []string{"", "Hello"}}
	observer := &recordingObserver{}
	o := mustOrchestrator(t, []Stage{stage}, Options{Observer: observer})
	tx := transcript.New()

	result, err := o.Run(context.Background(), Input{Text: "hi"}, tx, variables.Context{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Reply != "Hello" {
		t.Fatalf("reply = %q, want Hello", result.Reply)
	}
	if len(stage.messages) != 2 {
		t.Fatalf("stage invoked %d times, want 2", len(stage.messages))
	}
	if tx.Len() != 2 {
		t.Fatalf("transcript has %d turns, want 2", tx.Len())
	}
	want := []EventKind{EventStageStarted, EventStageRejected, EventStageStarted, EventStageAccepted, EventExchangeCompleted}
	got := observer.kinds()
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events = %v, want %v", got, want)
		}
	}
	if observer.events[1].Reason != ReasonEmpty {
		t.Fatalf("reject reason = %q", observer.events[1].Reason)
	}
}

func TestRunRejectsJSONShapedOutput(t *testing.T) {
	stage := &fakeStage{name: "Planner", responses: []string{`{"plan":"ambush"}`, "Goblins wait in the reeds."}}
	observer := &recordingObserver{}
	o := mustOrchestrator(t, []Stage{stage}, Options{Observer: observer})

	result, err := o.Run(context.Background(), Input{Text: "I walk to the river"}, transcript.New(), nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Reply != "Goblins wait in the reeds." {
		t.Fatalf("reply = %q", result.Reply)
	}
	if observer.events[1].Kind != EventStageRejected || observer.events[1].Reason != ReasonJSONShaped {
		t.Fatalf("event = %+v", observer.events[1])
	}
}

func TestRunGrowsTranscriptByOneExchange(t *testing.T) {
	stages := []Stage{
		&fakeStage{name: "Planner", responses: []string{"plan"}},
		&fakeStage{name: "Game Master", responses: []string{"narration"}},
	}
	o := mustOrchestrator(t, stages, Options{})
	tx := transcript.New()
	_ = tx.Append(transcript.Assistant("Welcome, traveller."))

	for i, input := range []string{"I look around", "I open the door", "I listen"} {
		before := tx.Len()
		if _, err := o.Run(context.Background(), Input{Text: input}, tx, variables.Context{}); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
		if tx.Len() != before+2 {
			t.Fatalf("run %d grew transcript by %d, want 2", i, tx.Len()-before)
		}
		view := tx.View()
		if got := view.At(before); got.Role != transcript.RoleUser || got.Text != input {
			t.Fatalf("user turn = %+v", got)
		}
		if got := view.At(before + 1); got.Role != transcript.RoleAssistant || got.Text != "narration" || got.Author != "Game Master" {
			t.Fatalf("assistant turn = %+v", got)
		}
	}
}

func TestRunThreeStageScenario(t *testing.T) {
	planner := &fakeStage{name: "Planner", responses: []string{"stage-output-1"}}
	narrator := &fakeStage{name: "Narrator", responses: []string{"stage-output-2"}}
	editor := &fakeStage{name: "Editor", responses: []string{"stage-output-3"}}
	observer := &recordingObserver{}
	o := mustOrchestrator(t, []Stage{planner, narrator, editor}, Options{Observer: observer})
	tx := transcript.New()
	shared := variables.Context{}

	if _, err := o.Run(context.Background(), Input{Text: "I search the chest"}, tx, shared); err != nil {
		t.Fatalf("run: %v", err)
	}

	turns := tx.View().Turns()
	if len(turns) != 2 || turns[1].Text != "stage-output-3" {
		t.Fatalf("transcript = %+v", turns)
	}
	for _, turn := range turns {
		if turn.Text == "stage-output-1" || turn.Text == "stage-output-2" {
			t.Fatalf("intermediate text persisted: %+v", turn)
		}
	}
	if planner.messages[0] != "I search the chest" || narrator.messages[0] != "stage-output-1" || editor.messages[0] != "stage-output-2" {
		t.Fatalf("stage inputs = %q %q %q", planner.messages, narrator.messages, editor.messages)
	}
	if shared[KeyLastReply] != "stage-output-3" || shared[KeyPlayerInput] != "I search the chest" {
		t.Fatalf("shared = %+v", shared)
	}

	// Every stage sees the pending user turn but not committed intermediate output.
	view := narrator.views[0]
	if view.Len() != 1 || view.At(0).Text != "I search the chest" {
		t.Fatalf("narrator view = %+v", view.Turns())
	}

	var surfaced []string
	for _, event := range observer.events {
		if event.Kind == EventStageAccepted && !event.Final {
			surfaced = append(surfaced, event.Text)
		}
	}
	if strings.Join(surfaced, ",") != "stage-output-1,stage-output-2" {
		t.Fatalf("surfaced intermediate outputs = %v", surfaced)
	}
}

func TestRunTermination(t *testing.T) {
	for _, input := range []string{"exit", "EXIT", " Exit ", "", "   \t"} {
		stage := &fakeStage{name: "Game Master", responses: []string{"never"}}
		o := mustOrchestrator(t, []Stage{stage}, Options{})
		tx := transcript.New()

		result, err := o.Run(context.Background(), Input{Text: input}, tx, nil)
		if err != nil {
			t.Fatalf("run(%q): %v", input, err)
		}
		if !result.Terminated {
			t.Fatalf("run(%q) did not terminate", input)
		}
		if tx.Len() != 0 || len(stage.messages) != 0 {
			t.Fatalf("run(%q) touched transcript or stages", input)
		}
	}
}

func TestRunResolvesScriptedInput(t *testing.T) {
	stage := &fakeStage{name: "Game Master", responses: []string{"ok"}}
	o := mustOrchestrator(t, []Stage{stage}, Options{})
	tx := transcript.New()

	_, err := o.Run(context.Background(), Input{Text: "I am {{$CharacterName}} and {{$Unknown}}", Scripted: true}, tx, variables.Context{"CharacterName": "Mira"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := tx.View().At(0).Text; got != "I am Mira and {{$Unknown}}" {
		t.Fatalf("user turn = %q", got)
	}

	_, _ = o.Run(context.Background(), Input{Text: "{{$CharacterName}}"}, tx, variables.Context{"CharacterName": "Mira"})
	if got := tx.View().At(2).Text; got != "{{$CharacterName}}" {
		t.Fatalf("interactive input was resolved: %q", got)
	}
}

func TestRunRetryBudgetExhausted(t *testing.T) {
	stage := &fakeStage{name: "Planner", maxAttempts: 3, responses: []string{""}}
	observer := &recordingObserver{}
	o := mustOrchestrator(t, []Stage{stage}, Options{Observer: observer})
	tx := transcript.New()

	_, err := o.Run(context.Background(), Input{Text: "hi"}, tx, nil)
	if !errors.Is(err, ErrRetryBudgetExhausted) {
		t.Fatalf("run error = %v, want ErrRetryBudgetExhausted", err)
	}
	if apperrors.CodeOf(err) != apperrors.CodeRetryBudgetExhausted {
		t.Fatalf("code = %s", apperrors.CodeOf(err))
	}
	if len(stage.messages) != 3 {
		t.Fatalf("stage invoked %d times, want 3", len(stage.messages))
	}
	if tx.Len() != 0 {
		t.Fatalf("transcript has %d turns, want 0", tx.Len())
	}
	if last := observer.events[len(observer.events)-1]; last.Kind != EventStageFailed {
		t.Fatalf("last event = %+v", last)
	}
}

func TestRunGenerationFailureAbortsExchange(t *testing.T) {
	planner := &fakeStage{name: "Planner", responses: []string{"plan"}}
	narrator := &fakeStage{name: "Narrator", errs: []error{errors.New("429 rate limited")}}
	o := mustOrchestrator(t, []Stage{planner, narrator}, Options{})
	tx := transcript.New()

	_, err := o.Run(context.Background(), Input{Text: "hi"}, tx, nil)
	if !errors.Is(err, ErrGenerationFailed) {
		t.Fatalf("run error = %v, want ErrGenerationFailed", err)
	}
	if len(narrator.messages) != 1 {
		t.Fatalf("failed stage retried %d times", len(narrator.messages)-1)
	}
	if tx.Len() != 0 {
		t.Fatalf("transcript has %d turns, want 0", tx.Len())
	}
}

func TestRunCancellationCommitsNothing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	planner := &fakeStage{name: "Planner", responses: []string{"plan"}, onInvoke: func(context.Context) { cancel() }}
	narrator := &fakeStage{name: "Narrator", responses: []string{"narration"}}
	o := mustOrchestrator(t, []Stage{planner, narrator}, Options{})
	tx := transcript.New()

	_, err := o.Run(ctx, Input{Text: "hi"}, tx, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("run error = %v, want context.Canceled", err)
	}
	if tx.Len() != 0 || len(narrator.messages) != 0 {
		t.Fatalf("cancelled run committed %d turns and invoked narrator %d times", tx.Len(), len(narrator.messages))
	}
}

func TestRunReviewRevision(t *testing.T) {
	gm := &fakeStage{name: "Game Master", responses: []string{"I roll a d20 for you and get a 15.", "Roll a d20 when you are ready."}}
	reviewer := &fakeReviewer{verdicts: []review.Verdict{{Acceptable: false, Feedback: "dice rolled for player"}}}
	observer := &recordingObserver{}
	o := mustOrchestrator(t, []Stage{gm}, Options{Reviewer: reviewer, MaxRevisions: 1, Observer: observer})
	tx := transcript.New()

	result, err := o.Run(context.Background(), Input{Text: "I attack"}, tx, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Reply != "Roll a d20 when you are ready." {
		t.Fatalf("reply = %q", result.Reply)
	}
	if len(gm.messages) != 2 || !strings.Contains(gm.messages[1], "dice rolled for player") {
		t.Fatalf("revision request = %q", gm.messages)
	}
	if len(reviewer.drafts) != 2 {
		t.Fatalf("reviewed %d drafts, want 2", len(reviewer.drafts))
	}
	if tx.Len() != 2 {
		t.Fatalf("transcript has %d turns, want 2", tx.Len())
	}
}

func TestRunReviewRevisionBudget(t *testing.T) {
	gm := &fakeStage{name: "Game Master", responses: []string{"draft one", "draft two"}}
	reviewer := &fakeReviewer{verdicts: []review.Verdict{{Feedback: "a"}, {Feedback: "b"}, {Feedback: "c"}}}
	o := mustOrchestrator(t, []Stage{gm}, Options{Reviewer: reviewer, MaxRevisions: 1})

	result, err := o.Run(context.Background(), Input{Text: "I attack"}, transcript.New(), nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Reply != "draft two" {
		t.Fatalf("reply = %q, want the last draft", result.Reply)
	}
	if len(gm.messages) != 2 {
		t.Fatalf("stage invoked %d times, want 2", len(gm.messages))
	}
}

func TestRunFailedRevisionKeepsAcceptedDraft(t *testing.T) {
	tests := []struct {
		name  string
		stage *fakeStage
	}{
		{
			name:  "retry budget spent",
			stage: &fakeStage{name: "Game Master", maxAttempts: 2, responses: []string{"valid draft", "", ""}},
		},
		{
			name:  "model error",
			stage: &fakeStage{name: "Game Master", responses: []string{"valid draft"}, errs: []error{nil, errors.New("boom")}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reviewer := &fakeReviewer{verdicts: []review.Verdict{{Feedback: "rolled dice"}}}
			o := mustOrchestrator(t, []Stage{tt.stage}, Options{Reviewer: reviewer, MaxRevisions: 1})
			tx := transcript.New()

			result, err := o.Run(context.Background(), Input{Text: "I open the door"}, tx, nil)
			if err != nil {
				t.Fatalf("run: %v", err)
			}
			if result.Reply != "valid draft" {
				t.Fatalf("reply = %q, want %q", result.Reply, "valid draft")
			}
			if tx.Len() != 2 {
				t.Fatalf("transcript has %d turns, want 2", tx.Len())
			}
		})
	}
}

func TestRunCancelledDuringRevisionCommitsNothing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	gm := &fakeStage{name: "Game Master", responses: []string{"valid draft"}}
	gm.onInvoke = func(context.Context) {
		if len(gm.messages) == 2 {
			cancel()
		}
	}
	gm.errs = []error{nil, context.Canceled}
	reviewer := &fakeReviewer{verdicts: []review.Verdict{{Feedback: "rolled dice"}}}
	o := mustOrchestrator(t, []Stage{gm}, Options{Reviewer: reviewer, MaxRevisions: 1})
	tx := transcript.New()

	if _, err := o.Run(ctx, Input{Text: "I open the door"}, tx, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("run error = %v, want context.Canceled", err)
	}
	if tx.Len() != 0 {
		t.Fatalf("transcript has %d turns, want 0", tx.Len())
	}
}

func TestNewValidatesStages(t *testing.T) {
	if _, err := New(nil, Options{}); !errors.Is(err, ErrNoStages) {
		t.Fatalf("New(nil) error = %v", err)
	}
	if _, err := New([]Stage{nil}, Options{}); err == nil {
		t.Fatal("expected nil stage error")
	}
	if _, err := New([]Stage{&fakeStage{name: "a"}}, Options{MaxRevisions: -1}); err == nil {
		t.Fatal("expected negative revisions error")
	}
}

func TestObserversFanOut(t *testing.T) {
	first, second := &recordingObserver{}, &recordingObserver{}
	var calls int
	observers := Observers{first, nil, second, ObserverFunc(func(context.Context, Event) { calls++ })}

	observers.Observe(context.Background(), Event{Kind: EventStageStarted})
	if len(first.events) != 1 || len(second.events) != 1 || calls != 1 {
		t.Fatalf("fan out = %d %d %d", len(first.events), len(second.events), calls)
	}
}
