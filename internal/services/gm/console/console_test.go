package console

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/integerman/jaimes/internal/services/gm/pipeline"
)

func TestRendererPlainOutput(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, Options{NoColor: true})

	r.Narrate("Game Master", "  The fog lifts.  ")
	r.Error(errors.New("stage Editor failed"))
	r.Error(nil)

	want := "Game Master:\nThe fog lifts.\n\nerror: stage Editor failed\n"
	if buf.String() != want {
		t.Fatalf("output = %q, want %q", buf.String(), want)
	}
}

func TestRendererShowsOnlyAcceptedIntermediateStages(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, Options{NoColor: true, ShowStages: true})
	ctx := context.Background()

	r.Observe(ctx, pipeline.Event{Kind: pipeline.EventStageRejected, Stage: "Planner", Text: "{}"})
	r.Observe(ctx, pipeline.Event{Kind: pipeline.EventStageAccepted, Stage: "Planner", Text: "ambush at the ford"})
	r.Observe(ctx, pipeline.Event{Kind: pipeline.EventStageAccepted, Stage: "Editor", Text: "final", Final: true})

	if got := buf.String(); got != "[Planner] ambush at the ford\n" {
		t.Fatalf("output = %q", got)
	}
}

func TestRendererHidesStagesByDefault(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, Options{NoColor: true})

	r.Observe(context.Background(), pipeline.Event{Kind: pipeline.EventStageAccepted, Stage: "Planner", Text: "plan"})
	if buf.Len() != 0 {
		t.Fatalf("output = %q, want nothing", buf.String())
	}
}

func TestLineReaderReadsUntilEOF(t *testing.T) {
	prompts := 0
	reader := NewLineReader(strings.NewReader("I look around\nexit\n"), func() { prompts++ })
	ctx := context.Background()

	for _, want := range []string{"I look around", "exit"} {
		got, err := reader.ReadLine(ctx)
		if err != nil || got != want {
			t.Fatalf("ReadLine = %q, %v; want %q", got, err, want)
		}
	}
	if _, err := reader.ReadLine(ctx); !errors.Is(err, io.EOF) {
		t.Fatalf("ReadLine at end = %v, want io.EOF", err)
	}
	if _, err := reader.ReadLine(ctx); !errors.Is(err, io.EOF) {
		t.Fatalf("ReadLine after end = %v, want io.EOF", err)
	}
	if prompts != 4 {
		t.Fatalf("prompts = %d, want 4", prompts)
	}
}

func TestLineReaderHonorsCancellation(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	reader := NewLineReader(pr, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := reader.ReadLine(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("ReadLine = %v, want deadline exceeded", err)
	}
}

func TestLineReaderCloseStopsScanner(t *testing.T) {
	reader := NewLineReader(strings.NewReader("look\nlisten\nleave\n"), nil)
	if err := reader.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := reader.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	select {
	case <-reader.done:
	case <-time.After(2 * time.Second):
		t.Fatal("scanner still blocked after close")
	}
	if _, err := reader.ReadLine(context.Background()); !errors.Is(err, io.EOF) {
		t.Fatalf("read after close = %v, want io.EOF", err)
	}
}
