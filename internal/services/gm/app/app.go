// Package app assembles the game master from configuration: adventure,
// capability registry, rulebook index, model client, pipeline and console.
package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/integerman/jaimes/internal/services/gm/adventure"
	"github.com/integerman/jaimes/internal/services/gm/capability"
	"github.com/integerman/jaimes/internal/services/gm/console"
	"github.com/integerman/jaimes/internal/services/gm/core"
	"github.com/integerman/jaimes/internal/services/gm/observe"
	"github.com/integerman/jaimes/internal/services/gm/pipeline"
	"github.com/integerman/jaimes/internal/services/gm/pipelineconfig"
	"github.com/integerman/jaimes/internal/services/gm/provider/openai"
	"github.com/integerman/jaimes/internal/services/gm/review"
	"github.com/integerman/jaimes/internal/services/gm/rulebook"
	"github.com/integerman/jaimes/internal/services/gm/session"
	"go.opentelemetry.io/otel/trace"
)

// Config describes one game master process.
type Config struct {
	AdventurePath string
	PipelinePath  string
	Character     string
	ScriptPath    string
	RulebookDB    string
	// SearchLimit caps rulebook results per search.
	SearchLimit int

	Model      string
	APIKey     string
	BaseURL    string
	MaxRetries int

	NoColor    bool
	ShowStages bool
	Verbose    bool
	SessionID  string
}

// Deps overrides collaborators, mainly for tests.
type Deps struct {
	// Completer replaces the OpenAI client.
	Completer core.Completer
	// Logger receives operational log lines; the standard logger is used
	// when nil.
	Logger *log.Logger
	// TracerProvider replaces the global tracer provider.
	TracerProvider trace.TracerProvider
}

// Runtime holds the assembled, session-independent components.
type Runtime struct {
	Adventure *adventure.Adventure
	Registry  *capability.Registry
	Pipeline  *pipelineconfig.File

	store  *rulebook.Store
	logger *log.Logger
}

// Close releases the rulebook index.
func (r *Runtime) Close() error {
	if r == nil {
		return nil
	}
	return r.store.Close()
}

func (d Deps) logger() *log.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return log.Default()
}

// Build loads the adventure, the pipeline definition and the optional
// rulebook, then registers every capability. observer receives capability
// invocations and may be nil.
func Build(cfg Config, deps Deps, observer capability.Observer) (*Runtime, error) {
	logger := deps.logger()

	adv, err := adventure.LoadPath(cfg.AdventurePath, logger)
	if err != nil {
		return nil, err
	}
	logger.Printf("loaded adventure %q by %s", adv.Name, adv.Author)

	file := pipelineconfig.Default()
	if strings.TrimSpace(cfg.PipelinePath) != "" {
		if file, err = pipelineconfig.Load(cfg.PipelinePath); err != nil {
			return nil, err
		}
	}
	if model := strings.TrimSpace(cfg.Model); model != "" {
		file.Model = model
	}

	registry := capability.NewRegistry(observer)
	if err := registry.Register(adventure.Capabilities(adv)...); err != nil {
		return nil, err
	}

	runtime := &Runtime{Adventure: adv, Registry: registry, Pipeline: file, logger: logger}
	if path := strings.TrimSpace(cfg.RulebookDB); path != "" {
		store, err := rulebook.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open rulebook index: %w", err)
		}
		runtime.store = store
		if err := registry.Register(rulebook.Capability(store, cfg.SearchLimit)); err != nil {
			_ = store.Close()
			return nil, err
		}
	}
	return runtime, nil
}

// Orchestrator builds the pipeline over completer.
func (r *Runtime) Orchestrator(completer core.Completer, observer pipeline.Observer) (*pipeline.Orchestrator, error) {
	available := func(name string) bool {
		_, ok := r.Registry.Lookup(name)
		return ok
	}
	configs := r.Pipeline.CoreConfigs(available)
	stages := make([]pipeline.Stage, 0, len(configs))
	for _, cfg := range configs {
		c, err := core.New(cfg, completer, r.Registry)
		if err != nil {
			return nil, err
		}
		stages = append(stages, c)
	}

	opts := pipeline.Options{Observer: observer, MaxRevisions: r.Pipeline.Revisions()}
	if r.Pipeline.Review.Enabled {
		opts.Reviewer = review.NewGate(completer, r.Pipeline.ReviewModel(), review.WithLogger(r.logger))
	}
	return pipeline.New(stages, opts)
}

func newCompleter(cfg Config, deps Deps) (core.Completer, error) {
	if deps.Completer != nil {
		return deps.Completer, nil
	}
	return openai.New(openai.Config{
		APIKey:     cfg.APIKey,
		BaseURL:    cfg.BaseURL,
		Model:      cfg.Model,
		MaxRetries: cfg.MaxRetries,
	})
}

// Run plays one interactive session on stdin and stdout.
func Run(ctx context.Context, cfg Config, deps Deps, stdin io.Reader, stdout io.Writer) error {
	logger := deps.logger()
	logObserver := observe.NewLogObserver(logger, cfg.Verbose)
	traceObserver := observe.NewTraceObserver(deps.TracerProvider)

	runtime, err := Build(cfg, deps, capability.Observers{logObserver, traceObserver})
	if err != nil {
		return err
	}
	defer func() {
		if err := runtime.Close(); err != nil {
			logger.Printf("close rulebook index: %v", err)
		}
	}()

	completer, err := newCompleter(cfg, deps)
	if err != nil {
		return err
	}
	renderer := console.NewRenderer(stdout, console.Options{NoColor: cfg.NoColor, ShowStages: cfg.ShowStages})
	orchestrator, err := runtime.Orchestrator(completer, pipeline.Observers{renderer, logObserver, traceObserver})
	if err != nil {
		return err
	}

	input := console.NewLineReader(stdin, renderer.Prompt)
	defer input.Close()
	if err := chooseCharacter(ctx, runtime.Adventure, cfg.Character, renderer, input); err != nil {
		return err
	}

	script := append([]string(nil), runtime.Pipeline.Script...)
	if path := strings.TrimSpace(cfg.ScriptPath); path != "" {
		lines, err := ReadScript(path)
		if err != nil {
			return err
		}
		script = append(script, lines...)
	}

	s, err := session.New(session.Config{
		Adventure: runtime.Adventure,
		Runner:    orchestrator,
		Output:    renderer,
		Script:    script,
		ID:        cfg.SessionID,
	})
	if err != nil {
		return err
	}
	logger.Printf("session %s started with stages %s", s.ID(), strings.Join(orchestrator.Stages(), " -> "))
	err = s.Run(ctx, input)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// chooseCharacter selects the player character: the configured name, the
// only available character, or one picked interactively.
func chooseCharacter(ctx context.Context, adv *adventure.Adventure, name string, out *console.Renderer, input session.LineReader) error {
	if name = strings.TrimSpace(name); name != "" {
		_, err := adv.SetPlayerCharacter(name)
		return err
	}
	if _, ok, err := adv.AutoSelectCharacter(); ok || err != nil {
		return err
	}
	if len(adv.Characters) == 0 {
		return nil
	}

	var b strings.Builder
	b.WriteString("Choose your character:")
	for _, character := range adv.Characters {
		b.WriteString("\n  ")
		b.WriteString(character.Summary())
	}
	out.Narrate("", b.String())
	for {
		line, err := input.ReadLine(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return fmt.Errorf("no character selected")
			}
			return err
		}
		if _, err := adv.SetPlayerCharacter(line); err != nil {
			out.Error(err)
			continue
		}
		return nil
	}
}

// ReadScript reads pre-scripted player messages, one per line. Blank lines
// and lines starting with # are skipped.
func ReadScript(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open script: %w", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	return lines, nil
}
