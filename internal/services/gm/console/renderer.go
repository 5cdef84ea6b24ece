// Package console renders a session to a terminal and reads player input.
package console

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/integerman/jaimes/internal/services/gm/pipeline"
	"github.com/muesli/termenv"
)

// Options configures a Renderer.
type Options struct {
	// NoColor disables styling, for pipes and NO_COLOR terminals.
	NoColor bool
	// ShowStages prints accepted intermediate stage outputs.
	ShowStages bool
	// Width wraps narration; zero disables wrapping.
	Width int
}

// Renderer writes narration, stage progress and errors.
type Renderer struct {
	mu         sync.Mutex
	w          io.Writer
	showStages bool

	author lipgloss.Style
	body   lipgloss.Style
	stage  lipgloss.Style
	errors lipgloss.Style
	prompt lipgloss.Style
}

// NewRenderer returns a renderer writing to w.
func NewRenderer(w io.Writer, opts Options) *Renderer {
	renderer := lipgloss.NewRenderer(w)
	if opts.NoColor {
		renderer.SetColorProfile(termenv.Ascii)
	}
	body := renderer.NewStyle()
	if opts.Width > 0 {
		body = body.Width(opts.Width)
	}
	return &Renderer{
		w:          w,
		showStages: opts.ShowStages,
		author:     renderer.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF")),
		body:       body,
		stage:      renderer.NewStyle().Italic(true).Foreground(lipgloss.Color("#888888")),
		errors:     renderer.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF6B6B")),
		prompt:     renderer.NewStyle().Foreground(lipgloss.Color("#AAAAAA")),
	}
}

// Narrate prints a reply under its author.
func (r *Renderer) Narrate(author, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if author = strings.TrimSpace(author); author != "" {
		fmt.Fprintln(r.w, r.author.Render(author+":"))
	}
	fmt.Fprintln(r.w, r.body.Render(strings.TrimSpace(text)))
	fmt.Fprintln(r.w)
}

// Error prints a clearly marked error line.
func (r *Renderer) Error(err error) {
	if err == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.w, r.errors.Render("error: "+err.Error()))
}

// Prompt asks the player for input.
func (r *Renderer) Prompt() {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprint(r.w, r.prompt.Render("> "))
}

// Observe implements pipeline.Observer. Only accepted intermediate outputs
// are shown; rejected attempts stay silent.
func (r *Renderer) Observe(_ context.Context, event pipeline.Event) {
	if !r.showStages || event.Kind != pipeline.EventStageAccepted || event.Final {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.w, r.stage.Render(fmt.Sprintf("[%s] %s", event.Stage, strings.TrimSpace(event.Text))))
}
