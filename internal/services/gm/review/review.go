// Package review implements the output gate that checks a final reply for
// moves that take control away from the player.
//
// The gate fails open: a classifier error or an unexpected reply shape is
// logged and treated as acceptable.
package review

import (
	"context"
	"io"
	"log"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/integerman/jaimes/internal/platform/timeouts"
	"github.com/integerman/jaimes/internal/services/gm/core"
	"github.com/integerman/jaimes/internal/services/gm/transcript"
)

const (
	// StageName identifies the classifier in model requests.
	StageName = "Output Reviewer"

	verdictAcceptable    = "ACCEPTABLE"
	verdictNeedsRevision = "NEEDS_REVISION"
)

// Rubric is the fixed instruction given to the classifier.
const Rubric = `You review replies written by a tabletop game master before the player sees them.
A reply NEEDS_REVISION when it does any of the following:
1. Rolls dice on the player's behalf.
2. Asks the player what their character remembers or knows.
3. Narrates actions of the player's character that the player did not request.
4. Otherwise decides outcomes or choices that belong to the player.
Answer with exactly ACCEPTABLE, or NEEDS_REVISION followed by a short reason.`

// Verdict is the gate's decision on one reply.
type Verdict struct {
	Acceptable bool
	Feedback   string
}

// Gate classifies replies with a model.
type Gate struct {
	completer core.Completer
	model     string
	logger    *log.Logger
	timeout   time.Duration
}

// Option customizes a Gate.
type Option func(*Gate)

// WithLogger sets the logger used for fail-open warnings.
func WithLogger(logger *log.Logger) Option {
	return func(g *Gate) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithTimeout bounds each classifier call; zero disables the bound.
func WithTimeout(timeout time.Duration) Option {
	return func(g *Gate) {
		g.timeout = timeout
	}
}

// NewGate returns a gate backed by completer using model.
func NewGate(completer core.Completer, model string, opts ...Option) *Gate {
	g := &Gate{
		completer: completer,
		model:     strings.TrimSpace(model),
		logger:    log.New(io.Discard, "", 0),
		timeout:   timeouts.ReviewRequest,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Review classifies text. Empty text is acceptable without a model call.
func (g *Gate) Review(ctx context.Context, text string) Verdict {
	if strings.TrimSpace(text) == "" {
		return Verdict{Acceptable: true}
	}
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	resp, err := g.completer.Complete(ctx, core.Request{
		Stage: StageName,
		Model: g.model,
		Messages: []transcript.Turn{
			transcript.System(Rubric),
			transcript.User(text),
		},
		ToolChoice: core.ToolChoiceNone,
	})
	if err != nil {
		g.logger.Printf("review failed, accepting reply: %v", err)
		return Verdict{Acceptable: true}
	}
	verdict, ok := ParseVerdict(resp.Text())
	if !ok {
		g.logger.Printf("review returned unexpected verdict %q, accepting reply", resp.Text())
	}
	return verdict
}

// ParseVerdict reads a classifier reply. The second result is false when the
// reply has neither expected shape; the verdict is then acceptable.
func ParseVerdict(reply string) (Verdict, bool) {
	trimmed := strings.TrimSpace(reply)
	switch {
	case strings.HasPrefix(trimmed, verdictNeedsRevision):
		rest := trimmed[len(verdictNeedsRevision):]
		if rest != "" {
			next, _ := utf8.DecodeRuneInString(rest)
			if next != ':' && !unicode.IsSpace(next) {
				return Verdict{Acceptable: true}, false
			}
		}
		feedback := strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(rest), ":-"))
		return Verdict{Acceptable: false, Feedback: feedback}, true
	case strings.TrimRight(trimmed, ". ") == verdictAcceptable:
		return Verdict{Acceptable: true}, true
	default:
		return Verdict{Acceptable: true}, false
	}
}
