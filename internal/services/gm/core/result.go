package core

import (
	"strings"
	"time"
)

// StageResult is the classified output of one core invocation.
type StageResult struct {
	Text    string
	Elapsed time.Duration
}

// NewStageResult wraps text produced in elapsed.
func NewStageResult(text string, elapsed time.Duration) StageResult {
	return StageResult{Text: text, Elapsed: elapsed}
}

// IsEmpty reports whether the text is empty or whitespace.
func (r StageResult) IsEmpty() bool {
	return strings.TrimSpace(r.Text) == ""
}

// IsJSONShaped reports whether the text looks like a JSON document.
func (r StageResult) IsJSONShaped() bool {
	return IsJSONShaped(r.Text)
}

// Acceptable reports whether the text may advance the pipeline.
func (r StageResult) Acceptable() bool {
	return !r.IsEmpty() && !r.IsJSONShaped()
}

// IsJSONShaped reports whether trimmed text starts with { or [ and ends with
// the matching closer. It only inspects the ends, so prose wrapped in braces
// also matches and malformed JSON is not detected.
func IsJSONShaped(text string) bool {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) < 2 {
		return false
	}
	first, last := trimmed[0], trimmed[len(trimmed)-1]
	return (first == '{' && last == '}') || (first == '[' && last == ']')
}
