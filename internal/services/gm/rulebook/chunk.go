package rulebook

import (
	"strings"
	"unicode"
)

// DefaultChunkSize is the target chunk length in runes.
const DefaultChunkSize = 1200

// Chunk is one indexed slice of a document.
type Chunk struct {
	Heading string
	Body    string
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// Split breaks text into chunks at markdown headings and paragraph breaks.
// Paragraphs under one heading are packed together up to size runes; a
// paragraph longer than size becomes its own chunk.
func Split(text string, size int) []Chunk {
	if size <= 0 {
		size = DefaultChunkSize
	}
	var (
		chunks  []Chunk
		heading string
		current []string
		length  int
	)
	flush := func() {
		if len(current) == 0 {
			return
		}
		chunks = append(chunks, Chunk{Heading: heading, Body: strings.Join(current, "\n\n")})
		current = nil
		length = 0
	}

	var paragraph []string
	endParagraph := func() {
		if len(paragraph) == 0 {
			return
		}
		p := strings.Join(paragraph, "\n")
		paragraph = nil
		runes := len([]rune(p))
		if length > 0 && length+runes > size {
			flush()
		}
		current = append(current, p)
		length += runes
	}

	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "#"):
			endParagraph()
			flush()
			heading = strings.TrimSpace(strings.TrimLeft(trimmed, "#"))
		case trimmed == "":
			endParagraph()
		default:
			paragraph = append(paragraph, trimmed)
		}
	}
	endParagraph()
	flush()
	return chunks
}
