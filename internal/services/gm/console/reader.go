package console

import (
	"bufio"
	"context"
	"io"
	"sync"
)

type line struct {
	text string
	err  error
}

// LineReader reads player lines from an io.Reader. ReadLine honors context
// cancellation even while the underlying read blocks.
//
// Close stops the scanning goroutine once its current read returns; a read
// blocked on a terminal that never delivers another line stays blocked until
// the process exits.
type LineReader struct {
	prompt func()
	lines  chan line
	quit   chan struct{}
	done   chan struct{}
	once   sync.Once
}

// NewLineReader starts reading r. prompt, when set, runs before each line is
// awaited.
func NewLineReader(r io.Reader, prompt func()) *LineReader {
	reader := &LineReader{
		prompt: prompt,
		lines:  make(chan line),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go reader.scan(r)
	return reader
}

func (l *LineReader) scan(r io.Reader) {
	defer close(l.done)
	defer close(l.lines)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if !l.send(line{text: scanner.Text()}) {
			return
		}
	}
	if err := scanner.Err(); err != nil {
		l.send(line{err: err})
	}
}

func (l *LineReader) send(next line) bool {
	select {
	case l.lines <- next:
		return true
	case <-l.quit:
		return false
	}
}

// ReadLine returns the next line, io.EOF at end of input or after Close, or
// ctx.Err().
func (l *LineReader) ReadLine(ctx context.Context) (string, error) {
	if l.prompt != nil {
		l.prompt()
	}
	select {
	case got, ok := <-l.lines:
		if !ok {
			return "", io.EOF
		}
		return got.text, got.err
	case <-l.quit:
		return "", io.EOF
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Close stops delivering lines. It is safe to call more than once.
func (l *LineReader) Close() error {
	l.once.Do(func() { close(l.quit) })
	return nil
}
