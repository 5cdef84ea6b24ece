package rulebook

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// IsRulebookFile reports whether path is an indexable text file.
func IsRulebookFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown", ".txt":
		return true
	default:
		return false
	}
}

// IngestFile indexes one file, replacing an earlier version of it. The title
// is the first markdown heading, or the file name.
func (s *Store) IngestFile(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read rulebook file: %w", err)
	}
	text := string(data)
	return s.ReplaceDocument(ctx, Document{
		Source: filepath.ToSlash(filepath.Clean(path)),
		Title:  documentTitle(path, text),
		Text:   text,
	})
}

// IngestPath indexes a file, or every rulebook file below a directory.
// Unreadable files inside a directory are skipped with a warning. It returns
// the number of documents indexed.
func (s *Store) IngestPath(ctx context.Context, root string, logger *log.Logger) (int, error) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	info, err := os.Stat(root)
	if err != nil {
		return 0, fmt.Errorf("stat rulebook path: %w", err)
	}
	if !info.IsDir() {
		if _, err := s.IngestFile(ctx, root); err != nil {
			return 0, err
		}
		return 1, nil
	}

	documents := 0
	err = filepath.WalkDir(root, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if entry.IsDir() || !IsRulebookFile(path) {
			return nil
		}
		chunks, err := s.IngestFile(ctx, path)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Printf("skip rulebook file %s: %v", path, err)
			return nil
		}
		logger.Printf("indexed %s (%d chunks)", path, chunks)
		documents++
		return nil
	})
	if err != nil {
		return documents, fmt.Errorf("walk rulebook path: %w", err)
	}
	return documents, nil
}

func documentTitle(path, text string) string {
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") {
			if title := strings.TrimSpace(strings.TrimLeft(trimmed, "#")); title != "" {
				return title
			}
		}
	}
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
