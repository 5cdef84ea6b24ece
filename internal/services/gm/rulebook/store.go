// Package rulebook indexes rulebook text in SQLite full-text search so a game
// master can look rules up mid-session.
package rulebook

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sqlitemigrate "github.com/integerman/jaimes/internal/platform/storage/sqlitemigrate"
	"github.com/integerman/jaimes/internal/services/gm/rulebook/migrations"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// DefaultSearchLimit caps search results when the caller gives no limit.
const DefaultSearchLimit = 3

var (
	// ErrDocumentExists indicates a source that is already indexed.
	ErrDocumentExists = errors.New("rulebook document already indexed")
	// ErrEmptyQuery indicates a query without searchable terms.
	ErrEmptyQuery = errors.New("rulebook query is empty")
)

// Document is one rulebook source to index.
type Document struct {
	Source string
	Title  string
	Text   string
}

// Hit is one search match.
type Hit struct {
	Source  string
	Title   string
	Heading string
	Body    string
	Score   float64
}

// Store is a SQLite-backed rulebook index.
type Store struct {
	sqlDB *sql.DB
	now   func() time.Time
}

// Open opens a rulebook index and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(context.Background(), sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB, now: time.Now}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// AddDocument chunks and indexes doc. It fails with ErrDocumentExists when the
// source is already indexed.
func (s *Store) AddDocument(ctx context.Context, doc Document) (int, error) {
	return s.addDocument(ctx, doc, false)
}

// ReplaceDocument indexes doc, dropping any previous version of its source.
func (s *Store) ReplaceDocument(ctx context.Context, doc Document) (int, error) {
	return s.addDocument(ctx, doc, true)
}

func (s *Store) addDocument(ctx context.Context, doc Document, replace bool) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	source := strings.TrimSpace(doc.Source)
	if source == "" {
		return 0, fmt.Errorf("document source is required")
	}
	title := strings.TrimSpace(doc.Title)
	if title == "" {
		title = source
	}
	chunks := Split(doc.Text, DefaultChunkSize)

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin index: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if replace {
		// Chunks are removed explicitly so the delete trigger keeps the
		// full-text index in sync.
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM rulebook_chunks WHERE document_id IN (SELECT id FROM rulebook_documents WHERE source = ?)`, source); err != nil {
			return 0, fmt.Errorf("delete previous chunks: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM rulebook_documents WHERE source = ?`, source); err != nil {
			return 0, fmt.Errorf("delete previous document: %w", err)
		}
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO rulebook_documents (source, title, ingested_at) VALUES (?, ?, ?)`,
		source, title, s.now().UTC().UnixMilli())
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("%w: %s", ErrDocumentExists, source)
		}
		return 0, fmt.Errorf("insert document: %w", err)
	}
	documentID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("document id: %w", err)
	}

	for i, chunk := range chunks {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO rulebook_chunks (document_id, position, heading, body) VALUES (?, ?, ?, ?)`,
			documentID, i, chunk.Heading, chunk.Body); err != nil {
			return 0, fmt.Errorf("insert chunk %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit index: %w", err)
	}
	return len(chunks), nil
}

// Search returns the best matching chunks for query, ranked by bm25.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]Hit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	match := MatchExpression(query)
	if match == "" {
		return nil, ErrEmptyQuery
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT d.source, d.title, c.heading, c.body, bm25(rulebook_chunks_fts) AS score
		   FROM rulebook_chunks_fts
		   JOIN rulebook_chunks c ON c.id = rulebook_chunks_fts.rowid
		   JOIN rulebook_documents d ON d.id = c.document_id
		  WHERE rulebook_chunks_fts MATCH ?
		  ORDER BY score, c.id
		  LIMIT ?`,
		match, limit)
	if err != nil {
		return nil, fmt.Errorf("search rulebook: %w", err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var hit Hit
		if err := rows.Scan(&hit.Source, &hit.Title, &hit.Heading, &hit.Body, &hit.Score); err != nil {
			return nil, fmt.Errorf("scan hit: %w", err)
		}
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate hits: %w", err)
	}
	return hits, nil
}

// Documents returns the number of indexed documents.
func (s *Store) Documents(ctx context.Context) (int, error) {
	var count int
	if err := s.sqlDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM rulebook_documents`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return count, nil
}

// MatchExpression turns free text into an FTS5 query that matches any of its
// words. Each word is quoted so operators in player text are inert.
func MatchExpression(query string) string {
	fields := strings.FieldsFunc(query, func(r rune) bool {
		return !(r == '\'' || r == '-' || isWordRune(r))
	})
	terms := make([]string, 0, len(fields))
	for _, field := range fields {
		field = strings.Trim(field, "'-")
		if field == "" {
			continue
		}
		terms = append(terms, `"`+field+`"`)
	}
	return strings.Join(terms, " OR ")
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
