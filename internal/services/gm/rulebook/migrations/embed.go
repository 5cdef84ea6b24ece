package migrations

import "embed"

// FS contains embedded SQLite migrations for the rulebook index.
//
//go:embed *.sql
var FS embed.FS
