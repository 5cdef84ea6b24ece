// Package rulebookindex parses flags for building the rulebook search index.
package rulebookindex

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"

	platformcmd "github.com/integerman/jaimes/internal/platform/cmd"
	"github.com/integerman/jaimes/internal/services/gm/rulebook"
)

// Config holds rulebook indexing configuration.
type Config struct {
	Source string `env:"JAIMES_RULEBOOK_SOURCE" envDefault:"rulebooks"`
	DB     string `env:"JAIMES_RULEBOOK_DB"     envDefault:"rulebook.db"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := platformcmd.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.Source, "source", cfg.Source, "Rulebook file or directory of .md/.txt files")
	fs.StringVar(&cfg.DB, "db", cfg.DB, "Index database path")
	if err := platformcmd.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	if strings.TrimSpace(cfg.Source) == "" {
		return Config{}, fmt.Errorf("source is required")
	}
	if strings.TrimSpace(cfg.DB) == "" {
		return Config{}, fmt.Errorf("db is required")
	}
	return cfg, nil
}

// Run indexes every rulebook under cfg.Source into cfg.DB.
func Run(ctx context.Context, cfg Config) error {
	return platformcmd.RunWithTelemetry(ctx, platformcmd.ServiceRulebookIndex, func(ctx context.Context) error {
		return Index(ctx, cfg, log.Default())
	})
}

// Index opens the index and ingests cfg.Source.
func Index(ctx context.Context, cfg Config, logger *log.Logger) error {
	store, err := rulebook.Open(cfg.DB)
	if err != nil {
		return err
	}
	defer store.Close()

	count, err := store.IngestPath(ctx, cfg.Source, logger)
	if err != nil {
		return err
	}
	logger.Printf("indexed %d rulebook file(s) into %s", count, cfg.DB)
	return nil
}
