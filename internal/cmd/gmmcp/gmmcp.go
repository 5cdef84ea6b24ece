// Package gmmcp parses flags for the capability MCP server.
package gmmcp

import (
	"context"
	"flag"

	platformcmd "github.com/integerman/jaimes/internal/platform/cmd"
	"github.com/integerman/jaimes/internal/services/gm/app"
)

// Config holds MCP command configuration.
type Config struct {
	Adventure  string `env:"JAIMES_ADVENTURE"   envDefault:"adventures"`
	Character  string `env:"JAIMES_CHARACTER"`
	RulebookDB string `env:"JAIMES_RULEBOOK_DB"`
	Verbose    bool   `env:"JAIMES_VERBOSE"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := platformcmd.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.Adventure, "adventure", cfg.Adventure, "Adventure file, or a directory holding one")
	fs.StringVar(&cfg.Character, "character", cfg.Character, "Player character for get_character_sheet")
	fs.StringVar(&cfg.RulebookDB, "rulebook-db", cfg.RulebookDB, "Rulebook index built by rulebook-index")
	fs.BoolVar(&cfg.Verbose, "verbose", cfg.Verbose, "Log every capability call")
	if err := platformcmd.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run serves the adventure's capabilities over stdio.
func Run(ctx context.Context, cfg Config) error {
	return platformcmd.RunWithTelemetry(ctx, platformcmd.ServiceMCP, func(ctx context.Context) error {
		return app.ServeMCP(ctx, app.Config{
			AdventurePath: cfg.Adventure,
			Character:     cfg.Character,
			RulebookDB:    cfg.RulebookDB,
			Verbose:       cfg.Verbose,
		}, app.Deps{}, nil)
	})
}
