// Package gm parses game master flags and runs an interactive session.
package gm

import (
	"context"
	"flag"
	"os"
	"strings"

	platformcmd "github.com/integerman/jaimes/internal/platform/cmd"
	"github.com/integerman/jaimes/internal/services/gm/app"
)

// Config holds game master command configuration.
type Config struct {
	Adventure  string `env:"JAIMES_ADVENTURE"      envDefault:"adventures"`
	Pipeline   string `env:"JAIMES_PIPELINE"`
	Character  string `env:"JAIMES_CHARACTER"`
	Script     string `env:"JAIMES_SCRIPT"`
	RulebookDB string `env:"JAIMES_RULEBOOK_DB"`
	Model      string `env:"JAIMES_MODEL"`
	APIKey     string `env:"OPENAI_API_KEY"`
	BaseURL    string `env:"OPENAI_BASE_URL"`
	MaxRetries int    `env:"JAIMES_MODEL_MAX_RETRIES" envDefault:"2"`
	// NoColorEnv follows the NO_COLOR convention: any non-empty value
	// disables color.
	NoColorEnv string `env:"NO_COLOR"`
	NoColor    bool
	ShowStages bool `env:"JAIMES_SHOW_STAGES"`
	Verbose    bool `env:"JAIMES_VERBOSE"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := platformcmd.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	cfg.NoColor = strings.TrimSpace(cfg.NoColorEnv) != ""

	fs.StringVar(&cfg.Adventure, "adventure", cfg.Adventure, "Adventure file, or a directory holding one")
	fs.StringVar(&cfg.Pipeline, "pipeline", cfg.Pipeline, "Pipeline definition (YAML); the built-in pipeline when empty")
	fs.StringVar(&cfg.Character, "character", cfg.Character, "Player character name")
	fs.StringVar(&cfg.Script, "script", cfg.Script, "File of scripted player messages, one per line")
	fs.StringVar(&cfg.RulebookDB, "rulebook-db", cfg.RulebookDB, "Rulebook index built by rulebook-index")
	fs.StringVar(&cfg.Model, "model", cfg.Model, "Model override for every stage")
	fs.StringVar(&cfg.BaseURL, "base-url", cfg.BaseURL, "OpenAI-compatible API base URL")
	fs.IntVar(&cfg.MaxRetries, "max-retries", cfg.MaxRetries, "Transport retries per model request")
	fs.BoolVar(&cfg.NoColor, "no-color", cfg.NoColor, "Disable colored output")
	fs.BoolVar(&cfg.ShowStages, "show-stages", cfg.ShowStages, "Print intermediate stage outputs")
	fs.BoolVar(&cfg.Verbose, "verbose", cfg.Verbose, "Log every pipeline event")
	if err := platformcmd.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// AppConfig maps command configuration onto the game master runtime.
func (c Config) AppConfig() app.Config {
	return app.Config{
		AdventurePath: c.Adventure,
		PipelinePath:  c.Pipeline,
		Character:     c.Character,
		ScriptPath:    c.Script,
		RulebookDB:    c.RulebookDB,
		Model:         c.Model,
		APIKey:        c.APIKey,
		BaseURL:       c.BaseURL,
		MaxRetries:    c.MaxRetries,
		NoColor:       c.NoColor,
		ShowStages:    c.ShowStages,
		Verbose:       c.Verbose,
	}
}

// Run plays a session on the process's standard streams.
func Run(ctx context.Context, cfg Config) error {
	return platformcmd.RunWithTelemetry(ctx, platformcmd.ServiceGameMaster, func(ctx context.Context) error {
		return app.Run(ctx, cfg.AppConfig(), app.Deps{}, os.Stdin, os.Stdout)
	})
}
