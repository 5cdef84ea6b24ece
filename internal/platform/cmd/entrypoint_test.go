package cmd

import (
	"context"
	"errors"
	"flag"
	"testing"
)

type testConfig struct {
	Adventure string `env:"CMD_TEST_ADVENTURE" envDefault:"adventures"`
	Model     string `env:"CMD_TEST_MODEL" envDefault:"gpt-4o-mini"`
}

func TestParseConfigReadsEnvAndFlags(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CMD_TEST_ADVENTURE", "env-adventures")
	t.Setenv("CMD_TEST_MODEL", "env-model")

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfgRef := testConfig{}
	if err := ParseConfig(&cfgRef); err != nil {
		t.Fatalf("load config defaults: %v", err)
	}
	fs.StringVar(&cfgRef.Adventure, "adventure", cfgRef.Adventure, "adventure")
	fs.StringVar(&cfgRef.Model, "model", cfgRef.Model, "model")

	if err := ParseArgs(fs, []string{"-adventure", "flag-adventure.json"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	if cfgRef.Adventure != "flag-adventure.json" {
		t.Fatalf("expected flag value for adventure, got %q", cfgRef.Adventure)
	}
	if cfgRef.Model != "env-model" {
		t.Fatalf("expected env default model, got %q", cfgRef.Model)
	}
}

func TestParseArgsRejectsNilParser(t *testing.T) {
	if err := ParseArgs(nil, []string{}); err == nil {
		t.Fatal("expected parse args to reject nil parser")
	}
}

func TestLogPrefix(t *testing.T) {
	if got := LogPrefix(" gm "); got != "[GM] " {
		t.Fatalf("LogPrefix = %q, want %q", got, "[GM] ")
	}
}

func TestRunWithTelemetryRejectsMissingInputs(t *testing.T) {
	if err := RunWithTelemetry(context.Background(), "", func(context.Context) error { return nil }); err == nil {
		t.Fatal("expected missing service error")
	}
	if err := RunWithTelemetry(context.Background(), ServiceGameMaster, nil); err == nil {
		t.Fatal("expected missing run function error")
	}
}

func TestRunWithTelemetryReturnsRunError(t *testing.T) {
	t.Setenv("JAIMES_OTEL_ENDPOINT", "")
	want := errors.New("session failed")
	err := RunWithTelemetry(context.Background(), ServiceGameMaster, func(context.Context) error { return want })
	if !errors.Is(err, want) {
		t.Fatalf("RunWithTelemetry error = %v, want %v", err, want)
	}
}
