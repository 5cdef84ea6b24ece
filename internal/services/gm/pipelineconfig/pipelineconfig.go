// Package pipelineconfig reads pipeline definitions from YAML.
//
// A definition lists the cores in execution order with their instructions,
// context policy, capabilities and retry budget, plus the optional review
// gate and pre-scripted player messages.
package pipelineconfig

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	apperrors "github.com/integerman/jaimes/internal/platform/errors"
	"github.com/integerman/jaimes/internal/services/gm/core"
	"gopkg.in/yaml.v3"
)

// DefaultMaxRevisions is used when a file enables review without a budget.
const DefaultMaxRevisions = 1

//go:embed default_pipeline.yaml
var defaultPipeline []byte

// CoreSpec is one core as written in YAML.
type CoreSpec struct {
	Name               string   `yaml:"name"`
	Model              string   `yaml:"model,omitempty"`
	Instructions       []string `yaml:"instructions"`
	IncludeHistory     bool     `yaml:"include_history"`
	IncludePlayerInput bool     `yaml:"include_player_input"`
	Capabilities       []string `yaml:"capabilities,omitempty"`
	// OptionalCapabilities are enabled only when registered.
	OptionalCapabilities []string `yaml:"optional_capabilities,omitempty"`
	// MaxAttempts is the retry budget; unset uses core.DefaultMaxAttempts and
	// zero means unbounded.
	MaxAttempts *int `yaml:"max_attempts,omitempty"`
}

// ReviewSpec configures the review gate.
type ReviewSpec struct {
	Enabled bool   `yaml:"enabled"`
	Model   string `yaml:"model,omitempty"`
}

// File is a pipeline definition.
type File struct {
	Model        string     `yaml:"model,omitempty"`
	MaxRevisions *int       `yaml:"max_revisions,omitempty"`
	Cores        []CoreSpec `yaml:"cores"`
	Review       ReviewSpec `yaml:"review"`
	Script       []string   `yaml:"script,omitempty"`
}

// Default returns the embedded default pipeline.
func Default() *File {
	file, err := Parse(defaultPipeline)
	if err != nil {
		panic(fmt.Sprintf("embedded pipeline is invalid: %v", err))
	}
	return file
}

// Load reads and validates a pipeline file. Every failure carries the
// PIPELINE_INVALID code.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.WrapWithMetadata(apperrors.CodePipelineInvalid, "read pipeline", map[string]string{"source": path}, err)
	}
	file, err := Parse(data)
	if err != nil {
		return nil, apperrors.WrapWithMetadata(apperrors.CodePipelineInvalid, fmt.Sprintf("load pipeline %s", path), map[string]string{"source": path}, err)
	}
	return file, nil
}

// Parse decodes and validates a pipeline definition. Unknown keys are errors.
func Parse(data []byte) (*File, error) {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	var file File
	if err := decoder.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("pipeline is empty")
		}
		return nil, fmt.Errorf("decode pipeline: %w", err)
	}
	if err := file.Validate(); err != nil {
		return nil, err
	}
	return &file, nil
}

// Validate checks the definition.
func (f *File) Validate() error {
	if len(f.Cores) == 0 {
		return fmt.Errorf("pipeline needs at least one core")
	}
	seen := make(map[string]struct{}, len(f.Cores))
	for i, spec := range f.Cores {
		name := strings.TrimSpace(spec.Name)
		if name == "" {
			return fmt.Errorf("core %d: name is required", i+1)
		}
		key := strings.ToLower(name)
		if _, dup := seen[key]; dup {
			return fmt.Errorf("duplicate core name %q", name)
		}
		seen[key] = struct{}{}
		if len(spec.Instructions) == 0 {
			return fmt.Errorf("core %s: at least one instruction is required", name)
		}
		if spec.MaxAttempts != nil && *spec.MaxAttempts < 0 {
			return fmt.Errorf("core %s: max_attempts must not be negative", name)
		}
	}
	if f.MaxRevisions != nil && *f.MaxRevisions < 0 {
		return fmt.Errorf("max_revisions must not be negative")
	}
	return nil
}

// Revisions returns the revision budget of the review loop.
func (f *File) Revisions() int {
	if f.MaxRevisions == nil {
		return DefaultMaxRevisions
	}
	return *f.MaxRevisions
}

// ReviewModel returns the model used by the review gate.
func (f *File) ReviewModel() string {
	if model := strings.TrimSpace(f.Review.Model); model != "" {
		return model
	}
	return f.Model
}

// CoreConfigs converts the specs into core configurations. available
// reports whether a capability is registered; it only filters optional
// capabilities, so a missing required capability still fails core creation.
func (f *File) CoreConfigs(available func(name string) bool) []core.Config {
	configs := make([]core.Config, 0, len(f.Cores))
	for _, spec := range f.Cores {
		model := strings.TrimSpace(spec.Model)
		if model == "" {
			model = f.Model
		}
		attempts := core.DefaultMaxAttempts
		if spec.MaxAttempts != nil {
			attempts = *spec.MaxAttempts
		}
		capabilities := append([]string(nil), spec.Capabilities...)
		for _, name := range spec.OptionalCapabilities {
			if available != nil && available(name) {
				capabilities = append(capabilities, name)
			}
		}
		configs = append(configs, core.Config{
			Name:               strings.TrimSpace(spec.Name),
			Model:              model,
			Instructions:       append([]string(nil), spec.Instructions...),
			IncludeHistory:     spec.IncludeHistory,
			IncludePlayerInput: spec.IncludePlayerInput,
			Capabilities:       capabilities,
			MaxAttempts:        attempts,
		})
	}
	return configs
}
