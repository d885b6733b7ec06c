// Package config loads process configuration for the pipeline and the
// chat proxy: defaults, then an optional YAML file, then environment
// overrides, validated before use.
package config

import (
	"fmt"
	"time"
)

// Duration wraps time.Duration so YAML can carry values like "90s".
type Duration struct {
	Duration time.Duration
}

func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var raw string
	if err := unmarshal(&raw); err != nil {
		var n int64
		if err2 := unmarshal(&n); err2 == nil {
			d.Duration = time.Duration(n)
			return nil
		}
		return err
	}
	if raw == "" {
		d.Duration = 0
		return nil
	}
	dd, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("duration must look like \"90s\": %w", err)
	}
	d.Duration = dd
	return nil
}

// GenerationConfig configures the round trip to the generation service.
type GenerationConfig struct {
	BaseURL string `yaml:"base_url"`
	// APIKey comes from the environment only; it is never read from or
	// written to a file the pipeline owns.
	APIKey      string   `yaml:"-"`
	Model       string   `yaml:"model"`
	Temperature float64  `yaml:"temperature"`
	MaxTokens   int      `yaml:"max_tokens"`
	Timeout     Duration `yaml:"timeout"`
	MaxAttempts int      `yaml:"max_attempts"`
	AppTitle    string   `yaml:"app_title"`
}

// PipelineConfig locates the pipeline's input and output artifacts.
type PipelineConfig struct {
	PersonaPath         string `yaml:"persona_path"`
	OutputDir           string `yaml:"output_dir"`
	CardsOutputPath     string `yaml:"cards_output_path"`
	ProfileTemplatePath string `yaml:"profile_template_path"`
	CardTemplatePath    string `yaml:"card_template_path"`
	// LedgerPath is the sqlite run ledger; empty disables recording.
	LedgerPath string `yaml:"ledger_path"`
}

// ProxyConfig configures the chat proxy server.
type ProxyConfig struct {
	Addr            string   `yaml:"addr"`
	AllowedOrigins  []string `yaml:"allowed_origins"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

type Config struct {
	Env        string           `yaml:"env"`
	Generation GenerationConfig `yaml:"generation"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Proxy      ProxyConfig      `yaml:"proxy"`
}
