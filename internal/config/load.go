package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

func defaultConfig() *Config {
	return &Config{
		Env: "development",
		Generation: GenerationConfig{
			BaseURL:     "https://openrouter.ai/api/v1",
			Model:       "openai/gpt-5.1",
			Temperature: 0.2,
			Timeout:     Duration{Duration: 120 * time.Second},
			MaxAttempts: 3,
			AppTitle:    "AI Persona Cards",
		},
		Pipeline: PipelineConfig{
			PersonaPath:     "personas/kirana_shop.json",
			OutputDir:       "outputs",
			CardsOutputPath: "outputs/cards_output.json",
			LedgerPath:      "outputs/runs.db",
		},
		Proxy: ProxyConfig{
			Addr:            ":5001",
			AllowedOrigins:  []string{"http://localhost:3000", "http://localhost:5173"},
			ShutdownTimeout: Duration{Duration: 10 * time.Second},
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path
// (optional; CARDS_CONFIG_PATH is consulted when path is empty), and
// environment overrides.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if strings.TrimSpace(path) == "" {
		path = strings.TrimSpace(os.Getenv("CARDS_CONFIG_PATH"))
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.Generation.APIKey = strings.TrimSpace(os.Getenv("OPENROUTER_API_KEY"))

	if v := strings.TrimSpace(os.Getenv("LOG_MODE")); v != "" {
		cfg.Env = v
	}
	if v := strings.TrimSpace(os.Getenv("CARDS_MODEL")); v != "" {
		cfg.Generation.Model = v
	}
	if v := strings.TrimSpace(os.Getenv("CARDS_BASE_URL")); v != "" {
		cfg.Generation.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("CARDS_TEMPERATURE")); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Generation.Temperature = f
		}
	}
	if v := strings.TrimSpace(os.Getenv("CARDS_PERSONA_PATH")); v != "" {
		cfg.Pipeline.PersonaPath = v
	}
	if v := strings.TrimSpace(os.Getenv("CARDS_OUTPUT_DIR")); v != "" {
		cfg.Pipeline.OutputDir = v
	}
	if v := strings.TrimSpace(os.Getenv("CARDS_PROXY_ADDR")); v != "" {
		cfg.Proxy.Addr = v
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.Env) == "" {
		c.Env = "development"
	}
	c.Generation.BaseURL = strings.TrimRight(strings.TrimSpace(c.Generation.BaseURL), "/")
	if c.Generation.BaseURL == "" {
		return errors.New("generation.base_url is required")
	}
	if strings.TrimSpace(c.Generation.Model) == "" {
		return errors.New("generation.model is required")
	}
	if c.Generation.Timeout.Duration <= 0 {
		c.Generation.Timeout = Duration{Duration: 120 * time.Second}
	}
	if c.Generation.MaxAttempts <= 0 {
		c.Generation.MaxAttempts = 3
	}
	if strings.TrimSpace(c.Pipeline.PersonaPath) == "" {
		return errors.New("pipeline.persona_path is required")
	}
	if strings.TrimSpace(c.Pipeline.OutputDir) == "" {
		return errors.New("pipeline.output_dir is required")
	}
	if strings.TrimSpace(c.Pipeline.CardsOutputPath) == "" {
		return errors.New("pipeline.cards_output_path is required")
	}
	if strings.TrimSpace(c.Proxy.Addr) == "" {
		c.Proxy.Addr = ":5001"
	}
	if c.Proxy.ShutdownTimeout.Duration <= 0 {
		c.Proxy.ShutdownTimeout = Duration{Duration: 10 * time.Second}
	}
	return nil
}
