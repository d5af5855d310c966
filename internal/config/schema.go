package config

import (
	"fmt"

	"github.com/siftdocs/sift/internal/ingest"
	"github.com/siftdocs/sift/internal/prompt"
	"github.com/siftdocs/sift/internal/providers"
)

// Config holds sift configuration.
// Stored at: {workdir}/config.yaml
type Config struct {
	InputDir string `mapstructure:"input_dir" yaml:"input_dir"`

	ClassificationSchema string `mapstructure:"classification_schema" yaml:"classification_schema"`
	ExtractionSchema     string `mapstructure:"extraction_schema" yaml:"extraction_schema"`

	// Prompt modes per stage: "zero" or "few".
	ClassificationPromptMode string `mapstructure:"classification_prompt_mode" yaml:"classification_prompt_mode"`
	ExtractionPromptMode     string `mapstructure:"extraction_prompt_mode" yaml:"extraction_prompt_mode"`

	Chunk ChunkCfg `mapstructure:"chunk" yaml:"chunk"`

	Workers    int  `mapstructure:"workers" yaml:"workers"`
	MaxRetries int  `mapstructure:"max_retries" yaml:"max_retries"`
	DebugIO    bool `mapstructure:"debug_io" yaml:"debug_io"`

	Seed int64 `mapstructure:"seed" yaml:"seed"`

	// Provider selects which entry of Providers runs the stages.
	Provider   string                 `mapstructure:"provider" yaml:"provider"`
	Generation providers.Parameters   `mapstructure:"generation" yaml:"generation"`
	Providers  map[string]ProviderCfg `mapstructure:"providers" yaml:"providers"`
}

// ChunkCfg configures document chunking.
type ChunkCfg struct {
	Strategy string `mapstructure:"strategy" yaml:"strategy"` // "none", "fixed", "sentence", "paragraph"
	Size     int    `mapstructure:"size" yaml:"size"`
	Overlap  int    `mapstructure:"overlap" yaml:"overlap"`
}

// ProviderCfg configures an LLM provider.
type ProviderCfg struct {
	Type       string  `mapstructure:"type" yaml:"type"`   // "watsonx", "rits", "mock"
	Model      string  `mapstructure:"model" yaml:"model"` // Model identifier
	APIKey     string  `mapstructure:"api_key" yaml:"api_key"` // API key (supports ${ENV_VAR} syntax)
	URL        string  `mapstructure:"url" yaml:"url"`
	ProjectID  string  `mapstructure:"project_id" yaml:"project_id,omitempty"`   // watsonx only
	APIVersion string  `mapstructure:"api_version" yaml:"api_version,omitempty"` // watsonx only
	RateLimit  float64 `mapstructure:"rate_limit" yaml:"rate_limit"`             // Requests per second
	Enabled    bool    `mapstructure:"enabled" yaml:"enabled"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		InputDir:                 "input",
		ClassificationSchema:     "schemas/classification.json",
		ExtractionSchema:         "schemas/extraction.json",
		ClassificationPromptMode: string(prompt.ModeFew),
		ExtractionPromptMode:     string(prompt.ModeZero),
		Chunk: ChunkCfg{
			Strategy: string(ingest.StrategyParagraph),
		},
		Workers:    4,
		MaxRetries: 3,
		Provider:   "watsonx",
		Generation: providers.DefaultParameters(),
		Providers: map[string]ProviderCfg{
			"watsonx": {
				Type:       "watsonx",
				Model:      "ibm/granite-13b-instruct-v2",
				APIKey:     "${WATSONX_API_KEY}",
				URL:        "https://us-south.ml.cloud.ibm.com",
				ProjectID:  "${WATSONX_PROJECT_ID}",
				APIVersion: providers.WatsonxAPIVersion,
				RateLimit:  2.0,
				Enabled:    true,
			},
			"rits": {
				Type:      "rits",
				Model:     "meta-llama/llama-3-3-70b-instruct",
				APIKey:    "${RITS_API_KEY}",
				URL:       "${RITS_API_URL}",
				RateLimit: 2.0,
				Enabled:   false,
			},
		},
	}
}

// GetProvider returns a provider config by name.
func (c *Config) GetProvider(name string) (ProviderCfg, bool) {
	cfg, ok := c.Providers[name]
	return cfg, ok
}

// EnabledProviders returns all enabled providers.
func (c *Config) EnabledProviders() map[string]ProviderCfg {
	result := make(map[string]ProviderCfg)
	for name, cfg := range c.Providers {
		if cfg.Enabled {
			result[name] = cfg
		}
	}
	return result
}

// Validate checks the configuration before a run starts.
func (c *Config) Validate() error {
	if c.InputDir == "" {
		return fmt.Errorf("input_dir is required")
	}
	if c.ClassificationSchema == "" || c.ExtractionSchema == "" {
		return fmt.Errorf("classification_schema and extraction_schema are required")
	}
	if _, err := prompt.ParseMode(c.ClassificationPromptMode); err != nil {
		return fmt.Errorf("classification_prompt_mode: %w", err)
	}
	if _, err := prompt.ParseMode(c.ExtractionPromptMode); err != nil {
		return fmt.Errorf("extraction_prompt_mode: %w", err)
	}
	if _, ok := ingest.ParseStrategy(c.Chunk.Strategy); !ok {
		return fmt.Errorf("unknown chunk strategy %q", c.Chunk.Strategy)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must not be negative, got %d", c.MaxRetries)
	}
	if err := c.Generation.Validate(); err != nil {
		return fmt.Errorf("generation: %w", err)
	}

	prov, ok := c.Providers[c.Provider]
	if !ok {
		return fmt.Errorf("provider %q is not configured", c.Provider)
	}
	if !prov.Enabled {
		return fmt.Errorf("provider %q is disabled", c.Provider)
	}
	return nil
}
