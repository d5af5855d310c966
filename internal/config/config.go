package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"

	"github.com/siftdocs/sift/internal/providers"
)

// Manager handles loading and hot-reloading configuration.
type Manager struct {
	mu        sync.RWMutex
	config    *Config
	callbacks []func(*Config)
}

// NewManager creates a new config manager and loads initial config.
func NewManager(cfgFile string) (*Manager, error) {
	cm := &Manager{
		callbacks: make([]func(*Config), 0),
	}

	if err := cm.initViper(cfgFile); err != nil {
		return nil, err
	}

	cfg, err := cm.load()
	if err != nil {
		return nil, err
	}
	cm.config = cfg

	return cm, nil
}

// initViper sets up viper with defaults and config file.
func (cm *Manager) initViper(cfgFile string) error {
	defaults := DefaultConfig()
	viper.SetDefault("input_dir", defaults.InputDir)
	viper.SetDefault("classification_schema", defaults.ClassificationSchema)
	viper.SetDefault("extraction_schema", defaults.ExtractionSchema)
	viper.SetDefault("classification_prompt_mode", defaults.ClassificationPromptMode)
	viper.SetDefault("extraction_prompt_mode", defaults.ExtractionPromptMode)
	viper.SetDefault("chunk", defaults.Chunk)
	viper.SetDefault("workers", defaults.Workers)
	viper.SetDefault("max_retries", defaults.MaxRetries)
	viper.SetDefault("debug_io", defaults.DebugIO)
	viper.SetDefault("seed", defaults.Seed)
	viper.SetDefault("provider", defaults.Provider)
	viper.SetDefault("generation", defaults.Generation)
	viper.SetDefault("providers", defaults.Providers)

	// Environment variables with SIFT_ prefix
	viper.SetEnvPrefix("SIFT")
	viper.AutomaticEnv()

	// Config file
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.sift")
	}

	// Try to read config file (not required)
	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return nil
}

// load parses the current viper state into a Config struct.
func (cm *Manager) load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Get returns the current configuration (thread-safe).
func (cm *Manager) Get() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config
}

// OnChange registers a callback for config changes.
func (cm *Manager) OnChange(fn func(*Config)) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.callbacks = append(cm.callbacks, fn)
}

// WatchConfig enables hot-reloading of configuration.
func (cm *Manager) WatchConfig() {
	viper.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := cm.load()
		if err != nil {
			return
		}

		cm.mu.Lock()
		cm.config = cfg
		callbacks := make([]func(*Config), len(cm.callbacks))
		copy(callbacks, cm.callbacks)
		cm.mu.Unlock()

		for _, fn := range callbacks {
			fn(cfg)
		}
	})
	viper.WatchConfig()
}

// ResolveEnvVars expands ${ENV_VAR} references in a string.
func ResolveEnvVars(value string) string {
	if value == "" {
		return value
	}
	pattern := regexp.MustCompile(`\$\{([^}]+)\}`)
	return pattern.ReplaceAllStringFunc(value, func(match string) string {
		varName := match[2 : len(match)-1]
		return os.Getenv(varName)
	})
}

// ToRegistryConfig converts the config to a format suitable for
// providers.NewRegistry. It resolves all ${ENV_VAR} references.
func (c *Config) ToRegistryConfig() providers.RegistryConfig {
	cfg := providers.RegistryConfig{
		Providers: make(map[string]providers.ProviderConfig, len(c.Providers)),
	}

	for name, prov := range c.Providers {
		cfg.Providers[name] = providers.ProviderConfig{
			Type:       prov.Type,
			Model:      prov.Model,
			APIKey:     ResolveEnvVars(prov.APIKey),
			URL:        ResolveEnvVars(prov.URL),
			ProjectID:  ResolveEnvVars(prov.ProjectID),
			APIVersion: prov.APIVersion,
			RateLimit:  prov.RateLimit,
			Enabled:    prov.Enabled,
		}
	}

	return cfg
}

// Snapshot returns the config as a plain map for the run metadata
// artifact, with API keys redacted.
func (c *Config) Snapshot() map[string]any {
	providerSnap := make(map[string]any, len(c.Providers))
	for name, prov := range c.Providers {
		providerSnap[name] = map[string]any{
			"type":       prov.Type,
			"model":      prov.Model,
			"url":        prov.URL,
			"rate_limit": prov.RateLimit,
			"enabled":    prov.Enabled,
		}
	}
	return map[string]any{
		"input_dir":                  c.InputDir,
		"classification_schema":      c.ClassificationSchema,
		"extraction_schema":          c.ExtractionSchema,
		"classification_prompt_mode": c.ClassificationPromptMode,
		"extraction_prompt_mode":     c.ExtractionPromptMode,
		"chunk":                      map[string]any{"strategy": c.Chunk.Strategy, "size": c.Chunk.Size, "overlap": c.Chunk.Overlap},
		"workers":                    c.Workers,
		"max_retries":                c.MaxRetries,
		"debug_io":                   c.DebugIO,
		"seed":                       c.Seed,
		"provider":                   c.Provider,
		"generation":                 c.Generation,
		"providers":                  providerSnap,
	}
}

// WriteDefault writes the default configuration to the specified path.
func WriteDefault(path string) error {
	cfg := DefaultConfig()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# Sift configuration
# API keys use ${ENV_VAR} syntax to reference environment variables
# Set these in your shell: export WATSONX_API_KEY=xxx WATSONX_PROJECT_ID=xxx

`)
	return os.WriteFile(path, append(header, data...), 0o644)
}
