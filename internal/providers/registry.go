package providers

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// ProviderConfig describes one backend to instantiate, with the API key
// already resolved from the environment.
type ProviderConfig struct {
	Type       string  // "watsonx", "rits", "mock"
	Model      string  // model identifier
	APIKey     string  // resolved API key
	URL        string  // service endpoint
	ProjectID  string  // watsonx project
	APIVersion string  // watsonx API version
	RateLimit  float64 // requests per second
	Enabled    bool
}

// RegistryConfig defines the providers to instantiate from configuration.
type RegistryConfig struct {
	Providers map[string]ProviderConfig
}

// Registry holds instantiated provider clients by name. It is built once
// from configuration and read-only afterwards.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]Client
	logger  *slog.Logger
}

// NewRegistry instantiates every enabled provider in the configuration.
// An unknown provider type is a configuration error.
func NewRegistry(cfg RegistryConfig, logger *slog.Logger) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}

	r := &Registry{
		clients: make(map[string]Client, len(cfg.Providers)),
		logger:  logger,
	}

	for name, provCfg := range cfg.Providers {
		if !provCfg.Enabled {
			continue
		}
		client, err := createClient(provCfg)
		if err != nil {
			return nil, fmt.Errorf("provider %q: %w", name, err)
		}
		r.clients[name] = client
		logger.Info("registered provider",
			"name", name,
			"type", provCfg.Type,
			"model", provCfg.Model)
	}

	return r, nil
}

// Get returns a provider client by name.
func (r *Registry) Get(name string) (Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	client, ok := r.clients[name]
	if !ok {
		return nil, fmt.Errorf("provider not found: %s", name)
	}
	return client, nil
}

// Has checks whether a provider is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.clients[name]
	return ok
}

// List returns registered provider names in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.clients))
	for name := range r.clients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Register adds a client under the given name. Used by tests to inject
// mocks.
func (r *Registry) Register(name string, client Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[name] = client
}

func createClient(cfg ProviderConfig) (Client, error) {
	switch cfg.Type {
	case "watsonx":
		return NewWatsonxClient(WatsonxConfig{
			APIKey:     cfg.APIKey,
			URL:        cfg.URL,
			ProjectID:  cfg.ProjectID,
			Model:      cfg.Model,
			APIVersion: cfg.APIVersion,
			RateLimit:  cfg.RateLimit,
		}), nil
	case "rits":
		return NewRITSClient(RITSConfig{
			APIKey:    cfg.APIKey,
			URL:       cfg.URL,
			Model:     cfg.Model,
			RateLimit: cfg.RateLimit,
		}), nil
	case "mock":
		client := NewMockClient("{}")
		if cfg.Model != "" {
			client.ModelName = cfg.Model
		}
		if cfg.RateLimit > 0 {
			client.RateLimit = cfg.RateLimit
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown provider type %q (want watsonx, rits, or mock)", cfg.Type)
	}
}

var (
	_ Client        = (*WatsonxClient)(nil)
	_ Client        = (*RITSClient)(nil)
	_ Client        = (*MockClient)(nil)
	_ HealthChecker = (*WatsonxClient)(nil)
	_ HealthChecker = (*RITSClient)(nil)
)
