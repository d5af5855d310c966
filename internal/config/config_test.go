package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v2"
)

func TestResolveEnvVars(t *testing.T) {
	t.Setenv("SIFT_TEST_KEY", "secret-value")
	t.Setenv("SIFT_TEST_URL", "https://example.com")

	cases := []struct {
		in   string
		want string
	}{
		{"${SIFT_TEST_KEY}", "secret-value"},
		{"prefix-${SIFT_TEST_KEY}-suffix", "prefix-secret-value-suffix"},
		{"${SIFT_TEST_KEY}/${SIFT_TEST_URL}", "secret-value/https://example.com"},
		{"${SIFT_TEST_UNSET}", ""},
		{"no references here", "no references here"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := ResolveEnvVars(tc.in); got != tc.want {
			t.Errorf("ResolveEnvVars(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestToRegistryConfig(t *testing.T) {
	t.Setenv("WATSONX_API_KEY", "wx-key")
	t.Setenv("WATSONX_PROJECT_ID", "wx-proj")

	cfg := DefaultConfig()
	reg := cfg.ToRegistryConfig()

	wx, ok := reg.Providers["watsonx"]
	if !ok {
		t.Fatal("watsonx provider missing from registry config")
	}
	if wx.APIKey != "wx-key" {
		t.Errorf("api key not resolved: %q", wx.APIKey)
	}
	if wx.ProjectID != "wx-proj" {
		t.Errorf("project id not resolved: %q", wx.ProjectID)
	}
	if wx.Model != "ibm/granite-13b-instruct-v2" || !wx.Enabled {
		t.Errorf("unexpected watsonx config: %+v", wx)
	}
	if rits := reg.Providers["rits"]; rits.Enabled {
		t.Error("rits must stay disabled by default")
	}
}

func TestValidate(t *testing.T) {
	t.Run("defaults are valid", func(t *testing.T) {
		if err := DefaultConfig().Validate(); err != nil {
			t.Errorf("default config must validate: %v", err)
		}
	})

	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing input dir", func(c *Config) { c.InputDir = "" }, "input_dir"},
		{"missing schema", func(c *Config) { c.ExtractionSchema = "" }, "extraction_schema"},
		{"bad prompt mode", func(c *Config) { c.ClassificationPromptMode = "many" }, "prompt mode"},
		{"bad chunk strategy", func(c *Config) { c.Chunk.Strategy = "pages" }, "chunk strategy"},
		{"negative workers", func(c *Config) { c.Workers = -1 }, "workers"},
		{"negative retries", func(c *Config) { c.MaxRetries = -2 }, "max_retries"},
		{"bad generation", func(c *Config) { c.Generation.Temperature = 9 }, "generation"},
		{"unknown provider", func(c *Config) { c.Provider = "anthropic" }, "not configured"},
		{"disabled provider", func(c *Config) { c.Provider = "rits" }, "disabled"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestSnapshotRedactsSecrets(t *testing.T) {
	cfg := DefaultConfig()
	snap := cfg.Snapshot()

	providerSnap, ok := snap["providers"].(map[string]any)
	if !ok {
		t.Fatal("providers missing from snapshot")
	}
	wx, _ := providerSnap["watsonx"].(map[string]any)
	if _, present := wx["api_key"]; present {
		t.Error("snapshot must not carry API keys")
	}
	if wx["model"] != "ibm/granite-13b-instruct-v2" {
		t.Errorf("unexpected model in snapshot: %v", wx["model"])
	}
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := WriteDefault(path); err != nil {
		t.Fatalf("WriteDefault failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("cannot read written config: %v", err)
	}
	if !strings.HasPrefix(string(data), "# Sift configuration") {
		t.Error("written config must start with the comment header")
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("written config must be valid YAML: %v", err)
	}
	if cfg.Provider != "watsonx" || cfg.Workers != 4 {
		t.Errorf("round-tripped config diverges: provider=%q workers=%d", cfg.Provider, cfg.Workers)
	}
	if cfg.Providers["watsonx"].APIKey != "${WATSONX_API_KEY}" {
		t.Errorf("env reference must survive the round trip: %q", cfg.Providers["watsonx"].APIKey)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("round-tripped config must validate: %v", err)
	}
}
