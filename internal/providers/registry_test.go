package providers

import (
	"context"
	"strings"
	"testing"
)

func TestNewRegistry(t *testing.T) {
	t.Run("instantiates enabled providers", func(t *testing.T) {
		cfg := RegistryConfig{
			Providers: map[string]ProviderConfig{
				"wx":   {Type: "watsonx", Model: "m1", APIKey: "k", URL: "https://example.com", Enabled: true},
				"r":    {Type: "rits", Model: "m2", APIKey: "k", URL: "https://example.com/v1", Enabled: true},
				"test": {Type: "mock", Model: "m3", Enabled: true},
				"off":  {Type: "watsonx", Enabled: false},
			},
		}
		r, err := NewRegistry(cfg, nil)
		if err != nil {
			t.Fatalf("NewRegistry failed: %v", err)
		}

		if got := r.List(); len(got) != 3 {
			t.Errorf("expected 3 providers, got %v", got)
		}
		if r.Has("off") {
			t.Error("disabled providers must not be registered")
		}

		client, err := r.Get("test")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if client.Model() != "m3" {
			t.Errorf("unexpected model: %s", client.Model())
		}
	})

	t.Run("unknown type fails", func(t *testing.T) {
		cfg := RegistryConfig{
			Providers: map[string]ProviderConfig{
				"bad": {Type: "gpt-from-scratch", Enabled: true},
			},
		}
		_, err := NewRegistry(cfg, nil)
		if err == nil || !strings.Contains(err.Error(), "unknown provider type") {
			t.Errorf("expected unknown type error, got %v", err)
		}
	})

	t.Run("missing provider", func(t *testing.T) {
		r, err := NewRegistry(RegistryConfig{}, nil)
		if err != nil {
			t.Fatalf("NewRegistry failed: %v", err)
		}
		if _, err := r.Get("nope"); err == nil {
			t.Error("expected error for unknown provider")
		}
	})

	t.Run("list is sorted", func(t *testing.T) {
		cfg := RegistryConfig{
			Providers: map[string]ProviderConfig{
				"zeta":  {Type: "mock", Enabled: true},
				"alpha": {Type: "mock", Enabled: true},
			},
		}
		r, err := NewRegistry(cfg, nil)
		if err != nil {
			t.Fatalf("NewRegistry failed: %v", err)
		}
		got := r.List()
		if len(got) != 2 || got[0] != "alpha" || got[1] != "zeta" {
			t.Errorf("expected sorted names, got %v", got)
		}
	})
}

func TestMockClient(t *testing.T) {
	t.Run("default reply", func(t *testing.T) {
		c := NewMockClient(`{"classification": "relevant"}`)
		reply, err := c.Invoke(context.Background(), &Request{RequestID: "r1", User: "text"})
		if err != nil {
			t.Fatalf("Invoke failed: %v", err)
		}
		if reply.Text != `{"classification": "relevant"}` {
			t.Errorf("unexpected reply: %s", reply.Text)
		}
		if reply.RequestID != "r1" {
			t.Error("reply must echo the request ID")
		}
	})

	t.Run("records calls", func(t *testing.T) {
		c := NewMockClient("{}")
		for i := 0; i < 3; i++ {
			if _, err := c.Invoke(context.Background(), &Request{User: "u"}); err != nil {
				t.Fatalf("Invoke failed: %v", err)
			}
		}
		if c.CallCount() != 3 {
			t.Errorf("expected 3 calls, got %d", c.CallCount())
		}
	})

	t.Run("scripted failure", func(t *testing.T) {
		c := &MockClient{Respond: func(*Request) (string, error) {
			return "", &TransportError{Provider: MockName, Message: "down"}
		}}
		if _, err := c.Invoke(context.Background(), &Request{}); err == nil {
			t.Error("expected scripted error")
		}
	})
}

func TestParametersValidate(t *testing.T) {
	p := DefaultParameters()
	if err := p.Validate(); err != nil {
		t.Errorf("defaults must validate: %v", err)
	}
	if p.Sampling() {
		t.Error("defaults should be greedy")
	}

	p.Temperature = 3.0
	if err := p.Validate(); err == nil {
		t.Error("expected temperature range error")
	}

	p = DefaultParameters()
	p.MaxNewTokens = 0
	if err := p.Validate(); err == nil {
		t.Error("expected max_new_tokens error")
	}

	p = DefaultParameters()
	p.DecodingMethod = "beam"
	if err := p.Validate(); err == nil {
		t.Error("expected decoding method error")
	}
}
