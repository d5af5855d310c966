package providers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newRITSTestServer(t *testing.T, chat http.HandlerFunc) *RITSClient {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/chat/completions", chat)
	mux.HandleFunc("/models", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data": []map[string]any{
				{"id": "meta-llama/llama-3-3-70b-instruct", "object": "model"},
				{"id": "mistralai/mixtral-8x7b", "object": "model"},
			},
		})
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return NewRITSClient(RITSConfig{
		APIKey:     "test-key",
		URL:        server.URL,
		Model:      "meta-llama/llama-3-3-70b-instruct",
		HTTPClient: server.Client(),
	})
}

func TestRITSInvoke(t *testing.T) {
	t.Run("chat completion", func(t *testing.T) {
		var body map[string]any
		client := newRITSTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewDecoder(r.Body).Decode(&body)
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"id":     "chatcmpl-1",
				"object": "chat.completion",
				"model":  "meta-llama/llama-3-3-70b-instruct",
				"choices": []map[string]any{{
					"index":         0,
					"message":       map[string]any{"role": "assistant", "content": `{"materials": ["LiPF6"]}`},
					"finish_reason": "stop",
				}},
				"usage": map[string]any{"prompt_tokens": 30, "completion_tokens": 8, "total_tokens": 38},
			})
		})

		reply, err := client.Invoke(context.Background(), &Request{
			RequestID:  "r1",
			System:     "sys",
			User:       "usr",
			Parameters: DefaultParameters(),
		})
		if err != nil {
			t.Fatalf("Invoke failed: %v", err)
		}
		if reply.Text != `{"materials": ["LiPF6"]}` {
			t.Errorf("unexpected text: %s", reply.Text)
		}
		if reply.PromptTokens != 30 || reply.CompletionTokens != 8 {
			t.Errorf("unexpected usage: %d/%d", reply.PromptTokens, reply.CompletionTokens)
		}

		msgs, _ := body["messages"].([]any)
		if len(msgs) != 2 {
			t.Fatalf("expected system and user messages, got %v", body["messages"])
		}
		first, _ := msgs[0].(map[string]any)
		if first["role"] != "system" || first["content"] != "sys" {
			t.Errorf("unexpected first message: %v", first)
		}
		if temp, ok := body["temperature"].(float64); !ok || temp != 0 {
			t.Errorf("greedy decoding must pin temperature to 0, got %v", body["temperature"])
		}
	})

	t.Run("sampling parameters forwarded", func(t *testing.T) {
		var body map[string]any
		client := newRITSTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewDecoder(r.Body).Decode(&body)
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"choices": []map[string]any{{
					"message": map[string]any{"role": "assistant", "content": "{}"},
				}},
			})
		})

		params := Parameters{
			DecodingMethod: DecodingSample,
			MaxNewTokens:   128,
			Temperature:    0.8,
			TopP:           0.95,
			Seed:           7,
			StopSequences:  []string{"\n\n"},
		}
		if _, err := client.Invoke(context.Background(), &Request{User: "u", Parameters: params}); err != nil {
			t.Fatalf("Invoke failed: %v", err)
		}
		if temp, _ := body["temperature"].(float64); temp != 0.8 {
			t.Errorf("temperature not forwarded: %v", body["temperature"])
		}
		if seed, _ := body["seed"].(float64); seed != 7 {
			t.Errorf("seed not forwarded: %v", body["seed"])
		}
	})

	t.Run("unauthorized", func(t *testing.T) {
		client := newRITSTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error": {"message": "invalid key", "type": "invalid_request_error"}}`))
		})

		_, err := client.Invoke(context.Background(), &Request{User: "u", Parameters: DefaultParameters()})
		var authErr *AuthenticationError
		if !errors.As(err, &authErr) {
			t.Fatalf("expected AuthenticationError, got %v", err)
		}
	})

	t.Run("rate limited", func(t *testing.T) {
		client := newRITSTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "2")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error": {"message": "slow down", "type": "rate_limit_error"}}`))
		})

		_, err := client.Invoke(context.Background(), &Request{User: "u", Parameters: DefaultParameters()})
		var rateErr *RateLimitError
		if !errors.As(err, &rateErr) {
			t.Fatalf("expected RateLimitError, got %v", err)
		}
		if rateErr.RetryAfter != 2*time.Second {
			t.Errorf("expected Retry-After 2s, got %v", rateErr.RetryAfter)
		}
	})

	t.Run("empty choices", func(t *testing.T) {
		client := newRITSTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
		})

		_, err := client.Invoke(context.Background(), &Request{User: "u", Parameters: DefaultParameters()})
		var respErr *ProviderResponseError
		if !errors.As(err, &respErr) {
			t.Fatalf("expected ProviderResponseError, got %v", err)
		}
	})
}

func TestRITSDiscoverModels(t *testing.T) {
	client := newRITSTestServer(t, func(w http.ResponseWriter, r *http.Request) {})
	models, err := client.DiscoverModels(context.Background())
	if err != nil {
		t.Fatalf("DiscoverModels failed: %v", err)
	}
	if len(models) != 2 || models[0] != "meta-llama/llama-3-3-70b-instruct" {
		t.Errorf("unexpected models: %v", models)
	}
}
