// Package providers exposes heterogeneous LLM backends behind one
// capability interface and normalizes their native error surfaces into a
// shared taxonomy, so the annotation stages stay backend-agnostic.
package providers

import (
	"context"
	"time"
)

// Request is one inference call. System carries the schema sections and
// output directive, User the target text; completion-style backends join
// the two with Flat.
type Request struct {
	RequestID string
	System    string
	User      string

	Parameters Parameters
}

// Flat joins the prompt halves for generation-style APIs.
func (r *Request) Flat() string {
	if r.System == "" {
		return r.User
	}
	return r.System + "\n\n" + r.User
}

// Reply is the raw result of one inference call.
type Reply struct {
	RequestID string
	Provider  string
	ModelUsed string

	Text string

	PromptTokens     int
	CompletionTokens int
	Latency          time.Duration
}

// Client is the uniform capability interface over LLM backends.
type Client interface {
	// Name returns the provider identifier (e.g. "watsonx").
	Name() string

	// Model returns the configured default model identifier.
	Model() string

	// Invoke runs a single inference call. Errors are always one of the
	// taxonomy types in this package.
	Invoke(ctx context.Context, req *Request) (*Reply, error)

	// DiscoverModels lists model identifiers known to the backend.
	// Best effort, used only for diagnostics.
	DiscoverModels(ctx context.Context) ([]string, error)

	// RequestsPerSecond returns the backend's rate limit for the shared
	// token bucket.
	RequestsPerSecond() float64
}

// HealthChecker is implemented by backends that can verify credentials
// before a run starts. An AuthenticationError here aborts the run.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}
