package providers

import (
	"context"
	"sync"
	"time"
)

const MockName = "mock"

// MockClient is a scripted in-process backend for tests and dry runs. The
// zero value answers every request with an empty JSON object.
type MockClient struct {
	ModelName string
	RateLimit float64

	// Respond computes the reply text for a request. Returning an error
	// simulates a provider failure.
	Respond func(req *Request) (string, error)

	// Latency, when set, delays each invocation.
	Latency func(req *Request) time.Duration

	mu    sync.Mutex
	calls []*Request
}

// NewMockClient creates a mock with the given canned reply.
func NewMockClient(reply string) *MockClient {
	return &MockClient{
		ModelName: "mock-model",
		Respond: func(*Request) (string, error) {
			return reply, nil
		},
	}
}

// Name returns the provider identifier.
func (c *MockClient) Name() string { return MockName }

// Model returns the configured model identifier.
func (c *MockClient) Model() string {
	if c.ModelName == "" {
		return "mock-model"
	}
	return c.ModelName
}

// RequestsPerSecond returns the configured rate limit.
func (c *MockClient) RequestsPerSecond() float64 {
	if c.RateLimit <= 0 {
		return 1000
	}
	return c.RateLimit
}

// Invoke records the request and returns the scripted reply.
func (c *MockClient) Invoke(ctx context.Context, req *Request) (*Reply, error) {
	start := time.Now()

	c.mu.Lock()
	c.calls = append(c.calls, req)
	c.mu.Unlock()

	if c.Latency != nil {
		select {
		case <-ctx.Done():
			return nil, &TransportError{Provider: MockName, Message: "cancelled", Err: ctx.Err()}
		case <-time.After(c.Latency(req)):
		}
	}

	text := "{}"
	if c.Respond != nil {
		var err error
		text, err = c.Respond(req)
		if err != nil {
			return nil, err
		}
	}

	return &Reply{
		RequestID: req.RequestID,
		Provider:  MockName,
		ModelUsed: c.Model(),
		Text:      text,
		Latency:   time.Since(start),
	}, nil
}

// DiscoverModels returns the single configured model.
func (c *MockClient) DiscoverModels(context.Context) ([]string, error) {
	return []string{c.Model()}, nil
}

// Calls returns a snapshot of every request received so far.
func (c *MockClient) Calls() []*Request {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]*Request, len(c.calls))
	copy(out, c.calls)
	return out
}

// CallCount returns the number of requests received so far.
func (c *MockClient) CallCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}
