package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const RITSName = "rits"

// RITSConfig holds configuration for the RITS chat client.
type RITSConfig struct {
	APIKey     string
	URL        string // OpenAI-compatible base URL, including /v1
	Model      string
	Timeout    time.Duration
	RateLimit  float64      // requests per second
	HTTPClient *http.Client // optional (tests)
}

// RITSClient implements Client against an OpenAI-compatible chat endpoint.
// It is chat-style: system and user halves of the prompt travel as separate
// messages.
type RITSClient struct {
	model     string
	rateLimit float64
	client    openai.Client
}

// NewRITSClient creates a new RITS client. Retries are left to the caller,
// so the SDK's own retry loop is disabled.
func NewRITSClient(cfg RITSConfig) *RITSClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = 2.0
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0),
	}
	if cfg.URL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(cfg.URL, "/")))
	}

	return &RITSClient{
		model:     cfg.Model,
		rateLimit: cfg.RateLimit,
		client:    openai.NewClient(opts...),
	}
}

// Name returns the provider identifier.
func (c *RITSClient) Name() string { return RITSName }

// Model returns the configured model identifier.
func (c *RITSClient) Model() string { return c.model }

// RequestsPerSecond returns the configured rate limit.
func (c *RITSClient) RequestsPerSecond() float64 { return c.rateLimit }

// HealthCheck verifies the endpoint is reachable and the key is valid.
func (c *RITSClient) HealthCheck(ctx context.Context) error {
	_, err := c.client.Models.List(ctx)
	if err != nil {
		return c.mapError(err)
	}
	return nil
}

// Invoke sends a single chat completion request.
func (c *RITSClient) Invoke(ctx context.Context, req *Request) (*Reply, error) {
	start := time.Now()

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.System),
			openai.UserMessage(req.User),
		},
		MaxTokens: openai.Int(int64(req.Parameters.MaxNewTokens)),
	}
	if len(req.Parameters.StopSequences) > 0 {
		params.Stop = openai.ChatCompletionNewParamsStopUnion{
			OfStringArray: req.Parameters.StopSequences,
		}
	}
	if req.Parameters.Sampling() {
		params.Temperature = openai.Float(req.Parameters.Temperature)
		if req.Parameters.TopP > 0 {
			params.TopP = openai.Float(req.Parameters.TopP)
		}
		if req.Parameters.Seed != 0 {
			params.Seed = openai.Int(req.Parameters.Seed)
		}
	} else {
		// Greedy decoding on an OpenAI-compatible API is temperature zero.
		params.Temperature = openai.Float(0)
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, c.mapError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, &ProviderResponseError{Provider: RITSName, Message: "no choices in response"}
	}

	modelUsed := resp.Model
	if modelUsed == "" {
		modelUsed = c.model
	}

	return &Reply{
		RequestID:        req.RequestID,
		Provider:         RITSName,
		ModelUsed:        modelUsed,
		Text:             resp.Choices[0].Message.Content,
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
		Latency:          time.Since(start),
	}, nil
}

// DiscoverModels lists model identifiers from the endpoint.
func (c *RITSClient) DiscoverModels(ctx context.Context) ([]string, error) {
	page, err := c.client.Models.List(ctx)
	if err != nil {
		return nil, c.mapError(err)
	}

	models := make([]string, 0, len(page.Data))
	for _, m := range page.Data {
		models = append(models, m.ID)
	}
	return models, nil
}

// mapError normalizes SDK errors into the taxonomy.
func (c *RITSClient) mapError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if msg == "" {
			msg = fmt.Sprintf("status %d", apiErr.StatusCode)
		}
		switch {
		case apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden:
			return &AuthenticationError{Provider: RITSName, Message: msg, StatusCode: apiErr.StatusCode}
		case apiErr.StatusCode == http.StatusTooManyRequests:
			retryAfter := time.Duration(0)
			if apiErr.Response != nil {
				retryAfter = parseRetryAfter(apiErr.Response.Header.Get("Retry-After"))
			}
			return &RateLimitError{
				Provider:   RITSName,
				Message:    msg,
				StatusCode: apiErr.StatusCode,
				RetryAfter: retryAfter,
			}
		case apiErr.StatusCode >= 500:
			return &TransportError{Provider: RITSName, Message: msg}
		default:
			return &ProviderResponseError{Provider: RITSName, Message: msg, StatusCode: apiErr.StatusCode}
		}
	}
	return &TransportError{Provider: RITSName, Message: "request failed", Err: err}
}
