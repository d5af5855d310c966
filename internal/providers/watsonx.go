package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	WatsonxName       = "watsonx"
	WatsonxAuthURL    = "https://iam.cloud.ibm.com/identity/token"
	WatsonxAPIVersion = "2024-05-31"

	watsonxGrantType = "urn:ibm:params:oauth:grant-type:apikey"
)

// WatsonxConfig holds configuration for the watsonx.ai generation client.
type WatsonxConfig struct {
	APIKey     string
	URL        string // service endpoint, e.g. https://us-south.ml.cloud.ibm.com
	ProjectID  string
	Model      string
	APIVersion string
	AuthURL    string
	Timeout    time.Duration
	RateLimit  float64      // requests per second
	HTTPClient *http.Client // optional (tests)
}

// WatsonxClient implements Client against the watsonx.ai text generation API.
// It is completion-style: the prompt is sent flattened as a single input.
type WatsonxClient struct {
	apiKey     string
	baseURL    string
	projectID  string
	model      string
	apiVersion string
	authURL    string
	rateLimit  float64
	client     *http.Client

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewWatsonxClient creates a new watsonx client. Credentials are not
// verified until HealthCheck or the first Invoke.
func NewWatsonxClient(cfg WatsonxConfig) *WatsonxClient {
	if cfg.APIVersion == "" {
		cfg.APIVersion = WatsonxAPIVersion
	}
	if cfg.AuthURL == "" {
		cfg.AuthURL = WatsonxAuthURL
	}
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

	return &WatsonxClient{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		projectID:  cfg.ProjectID,
		model:      cfg.Model,
		apiVersion: cfg.APIVersion,
		authURL:    cfg.AuthURL,
		rateLimit:  cfg.RateLimit,
		client:     httpClient,
	}
}

// Name returns the provider identifier.
func (c *WatsonxClient) Name() string { return WatsonxName }

// Model returns the configured model identifier.
func (c *WatsonxClient) Model() string { return c.model }

// RequestsPerSecond returns the configured rate limit.
func (c *WatsonxClient) RequestsPerSecond() float64 { return c.rateLimit }

// HealthCheck verifies credentials by fetching an IAM token.
func (c *WatsonxClient) HealthCheck(ctx context.Context) error {
	_, err := c.token(ctx)
	return err
}

// watsonx API types.

type watsonxParameters struct {
	DecodingMethod    string   `json:"decoding_method"`
	MaxNewTokens      int      `json:"max_new_tokens"`
	Temperature       *float64 `json:"temperature,omitempty"`
	TopP              *float64 `json:"top_p,omitempty"`
	TopK              *int     `json:"top_k,omitempty"`
	RepetitionPenalty *float64 `json:"repetition_penalty,omitempty"`
	StopSequences     []string `json:"stop_sequences,omitempty"`
	RandomSeed        *int64   `json:"random_seed,omitempty"`
}

type watsonxGenerateRequest struct {
	ModelID    string            `json:"model_id"`
	ProjectID  string            `json:"project_id"`
	Input      string            `json:"input"`
	Parameters watsonxParameters `json:"parameters"`
}

type watsonxGenerateResponse struct {
	ModelID string `json:"model_id"`
	Results []struct {
		GeneratedText       string `json:"generated_text"`
		InputTokenCount     int    `json:"input_token_count"`
		GeneratedTokenCount int    `json:"generated_token_count"`
		StopReason          string `json:"stop_reason"`
	} `json:"results"`
}

// Invoke sends a single generation request.
func (c *WatsonxClient) Invoke(ctx context.Context, req *Request) (*Reply, error) {
	start := time.Now()

	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}

	body := watsonxGenerateRequest{
		ModelID:    c.model,
		ProjectID:  c.projectID,
		Input:      req.Flat(),
		Parameters: mapWatsonxParameters(req.Parameters),
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, &ProviderResponseError{Provider: WatsonxName, Message: fmt.Sprintf("failed to marshal request: %v", err)}
	}

	endpoint := fmt.Sprintf("%s/ml/v1/text/generation?version=%s", c.baseURL, url.QueryEscape(c.apiVersion))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, &TransportError{Provider: WatsonxName, Message: "failed to create request", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Provider: WatsonxName, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Provider: WatsonxName, Message: "failed to read response", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, c.mapStatusError(resp, respBody)
	}

	var genResp watsonxGenerateResponse
	if err := json.Unmarshal(respBody, &genResp); err != nil {
		return nil, &ProviderResponseError{
			Provider:   WatsonxName,
			Message:    fmt.Sprintf("failed to decode response: %v", err),
			StatusCode: resp.StatusCode,
		}
	}
	if len(genResp.Results) == 0 {
		return nil, &ProviderResponseError{
			Provider:   WatsonxName,
			Message:    "no results in response",
			StatusCode: resp.StatusCode,
		}
	}

	result := genResp.Results[0]
	modelUsed := genResp.ModelID
	if modelUsed == "" {
		modelUsed = c.model
	}

	return &Reply{
		RequestID:        req.RequestID,
		Provider:         WatsonxName,
		ModelUsed:        modelUsed,
		Text:             result.GeneratedText,
		PromptTokens:     result.InputTokenCount,
		CompletionTokens: result.GeneratedTokenCount,
		Latency:          time.Since(start),
	}, nil
}

// DiscoverModels lists foundation model specs. Best effort.
func (c *WatsonxClient) DiscoverModels(ctx context.Context) ([]string, error) {
	endpoint := fmt.Sprintf("%s/ml/v1/foundation_model_specs?version=%s", c.baseURL, url.QueryEscape(c.apiVersion))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &TransportError{Provider: WatsonxName, Message: "failed to create request", Err: err}
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Provider: WatsonxName, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Provider: WatsonxName, Message: "failed to read response", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, c.mapStatusError(resp, respBody)
	}

	var specs struct {
		Resources []struct {
			ModelID string `json:"model_id"`
		} `json:"resources"`
	}
	if err := json.Unmarshal(respBody, &specs); err != nil {
		return nil, &ProviderResponseError{Provider: WatsonxName, Message: fmt.Sprintf("failed to decode model specs: %v", err)}
	}

	models := make([]string, 0, len(specs.Resources))
	for _, r := range specs.Resources {
		models = append(models, r.ModelID)
	}
	return models, nil
}

// token returns a cached IAM access token, fetching a fresh one when the
// cached token is within a minute of expiry.
func (c *WatsonxClient) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Until(c.tokenExpiry) > time.Minute {
		return c.accessToken, nil
	}

	form := url.Values{}
	form.Set("grant_type", watsonxGrantType)
	form.Set("apikey", c.apiKey)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.authURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", &TransportError{Provider: WatsonxName, Message: "failed to create auth request", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", &TransportError{Provider: WatsonxName, Message: "auth request failed", Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &TransportError{Provider: WatsonxName, Message: "failed to read auth response", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode >= 500 {
			return "", &TransportError{
				Provider: WatsonxName,
				Message:  fmt.Sprintf("IAM error (status %d): %s", resp.StatusCode, truncate(string(respBody), 200)),
			}
		}
		return "", &AuthenticationError{
			Provider:   WatsonxName,
			Message:    truncate(string(respBody), 200),
			StatusCode: resp.StatusCode,
		}
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(respBody, &tokenResp); err != nil || tokenResp.AccessToken == "" {
		return "", &AuthenticationError{
			Provider:   WatsonxName,
			Message:    "IAM response carried no access token",
			StatusCode: resp.StatusCode,
		}
	}

	c.accessToken = tokenResp.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second)
	return c.accessToken, nil
}

// mapStatusError normalizes a non-200 response into the taxonomy.
func (c *WatsonxClient) mapStatusError(resp *http.Response, body []byte) error {
	msg := truncate(string(body), 200)
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &AuthenticationError{Provider: WatsonxName, Message: msg, StatusCode: resp.StatusCode}
	case resp.StatusCode == http.StatusTooManyRequests:
		return &RateLimitError{
			Provider:   WatsonxName,
			Message:    msg,
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	case resp.StatusCode >= 500:
		return &TransportError{
			Provider: WatsonxName,
			Message:  fmt.Sprintf("server error (status %d): %s", resp.StatusCode, msg),
		}
	default:
		return &ProviderResponseError{Provider: WatsonxName, Message: msg, StatusCode: resp.StatusCode}
	}
}

func mapWatsonxParameters(p Parameters) watsonxParameters {
	params := watsonxParameters{
		DecodingMethod: string(p.DecodingMethod),
		MaxNewTokens:   p.MaxNewTokens,
		StopSequences:  p.StopSequences,
	}
	if p.RepetitionPenalty > 0 {
		params.RepetitionPenalty = &p.RepetitionPenalty
	}
	if p.Sampling() {
		params.Temperature = &p.Temperature
		if p.TopP > 0 {
			params.TopP = &p.TopP
		}
		if p.TopK > 0 {
			params.TopK = &p.TopK
		}
		if p.Seed != 0 {
			params.RandomSeed = &p.Seed
		}
	}
	return params
}

// parseRetryAfter parses a Retry-After header value in seconds.
func parseRetryAfter(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
