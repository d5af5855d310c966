package providers

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestRetryable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"authentication", &AuthenticationError{Provider: "watsonx", StatusCode: 401}, false},
		{"rate limit", &RateLimitError{Provider: "watsonx", StatusCode: 429}, true},
		{"transport", &TransportError{Provider: "rits", Message: "connection reset"}, true},
		{"bad response", &ProviderResponseError{Provider: "rits", StatusCode: 200}, true},
		{"wrapped rate limit", fmt.Errorf("invoke: %w", &RateLimitError{Provider: "watsonx"}), true},
		{"wrapped auth", fmt.Errorf("invoke: %w", &AuthenticationError{Provider: "watsonx"}), false},
		{"plain error", errors.New("boom"), false},
		{"nil", nil, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Retryable(tc.err); got != tc.want {
				t.Errorf("Retryable(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestErrorMessages(t *testing.T) {
	auth := &AuthenticationError{Provider: "watsonx", Message: "bad key", StatusCode: 401}
	if !strings.Contains(auth.Error(), "watsonx") || !strings.Contains(auth.Error(), "401") {
		t.Errorf("unexpected message: %s", auth.Error())
	}

	rate := &RateLimitError{Provider: "rits", StatusCode: 429, RetryAfter: 3 * time.Second}
	if !strings.Contains(rate.Error(), "rate limited") {
		t.Errorf("unexpected message: %s", rate.Error())
	}

	inner := errors.New("dial tcp: timeout")
	transport := &TransportError{Provider: "rits", Message: "request failed", Err: inner}
	if !errors.Is(transport, inner) {
		t.Error("TransportError must unwrap to the inner error")
	}
}

func TestParseRetryAfter(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
	}{
		{"5", 5 * time.Second},
		{" 10 ", 10 * time.Second},
		{"", 0},
		{"soon", 0},
		{"-3", 0},
	}
	for _, tc := range cases {
		if got := parseRetryAfter(tc.in); got != tc.want {
			t.Errorf("parseRetryAfter(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
