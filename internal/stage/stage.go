// Package stage runs one annotation stage (classify or extract) over a
// stream of text units with a bounded worker pool.
//
// Workers share a single provider rate limiter, retry transient provider
// failures with exponential backoff, and grant one corrective re-invocation
// when a reply fails to parse. Results are collected and returned in source
// order regardless of completion order.
package stage

import (
	"time"

	"github.com/siftdocs/sift/internal/ingest"
)

// Stage identifies which annotation pass produced a result.
type Stage string

const (
	StageClassify Stage = "classify"
	StageExtract  Stage = "extract"
)

// Status is the terminal outcome for one unit in one stage.
type Status string

const (
	// StatusSuccess means a conformant record was produced.
	StatusSuccess Status = "success"
	// StatusParseError means the model replied but no conformant record
	// could be recovered, even after the corrective retry.
	StatusParseError Status = "parse_error"
	// StatusProviderError means the provider call failed after the full
	// retry budget.
	StatusProviderError Status = "provider_error"
	// StatusSkipped means the unit never reached the provider, typically
	// because the run was cancelled.
	StatusSkipped Status = "skipped"
)

// Result is the outcome of one unit through one stage.
type Result struct {
	Unit  ingest.TextUnit `json:"unit"`
	Stage Stage           `json:"stage"`

	Status Status         `json:"status"`
	Record map[string]any `json:"record,omitempty"`
	Error  string         `json:"error,omitempty"`

	Attempts   int  `json:"attempts"`
	Corrective bool `json:"corrective,omitempty"` // a corrective retry was issued

	Model            string        `json:"model,omitempty"`
	PromptTokens     int           `json:"prompt_tokens,omitempty"`
	CompletionTokens int           `json:"completion_tokens,omitempty"`
	Latency          time.Duration `json:"latency,omitempty"`
}

// OK reports whether the unit produced a conformant record.
func (r *Result) OK() bool {
	return r.Status == StatusSuccess
}

// StringField returns a top-level string field of the record, or "" when
// the result failed or the field is absent.
func (r *Result) StringField(name string) string {
	if r.Record == nil {
		return ""
	}
	s, _ := r.Record[name].(string)
	return s
}
