// Package metadata records run-level accounting: phase timings, unit
// counts and provider usage, written as pretty-printed JSON artifacts.
package metadata

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"
)

// Phase is one timed section of a run.
type Phase struct {
	Name     string    `json:"name"`
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`
	Seconds  float64   `json:"seconds"`
}

// Counts summarizes unit outcomes per stage.
type Counts struct {
	Total         int `json:"total"`
	Relevant      int `json:"relevant,omitempty"`
	Irrelevant    int `json:"irrelevant,omitempty"`
	Success       int `json:"success"`
	ParseError    int `json:"parse_errors"`
	ProviderError int `json:"provider_errors"`
	Skipped       int `json:"skipped,omitempty"`
}

// Run is the run metadata artifact.
type Run struct {
	RunID      string         `json:"run_id"`
	Started    time.Time      `json:"started"`
	Finished   time.Time      `json:"finished"`
	Seconds    float64        `json:"seconds"`
	Seed       int64          `json:"seed,omitempty"`
	Config     map[string]any `json:"config,omitempty"`
	Documents  any            `json:"documents,omitempty"`
	Phases     []Phase        `json:"phases"`
	Classified *Counts        `json:"classification,omitempty"`
	Extracted  *Counts        `json:"extraction,omitempty"`
}

// Usage is the per-stage provider usage artifact.
type Usage struct {
	Provider         string  `json:"provider"`
	Model            string  `json:"model"`
	Requests         int     `json:"requests"`
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	TotalSeconds     float64 `json:"total_seconds"`
}

// Recorder accumulates run metadata. Safe for concurrent use.
type Recorder struct {
	mu sync.Mutex

	run    Run
	active map[string]time.Time
	usage  map[string]*Usage // keyed by stage name
}

// NewRecorder starts accounting for one run.
func NewRecorder(runID string) *Recorder {
	return &Recorder{
		run:    Run{RunID: runID, Started: time.Now()},
		active: make(map[string]time.Time),
		usage:  make(map[string]*Usage),
	}
}

// Start marks the beginning of a named phase.
func (r *Recorder) Start(phase string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active[phase] = time.Now()
}

// Stop closes a named phase. Unknown phases are ignored.
func (r *Recorder) Stop(phase string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	started, ok := r.active[phase]
	if !ok {
		return
	}
	delete(r.active, phase)

	now := time.Now()
	r.run.Phases = append(r.run.Phases, Phase{
		Name:     phase,
		Started:  started,
		Finished: now,
		Seconds:  now.Sub(started).Seconds(),
	})
}

// SetSeed records the sampling seed used for the run.
func (r *Recorder) SetSeed(seed int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.run.Seed = seed
}

// SetConfig records the effective configuration snapshot.
func (r *Recorder) SetConfig(cfg map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.run.Config = cfg
}

// SetDocuments records the ingested document inventory.
func (r *Recorder) SetDocuments(docs any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.run.Documents = docs
}

// SetClassified records classification outcome counts.
func (r *Recorder) SetClassified(c Counts) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.run.Classified = &c
}

// SetExtracted records extraction outcome counts.
func (r *Recorder) SetExtracted(c Counts) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.run.Extracted = &c
}

// AddUsage accumulates provider usage for one stage.
func (r *Recorder) AddUsage(stageName, provider, model string, promptTokens, completionTokens int, latency time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.usage[stageName]
	if !ok {
		u = &Usage{Provider: provider, Model: model}
		r.usage[stageName] = u
	}
	u.Requests++
	u.PromptTokens += promptTokens
	u.CompletionTokens += completionTokens
	u.TotalSeconds += latency.Seconds()
}

// WriteRun finalizes timings and writes the run metadata artifact.
func (r *Recorder) WriteRun(path string) error {
	r.mu.Lock()
	r.run.Finished = time.Now()
	r.run.Seconds = r.run.Finished.Sub(r.run.Started).Seconds()
	snapshot := r.run
	r.mu.Unlock()

	return writeJSON(path, snapshot)
}

// WriteUsage writes the provider usage artifact, keyed by stage.
func (r *Recorder) WriteUsage(path string) error {
	r.mu.Lock()
	stages := make([]string, 0, len(r.usage))
	for name := range r.usage {
		stages = append(stages, name)
	}
	sort.Strings(stages)

	out := make(map[string]Usage, len(r.usage))
	for _, name := range stages {
		out[name] = *r.usage[name]
	}
	r.mu.Unlock()

	return writeJSON(path, out)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize %s: %w", path, err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
