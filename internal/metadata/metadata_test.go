package metadata

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestRecorderPhases(t *testing.T) {
	rec := NewRecorder("run-1")
	rec.Start("ingest")
	time.Sleep(5 * time.Millisecond)
	rec.Stop("ingest")
	rec.Start("annotate")
	rec.Stop("annotate")
	rec.Stop("never-started")

	path := filepath.Join(t.TempDir(), "run.json")
	if err := rec.WriteRun(path); err != nil {
		t.Fatalf("WriteRun failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	var run Run
	if err := json.Unmarshal(data, &run); err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	if run.RunID != "run-1" {
		t.Errorf("unexpected run id: %s", run.RunID)
	}
	if len(run.Phases) != 2 {
		t.Fatalf("expected 2 phases, got %d", len(run.Phases))
	}
	if run.Phases[0].Name != "ingest" || run.Phases[0].Seconds <= 0 {
		t.Errorf("unexpected first phase: %+v", run.Phases[0])
	}
	if run.Seconds <= 0 {
		t.Error("total duration must be positive")
	}
	if data[len(data)-1] != '\n' {
		t.Error("artifact must end with a newline")
	}
}

func TestRecorderCounts(t *testing.T) {
	rec := NewRecorder("run-2")
	rec.SetSeed(42)
	rec.SetConfig(map[string]any{"workers": 4})
	rec.SetClassified(Counts{Total: 10, Relevant: 3, Irrelevant: 7, Success: 10})
	rec.SetExtracted(Counts{Total: 3, Success: 2, ParseError: 1})

	path := filepath.Join(t.TempDir(), "run.json")
	if err := rec.WriteRun(path); err != nil {
		t.Fatalf("WriteRun failed: %v", err)
	}

	data, _ := os.ReadFile(path)
	var run Run
	if err := json.Unmarshal(data, &run); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if run.Seed != 42 {
		t.Errorf("unexpected seed: %d", run.Seed)
	}
	if run.Classified == nil || run.Classified.Relevant != 3 {
		t.Errorf("unexpected classification counts: %+v", run.Classified)
	}
	if run.Extracted == nil || run.Extracted.ParseError != 1 {
		t.Errorf("unexpected extraction counts: %+v", run.Extracted)
	}
}

func TestRecorderUsage(t *testing.T) {
	rec := NewRecorder("run-3")
	rec.AddUsage("classify", "watsonx", "granite", 100, 10, 200*time.Millisecond)
	rec.AddUsage("classify", "watsonx", "granite", 120, 12, 300*time.Millisecond)
	rec.AddUsage("extract", "watsonx", "granite", 80, 40, 100*time.Millisecond)

	path := filepath.Join(t.TempDir(), "usage.json")
	if err := rec.WriteUsage(path); err != nil {
		t.Fatalf("WriteUsage failed: %v", err)
	}

	data, _ := os.ReadFile(path)
	var usage map[string]Usage
	if err := json.Unmarshal(data, &usage); err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	cls := usage["classify"]
	if cls.Requests != 2 || cls.PromptTokens != 220 || cls.CompletionTokens != 22 {
		t.Errorf("classify usage not accumulated: %+v", cls)
	}
	if cls.TotalSeconds < 0.49 || cls.TotalSeconds > 0.51 {
		t.Errorf("unexpected classify latency total: %g", cls.TotalSeconds)
	}
	if ext := usage["extract"]; ext.Requests != 1 || ext.Model != "granite" {
		t.Errorf("unexpected extract usage: %+v", ext)
	}
}
