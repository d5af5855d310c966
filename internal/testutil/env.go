// Package testutil provides shared helpers for package tests.
package testutil

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

// Logger returns a debug-level text logger writing to stderr.
func Logger(t *testing.T) *slog.Logger {
	t.Helper()
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// WriteFile writes content under dir and returns the full path.
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	return path
}

// ClassificationSchema is a minimal relevance schema used across tests.
const ClassificationSchema = `{
  "PERSONA": "You are an expert materials scientist.",
  "TASK": "Decide whether the text discusses battery electrolyte materials.",
  "INSTRUCTIONS": [
    "Read the text carefully.",
    "Label it relevant only when electrolyte materials are discussed."
  ],
  "SCHEMAS": {
    "classification": "relevant|irrelevant"
  },
  "EXAMPLE": [
    {"text": "LiPF6 dissolved in EC/DMC is the standard electrolyte.", "output": {"classification": "relevant"}},
    {"text": "The weather was sunny all week.", "output": {"classification": "irrelevant"}}
  ]
}`

// ExtractionSchema is a minimal extraction schema used across tests.
const ExtractionSchema = `{
  "PERSONA": "You are an expert materials scientist.",
  "TASK": "Extract electrolyte materials mentioned in the text.",
  "INSTRUCTIONS": [
    "List every electrolyte material by name."
  ],
  "SCHEMAS": {
    "materials": ["Material"]
  }
}`
