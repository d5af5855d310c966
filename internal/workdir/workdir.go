// Package workdir owns the on-disk layout of a run's working directory.
package workdir

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DefaultDirName is the default working directory name, created under
	// the current directory when none is configured.
	DefaultDirName = ".sift"

	// ConfigFileName is the default config file name.
	ConfigFileName = "config.yaml"

	classificationDirName = "classification"
	extractionDirName     = "extraction"
	debugDirName          = "debug"
)

// Dir represents the working directory structure. Every artifact path in
// the pipeline is derived here so the layout is defined in one place.
type Dir struct {
	path string
}

// New creates a Dir with the given path, defaulting to ./.sift.
func New(path string) (*Dir, error) {
	if path == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		path = filepath.Join(cwd, DefaultDirName)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve working directory: %w", err)
	}
	return &Dir{path: abs}, nil
}

// Path returns the root path of the working directory.
func (d *Dir) Path() string { return d.path }

// ConfigPath returns the path to the default config file.
func (d *Dir) ConfigPath() string {
	return filepath.Join(d.path, ConfigFileName)
}

// ClassificationDir returns the classification artifact directory.
func (d *Dir) ClassificationDir() string {
	return filepath.Join(d.path, classificationDirName)
}

// ExtractionDir returns the extraction artifact directory.
func (d *Dir) ExtractionDir() string {
	return filepath.Join(d.path, extractionDirName)
}

// DebugDir returns the root for per-unit debug artifacts.
func (d *Dir) DebugDir() string {
	return filepath.Join(d.path, debugDirName)
}

// ClassifiedFullPath returns the path of the full classification artifact:
// every unit with its label, in source order.
func (d *Dir) ClassifiedFullPath() string {
	return filepath.Join(d.ClassificationDir(), "classified_full.json")
}

// ClassifiedRelevantPath returns the path of the relevant-only
// classification artifact.
func (d *Dir) ClassifiedRelevantPath() string {
	return filepath.Join(d.ClassificationDir(), "classified_relevant.json")
}

// StructuredPath returns the path of the extraction artifact.
func (d *Dir) StructuredPath() string {
	return filepath.Join(d.ExtractionDir(), "structured.json")
}

// RunMetadataPath returns the path of the run metadata artifact.
func (d *Dir) RunMetadataPath() string {
	return filepath.Join(d.path, "run_metadata.json")
}

// LLMMetadataPath returns the path of the provider usage artifact.
func (d *Dir) LLMMetadataPath() string {
	return filepath.Join(d.path, "llm_metadata.json")
}

// LogPath returns the path of the run log file.
func (d *Dir) LogPath() string {
	return filepath.Join(d.path, "sift.log")
}

// EnsureExists creates the working directory and its subdirectories.
func (d *Dir) EnsureExists() error {
	for _, dir := range []string{d.ClassificationDir(), d.ExtractionDir(), d.DebugDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

// Exists returns true when the working directory exists.
func (d *Dir) Exists() bool {
	_, err := os.Stat(d.path)
	return err == nil
}

// ConfigExists returns true when the config file exists.
func (d *Dir) ConfigExists() bool {
	_, err := os.Stat(d.ConfigPath())
	return err == nil
}
