// Package debugio persists per-unit prompt and raw-reply files so failed
// runs can be diagnosed without re-invoking any provider.
package debugio

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// Recorder writes debug artifacts under root/<stage>/. A nil Recorder is
// valid and records nothing, so callers never branch on the debug flag.
type Recorder struct {
	root   string
	logger *slog.Logger

	mu   sync.Mutex
	dirs map[string]bool
}

// New creates a recorder rooted at the given directory.
func New(root string, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		root:   root,
		logger: logger,
		dirs:   make(map[string]bool),
	}
}

// RecordPrompt writes the full prompt sent for one unit.
func (r *Recorder) RecordPrompt(stage, unitID string, prompt string) {
	r.write(stage, fmt.Sprintf("%s_prompt.txt", unitID), prompt)
}

// RecordReply writes the raw model reply for one attempt. Attempts are
// numbered from 1; the corrective retry lands as a separate file.
func (r *Recorder) RecordReply(stage, unitID string, attempt int, raw string) {
	r.write(stage, fmt.Sprintf("%s_raw_%d.txt", unitID, attempt), raw)
}

func (r *Recorder) write(stage, name, content string) {
	if r == nil {
		return
	}

	dir := filepath.Join(r.root, stage)
	if err := r.ensureDir(dir); err != nil {
		r.logger.Warn("cannot create debug directory", "dir", dir, "error", err)
		return
	}

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		r.logger.Warn("cannot write debug artifact", "path", path, "error", err)
	}
}

func (r *Recorder) ensureDir(dir string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.dirs[dir] {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	r.dirs[dir] = true
	return nil
}
