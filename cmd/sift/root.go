package main

import (
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/siftdocs/sift/internal/workdir"
	"github.com/siftdocs/sift/version"
)

var (
	cfgFile string
	workDir string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "sift",
	Short: "Streaming LLM annotation pipeline for scientific documents",
	Long: `Sift converts scientific documents into schema-conformant structured
records using a two-stage LLM pipeline.

The pipeline includes:
  - Document chunking (fixed, sentence, or paragraph units)
  - Relevance classification of every text unit
  - Structured extraction from relevant units
  - Schema validation with per-unit debug artifacts`,
	Version: version.GitRelease,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.sift/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&workDir, "workdir", "", "working directory for artifacts (default: ./.sift)",
	)
	rootCmd.PersistentFlags().BoolVarP(
		&verbose, "verbose", "v", false, "enable debug logging",
	)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(modelsCmd)
	rootCmd.AddCommand(versionCmd)
}

// newWorkdir resolves the working directory from the flag.
func newWorkdir() (*workdir.Dir, error) {
	return workdir.New(workDir)
}

// newLogger builds the run logger. When logPath is non-empty the log is
// duplicated into the run's log file.
func newLogger(logPath string) (*slog.Logger, func(), error) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	var w io.Writer = os.Stdout
	cleanup := func() {}
	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, err
		}
		w = io.MultiWriter(os.Stdout, f)
		cleanup = func() { _ = f.Close() }
	}

	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	return logger, cleanup, nil
}
