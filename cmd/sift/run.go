package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/siftdocs/sift/internal/config"
	"github.com/siftdocs/sift/internal/pipeline"
	"github.com/siftdocs/sift/internal/providers"
)

var (
	runInputDir string
	runProvider string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the annotation pipeline over a document corpus",
	Long: `Run the full pipeline: ingest documents from the input directory,
classify every text unit for relevance, extract structured records from
the relevant units, and write the artifacts into the working directory.

Examples:
  sift run                               # Use input_dir from config
  sift run --input ./papers              # Override the input directory
  sift run --provider rits               # Use a different provider`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		dir, err := newWorkdir()
		if err != nil {
			return err
		}
		if err := dir.EnsureExists(); err != nil {
			return err
		}

		cfgPath := cfgFile
		if cfgPath == "" && dir.ConfigExists() {
			cfgPath = dir.ConfigPath()
		}
		manager, err := config.NewManager(cfgPath)
		if err != nil {
			return err
		}
		cfg := manager.Get()
		if runInputDir != "" {
			cfg.InputDir = runInputDir
		}
		if runProvider != "" {
			cfg.Provider = runProvider
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		logger, cleanup, err := newLogger(dir.LogPath())
		if err != nil {
			return err
		}
		defer cleanup()

		registry, err := providers.NewRegistry(cfg.ToRegistryConfig(), logger)
		if err != nil {
			return err
		}

		summary, err := pipeline.New(cfg, dir, registry, logger).Run(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("run %s complete\n", summary.RunID)
		fmt.Printf("  documents:  %d\n", summary.Documents)
		fmt.Printf("  units:      %d\n", summary.Units)
		fmt.Printf("  relevant:   %d\n", summary.Relevant)
		fmt.Printf("  extracted:  %d\n", summary.Extracted)
		fmt.Printf("  failed:     %d\n", summary.Failed)
		fmt.Printf("  artifacts:  %s\n", dir.Path())
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&runInputDir, "input", "", "input directory (overrides config)")
	runCmd.Flags().StringVar(&runProvider, "provider", "", "provider name (overrides config)")
}
