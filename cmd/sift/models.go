package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/siftdocs/sift/internal/config"
	"github.com/siftdocs/sift/internal/providers"
)

var modelsCmd = &cobra.Command{
	Use:   "models [provider]",
	Short: "List models known to the configured providers",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		dir, err := newWorkdir()
		if err != nil {
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

		logger, cleanup, err := newLogger("")
		if err != nil {
			return err
		}
		defer cleanup()

		registry, err := providers.NewRegistry(manager.Get().ToRegistryConfig(), logger)
		if err != nil {
			return err
		}

		names := registry.List()
		if len(args) == 1 {
			names = []string{args[0]}
		}

		for _, name := range names {
			client, err := registry.Get(name)
			if err != nil {
				return err
			}
			models, err := client.DiscoverModels(ctx)
			if err != nil {
				fmt.Printf("%s: %v\n", name, err)
				continue
			}
			fmt.Printf("%s (%d models):\n", name, len(models))
			for _, m := range models {
				marker := "  "
				if m == client.Model() {
					marker = "* "
				}
				fmt.Printf("  %s%s\n", marker, m)
			}
		}
		return nil
	},
}
