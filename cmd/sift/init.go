package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/siftdocs/sift/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the working directory with a default config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := newWorkdir()
		if err != nil {
			return err
		}
		if err := dir.EnsureExists(); err != nil {
			return err
		}

		if dir.ConfigExists() {
			fmt.Printf("config already exists at %s\n", dir.ConfigPath())
			return nil
		}
		if err := config.WriteDefault(dir.ConfigPath()); err != nil {
			return err
		}
		fmt.Printf("wrote default config to %s\n", dir.ConfigPath())
		return nil
	},
}
