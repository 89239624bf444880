package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conclave-ai/conclave/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showConfig()
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print configuration file locations",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("user config:    %s\n", config.GetUserConfigPath())
		if p := config.GetProjectConfigPath(); p != "" {
			fmt.Printf("project config: %s\n", p)
		}
		fmt.Printf("presets:        %s\n", config.GetPresetsPath())
	},
}

func init() {
	configCmd.AddCommand(configPathCmd)
}

func showConfig() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	out, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	os.Stdout.Write(out)
	return nil
}
