// Package cli wires the quizhub commands.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/victornm/quizhub/internal/config"
	"github.com/victornm/quizhub/internal/server"
)

// Execute runs the CLI.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:          "quizhub",
		Short:        "Quiz platform with scoring, score history and live leaderboards",
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("CONFIG_PATH"), "path to YAML config")

	cmd.AddCommand(
		NewServeCmd(&configPath),
		NewMigrateCmd(&configPath),
		NewReconcileCmd(&configPath),
		NewSeedCmd(&configPath),
		NewUserCmd(&configPath),
		NewTokenCmd(&configPath),
	)

	return cmd
}

func loadConfig(path string) (server.Config, error) {
	c := server.DefaultConfig()

	if err := config.Load(path, &c); err != nil {
		return c, fmt.Errorf("load config: %w", err)
	}

	return c, nil
}
