package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"birdcatalog/internal/logging"
	"birdcatalog/internal/models"
)

func main() {
	if err := rootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "birdcatalog",
		Short:         "Birds of Aotearoa catalog service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the YAML config file")

	load := func() (*models.Config, *zap.Logger, error) {
		cfg, err := models.LoadConfig(configPath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load config: %w", err)
		}
		log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to init logger: %w", err)
		}
		return cfg, log, nil
	}

	rootCmd.AddCommand(serveCommand(load), migrateCommand(load))
	return rootCmd
}
