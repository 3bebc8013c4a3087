package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sprintboard/internal/config"
	"sprintboard/internal/logging"
	"sprintboard/internal/storage/sqlite"
)

var Version = "dev"

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "sprintboard",
		Short:         "Sprint planning and metrics for kanban boards",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a config file (toml or yaml)")

	rootCmd.AddCommand(serveCmd(&configPath))
	rootCmd.AddCommand(snapshotCmd(&configPath))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app is what every subcommand needs before it can do work.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	store  *sqlite.Store
}

func setup(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	zap.ReplaceGlobals(logger)

	store, err := sqlite.Open(cfg.Database.Path, logger, sqlite.WithBacklogPolicy(cfg.BacklogPolicy()))
	if err != nil {
		_ = logger.Sync()
		return nil, fmt.Errorf("open database: %w", err)
	}
	return &app{cfg: cfg, logger: logger, store: store}, nil
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		a.logger.Error("failed to close database", zap.Error(err))
	}
	_ = a.logger.Sync()
}
