// Command epigram runs the news ingestion, feed and AI insight service.
//
// Usage:
//
//	epigram serve                       # HTTP API with optional scheduled population
//	epigram populate [--topics a,b]     # refresh topic buckets once
//	epigram search <query>              # search recent articles
//	epigram insight --url U [--url U]   # stream an insight for the given articles
//	epigram version
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/RobinCoderZhao/epigram/internal/config"
)

var version = "dev"

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "epigram",
		Short:         "News ingestion, feed and AI insight service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default $XDG_CONFIG_HOME/epigram/config.yaml)")

	load := func() (*config.Config, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		setupLogger(cfg.Log)
		return cfg, nil
	}

	rootCmd.AddCommand(serveCmd(load))
	rootCmd.AddCommand(populateCmd(load))
	rootCmd.AddCommand(searchCmd(load))
	rootCmd.AddCommand(insightCmd(load))
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

type loader func() (*config.Config, error)

func setupLogger(cfg config.LogConfig) {
	level, _ := config.ParseLevel(cfg.Level)
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "epigram %s\n", version)
		},
	}
}
