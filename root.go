package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"polycode/supervisor-app/config"
	"polycode/supervisor-app/logging"
)

var rootCmd = &cobra.Command{
	Use:   "supervisor",
	Short: "Supervisor routes a request between a researcher and a coder",
	Long: `Supervisor runs a dispatcher that hands a shared conversation to the
researcher (web search) or the coder (JavaScript execution) until it decides
the request is answered.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level override (debug, info, warn, error)")
}

// setup loads and validates configuration and builds the logger. A missing
// provider key fails here, before any run starts.
func setup(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Log.Level = level
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	logger := logging.New(logging.ParseLevel(cfg.Log.Level), cfg.Log.Format)
	return cfg, logger, nil
}
