package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/mstharness/internal/config"
	"github.com/dbsmedya/mstharness/internal/logger"
)

// Version information (set via ldflags at build time)
var (
	Version = "0.0.1-dev"
	Commit  = "unknown"
)

// CLI flags that override config file values
var (
	cfgFile        string
	logLevel       string
	logFormat      string
	executable     string
	timeoutSeconds float64
	workers        int
	instanceDir    string
	resultsCSV     string
	skipBuild      bool
)

var rootCmd = &cobra.Command{
	Use:   "mstharness",
	Short: "Experiment harness for MST solvers",
	Long: `A batch experiment harness that runs an external minimum spanning tree
solver (Prim vs. Kruskal) over a catalog of graph instances.

Features:
  - Instance discovery with numeric ordering (Edges<N>.csv + Nodes<N>.csv)
  - Per-instance time budget with process kill on timeout
  - Two solver output schemas (fixed-field line and tagged text)
  - Independent cross-validation of the two reported MST costs
  - CSV results table, YAML summary and failure ledger
  - Optional SQL results store (SQLite or MySQL)`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	// Config file flag
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "mstharness.yaml",
		"Path to configuration file (defaults are used when it does not exist)")

	// Logging overrides
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Override log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "",
		"Override log format (json, text)")

	// Solver overrides
	rootCmd.PersistentFlags().StringVar(&executable, "executable", "",
		"Override solver executable path")
	rootCmd.PersistentFlags().Float64Var(&timeoutSeconds, "timeout", 0,
		"Override per-instance timeout in seconds")
	rootCmd.PersistentFlags().BoolVar(&skipBuild, "skip-build", false,
		"Skip the build step and use the existing executable")

	// Processing overrides
	rootCmd.PersistentFlags().IntVar(&workers, "workers", 0,
		"Override number of concurrent solver processes")
	rootCmd.PersistentFlags().StringVarP(&instanceDir, "dir", "d", "",
		"Override instance directory")
	rootCmd.PersistentFlags().StringVarP(&resultsCSV, "output", "o", "",
		"Override results CSV path")
}

// GetConfigFile returns the config file path
func GetConfigFile() string {
	return cfgFile
}

// GetCLIOverrides returns the CLI flag override values
func GetCLIOverrides() config.Overrides {
	return config.Overrides{
		LogLevel:       logLevel,
		LogFormat:      logFormat,
		Executable:     executable,
		TimeoutSeconds: timeoutSeconds,
		Workers:        workers,
		Dir:            instanceDir,
		ResultsCSV:     resultsCSV,
		SkipBuild:      skipBuild,
	}
}

// loadConfig loads the config file (or defaults), applies CLI overrides and validates.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadOrDefault(GetConfigFile())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	cfg.ApplyOverrides(GetCLIOverrides())

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setup loads the configuration and builds the logger from it.
func setup() (*config.Config, *logger.Logger, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, log, nil
}

// commandContext returns the command's context, or Background when run outside Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
