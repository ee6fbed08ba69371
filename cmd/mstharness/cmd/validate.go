package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/mstharness/internal/catalog"
	"github.com/dbsmedya/mstharness/internal/config"
	"github.com/dbsmedya/mstharness/internal/logger"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration and the instance catalog",
	Long: `Validate checks the configuration file and the environment the run
depends on, without running the solver.

Checks performed:
  - Configuration syntax and required fields
  - Instance catalog is not empty
  - Solver executable presence (warning only; run builds it)
  - Results store connectivity when the store is enabled

Example:
  mstharness validate --config mstharness.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile := GetConfigFile()

	cmd.Printf("\n=== Configuration Validation ===\n")
	cmd.Printf("Config file: %s\n", configFile)
	if _, err := os.Stat(configFile); err != nil {
		cmd.Printf("(not found, using defaults)\n")
	}

	cfg, err := loadConfig()
	if err != nil {
		cmd.Printf("❌ Configuration invalid\n")
		return err
	}
	cmd.Printf("✅ Configuration valid\n")

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	hasErrors := false

	cat, err := catalog.Discover(catalog.Options{
		Dir:         cfg.Catalog.Dir,
		FallbackDir: cfg.Catalog.FallbackDir,
		EdgePrefix:  cfg.Catalog.EdgePrefix,
		NodePrefix:  cfg.Catalog.NodePrefix,
		Extension:   cfg.Catalog.Extension,
	}, log)
	if err != nil {
		cmd.Printf("❌ Instance catalog: %v\n", err)
		hasErrors = true
	} else {
		cmd.Printf("✅ Instance catalog: %d instance(s) in %s\n", cat.Len(), cat.Dir)
		if len(cat.Skipped) > 0 {
			cmd.Printf("⚠️  %d edge file(s) skipped\n", len(cat.Skipped))
		}
	}

	if _, err := os.Stat(cfg.Solver.Executable); err != nil {
		if cfg.Solver.Build.Skip || len(cfg.Solver.Build.Command) == 0 {
			cmd.Printf("❌ Solver executable %s not found and no build configured\n", cfg.Solver.Executable)
			hasErrors = true
		} else {
			cmd.Printf("⚠️  Solver executable %s not found (will be built by run)\n", cfg.Solver.Executable)
		}
	} else {
		cmd.Printf("✅ Solver executable: %s\n", cfg.Solver.Executable)
	}

	if cfg.Store.Enabled {
		if err := checkStore(cmd, cfg, log); err != nil {
			cmd.Printf("❌ Results store: %v\n", err)
			hasErrors = true
		} else {
			cmd.Printf("✅ Results store: %s\n", cfg.Store.Driver)
		}
	}

	if hasErrors {
		return fmt.Errorf("validation failed")
	}

	cmd.Println("\n=== Validation Complete ===")
	return nil
}

func checkStore(cmd *cobra.Command, cfg *config.Config, log *logger.Logger) error {
	_, dbManager, err := openStore(commandContext(cmd), cfg, log)
	if err != nil {
		return err
	}
	return dbManager.Close()
}
