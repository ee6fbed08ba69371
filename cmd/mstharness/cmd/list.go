package cmd

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/dbsmedya/mstharness/internal/catalog"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the discovered instance catalog",
	Long: `List displays every instance pair the harness would run, in numeric
order, along with edge files skipped because their node file is missing.

Example:
  mstharness list --dir grafos`,
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	cat, err := catalog.Discover(catalog.Options{
		Dir:         cfg.Catalog.Dir,
		FallbackDir: cfg.Catalog.FallbackDir,
		EdgePrefix:  cfg.Catalog.EdgePrefix,
		NodePrefix:  cfg.Catalog.NodePrefix,
		Extension:   cfg.Catalog.Extension,
	}, log)
	if errors.Is(err, catalog.ErrNoInstances) {
		cmd.Printf("No instances found in %s\n", searchedDirs(cfg.Catalog.Dir, cfg.Catalog.FallbackDir))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to discover instances: %w", err)
	}

	cmd.Printf("Instances in %s:\n\n", cat.Dir)

	width := runewidth.StringWidth("EDGES")
	for _, p := range cat.Pairs {
		if n := runewidth.StringWidth(filepath.Base(p.EdgePath)); n > width {
			width = n
		}
	}

	cmd.Printf("  %6s  %s  %s\n", "ID", runewidth.FillRight("EDGES", width), "NODES")
	for _, p := range cat.Pairs {
		cmd.Printf("  %6d  %s  %s\n", p.ID,
			runewidth.FillRight(filepath.Base(p.EdgePath), width),
			filepath.Base(p.NodePath))
	}

	if len(cat.Skipped) > 0 {
		cmd.Printf("\nSkipped (no matching node file or duplicate id):\n")
		for _, s := range cat.Skipped {
			cmd.Printf("  - %s\n", filepath.Base(s))
		}
	}

	cmd.Printf("\nTotal: %d instance(s)\n", cat.Len())
	return nil
}

func searchedDirs(dir, fallback string) string {
	if fallback == "" || fallback == dir {
		return dir
	}
	return dir + " or " + fallback
}
