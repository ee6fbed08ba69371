package cmd

import (
	"fmt"
	"strings"

	"github.com/gookit/color"
	"github.com/spf13/cobra"

	"github.com/dbsmedya/mstharness/internal/build"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the solver executable",
	Long: `Build runs the configured build command and verifies that the solver
executable exists afterwards. With an empty build command only the
executable is checked.

Example:
  mstharness build --config mstharness.yaml`,
	RunE: runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	if len(cfg.Solver.Build.Command) > 0 {
		cmd.Printf("Building: %s\n", strings.Join(cfg.Solver.Build.Command, " "))
	}

	builder := build.New(build.Options{
		Command:    cfg.Solver.Build.Command,
		Dir:        cfg.Solver.Build.Dir,
		Executable: cfg.Solver.Executable,
		Timeout:    cfg.BuildTimeout(),
	}, log)

	if err := builder.Build(commandContext(cmd)); err != nil {
		cmd.Println(color.Red.Sprint("✗ Build failed"))
		return err
	}

	cmd.Println(color.Green.Sprint(fmt.Sprintf("✓ Executable ready: %s", cfg.Solver.Executable)))
	return nil
}
