package cmd

import (
	"runtime"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/mstharness/internal/interpreter"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long:  `Display the harness version, build details and the solver output schemas it reads.`,
	Run:   runVersion,
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func runVersion(cmd *cobra.Command, args []string) {
	cmd.Printf("mstharness version %s (commit %s)\n", Version, Commit)
	cmd.Printf("  Go: %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	cmd.Printf("  Output schemas: %s, %s\n", interpreter.FixedFieldName, interpreter.TaggedName)
}
