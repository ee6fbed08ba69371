package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/gookit/color"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/dbsmedya/mstharness/internal/build"
	"github.com/dbsmedya/mstharness/internal/charts"
	"github.com/dbsmedya/mstharness/internal/config"
	"github.com/dbsmedya/mstharness/internal/database"
	"github.com/dbsmedya/mstharness/internal/harness"
	"github.com/dbsmedya/mstharness/internal/interpreter"
	"github.com/dbsmedya/mstharness/internal/logger"
	"github.com/dbsmedya/mstharness/internal/report"
	"github.com/dbsmedya/mstharness/internal/store"
	"github.com/dbsmedya/mstharness/internal/supervisor"
	"github.com/dbsmedya/mstharness/internal/types"
)

var (
	runHistory int
	runNoStore bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the solver over every instance and write the results",
	Long: `Run builds the solver, discovers the instance catalog and runs every
instance through the solver, one at a time by default.

The run process follows these steps:
  1. Build the solver (skipped with --skip-build)
  2. Discover Edges<N>.csv / Nodes<N>.csv pairs in numeric order
  3. Run each instance under the time budget and print a status line
  4. Cross-validate the Prim and Kruskal costs of every result
  5. Write the results CSV (and YAML summary when configured)
  6. Save the run to the results store and generate charts when configured

Per-instance failures never stop the batch. A failed build or an empty
catalog aborts with a non-zero exit status.

Example:
  mstharness run --config mstharness.yaml --timeout 60`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().IntVar(&runHistory, "history", 0,
		"Show the last N runs from the results store instead of running")
	runCmd.Flags().BoolVar(&runNoStore, "no-store", false,
		"Do not save this run to the results store")

	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	out := cmd.OutOrStdout()

	if runHistory > 0 {
		return showHistory(commandContext(cmd), out, cfg, log, runHistory)
	}

	ctx, stop := harness.SetupSignalHandler(commandContext(cmd), func(sig os.Signal) {
		log.Warnw("Received shutdown signal - stopping after in-flight instances", "signal", sig.String())
	})
	defer stop()

	log.Infow("Starting run",
		"config", GetConfigFile(),
		"executable", cfg.Solver.Executable,
	)

	// Build failure is batch-fatal
	if !cfg.Solver.Build.Skip {
		builder := build.New(build.Options{
			Command:    cfg.Solver.Build.Command,
			Dir:        cfg.Solver.Build.Dir,
			Executable: cfg.Solver.Executable,
			Timeout:    cfg.BuildTimeout(),
		}, log)
		if err := builder.Build(ctx); err != nil {
			fmt.Fprintln(out, color.Red.Sprint("✗ Build failed"))
			return err
		}
		fmt.Fprintln(out, color.Green.Sprint("✓ Build succeeded"))
	}

	sup, err := supervisor.New(supervisor.Options{
		Executable:        cfg.Solver.Executable,
		Timeout:           cfg.SolverTimeout(),
		DisconnectMarkers: cfg.Solver.DisconnectMarkers,
		MaxOutputBytes:    cfg.Solver.MaxOutputBytes,
	}, log)
	if err != nil {
		return fmt.Errorf("failed to create supervisor: %w", err)
	}

	orch, err := harness.NewOrchestrator(cfg, sup, newInterpreter(cfg), log)
	if err != nil {
		return fmt.Errorf("failed to create orchestrator: %w", err)
	}

	// Empty catalog is batch-fatal
	if err := orch.Initialize(); err != nil {
		return fmt.Errorf("orchestrator initialization failed: %w", err)
	}

	cat, _ := orch.Catalog()
	fmt.Fprintf(out, "\nRunning %d instance(s) from %s (timeout %s, workers %d)\n\n",
		cat.Len(), cat.Dir, cfg.SolverTimeout(), cfg.Processing.Workers)

	r, execErr := orch.Execute(ctx, statusPrinter(out))
	if execErr != nil && !errors.Is(execErr, context.Canceled) {
		return fmt.Errorf("run failed: %w", execErr)
	}
	if execErr != nil {
		log.Warn("Run cancelled by user - writing partial results")
	}

	if err := writeFile(cfg.Output.ResultsCSV, func(w io.Writer) error {
		return report.WriteCSV(w, r.Table())
	}); err != nil {
		return fmt.Errorf("failed to write results: %w", err)
	}
	log.Infow("Results written", "path", cfg.Output.ResultsCSV, "rows", len(r.Results))

	if cfg.Output.SummaryYAML != "" {
		if err := writeFile(cfg.Output.SummaryYAML, func(w io.Writer) error {
			return report.WriteSummaryYAML(w, r)
		}); err != nil {
			return fmt.Errorf("failed to write summary: %w", err)
		}
		log.Infow("Summary written", "path", cfg.Output.SummaryYAML)
	}

	report.PrintSummary(out, r)
	fmt.Fprintf(out, "\nResults: %s\n", cfg.Output.ResultsCSV)

	var storeErr error
	if cfg.Store.Enabled && !runNoStore {
		// A fresh context so an interrupted run is still persisted.
		storeErr = saveReport(context.Background(), cfg, log, r)
	}

	if len(cfg.Charts.Command) > 0 && execErr == nil {
		// Chart failures never fail the run
		if err := renderCharts(context.Background(), cfg, log, r); err != nil {
			log.Warnw("Chart generation failed", "error", err)
		}
	}

	return storeErr
}

func newInterpreter(cfg *config.Config) *interpreter.Interpreter {
	return interpreter.New(interpreter.Options{
		Tolerance:     cfg.Validation.Tolerance,
		PrimaryName:   cfg.Validation.PrimaryName,
		SecondaryName: cfg.Validation.SecondaryName,
	})
}

// statusPrinter prints one aligned line per finished instance.
func statusPrinter(w io.Writer) harness.StatusCallback {
	return func(pair types.InstancePair, status harness.Status, entry report.Entry) {
		name := runewidth.FillRight(filepath.Base(pair.EdgePath), 16)
		line := fmt.Sprintf("  [%4d] %s %s", pair.ID, name, statusColor(status).Sprint(string(status)))
		if entry.Failure != nil && entry.Failure.Detail != "" {
			line += "  " + runewidth.Truncate(entry.Failure.Detail, 80, "...")
		}
		if entry.Record != nil {
			line += fmt.Sprintf("  (%s)", entry.Record.Elapsed.Round(time.Millisecond))
		}
		fmt.Fprintln(w, line)
	}
}

func statusColor(s harness.Status) color.Color {
	switch {
	case s == harness.StatusOKDisconnected, s == harness.StatusOKUnvalidated:
		return color.Yellow
	case s.Success():
		return color.Green
	default:
		return color.Red
	}
}

func writeFile(path string, write func(io.Writer) error) (err error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return write(f)
}

func openStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (*store.Store, *database.Manager, error) {
	log = log.WithFields(map[string]interface{}{
		"driver":       cfg.Store.Driver,
		"table_prefix": cfg.Store.TablePrefix,
	})

	dbManager := database.NewManager(&cfg.Store)
	if err := dbManager.Connect(ctx); err != nil {
		return nil, nil, err
	}

	st, err := store.New(dbManager.DB, dbManager.Dialect, cfg.Store.TablePrefix, log)
	if err != nil {
		dbManager.Close()
		return nil, nil, fmt.Errorf("failed to create results store: %w", err)
	}
	if err := st.InitializeTables(ctx); err != nil {
		dbManager.Close()
		return nil, nil, err
	}
	return st, dbManager, nil
}

func saveReport(ctx context.Context, cfg *config.Config, log *logger.Logger, r *report.ExperimentReport) error {
	st, dbManager, err := openStore(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to open results store: %w", err)
	}
	defer dbManager.Close()

	if err := st.SaveReport(ctx, r); err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	return nil
}

func renderCharts(ctx context.Context, cfg *config.Config, log *logger.Logger, r *report.ExperimentReport) error {
	charter, err := charts.New(cfg.Charts.Command, cfg.ChartsTimeout(), log)
	if err != nil {
		return err
	}
	return charter.Chart(ctx, cfg.Output.ResultsCSV, r)
}

func showHistory(ctx context.Context, w io.Writer, cfg *config.Config, log *logger.Logger, limit int) error {
	if !cfg.Store.Enabled {
		return fmt.Errorf("results store is not enabled (store.enabled: false)")
	}
	st, dbManager, err := openStore(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to open results store: %w", err)
	}
	defer dbManager.Close()

	runs, err := st.ListRuns(ctx, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded")
		return nil
	}

	fmt.Fprintf(w, "%-36s  %-19s  %9s  %7s  %8s  %10s\n",
		"RUN", "STARTED", "INSTANCES", "RESULTS", "FAILURES", "MISMATCHES")
	for _, run := range runs {
		fmt.Fprintf(w, "%-36s  %-19s  %9d  %7d  %8d  %10d\n",
			run.RunID, run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			run.Total, run.Results, run.Failures, run.Mismatches)
	}
	return nil
}
