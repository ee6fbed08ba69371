// Package harness coordinates a batch experiment: discovery, per-instance runs,
// interpretation and aggregation.
package harness

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dbsmedya/mstharness/internal/catalog"
	"github.com/dbsmedya/mstharness/internal/config"
	"github.com/dbsmedya/mstharness/internal/interpreter"
	"github.com/dbsmedya/mstharness/internal/logger"
	"github.com/dbsmedya/mstharness/internal/report"
	"github.com/dbsmedya/mstharness/internal/supervisor"
	"github.com/dbsmedya/mstharness/internal/types"
)

// Runner executes the solver for one instance. *supervisor.Supervisor implements it.
type Runner interface {
	Run(ctx context.Context, pair types.InstancePair) *supervisor.RunOutcome
}

// Status is the one-line verdict printed for each instance.
type Status string

const (
	StatusOK               Status = "✓ OK"
	StatusOKDisconnected   Status = "✓ OK (disconnected)"
	StatusOKUnvalidated    Status = "✓ OK (unvalidated)"
	StatusValidationFailed Status = "✗ VALIDATION FAILED"
	StatusFailed           Status = "✗ FAILED"
	StatusTimeout          Status = "✗ TIMEOUT"
	StatusMalformed        Status = "✗ MALFORMED"
	StatusException        Status = "✗ EXCEPTION"
)

// Success reports whether the status denotes a recorded, passing instance.
func (s Status) Success() bool {
	return s == StatusOK || s == StatusOKDisconnected || s == StatusOKUnvalidated
}

// StatusCallback is invoked once per completed instance. Calls are serialized.
type StatusCallback func(pair types.InstancePair, status Status, entry report.Entry)

// Orchestrator runs every instance of the catalog through the solver and interpreter.
type Orchestrator struct {
	config      *config.Config
	runner      Runner
	interpreter *interpreter.Interpreter
	logger      *logger.Logger
	catalog     *catalog.Catalog
	runID       string
	initialized bool

	callbackMu sync.Mutex
}

// NewOrchestrator creates a new orchestrator. It must be initialized with
// Initialize() before use.
func NewOrchestrator(cfg *config.Config, runner Runner, interp *interpreter.Interpreter, log *logger.Logger) (*Orchestrator, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	if runner == nil {
		return nil, fmt.Errorf("runner is nil")
	}
	if interp == nil {
		return nil, fmt.Errorf("interpreter is nil")
	}
	if log == nil {
		log = logger.NewDefault()
	}

	runID := uuid.NewString()
	return &Orchestrator{
		config:      cfg,
		runner:      runner,
		interpreter: interp,
		logger:      log.WithRun(runID),
		runID:       runID,
	}, nil
}

// Initialize discovers the instance catalog. An empty catalog is returned as
// catalog.ErrNoInstances and is fatal for the batch.
func (o *Orchestrator) Initialize() error {
	if o.initialized {
		return nil
	}

	cat, err := catalog.Discover(catalog.Options{
		Dir:         o.config.Catalog.Dir,
		FallbackDir: o.config.Catalog.FallbackDir,
		EdgePrefix:  o.config.Catalog.EdgePrefix,
		NodePrefix:  o.config.Catalog.NodePrefix,
		Extension:   o.config.Catalog.Extension,
	}, o.logger)
	if err != nil {
		return fmt.Errorf("failed to discover instances: %w", err)
	}

	o.catalog = cat
	o.initialized = true

	o.logger.Infow("Orchestrator initialized",
		"dir", cat.Dir,
		"instances", cat.Len(),
		"skipped", len(cat.Skipped),
	)
	return nil
}

// Catalog returns the discovered catalog.
func (o *Orchestrator) Catalog() (*catalog.Catalog, error) {
	if !o.initialized {
		return nil, fmt.Errorf("orchestrator not initialized")
	}
	return o.catalog, nil
}

// RunID returns the identifier of this run.
func (o *Orchestrator) RunID() string {
	return o.runID
}

// IsInitialized returns true if the orchestrator has been initialized.
func (o *Orchestrator) IsInitialized() bool {
	return o.initialized
}

// Execute runs every instance and returns the ordered report. Per-instance
// failures never abort the batch. When ctx is cancelled, instances not yet
// finished are left out and the partial report is returned with ctx.Err().
func (o *Orchestrator) Execute(ctx context.Context, status StatusCallback) (*report.ExperimentReport, error) {
	if !o.initialized {
		return nil, fmt.Errorf("orchestrator not initialized")
	}
	if ctx == nil {
		return nil, fmt.Errorf("context is nil")
	}

	workers := o.config.Processing.Workers
	if workers < 1 {
		workers = 1
	}

	o.logger.Infow("Starting experiment",
		"instances", o.catalog.Len(),
		"executable", o.config.Solver.Executable,
		"timeout", o.config.SolverTimeout(),
		"workers", workers,
		"tolerance", o.interpreter.Tolerance(),
	)

	agg := report.NewAggregator(o.runID)

	if workers == 1 {
		for _, pair := range o.catalog.Pairs {
			if ctx.Err() != nil {
				break
			}
			o.runOne(ctx, pair, agg, status)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(workers)
		for _, pair := range o.catalog.Pairs {
			if ctx.Err() != nil {
				break
			}
			pair := pair
			g.Go(func() error {
				if ctx.Err() == nil {
					o.runOne(ctx, pair, agg, status)
				}
				return nil
			})
		}
		_ = g.Wait()
	}

	r := agg.Report()

	o.logger.Infow("Experiment completed",
		"duration", r.Duration(),
		"results", r.Summary.Results,
		"failures", r.Summary.Failures,
		"mismatches", r.Summary.Mismatches,
		"disconnected", len(r.Disconnections),
	)

	if err := ctx.Err(); err != nil {
		o.logger.Warnw("Experiment interrupted", "completed", agg.Len(), "instances", o.catalog.Len())
		return r, err
	}
	return r, nil
}

func (o *Orchestrator) runOne(ctx context.Context, pair types.InstancePair, agg *report.Aggregator, status StatusCallback) {
	entry, ok := o.processInstance(ctx, pair)
	if !ok {
		return
	}
	agg.Add(entry)

	if status != nil {
		o.callbackMu.Lock()
		status(pair, StatusOf(entry), entry)
		o.callbackMu.Unlock()
	}
}

// processInstance runs and interprets one pair. It reports false when the run
// was cut short by cancellation of ctx.
func (o *Orchestrator) processInstance(ctx context.Context, pair types.InstancePair) (report.Entry, bool) {
	log := o.logger.WithInstance(pair.ID)

	outcome := o.runner.Run(ctx, pair)
	if ctx.Err() != nil && !outcome.Interpretable() {
		log.Debugw("Run interrupted", "error", ctx.Err())
		return report.Entry{}, false
	}

	result := o.interpreter.Interpret(outcome)
	entry := report.Entry{
		InstanceID:      pair.ID,
		Record:          result.Record,
		Failure:         result.Failure,
		Mismatch:        result.Mismatch,
		Disconnected:    outcome.Disconnected,
		DisconnectLines: outcome.DisconnectLines,
	}

	switch {
	case result.Failure != nil:
		log.Warnw("Instance failed",
			"kind", result.Failure.Kind,
			"detail", result.Failure.Detail,
		)
	case result.Mismatch != nil:
		log.Warnw("Validation mismatch", "detail", result.Mismatch.Detail)
	default:
		log.Debugw("Instance recorded",
			"schema", result.Record.Schema,
			"validation_passed", result.Record.ValidationPassed,
			"elapsed", outcome.Elapsed,
		)
	}
	return entry, true
}

// StatusOf maps an entry to its status line.
func StatusOf(e report.Entry) Status {
	if e.Failure != nil {
		switch e.Failure.Kind {
		case types.Timeout:
			return StatusTimeout
		case types.MalformedOutput:
			return StatusMalformed
		case types.ExecutionException:
			return StatusException
		default:
			return StatusFailed
		}
	}
	if e.Mismatch != nil {
		return StatusValidationFailed
	}
	// No costs reported, so there was nothing to cross-validate.
	if e.Record != nil && !e.Record.CostsReported {
		return StatusOKUnvalidated
	}
	if e.Record != nil && !e.Record.IsConnected {
		return StatusOKDisconnected
	}
	return StatusOK
}
