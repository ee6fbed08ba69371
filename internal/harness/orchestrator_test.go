package harness

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/dbsmedya/mstharness/internal/catalog"
	"github.com/dbsmedya/mstharness/internal/config"
	"github.com/dbsmedya/mstharness/internal/interpreter"
	"github.com/dbsmedya/mstharness/internal/logger"
	"github.com/dbsmedya/mstharness/internal/report"
	"github.com/dbsmedya/mstharness/internal/supervisor"
	"github.com/dbsmedya/mstharness/internal/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeRunner returns canned outcomes keyed by instance id.
type fakeRunner struct {
	mu       sync.Mutex
	outcomes map[int]supervisor.RunOutcome
	calls    []int
	inFlight int32
	maxSeen  int32
	delay    time.Duration
}

func (f *fakeRunner) Run(ctx context.Context, pair types.InstancePair) *supervisor.RunOutcome {
	n := atomic.AddInt32(&f.inFlight, 1)
	defer atomic.AddInt32(&f.inFlight, -1)
	for {
		seen := atomic.LoadInt32(&f.maxSeen)
		if n <= seen || atomic.CompareAndSwapInt32(&f.maxSeen, seen, n) {
			break
		}
	}

	f.mu.Lock()
	f.calls = append(f.calls, pair.ID)
	out, ok := f.outcomes[pair.ID]
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
		}
	}

	if !ok {
		out = supervisor.RunOutcome{ExitStatus: 0, Stdout: fixedLine(pair.ID, 10, 10, 1)}
	}
	out.InstanceID = pair.ID
	return &out
}

func fixedLine(v int, costA, costB float64, connected int) string {
	return fmt.Sprintf("%d,%d,%g,0.01,%g,0.02,%d,1", v, v*2, costA, costB, connected)
}

func makeCatalog(t *testing.T, ids ...int) string {
	t.Helper()
	dir := t.TempDir()
	for _, id := range ids {
		for _, prefix := range []string{"Edges", "Nodes"} {
			name := filepath.Join(dir, fmt.Sprintf("%s%d.csv", prefix, id))
			require.NoError(t, os.WriteFile(name, []byte("1\n"), 0644))
		}
	}
	return dir
}

func testConfig(dir string, workers int) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Catalog.Dir = dir
	cfg.Catalog.FallbackDir = ""
	cfg.Processing.Workers = workers
	return cfg
}

func newOrchestrator(t *testing.T, cfg *config.Config, runner Runner) *Orchestrator {
	t.Helper()
	interp := interpreter.New(interpreter.Options{
		Tolerance:     cfg.Validation.Tolerance,
		PrimaryName:   cfg.Validation.PrimaryName,
		SecondaryName: cfg.Validation.SecondaryName,
	})
	o, err := NewOrchestrator(cfg, runner, interp, logger.NewNop())
	require.NoError(t, err)
	require.NoError(t, o.Initialize())
	return o
}

func TestNewOrchestrator_Validation(t *testing.T) {
	cfg := config.DefaultConfig()
	interp := interpreter.New(interpreter.Options{Tolerance: 0.01})
	runner := &fakeRunner{}

	tests := []struct {
		name   string
		cfg    *config.Config
		runner Runner
		interp *interpreter.Interpreter
		errMsg string
	}{
		{name: "nil config", runner: runner, interp: interp, errMsg: "config is nil"},
		{name: "nil runner", cfg: cfg, interp: interp, errMsg: "runner is nil"},
		{name: "nil interpreter", cfg: cfg, runner: runner, errMsg: "interpreter is nil"},
		{name: "valid", cfg: cfg, runner: runner, interp: interp},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, err := NewOrchestrator(tt.cfg, tt.runner, tt.interp, nil)
			if tt.errMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, o.RunID())
			assert.False(t, o.IsInitialized())
		})
	}
}

func TestExecute_RequiresInitialize(t *testing.T) {
	o, err := NewOrchestrator(config.DefaultConfig(), &fakeRunner{}, interpreter.New(interpreter.Options{}), logger.NewNop())
	require.NoError(t, err)

	_, err = o.Execute(context.Background(), nil)
	assert.Error(t, err)

	_, err = o.Catalog()
	assert.Error(t, err)
}

func TestInitialize_EmptyCatalog(t *testing.T) {
	cfg := testConfig(t.TempDir(), 1)
	o, err := NewOrchestrator(cfg, &fakeRunner{}, interpreter.New(interpreter.Options{}), logger.NewNop())
	require.NoError(t, err)

	err = o.Initialize()
	require.Error(t, err)
	assert.ErrorIs(t, err, catalog.ErrNoInstances)
}

// Three pairs where instance 2 exits 1: two results (1, 3) and one NonZeroExit failure.
func TestExecute_ContainsPerInstanceFailures(t *testing.T) {
	runner := &fakeRunner{outcomes: map[int]supervisor.RunOutcome{
		2: {ExitStatus: 1, Stderr: "segfault"},
	}}
	o := newOrchestrator(t, testConfig(makeCatalog(t, 1, 2, 3), 1), runner)

	var statuses []Status
	r, err := o.Execute(context.Background(), func(pair types.InstancePair, s Status, e report.Entry) {
		statuses = append(statuses, s)
	})
	require.NoError(t, err)

	require.Len(t, r.Results, 2)
	assert.Equal(t, 1, r.Results[0].InstanceID)
	assert.Equal(t, 3, r.Results[1].InstanceID)
	require.Len(t, r.Failures, 1)
	assert.Equal(t, 2, r.Failures[0].InstanceID)
	assert.Equal(t, types.NonZeroExit, r.Failures[0].Kind)
	assert.Equal(t, []Status{StatusOK, StatusFailed, StatusOK}, statuses)
	assert.Equal(t, []int{1, 2, 3}, runner.calls)
	assert.Equal(t, o.RunID(), r.RunID)
}

// An edge file without its node file is skipped by discovery and never reaches the ledger.
func TestExecute_UnpairedEdgeFileIsNotAFailure(t *testing.T) {
	dir := makeCatalog(t, 1, 3)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Edges2.csv"), []byte("1\n"), 0644))

	runner := &fakeRunner{}
	o := newOrchestrator(t, testConfig(dir, 1), runner)

	cat, err := o.Catalog()
	require.NoError(t, err)
	assert.Equal(t, []string{"Edges2.csv"}, cat.Skipped)

	r, err := o.Execute(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 3}, runner.calls)
	assert.Empty(t, r.Failures)
	assert.Empty(t, r.Mismatches)
	assert.Equal(t, 2, r.Summary.Total)
	assert.Equal(t, 2, r.Summary.Results)
	assert.Equal(t, 0, r.Ledger().Len())
	for _, rec := range r.Results {
		assert.NotEqual(t, 2, rec.InstanceID)
	}
}

// Tagged output without costs is recorded and reported as unvalidated.
func TestExecute_TaggedWithoutCostsIsUnvalidated(t *testing.T) {
	runner := &fakeRunner{outcomes: map[int]supervisor.RunOutcome{
		1: {ExitStatus: 0, Stdout: "Tempo (Prim): 0.5 s\nTempo (Kruskal): 0.7 s\n"},
	}}
	o := newOrchestrator(t, testConfig(makeCatalog(t, 1, 2), 1), runner)

	var statuses []Status
	r, err := o.Execute(context.Background(), func(pair types.InstancePair, s Status, e report.Entry) {
		statuses = append(statuses, s)
	})
	require.NoError(t, err)

	assert.Equal(t, []Status{StatusOKUnvalidated, StatusOK}, statuses)
	assert.Empty(t, r.Mismatches)
	assert.Equal(t, 1, r.Summary.ValidationsPassed)
	assert.Equal(t, 1, r.Summary.Unvalidated)
}

func TestExecute_TimeoutNeverParsed(t *testing.T) {
	runner := &fakeRunner{outcomes: map[int]supervisor.RunOutcome{
		1: {ExitStatus: -1, TimedOut: true, Stdout: fixedLine(1, 5, 5, 1)},
	}}
	o := newOrchestrator(t, testConfig(makeCatalog(t, 1), 1), runner)

	r, err := o.Execute(context.Background(), nil)
	require.NoError(t, err)

	assert.Empty(t, r.Results)
	require.Len(t, r.Failures, 1)
	assert.Equal(t, types.Timeout, r.Failures[0].Kind)
}

func TestExecute_MismatchAndDisconnection(t *testing.T) {
	runner := &fakeRunner{outcomes: map[int]supervisor.RunOutcome{
		1: {ExitStatus: 0, Stdout: fixedLine(4, 10, 10.5, 1)},
		2: {ExitStatus: 0, Stdout: fixedLine(4, 3, 3, 0), Disconnected: true,
			DisconnectLines: []string{"AVISO: Grafo desconexo com 2 componentes"}},
		3: {ExitStatus: 0, Stdout: "garbage"},
	}}
	o := newOrchestrator(t, testConfig(makeCatalog(t, 1, 2, 3), 1), runner)

	var statuses []Status
	r, err := o.Execute(context.Background(), func(pair types.InstancePair, s Status, e report.Entry) {
		statuses = append(statuses, s)
	})
	require.NoError(t, err)

	assert.Equal(t, []Status{StatusValidationFailed, StatusOKDisconnected, StatusMalformed}, statuses)
	require.Len(t, r.Results, 2)
	require.Len(t, r.Mismatches, 1)
	assert.Equal(t, 1, r.Mismatches[0].InstanceID)
	assert.Equal(t, []int{2}, r.DisconnectedIDs())
	require.Len(t, r.Failures, 1)
	assert.Equal(t, types.MalformedOutput, r.Failures[0].Kind)
}

func TestExecute_ParallelMatchesSequential(t *testing.T) {
	outcomes := map[int]supervisor.RunOutcome{
		3: {ExitStatus: 1},
		5: {ExitStatus: -1, TimedOut: true},
		7: {ExitStatus: 0, Stdout: fixedLine(4, 1, 2, 1)},
	}
	dir := makeCatalog(t, 1, 2, 3, 4, 5, 6, 7, 8)

	seq := newOrchestrator(t, testConfig(dir, 1), &fakeRunner{outcomes: outcomes})
	seqReport, err := seq.Execute(context.Background(), nil)
	require.NoError(t, err)

	runner := &fakeRunner{outcomes: outcomes, delay: 20 * time.Millisecond}
	par := newOrchestrator(t, testConfig(dir, 4), runner)
	parReport, err := par.Execute(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, seqReport.Table(), parReport.Table())
	assert.Equal(t, seqReport.Failures, parReport.Failures)
	assert.Equal(t, seqReport.Mismatches, parReport.Mismatches)
	assert.Equal(t, seqReport.Summary, parReport.Summary)
	assert.LessOrEqual(t, atomic.LoadInt32(&runner.maxSeen), int32(4))
}

func TestExecute_SequentialRunsOneAtATime(t *testing.T) {
	runner := &fakeRunner{delay: 5 * time.Millisecond}
	o := newOrchestrator(t, testConfig(makeCatalog(t, 1, 2, 3, 4), 1), runner)

	_, err := o.Execute(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&runner.maxSeen))
}

func TestExecute_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	runner := &fakeRunner{}
	o := newOrchestrator(t, testConfig(makeCatalog(t, 1, 2, 3), 1), runner)

	calls := 0
	r, err := o.Execute(ctx, func(pair types.InstancePair, s Status, e report.Entry) {
		calls++
		cancel()
	})
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, r)
	assert.Equal(t, 1, calls)
	assert.Len(t, r.Results, 1)
}

func TestStatusOf(t *testing.T) {
	rec := &types.ResultRecord{IsConnected: true, CostsReported: true}
	disc := &types.ResultRecord{IsConnected: false, CostsReported: true}
	noCosts := &types.ResultRecord{IsConnected: true}

	tests := []struct {
		entry report.Entry
		want  Status
	}{
		{report.Entry{Record: rec}, StatusOK},
		{report.Entry{Record: disc}, StatusOKDisconnected},
		{report.Entry{Record: noCosts}, StatusOKUnvalidated},
		{report.Entry{Record: rec, Mismatch: &types.FailureRecord{Kind: types.ValidationMismatch}}, StatusValidationFailed},
		{report.Entry{Failure: &types.FailureRecord{Kind: types.NonZeroExit}}, StatusFailed},
		{report.Entry{Failure: &types.FailureRecord{Kind: types.Timeout}}, StatusTimeout},
		{report.Entry{Failure: &types.FailureRecord{Kind: types.MalformedOutput}}, StatusMalformed},
		{report.Entry{Failure: &types.FailureRecord{Kind: types.ExecutionException}}, StatusException},
	}

	for _, tt := range tests {
		t.Run(string(tt.want), func(t *testing.T) {
			assert.Equal(t, tt.want, StatusOf(tt.entry))
		})
	}
	assert.True(t, StatusOKDisconnected.Success())
	assert.True(t, StatusOKUnvalidated.Success())
	assert.False(t, StatusTimeout.Success())
}

// Runs the real supervisor against a shell-script solver.
func TestExecute_WithSupervisor(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	dir := makeCatalog(t, 1, 2, 3)
	solver := filepath.Join(t.TempDir(), "main")
	script := `#!/bin/sh
case "$2" in
  *Edges2.csv) echo "AVISO: Grafo desconexo com 2 componentes" >&2; exit 1 ;;
  *Edges3.csv) exec sleep 10 ;;
esac
echo "4,5,12.5,0.001,12.5,0.002,1,1"
`
	require.NoError(t, os.WriteFile(solver, []byte(script), 0755))

	cfg := testConfig(dir, 1)
	cfg.Solver.Executable = solver
	cfg.Solver.TimeoutSeconds = 0.5

	sup, err := supervisor.New(supervisor.Options{
		Executable:        cfg.Solver.Executable,
		Timeout:           cfg.SolverTimeout(),
		DisconnectMarkers: cfg.Solver.DisconnectMarkers,
	}, logger.NewNop())
	require.NoError(t, err)

	o := newOrchestrator(t, cfg, sup)
	r, err := o.Execute(context.Background(), nil)
	require.NoError(t, err)

	require.Len(t, r.Results, 1)
	assert.Equal(t, 1, r.Results[0].InstanceID)
	assert.True(t, r.Results[0].ValidationPassed)

	require.Len(t, r.Failures, 2)
	assert.Equal(t, types.NonZeroExit, r.Failures[0].Kind)
	assert.Equal(t, types.Timeout, r.Failures[1].Kind)
	assert.Equal(t, []int{2}, r.DisconnectedIDs())
}
