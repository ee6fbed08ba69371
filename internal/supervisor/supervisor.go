// Package supervisor runs the external solver for one instance under a bounded wait.
package supervisor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/dbsmedya/mstharness/internal/logger"
	"github.com/dbsmedya/mstharness/internal/types"
)

const (
	// DefaultTimeout is the reference per-instance wait.
	DefaultTimeout = 300 * time.Second

	// DefaultMaxOutputBytes caps each captured stream.
	DefaultMaxOutputBytes = 64 << 20

	// waitDelay bounds how long Wait blocks on pipes held open by a killed solver's children.
	waitDelay = 2 * time.Second
)

// Options configures a Supervisor.
type Options struct {
	Executable        string
	Timeout           time.Duration
	DisconnectMarkers []string
	MaxOutputBytes    int64
}

// RunOutcome is the raw result of one solver invocation.
type RunOutcome struct {
	InstanceID int
	ExitStatus int // -1 when the process never exited normally
	Stdout     string
	Stderr     string
	TimedOut   bool
	Elapsed    time.Duration

	// Disconnected is set when stderr carries a disconnection marker.
	Disconnected    bool
	DisconnectLines []string

	// Truncated is set when either stream exceeded the capture limit.
	Truncated bool

	// Err holds invocation errors (missing executable, permission denied, ...).
	Err error
}

// Interpretable reports whether stdout may be handed to the output interpreter.
func (o *RunOutcome) Interpretable() bool {
	return o.Err == nil && !o.TimedOut && o.ExitStatus == 0
}

// Classify maps a failed outcome to its failure record, or nil when the output is interpretable.
func (o *RunOutcome) Classify() *types.FailureRecord {
	switch {
	case o.Err != nil:
		return &types.FailureRecord{
			InstanceID: o.InstanceID,
			Kind:       types.ExecutionException,
			Detail:     o.Err.Error(),
		}
	case o.TimedOut:
		return &types.FailureRecord{
			InstanceID: o.InstanceID,
			Kind:       types.Timeout,
			Detail:     fmt.Sprintf("killed after %s", o.Elapsed.Round(time.Millisecond)),
		}
	case o.ExitStatus != 0:
		detail := fmt.Sprintf("exit status %d", o.ExitStatus)
		if o.ExitStatus < 0 {
			detail = "terminated by signal"
		}
		if line := firstLine(o.Stderr); line != "" {
			detail += ": " + line
		}
		return &types.FailureRecord{
			InstanceID: o.InstanceID,
			Kind:       types.NonZeroExit,
			Detail:     detail,
		}
	}
	return nil
}

// Supervisor invokes the solver as `executable <node_file> <edge_file>`.
type Supervisor struct {
	executable     string
	timeout        time.Duration
	markers        []string
	maxOutputBytes int64
	logger         *logger.Logger
}

// New creates a Supervisor. Zero timeout and output limit fall back to the defaults.
func New(opts Options, log *logger.Logger) (*Supervisor, error) {
	if opts.Executable == "" {
		return nil, fmt.Errorf("solver executable is required")
	}
	if log == nil {
		log = logger.NewDefault()
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	maxOutput := opts.MaxOutputBytes
	if maxOutput <= 0 {
		maxOutput = DefaultMaxOutputBytes
	}

	markers := make([]string, 0, len(opts.DisconnectMarkers))
	for _, m := range opts.DisconnectMarkers {
		if m = strings.TrimSpace(m); m != "" {
			markers = append(markers, strings.ToLower(m))
		}
	}

	return &Supervisor{
		executable:     opts.Executable,
		timeout:        timeout,
		markers:        markers,
		maxOutputBytes: maxOutput,
		logger:         log,
	}, nil
}

// Timeout returns the effective per-instance wait.
func (s *Supervisor) Timeout() time.Duration {
	return s.timeout
}

// Run executes the solver for one pair. It never returns an error: every
// failure mode is recorded on the outcome so the batch can continue.
func (s *Supervisor) Run(ctx context.Context, pair types.InstancePair) *RunOutcome {
	log := s.logger.WithInstance(pair.ID)

	outcome := &RunOutcome{
		InstanceID: pair.ID,
		ExitStatus: -1,
	}

	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, s.executable, pair.NodePath, pair.EdgePath)
	cmd.WaitDelay = waitDelay

	var stdoutBuf, stderrBuf bytes.Buffer
	stdout := &limitedWriter{w: &stdoutBuf, max: s.maxOutputBytes}
	stderr := &limitedWriter{w: &stderrBuf, max: s.maxOutputBytes}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	log.Debugw("Starting solver",
		"executable", s.executable,
		"node_file", pair.NodePath,
		"edge_file", pair.EdgePath,
		"timeout", s.timeout,
	)

	start := time.Now()
	err := cmd.Run()
	outcome.Elapsed = time.Since(start)

	// The solver exited cleanly but left a child holding the pipes.
	if errors.Is(err, exec.ErrWaitDelay) && cmd.ProcessState != nil && cmd.ProcessState.Success() {
		err = nil
	}

	outcome.Stderr = stderrBuf.String()
	outcome.Truncated = stdout.truncated || stderr.truncated
	s.scanDisconnection(outcome)

	switch {
	case err == nil:
		outcome.ExitStatus = 0
		outcome.Stdout = stdoutBuf.String()
	case errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		// Partial stdout from a killed solver is never trusted.
		outcome.TimedOut = true
		log.Warnw("Solver timed out", "timeout", s.timeout)
	case ctx.Err() != nil:
		outcome.Err = fmt.Errorf("solver run aborted: %w", ctx.Err())
	default:
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			outcome.ExitStatus = exitErr.ExitCode()
			log.Debugw("Solver exited non-zero", "exit_status", outcome.ExitStatus)
		} else {
			outcome.Err = err
			log.Errorw("Failed to execute solver", "error", err)
		}
	}

	if outcome.Truncated {
		log.Warnw("Solver output truncated", "limit_bytes", s.maxOutputBytes)
	}

	log.Debugw("Solver finished",
		"exit_status", outcome.ExitStatus,
		"elapsed", outcome.Elapsed,
		"timed_out", outcome.TimedOut,
		"stdout_bytes", len(outcome.Stdout),
	)

	return outcome
}

// scanDisconnection records stderr lines that carry a disconnection marker.
// The result feeds the diagnostic ledger only.
func (s *Supervisor) scanDisconnection(outcome *RunOutcome) {
	if len(s.markers) == 0 || outcome.Stderr == "" {
		return
	}
	for _, line := range strings.Split(outcome.Stderr, "\n") {
		lower := strings.ToLower(line)
		for _, marker := range s.markers {
			if strings.Contains(lower, marker) {
				outcome.Disconnected = true
				outcome.DisconnectLines = append(outcome.DisconnectLines, strings.TrimSpace(line))
				break
			}
		}
	}
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	const max = 200
	if len(s) > max {
		s = s[:max] + "..."
	}
	return s
}
