// Package charts hands the results table to an external plotting command.
package charts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/dbsmedya/mstharness/internal/logger"
	"github.com/dbsmedya/mstharness/internal/report"
)

// ErrNoCommand is returned by New when no command is configured.
var ErrNoCommand = errors.New("chart command is empty")

// Command runs `argv... <csv_path>` once per run.
type Command struct {
	argv    []string
	timeout time.Duration
	log     *logger.Logger
}

var _ report.Charter = (*Command)(nil)

// New creates a Command charter. A zero timeout means no limit beyond ctx.
func New(argv []string, timeout time.Duration, log *logger.Logger) (*Command, error) {
	if len(argv) == 0 || strings.TrimSpace(argv[0]) == "" {
		return nil, ErrNoCommand
	}
	if log == nil {
		log = logger.NewDefault()
	}
	return &Command{
		argv:    append([]string(nil), argv...),
		timeout: timeout,
		log:     log,
	}, nil
}

// Chart implements report.Charter.
func (c *Command) Chart(ctx context.Context, csvPath string, r *report.ExperimentReport) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	args := append(append([]string(nil), c.argv[1:]...), csvPath)
	cmd := exec.CommandContext(ctx, c.argv[0], args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	c.log.Infow("Generating charts",
		"command", c.argv[0],
		"csv", csvPath,
		"results", len(r.Results),
	)

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("chart command timed out after %s", c.timeout)
		}
		if msg := strings.TrimSpace(out.String()); msg != "" {
			return fmt.Errorf("chart command failed: %w: %s", err, msg)
		}
		return fmt.Errorf("chart command failed: %w", err)
	}

	c.log.Debugw("Chart command finished", "output", strings.TrimSpace(out.String()))
	return nil
}
