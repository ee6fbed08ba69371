// Package build compiles the solver before a run and verifies the executable.
package build

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/dbsmedya/mstharness/internal/logger"
)

// ErrBuildFailed wraps every build failure. Callers treat it as batch-fatal.
var ErrBuildFailed = errors.New("build failed")

// Options configures a Builder.
type Options struct {
	Command    []string // argv; empty only verifies Executable
	Dir        string
	Executable string
	Timeout    time.Duration
}

// Builder runs the build collaborator.
type Builder struct {
	opts   Options
	logger *logger.Logger
}

// Error carries the compiler output of a failed build.
type Error struct {
	Reason string
	Output string
}

func (e *Error) Error() string {
	if e.Output == "" {
		return fmt.Sprintf("%s: %s", ErrBuildFailed, e.Reason)
	}
	return fmt.Sprintf("%s: %s\n%s", ErrBuildFailed, e.Reason, e.Output)
}

func (e *Error) Unwrap() error { return ErrBuildFailed }

// New creates a Builder.
func New(opts Options, log *logger.Logger) *Builder {
	if log == nil {
		log = logger.NewDefault()
	}
	return &Builder{opts: opts, logger: log}
}

// Build runs the build command, if any, and checks that the executable exists
// and is runnable afterwards.
func (b *Builder) Build(ctx context.Context) error {
	log := b.logger.WithPhase("build")

	if len(b.opts.Command) > 0 {
		if b.opts.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, b.opts.Timeout)
			defer cancel()
		}

		cmd := exec.CommandContext(ctx, b.opts.Command[0], b.opts.Command[1:]...)
		cmd.Dir = b.opts.Dir
		var out bytes.Buffer
		cmd.Stdout = &out
		cmd.Stderr = &out

		log.Infow("Building solver", "command", strings.Join(b.opts.Command, " "))
		start := time.Now()
		err := cmd.Run()
		output := strings.TrimSpace(out.String())

		if err != nil {
			reason := err.Error()
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				reason = fmt.Sprintf("timed out after %s", b.opts.Timeout)
			}
			return &Error{Reason: reason, Output: output}
		}
		if output != "" {
			log.Warnw("Build produced output", "output", output)
		}
		log.Infow("Build finished", "duration", time.Since(start).Round(time.Millisecond))
	}

	return b.checkExecutable()
}

func (b *Builder) checkExecutable() error {
	if b.opts.Executable == "" {
		return &Error{Reason: "no executable configured"}
	}
	info, err := os.Stat(b.opts.Executable)
	if err != nil {
		return &Error{Reason: fmt.Sprintf("executable %s not found", b.opts.Executable)}
	}
	if info.IsDir() {
		return &Error{Reason: fmt.Sprintf("executable %s is a directory", b.opts.Executable)}
	}
	if info.Mode().Perm()&0111 == 0 {
		return &Error{Reason: fmt.Sprintf("executable %s is not executable", b.opts.Executable)}
	}
	return nil
}
