// Package term executes terminal commands on behalf of plugins. Commands
// run as managed child processes with bounded output and context-driven
// termination.
package term

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os/exec"
	"time"

	"github.com/google/uuid"

	"github.com/coda-editor/extend/internal/log"
	"github.com/coda-editor/extend/internal/plugin/hostapi"
)

// ErrEmptyCommand is returned when no command is given.
var ErrEmptyCommand = errors.New("empty command")

// DefaultTimeout bounds a command when the caller's context carries no
// deadline of its own.
const DefaultTimeout = 30 * time.Second

// Runner runs commands for the terminal host operation.
type Runner struct {
	timeout   time.Duration
	maxOutput int64
	logger    log.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithTimeout sets the fallback execution timeout.
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) {
		r.timeout = d
	}
}

// WithMaxOutput caps captured stdout and stderr, each, in bytes.
func WithMaxOutput(n int64) Option {
	return func(r *Runner) {
		r.maxOutput = n
	}
}

// WithLogger sets the runner logger.
func WithLogger(l log.Logger) Option {
	return func(r *Runner) {
		r.logger = l
	}
}

// NewRunner creates a command runner.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		timeout:   DefaultTimeout,
		maxOutput: 1 * 1024 * 1024,
		logger:    log.Nop{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes the command and captures its output. A non-zero exit is not
// an error; the exit code travels in the result. The process is killed when
// the context ends.
func (r *Runner) Run(ctx context.Context, command string, args []string, dir string) (hostapi.ExecResult, error) {
	if command == "" {
		return hostapi.ExecResult{}, ErrEmptyCommand
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	runID := uuid.NewString()
	r.logger.Debug("running command", "run", runID, "command", command)

	cmd := exec.CommandContext(ctx, command, args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &limitedWriter{w: &stdout, remaining: r.maxOutput}
	cmd.Stderr = &limitedWriter{w: &stderr, remaining: r.maxOutput}

	err := cmd.Run()

	result := hostapi.ExecResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		result.ExitCode = 0
	case errors.As(err, &exitErr):
		result.ExitCode = exitErr.ExitCode()
	default:
		r.logger.Warn("command failed to start", "run", runID, "command", command, "err", err)
		return hostapi.ExecResult{}, err
	}

	r.logger.Debug("command finished", "run", runID, "exit", result.ExitCode)
	return result, nil
}

// limitedWriter discards bytes past the cap instead of failing the command.
type limitedWriter struct {
	w         io.Writer
	remaining int64
}

func (l *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	if l.remaining <= 0 {
		return n, nil
	}
	if int64(n) > l.remaining {
		p = p[:l.remaining]
	}
	written, err := l.w.Write(p)
	l.remaining -= int64(written)
	return n, err
}
