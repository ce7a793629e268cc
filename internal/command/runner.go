// Package command runs the external tools the pipeline stages wrap.
package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// Result captures one external command invocation.
type Result struct {
	Command  string
	Args     []string
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// Runner abstracts process execution for testability.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (Result, error)
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, name string, args ...string) (Result, error)

func (f RunnerFunc) Run(ctx context.Context, name string, args ...string) (Result, error) {
	return f(ctx, name, args...)
}

// ExitError is returned when a command ran but exited non-zero.
type ExitError struct {
	Result Result
	Err    error
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s exited with code %d", e.Result.Command, e.Result.ExitCode)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// ExecRunner executes commands via os/exec.
type ExecRunner struct {
	// MaxOutput caps the bytes kept from each of stdout and stderr. 0 keeps everything.
	MaxOutput int
}

// NewExecRunner returns an ExecRunner keeping up to 1 MiB of output per stream.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{MaxOutput: 1 << 20}
}

// Run executes one command and captures stdout, stderr and the exit code.
// When ctx expires the process is killed and the returned error wraps ctx.Err().
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) (Result, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	res := Result{
		Command:  name,
		Args:     args,
		Stdout:   r.clip(stdout.String()),
		Stderr:   r.clip(stderr.String()),
		Duration: time.Since(start),
	}

	slog.Debug("command finished",
		"command", name,
		"args", strings.Join(args, " "),
		"duration_ms", res.Duration.Milliseconds(),
		"error", err,
	)

	if err == nil {
		return res, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		res.ExitCode = -1
		return res, fmt.Errorf("%s: %w", name, ctxErr)
	}

	res.ExitCode = -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res, &ExitError{Result: res, Err: err}
	}
	return res, fmt.Errorf("starting %s: %w", name, err)
}

// clip keeps the tail of s, where tools print their errors.
func (r *ExecRunner) clip(s string) string {
	if r.MaxOutput <= 0 || len(s) <= r.MaxOutput {
		return s
	}
	return s[len(s)-r.MaxOutput:]
}

// Tail returns the last n non-empty lines of s, joined with "; ".
func Tail(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	var kept []string
	for i := len(lines) - 1; i >= 0 && len(kept) < n; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			kept = append(kept, l)
		}
	}
	for i, j := 0, len(kept)-1; i < j; i, j = i+1, j-1 {
		kept[i], kept[j] = kept[j], kept[i]
	}
	return strings.Join(kept, "; ")
}
