// Package execx runs host binaries such as docker. Commands go through the
// Commander interface so callers can be exercised against a Fake in tests.
package execx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

// Result is the outcome of a finished command.
type Result struct {
	Code int
	Err  error
}

// OK reports whether the command ran and exited zero.
func (r Result) OK() bool {
	return r.Err == nil && r.Code == 0
}

// Commander executes external commands.
type Commander interface {
	// Run executes name with its stdio attached to the host.
	Run(ctx context.Context, name string, args ...string) Result
	// Capture executes name and returns its stdout.
	Capture(ctx context.Context, name string, args ...string) (string, Result)
	// LookPath reports where name is installed.
	LookPath(name string) (string, error)
}

// Exec is the Commander backed by os/exec.
type Exec struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// Trace prints every command to Stderr before it runs.
	Trace bool
	// DryRun prints commands instead of executing them. Capture then
	// reports success with empty output.
	DryRun bool
}

// New returns an Exec wired to the process stdio.
func New(trace, dryRun bool) *Exec {
	return &Exec{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		Trace:  trace,
		DryRun: dryRun,
	}
}

func (e *Exec) Run(ctx context.Context, name string, args ...string) Result {
	if e.DryRun {
		fmt.Fprintln(e.stderr(), "+ "+Join(name, args...))
		return Result{}
	}
	e.trace(name, args)

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = e.Stdin
	cmd.Stdout = e.Stdout
	cmd.Stderr = e.Stderr
	return result(ctx, cmd.Run())
}

func (e *Exec) Capture(ctx context.Context, name string, args ...string) (string, Result) {
	if e.DryRun {
		fmt.Fprintln(e.stderr(), "+ "+Join(name, args...))
		return "", Result{}
	}
	e.trace(name, args)

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	res := result(ctx, err)
	if res.Err != nil && stderr.Len() > 0 {
		res.Err = fmt.Errorf("%w: %s", res.Err, strings.TrimSpace(stderr.String()))
	}
	return string(out), res
}

func (e *Exec) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

func (e *Exec) trace(name string, args []string) {
	if e.Trace {
		fmt.Fprintln(e.stderr(), "+ "+Join(name, args...))
	}
}

func (e *Exec) stderr() io.Writer {
	if e.Stderr == nil {
		return os.Stderr
	}
	return e.Stderr
}

func result(ctx context.Context, err error) Result {
	if err == nil {
		return Result{}
	}
	var exitErr *exec.ExitError
	switch {
	case errors.As(err, &exitErr):
		return Result{Code: exitErr.ExitCode(), Err: err}
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return Result{Code: 124, Err: err}
	default:
		return Result{Code: 1, Err: err}
	}
}

// Join renders a command line for display.
func Join(name string, args ...string) string {
	return strings.Join(append([]string{name}, args...), " ")
}
