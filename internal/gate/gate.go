// Package gate runs external commands and turns them into production-check results.
package gate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/sbenjam1n/tutorloop/internal/curriculum"
	"github.com/sbenjam1n/tutorloop/internal/tutor"
)

// DefaultTimeout bounds one command.
const DefaultTimeout = 5 * time.Minute

// maxOutput is how much trailing output a result keeps.
const maxOutput = 8 << 10

// Result is what a command produced.
type Result struct {
	Command  string
	ExitCode int
	Output   string
	Duration time.Duration
}

// Passed reports exit status 0.
func (r Result) Passed() bool { return r.ExitCode == 0 }

// Runner executes one shell command in cwd.
// A command that ran and exited non-zero is a Result, not an error. An error
// means the command could not be run at all and is a *tutor.ExternalToolError.
type Runner interface {
	Run(ctx context.Context, command, cwd string) (Result, error)
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, command, cwd string) (Result, error)

func (f RunnerFunc) Run(ctx context.Context, command, cwd string) (Result, error) {
	return f(ctx, command, cwd)
}

// ExecRunner runs commands through sh -c.
type ExecRunner struct {
	Timeout time.Duration
	Shell   string
}

func (r ExecRunner) Run(ctx context.Context, command, cwd string) (Result, error) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	shell := r.Shell
	if shell == "" {
		shell = "sh"
	}
	if info, err := os.Stat(cwd); err != nil || !info.IsDir() {
		if err == nil {
			err = fmt.Errorf("%s is not a directory", cwd)
		}
		return Result{Command: command}, &tutor.ExternalToolError{Command: command, Cause: err}
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, shell, "-c", command)
	cmd.Dir = cwd
	cmd.Stdout = &out
	cmd.Stderr = &out
	cmd.WaitDelay = time.Second

	start := time.Now()
	err := cmd.Run()
	res := Result{
		Command:  command,
		Output:   tail(out.String(), maxOutput),
		Duration: time.Since(start),
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return res, nil
	case ctx.Err() != nil:
		res.ExitCode = -1
		return res, &tutor.ExternalToolError{Command: command, Cause: ctx.Err()}
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	}
	res.ExitCode = -1
	return res, &tutor.ExternalToolError{Command: command, Cause: err}
}

// RunChecks runs every check in order. A check that could not be run is
// reported as failed with its error; it never aborts the remaining checks.
// Cancellation stops early and returns the context error.
func RunChecks(ctx context.Context, r Runner, checks []curriculum.Check, cwd string) ([]tutor.CheckResult, error) {
	results := make([]tutor.CheckResult, 0, len(checks))
	for _, c := range checks {
		if err := ctx.Err(); err != nil {
			return results, fmt.Errorf("run checks: %w", err)
		}
		res, err := r.Run(ctx, c.Command, cwd)
		cr := tutor.CheckResult{
			Name:     c.Name,
			Command:  c.Command,
			Passed:   err == nil && res.Passed(),
			ExitCode: res.ExitCode,
			Output:   res.Output,
		}
		if err != nil {
			cr.Error = err.Error()
		}
		results = append(results, cr)
	}
	return results, nil
}

// Summary counts passing checks.
func Summary(results []tutor.CheckResult) (passed, total int) {
	for _, r := range results {
		if r.Passed {
			passed++
		}
	}
	return passed, len(results)
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return "...\n" + s[len(s)-n:]
}
