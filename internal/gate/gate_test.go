package gate

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sbenjam1n/tutorloop/internal/curriculum"
	"github.com/sbenjam1n/tutorloop/internal/tutor"
)

func TestExecRunner(t *testing.T) {
	dir := t.TempDir()
	r := ExecRunner{Timeout: 10 * time.Second}

	res, err := r.Run(context.Background(), "echo hello && exit 0", dir)
	require.NoError(t, err)
	assert.True(t, res.Passed())
	assert.Equal(t, "hello\n", res.Output)

	res, err = r.Run(context.Background(), "echo broken >&2; exit 3", dir)
	require.NoError(t, err)
	assert.False(t, res.Passed())
	assert.Equal(t, 3, res.ExitCode)
	assert.Contains(t, res.Output, "broken")
}

func TestExecRunnerCannotStart(t *testing.T) {
	r := ExecRunner{}
	_, err := r.Run(context.Background(), "true", filepath.Join(t.TempDir(), "missing"))
	var tool *tutor.ExternalToolError
	require.ErrorAs(t, err, &tool)
	assert.Equal(t, "true", tool.Command)

	r = ExecRunner{Shell: "/nonexistent/shell"}
	_, err = r.Run(context.Background(), "true", t.TempDir())
	require.ErrorAs(t, err, &tool)
}

func TestExecRunnerTimeout(t *testing.T) {
	r := ExecRunner{Timeout: 50 * time.Millisecond}
	res, err := r.Run(context.Background(), "sleep 5", t.TempDir())
	var tool *tutor.ExternalToolError
	require.ErrorAs(t, err, &tool)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, -1, res.ExitCode)
}

func TestRunChecks(t *testing.T) {
	fake := RunnerFunc(func(ctx context.Context, command, cwd string) (Result, error) {
		switch command {
		case "pytest":
			return Result{Command: command, Output: "3 passed"}, nil
		case "mypy":
			return Result{Command: command, ExitCode: 1, Output: "error: missing annotation"}, nil
		}
		return Result{Command: command, ExitCode: -1}, &tutor.ExternalToolError{Command: command, Cause: errors.New("not found")}
	})
	checks := []curriculum.Check{
		{Name: "tests", Command: "pytest"},
		{Name: "types", Command: "mypy"},
		{Name: "lint", Command: "ruff"},
	}

	results, err := RunChecks(context.Background(), fake, checks, ".")
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.True(t, results[0].Passed)
	assert.False(t, results[1].Passed)
	assert.Equal(t, 1, results[1].ExitCode)
	assert.False(t, results[2].Passed)
	assert.True(t, strings.Contains(results[2].Error, "not found"))

	passed, total := Summary(results)
	assert.Equal(t, 1, passed)
	assert.Equal(t, 3, total)
}

func TestRunChecksCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results, err := RunChecks(ctx, ExecRunner{}, []curriculum.Check{{Name: "tests", Command: "true"}}, t.TempDir())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, results)
}

func TestTail(t *testing.T) {
	assert.Equal(t, "abc", tail("abc", 5))
	assert.Equal(t, "...\nde", tail("abcde", 2))
}
