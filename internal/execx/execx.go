// pattern: Imperative Shell

// Package execx runs external commands (git, tmux) with bounded time and
// output. Callers inject the Runner func type so tests can substitute fakes
// without spawning processes.
package execx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// DefaultTimeout bounds every external command invocation.
const DefaultTimeout = 30 * time.Second

// MaxOutputBytes caps captured stdout/stderr per command. A command whose
// output exceeds the cap fails with ErrOutputOverflow instead of handing the
// parser a silently truncated buffer.
const MaxOutputBytes = 10 << 20

// ErrTimeout is returned when a command exceeds its deadline.
var ErrTimeout = errors.New("command timed out")

// ErrOutputOverflow is returned when a command produces more output than the cap.
var ErrOutputOverflow = errors.New("command output exceeded buffer limit")

// Result is the structured outcome of a command. Non-zero exit codes are
// reported here rather than as Go errors; only spawn failures, timeouts and
// overflows surface through the error return.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Runner executes a command in dir and returns its result. The zero name is
// invalid. Implementations must honor ctx cancellation.
type Runner func(ctx context.Context, dir, name string, args ...string) (Result, error)

// cappedBuffer is a bytes.Buffer that refuses writes past a byte limit.
type cappedBuffer struct {
	buf   bytes.Buffer
	limit int
}

func (c *cappedBuffer) Write(p []byte) (int, error) {
	if c.buf.Len()+len(p) > c.limit {
		return 0, ErrOutputOverflow
	}
	return c.buf.Write(p)
}

// System returns a Runner backed by os/exec with the given per-command
// timeout. A zero timeout uses DefaultTimeout.
func System(timeout time.Duration) Runner {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return func(ctx context.Context, dir, name string, args ...string) (Result, error) {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		cmd := exec.CommandContext(ctx, name, args...)
		cmd.Dir = dir
		stdout := &cappedBuffer{limit: MaxOutputBytes}
		stderr := &cappedBuffer{limit: MaxOutputBytes}
		cmd.Stdout = stdout
		cmd.Stderr = stderr

		err := cmd.Run()
		res := Result{
			Stdout: stdout.buf.String(),
			Stderr: stderr.buf.String(),
		}
		if err != nil {
			if ctx.Err() == context.DeadlineExceeded {
				return res, fmt.Errorf("%s %v: %w", name, args, ErrTimeout)
			}
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				// Command ran and failed: report through the result.
				res.ExitCode = exitErr.ExitCode()
				return res, nil
			}
			if errors.Is(err, ErrOutputOverflow) {
				return res, fmt.Errorf("%s %v: %w", name, args, ErrOutputOverflow)
			}
			return res, fmt.Errorf("%s %v: %w", name, args, err)
		}
		return res, nil
	}
}
