// pattern: Imperative Shell

// Package process runs one assistant child process with a bounded, two-phase
// shutdown: graceful signal first, forced kill after a fixed grace window.
// In interactive mode the child runs under a pty so it behaves as if attached
// to a terminal; otherwise plain pipes carry line-delimited JSON.
package process

import (
	"bufio"
	"errors"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/creack/pty"

	"cgwt/internal/logging"
)

// DefaultStopGrace is how long Stop waits for a graceful exit before the
// forced kill. It bounds worst-case shutdown latency per instance.
const DefaultStopGrace = 5 * time.Second

// ErrAlreadyStarted is returned by Start on a handle that already ran.
var ErrAlreadyStarted = errors.New("process already started")

// ErrNotStarted is returned when output or stdin is requested before Start.
var ErrNotStarted = errors.New("process not started")

// Config describes the child process.
type Config struct {
	Binary      string
	Args        []string
	Dir         string
	Env         []string // appended to the parent environment
	Interactive bool     // run under a pty instead of pipes
	StopGrace   time.Duration
}

// Handle owns one child process. A Handle is single-use: once the process
// exits it cannot be restarted.
type Handle struct {
	cfg Config
	log *logging.ScopedLogger

	mu      sync.Mutex
	cmd     *exec.Cmd
	started bool
	stdin   io.WriteCloser
	output  io.ReadCloser
	ptmx    *os.File
	done    chan struct{}
	waitErr error
}

// New creates an unstarted handle.
func New(cfg Config, log *logging.ScopedLogger) *Handle {
	if log == nil {
		log = logging.NopLogger()
	}
	if cfg.StopGrace <= 0 {
		cfg.StopGrace = DefaultStopGrace
	}
	return &Handle{cfg: cfg, log: log, done: make(chan struct{})}
}

// Start spawns the child. It fails on a handle that was already started.
func (h *Handle) Start() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.started {
		return ErrAlreadyStarted
	}

	cmd := exec.Command(h.cfg.Binary, h.cfg.Args...)
	cmd.Dir = h.cfg.Dir
	cmd.Env = append(os.Environ(), h.cfg.Env...)

	if h.cfg.Interactive {
		ptmx, err := pty.Start(cmd)
		if err != nil {
			return err
		}
		h.ptmx = ptmx
		h.stdin = ptmx
		h.output = ptmx
	} else {
		stdin, err := cmd.StdinPipe()
		if err != nil {
			return err
		}
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			return err
		}
		stderr, err := cmd.StderrPipe()
		if err != nil {
			return err
		}
		if err := cmd.Start(); err != nil {
			return err
		}
		h.stdin = stdin
		h.output = stdout
		go h.drainStderr(stderr)
	}

	h.cmd = cmd
	h.started = true
	h.log.Info("process started", "binary", h.cfg.Binary, "pid", cmd.Process.Pid, "interactive", h.cfg.Interactive)

	go func() {
		err := cmd.Wait()
		h.mu.Lock()
		h.waitErr = err
		if h.ptmx != nil {
			_ = h.ptmx.Close()
		}
		h.mu.Unlock()
		close(h.done)
	}()
	return nil
}

// drainStderr forwards child stderr lines into the log.
func (h *Handle) drainStderr(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		h.log.Warn(scanner.Text(), "stream", "stderr")
	}
}

// Stdin returns the child's input writer.
func (h *Handle) Stdin() (io.Writer, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.started {
		return nil, ErrNotStarted
	}
	return h.stdin, nil
}

// Output returns the child's output reader: stdout in pipe mode, the pty
// master in interactive mode.
func (h *Handle) Output() (io.Reader, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.started {
		return nil, ErrNotStarted
	}
	return h.output, nil
}

// Done is closed when the child has exited and been reaped.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Running reports whether the child is alive.
func (h *Handle) Running() bool {
	h.mu.Lock()
	started := h.started
	h.mu.Unlock()
	if !started {
		return false
	}
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

// WaitErr returns the error from reaping the child, valid after Done closes.
func (h *Handle) WaitErr() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.waitErr
}

// Stop terminates the child: SIGTERM, then SIGKILL once the grace window
// passes. It always returns within roughly the grace period.
func (h *Handle) Stop() error {
	h.mu.Lock()
	if !h.started {
		h.mu.Unlock()
		return nil
	}
	cmd := h.cmd
	h.mu.Unlock()

	select {
	case <-h.done:
		return nil // already exited
	default:
	}

	if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
		// Process already gone; just wait for the reaper.
		<-h.done
		return nil
	}

	select {
	case <-h.done:
		return nil
	case <-time.After(h.cfg.StopGrace):
	}

	h.log.Warn("graceful stop timed out, killing", "binary", h.cfg.Binary)
	_ = cmd.Process.Kill()
	<-h.done
	return nil
}
