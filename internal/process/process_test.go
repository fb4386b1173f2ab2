package process

import (
	"bufio"
	"errors"
	"fmt"
	"runtime"
	"testing"
	"time"
)

func requirePosix(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
}

func TestStartEchoAndExit(t *testing.T) {
	requirePosix(t)
	h := New(Config{Binary: "sh", Args: []string{"-c", "echo hello"}}, nil)
	if err := h.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	out, err := h.Output()
	if err != nil {
		t.Fatalf("Output: %v", err)
	}
	scanner := bufio.NewScanner(out)
	if !scanner.Scan() || scanner.Text() != "hello" {
		t.Errorf("output = %q", scanner.Text())
	}

	select {
	case <-h.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("process did not exit")
	}
	if h.Running() {
		t.Error("Running() should be false after exit")
	}
}

func TestDoubleStartFails(t *testing.T) {
	requirePosix(t)
	h := New(Config{Binary: "sh", Args: []string{"-c", "sleep 0.1"}}, nil)
	if err := h.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer func() { _ = h.Stop() }()

	if err := h.Start(); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Start = %v, want ErrAlreadyStarted", err)
	}
}

func TestStdinReachesChild(t *testing.T) {
	requirePosix(t)
	h := New(Config{Binary: "cat"}, nil)
	if err := h.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer func() { _ = h.Stop() }()

	stdin, err := h.Stdin()
	if err != nil {
		t.Fatalf("Stdin: %v", err)
	}
	fmt.Fprintln(stdin, "ping")

	out, _ := h.Output()
	scanner := bufio.NewScanner(out)
	if !scanner.Scan() || scanner.Text() != "ping" {
		t.Errorf("echoed = %q", scanner.Text())
	}
}

func TestStopGracefulExit(t *testing.T) {
	requirePosix(t)
	h := New(Config{Binary: "sh", Args: []string{"-c", "sleep 60"}}, nil)
	if err := h.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	start := time.Now()
	if err := h.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("graceful stop took %v", elapsed)
	}
}

func TestStopBoundedWhenSigtermIgnored(t *testing.T) {
	requirePosix(t)
	// The child traps SIGTERM, so only the forced kill can end it.
	h := New(Config{
		Binary:    "sh",
		Args:      []string{"-c", `trap "" TERM; sleep 60`},
		StopGrace: 200 * time.Millisecond,
	}, nil)
	if err := h.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	// Give the shell a moment to install the trap.
	time.Sleep(100 * time.Millisecond)

	start := time.Now()
	if err := h.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("Stop took %v, want bounded by grace period", elapsed)
	}
	if h.Running() {
		t.Error("process survived Stop")
	}
}

func TestStopOnUnstartedHandleIsNoop(t *testing.T) {
	h := New(Config{Binary: "sh"}, nil)
	if err := h.Stop(); err != nil {
		t.Errorf("Stop: %v", err)
	}
}

func TestOutputBeforeStart(t *testing.T) {
	h := New(Config{Binary: "sh"}, nil)
	if _, err := h.Output(); !errors.Is(err, ErrNotStarted) {
		t.Errorf("Output = %v, want ErrNotStarted", err)
	}
	if _, err := h.Stdin(); !errors.Is(err, ErrNotStarted) {
		t.Errorf("Stdin = %v, want ErrNotStarted", err)
	}
}
