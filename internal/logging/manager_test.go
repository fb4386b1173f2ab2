package logging

import (
	"path/filepath"
	"testing"
	"time"
)

func TestNewManagerRequiresFilePath(t *testing.T) {
	if _, err := NewManager(Config{}); err == nil {
		t.Fatal("expected error for missing FilePath")
	}
}

func TestManagerForCachesLoggers(t *testing.T) {
	m, err := NewManager(Config{FilePath: filepath.Join(t.TempDir(), "cgwt.log")})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	defer func() { _ = m.Close() }()

	a := m.For("orchestrator")
	b := m.For("orchestrator")
	if a != b {
		t.Error("expected same logger instance for same scope")
	}
	if a.Scope() != "orchestrator" {
		t.Errorf("Scope = %q", a.Scope())
	}
}

func TestManagerRelease(t *testing.T) {
	m, err := NewManager(Config{FilePath: filepath.Join(t.TempDir(), "cgwt.log")})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	defer func() { _ = m.Close() }()

	first := m.For("instance.abc")
	m.Release("instance.")
	second := m.For("instance.abc")
	if first == second {
		t.Error("expected Release to drop the cached logger")
	}
}

func TestManagerEntriesReceivesLogs(t *testing.T) {
	m, err := NewManager(Config{
		FilePath:       filepath.Join(t.TempDir(), "cgwt.log"),
		Level:          "debug",
		ChannelBufSize: 10,
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	defer func() { _ = m.Close() }()

	m.For("worktree").Info("worktree added", "branch", "feature-x")

	select {
	case e := <-m.Entries():
		if e.Message != "worktree added" {
			t.Errorf("Message = %q", e.Message)
		}
		if e.Scope != "worktree" {
			t.Errorf("Scope = %q", e.Scope)
		}
		if e.Level != "INFO" {
			t.Errorf("Level = %q", e.Level)
		}
		if e.Fields["branch"] != "feature-x" {
			t.Errorf("Fields[branch] = %v", e.Fields["branch"])
		}
	case <-time.After(time.Second):
		t.Fatal("no entry received")
	}
}

func TestNopLoggerDoesNotPanic(t *testing.T) {
	l := NopLogger()
	l.Info("msg", "k", "v")
	l.Debug("msg")
	l.Warn("msg")
	l.Error("msg")
	l.With("k", "v").Info("msg")
}

func TestTestManagerCapturesEntries(t *testing.T) {
	m := NewTestManager(10)
	defer func() { _ = m.Close() }()

	m.For("tmux").Warn("session vanished", "name", "cgwt-repo-main")

	select {
	case e := <-m.Entries():
		if e.Level != "WARN" || e.Scope != "tmux" {
			t.Errorf("entry = %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("no entry received")
	}
}
