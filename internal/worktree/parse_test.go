package worktree

import (
	"testing"
)

const sampleListing = `worktree /repos/myapp/.bare
bare

worktree /repos/myapp/main
HEAD abcdef1234567890abcdef1234567890abcdef12
branch refs/heads/main

worktree /repos/myapp/feature-x
HEAD 1111111111111111111111111111111111111111
branch refs/heads/feature-x
locked

worktree /repos/myapp/stale
HEAD 2222222222222222222222222222222222222222
branch refs/heads/stale
prunable

worktree /repos/myapp/detached-wt
HEAD 3333333333333333333333333333333333333333
detached
`

func TestParsePorcelain(t *testing.T) {
	entries := ParsePorcelain(sampleListing)
	if len(entries) != 5 {
		t.Fatalf("len = %d, want 5", len(entries))
	}

	if !entries[0].IsBare {
		t.Error("first entry should carry the bare flag")
	}

	main := entries[1]
	if main.Path != "/repos/myapp/main" || main.Branch != "main" {
		t.Errorf("main entry = %+v", main)
	}
	if main.Head != "abcdef1234567890abcdef1234567890abcdef12" {
		t.Errorf("Head = %q", main.Head)
	}

	if !entries[2].IsLocked {
		t.Error("feature-x should be locked")
	}
	if !entries[3].IsPrunable {
		t.Error("stale should be prunable")
	}
	if entries[4].Branch != "" {
		t.Errorf("detached entry has Branch = %q, want empty", entries[4].Branch)
	}
}

func TestParsePorcelainEmptyInput(t *testing.T) {
	if entries := ParsePorcelain(""); entries != nil {
		t.Errorf("ParsePorcelain(\"\") = %v, want nil", entries)
	}
}

func TestParsePorcelainIgnoresUnknownFields(t *testing.T) {
	text := "worktree /x\nHEAD 1234\nbranch refs/heads/b\nnewfangled value\n"
	entries := ParsePorcelain(text)
	if len(entries) != 1 {
		t.Fatalf("len = %d, want 1", len(entries))
	}
	if entries[0].Branch != "b" {
		t.Errorf("Branch = %q", entries[0].Branch)
	}
}

func TestParsePorcelainUnbornBranch(t *testing.T) {
	text := "worktree /x/new\nbranch refs/heads/new\n"
	entries := ParsePorcelain(text)
	if len(entries) != 1 {
		t.Fatalf("len = %d, want 1", len(entries))
	}
	if entries[0].Head != "" {
		t.Errorf("Head = %q, want empty for unborn branch", entries[0].Head)
	}
}
