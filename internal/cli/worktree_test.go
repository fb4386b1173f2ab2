package cli

import (
	"path/filepath"
	"strings"
	"testing"

	"cgwt/internal/execx"
)

func TestWorktreeAddPrintsPath(t *testing.T) {
	env, f, stdout, _ := testEnv(t)
	// Branch is brand-new: no local or remote ref.
	f.responses["git show-ref --verify --quiet refs/heads/feature"] = execx.Result{ExitCode: 1}
	f.responses["git show-ref --verify --quiet refs/remotes/origin/feature"] = execx.Result{ExitCode: 1}

	app := BuildApp(env)
	if code := app.Execute([]string{"worktree", "add", "feature"}); code != 0 {
		t.Fatalf("exit = %d", code)
	}
	want := filepath.Join(env.WorkDir, "feature")
	if got := strings.TrimSpace(stdout.String()); got != want {
		t.Errorf("stdout = %q, want %q", got, want)
	}
	if !f.called("git worktree add -b feature " + want) {
		t.Errorf("calls = %v", f.calls)
	}
}

func TestWorktreeAddRejectsBadBranch(t *testing.T) {
	env, f, _, stderr := testEnv(t)
	app := BuildApp(env)
	if code := app.Execute([]string{"worktree", "add", "../escape"}); code != 1 {
		t.Fatalf("exit = %d, want 1", code)
	}
	if stderr.Len() == 0 {
		t.Error("expected a validation error on stderr")
	}
	if f.called("git worktree add") {
		t.Error("invalid branch must not reach git")
	}
}

func TestWorktreeRemove(t *testing.T) {
	env, f, stdout, _ := testEnv(t)
	app := BuildApp(env)
	if code := app.Execute([]string{"worktree", "remove", "feature", "--force"}); code != 0 {
		t.Fatalf("exit = %d", code)
	}
	want := filepath.Join(env.WorkDir, "feature")
	if !f.called("git worktree remove --force " + want) {
		t.Errorf("calls = %v", f.calls)
	}
	if !strings.Contains(stdout.String(), "removed worktree for feature") {
		t.Errorf("stdout = %q", stdout.String())
	}
}

func TestWorktreeList(t *testing.T) {
	env, f, stdout, _ := testEnv(t)
	f.responses["git worktree list --porcelain"] = execx.Result{
		Stdout: "worktree " + filepath.Join(env.WorkDir, ".bare") + "\nbare\n\n" +
			"worktree " + filepath.Join(env.WorkDir, "develop") + "\nHEAD abc\nbranch refs/heads/develop\nlocked\n\n",
	}

	app := BuildApp(env)
	if code := app.Execute([]string{"worktree", "list"}); code != 0 {
		t.Fatalf("exit = %d", code)
	}
	out := stdout.String()
	if !strings.Contains(out, "develop") || !strings.Contains(out, "locked") {
		t.Errorf("stdout = %q", out)
	}
	if strings.Contains(out, ".bare") {
		t.Errorf("administrative entry must be hidden: %q", out)
	}
}

func TestWorktreePrune(t *testing.T) {
	env, f, _, _ := testEnv(t)
	app := BuildApp(env)
	if code := app.Execute([]string{"worktree", "prune"}); code != 0 {
		t.Fatalf("exit = %d", code)
	}
	if !f.called("git worktree prune") {
		t.Errorf("calls = %v", f.calls)
	}
}
