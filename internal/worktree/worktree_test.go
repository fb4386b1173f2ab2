package worktree

import (
	"context"
	"strings"
	"testing"

	"cgwt/internal/execx"
	"cgwt/internal/gitx"
)

// recordingRunner captures every git invocation and replies from a canned
// response table keyed by the joined arguments.
type recordingRunner struct {
	responses map[string]execx.Result
	calls     []string
}

func (r *recordingRunner) run(_ context.Context, _, _ string, args ...string) (execx.Result, error) {
	key := strings.Join(args, " ")
	r.calls = append(r.calls, key)
	if res, ok := r.responses[key]; ok {
		return res, nil
	}
	return execx.Result{ExitCode: 1, Stderr: "fatal: unexpected command"}, nil
}

func (r *recordingRunner) called(prefix string) bool {
	for _, c := range r.calls {
		if strings.HasPrefix(c, prefix) {
			return true
		}
	}
	return false
}

func newTestManager(responses map[string]execx.Result) (*Manager, *recordingRunner) {
	r := &recordingRunner{responses: responses}
	git := gitx.New(r.run, nil)
	return NewManager("/repos/myapp", git, nil), r
}

func TestListFiltersAdministrativeEntry(t *testing.T) {
	m, _ := newTestManager(map[string]execx.Result{
		"worktree list --porcelain": {Stdout: "worktree /repos/myapp/.bare\nbare\n\n" +
			"worktree /repos/myapp/main\nHEAD aaa\nbranch refs/heads/main\n\n" +
			"worktree /repos/myapp/develop\nHEAD bbb\nbranch refs/heads/develop\n"},
	})

	entries, err := m.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len = %d, want 2 (bare excluded)", len(entries))
	}
	for _, e := range entries {
		if e.IsBare {
			t.Errorf("bare entry leaked: %+v", e)
		}
	}
}

func TestListCommandFailure(t *testing.T) {
	m, _ := newTestManager(nil)
	_, err := m.List(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "git worktree") {
		t.Errorf("error = %v, want git worktree operation named", err)
	}
}

func TestAddWithExplicitBase(t *testing.T) {
	m, r := newTestManager(map[string]execx.Result{
		"worktree add -b feature /repos/myapp/feature develop": {},
	})
	path, err := m.Add(context.Background(), "feature", "develop")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if path != "/repos/myapp/feature" {
		t.Errorf("path = %q", path)
	}
	if !r.called("worktree add -b feature") {
		t.Errorf("calls = %v", r.calls)
	}
}

func TestAddExistingLocalBranch(t *testing.T) {
	m, r := newTestManager(map[string]execx.Result{
		"show-ref --verify --quiet refs/heads/develop": {},
		"worktree add /repos/myapp/develop develop":    {},
	})
	if _, err := m.Add(context.Background(), "develop", ""); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if !r.called("worktree add /repos/myapp/develop develop") {
		t.Errorf("expected plain checkout of local branch, calls = %v", r.calls)
	}
}

func TestAddRemoteTrackingBranch(t *testing.T) {
	m, r := newTestManager(map[string]execx.Result{
		"show-ref --verify --quiet refs/remotes/origin/hotfix":          {},
		"worktree add --track -b hotfix /repos/myapp/hotfix origin/hotfix": {},
	})
	if _, err := m.Add(context.Background(), "hotfix", ""); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if !r.called("worktree add --track -b hotfix") {
		t.Errorf("expected tracking branch creation, calls = %v", r.calls)
	}
}

func TestAddBrandNewBranch(t *testing.T) {
	m, r := newTestManager(map[string]execx.Result{
		"worktree add -b fresh /repos/myapp/fresh": {},
	})
	if _, err := m.Add(context.Background(), "fresh", ""); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if !r.called("worktree add -b fresh /repos/myapp/fresh") {
		t.Errorf("expected brand-new branch from HEAD, calls = %v", r.calls)
	}
}

func TestAddRejectsInvalidBranchBeforeGit(t *testing.T) {
	m, r := newTestManager(nil)
	_, err := m.Add(context.Background(), "bad..name", "")
	if err == nil {
		t.Fatal("expected validation error")
	}
	if len(r.calls) != 0 {
		t.Errorf("git was invoked for an invalid branch name: %v", r.calls)
	}
}

func TestRemoveByBranchName(t *testing.T) {
	m, r := newTestManager(map[string]execx.Result{
		"worktree remove /repos/myapp/feature": {},
	})
	if err := m.Remove(context.Background(), "feature", false); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if !r.called("worktree remove /repos/myapp/feature") {
		t.Errorf("calls = %v", r.calls)
	}
}

func TestRemoveByAbsolutePathForced(t *testing.T) {
	m, r := newTestManager(map[string]execx.Result{
		"worktree remove --force /elsewhere/feature": {},
	})
	if err := m.Remove(context.Background(), "/elsewhere/feature", true); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if !r.called("worktree remove --force /elsewhere/feature") {
		t.Errorf("calls = %v", r.calls)
	}
}

func TestPrune(t *testing.T) {
	m, r := newTestManager(map[string]execx.Result{
		"worktree prune": {},
	})
	if err := m.Prune(context.Background()); err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if !r.called("worktree prune") {
		t.Errorf("calls = %v", r.calls)
	}
}
