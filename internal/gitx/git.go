// pattern: Imperative Shell

// Package gitx wraps the git invocations cgwt needs: repository state
// classification and branch/ref queries. It shells out through an injected
// execx.Runner so tests never spawn git.
package gitx

import (
	"context"
	"fmt"
	"strings"

	"cgwt/internal/execx"
	"cgwt/internal/logging"
)

// BareDirName is the administrative bare store directory created under a
// worktree container root.
const BareDirName = ".bare"

// GitPointerContent is the exact content of the .git pointer file that makes
// a container root a git working tree backed by the bare store.
const GitPointerContent = "gitdir: ./" + BareDirName + "\n"

// GitError reports a failed git invocation, carrying the operation name and
// whatever git printed to stderr.
type GitError struct {
	Op     string
	Stderr string
	Err    error
}

func (e *GitError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("git %s: %s", e.Op, msg)
}

func (e *GitError) Unwrap() error { return e.Err }

// Git issues git commands in a fixed working directory context supplied per
// call.
type Git struct {
	run execx.Runner
	log *logging.ScopedLogger
}

// New creates a Git wrapper over the given runner.
func New(run execx.Runner, log *logging.ScopedLogger) *Git {
	if log == nil {
		log = logging.NopLogger()
	}
	return &Git{run: run, log: log}
}

// Run executes a git command and returns trimmed stdout. A non-zero exit is
// reported as a *GitError named after the subcommand.
func (g *Git) Run(ctx context.Context, dir string, args ...string) (string, error) {
	op := "git"
	if len(args) > 0 {
		op = args[0]
	}
	res, err := g.run(ctx, dir, "git", args...)
	if err != nil {
		return "", &GitError{Op: op, Stderr: res.Stderr, Err: err}
	}
	if res.ExitCode != 0 {
		return "", &GitError{Op: op, Stderr: res.Stderr,
			Err: fmt.Errorf("exit status %d", res.ExitCode)}
	}
	return strings.TrimSpace(res.Stdout), nil
}

// query is Run for commands where failure is an answer, not an error.
func (g *Git) query(ctx context.Context, dir string, args ...string) (string, bool) {
	res, err := g.run(ctx, dir, "git", args...)
	if err != nil || res.ExitCode != 0 {
		return "", false
	}
	return strings.TrimSpace(res.Stdout), true
}

// IsInsideWorkTree reports whether dir is inside a git working tree.
func (g *Git) IsInsideWorkTree(ctx context.Context, dir string) bool {
	out, ok := g.query(ctx, dir, "rev-parse", "--is-inside-work-tree")
	return ok && out == "true"
}

// CurrentBranch returns the checked-out branch, or "" for detached HEAD and
// on any failure.
func (g *Git) CurrentBranch(ctx context.Context, dir string) string {
	out, _ := g.query(ctx, dir, "branch", "--show-current")
	return out
}

// TopLevel returns the root of the working tree containing dir.
func (g *Git) TopLevel(ctx context.Context, dir string) (string, bool) {
	return g.query(ctx, dir, "rev-parse", "--show-toplevel")
}

// CommonDir returns the repository's common git directory as an absolute path.
func (g *Git) CommonDir(ctx context.Context, dir string) (string, bool) {
	return g.query(ctx, dir, "rev-parse", "--path-format=absolute", "--git-common-dir")
}

// BranchExistsLocal reports whether refs/heads/<branch> exists.
func (g *Git) BranchExistsLocal(ctx context.Context, dir, branch string) bool {
	_, ok := g.query(ctx, dir, "show-ref", "--verify", "--quiet", "refs/heads/"+branch)
	return ok
}

// BranchExistsRemote reports whether the origin tracking ref for branch exists.
func (g *Git) BranchExistsRemote(ctx context.Context, dir, branch string) bool {
	_, ok := g.query(ctx, dir, "show-ref", "--verify", "--quiet", "refs/remotes/origin/"+branch)
	return ok
}

// DefaultBranch resolves the repository's default branch from its symbolic
// HEAD, probing for master when the symref is unreadable and defaulting to
// main when neither signal is available.
func (g *Git) DefaultBranch(ctx context.Context, dir string) string {
	if out, ok := g.query(ctx, dir, "symbolic-ref", "--short", "HEAD"); ok && out != "" {
		return strings.TrimPrefix(out, "refs/heads/")
	}
	if g.BranchExistsLocal(ctx, dir, "master") {
		return "master"
	}
	return "main"
}

// IsDirty reports whether the working tree has uncommitted changes
// (staged, unstaged, or untracked).
func (g *Git) IsDirty(ctx context.Context, dir string) (bool, error) {
	out, err := g.Run(ctx, dir, "status", "--porcelain")
	if err != nil {
		return false, err
	}
	return out != "", nil
}

// HasSubmodules reports whether the repository registers any submodules.
func (g *Git) HasSubmodules(ctx context.Context, dir string) bool {
	out, ok := g.query(ctx, dir, "submodule", "status")
	return ok && out != ""
}
