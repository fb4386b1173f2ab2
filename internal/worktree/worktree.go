// pattern: Imperative Shell

// Package worktree maps branches to isolated working directories under a
// container base path, and bootstraps the bare-store container layout.
package worktree

import (
	"context"
	"path/filepath"

	"cgwt/internal/gitx"
	"cgwt/internal/logging"
	"cgwt/internal/naming"
)

// Manager creates, lists and removes git worktrees under a fixed base path.
type Manager struct {
	basePath string
	git      *gitx.Git
	log      *logging.ScopedLogger
}

// NewManager binds a Manager to the container base path.
func NewManager(basePath string, git *gitx.Git, log *logging.ScopedLogger) *Manager {
	if log == nil {
		log = logging.NopLogger()
	}
	return &Manager{basePath: basePath, git: git, log: log}
}

// BasePath returns the container root the manager operates under.
func (m *Manager) BasePath() string { return m.basePath }

// PathFor returns the directory a branch's worktree occupies.
func (m *Manager) PathFor(branch string) string {
	return filepath.Join(m.basePath, branch)
}

// List returns the current worktrees, excluding the administrative bare
// entry and the container root itself. The set is rebuilt from scratch on
// every call.
func (m *Manager) List(ctx context.Context) ([]Entry, error) {
	out, err := m.git.Run(ctx, m.basePath, "worktree", "list", "--porcelain")
	if err != nil {
		return nil, err
	}

	all := ParsePorcelain(out)
	entries := make([]Entry, 0, len(all))
	for _, e := range all {
		if e.IsBare || filepath.Base(e.Path) == gitx.BareDirName || e.Path == m.basePath {
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Add creates a worktree for branch at basePath/branch and returns its path.
//
// Branch resolution, in order:
//   - base given: new branch starting at base
//   - branch exists locally: check out the existing branch
//   - branch exists as an origin tracking ref: new local branch tracking it
//   - otherwise: brand-new branch from the current HEAD
func (m *Manager) Add(ctx context.Context, branch, base string) (string, error) {
	if err := naming.ValidateBranch(branch); err != nil {
		return "", err
	}

	path := m.PathFor(branch)
	var args []string
	switch {
	case base != "":
		args = []string{"worktree", "add", "-b", branch, path, base}
	case m.git.BranchExistsLocal(ctx, m.basePath, branch):
		args = []string{"worktree", "add", path, branch}
	case m.git.BranchExistsRemote(ctx, m.basePath, branch):
		args = []string{"worktree", "add", "--track", "-b", branch, path, "origin/" + branch}
	default:
		args = []string{"worktree", "add", "-b", branch, path}
	}

	if _, err := m.git.Run(ctx, m.basePath, args...); err != nil {
		return "", err
	}
	m.log.Info("worktree added", "branch", branch, "path", path)
	return path, nil
}

// Remove deletes a worktree. The target may be a bare branch name (resolved
// under the base path) or an absolute path. Force removes even a dirty tree.
func (m *Manager) Remove(ctx context.Context, branchOrPath string, force bool) error {
	path := branchOrPath
	if !filepath.IsAbs(path) {
		path = m.PathFor(branchOrPath)
	}

	args := []string{"worktree", "remove"}
	if force {
		args = append(args, "--force")
	}
	args = append(args, path)

	if _, err := m.git.Run(ctx, m.basePath, args...); err != nil {
		return err
	}
	m.log.Info("worktree removed", "target", branchOrPath, "force", force)
	return nil
}

// Prune drops stale administrative records for worktrees whose directories
// are gone.
func (m *Manager) Prune(ctx context.Context) error {
	_, err := m.git.Run(ctx, m.basePath, "worktree", "prune")
	return err
}
