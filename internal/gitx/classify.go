// pattern: Imperative Shell

package gitx

import (
	"context"
	"os"
	"path/filepath"
	"strings"
)

// StateKind enumerates what a directory currently is.
type StateKind int

const (
	StateEmpty StateKind = iota
	StateNonGit
	StatePlainRepo
	StateWorktreeContainer
	StateWorktreeMember
)

func (k StateKind) String() string {
	switch k {
	case StateEmpty:
		return "empty"
	case StateNonGit:
		return "non-git"
	case StatePlainRepo:
		return "plain-repo"
	case StateWorktreeContainer:
		return "worktree-container"
	case StateWorktreeMember:
		return "worktree-member"
	default:
		return "unknown"
	}
}

// DirectoryState is the classifier's verdict. Branch is set for PlainRepo
// and WorktreeMember only. Computed fresh on every call, never cached.
type DirectoryState struct {
	Kind   StateKind
	Branch string
}

// Classify inspects path and reports its state. It never returns an error:
// any underlying git failure degrades to the most conservative answer
// (NonGit for a non-empty directory, Empty otherwise).
func (g *Git) Classify(ctx context.Context, path string) DirectoryState {
	entries, err := os.ReadDir(path)
	if err != nil || len(entries) == 0 {
		return DirectoryState{Kind: StateEmpty}
	}

	if !g.IsInsideWorkTree(ctx, path) {
		return DirectoryState{Kind: StateNonGit}
	}

	commonDir, ok := g.CommonDir(ctx, path)
	if !ok {
		g.log.Debug("classification degraded: git-common-dir query failed", "path", path)
		return DirectoryState{Kind: StateNonGit}
	}

	branch := g.CurrentBranch(ctx, path)

	if filepath.Base(commonDir) != BareDirName {
		return DirectoryState{Kind: StatePlainRepo, Branch: branch}
	}

	// Administrative layout. The container root carries the .git pointer
	// file aimed directly at ./.bare; registered worktrees point deeper,
	// into .bare/worktrees/<name>.
	if isContainerRoot(path) {
		return DirectoryState{Kind: StateWorktreeContainer}
	}
	return DirectoryState{Kind: StateWorktreeMember, Branch: branch}
}

// isContainerRoot reports whether path holds the administrative pointer file
// aimed at its own .bare store.
func isContainerRoot(path string) bool {
	info, err := os.Lstat(filepath.Join(path, ".git"))
	if err != nil || info.IsDir() {
		return false
	}
	data, err := os.ReadFile(filepath.Join(path, ".git"))
	if err != nil {
		return false
	}
	target := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(string(data)), "gitdir:"))
	return target == "./"+BareDirName || target == BareDirName
}
