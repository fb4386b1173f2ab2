// pattern: Imperative Shell

package worktree

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"cgwt/internal/gitx"
	"cgwt/internal/logging"
)

// convertStageSuffix names the sibling bare store while a conversion is in
// flight. It only reaches its final .bare location once every prior step has
// succeeded.
const convertStageSuffix = ".bare.converting"

// gitBackupName is where the original .git directory sits during conversion.
// It is deleted last, so any earlier failure leaves the repository restorable.
const gitBackupName = ".git.backup"

// Bootstrapper initializes or converts a directory into the administrative
// worktree-container layout: a .bare store plus a .git pointer file.
type Bootstrapper struct {
	basePath string
	git      *gitx.Git
	log      *logging.ScopedLogger
}

// NewBootstrapper binds a Bootstrapper to the container base path.
func NewBootstrapper(basePath string, git *gitx.Git, log *logging.ScopedLogger) *Bootstrapper {
	if log == nil {
		log = logging.NopLogger()
	}
	return &Bootstrapper{basePath: basePath, git: git, log: log}
}

// InitContainer creates the administrative layout under the base path and
// returns the default branch. With a remote URL the bare store is cloned and
// the remote's default branch detected; without one an empty store is
// initialized and seeded with a first commit so worktrees have a HEAD to
// branch from.
func (b *Bootstrapper) InitContainer(ctx context.Context, remoteURL string) (string, error) {
	bareDir := filepath.Join(b.basePath, gitx.BareDirName)

	if remoteURL != "" {
		if _, err := b.git.Run(ctx, b.basePath, "clone", "--bare", remoteURL, bareDir); err != nil {
			return "", err
		}
		// Bare clones omit the fetch refspec; without it remote tracking
		// refs never update and the add-worktree remote branch path breaks.
		if _, err := b.git.Run(ctx, bareDir, "config",
			"remote.origin.fetch", "+refs/heads/*:refs/remotes/origin/*"); err != nil {
			return "", err
		}
		if _, err := b.git.Run(ctx, bareDir, "fetch", "origin"); err != nil {
			b.log.Warn("initial fetch failed, tracking refs may be stale", "error", err)
		}
		if _, err := b.git.Run(ctx, bareDir, "config", "core.bare", "false"); err != nil {
			return "", err
		}
		if err := b.writePointer(); err != nil {
			return "", err
		}
		branch := b.git.DefaultBranch(ctx, bareDir)
		b.log.Info("container initialized from remote", "url", remoteURL, "default_branch", branch)
		return branch, nil
	}

	if _, err := b.git.Run(ctx, b.basePath, "init", "-b", "main",
		"--separate-git-dir", bareDir, b.basePath); err != nil {
		return "", err
	}
	// git init --separate-git-dir writes an absolute pointer; replace it with
	// the relative form so the container survives being moved.
	if err := b.writePointer(); err != nil {
		return "", err
	}

	readme := filepath.Join(b.basePath, "README.md")
	if _, err := os.Stat(readme); os.IsNotExist(err) {
		content := "# " + filepath.Base(b.basePath) + "\n\nManaged by cgwt. Branch worktrees live in subdirectories.\n"
		if err := os.WriteFile(readme, []byte(content), 0o644); err != nil {
			return "", err
		}
	}
	if _, err := b.git.Run(ctx, b.basePath, "add", "README.md"); err != nil {
		return "", err
	}
	if _, err := b.git.Run(ctx, b.basePath, "-c", "user.name=cgwt", "-c", "user.email=cgwt@localhost",
		"commit", "-m", "Initial commit"); err != nil {
		return "", err
	}
	b.log.Info("container initialized", "path", b.basePath, "default_branch", "main")
	return "main", nil
}

// CanConvert reports whether the repository at the base path can be
// converted in place, reproducing Convert's refusal rules without mutating
// anything.
func (b *Bootstrapper) CanConvert(ctx context.Context) (bool, string) {
	state := b.git.Classify(ctx, b.basePath)
	switch state.Kind {
	case gitx.StateWorktreeContainer, gitx.StateWorktreeMember:
		return false, "already a worktree container"
	case gitx.StatePlainRepo:
		// Convertible, subject to the checks below.
	default:
		return false, "not a git repository"
	}

	dirty, err := b.git.IsDirty(ctx, b.basePath)
	if err != nil {
		return false, fmt.Sprintf("cannot inspect working tree: %v", err)
	}
	if dirty {
		return false, "working tree has uncommitted changes; commit or stash them first"
	}
	if b.git.HasSubmodules(ctx, b.basePath) {
		return false, "repository contains submodules, which worktree containers do not support"
	}
	return true, ""
}

// Convert turns an ordinary repository into the administrative layout in
// place. Every step before the final promotion is reversible: the original
// .git directory survives as a backup that is only deleted once the whole
// sequence has succeeded.
func (b *Bootstrapper) Convert(ctx context.Context) (string, error) {
	if ok, reason := b.CanConvert(ctx); !ok {
		return "", fmt.Errorf("cannot convert: %s", reason)
	}

	branch := b.git.CurrentBranch(ctx, b.basePath)
	if branch == "" {
		branch = b.git.DefaultBranch(ctx, b.basePath)
	}

	staging := filepath.Join(b.basePath, convertStageSuffix)
	backup := filepath.Join(b.basePath, gitBackupName)
	bareDir := filepath.Join(b.basePath, gitx.BareDirName)
	origGit := filepath.Join(b.basePath, ".git")

	cleanup := func() { _ = os.RemoveAll(staging) }

	if _, err := b.git.Run(ctx, b.basePath, "init", "--bare", staging); err != nil {
		cleanup()
		return "", err
	}
	if _, err := b.git.Run(ctx, staging, "fetch", "--tags", b.basePath,
		"+refs/heads/*:refs/heads/*"); err != nil {
		cleanup()
		return "", err
	}
	if _, err := b.git.Run(ctx, staging, "symbolic-ref", "HEAD", "refs/heads/"+branch); err != nil {
		cleanup()
		return "", err
	}
	if _, err := b.git.Run(ctx, staging, "config", "core.bare", "false"); err != nil {
		cleanup()
		return "", err
	}

	if err := os.Rename(origGit, backup); err != nil {
		cleanup()
		return "", fmt.Errorf("relocating .git: %w", err)
	}

	restore := func() {
		_ = os.Remove(origGit)
		_ = os.Rename(backup, origGit)
		cleanup()
	}

	if err := b.writePointer(); err != nil {
		restore()
		return "", err
	}
	if err := os.Rename(staging, bareDir); err != nil {
		restore()
		return "", fmt.Errorf("promoting bare store: %w", err)
	}
	// Reattach the existing checkout to the new store so the working tree
	// stays exactly as the user left it.
	if _, err := b.git.Run(ctx, b.basePath, "reset", "--mixed", branch); err != nil {
		b.log.Warn("index reset after conversion failed", "error", err)
	}

	// Point of no return passed: every step succeeded, drop the backup.
	if err := os.RemoveAll(backup); err != nil {
		b.log.Warn("could not remove .git backup", "path", backup, "error", err)
	}

	b.log.Info("repository converted to worktree container", "path", b.basePath, "branch", branch)
	return branch, nil
}

// writePointer writes the .git pointer file designating ./.bare as the real
// git directory for the base path.
func (b *Bootstrapper) writePointer() error {
	return os.WriteFile(filepath.Join(b.basePath, ".git"), []byte(gitx.GitPointerContent), 0o644)
}
