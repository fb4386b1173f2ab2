// pattern: Imperative Shell

// Package discovery scans configured directories for repositories this tool
// can manage: worktree containers it already owns, and plain repositories
// that are candidates for conversion.
package discovery

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"cgwt/internal/gitx"
	"cgwt/internal/logging"
	"cgwt/internal/worktree"
)

// Scanner discovers projects in configured scan paths.
type Scanner struct {
	git *gitx.Git
	log *logging.ScopedLogger
}

// NewScanner creates a scanner classifying directories through git.
func NewScanner(git *gitx.Git, log *logging.ScopedLogger) *Scanner {
	if log == nil {
		log = logging.NopLogger()
	}
	return &Scanner{git: git, log: log}
}

// ScanAll walks every scan path one level deep and returns the repositories
// found, containers first, each group sorted by name. Inaccessible paths
// and unclassifiable directories are skipped, never fatal.
func (s *Scanner) ScanAll(ctx context.Context, paths []string) []Project {
	var projects []Project
	seen := make(map[string]bool)

	for _, scanPath := range paths {
		entries, err := os.ReadDir(scanPath)
		if err != nil {
			s.log.Debug("scan path skipped", "path", scanPath, "error", err)
			continue
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			path := filepath.Join(scanPath, entry.Name())
			if resolved, err := filepath.EvalSymlinks(path); err == nil {
				path = resolved
			}
			if seen[path] {
				continue
			}
			seen[path] = true

			if p, ok := s.inspect(ctx, entry.Name(), path); ok {
				projects = append(projects, p)
			}
		}
	}

	sort.Slice(projects, func(a, b int) bool {
		if projects[a].IsContainer() != projects[b].IsContainer() {
			return projects[a].IsContainer()
		}
		return projects[a].Name < projects[b].Name
	})
	return projects
}

// inspect classifies one directory and, for containers, gathers the member
// branches.
func (s *Scanner) inspect(ctx context.Context, name, path string) (Project, bool) {
	state := s.git.Classify(ctx, path)
	switch state.Kind {
	case gitx.StateWorktreeContainer:
		return Project{
			Name:     name,
			Path:     path,
			Kind:     state.Kind,
			Branches: s.memberBranches(ctx, path),
		}, true
	case gitx.StatePlainRepo:
		return Project{Name: name, Path: path, Kind: state.Kind}, true
	default:
		return Project{}, false
	}
}

func (s *Scanner) memberBranches(ctx context.Context, path string) []string {
	trees := worktree.NewManager(path, s.git, s.log)
	entries, err := trees.List(ctx)
	if err != nil {
		s.log.Debug("worktree listing failed during scan", "path", path, "error", err)
		return nil
	}
	var branches []string
	for _, e := range entries {
		if e.Branch != "" {
			branches = append(branches, e.Branch)
		}
	}
	sort.Strings(branches)
	return branches
}
