// pattern: Functional Core

package discovery

import "cgwt/internal/gitx"

// Project is a repository found during directory scanning.
type Project struct {
	Name     string         // directory name, used as display name
	Path     string         // absolute path to the repository root
	Kind     gitx.StateKind // WorktreeContainer or PlainRepo
	Branches []string       // member worktree branches, container projects only
}

// IsContainer reports whether the project already uses the administrative
// worktree layout.
func (p Project) IsContainer() bool { return p.Kind == gitx.StateWorktreeContainer }
