// pattern: Functional Core

// Package naming derives tmux session names from repository and branch
// identifiers and validates branch names before they reach git.
package naming

import (
	"fmt"
	"strings"
)

// Prefix is the session name prefix shared by every component that creates
// or filters cgwt-managed tmux sessions.
const Prefix = "cgwt"

// SupervisorBranch is the pseudo-branch name used for the supervisor session.
const SupervisorBranch = "supervisor"

// Sanitize replaces every character outside [A-Za-z0-9_-] with '-',
// collapses runs of '-' into one, and strips leading/trailing '-'.
// It is total and idempotent: Sanitize(Sanitize(s)) == Sanitize(s).
func Sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	lastDash := false
	for _, r := range s {
		ok := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '_' || r == '-'
		if ok && r != '-' {
			b.WriteRune(r)
			lastDash = false
			continue
		}
		// '-' itself and every disallowed character both map to '-'.
		if !lastDash {
			b.WriteByte('-')
			lastDash = true
		}
	}
	return strings.Trim(b.String(), "-")
}

// SessionName derives the canonical tmux session name for a repo/branch pair:
// cgwt-{sanitize(repo)}-{sanitize(branch)}. The result never contains '/',
// ':', or whitespace, all of which make tmux targets ambiguous.
func SessionName(repo, branch string) string {
	return fmt.Sprintf("%s-%s-%s", Prefix, Sanitize(repo), Sanitize(branch))
}

// SupervisorSessionName derives the supervisor session name for a repo.
func SupervisorSessionName(repo string) string {
	return SessionName(repo, SupervisorBranch)
}

// Parsed holds the repo/branch components recovered from a session name.
type Parsed struct {
	Repo   string
	Branch string
}

// ParseSessionName recovers repo and branch from a cgwt session name.
// Canonical names are cgwt-<repo>-<branch>. Because '-' may appear inside
// sanitized repo names, the branch is taken as the final dash-separated
// segment and the repo as everything between the prefix and that segment.
// The legacy two-part form (<repo>-<branch> without the cgwt prefix) is
// still accepted when listing sessions created by older releases.
func ParseSessionName(name string) (Parsed, bool) {
	rest, canonical := strings.CutPrefix(name, Prefix+"-")
	if !canonical {
		rest = name
	}
	idx := strings.LastIndex(rest, "-")
	if idx <= 0 || idx == len(rest)-1 {
		return Parsed{}, false
	}
	return Parsed{Repo: rest[:idx], Branch: rest[idx+1:]}, true
}

// HasPrefix reports whether a session name belongs to this tool.
func HasPrefix(name string) bool {
	return strings.HasPrefix(name, Prefix+"-")
}

// HasRepoPrefix reports whether a session name belongs to this tool and the
// given repository. The flat naming scheme cannot distinguish repo "foo"
// with branch "bar-main" from repo "foo-bar" with branch "main", so a repo
// whose sanitized name is a dash-prefix of another repo also matches that
// repo's sessions.
func HasRepoPrefix(name, repo string) bool {
	return strings.HasPrefix(name, fmt.Sprintf("%s-%s-", Prefix, Sanitize(repo)))
}

// BranchInRepo recovers the sanitized branch component of a session name
// when the repository is known. Unlike ParseSessionName's last-dash
// heuristic, this handles branches whose sanitized form contains '-'
// (feature/login becomes feature-login). Returns false when the name does
// not carry the repo's prefix.
func BranchInRepo(name, repo string) (string, bool) {
	rest, ok := strings.CutPrefix(name, fmt.Sprintf("%s-%s-", Prefix, Sanitize(repo)))
	if !ok || rest == "" {
		return "", false
	}
	return rest, true
}

// ValidateBranch checks a branch name against the git ref-name rules we care
// about, without invoking git. Invalid names fail fast here so no external
// process is spawned for them.
func ValidateBranch(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("branch name cannot be empty")
	case len(name) > 255:
		return fmt.Errorf("branch name too long (max 255 characters)")
	case strings.Contains(name, ".."):
		return fmt.Errorf("branch name %q cannot contain '..'", name)
	case strings.HasPrefix(name, "."):
		return fmt.Errorf("branch name %q cannot start with '.'", name)
	case strings.HasPrefix(name, "/") || strings.HasSuffix(name, "/"):
		return fmt.Errorf("branch name %q cannot start or end with '/'", name)
	case strings.HasSuffix(name, ".lock"):
		return fmt.Errorf("branch name %q cannot end with '.lock'", name)
	case strings.HasPrefix(name, "-"):
		return fmt.Errorf("branch name %q cannot start with '-'", name)
	}
	for _, r := range name {
		if r < 0x20 || r == 0x7f {
			return fmt.Errorf("branch name %q contains a control character", name)
		}
		switch r {
		case ' ', '~', '^', ':', '?', '*', '[', '\\':
			return fmt.Errorf("branch name %q contains illegal character %q", name, r)
		}
	}
	return nil
}
