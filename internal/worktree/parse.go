// pattern: Functional Core

package worktree

import (
	"bufio"
	"strings"
)

// Entry is one row of `git worktree list --porcelain` output.
type Entry struct {
	Path       string // absolute path, unique within one listing
	Head       string // commit sha, empty for an unborn branch
	Branch     string // branch name with refs/heads/ stripped; empty = detached
	IsBare     bool   // the administrative bare store entry
	IsLocked   bool
	IsPrunable bool
}

// ParsePorcelain parses the porcelain worktree listing: records separated by
// blank lines, each a sequence of "key value" lines plus bare flag lines.
// Unknown lines are ignored so newer git versions parse cleanly. An empty
// input yields nil, never an error.
func ParsePorcelain(text string) []Entry {
	var entries []Entry
	var cur *Entry

	flush := func() {
		if cur != nil && cur.Path != "" {
			entries = append(entries, *cur)
		}
		cur = nil
	}

	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}

		key, value, _ := strings.Cut(line, " ")
		switch key {
		case "worktree":
			flush()
			cur = &Entry{Path: value}
		case "HEAD":
			if cur != nil {
				cur.Head = value
			}
		case "branch":
			if cur != nil {
				cur.Branch = strings.TrimPrefix(value, "refs/heads/")
			}
		case "bare":
			if cur != nil {
				cur.IsBare = true
			}
		case "locked":
			if cur != nil {
				cur.IsLocked = true
			}
		case "prunable":
			if cur != nil {
				cur.IsPrunable = true
			}
		case "detached":
			// HEAD is detached; Branch stays empty.
		default:
			// Unknown field from a newer git: skip.
		}
	}
	flush()
	return entries
}
