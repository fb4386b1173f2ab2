// pattern: Functional Core

package tmux

import (
	"bufio"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// listFormat is the machine-readable format handed to `list-sessions -F`.
// Tab-separated so session names containing no tabs (enforced at creation)
// parse unambiguously.
const listFormat = "#{session_name}\t#{session_windows}\t#{session_created}\t#{session_attached}"

// ParseSessions parses `list-sessions -F listFormat` output. Malformed lines
// are skipped rather than failing the whole listing.
func ParseSessions(output string) []SessionInfo {
	var sessions []SessionInfo

	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if s, ok := parseSessionLine(line); ok {
			sessions = append(sessions, s)
		}
	}
	return sessions
}

func parseSessionLine(line string) (SessionInfo, bool) {
	fields := strings.Split(line, "\t")
	if len(fields) < 4 || fields[0] == "" {
		return SessionInfo{}, false
	}

	s := SessionInfo{Name: fields[0]}
	if n, err := strconv.Atoi(fields[1]); err == nil {
		s.Windows = n
	}
	if epoch, err := strconv.ParseInt(fields[2], 10, 64); err == nil {
		s.CreatedAt = time.Unix(epoch, 0)
	}
	s.Attached = fields[3] != "0" && fields[3] != ""
	return s, true
}

// AnyPaneRuns reports whether any line of `list-panes -F
// #{pane_current_command}` output names the given process. Matching is by
// basename so both "claude" and "/usr/local/bin/claude" count.
//
// This is a best-effort heuristic: a renamed or shell-wrapped binary
// defeats it. A handshake on a known channel would be more reliable, but
// the pane command is what tmux can tell us without cooperation from the
// assistant.
func AnyPaneRuns(output, process string) bool {
	want := filepath.Base(process)
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		if filepath.Base(strings.TrimSpace(scanner.Text())) == want {
			return true
		}
	}
	return false
}
