// pattern: Functional Core

package tmux

import (
	"time"

	"cgwt/internal/naming"
)

// Descriptor is everything needed to create a session. Descriptors are
// value objects: changing role or directory means building a new descriptor,
// which yields a new session name.
type Descriptor struct {
	RepoName   string
	Branch     string // ignored for the supervisor
	WorkDir    string
	Supervisor bool
	Env        map[string]string // extra environment set on the session
}

// Name derives the session name for this descriptor. The derivation is the
// single naming rule shared by every component (see package naming).
func (d Descriptor) Name() string {
	if d.Supervisor {
		return naming.SupervisorSessionName(d.RepoName)
	}
	return naming.SessionName(d.RepoName, d.Branch)
}

// SessionInfo is the observed runtime state of one session. It is recomputed
// on every query and never cached beyond the caller's use.
type SessionInfo struct {
	Name             string
	Windows          int
	CreatedAt        time.Time
	Attached         bool
	AssistantRunning bool
}

// Branch recovers the branch component from the session name, falling back
// to the raw name for sessions that predate the canonical form.
func (s SessionInfo) Branch() string {
	if p, ok := naming.ParseSessionName(s.Name); ok {
		return p.Branch
	}
	return s.Name
}

// IsSupervisor reports whether this is the coordinating session.
func (s SessionInfo) IsSupervisor() bool {
	return s.Branch() == naming.SupervisorBranch
}
