// pattern: Functional Core

// Package instance models the assistant processes themselves: one supervisor
// coordinating any number of branch-bound children, a registry that enforces
// the single-supervisor rule, and the line-delimited JSON message protocol
// spoken over each instance's stdio.
package instance

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"cgwt/internal/logging"
	"cgwt/internal/process"
)

// Role distinguishes the coordinating instance from branch workers.
type Role string

const (
	RoleSupervisor Role = "supervisor"
	RoleChild      Role = "child"
)

// Status is the coarse lifecycle of an instance.
type Status string

const (
	StatusIdle   Status = "idle"   // created or exited cleanly
	StatusActive Status = "active" // process running
	StatusError  Status = "error"  // process exited with a failure
)

var (
	ErrAlreadyRunning = errors.New("instance already running")
	ErrNotRunning     = errors.New("instance not running")
)

// Environment variable names exported into every assistant process so the
// assistant (and any hooks it runs) can tell which instance it is.
const (
	EnvRole       = "CGWT_ROLE"
	EnvInstanceID = "CGWT_INSTANCE_ID"
	EnvBranch     = "CGWT_BRANCH"
	EnvParentID   = "CGWT_PARENT_ID"
)

// Options describes an instance to create.
type Options struct {
	Role        Role
	Branch      string // pseudo-branch "supervisor" for the supervisor
	WorkDir     string
	ParentID    string // supervisor instance ID; required for children
	Binary      string
	Args        []string
	Interactive bool
	StopGrace   time.Duration
	Log         *logging.ScopedLogger
}

// Instance is one assistant process plus its identity and message stream.
type Instance struct {
	id       string
	role     Role
	branch   string
	workDir  string
	parentID string
	cfg      Options
	log      *logging.ScopedLogger

	mu       sync.Mutex
	status   Status
	handle   *process.Handle
	events   chan Event
	children map[string]string // child ID -> workdir, supervisor only
}

// New validates the options and returns an idle instance with a fresh ID.
// Children must name their supervisor; the supervisor must not.
func New(opts Options) (*Instance, error) {
	switch opts.Role {
	case RoleSupervisor:
		if opts.ParentID != "" {
			return nil, fmt.Errorf("supervisor instance must not have a parent")
		}
	case RoleChild:
		if opts.ParentID == "" {
			return nil, fmt.Errorf("child instance requires a parent ID")
		}
		if opts.Branch == "" {
			return nil, fmt.Errorf("child instance requires a branch")
		}
	default:
		return nil, fmt.Errorf("unknown role %q", opts.Role)
	}
	if opts.Binary == "" {
		return nil, fmt.Errorf("instance requires an assistant binary")
	}
	log := opts.Log
	if log == nil {
		log = logging.NopLogger()
	}

	inst := &Instance{
		id:       uuid.NewString(),
		role:     opts.Role,
		branch:   opts.Branch,
		workDir:  opts.WorkDir,
		parentID: opts.ParentID,
		cfg:      opts,
		log:      log,
		status:   StatusIdle,
	}
	if opts.Role == RoleSupervisor {
		inst.branch = "supervisor"
		inst.children = make(map[string]string)
	}
	return inst, nil
}

func (i *Instance) ID() string       { return i.id }
func (i *Instance) Role() Role       { return i.role }
func (i *Instance) Branch() string   { return i.branch }
func (i *Instance) WorkDir() string  { return i.workDir }
func (i *Instance) ParentID() string { return i.parentID }

// Status returns the current lifecycle state.
func (i *Instance) Status() Status {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.status
}

// Start launches the assistant process with the instance identity exported
// in its environment, and begins streaming its output as Events. Starting an
// already-active instance fails.
func (i *Instance) Start() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.status == StatusActive {
		return ErrAlreadyRunning
	}

	env := []string{
		EnvRole + "=" + string(i.role),
		EnvInstanceID + "=" + i.id,
		EnvBranch + "=" + i.branch,
	}
	if i.parentID != "" {
		env = append(env, EnvParentID+"="+i.parentID)
	}

	h := process.New(process.Config{
		Binary:      i.cfg.Binary,
		Args:        i.cfg.Args,
		Dir:         i.workDir,
		Env:         env,
		Interactive: i.cfg.Interactive,
		StopGrace:   i.cfg.StopGrace,
	}, i.log)
	if err := h.Start(); err != nil {
		i.status = StatusError
		return err
	}

	out, err := h.Output()
	if err != nil {
		_ = h.Stop()
		i.status = StatusError
		return err
	}

	i.handle = h
	i.status = StatusActive
	i.events = make(chan Event)
	go i.readLoop(out, i.events)
	go i.reap(h)

	i.log.Info("instance started", "id", i.id, "role", i.role, "branch", i.branch)
	return nil
}

// reap waits for process exit and settles the final status: a clean exit
// returns the instance to idle, a failure marks it errored.
func (i *Instance) reap(h *process.Handle) {
	<-h.Done()
	i.mu.Lock()
	defer i.mu.Unlock()
	if h != i.handle {
		return // a later Start superseded this handle
	}
	if err := h.WaitErr(); err != nil {
		i.status = StatusError
		i.log.Warn("instance exited with error", "id", i.id, "error", err)
	} else {
		i.status = StatusIdle
		i.log.Info("instance exited", "id", i.id)
	}
	i.handle = nil
}

// Stop terminates the process with the two-phase signal sequence. Stopping
// an instance that is not running is a no-op.
func (i *Instance) Stop() error {
	i.mu.Lock()
	h := i.handle
	i.mu.Unlock()
	if h == nil {
		return nil
	}
	return h.Stop()
}

// Accepting reports whether the instance can currently receive input.
func (i *Instance) Accepting() bool {
	return i.Status() == StatusActive
}

// SendMessage writes one protocol message as a JSON line to the instance's
// stdin.
func (i *Instance) SendMessage(msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	return i.SendRaw(string(data))
}

// SendRaw writes one raw line to the instance's stdin.
func (i *Instance) SendRaw(line string) error {
	i.mu.Lock()
	h := i.handle
	active := i.status == StatusActive
	i.mu.Unlock()
	if !active || h == nil {
		return ErrNotRunning
	}
	stdin, err := h.Stdin()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdin, line)
	return err
}

// Events returns the instance's output stream. The channel is created by
// Start and closed when the process output ends; before Start it is nil.
func (i *Instance) Events() <-chan Event {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.events
}

// RegisterChild records a child under the supervisor. Only the supervisor
// tracks children.
func (i *Instance) RegisterChild(id, workDir string) error {
	if i.role != RoleSupervisor {
		return fmt.Errorf("instance %s is not a supervisor", i.id)
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	i.children[id] = workDir
	return nil
}

// UnregisterChild forgets a child. Unknown IDs are ignored.
func (i *Instance) UnregisterChild(id string) {
	if i.role != RoleSupervisor {
		return
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	delete(i.children, id)
}

// Children returns a copy of the supervisor's child map.
func (i *Instance) Children() map[string]string {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := make(map[string]string, len(i.children))
	for k, v := range i.children {
		out[k] = v
	}
	return out
}
