// pattern: Functional Core

package instance

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/multierr"

	"cgwt/internal/logging"
)

var (
	ErrDuplicateInstance = errors.New("instance already registered")
	ErrSupervisorExists  = errors.New("a supervisor instance is already registered")
)

// Registry tracks live instances and enforces that at most one of them is
// the supervisor.
type Registry struct {
	log *logging.ScopedLogger

	mu           sync.Mutex
	instances    map[string]*Instance
	supervisorID string
}

// NewRegistry returns an empty registry.
func NewRegistry(log *logging.ScopedLogger) *Registry {
	if log == nil {
		log = logging.NopLogger()
	}
	return &Registry{log: log, instances: make(map[string]*Instance)}
}

// Register adds an instance. A duplicate ID or a second supervisor is
// rejected.
func (r *Registry) Register(inst *Instance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.instances[inst.ID()]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateInstance, inst.ID())
	}
	if inst.Role() == RoleSupervisor {
		if r.supervisorID != "" {
			return fmt.Errorf("%w: %s", ErrSupervisorExists, r.supervisorID)
		}
		r.supervisorID = inst.ID()
	}
	r.instances[inst.ID()] = inst
	r.log.Debug("instance registered", "id", inst.ID(), "role", inst.Role(), "branch", inst.Branch())
	return nil
}

// Unregister removes an instance by ID. Unknown IDs are ignored.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.instances[id]; !ok {
		return
	}
	delete(r.instances, id)
	if r.supervisorID == id {
		r.supervisorID = ""
	}
	r.log.Debug("instance unregistered", "id", id)
}

// Get returns the instance with the given ID.
func (r *Registry) Get(id string) (*Instance, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inst, ok := r.instances[id]
	return inst, ok
}

// Supervisor returns the registered supervisor, if any.
func (r *Registry) Supervisor() (*Instance, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.supervisorID == "" {
		return nil, false
	}
	inst, ok := r.instances[r.supervisorID]
	return inst, ok
}

// ByBranch returns the child instance bound to the given branch.
func (r *Registry) ByBranch(branch string) (*Instance, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, inst := range r.instances {
		if inst.Role() == RoleChild && inst.Branch() == branch {
			return inst, true
		}
	}
	return nil, false
}

// Children returns child instances sorted by branch for stable display.
func (r *Registry) Children() []*Instance {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Instance
	for _, inst := range r.instances {
		if inst.Role() == RoleChild {
			out = append(out, inst)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Branch() < out[b].Branch() })
	return out
}

// Len returns the number of registered instances.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.instances)
}

// Clear stops every instance and empties the registry. Stop failures are
// aggregated; the registry is emptied regardless.
func (r *Registry) Clear() error {
	r.mu.Lock()
	instances := make([]*Instance, 0, len(r.instances))
	for _, inst := range r.instances {
		instances = append(instances, inst)
	}
	r.instances = make(map[string]*Instance)
	r.supervisorID = ""
	r.mu.Unlock()

	var errs error
	for _, inst := range instances {
		if err := inst.Stop(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("stop %s: %w", inst.ID(), err))
		}
	}
	return errs
}
