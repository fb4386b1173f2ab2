// pattern: Imperative Shell

// Package orchestrator drives the per-branch session lifecycle: ensure a
// session exists and hosts a live assistant, bring up every branch at once,
// switch the user between sessions, and tear everything down. It composes
// the tmux registry and the worktree manager; it never talks to git or tmux
// directly.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/multierr"

	"cgwt/internal/execx"
	"cgwt/internal/instance"
	"cgwt/internal/logging"
	"cgwt/internal/naming"
	"cgwt/internal/tmux"
	"cgwt/internal/worktree"
)

// TargetNotFoundError reports a switch target that resolved to nothing,
// carrying the valid targets for the error message.
type TargetNotFoundError struct {
	Target string
	Valid  []string
}

func (e *TargetNotFoundError) Error() string {
	return fmt.Sprintf("no session or worktree for %q (valid targets: %s)",
		e.Target, strings.Join(e.Valid, ", "))
}

// Config holds orchestrator construction parameters.
type Config struct {
	RepoName  string
	Assistant string // command line typed into a fresh session
	// Retry is applied to session queries only; creates rely on the
	// ErrSessionExists tolerance and sends are never repeated.
	Retry execx.RetryConfig
}

// Orchestrator owns the session lifecycle for one repository container.
type Orchestrator struct {
	tmux      *tmux.Client
	trees     *worktree.Manager
	repoName  string
	assistant string
	retry     execx.RetryConfig
	log       *logging.ScopedLogger
}

// New builds an orchestrator for the repository whose container is managed
// by trees.
func New(tc *tmux.Client, trees *worktree.Manager, cfg Config, log *logging.ScopedLogger) *Orchestrator {
	if log == nil {
		log = logging.NopLogger()
	}
	retry := cfg.Retry
	if retry.Attempts == 0 {
		retry = execx.DefaultRetry
	}
	return &Orchestrator{
		tmux:      tc,
		trees:     trees,
		repoName:  cfg.RepoName,
		assistant: cfg.Assistant,
		retry:     retry,
		log:       log,
	}
}

// getSession is the retried session lookup used by every state decision.
func (o *Orchestrator) getSession(ctx context.Context, name string) (*tmux.SessionInfo, error) {
	var s *tmux.SessionInfo
	err := execx.Retry(ctx, o.retry, func() error {
		var err error
		s, err = o.tmux.GetSession(ctx, name)
		return err
	})
	return s, err
}

// descriptor builds the session descriptor for a branch, or the supervisor
// when branch is empty.
func (o *Orchestrator) descriptor(branch string) tmux.Descriptor {
	if branch == "" {
		return tmux.Descriptor{
			RepoName:   o.repoName,
			Supervisor: true,
			WorkDir:    o.trees.BasePath(),
			Env: map[string]string{
				instance.EnvRole:   string(instance.RoleSupervisor),
				instance.EnvBranch: naming.SupervisorBranch,
			},
		}
	}
	return tmux.Descriptor{
		RepoName: o.repoName,
		Branch:   branch,
		WorkDir:  o.trees.PathFor(branch),
		Env: map[string]string{
			instance.EnvRole:   string(instance.RoleChild),
			instance.EnvBranch: branch,
		},
	}
}

// Ensure drives one session to the "assistant running" state. An absent
// session is created detached and the assistant launched in it. A session
// whose assistant died gets the assistant relaunched in place; the session
// is never destroyed and recreated, so manual work in its other windows
// survives. A session with a live assistant is left alone.
func (o *Orchestrator) Ensure(ctx context.Context, desc tmux.Descriptor) error {
	name := desc.Name()
	s, err := o.getSession(ctx, name)
	if err != nil {
		return err
	}

	if s == nil {
		err := o.tmux.CreateDetached(ctx, desc)
		switch {
		case errors.Is(err, tmux.ErrSessionExists):
			// Lost a create race with a concurrent invocation. The winner
			// may already have launched the assistant, so re-check before
			// typing into the shared session.
			s, err = o.getSession(ctx, name)
			if err != nil {
				return err
			}
			if s != nil && s.AssistantRunning {
				return nil
			}
		case err != nil:
			return err
		}
		return o.tmux.SendLine(ctx, name, o.assistant)
	}

	if !s.AssistantRunning {
		o.log.Info("assistant not running, relaunching in existing session", "session", name)
		return o.tmux.SendLine(ctx, name, o.assistant)
	}
	return nil
}

// BranchFailure is one branch that failed during LaunchAll.
type BranchFailure struct {
	Branch string
	Err    error
}

// BulkResult reports the all-settled outcome of LaunchAll.
type BulkResult struct {
	SupervisorSession string // attach target for the caller, set on success
	Succeeded         []string
	Failed            []BranchFailure
}

// Err aggregates the per-branch failures, or nil when everything succeeded.
func (r *BulkResult) Err() error {
	var errs error
	for _, f := range r.Failed {
		errs = multierr.Append(errs, fmt.Errorf("%s: %w", f.Branch, f.Err))
	}
	return errs
}

// LaunchAll brings up a session for the supervisor and for every worktree
// branch. The supervisor is created first; branches then fan out in
// parallel, and every branch is attempted regardless of the others'
// failures. The caller attaches to the supervisor session last, using
// SupervisorSession from the result.
func (o *Orchestrator) LaunchAll(ctx context.Context) (*BulkResult, error) {
	entries, err := o.trees.List(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(a, b int) bool { return entries[a].Branch < entries[b].Branch })

	res := &BulkResult{}
	supDesc := o.descriptor("")
	if err := o.Ensure(ctx, supDesc); err != nil {
		res.Failed = append(res.Failed, BranchFailure{Branch: naming.SupervisorBranch, Err: err})
	} else {
		res.SupervisorSession = supDesc.Name()
		res.Succeeded = append(res.Succeeded, naming.SupervisorBranch)
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, e := range entries {
		if e.Branch == "" {
			continue // detached worktrees have no branch session
		}
		branch := e.Branch
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := o.Ensure(ctx, o.descriptor(branch))
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				o.log.Warn("branch launch failed", "branch", branch, "error", err)
				res.Failed = append(res.Failed, BranchFailure{Branch: branch, Err: err})
				return
			}
			res.Succeeded = append(res.Succeeded, branch)
		}()
	}
	wg.Wait()

	sort.Strings(res.Succeeded)
	sort.Slice(res.Failed, func(a, b int) bool { return res.Failed[a].Branch < res.Failed[b].Branch })
	o.log.Info("launch complete", "succeeded", len(res.Succeeded), "failed", len(res.Failed))
	return res, nil
}

// SwitchResult tells the caller how to reach the resolved target. Exactly
// one of the three outcomes applies: an in-place client switch already
// happened (Switched), the caller should exec AttachArgv with its own
// terminal, or no session exists and the caller should change into WorkDir.
type SwitchResult struct {
	SessionName string
	Branch      string
	WorkDir     string
	Switched    bool
	AttachArgv  []string
}

// SwitchTo resolves a target and moves the user there. Targets are a
// 1-based index into the branch list sorted by name, an exact branch name,
// or "supervisor"/"sup"/0/empty for the supervisor. Inside tmux the client
// is switched in place; outside, the attach command is returned for the
// caller to exec. A target whose session does not exist falls back to its
// working directory.
func (o *Orchestrator) SwitchTo(ctx context.Context, target string) (*SwitchResult, error) {
	entries, err := o.trees.List(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(a, b int) bool { return entries[a].Branch < entries[b].Branch })

	branch, ok := resolveTarget(target, entries)
	if !ok {
		valid := []string{naming.SupervisorBranch}
		for _, e := range entries {
			if e.Branch != "" {
				valid = append(valid, e.Branch)
			}
		}
		return nil, &TargetNotFoundError{Target: target, Valid: valid}
	}

	desc := o.descriptor(branch)
	res := &SwitchResult{SessionName: desc.Name(), Branch: branch, WorkDir: desc.WorkDir}
	if branch == "" {
		res.Branch = naming.SupervisorBranch
	}

	s, err := o.getSession(ctx, res.SessionName)
	if err != nil {
		return nil, err
	}
	if s == nil {
		res.SessionName = ""
		return res, nil // no session; caller changes into WorkDir
	}

	if o.tmux.InsideSession() {
		if err := o.tmux.SwitchClient(ctx, res.SessionName); err != nil {
			return nil, err
		}
		res.Switched = true
		return res, nil
	}
	res.AttachArgv = o.tmux.AttachCommand(res.SessionName)
	return res, nil
}

// resolveTarget maps the user's argument onto a branch name, with "" meaning
// the supervisor. Branch matching is exact and case-sensitive.
func resolveTarget(target string, entries []worktree.Entry) (branch string, ok bool) {
	switch target {
	case "", "sup", naming.SupervisorBranch:
		return "", true
	}
	branches := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Branch != "" {
			branches = append(branches, e.Branch)
		}
	}
	if n, err := strconv.Atoi(target); err == nil {
		if n == 0 {
			return "", true
		}
		if n < 1 || n > len(branches) {
			return "", false
		}
		return branches[n-1], true
	}
	for _, b := range branches {
		if b == target {
			return b, true
		}
	}
	return "", false
}

// ShutdownAll kills every session belonging to this repository, best-effort.
func (o *Orchestrator) ShutdownAll(ctx context.Context) (targeted, failed int, err error) {
	return o.tmux.KillAllForRepo(ctx, o.repoName)
}
