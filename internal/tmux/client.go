// pattern: Imperative Shell

// Package tmux is the session registry: it creates, inspects and kills the
// tmux sessions that host assistant processes, one per branch. All tmux
// invocations go through an injected execx.Runner so tests never need a
// tmux server.
package tmux

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"sort"
	"strings"

	"cgwt/internal/execx"
	"cgwt/internal/logging"
	"cgwt/internal/naming"
)

// Sentinel errors distinguished from tmux's stderr text.
var (
	ErrNotInstalled    = errors.New("tmux is not installed (install it with your package manager, e.g. 'brew install tmux' or 'apt install tmux')")
	ErrNoServer        = errors.New("no tmux server running")
	ErrSessionExists   = errors.New("session already exists")
	ErrSessionNotFound = errors.New("session not found")
)

// validSessionNameRe rejects names that make tmux targets ambiguous or
// silently misbehave (dots, colons, whitespace).
var validSessionNameRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

func validateSessionName(name string) error {
	if name == "" || !validSessionNameRe.MatchString(name) {
		return fmt.Errorf("invalid session name %q: must match %s", name, validSessionNameRe.String())
	}
	return nil
}

// Client wraps tmux session control.
type Client struct {
	run       execx.Runner
	assistant string // assistant process name used for pane inspection
	log       *logging.ScopedLogger
}

// NewClient creates a Client over the given runner. assistant is the process
// name looked for when deciding whether a session's assistant is alive.
func NewClient(run execx.Runner, assistant string, log *logging.ScopedLogger) *Client {
	if log == nil {
		log = logging.NopLogger()
	}
	return &Client{run: run, assistant: assistant, log: log}
}

// exec runs one tmux command, mapping stderr text onto sentinel errors.
func (c *Client) exec(ctx context.Context, args ...string) (string, error) {
	res, err := c.run(ctx, "", "tmux", args...)
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return "", ErrNotInstalled
		}
		return "", fmt.Errorf("tmux %s: %w", args[0], err)
	}
	if res.ExitCode != 0 {
		return "", wrapStderr(res.Stderr, args)
	}
	return strings.TrimSpace(res.Stdout), nil
}

func wrapStderr(stderr string, args []string) error {
	stderr = strings.TrimSpace(stderr)
	switch {
	case strings.Contains(stderr, "no server running"),
		strings.Contains(stderr, "error connecting to"),
		strings.Contains(stderr, "server exited unexpectedly"):
		return ErrNoServer
	case strings.Contains(stderr, "duplicate session"):
		return ErrSessionExists
	case strings.Contains(stderr, "session not found"),
		strings.Contains(stderr, "can't find session"):
		return ErrSessionNotFound
	case stderr != "":
		return fmt.Errorf("tmux %s: %s", args[0], stderr)
	default:
		return fmt.Errorf("tmux %s: exit status != 0", args[0])
	}
}

// IsAvailable reports whether a tmux binary responds at all.
func (c *Client) IsAvailable(ctx context.Context) bool {
	res, err := c.run(ctx, "", "tmux", "-V")
	return err == nil && res.ExitCode == 0
}

// InsideSession reports whether the calling process itself runs inside a
// tmux session.
func (c *Client) InsideSession() bool {
	return os.Getenv("TMUX") != ""
}

// ListSessions returns every session carrying this tool's naming prefix,
// with assistant liveness filled in per session.
func (c *Client) ListSessions(ctx context.Context) ([]SessionInfo, error) {
	out, err := c.exec(ctx, "list-sessions", "-F", listFormat)
	if err != nil {
		if errors.Is(err, ErrNoServer) {
			return nil, nil // no server means no sessions, not a failure
		}
		return nil, err
	}

	var sessions []SessionInfo
	for _, s := range ParseSessions(out) {
		if !naming.HasPrefix(s.Name) {
			continue
		}
		s.AssistantRunning = c.assistantRunning(ctx, s.Name)
		sessions = append(sessions, s)
	}
	return sessions, nil
}

// GetSession returns the named session, or nil when it does not exist.
func (c *Client) GetSession(ctx context.Context, name string) (*SessionInfo, error) {
	out, err := c.exec(ctx, "list-sessions", "-F", listFormat)
	if err != nil {
		if errors.Is(err, ErrNoServer) {
			return nil, nil
		}
		return nil, err
	}
	for _, s := range ParseSessions(out) {
		if s.Name == name {
			s.AssistantRunning = c.assistantRunning(ctx, name)
			return &s, nil
		}
	}
	return nil, nil
}

// assistantRunning inspects the foreground command of every pane in the
// session. See AnyPaneRuns for the limits of this heuristic.
func (c *Client) assistantRunning(ctx context.Context, name string) bool {
	out, err := c.exec(ctx, "list-panes", "-s", "-t", "="+name, "-F", "#{pane_current_command}")
	if err != nil {
		return false
	}
	return AnyPaneRuns(out, c.assistant)
}

// CreateDetached creates a detached session for the descriptor: working
// directory bound to the branch's worktree, role/branch identity exported in
// the session environment, status bar configured. A concurrent create of the
// same name surfaces as ErrSessionExists, which callers treat as benign.
func (c *Client) CreateDetached(ctx context.Context, desc Descriptor) error {
	name := desc.Name()
	if err := validateSessionName(name); err != nil {
		return err
	}

	args := []string{"new-session", "-d", "-s", name}
	if desc.WorkDir != "" {
		args = append(args, "-c", desc.WorkDir)
	}
	envKeys := make([]string, 0, len(desc.Env))
	for k := range desc.Env {
		envKeys = append(envKeys, k)
	}
	sort.Strings(envKeys)
	for _, k := range envKeys {
		args = append(args, "-e", fmt.Sprintf("%s=%s", k, desc.Env[k]))
	}
	if _, err := c.exec(ctx, args...); err != nil {
		return err
	}

	// Detached sessions on tmux 3.3+ lock to 80x24 until told otherwise.
	_, _ = c.exec(ctx, "set-option", "-wt", "="+name, "window-size", "latest")

	if err := c.configureStatusBar(ctx, desc); err != nil {
		c.log.Warn("status bar configuration failed", "session", name, "error", err)
	}
	c.log.Info("session created", "session", name, "workdir", desc.WorkDir, "supervisor", desc.Supervisor)
	return nil
}

// configureStatusBar colors the session by role and installs a binding for
// cycling between cgwt sessions.
func (c *Client) configureStatusBar(ctx context.Context, desc Descriptor) error {
	name := desc.Name()
	style, label := "bg=colour25,fg=white", " "+desc.Branch+" "
	if desc.Supervisor {
		style, label = "bg=colour130,fg=white", " SUPERVISOR "
	}
	if _, err := c.exec(ctx, "set-option", "-t", "="+name, "status-style", style); err != nil {
		return err
	}
	if _, err := c.exec(ctx, "set-option", "-t", "="+name, "status-left",
		fmt.Sprintf("[%s]%s", naming.Prefix, label)); err != nil {
		return err
	}
	if _, err := c.exec(ctx, "set-option", "-t", "="+name, "status-left-length", "40"); err != nil {
		return err
	}
	// Prefix+n / prefix+p cycle through sessions without leaving tmux.
	_, _ = c.exec(ctx, "bind-key", "-T", "prefix", "n", "switch-client", "-n")
	_, _ = c.exec(ctx, "bind-key", "-T", "prefix", "p", "switch-client", "-p")
	return nil
}

// SendLine types a line into the session's active pane and presses Enter.
func (c *Client) SendLine(ctx context.Context, name, line string) error {
	if _, err := c.exec(ctx, "send-keys", "-t", "="+name, line); err != nil {
		return err
	}
	_, err := c.exec(ctx, "send-keys", "-t", "="+name, "Enter")
	return err
}

// SwitchClient moves the caller's tmux client to the named session. Only
// valid when the caller runs inside tmux.
func (c *Client) SwitchClient(ctx context.Context, name string) error {
	_, err := c.exec(ctx, "switch-client", "-t", "="+name)
	return err
}

// AttachCommand returns the argv a caller should exec (with inherited stdio)
// to attach to the named session. Attaching needs the caller's terminal, so
// it cannot go through the captured-output runner.
func (c *Client) AttachCommand(name string) []string {
	return []string{"tmux", "attach-session", "-t", "=" + name}
}

// Kill destroys one session.
func (c *Client) Kill(ctx context.Context, name string) error {
	_, err := c.exec(ctx, "kill-session", "-t", "="+name)
	return err
}

// KillAllForRepo kills every session belonging to the repository. Individual
// failures are tolerated; the counts report what was targeted and what
// survived.
func (c *Client) KillAllForRepo(ctx context.Context, repo string) (targeted, failed int, err error) {
	sessions, err := c.ListSessions(ctx)
	if err != nil {
		return 0, 0, err
	}
	for _, s := range sessions {
		if !naming.HasRepoPrefix(s.Name, repo) {
			continue
		}
		targeted++
		if killErr := c.Kill(ctx, s.Name); killErr != nil {
			failed++
			c.log.Warn("kill failed", "session", s.Name, "error", killErr)
		}
	}
	return targeted, failed, nil
}
