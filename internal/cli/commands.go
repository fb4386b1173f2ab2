// pattern: Imperative Shell
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	flag "github.com/spf13/pflag"

	"cgwt/internal/config"
	"cgwt/internal/discovery"
	"cgwt/internal/execx"
	"cgwt/internal/gitx"
	"cgwt/internal/instance"
	"cgwt/internal/logging"
	"cgwt/internal/naming"
	"cgwt/internal/orchestrator"
	"cgwt/internal/tmux"
	"cgwt/internal/worktree"
)

// ResolveDataDir returns the directory for the lock and log files. If
// override is empty it defaults to ~/.config/cgwt.
func ResolveDataDir(override string) string {
	if override != "" {
		return override
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".config", "cgwt")
	}
	return filepath.Join(home, ".config", "cgwt")
}

// Env carries the collaborators every command builds on. main assembles one
// Env; tests assemble theirs with fakes.
type Env struct {
	Config  config.Config
	Logs    logging.Provider
	Run     execx.Runner
	DataDir string
	LogFile string
	WorkDir string // directory the invocation operates on
	Version string
	Stdin   io.Reader
	Stdout  io.Writer
	Stderr  io.Writer
	// Exec replaces the current process, used to hand the terminal to
	// `tmux attach`. Tests stub it.
	Exec func(argv []string) error

	printMu sync.Mutex
}

// printf serializes writes to Stdout between the interactive loop and the
// per-instance event pumps.
func (e *Env) printf(format string, args ...any) {
	e.printMu.Lock()
	defer e.printMu.Unlock()
	fmt.Fprintf(e.Stdout, format, args...)
}

func (e *Env) git() *gitx.Git {
	return gitx.New(e.Run, e.Logs.For("git"))
}

// containerBase resolves the container root the invocation applies to: the
// working directory itself, or the directory holding the .bare store when
// invoked from inside a member worktree. The store location comes from git,
// not from the filesystem parent: slash-named branches check out into nested
// directories, so the parent of a member is not necessarily the container.
func (e *Env) containerBase(ctx context.Context) (string, error) {
	git := e.git()
	state := git.Classify(ctx, e.WorkDir)
	switch state.Kind {
	case gitx.StateWorktreeContainer:
		return e.WorkDir, nil
	case gitx.StateWorktreeMember:
		common, ok := git.CommonDir(ctx, e.WorkDir)
		if !ok {
			return "", fmt.Errorf("%s: cannot locate the container's git store", e.WorkDir)
		}
		return filepath.Dir(common), nil
	case gitx.StatePlainRepo:
		return "", fmt.Errorf("%s is a plain repository; run 'cgwt convert' first", e.WorkDir)
	default:
		return "", fmt.Errorf("%s is not a managed repository; run 'cgwt init' or 'cgwt convert'", e.WorkDir)
	}
}

func (e *Env) trees(base string) *worktree.Manager {
	return worktree.NewManager(base, e.git(), e.Logs.For("worktree"))
}

func (e *Env) orchestratorFor(base string) *orchestrator.Orchestrator {
	tc := tmux.NewClient(e.Run, e.Config.Assistant, e.Logs.For("tmux"))
	cfg := orchestrator.Config{
		RepoName:  filepath.Base(base),
		Assistant: e.Config.Assistant,
		Retry: execx.RetryConfig{
			Attempts:  e.Config.Retry.Attempts,
			BaseDelay: e.Config.RetryBaseDelay(),
		},
	}
	return orchestrator.New(tc, e.trees(base), cfg, e.Logs.For("orchestrator"))
}

// BuildApp wires every command onto the dispatcher.
func BuildApp(e *Env) *App {
	app := NewApp("cgwt", e.Stderr)

	app.AddCommand(&Command{
		Name:    "init",
		Summary: "Initialize a worktree container in the current directory",
		Usage:   "Usage: cgwt init [--remote <url>]",
		Run:     e.runInit,
	})
	app.AddCommand(&Command{
		Name:    "convert",
		Summary: "Convert a plain repository to the worktree container layout",
		Usage:   "Usage: cgwt convert",
		Run:     e.runConvert,
	})
	app.AddCommand(&Command{
		Name:    "launch",
		Summary: "Start sessions for every branch and attach to the supervisor",
		Usage:   "Usage: cgwt launch",
		Run:     e.runLaunch,
	})
	app.AddCommand(&Command{
		Name:    "switch",
		Summary: "Switch to a branch session by index or name",
		Usage:   "Usage: cgwt switch [<index>|<branch>|supervisor]",
		Run:     e.runSwitch,
	})
	app.AddCommand(&Command{
		Name:    "shutdown",
		Summary: "Kill every session of this repository",
		Usage:   "Usage: cgwt shutdown",
		Run:     e.runShutdown,
	})
	app.AddCommand(&Command{
		Name:    "list",
		Summary: "List branch sessions, or scan for projects with --projects",
		Usage:   "Usage: cgwt list [--projects] [--watch]",
		Run:     e.runList,
	})
	app.AddCommand(&Command{
		Name:    "run",
		Summary: "Host assistants directly without tmux, with meta-command routing",
		Usage:   "Usage: cgwt run",
		Run:     e.runRun,
	})
	app.AddCommand(&Command{
		Name:    "logs",
		Summary: "Print recent structured log entries",
		Usage:   "Usage: cgwt logs [-n <count>] [--scope <prefix>] [--follow]",
		Run:     e.runLogs,
	})
	app.AddCommand(&Command{
		Name:    "cleanup",
		Summary: "Remove a stale lock file left by a crashed run",
		Usage:   "Usage: cgwt cleanup",
		Run:     e.runCleanup,
	})
	app.AddCommand(&Command{
		Name:    "version",
		Summary: "Print version and exit",
		Usage:   "Usage: cgwt version",
		Run: func(args []string) error {
			fmt.Fprintln(e.Stdout, e.Version)
			return nil
		},
	})

	worktreeGroup := app.AddGroup("worktree", "Manage branch worktrees")
	e.registerWorktreeCommands(worktreeGroup)

	return app
}

func (e *Env) runInit(args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	fs.SetOutput(e.Stderr)
	remote := fs.String("remote", "", "clone this remote instead of starting empty")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx := context.Background()
	git := e.git()
	switch git.Classify(ctx, e.WorkDir).Kind {
	case gitx.StateWorktreeContainer:
		return fmt.Errorf("%s is already a worktree container", e.WorkDir)
	case gitx.StatePlainRepo:
		return fmt.Errorf("%s is a plain repository; run 'cgwt convert' instead", e.WorkDir)
	}

	b := worktree.NewBootstrapper(e.WorkDir, git, e.Logs.For("bootstrap"))
	branch, err := b.InitContainer(ctx, *remote)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.Stdout, "initialized worktree container on branch %s\n", branch)
	return nil
}

func (e *Env) runConvert(args []string) error {
	ctx := context.Background()
	b := worktree.NewBootstrapper(e.WorkDir, e.git(), e.Logs.For("bootstrap"))
	if ok, reason := b.CanConvert(ctx); !ok {
		return fmt.Errorf("cannot convert: %s", reason)
	}
	branch, err := b.Convert(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.Stdout, "converted to worktree container, default branch %s\n", branch)
	return nil
}

func (e *Env) runLaunch(args []string) error {
	ctx := context.Background()
	base, err := e.containerBase(ctx)
	if err != nil {
		return err
	}
	orch := e.orchestratorFor(base)

	res, err := orch.LaunchAll(ctx)
	if err != nil {
		return err
	}
	for _, b := range res.Succeeded {
		fmt.Fprintf(e.Stdout, "session ready: %s\n", b)
	}
	for _, f := range res.Failed {
		fmt.Fprintf(e.Stderr, "session failed: %s: %v\n", f.Branch, f.Err)
	}
	if res.SupervisorSession == "" {
		return res.Err()
	}

	// The supervisor is attached last, once every branch has settled.
	sw, err := orch.SwitchTo(ctx, naming.SupervisorBranch)
	if err != nil {
		return err
	}
	if sw.Switched {
		return nil
	}
	if len(sw.AttachArgv) > 0 {
		return e.Exec(sw.AttachArgv)
	}
	return nil
}

func (e *Env) runSwitch(args []string) error {
	target := ""
	if len(args) > 0 {
		target = args[0]
	}

	ctx := context.Background()
	base, err := e.containerBase(ctx)
	if err != nil {
		return err
	}
	sw, err := e.orchestratorFor(base).SwitchTo(ctx, target)
	if err != nil {
		return err
	}
	switch {
	case sw.Switched:
		fmt.Fprintf(e.Stderr, "switched to %s\n", sw.SessionName)
	case len(sw.AttachArgv) > 0:
		return e.Exec(sw.AttachArgv)
	default:
		// No session for the target; print its worktree path so shells can
		// `cd "$(cgwt switch <branch>)"`.
		fmt.Fprintln(e.Stdout, sw.WorkDir)
	}
	return nil
}

func (e *Env) runShutdown(args []string) error {
	ctx := context.Background()
	base, err := e.containerBase(ctx)
	if err != nil {
		return err
	}
	targeted, failed, err := e.orchestratorFor(base).ShutdownAll(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.Stdout, "killed %d of %d session(s)\n", targeted-failed, targeted)
	if failed > 0 {
		return fmt.Errorf("%d session(s) survived shutdown", failed)
	}
	return nil
}

func (e *Env) runList(args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	fs.SetOutput(e.Stderr)
	projects := fs.Bool("projects", false, "scan configured paths for repositories")
	watch := fs.Bool("watch", false, "keep running and re-list when the worktree set changes")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx := context.Background()
	if *projects {
		return e.listProjects(ctx)
	}
	if *watch {
		return e.watchSessions(ctx)
	}
	return e.listSessions(ctx)
}

// watchSessions re-prints the session list whenever the container's worktree
// registry changes, until interrupted.
func (e *Env) watchSessions(ctx context.Context) error {
	base, err := e.containerBase(ctx)
	if err != nil {
		return err
	}
	w, err := orchestrator.NewWatcher(base, e.Logs.For("watcher"))
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	if err := e.listSessions(ctx); err != nil {
		return err
	}
	for range w.Events() {
		fmt.Fprintln(e.Stdout, "---")
		if err := e.listSessions(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (e *Env) listSessions(ctx context.Context) error {
	base, err := e.containerBase(ctx)
	if err != nil {
		return err
	}
	repo := filepath.Base(base)
	tc := tmux.NewClient(e.Run, e.Config.Assistant, e.Logs.For("tmux"))
	sessions, err := tc.ListSessions(ctx)
	if err != nil {
		return err
	}

	n := 0
	for _, s := range sessions {
		if !naming.HasRepoPrefix(s.Name, repo) {
			continue
		}
		n++
		status := "assistant stopped"
		if s.AssistantRunning {
			status = "assistant running"
		}
		attached := " "
		if s.Attached {
			attached = "*"
		}
		// The repo is known here, so the branch survives even when its
		// sanitized form contains '-'.
		branch := s.Branch()
		if b, ok := naming.BranchInRepo(s.Name, repo); ok {
			branch = b
		}
		fmt.Fprintf(e.Stdout, "%s %-30s %-12s %s\n", attached, s.Name, branch, status)
	}
	if n == 0 {
		fmt.Fprintln(e.Stdout, "no sessions (run 'cgwt launch')")
	}
	return nil
}

func (e *Env) listProjects(ctx context.Context) error {
	scanner := discovery.NewScanner(e.git(), e.Logs.For("discovery"))
	found := scanner.ScanAll(ctx, e.Config.ResolveScanPaths())
	if len(found) == 0 {
		fmt.Fprintln(e.Stdout, "no repositories found in scan paths")
		return nil
	}
	for _, p := range found {
		kind := "plain"
		if p.IsContainer() {
			kind = "container"
		}
		fmt.Fprintf(e.Stdout, "%-10s %-20s %s\n", kind, p.Name, p.Path)
		for _, b := range p.Branches {
			fmt.Fprintf(e.Stdout, "           - %s\n", b)
		}
	}
	return nil
}

func (e *Env) runCleanup(args []string) error {
	fl, err := instance.Lock(e.DataDir)
	if err != nil {
		return fmt.Errorf("an orchestrator appears to be running; stop it first")
	}
	instance.Cleanup(e.DataDir, fl)
	fmt.Fprintln(e.Stdout, "removed stale lock file")
	return nil
}
