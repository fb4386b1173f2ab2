// pattern: Imperative Shell
package cli

import (
	"context"
	"fmt"

	flag "github.com/spf13/pflag"
)

// registerWorktreeCommands registers the worktree command group.
func (e *Env) registerWorktreeCommands(group *Group) {
	group.AddCommand(&Command{
		Name:    "add",
		Summary: "Create a worktree (and branch if needed)",
		Usage:   "Usage: cgwt worktree add <branch> [--base <branch>]",
		Run: func(args []string) error {
			fs := flag.NewFlagSet("worktree add", flag.ContinueOnError)
			fs.SetOutput(e.Stderr)
			base := fs.String("base", "", "start the new branch from this base")
			if err := fs.Parse(args); err != nil {
				return err
			}
			if fs.NArg() != 1 {
				return fmt.Errorf("usage: cgwt worktree add <branch> [--base <branch>]")
			}

			ctx := context.Background()
			root, err := e.containerBase(ctx)
			if err != nil {
				return err
			}
			path, err := e.trees(root).Add(ctx, fs.Arg(0), *base)
			if err != nil {
				return err
			}
			fmt.Fprintln(e.Stdout, path)
			return nil
		},
	})

	group.AddCommand(&Command{
		Name:    "remove",
		Summary: "Remove a branch's worktree",
		Usage:   "Usage: cgwt worktree remove <branch> [--force]",
		Run: func(args []string) error {
			fs := flag.NewFlagSet("worktree remove", flag.ContinueOnError)
			fs.SetOutput(e.Stderr)
			force := fs.Bool("force", false, "remove even with uncommitted changes")
			if err := fs.Parse(args); err != nil {
				return err
			}
			if fs.NArg() != 1 {
				return fmt.Errorf("usage: cgwt worktree remove <branch> [--force]")
			}

			ctx := context.Background()
			root, err := e.containerBase(ctx)
			if err != nil {
				return err
			}
			if err := e.trees(root).Remove(ctx, fs.Arg(0), *force); err != nil {
				return err
			}
			fmt.Fprintf(e.Stdout, "removed worktree for %s\n", fs.Arg(0))
			return nil
		},
	})

	group.AddCommand(&Command{
		Name:    "prune",
		Summary: "Prune stale worktree registrations",
		Usage:   "Usage: cgwt worktree prune",
		Run: func(args []string) error {
			ctx := context.Background()
			root, err := e.containerBase(ctx)
			if err != nil {
				return err
			}
			if err := e.trees(root).Prune(ctx); err != nil {
				return err
			}
			fmt.Fprintln(e.Stdout, "pruned")
			return nil
		},
	})

	group.AddCommand(&Command{
		Name:    "list",
		Summary: "List branch worktrees",
		Usage:   "Usage: cgwt worktree list",
		Run: func(args []string) error {
			ctx := context.Background()
			root, err := e.containerBase(ctx)
			if err != nil {
				return err
			}
			entries, err := e.trees(root).List(ctx)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(e.Stdout, "no worktrees (run 'cgwt worktree add <branch>')")
				return nil
			}
			for _, wt := range entries {
				branch := wt.Branch
				if branch == "" {
					branch = "(detached)"
				}
				flags := ""
				if wt.IsLocked {
					flags += " locked"
				}
				if wt.IsPrunable {
					flags += " prunable"
				}
				fmt.Fprintf(e.Stdout, "%-20s %s%s\n", branch, wt.Path, flags)
			}
			return nil
		},
	})
}
