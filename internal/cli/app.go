// pattern: Functional Core
package cli

import (
	"fmt"
	"io"
	"maps"
	"slices"
)

// Command represents a single CLI command with its metadata and handler.
type Command struct {
	Name    string
	Summary string
	Usage   string
	Run     func(args []string) error
}

// Group represents a group of related commands.
type Group struct {
	Name     string
	Summary  string
	Commands map[string]*Command
}

// App is the top-level CLI application with groups and ungrouped commands.
type App struct {
	name     string
	groups   map[string]*Group
	commands map[string]*Command
	stderr   io.Writer
}

// NewApp creates a CLI application dispatching under the given binary name.
func NewApp(name string, stderr io.Writer) *App {
	return &App{
		name:     name,
		groups:   make(map[string]*Group),
		commands: make(map[string]*Command),
		stderr:   stderr,
	}
}

// AddGroup creates and registers a new command group.
func (a *App) AddGroup(name, summary string) *Group {
	g := &Group{
		Name:     name,
		Summary:  summary,
		Commands: make(map[string]*Command),
	}
	a.groups[name] = g
	return g
}

// AddCommand registers an ungrouped (top-level) command.
func (a *App) AddCommand(cmd *Command) {
	a.commands[cmd.Name] = cmd
}

// AddCommand registers a command in the group.
func (g *Group) AddCommand(cmd *Command) {
	g.Commands[cmd.Name] = cmd
}

// Execute dispatches the CLI arguments and returns the process exit code.
// Command errors are printed to stderr here so handlers just return them.
func (a *App) Execute(args []string) int {
	if len(args) == 0 || args[0] == "help" || args[0] == "--help" || args[0] == "-h" {
		a.PrintHelp(a.stderr)
		return 0
	}

	name := args[0]

	if cmd, ok := a.commands[name]; ok {
		return a.runCommand(cmd, args[1:])
	}

	if group, ok := a.groups[name]; ok {
		if len(args) < 2 || args[1] == "help" || args[1] == "--help" || args[1] == "-h" {
			group.PrintHelp(a.stderr, a.name)
			return 0
		}
		if cmd, ok := group.Commands[args[1]]; ok {
			return a.runCommand(cmd, args[2:])
		}
		fmt.Fprintf(a.stderr, "unknown command %q in group %q\n\n", args[1], name)
		group.PrintHelp(a.stderr, a.name)
		return 1
	}

	fmt.Fprintf(a.stderr, "unknown command %q\n\n", name)
	a.PrintHelp(a.stderr)
	return 1
}

func (a *App) runCommand(cmd *Command, args []string) int {
	for _, arg := range args {
		if arg == "--help" || arg == "-h" {
			fmt.Fprintf(a.stderr, "%s\n", cmd.Usage)
			return 0
		}
	}
	if err := cmd.Run(args); err != nil {
		fmt.Fprintf(a.stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

// PrintHelp prints the top-level help text.
func (a *App) PrintHelp(w io.Writer) {
	fmt.Fprintf(w, "Usage: %s <command> [arguments]\n\n", a.name)
	fmt.Fprintf(w, "Commands:\n")
	for _, name := range slices.Sorted(maps.Keys(a.commands)) {
		fmt.Fprintf(w, "  %-10s %s\n", name, a.commands[name].Summary)
	}
	if len(a.groups) > 0 {
		fmt.Fprintf(w, "\nCommand Groups:\n")
		for _, name := range slices.Sorted(maps.Keys(a.groups)) {
			fmt.Fprintf(w, "  %-10s %s\n", name, a.groups[name].Summary)
		}
		fmt.Fprintf(w, "\nUse \"%s <group> help\" for group details.\n", a.name)
	}
}

// PrintHelp prints help for a specific group.
func (g *Group) PrintHelp(w io.Writer, appName string) {
	fmt.Fprintf(w, "Usage: %s %s <command>\n\n", appName, g.Name)
	fmt.Fprintf(w, "Commands:\n")
	for _, name := range slices.Sorted(maps.Keys(g.Commands)) {
		fmt.Fprintf(w, "  %-10s %s\n", name, g.Commands[name].Summary)
	}
	fmt.Fprintf(w, "\nUse \"%s %s <command> --help\" for command details.\n", appName, g.Name)
}
