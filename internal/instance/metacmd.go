// pattern: Functional Core

package instance

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// MetaPrefix marks input lines addressed to the orchestration layer rather
// than the assistant.
const MetaPrefix = "!cgwt"

// ErrExitRequested is returned by Dispatch when the user asked to leave the
// interactive loop.
var ErrExitRequested = errors.New("exit requested")

// MetaKind enumerates the meta-command verbs.
type MetaKind int

const (
	MetaList MetaKind = iota
	MetaSelect
	MetaBroadcast
	MetaExit
)

// MetaCommand is a parsed meta-command line.
type MetaCommand struct {
	Kind MetaKind
	Arg  string
}

// ParseMeta parses an input line as a meta-command. Lines not starting with
// the prefix return (nil, nil) and belong to the assistant. A prefixed line
// with an unknown or missing verb is an error, not assistant input, so a
// typo never leaks into the session.
func ParseMeta(line string) (*MetaCommand, error) {
	trimmed := strings.TrimSpace(line)
	if trimmed != MetaPrefix && !strings.HasPrefix(trimmed, MetaPrefix+" ") {
		return nil, nil
	}
	rest := strings.TrimSpace(strings.TrimPrefix(trimmed, MetaPrefix))
	if rest == "" {
		return nil, fmt.Errorf("usage: %s <list|select|broadcast|exit>", MetaPrefix)
	}
	verb, arg, _ := strings.Cut(rest, " ")
	arg = strings.TrimSpace(arg)
	switch verb {
	case "list":
		return &MetaCommand{Kind: MetaList}, nil
	case "select":
		return &MetaCommand{Kind: MetaSelect, Arg: arg}, nil
	case "broadcast":
		if arg == "" {
			return nil, fmt.Errorf("%s broadcast requires a message", MetaPrefix)
		}
		return &MetaCommand{Kind: MetaBroadcast, Arg: arg}, nil
	case "exit":
		return &MetaCommand{Kind: MetaExit}, nil
	default:
		return nil, fmt.Errorf("unknown meta-command %q", verb)
	}
}

// Router resolves meta-commands against the registry and tracks which
// instance currently receives ordinary input.
type Router struct {
	reg    *Registry
	target *Instance
}

// NewRouter returns a router initially targeting the supervisor, when one
// is registered.
func NewRouter(reg *Registry) *Router {
	r := &Router{reg: reg}
	if sup, ok := reg.Supervisor(); ok {
		r.target = sup
	}
	return r
}

// Target returns the instance that currently receives non-meta input.
func (r *Router) Target() *Instance { return r.target }

// Dispatch executes a parsed meta-command and returns human-readable output.
// MetaExit returns ErrExitRequested.
func (r *Router) Dispatch(cmd MetaCommand) (string, error) {
	switch cmd.Kind {
	case MetaList:
		return r.list(), nil
	case MetaSelect:
		return r.selectTarget(cmd.Arg)
	case MetaBroadcast:
		return r.broadcast(cmd.Arg)
	case MetaExit:
		return "", ErrExitRequested
	default:
		return "", fmt.Errorf("unhandled meta-command kind %d", cmd.Kind)
	}
}

// list renders the registered instances, supervisor first, children sorted
// by branch, with 1-based indexes matching what select accepts.
func (r *Router) list() string {
	var b strings.Builder
	if sup, ok := r.reg.Supervisor(); ok {
		fmt.Fprintf(&b, "  0  supervisor  %s  %s\n", sup.Status(), marker(sup == r.target))
	}
	for i, child := range r.reg.Children() {
		fmt.Fprintf(&b, "  %d  %s  %s  %s\n", i+1, child.Branch(), child.Status(), marker(child == r.target))
	}
	if b.Len() == 0 {
		return "no instances registered\n"
	}
	return b.String()
}

func marker(current bool) string {
	if current {
		return "*"
	}
	return ""
}

// selectTarget switches the router's target. The argument may be an index
// from list output (0 or "sup" for the supervisor, 1-based for children), a
// branch name, or empty for the supervisor.
func (r *Router) selectTarget(arg string) (string, error) {
	inst, err := r.resolve(arg)
	if err != nil {
		return "", err
	}
	r.target = inst
	if inst.Role() == RoleSupervisor {
		return "now talking to supervisor\n", nil
	}
	return fmt.Sprintf("now talking to %s\n", inst.Branch()), nil
}

func (r *Router) resolve(arg string) (*Instance, error) {
	if arg == "" || arg == "sup" || arg == "supervisor" {
		if sup, ok := r.reg.Supervisor(); ok {
			return sup, nil
		}
		return nil, fmt.Errorf("no supervisor registered")
	}
	children := r.reg.Children()
	if n, err := strconv.Atoi(arg); err == nil {
		if n == 0 {
			return r.resolve("supervisor")
		}
		if n < 1 || n > len(children) {
			return nil, fmt.Errorf("index %d out of range (1..%d)", n, len(children))
		}
		return children[n-1], nil
	}
	if inst, ok := r.reg.ByBranch(arg); ok {
		return inst, nil
	}
	return nil, fmt.Errorf("no instance for %q", arg)
}

// broadcast sends a user message to every child except the current target.
// Children that are not accepting input are skipped silently; a broadcast
// is best-effort fan-out, not a transaction.
func (r *Router) broadcast(text string) (string, error) {
	msg := UserMessage(text)
	sent := 0
	for _, child := range r.reg.Children() {
		if child == r.target || !child.Accepting() {
			continue
		}
		if err := child.SendMessage(msg); err != nil {
			continue
		}
		sent++
	}
	return fmt.Sprintf("broadcast to %d instance(s)\n", sent), nil
}
