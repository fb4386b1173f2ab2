// pattern: Imperative Shell
package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"cgwt/internal/instance"
)

func (e *Env) stdinIsTTY() bool {
	f, ok := e.Stdin.(*os.File)
	if !ok {
		return false
	}
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

// runRun hosts assistants directly, without tmux: the supervisor plus one
// child process per branch worktree, bridged to the caller's terminal.
// Input lines go to the selected instance, lines starting with !cgwt are
// dispatched locally, and instance output streams back tagged by branch.
func (e *Env) runRun(args []string) error {
	ctx := context.Background()
	base, err := e.containerBase(ctx)
	if err != nil {
		return err
	}

	reg := instance.NewRegistry(e.Logs.For("instance"))
	defer func() { _ = reg.Clear() }()

	sup, err := instance.New(instance.Options{
		Role: instance.RoleSupervisor,
		// Under a terminal the supervisor runs on a pty so it renders
		// interactively; pipe mode otherwise for line-delimited JSON.
		Interactive: e.stdinIsTTY(),
		WorkDir:     base,
		Binary:      e.Config.Assistant,
		Log:         e.Logs.For("instance.supervisor"),
	})
	if err != nil {
		return err
	}
	if err := reg.Register(sup); err != nil {
		return err
	}
	if err := sup.Start(); err != nil {
		return fmt.Errorf("starting supervisor: %w", err)
	}
	go e.pumpEvents(sup)

	entries, err := e.trees(base).List(ctx)
	if err != nil {
		return err
	}
	for _, wt := range entries {
		if wt.Branch == "" {
			continue
		}
		child, err := instance.New(instance.Options{
			Role:     instance.RoleChild,
			Branch:   wt.Branch,
			WorkDir:  wt.Path,
			ParentID: sup.ID(),
			Binary:   e.Config.Assistant,
			Log:      e.Logs.For("instance." + wt.Branch),
		})
		if err != nil {
			return err
		}
		if err := reg.Register(child); err != nil {
			return err
		}
		if err := child.Start(); err != nil {
			// One branch failing to start must not take down the rest.
			fmt.Fprintf(e.Stderr, "start %s: %v\n", wt.Branch, err)
			reg.Unregister(child.ID())
			continue
		}
		_ = sup.RegisterChild(child.ID(), wt.Path)
		go e.pumpEvents(child)
	}

	return e.interactLoop(instance.NewRouter(reg))
}

// interactLoop reads terminal input until exit is requested or input ends.
func (e *Env) interactLoop(router *instance.Router) error {
	scanner := bufio.NewScanner(e.Stdin)
	for scanner.Scan() {
		line := scanner.Text()
		cmd, err := instance.ParseMeta(line)
		if err != nil {
			fmt.Fprintf(e.Stderr, "%v\n", err)
			continue
		}
		if cmd != nil {
			out, err := router.Dispatch(*cmd)
			if errors.Is(err, instance.ErrExitRequested) {
				return nil
			}
			if err != nil {
				fmt.Fprintf(e.Stderr, "%v\n", err)
				continue
			}
			e.printf("%s", out)
			continue
		}

		target := router.Target()
		if target == nil {
			fmt.Fprintln(e.Stderr, "no instance selected ('!cgwt list' to see instances)")
			continue
		}
		if err := target.SendRaw(line); err != nil {
			fmt.Fprintf(e.Stderr, "send to %s: %v\n", target.Branch(), err)
		}
	}
	return scanner.Err()
}

// pumpEvents streams one instance's output to the terminal, tagged by
// branch. Structured assistant messages are unwrapped to their text payload
// when possible; everything else prints raw.
func (e *Env) pumpEvents(inst *instance.Instance) {
	tag := inst.Branch()
	for ev := range inst.Events() {
		switch {
		case ev.Message != nil:
			e.printf("[%s] %s\n", tag, renderMessage(ev.Message))
		default:
			e.printf("[%s] %s\n", tag, ev.Raw)
		}
	}
}

func renderMessage(msg *instance.Message) string {
	var body struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(msg.Payload, &body); err == nil && body.Text != "" {
		return body.Text
	}
	return fmt.Sprintf("%s: %s", msg.Type, string(msg.Payload))
}
