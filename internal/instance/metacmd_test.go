package instance

import (
	"errors"
	"strings"
	"testing"
)

func TestParseMeta(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    *MetaCommand
		wantErr bool
	}{
		{"not meta", "fix the failing test", nil, false},
		{"prefix inside text", "run !cgwt list for me", nil, false},
		{"list", "!cgwt list", &MetaCommand{Kind: MetaList}, false},
		{"select index", "!cgwt select 2", &MetaCommand{Kind: MetaSelect, Arg: "2"}, false},
		{"select branch", "!cgwt select feature/x", &MetaCommand{Kind: MetaSelect, Arg: "feature/x"}, false},
		{"select bare", "!cgwt select", &MetaCommand{Kind: MetaSelect}, false},
		{"broadcast", "!cgwt broadcast run the tests", &MetaCommand{Kind: MetaBroadcast, Arg: "run the tests"}, false},
		{"broadcast empty", "!cgwt broadcast", nil, true},
		{"exit", "!cgwt exit", &MetaCommand{Kind: MetaExit}, false},
		{"bare prefix", "!cgwt", nil, true},
		{"unknown verb", "!cgwt restart", nil, true},
		{"surrounding whitespace", "  !cgwt list  ", &MetaCommand{Kind: MetaList}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMeta(tt.line)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.want == nil {
				if got != nil {
					t.Errorf("got %+v, want nil", got)
				}
				return
			}
			if got == nil || got.Kind != tt.want.Kind || got.Arg != tt.want.Arg {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func routerFixture(t *testing.T) (*Router, *Instance, *Instance, *Instance) {
	t.Helper()
	reg := NewRegistry(nil)
	sup, _ := New(Options{Role: RoleSupervisor, Binary: "claude"})
	dev := newChild(t, "develop")
	main := newChild(t, "main")
	for _, inst := range []*Instance{sup, dev, main} {
		if err := reg.Register(inst); err != nil {
			t.Fatalf("Register: %v", err)
		}
	}
	return NewRouter(reg), sup, dev, main
}

func TestRouterDefaultsToSupervisor(t *testing.T) {
	r, sup, _, _ := routerFixture(t)
	if r.Target() != sup {
		t.Error("router should target the supervisor initially")
	}
}

func TestRouterSelect(t *testing.T) {
	r, sup, dev, main := routerFixture(t)

	if _, err := r.Dispatch(MetaCommand{Kind: MetaSelect, Arg: "main"}); err != nil {
		t.Fatalf("select main: %v", err)
	}
	if r.Target() != main {
		t.Error("target should be main")
	}

	// 1-based child index, list order is sorted by branch.
	if _, err := r.Dispatch(MetaCommand{Kind: MetaSelect, Arg: "1"}); err != nil {
		t.Fatalf("select 1: %v", err)
	}
	if r.Target() != dev {
		t.Error("index 1 should be develop")
	}

	// 0 and the empty argument both mean the supervisor.
	if _, err := r.Dispatch(MetaCommand{Kind: MetaSelect, Arg: "0"}); err != nil {
		t.Fatalf("select 0: %v", err)
	}
	if r.Target() != sup {
		t.Error("index 0 should be the supervisor")
	}

	if _, err := r.Dispatch(MetaCommand{Kind: MetaSelect, Arg: "9"}); err == nil {
		t.Error("out-of-range index should fail")
	}
	if _, err := r.Dispatch(MetaCommand{Kind: MetaSelect, Arg: "nope"}); err == nil {
		t.Error("unknown branch should fail")
	}
	if r.Target() != sup {
		t.Error("failed select must not move the target")
	}
}

func TestRouterList(t *testing.T) {
	r, _, _, _ := routerFixture(t)
	out, err := r.Dispatch(MetaCommand{Kind: MetaList})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("list output:\n%s", out)
	}
	if !strings.Contains(lines[0], "supervisor") || !strings.Contains(lines[0], "*") {
		t.Errorf("first line should be the starred supervisor: %q", lines[0])
	}
	if !strings.Contains(lines[1], "develop") || !strings.Contains(lines[2], "main") {
		t.Errorf("children out of order:\n%s", out)
	}
}

func TestRouterBroadcastSkipsInactive(t *testing.T) {
	r, _, _, _ := routerFixture(t)
	// No child has been started, so none accept input.
	out, err := r.Dispatch(MetaCommand{Kind: MetaBroadcast, Arg: "run tests"})
	if err != nil {
		t.Fatalf("broadcast: %v", err)
	}
	if !strings.Contains(out, "0 instance(s)") {
		t.Errorf("out = %q, want zero sends", out)
	}
}

func TestRouterExit(t *testing.T) {
	r, _, _, _ := routerFixture(t)
	if _, err := r.Dispatch(MetaCommand{Kind: MetaExit}); !errors.Is(err, ErrExitRequested) {
		t.Errorf("exit = %v, want ErrExitRequested", err)
	}
}
