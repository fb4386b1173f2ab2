package worktree

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cgwt/internal/execx"
	"cgwt/internal/gitx"
)

func newTestBootstrapper(t *testing.T, responses map[string]execx.Result) (*Bootstrapper, *recordingRunner, string) {
	t.Helper()
	dir := t.TempDir()
	r := &recordingRunner{responses: responses}
	git := gitx.New(r.run, nil)
	return NewBootstrapper(dir, git, nil), r, dir
}

func plainRepoResponses(dir string) map[string]execx.Result {
	return map[string]execx.Result{
		"rev-parse --is-inside-work-tree":                   {Stdout: "true"},
		"rev-parse --path-format=absolute --git-common-dir": {Stdout: filepath.Join(dir, ".git")},
		"branch --show-current":                             {Stdout: "main"},
	}
}

func TestCanConvertRefusesDirtyTree(t *testing.T) {
	b, _, dir := newTestBootstrapper(t, nil)
	responses := plainRepoResponses(dir)
	responses["status --porcelain"] = execx.Result{Stdout: " M app.go\n?? scratch.txt"}
	b.git = gitx.New((&recordingRunner{responses: responses}).run, nil)

	// Non-empty dir with a .git directory so classification sees a plain repo.
	if err := os.MkdirAll(filepath.Join(dir, ".git"), 0o755); err != nil {
		t.Fatal(err)
	}

	ok, reason := b.CanConvert(context.Background())
	if ok {
		t.Fatal("expected refusal for dirty tree")
	}
	if !strings.Contains(reason, "uncommitted") {
		t.Errorf("reason = %q, want mention of uncommitted changes", reason)
	}
}

func TestCanConvertRefusesSubmodules(t *testing.T) {
	b, _, dir := newTestBootstrapper(t, nil)
	responses := plainRepoResponses(dir)
	responses["status --porcelain"] = execx.Result{}
	responses["submodule status"] = execx.Result{Stdout: " 1234abcd vendor/dep (v1.0)"}
	b.git = gitx.New((&recordingRunner{responses: responses}).run, nil)

	if err := os.MkdirAll(filepath.Join(dir, ".git"), 0o755); err != nil {
		t.Fatal(err)
	}

	ok, reason := b.CanConvert(context.Background())
	if ok {
		t.Fatal("expected refusal for submodules")
	}
	if !strings.Contains(reason, "submodule") {
		t.Errorf("reason = %q", reason)
	}
}

func TestCanConvertRefusesAlreadyAdministrative(t *testing.T) {
	b, _, dir := newTestBootstrapper(t, nil)
	responses := map[string]execx.Result{
		"rev-parse --is-inside-work-tree":                   {Stdout: "true"},
		"rev-parse --path-format=absolute --git-common-dir": {Stdout: filepath.Join(dir, ".bare")},
		"branch --show-current":                             {Stdout: "main"},
	}
	b.git = gitx.New((&recordingRunner{responses: responses}).run, nil)

	if err := os.MkdirAll(filepath.Join(dir, ".bare"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".git"), []byte(gitx.GitPointerContent), 0o644); err != nil {
		t.Fatal(err)
	}

	ok, reason := b.CanConvert(context.Background())
	if ok {
		t.Fatal("expected refusal")
	}
	if !strings.Contains(reason, "already") {
		t.Errorf("reason = %q", reason)
	}
}

func TestCanConvertRefusesNonRepo(t *testing.T) {
	b, _, dir := newTestBootstrapper(t, nil)
	if err := os.WriteFile(filepath.Join(dir, "f.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	ok, reason := b.CanConvert(context.Background())
	if ok {
		t.Fatal("expected refusal")
	}
	if !strings.Contains(reason, "not a git repository") {
		t.Errorf("reason = %q", reason)
	}
}

func TestConvertFailureLeavesRepositoryRestorable(t *testing.T) {
	b, _, dir := newTestBootstrapper(t, nil)
	responses := plainRepoResponses(dir)
	responses["status --porcelain"] = execx.Result{}
	responses["init --bare " + filepath.Join(dir, convertStageSuffix)] = execx.Result{}
	// The fetch into the staging store fails; everything must roll back.
	b.git = gitx.New((&recordingRunner{responses: responses}).run, nil)

	if err := os.MkdirAll(filepath.Join(dir, ".git"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".git", "HEAD"), []byte("ref: refs/heads/main\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := b.Convert(context.Background())
	if err == nil {
		t.Fatal("expected conversion failure")
	}

	// Original .git directory is untouched and no staging residue remains.
	if _, err := os.Stat(filepath.Join(dir, ".git", "HEAD")); err != nil {
		t.Errorf(".git directory damaged: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, convertStageSuffix)); !os.IsNotExist(err) {
		t.Error("staging bare store left behind")
	}
	if _, err := os.Stat(filepath.Join(dir, gitBackupName)); !os.IsNotExist(err) {
		t.Error("backup left behind after rollback")
	}
}

func TestInitContainerSeedsFirstCommit(t *testing.T) {
	dir := t.TempDir()
	r := &recordingRunner{responses: map[string]execx.Result{
		"init -b main --separate-git-dir " + filepath.Join(dir, ".bare") + " " + dir:  {},
		"add README.md": {},
		"-c user.name=cgwt -c user.email=cgwt@localhost commit -m Initial commit": {},
	}}
	b := NewBootstrapper(dir, gitx.New(r.run, nil), nil)

	branch, err := b.InitContainer(context.Background(), "")
	if err != nil {
		t.Fatalf("InitContainer: %v", err)
	}
	if branch != "main" {
		t.Errorf("branch = %q, want main", branch)
	}

	pointer, err := os.ReadFile(filepath.Join(dir, ".git"))
	if err != nil {
		t.Fatalf("pointer file: %v", err)
	}
	if string(pointer) != gitx.GitPointerContent {
		t.Errorf("pointer = %q, want %q", pointer, gitx.GitPointerContent)
	}

	if _, err := os.Stat(filepath.Join(dir, "README.md")); err != nil {
		t.Errorf("README.md missing: %v", err)
	}
	if !r.called("-c user.name=cgwt -c user.email=cgwt@localhost commit") {
		t.Errorf("no commit issued, calls = %v", r.calls)
	}
}

func TestInitContainerFromRemote(t *testing.T) {
	dir := t.TempDir()
	bare := filepath.Join(dir, ".bare")
	r := &recordingRunner{responses: map[string]execx.Result{
		"clone --bare https://example.com/repo.git " + bare:            {},
		"config remote.origin.fetch +refs/heads/*:refs/remotes/origin/*": {},
		"fetch origin":              {},
		"config core.bare false":    {},
		"symbolic-ref --short HEAD": {Stdout: "develop"},
	}}
	b := NewBootstrapper(dir, gitx.New(r.run, nil), nil)

	branch, err := b.InitContainer(context.Background(), "https://example.com/repo.git")
	if err != nil {
		t.Fatalf("InitContainer: %v", err)
	}
	if branch != "develop" {
		t.Errorf("branch = %q, want develop", branch)
	}
	if _, err := os.Stat(filepath.Join(dir, ".git")); err != nil {
		t.Errorf("pointer file missing: %v", err)
	}
}
