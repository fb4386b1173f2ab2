// pattern: Imperative Shell
package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"

	flag "github.com/spf13/pflag"

	"cgwt/internal/cli"
	"cgwt/internal/config"
	"cgwt/internal/execx"
	"cgwt/internal/instance"
	"cgwt/internal/logging"
)

var version = "dev"

const logFileName = "cgwt.log"

func main() {
	// Stop parsing flags after the first non-flag arg (the subcommand),
	// so that --help after a subcommand is handled by the subcommand.
	flag.CommandLine.SetInterspersed(false)

	configDir := flag.StringP("config-dir", "c", "", "config directory (default: ~/.config/cgwt)")

	flag.Usage = func() {
		env, cleanup, err := buildEnv(*configDir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		defer cleanup()
		cli.BuildApp(env).PrintHelp(os.Stderr)
		flag.PrintDefaults()
	}

	flag.Parse()

	env, cleanup, err := buildEnv(*configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	args := flag.Args()
	if needsLock(args) {
		fl, err := instance.Lock(env.DataDir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v (try 'cgwt cleanup' if no other run is active)\n", err)
			cleanup()
			os.Exit(1)
		}
		defer instance.Unlock(fl)
	}

	code := cli.BuildApp(env).Execute(args)
	cleanup()
	os.Exit(code)
}

// needsLock reports whether the command mutates the session fleet and must
// therefore exclude concurrent orchestrator runs.
func needsLock(args []string) bool {
	if len(args) == 0 {
		return false
	}
	switch args[0] {
	case "launch", "shutdown", "run":
		return true
	}
	return false
}

// buildEnv assembles the command environment: config, logging, the system
// command runner, and the exec handoff used for tmux attach.
func buildEnv(configDir string) (*cli.Env, func(), error) {
	cfg, err := loadConfig(configDir)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ValidateRuntime(); err != nil {
		return nil, nil, err
	}

	dataDir := cli.ResolveDataDir(configDir)
	logFile := filepath.Join(dataDir, logFileName)
	logs, err := logging.NewManager(logging.Config{
		FilePath: logFile,
		Level:    cfg.LogLevel,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("initialize logging: %w", err)
	}

	workDir, err := os.Getwd()
	if err != nil {
		_ = logs.Close()
		return nil, nil, err
	}

	env := &cli.Env{
		Config:  cfg,
		Logs:    logs,
		Run:     execx.System(cfg.CommandTimeout()),
		DataDir: dataDir,
		LogFile: logFile,
		WorkDir: workDir,
		Version: version,
		Stdin:   os.Stdin,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
		Exec:    execReplace,
	}
	return env, func() { _ = logs.Close() }, nil
}

func loadConfig(configDir string) (config.Config, error) {
	if configDir != "" {
		return config.LoadFromDir(configDir)
	}
	return config.Load()
}

// execReplace hands the terminal over to argv, replacing this process. Only
// reached for tmux attach, which needs the caller's stdio.
func execReplace(argv []string) error {
	path, err := exec.LookPath(argv[0])
	if err != nil {
		return err
	}
	return syscall.Exec(path, argv, os.Environ())
}
