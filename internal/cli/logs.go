// pattern: Imperative Shell
package cli

import (
	"bufio"
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"cgwt/internal/logging"
)

const defaultLogTail = 50

// runLogs prints the most recent structured entries from the log file,
// optionally filtered to a scope prefix.
func (e *Env) runLogs(args []string) error {
	fs := flag.NewFlagSet("logs", flag.ContinueOnError)
	fs.SetOutput(e.Stderr)
	count := fs.IntP("lines", "n", defaultLogTail, "number of entries to print")
	scope := fs.String("scope", "", "only entries whose scope starts with this prefix")
	follow := fs.BoolP("follow", "f", false, "stream entries from the live feed instead of the file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *follow {
		// The live feed is the in-process channel sink; it streams until
		// the log manager closes.
		for entry := range e.Logs.Entries() {
			if entry.MatchesScope(*scope) {
				fmt.Fprintln(e.Stdout, entry.String())
			}
		}
		return nil
	}

	entries, err := tailLogFile(e.LogFile, *count, *scope)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(e.Stdout, "no log entries")
		return nil
	}
	for _, entry := range entries {
		fmt.Fprintln(e.Stdout, entry.String())
	}
	return nil
}

// tailLogFile reads the newest count entries matching the scope prefix.
// Unparseable lines (partial writes, rotation seams) are skipped.
func tailLogFile(path string, count int, scope string) ([]logging.LogEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil // nothing logged yet
		}
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var entries []logging.LogEntry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		entry, err := logging.ParseRecord(scanner.Bytes())
		if err != nil || !entry.MatchesScope(scope) {
			continue
		}
		entries = append(entries, entry)
		if len(entries) > count {
			entries = entries[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return entries, nil
}
