package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

// cmdImport implements `dsh import <shell> [--path <file>]` (spec.md
// §6). History persistence itself is an explicit external collaborator
// (spec.md §1's non-goals), so this subcommand's only job is to read
// another shell's history file and print one normalized command per
// line to stdout — the format an external history store ingests.
type cmdImport struct {
	global *cmdGlobal

	flagPath string
}

func (c *cmdImport) command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <shell>",
		Short: "Import command history from another shell",
		Args:  cobra.ExactArgs(1),
		RunE:  c.run,
	}
	cmd.Flags().StringVar(&c.flagPath, "path", "", "Path to the source shell's history file (default: its usual location)")
	return cmd
}

func (c *cmdImport) run(cmd *cobra.Command, args []string) error {
	shellName := strings.ToLower(args[0])

	path := c.flagPath
	if path == "" {
		var err error
		path, err = defaultHistoryPath(shellName)
		if err != nil {
			return err
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("dsh: import: %s: %w", path, err)
	}
	defer f.Close()

	parse, ok := historyParsers[shellName]
	if !ok {
		return fmt.Errorf("dsh: import: unsupported shell %q (supported: bash, zsh, fish)", args[0])
	}

	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()

	n := 0
	err = parse(f, func(line string) {
		if line == "" {
			return
		}
		fmt.Fprintln(out, line)
		n++
	})
	if err != nil {
		return fmt.Errorf("dsh: import: %s: %w", path, err)
	}

	fmt.Fprintf(os.Stderr, "dsh: import: read %d entries from %s\n", n, path)
	return nil
}

func defaultHistoryPath(shellName string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("dsh: import: %w", err)
	}
	switch shellName {
	case "bash":
		return filepath.Join(home, ".bash_history"), nil
	case "zsh":
		return filepath.Join(home, ".zsh_history"), nil
	case "fish":
		return filepath.Join(home, ".local", "share", "fish", "fish_history"), nil
	default:
		return "", fmt.Errorf("dsh: import: unsupported shell %q (supported: bash, zsh, fish)", shellName)
	}
}

// historyParsers maps a shell name to a function reading its history
// file format and reporting each recovered command line via emit, in
// original order.
var historyParsers = map[string]func(f *os.File, emit func(string)) error{
	"bash": parsePlainHistory,
	"zsh":  parseZshHistory,
	"fish": parseFishHistory,
}

// parsePlainHistory handles bash's format: one command per line, with no
// metadata (HISTTIMEFORMAT timestamps, when present, are a separate
// "#<unix-time>" comment line preceding the command and are skipped).
func parsePlainHistory(f *os.File, emit func(string)) error {
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(line, "#") {
			continue
		}
		emit(line)
	}
	return sc.Err()
}

// parseZshHistory handles zsh's extended history format:
// ": <start>:<duration>;<command>", falling back to a plain line when
// the entry carries no ": " metadata prefix (EXTENDED_HISTORY off).
func parseZshHistory(f *os.File, emit func(string)) error {
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(line, ": ") {
			if _, cmd, ok := strings.Cut(line, ";"); ok {
				emit(cmd)
				continue
			}
		}
		emit(line)
	}
	return sc.Err()
}

// parseFishHistory handles fish's YAML-ish history format: each entry
// starts with "- cmd: <command>", followed by metadata lines (e.g.
// "  when: <unix-time>") this importer discards.
func parseFishHistory(f *os.File, emit func(string)) error {
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if cmd, ok := strings.CutPrefix(line, "- cmd: "); ok {
			emit(unescapeFishCmd(cmd))
		}
	}
	return sc.Err()
}

// unescapeFishCmd reverses fish's backslash escaping of its history
// value field (only the two escapes fish actually emits there).
func unescapeFishCmd(s string) string {
	r := strings.NewReplacer(`\\`, `\`, `\n`, "\n")
	return r.Replace(s)
}
