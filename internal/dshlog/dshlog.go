// Package dshlog is the core's logging and user-facing error rendering
// surface. It mirrors the call pattern canonical-lxd's lxc commands use
// against shared/logger (Debugf/Infof/Warnf), backed by logrus instead,
// and adds the colored one-line failure format from spec.md §7.
package dshlog

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

var std = logrus.New()

func init() {
	std.SetOutput(io.Discard)
	std.SetLevel(logrus.WarnLevel)
}

// SetVerbose raises the log level to Info; SetDebug raises it to Debug.
// Both route formatted records to stderr, matching the teacher's
// flagLogVerbose/flagLogDebug split in lxc/main.go.
func SetVerbose(on bool) {
	if on && std.GetLevel() < logrus.InfoLevel {
		std.SetLevel(logrus.InfoLevel)
		std.SetOutput(os.Stderr)
	}
}

func SetDebug(on bool) {
	if on {
		std.SetLevel(logrus.DebugLevel)
		std.SetOutput(os.Stderr)
	}
}

func Debugf(format string, args ...interface{}) { std.Debugf(format, args...) }
func Infof(format string, args ...interface{})  { std.Infof(format, args...) }
func Warnf(format string, args ...interface{})  { std.Warnf(format, args...) }
func Errorf(format string, args ...interface{}) { std.Errorf(format, args...) }

// errWriter is stderr wrapped for ANSI color, matching canonical-lxd's use
// of go-colorable so colored output degrades gracefully on Windows
// terminals; colors are suppressed entirely when stderr isn't a TTY.
var errWriter io.Writer = colorable.NewColorableStderr()

const (
	red    = "\x1b[31m"
	reset  = "\x1b[0m"
	yellow = "\x1b[33m"
)

// ReportFailure prints the spec's mandated one-line failure format:
//
//	dsh: <cmd>: <reason>
//
// with an optional "Did you mean: ...?" suggestion line.
func ReportFailure(cmd, reason string, suggestions []string) {
	colored := isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
	if colored {
		fmt.Fprintf(errWriter, "%sdsh: %s: %s%s\n", red, cmd, reason, reset)
	} else {
		fmt.Fprintf(errWriter, "dsh: %s: %s\n", cmd, reason)
	}
	if len(suggestions) > 0 {
		line := "Did you mean: " + joinWithOr(suggestions) + "?"
		if colored {
			fmt.Fprintf(errWriter, "%s%s%s\n", yellow, line, reset)
		} else {
			fmt.Fprintln(errWriter, line)
		}
	}
}

func joinWithOr(items []string) string {
	out := ""
	for i, it := range items {
		if i > 0 {
			out += ", "
		}
		out += it
	}
	return out
}
