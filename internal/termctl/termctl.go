// Package termctl implements spec.md §4.6: signal disposition at shell
// startup, the signal reset applied to children before execve, and the
// controlling-terminal handoff between the shell and a foreground job's
// process group. It mirrors the signal set canonical-lxd's lxc/exec_unix.go
// installs a handler for, but here the shell installs dispositions on
// itself rather than forwarding them over a control socket.
package termctl

import (
	"os"
	"os/signal"
	"sync"

	"golang.org/x/sys/unix"
	"golang.org/x/term"

	"github.com/lazyshell/dsh/internal/dshlog"
)

// JobControlSignals is the set the shell ignores on startup and resets to
// default in every forked child, per spec.md §4.6.
var JobControlSignals = []os.Signal{
	unix.SIGINT,
	unix.SIGQUIT,
	unix.SIGTSTP,
	unix.SIGTTIN,
	unix.SIGTTOU,
}

// Controller owns the shell's controlling-terminal state.
type Controller struct {
	TTYFd     int
	Interactive bool
	shellPgid int

	mu        sync.Mutex
	savedTerm *term.State
}

// New acquires the controlling terminal and makes the shell its own
// process group leader's foreground group, per spec.md §4.6's startup
// sequence. ttyFd should be a descriptor on the controlling terminal
// (typically os.Stdin.Fd()); New does not check that it is one. When
// interactive is false, the controller does nothing at startup and never
// touches signal dispositions.
//
// The job-control signals are intercepted with signal.Notify rather than
// signal.Ignore: Notify installs a Go runtime handler, and POSIX resets a
// *handled* signal to SIG_DFL across execve (only SIG_IGN survives exec).
// That gives every launched child the default disposition for free,
// which is spec.md §4.6's "reset the six signals above to default before
// execve" — without needing code in an unreachable fork/exec gap, since
// os/exec's fork+exec is a single atomic syscall from Go's perspective.
func New(ttyFd int, interactive bool) *Controller {
	c := &Controller{TTYFd: ttyFd, Interactive: interactive}
	if !interactive {
		return c
	}

	if err := unix.Setpgid(0, 0); err != nil {
		dshlog.Debugf("termctl: setpgid(0,0) failed: %v", err)
	}
	pgid, err := unix.Getpgid(os.Getpid())
	if err != nil {
		dshlog.Debugf("termctl: getpgid failed: %v", err)
	}
	c.shellPgid = pgid

	if err := unix.Tcsetpgrp(ttyFd, pgid); err != nil {
		dshlog.Debugf("termctl: tcsetpgrp(shell) failed: %v", err)
	}

	ignored := make(chan os.Signal, 16)
	signal.Notify(ignored, JobControlSignals...)
	go func() {
		for range ignored {
			// Swallowed: the interactive shell itself never reacts to
			// these; the terminal driver delivers them to whichever
			// process group currently owns the foreground.
		}
	}()

	return c
}

// ShellPgid is the shell's own process group id.
func (c *Controller) ShellPgid() int { return c.shellPgid }

// TransferForeground hands the controlling terminal's foreground group to
// pgid, saving the current terminal attributes first so they can be
// restored by RestoreShellForeground (spec.md §4.6: "transfer terminal
// ownership to the job's pgid").
func (c *Controller) TransferForeground(pgid int) error {
	if !c.Interactive {
		return nil
	}
	c.mu.Lock()
	if state, err := term.GetState(c.TTYFd); err == nil {
		c.savedTerm = state
	}
	c.mu.Unlock()

	return unix.Tcsetpgrp(c.TTYFd, pgid)
}

// RestoreShellForeground hands the terminal back to the shell's own
// process group and restores the terminal attributes saved by the last
// TransferForeground call (spec.md §4.6: "after the job stops or
// completes, transfer ownership back to the shell's pgid and restore the
// saved terminal attributes").
func (c *Controller) RestoreShellForeground() error {
	if !c.Interactive {
		return nil
	}
	err := unix.Tcsetpgrp(c.TTYFd, c.shellPgid)

	c.mu.Lock()
	saved := c.savedTerm
	c.mu.Unlock()
	if saved != nil {
		_ = term.Restore(c.TTYFd, saved)
	}
	return err
}
