// Package launch implements the Launcher of spec.md §4.4: pipe
// allocation, redirection, fork/exec, process-group assignment, and the
// optional PTY path. It is the sole owner of pipeline file descriptors
// (spec.md §9): once a descriptor is duped into a child and closed in the
// parent, it is gone, and captured descriptors are explicitly handed to
// their consumer.
package launch

import (
	"os"

	"github.com/lazyshell/dsh/internal/lispeval"
	"github.com/lazyshell/dsh/internal/shelljob"
	"github.com/lazyshell/dsh/internal/shenv"
	"github.com/lazyshell/dsh/internal/termctl"
)

// Context carries the per-launch state the protocol in spec.md §4.4
// needs beyond the Job itself: whether the shell is interactive, whether
// this job should take the controlling terminal, and whether to run it
// behind a PTY.
type Context struct {
	Interactive bool
	Foreground  bool
	PTY         bool
	Term        *termctl.Controller
}

// Launcher runs Jobs against the kernel.
type Launcher struct {
	env  *shenv.Environment
	lisp lispeval.Evaluator

	// devFD caches whether /dev/fd exists, checked once at startup
	// (spec.md §4.4's process-substitution fallback).
	devFD bool
}

// New creates a Launcher bound to env, running UserFunction processes
// (spec.md §4.4) through lisp. It probes for /dev/fd once.
func New(env *shenv.Environment, lisp lispeval.Evaluator) *Launcher {
	_, err := os.Stat("/dev/fd")
	return &Launcher{env: env, lisp: lisp, devFD: err == nil}
}

// HasDevFD reports whether /dev/fd is usable on this system.
func (l *Launcher) HasDevFD() bool { return l.devFD }

// Launch runs every process in job, wiring pipes between pipeline
// stages, applying redirections, forking external processes, and running
// builtins/user functions in-process (or on a goroutine with piped I/O
// when they sit inside a multi-stage pipeline — see builtin.go). It does
// not wait for the job; callers use jobtable for that, per spec.md §4.4's
// separation of launching from reaping.
func (l *Launcher) Launch(job *shelljob.Job, ctx Context) error {
	if err := l.wirePipes(job); err != nil {
		return err
	}
	if err := l.applyRedirections(job); err != nil {
		l.closeParentPipeEnds(job)
		return err
	}

	firstPid := 0
	for i, p := range job.Processes {
		isFirst := i == 0
		switch p.Kind {
		case shelljob.External:
			pid, err := l.forkExternal(job, p, isFirst, firstPid, ctx)
			if err != nil {
				l.closeParentPipeEnds(job)
				return err
			}
			p.Pid = pid
			p.State = shelljob.Running
			if isFirst {
				firstPid = pid
				job.Pgid = pid
			}
		default:
			// Builtins and user functions run without a kernel fork;
			// see builtin.go for the in-process and goroutine-piped cases.
			if err := l.runInProcess(job, p, len(job.Processes) > 1); err != nil {
				l.closeParentPipeEnds(job)
				return err
			}
		}
	}

	l.closeParentPipeEnds(job)
	return nil
}

// wirePipes allocates N-1 pipes for an N-process job and wires each
// process's Stdout/Stdin to them, per spec.md §4.4 step 1.
func (l *Launcher) wirePipes(job *shelljob.Job) error {
	for i := 0; i+1 < len(job.Processes); i++ {
		r, w, err := os.Pipe()
		if err != nil {
			return &pipeError{err}
		}
		job.Processes[i].Stdout = w
		job.Processes[i].StdoutIsPipeWrite = true
		job.Processes[i+1].Stdin = r
		job.Processes[i+1].StdinIsPipeRead = true
	}
	return nil
}

type pipeError struct{ err error }

func (e *pipeError) Error() string { return "dsh: pipe: " + e.err.Error() }
func (e *pipeError) Unwrap() error { return e.err }

// closeParentPipeEnds closes every inter-stage pipe descriptor the
// launcher itself opened, once every process in the job has been
// started (spec.md §4.4 step 5, §8's "all parent copies of pipeline fds
// are closed before the foreground wait"). Redirection-opened files and
// CaptureOut read ends are left alone: their lifetime is owned by
// applyRedirections's caller or by CaptureOutput respectively.
func (l *Launcher) closeParentPipeEnds(job *shelljob.Job) {
	for _, p := range job.Processes {
		// Builtins/user functions run on a goroutine (see runInProcess)
		// that owns its pipe ends directly and closes them itself once
		// done, since a real process's exec.Cmd.Start has already
		// returned by this point but an in-process goroutine may still
		// be writing.
		if p.Kind != shelljob.External {
			continue
		}
		if p.StdoutIsPipeWrite && p.Stdout != nil {
			p.Stdout.Close()
		}
		if p.StdinIsPipeRead && p.Stdin != nil {
			p.Stdin.Close()
		}
	}
}
