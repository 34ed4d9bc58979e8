// Package shellrun wires grammar, plan, launch, and jobtable into the
// execution cycle of spec.md §2: parse → expand → plan → fork → exec →
// track → reap, for one input line at a time. It is the seam cmd/dsh
// calls into; it never touches stdin itself, so it works the same way
// whether the caller is a real line editor (out of scope) or a simple
// line reader over a script file.
package shellrun

import (
	"errors"
	"os"

	"golang.org/x/term"

	"github.com/lazyshell/dsh/internal/builtins"
	"github.com/lazyshell/dsh/internal/dispatch"
	"github.com/lazyshell/dsh/internal/dshlog"
	"github.com/lazyshell/dsh/internal/expand"
	"github.com/lazyshell/dsh/internal/grammar"
	"github.com/lazyshell/dsh/internal/hooks"
	"github.com/lazyshell/dsh/internal/jobtable"
	"github.com/lazyshell/dsh/internal/launch"
	"github.com/lazyshell/dsh/internal/lispeval"
	"github.com/lazyshell/dsh/internal/plan"
	"github.com/lazyshell/dsh/internal/shellerr"
	"github.com/lazyshell/dsh/internal/shelljob"
	"github.com/lazyshell/dsh/internal/shenv"
	"github.com/lazyshell/dsh/internal/termctl"
)

// Shell bundles the live state one running dsh process needs: its
// Environment, job table, and launch context. One Shell handles the
// whole process lifetime; it is not safe to share across processes.
type Shell struct {
	Env      *shenv.Environment
	Launcher *launch.Launcher
	Jobs     *jobtable.Table
	Disp     *dispatch.Dispatcher
	Hooks    *hooks.Registry
	Term     *termctl.Controller

	Interactive bool
	StrictGlob  bool

	// LastCapture holds the most recent capture_output job's collected
	// stdout (spec.md §4.1's capture_suffix, §4.4's "wired to an
	// in-memory capture if the job is marked capture_output"), for a
	// Lisp-facing `sh`-style caller to read back after RunLine returns.
	LastCapture string
}

// New assembles a Shell ready to run lines. lisp may be lispeval.Null{}.
// interactive gates job-control terminal handoff (spec.md §4.6); it
// should be false for -c/-l/--notebook invocations, true for an
// interactive session attached to a terminal.
func New(interactive bool, strictGlob bool, lisp lispeval.Evaluator) *Shell {
	env := shenv.New()
	env.RefreshExecutableNames()

	term := termctl.New(int(os.Stdin.Fd()), interactive)
	l := launch.New(env, lisp)
	jt := jobtable.New(l, term)
	bt := builtins.New(env)
	disp := dispatch.New(env, bt, lisp, jt)
	hk := hooks.New(lisp)
	hk.BindChpwd(env)

	return &Shell{
		Env: env, Launcher: l, Jobs: jt, Disp: disp, Hooks: hk, Term: term,
		Interactive: interactive, StrictGlob: strictGlob,
	}
}

// IsInteractiveTTY reports whether fd is a real terminal, the test
// spec.md §6 names for choosing interactive vs. pipe mode at startup.
func IsInteractiveTTY(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// RunLine parses, plans, and runs one input line to completion,
// returning the exit code of its last job (spec.md §6's exit-code
// convention) and a *builtins.ExitRequested error if the line invoked
// `exit`.
func (s *Shell) RunLine(line string) (int, error) {
	s.Hooks.PreExec(line)

	tree, err := grammar.Parse(line)
	if err != nil {
		dshlog.ReportFailure("dsh", err.Error(), nil)
		s.Hooks.PostExec(line, 1)
		return 1, nil
	}

	ctx := launch.Context{Interactive: s.Interactive, Foreground: true, Term: s.Term}
	pl := plan.New(s.Env, s.Disp, s.Launcher, expand.Options{StrictGlob: s.StrictGlob}, ctx)

	list, err := pl.Plan(tree)
	if err != nil {
		s.reportPlanError(err)
		s.Hooks.PostExec(line, 1)
		return 1, nil
	}

	code := 0
	for _, job := range list.Jobs {
		if job.ListOp == shelljob.And && code != 0 {
			continue
		}
		if job.ListOp == shelljob.Or && code == 0 {
			continue
		}

		runErr := s.runJob(job)
		code = job.ExitCode()

		var exitReq *builtins.ExitRequested
		if errors.As(runErr, &exitReq) {
			s.Hooks.PostExec(line, exitReq.Code)
			return exitReq.Code, exitReq
		}
		if runErr != nil {
			dshlog.ReportFailure(job.Cmd, runErr.Error(), nil)
		}
	}

	s.Hooks.PostExec(line, code)
	return code, nil
}

func (s *Shell) runJob(job *shelljob.Job) error {
	ctx := launch.Context{Interactive: s.Interactive, Foreground: job.Foreground, Term: s.Term}

	if job.CaptureOutput {
		text, _, err := s.Launcher.CaptureOutput(job, ctx)
		s.LastCapture = text
		return err
	}

	if err := s.Launcher.Launch(job, ctx); err != nil {
		return err
	}
	s.Jobs.Register(job)

	if job.Foreground {
		return s.Jobs.WaitForeground(job)
	}
	dshlog.Infof("[%d] %d", job.ID, job.Pgid)
	return nil
}

// RunLineCapturing runs line the way a Lisp `sh` call does: it forces
// the final job's stdout to be buffered rather than inherited,
// regardless of whether the line itself carries a `|%` capture_suffix,
// and returns the captured text alongside the usual exit code.
func (s *Shell) RunLineCapturing(line string) (string, int, error) {
	tree, err := grammar.Parse(line)
	if err != nil {
		return "", 1, err
	}

	ctx := launch.Context{Interactive: false, Foreground: true, Term: s.Term}
	pl := plan.New(s.Env, s.Disp, s.Launcher, expand.Options{StrictGlob: s.StrictGlob}, ctx)
	list, err := pl.Plan(tree)
	if err != nil {
		return "", 1, err
	}
	if len(list.Jobs) == 0 {
		return "", 0, nil
	}

	code := 0
	var text string
	for i, job := range list.Jobs {
		if job.ListOp == shelljob.And && code != 0 {
			continue
		}
		if job.ListOp == shelljob.Or && code == 0 {
			continue
		}

		isLast := i == len(list.Jobs)-1
		if isLast {
			job.CaptureOutput = true
		}
		if err := s.runJob(job); err != nil {
			return text, job.ExitCode(), err
		}
		code = job.ExitCode()
		if isLast {
			text = s.LastCapture
		}
	}
	return text, code, nil
}

func (s *Shell) reportPlanError(err error) {
	var resErr *shellerr.ResolutionError
	if errors.As(err, &resErr) {
		dshlog.ReportFailure(resErr.Cmd, "unknown command", resErr.Suggestions)
		return
	}
	dshlog.ReportFailure("dsh", err.Error(), nil)
}

// PollBackground reports any background job transitions since the last
// call, for the caller to print before the next prompt (spec.md §4.5).
func (s *Shell) PollBackground() []jobtable.Notification {
	return s.Jobs.PollBackground()
}

// Shutdown signals and reaps any outstanding background jobs.
func (s *Shell) Shutdown() {
	s.Jobs.Close()
	s.Jobs.KillAllWait()
	if s.Term != nil {
		s.Term.RestoreShellForeground()
	}
}
