package launch

import (
	"fmt"
	"os"

	"github.com/lazyshell/dsh/internal/shellerr"
	"github.com/lazyshell/dsh/internal/shelljob"
)

// applyRedirections opens every process's per-process redirections
// (spec.md §4.1's "redirect" production: <, >, >>, 2>, 2>>, &>, &>>) and
// the job's whole-job trailing redirection, installing the resulting
// *os.File on the relevant Process.Stdin/Stdout/Stderr. It runs after
// wirePipes so a file redirection on the first or last stage overrides
// the pipe end wirePipes installed there.
func (l *Launcher) applyRedirections(job *shelljob.Job) error {
	for i, p := range job.Processes {
		for _, r := range p.Redirects {
			if err := applyOne(p, r); err != nil {
				return &shellerr.RedirectError{Target: r.Target, Op: r.Op, Err: err}
			}
		}
		if i == len(job.Processes)-1 && job.Redirect != nil {
			if err := applyOne(p, job.Redirect); err != nil {
				return &shellerr.RedirectError{Target: job.Redirect.Target, Op: job.Redirect.Op, Err: err}
			}
		}
	}
	return nil
}

func applyOne(p *shelljob.Process, r *shelljob.Redirect) error {
	switch r.Op {
	case "<":
		f, err := os.Open(r.Target)
		if err != nil {
			return err
		}
		if p.StdinIsPipeRead && p.Stdin != nil {
			p.Stdin.Close()
		}
		p.Stdin = f
		p.StdinIsPipeRead = false
	case ">", ">>":
		f, err := openForWrite(r.Target, r.Op == ">>")
		if err != nil {
			return err
		}
		if p.StdoutIsPipeWrite && p.Stdout != nil {
			p.Stdout.Close()
		}
		p.Stdout = f
		p.StdoutIsPipeWrite = false
	case "2>", "2>>":
		f, err := openForWrite(r.Target, r.Op == "2>>")
		if err != nil {
			return err
		}
		p.Stderr = f
	case "&>", "&>>":
		f, err := openForWrite(r.Target, r.Op == "&>>")
		if err != nil {
			return err
		}
		if p.StdoutIsPipeWrite && p.Stdout != nil {
			p.Stdout.Close()
		}
		p.Stdout = f
		p.StdoutIsPipeWrite = false
		p.Stderr = f
	default:
		return fmt.Errorf("dsh: unsupported redirection operator %q", r.Op)
	}
	return nil
}

func openForWrite(target string, appendMode bool) (*os.File, error) {
	flags := os.O_WRONLY | os.O_CREATE
	if appendMode {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	return os.OpenFile(target, flags, 0o644)
}
