package launch

import (
	"fmt"
	"sync"

	"github.com/lazyshell/dsh/internal/shelljob"
)

// runInProcess executes a Builtin or UserFunction Process. Go cannot fork
// a running process and keep executing arbitrary Go code in the child the
// way a C shell forks a builtin (there is no os/exec-style primitive for
// "continue this goroutine in a new address space"), so a builtin that
// sits inside a multi-stage pipeline instead runs on a goroutine wired to
// its pipe ends; the job table observes its completion through a done
// channel rather than a waitpid. A lone builtin (not part of a pipeline)
// runs synchronously in the caller, which is the common case (`cd`,
// `export`, `exit` typed at the prompt) and needs no concurrency at all.
//
// The Pid recorded for such a process is always 0 (spec.md §4.4: "builtin
// and user-function processes report pid 0"); jobtable's State()
// derivation already treats pid 0 processes as resolved once their done
// channel fires rather than waiting on a kernel reap.
func (l *Launcher) runInProcess(job *shelljob.Job, p *shelljob.Process, inPipeline bool) error {
	if !inPipeline {
		code, err := l.invoke(p)
		p.ExitCode = code
		p.State = shelljob.Completed
		return err
	}

	done := make(chan struct{})
	p.Done = done
	var once sync.Once
	closeDone := func() { once.Do(func() { close(done) }) }

	go func() {
		defer closeDone()
		defer closeBuiltinPipeEnds(p)

		code, err := l.invoke(p)
		p.ExitCode = code
		if err != nil {
			p.Err = err
		}
		p.State = shelljob.Completed
	}()

	return nil
}

func closeBuiltinPipeEnds(p *shelljob.Process) {
	if p.StdoutIsPipeWrite && p.Stdout != nil {
		p.Stdout.Close()
	}
	if p.StdinIsPipeRead && p.Stdin != nil {
		p.Stdin.Close()
	}
}

// invoke dispatches a Builtin to its BuiltinFn or a UserFunction to the
// Launcher's lispeval.Evaluator (spec.md §4.4: "Executed in the shell's
// own Lisp evaluator, in-process"). Built-ins read/write through
// p.In()/p.Out()/p.ErrOut() rather than the package-level os streams,
// since two builtins can be running concurrently on separate goroutines
// within the same pipeline and swapping process-global os.Stdout out
// from under them would race; a user function's returned output is
// written through the same p.Out() for the same reason, so it lands on
// whatever pipe or capture the process was wired to.
func (l *Launcher) invoke(p *shelljob.Process) (int, error) {
	if p.Kind == shelljob.UserFunction {
		output, code, err := l.lisp.EvalString(p.UserFnName, p.Argv)
		if output != "" {
			fmt.Fprint(p.Out(), output)
		}
		return code, err
	}
	if p.BuiltinFn == nil {
		return 1, nil
	}
	return p.BuiltinFn(p)
}
