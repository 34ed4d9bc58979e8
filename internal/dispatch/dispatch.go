// Package dispatch implements spec.md §4.8's command-resolution order:
// builtin table, then user-defined Lisp function, then PATH lookup, then
// a directory-as-cd fallback, and finally an "unknown command" error
// carrying fuzzy-ranked similarity suggestions and firing the
// command-not-found hook. It also hosts the jobs/fg/bg builtins (spec.md
// §4.5): internal/builtins must not depend on internal/jobtable, so
// these three are registered here instead, against the live
// *jobtable.Table the rest of this Dispatcher's caller already built.
package dispatch

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/lazyshell/dsh/internal/builtins"
	"github.com/lazyshell/dsh/internal/jobtable"
	"github.com/lazyshell/dsh/internal/lispeval"
	"github.com/lazyshell/dsh/internal/shellerr"
	"github.com/lazyshell/dsh/internal/shelljob"
	"github.com/lazyshell/dsh/internal/shenv"
)

// Resolution is the outcome of resolving argv[0] to something runnable.
type Resolution struct {
	Kind       shelljob.Kind
	Cmd        string // resolved PATH entry for External, builtin name, or function name
	BuiltinFn  shelljob.BuiltinFunc
	UserFnName string
	// RewriteToCd is set when argv[0] resolves to no builtin, user
	// function, or PATH executable but names an existing directory (spec.md §4.8's
	// directory-as-cd-fallback rewrite); the planner should build a `cd`
	// invocation instead of forking argv[0].
	RewriteToCd string
}

// Dispatcher wires the builtin table, user-function evaluator,
// environment, and job table together to implement the resolution order.
type Dispatcher struct {
	env      *shenv.Environment
	builtins *builtins.Table
	lisp     lispeval.Evaluator
	jobs     *jobtable.Table
}

// New builds a Dispatcher. lisp may be lispeval.Null{} if no user
// functions or hooks are registered; jobs may be nil, in which case
// jobs/fg/bg resolve as unknown commands rather than job-control builtins.
func New(env *shenv.Environment, bt *builtins.Table, lisp lispeval.Evaluator, jobs *jobtable.Table) *Dispatcher {
	return &Dispatcher{env: env, builtins: bt, lisp: lisp, jobs: jobs}
}

// Resolve implements the resolution order of spec.md §4.8. name has
// already passed through alias expansion by the time it reaches here.
func (d *Dispatcher) Resolve(name string) (Resolution, error) {
	if fn := d.builtins.Lookup(name); fn != nil {
		return Resolution{Kind: shelljob.Builtin, Cmd: name, BuiltinFn: fn}, nil
	}

	if fn := d.jobControlBuiltin(name); fn != nil {
		return Resolution{Kind: shelljob.Builtin, Cmd: name, BuiltinFn: fn}, nil
	}

	if d.lisp.IsExported(name) {
		return Resolution{Kind: shelljob.UserFunction, Cmd: name, UserFnName: name}, nil
	}

	if path, ok := d.env.LookupCommand(name); ok {
		return Resolution{Kind: shelljob.External, Cmd: path}, nil
	}

	if st, err := os.Stat(name); err == nil && st.IsDir() {
		return Resolution{
			Kind:        shelljob.Builtin,
			Cmd:         "cd",
			BuiltinFn:   d.builtins.Lookup("cd"),
			RewriteToCd: name,
		}, nil
	}

	d.lisp.CallHook("command-not-found", name)
	return Resolution{}, &shellerr.ResolutionError{Cmd: name, Suggestions: d.suggest(name)}
}

// jobControlBuiltin returns the BuiltinFunc for "fg"/"bg"/"jobs" when
// this Dispatcher has a live job table, nil otherwise (no job table, or
// name isn't one of the three).
func (d *Dispatcher) jobControlBuiltin(name string) shelljob.BuiltinFunc {
	if d.jobs == nil {
		return nil
	}
	switch name {
	case "fg":
		return d.fg
	case "bg":
		return d.bg
	case "jobs":
		return d.jobsBuiltin
	default:
		return nil
	}
}

// fg implements spec.md §4.5's `fg [%job]`: resume a stopped or
// background job in the foreground and wait for it, returning its exit
// code as the builtin's own.
func (d *Dispatcher) fg(p *shelljob.Process) (int, error) {
	job, err := d.resolveJobArg(p.Argv)
	if err != nil {
		fmt.Fprintln(p.ErrOut(), err)
		return 1, nil
	}
	if err := d.jobs.BringToForeground(job); err != nil {
		fmt.Fprintln(p.ErrOut(), err)
		return 1, nil
	}
	return job.ExitCode(), nil
}

// bg implements spec.md §4.5's `bg [%job]`: resume a stopped job in the
// background without reclaiming the terminal.
func (d *Dispatcher) bg(p *shelljob.Process) (int, error) {
	job, err := d.resolveJobArg(p.Argv)
	if err != nil {
		fmt.Fprintln(p.ErrOut(), err)
		return 1, nil
	}
	if err := d.jobs.Continue(job); err != nil {
		fmt.Fprintln(p.ErrOut(), err)
		return 1, nil
	}
	fmt.Fprintf(p.Out(), "[%d] %s\n", job.ID, job.Cmd)
	return 0, nil
}

// jobsBuiltin implements spec.md §4.5's `jobs`: list every tracked job
// with its id and current state.
func (d *Dispatcher) jobsBuiltin(p *shelljob.Process) (int, error) {
	for _, j := range d.jobs.Jobs() {
		fmt.Fprintf(p.Out(), "[%d]  %s\t%s\n", j.ID, j.State(), j.Cmd)
	}
	return 0, nil
}

// resolveJobArg picks the job a bare `fg`/`bg` (most recently registered)
// or a `%<id>`-qualified one refers to.
func (d *Dispatcher) resolveJobArg(argv []string) (*shelljob.Job, error) {
	jobs := d.jobs.Jobs()
	if len(argv) == 0 {
		if len(jobs) == 0 {
			return nil, fmt.Errorf("dsh: no current job")
		}
		best := jobs[0]
		for _, j := range jobs {
			if j.ID > best.ID {
				best = j
			}
		}
		return best, nil
	}

	spec := strings.TrimPrefix(argv[0], "%")
	id, err := strconv.Atoi(spec)
	if err != nil {
		return nil, fmt.Errorf("dsh: %s: no such job", argv[0])
	}
	for _, j := range jobs {
		if j.ID == id {
			return j, nil
		}
	}
	return nil, fmt.Errorf("dsh: %%%d: no such job", id)
}

// suggest ranks PATH executable names and builtin names by similarity to
// name, using the fuzzy matcher the pack's raphi011-wt CLI depends on,
// for the "Did you mean: ...?" line (spec.md §4.8).
func (d *Dispatcher) suggest(name string) []string {
	candidates := append([]string{}, d.builtins.Names()...)
	if d.jobs != nil {
		candidates = append(candidates, "fg", "bg", "jobs")
	}
	candidates = append(candidates, d.env.ExecutableNames()...)

	matches := fuzzy.Find(name, candidates) // already sorted best-match-first

	const maxSuggestions = 3
	seen := map[string]bool{}
	var out []string
	for _, m := range matches {
		if seen[m.Str] {
			continue
		}
		seen[m.Str] = true
		out = append(out, m.Str)
		if len(out) == maxSuggestions {
			break
		}
	}
	return out
}
