// Package plan implements spec.md §4.3: turning a parsed Commands tree
// into a list of ready-to-launch Jobs. It performs every expansion step
// on every word, resolves argv[0] through internal/dispatch, recursively
// plans and evaluates nested subshells/command-substitutions/process-
// substitutions, and assigns each Job its list operator and background
// flag.
package plan

import (
	"os"
	"strings"

	"github.com/lazyshell/dsh/internal/dispatch"
	"github.com/lazyshell/dsh/internal/expand"
	"github.com/lazyshell/dsh/internal/grammar"
	"github.com/lazyshell/dsh/internal/launch"
	"github.com/lazyshell/dsh/internal/shellerr"
	"github.com/lazyshell/dsh/internal/shelljob"
	"github.com/lazyshell/dsh/internal/shenv"
)

// procSubstMarker stands in for a <(...) word during expansion; once the
// full argv for a simple command is known, every occurrence is replaced
// by its /dev/fd placeholder index and recorded on the Process so the
// launcher can wire the real descriptor in (spec.md §4.3 step 4). It uses
// NUL bytes, which can never appear in a parsed word, so it can't
// collide with real argument text.
const procSubstMarker = "\x00dsh-procsubst\x00"

// procSubstRef is the outcome of opening one <(...) substitution: either
// a readable pipe end the launcher will later install via cmd.ExtraFiles
// and a /dev/fd/<n> rewrite (file set), or, on a /dev/fd-less system, the
// path of a named FIFO the outer process can open directly by name (path
// set) — exactly one of the two is populated.
type procSubstRef struct {
	file *os.File
	path string
}

// Planner turns a Commands AST into Jobs, recursively evaluating any
// nested construct a word contains before the outer Job can be built.
type Planner struct {
	env    *shenv.Environment
	disp   *dispatch.Dispatcher
	launch *launch.Launcher
	opts   expand.Options
	ctx    launch.Context

	// procSubst accumulates the process-substitution references opened
	// while expanding the simple command currently being planned, in the
	// same left-to-right order their markers appear in its argv.
	procSubst []procSubstRef
}

// New builds a Planner. ctx is used as the launch.Context for any nested
// job this Planner evaluates via command/process substitution.
func New(env *shenv.Environment, disp *dispatch.Dispatcher, l *launch.Launcher, opts expand.Options, ctx launch.Context) *Planner {
	return &Planner{env: env, disp: disp, launch: l, opts: opts, ctx: ctx}
}

// PlannedList is one or more Jobs joined by list operators, in the order
// spec.md §4.3 evaluates them: left to right, short-circuiting on
// `&&`/`||` per each job's exit code.
type PlannedList struct {
	Jobs []*shelljob.Job
}

// Plan builds every Job in tree.
func (pl *Planner) Plan(tree *grammar.Commands) (*PlannedList, error) {
	out := &PlannedList{}

	job, err := pl.planCommand(tree.First)
	if err != nil {
		return nil, err
	}
	job.ListOp = shelljob.Seq
	out.Jobs = append(out.Jobs, job)

	for _, item := range tree.Rest {
		j, err := pl.planCommand(item.Cmd)
		if err != nil {
			return nil, err
		}
		switch item.Op {
		case "&&":
			j.ListOp = shelljob.And
		case "||":
			j.ListOp = shelljob.Or
		default:
			j.ListOp = shelljob.Seq
		}
		out.Jobs = append(out.Jobs, j)
	}
	return out, nil
}

func (pl *Planner) planCommand(cmd *grammar.Command) (*shelljob.Job, error) {
	processes := make([]*shelljob.Process, 0, len(cmd.Pipeline))
	background := false

	var raw strings.Builder
	for i, sc := range cmd.Pipeline {
		if i > 0 {
			raw.WriteString(" | ")
		}
		p, err := pl.planSimpleCommand(sc)
		if err != nil {
			return nil, err
		}
		processes = append(processes, p)
		raw.WriteString(p.Cmd)
		if sc.Background != nil {
			background = true
		}
	}

	job := shelljob.NewJob(raw.String(), processes)
	job.Foreground = !background
	job.CaptureOutput = cmd.Capture != nil
	return job, nil
}

func (pl *Planner) planSimpleCommand(sc *grammar.SimpleCommand) (*shelljob.Process, error) {
	pl.procSubst = nil

	words, err := pl.expandSpan(sc.Argv0)
	if err != nil {
		return nil, err
	}
	if len(words) == 0 {
		return nil, &shellerr.ExpansionError{Word: "", Msg: "empty command after expansion"}
	}

	tokens, _, err := expand.AliasExpand(words[0], pl.env)
	if err != nil {
		return nil, err
	}
	argv := append(append([]string{}, tokens...), words[1:]...)

	var redirects []*shelljob.Redirect
	for _, a := range sc.Args {
		if a.Redirect != nil {
			target, err := pl.expandSpan(a.Redirect.Target)
			if err != nil {
				return nil, err
			}
			redirects = append(redirects, &shelljob.Redirect{Op: a.Redirect.Op, Target: strings.Join(target, " ")})
			continue
		}
		more, err := pl.expandSpan(a.Span)
		if err != nil {
			return nil, err
		}
		argv = append(argv, more...)
	}

	res, err := pl.disp.Resolve(argv[0])
	if err != nil {
		return nil, err
	}
	if res.RewriteToCd != "" {
		argv = []string{"cd", res.RewriteToCd}
	}

	p := &shelljob.Process{
		Cmd:        res.Cmd,
		Argv:       argv[1:],
		Kind:       res.Kind,
		BuiltinFn:  res.BuiltinFn,
		UserFnName: res.UserFnName,
		Redirects:  redirects,
	}
	pl.resolveProcSubstMarkers(p)
	return p, nil
}

// resolveProcSubstMarkers replaces each procSubstMarker placeholder in
// p.Argv with its final text. A file-backed ref is left as a /dev/fd
// placeholder, rewritten for real once the launcher knows the child's fd
// table (see installProcSubst in internal/launch); a path-backed ref
// (the named-FIFO fallback) is resolved immediately, since its final
// text is already known at plan time and needs no fd-table bookkeeping.
func (pl *Planner) resolveProcSubstMarkers(p *shelljob.Process) {
	if len(pl.procSubst) == 0 {
		return
	}
	refs := pl.procSubst
	pl.procSubst = nil

	next := 0
	for i, arg := range p.Argv {
		if arg != procSubstMarker {
			continue
		}
		ref := refs[next]
		next++
		if ref.path != "" {
			p.Argv[i] = ref.path
			continue
		}
		p.ProcSubstFiles = append(p.ProcSubstFiles, ref.file)
		p.ArgPlaceholders = append(p.ArgPlaceholders, i)
		p.Argv[i] = "/dev/fd/placeholder"
	}
}

// expandSpan resolves one grammar.Span — a literal word, a quoted
// string, a bare variable reference, or a nested subshell/command/
// process substitution — to its final word(s), per spec.md §4.2 and
// §4.3 step 4 (nested constructs evaluated before the outer expansion
// continues).
func (pl *Planner) expandSpan(s *grammar.Span) ([]string, error) {
	switch {
	case s.Word != nil:
		return expand.ExpandWord(*s.Word, pl.env, pl.env.Cwd(), pl.opts)

	case s.DQuoted != nil:
		content := unquoteDouble(*s.DQuoted)
		return []string{expand.ExpandDoubleQuoted(content, pl.env)}, nil

	case s.SQuoted != nil:
		content := strings.TrimSuffix(strings.TrimPrefix(*s.SQuoted, "'"), "'")
		return []string{expand.ExpandSingleQuoted(content)}, nil

	case s.Variable != nil:
		return []string{expand.ExpandVariables(*s.Variable, pl.env)}, nil

	case s.Backtick != nil:
		inner := strings.TrimSuffix(strings.TrimPrefix(*s.Backtick, "`"), "`")
		return pl.evalCommandSubstText(inner)

	case s.CmdSubst != nil:
		return pl.evalCommandSubst(s.CmdSubst.Body)

	case s.Subshell != nil:
		return pl.evalSubshell(s.Subshell.Body)

	case s.ProcSubst != nil:
		ref, err := pl.evalProcessSubstitution(s.ProcSubst.Body)
		if err != nil {
			return nil, err
		}
		pl.procSubst = append(pl.procSubst, ref)
		return []string{procSubstMarker}, nil
	}
	return []string{""}, nil
}

func unquoteDouble(s string) string {
	s = strings.TrimSuffix(strings.TrimPrefix(s, `"`), `"`)
	return strings.NewReplacer(`\"`, `"`, `\\`, `\`).Replace(s)
}

// evalCommandSubst plans and captures inner, then whitespace-splits the
// captured text into argv-style words, per spec.md §9's standardization
// of $(...) / backtick substitution. It saves and restores pl.procSubst
// around the nested Plan call, since that call resets the buffer for its
// own simple commands and would otherwise clobber the outer word's
// in-progress process-substitution list.
func (pl *Planner) evalCommandSubst(inner *grammar.Commands) ([]string, error) {
	saved := pl.procSubst
	text, err := pl.captureCommands(inner, true)
	pl.procSubst = saved
	if err != nil {
		return nil, err
	}
	return strings.Fields(text), nil
}

func (pl *Planner) evalCommandSubstText(source string) ([]string, error) {
	tree, err := grammar.Parse(source)
	if err != nil {
		return nil, err
	}
	return pl.evalCommandSubst(tree)
}

// evalSubshell plans and captures a bare `(...)` used as a value,
// line-splitting its output per spec.md §9's standardization of the
// subshell-as-argument form.
func (pl *Planner) evalSubshell(inner *grammar.Commands) ([]string, error) {
	saved := pl.procSubst
	text, err := pl.captureCommands(inner, false)
	pl.procSubst = saved
	if err != nil {
		return nil, err
	}
	if text == "" {
		return nil, nil
	}
	return strings.Split(text, "\n"), nil
}

func (pl *Planner) captureCommands(inner *grammar.Commands, commandSubst bool) (string, error) {
	list, err := pl.Plan(inner)
	if err != nil {
		return "", err
	}
	if len(list.Jobs) == 0 {
		return "", nil
	}
	job := list.Jobs[len(list.Jobs)-1]
	if commandSubst {
		job.SubshellKind = shelljob.CommandSubstitution
	} else {
		job.SubshellKind = shelljob.Subshell
	}

	text, _, err := pl.launch.CaptureOutput(job, pl.ctx)
	return text, err
}

// evalProcessSubstitution plans inner and starts it in the background
// with its stdout wired to a pipe (or FIFO fallback), returning a
// procSubstRef for the caller to attach to the outer word's process
// (spec.md §4.3 step 4). pl.procSubst is saved/restored around the
// nested Plan call for the same reason evalCommandSubst does.
func (pl *Planner) evalProcessSubstitution(inner *grammar.Commands) (procSubstRef, error) {
	saved := pl.procSubst
	list, err := pl.Plan(inner)
	pl.procSubst = saved
	if err != nil {
		return procSubstRef{}, err
	}
	if len(list.Jobs) == 0 {
		return procSubstRef{}, nil
	}
	job := list.Jobs[len(list.Jobs)-1]
	job.SubshellKind = shelljob.ProcessSubstitution

	f, path, err := pl.launch.OpenProcessSubstitution(job, pl.ctx)
	return procSubstRef{file: f, path: path}, err
}
