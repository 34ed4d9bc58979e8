// Package builtins implements the in-process commands of spec.md §4.4's
// "built-in processes run in-process in the shell": cd, pwd, exit,
// export/unexport, and alias/unalias. jobs/fg/bg are registered separately by
// internal/dispatch, which already sits above both this package and
// internal/jobtable.
package builtins

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/lazyshell/dsh/internal/shelljob"
	"github.com/lazyshell/dsh/internal/shenv"
)

// Table maps a builtin name to its implementation. Built against a fixed
// Environment; job-control builtins (jobs/fg/bg) live in
// internal/dispatch instead, which can see a live jobtable.Table that
// this package deliberately stays independent of.
type Table struct {
	env *shenv.Environment
}

// New returns the builtin table bound to env.
func New(env *shenv.Environment) *Table {
	return &Table{env: env}
}

// Names lists every builtin this table resolves, for dispatch's
// resolution-order check (spec.md §4.8).
func (t *Table) Names() []string {
	return []string{"cd", "exit", "export", "unexport", "alias", "unalias", "pwd"}
}

// Lookup returns the BuiltinFunc for name, or nil if name isn't one of
// the builtins this table implements.
func (t *Table) Lookup(name string) shelljob.BuiltinFunc {
	switch name {
	case "cd":
		return t.cd
	case "exit":
		return t.exit
	case "export":
		return t.export
	case "unexport":
		return t.unexport
	case "alias":
		return t.alias
	case "unalias":
		return t.unalias
	case "pwd":
		return t.pwd
	default:
		return nil
	}
}

// cd implements spec.md's directory-change builtin, including the
// single-level "cd -" (the original's deeper directory history is
// explicitly not carried forward — see DESIGN.md).
func (t *Table) cd(p *shelljob.Process) (int, error) {
	target := ""
	if len(p.Argv) > 0 {
		target = p.Argv[0]
	}

	switch target {
	case "":
		home, _ := t.env.GetVar("HOME")
		target = home
	case "-":
		prev := t.env.PreviousDir()
		if prev == "" {
			fmt.Fprintln(p.ErrOut(), "dsh: cd: no previous directory")
			return 1, nil
		}
		target = prev
	}

	if err := t.env.Chdir(target); err != nil {
		fmt.Fprintf(p.ErrOut(), "dsh: cd: %s: %v\n", target, err)
		return 1, nil
	}
	return 0, nil
}

func (t *Table) pwd(p *shelljob.Process) (int, error) {
	fmt.Fprintln(p.Out(), t.env.Cwd())
	return 0, nil
}

// exit implements spec.md's shell-termination builtin. It returns an
// *ExitRequested error; shellrun.RunLine hands that error back to its
// caller, and cmd/dsh's read loop stops on it.
func (t *Table) exit(p *shelljob.Process) (int, error) {
	code := 0
	if len(p.Argv) > 0 {
		if n, err := strconv.Atoi(p.Argv[0]); err == nil {
			code = n
		}
	}
	return code, &ExitRequested{Code: code}
}

// ExitRequested is returned by the exit builtin; callers that drive the
// command loop (spec.md §6's CLI surface) check for this with errors.As
// and stop reading further input when they find it.
type ExitRequested struct{ Code int }

func (e *ExitRequested) Error() string { return "exit requested" }

func (t *Table) export(p *shelljob.Process) (int, error) {
	if len(p.Argv) == 0 {
		for _, kv := range t.env.ChildEnviron() {
			fmt.Fprintln(p.Out(), "export "+kv)
		}
		return 0, nil
	}
	vars := map[string]string{}
	for _, arg := range p.Argv {
		name, value, hasValue := strings.Cut(arg, "=")
		if hasValue {
			vars[name] = value
		}
		t.env.Export(name)
	}
	t.env.SetVars(vars)
	return 0, nil
}

func (t *Table) unexport(p *shelljob.Process) (int, error) {
	for _, name := range p.Argv {
		t.env.Unexport(name)
	}
	return 0, nil
}

func (t *Table) alias(p *shelljob.Process) (int, error) {
	if len(p.Argv) == 0 {
		for name, repl := range t.env.Aliases() {
			fmt.Fprintf(p.Out(), "alias %s=%q\n", name, repl)
		}
		return 0, nil
	}
	for _, arg := range p.Argv {
		name, repl, ok := strings.Cut(arg, "=")
		if !ok {
			if v, ok := t.env.GetAlias(name); ok {
				fmt.Fprintf(p.Out(), "alias %s=%q\n", name, v)
			}
			continue
		}
		t.env.SetAlias(name, repl)
	}
	return 0, nil
}

func (t *Table) unalias(p *shelljob.Process) (int, error) {
	for _, name := range p.Argv {
		t.env.RemoveAlias(name)
	}
	return 0, nil
}
