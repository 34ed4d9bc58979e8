// Package hooks wires the shell's lifecycle events — chpwd, pre-prompt,
// pre-exec, post-exec, command-not-found, input-timeout — to the
// embedded Lisp evaluator, per spec.md §4.9: hooks are best-effort and
// never abort the command or prompt cycle they wrap.
package hooks

import (
	"strconv"

	"github.com/lazyshell/dsh/internal/dshlog"
	"github.com/lazyshell/dsh/internal/lispeval"
	"github.com/lazyshell/dsh/internal/shenv"
)

// Registry fires named hooks through an Evaluator, logging (not
// propagating) any failure.
type Registry struct {
	lisp lispeval.Evaluator
}

// New builds a Registry bound to lisp.
func New(lisp lispeval.Evaluator) *Registry {
	return &Registry{lisp: lisp}
}

func (r *Registry) fire(hook string, args ...string) {
	if err := r.lisp.CallHook(hook, args...); err != nil {
		dshlog.Debugf("hooks: %s: %v", hook, err)
	}
}

// BindChpwd registers this Registry's chpwd hook with env, so every
// successful cd fires it exactly once (spec.md Testable Properties).
func (r *Registry) BindChpwd(env *shenv.Environment) {
	env.RegisterChpwdHook(func(newPath string) {
		r.fire("chpwd", newPath)
	})
}

// PrePrompt fires before the line editor renders a new prompt (the
// editor itself is out of scope; the core only exposes the call site).
func (r *Registry) PrePrompt() { r.fire("pre-prompt") }

// PreExec fires immediately before a parsed command line is planned and
// launched, with the raw input line.
func (r *Registry) PreExec(line string) { r.fire("pre-exec", line) }

// PostExec fires after a command list finishes, with the line and its
// final exit code.
func (r *Registry) PostExec(line string, exitCode int) {
	r.fire("post-exec", line, strconv.Itoa(exitCode))
}

// InputTimeout fires when the line editor's idle timeout elapses (the
// editor itself is out of scope; only the call site lives here).
func (r *Registry) InputTimeout() { r.fire("input-timeout") }

// command-not-found is fired directly by internal/dispatch through the
// same lispeval.Evaluator this Registry wraps, since resolution failure
// is detected there rather than at this package's call sites.
