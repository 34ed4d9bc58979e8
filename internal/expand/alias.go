// Package expand implements the five-step word expansion pipeline of
// spec.md §4.2: alias, tilde, brace, variable, then glob.
package expand

import (
	"github.com/kballard/go-shellquote"

	"github.com/lazyshell/dsh/internal/shellerr"
	"github.com/lazyshell/dsh/internal/shenv"
)

// AliasExpand resolves argv0 through the alias table to a fixed point.
// It is recursive: the replacement text is re-lexed and its own first
// word re-checked, but a name already expanded in this chain is never
// re-expanded, which guarantees termination for any alias cycle (spec.md
// §8: "Alias expansion terminates for any input").
//
// It returns the replacement token sequence (possibly argv0 itself,
// unchanged, when there is no alias) and whether any substitution
// occurred.
func AliasExpand(argv0 string, env *shenv.Environment) ([]string, bool, error) {
	seen := map[string]bool{}
	tokens := []string{argv0}
	expandedOnce := false

	for {
		head := tokens[0]
		if seen[head] {
			break
		}
		replacement, ok := env.GetAlias(head)
		if !ok {
			break
		}
		seen[head] = true

		words, err := shellquote.Split(replacement)
		if err != nil {
			return nil, false, &shellerr.ExpansionError{Word: head, Msg: "invalid alias replacement: " + err.Error()}
		}
		if len(words) == 0 {
			tokens = tokens[1:]
			expandedOnce = true
			break
		}
		tokens = append(words, tokens[1:]...)
		expandedOnce = true
	}

	return tokens, expandedOnce, nil
}
