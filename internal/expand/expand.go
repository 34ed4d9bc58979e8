package expand

import (
	"github.com/lazyshell/dsh/internal/shenv"
)

// ExpandWord applies the full five-step order of spec.md §4.2 (minus
// alias, which only applies to argv0 and is handled separately by
// AliasExpand) to a single bare word: tilde, then brace, then variable,
// then glob. Each brace alternative is globbed independently, so the
// result can contain more tokens than braces alone would produce.
func ExpandWord(word string, env *shenv.Environment, cwd string, opts Options) ([]string, error) {
	tilded := ExpandTilde(word, env)
	braced := ExpandBraces(tilded)

	var out []string
	for _, piece := range braced {
		varExpanded := ExpandVariables(piece, env)
		globbed, err := ExpandGlob(varExpanded, cwd, opts)
		if err != nil {
			return nil, err
		}
		out = append(out, globbed...)
	}
	return out, nil
}

// ExpandDoubleQuoted applies only variable substitution, per spec.md
// §4.2: "Double-quoted strings also perform this" (referring to step 4
// only — no tilde, brace, or glob expansion happens inside quotes).
func ExpandDoubleQuoted(content string, env *shenv.Environment) string {
	return ExpandVariables(content, env)
}

// ExpandSingleQuoted returns content unchanged: single-quoted text
// preserves its contents literally (spec.md §4.1).
func ExpandSingleQuoted(content string) string {
	return content
}
