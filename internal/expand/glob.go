package expand

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/lazyshell/dsh/internal/shellerr"
)

// Options controls expansion behavior that spec.md §9 leaves as an
// implementer-configurable Open Question.
type Options struct {
	// StrictGlob, when true, turns a no-match glob into an
	// ExpansionError instead of the default literal-keep (spec.md §4.2:
	// "default is literal-keep").
	StrictGlob bool
}

// HasGlobMeta reports whether s contains any of the recognized glob
// metacharacters (spec.md §4.1: "*", "?", "[...]").
func HasGlobMeta(s string) bool {
	return strings.ContainsAny(s, "*?[")
}

// ExpandGlob expands a glob pattern against cwd. Results are path-sorted
// (spec.md §4.2 and Testable Properties scenario 5). A pattern with no
// glob metacharacters is returned unchanged. A pattern that matches
// nothing keeps the literal pattern unless opts.StrictGlob is set, in
// which case an error is returned.
//
// The pattern is split at its deepest literal ancestor directory — the
// "glob root" — and the remainder (which may contain "**" for arbitrary
// depth, via bmatcuk/doublestar) is matched under that root.
func ExpandGlob(pattern, cwd string, opts Options) ([]string, error) {
	if !HasGlobMeta(pattern) {
		return []string{pattern}, nil
	}

	rootPrefix, remainder, absolute := globRoot(pattern)

	baseDir := cwd
	switch {
	case absolute:
		baseDir = rootPrefix
	case rootPrefix != "":
		baseDir = filepath.Join(cwd, rootPrefix)
	}

	matches, err := doublestar.Glob(os.DirFS(baseDir), remainder)
	if (err != nil || len(matches) == 0) && opts.StrictGlob {
		msg := "no matches found"
		if err != nil {
			msg = err.Error()
		}
		return nil, &shellerr.ExpansionError{Word: pattern, Msg: msg}
	}
	if err != nil || len(matches) == 0 {
		return []string{pattern}, nil
	}

	out := make([]string, 0, len(matches))
	for _, m := range matches {
		switch {
		case rootPrefix == "":
			out = append(out, m)
		case rootPrefix == "/":
			out = append(out, "/"+m)
		default:
			out = append(out, rootPrefix+"/"+m)
		}
	}
	sort.Strings(out)
	return out, nil
}

// globRoot splits pattern into its literal leading directory segments
// (the glob root) and the remaining glob-bearing suffix.
func globRoot(pattern string) (rootPrefix, remainder string, absolute bool) {
	absolute = strings.HasPrefix(pattern, "/")
	segs := strings.Split(strings.TrimPrefix(pattern, "/"), "/")

	i := 0
	for ; i < len(segs); i++ {
		if HasGlobMeta(segs[i]) {
			break
		}
	}
	rootSegs, restSegs := segs[:i], segs[i:]
	rootPrefix = strings.Join(rootSegs, "/")
	if absolute {
		rootPrefix = "/" + rootPrefix
		rootPrefix = strings.TrimSuffix(rootPrefix, "/")
		if rootPrefix == "" {
			rootPrefix = "/"
		}
	}
	remainder = strings.Join(restSegs, "/")
	return rootPrefix, remainder, absolute
}
