package expand

import (
	"os/user"
	"strings"

	"github.com/lazyshell/dsh/internal/shenv"
)

// ExpandTilde resolves a leading "~" or "~user" prefix of word, per
// spec.md §4.2 step 2: "Only at word start." A word not starting with
// "~" is returned unchanged.
func ExpandTilde(word string, env *shenv.Environment) string {
	if !strings.HasPrefix(word, "~") {
		return word
	}

	rest := word[1:]
	name, tail, hasSlash := cutPath(rest)

	if name == "" {
		home, _ := env.GetVar("HOME")
		if home == "" {
			if u, err := user.Current(); err == nil {
				home = u.HomeDir
			}
		}
		if home == "" {
			return word
		}
		if hasSlash {
			return home + "/" + tail
		}
		return home
	}

	u, err := user.Lookup(name)
	if err != nil {
		return word
	}
	if hasSlash {
		return u.HomeDir + "/" + tail
	}
	return u.HomeDir
}

// cutPath splits "name/rest" into ("name", "rest", true) or ("name", "", false).
func cutPath(s string) (name, tail string, hasSlash bool) {
	if i := strings.IndexByte(s, '/'); i >= 0 {
		return s[:i], s[i+1:], true
	}
	return s, "", false
}
