package expand

import (
	"strings"

	"github.com/lazyshell/dsh/internal/shenv"
)

// ExpandVariables replaces "$NAME" or "${NAME}" references in s with the
// shell variable's value; an undefined name expands to the empty string
// (spec.md §4.2 step 4). "\$" is a literal dollar sign.
func ExpandVariables(s string, env *shenv.Environment) string {
	if !strings.ContainsRune(s, '$') {
		return s
	}

	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '\\' && i+1 < len(s) && s[i+1] == '$' {
			b.WriteByte('$')
			i++
			continue
		}
		if c != '$' || i+1 >= len(s) {
			b.WriteByte(c)
			continue
		}

		if s[i+1] == '{' {
			end := strings.IndexByte(s[i+2:], '}')
			if end < 0 {
				b.WriteByte(c)
				continue
			}
			name := s[i+2 : i+2+end]
			val, _ := env.GetVar(name)
			b.WriteString(val)
			i += 2 + end
			continue
		}

		j := i + 1
		for j < len(s) && isNameByte(s[j], j == i+1) {
			j++
		}
		if j == i+1 {
			b.WriteByte(c)
			continue
		}
		name := s[i+1 : j]
		val, _ := env.GetVar(name)
		b.WriteString(val)
		i = j - 1
	}
	return b.String()
}

func isNameByte(c byte, first bool) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c == '_':
		return true
	case c >= '0' && c <= '9':
		return !first
	default:
		return false
	}
}
