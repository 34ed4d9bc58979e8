package expand

import "strings"

// ExpandBraces performs spec.md §4.2 step 3: Cartesian product across all
// top-level brace groups in word, preserving order, with nested braces
// expanding first. Escaped "\{" and "\," are literal. A "{...}" group
// with no top-level comma is not an expansion group and is left as-is
// (matching common brace-expansion semantics: "{abc}" alone is literal).
func ExpandBraces(word string) []string {
	start, end, alts, ok := findBraceGroup(word)
	if !ok {
		return []string{unescapeBraceChars(word)}
	}

	prefix := unescapeBraceChars(word[:start])
	suffix := word[end+1:]
	suffixExpansions := ExpandBraces(suffix)

	var out []string
	for _, alt := range alts {
		for _, a := range ExpandBraces(alt) {
			for _, s := range suffixExpansions {
				out = append(out, prefix+a+s)
			}
		}
	}
	return out
}

// findBraceGroup locates the first top-level "{...}" group in word that
// contains at least one top-level comma, and returns its byte span and
// its comma-separated alternatives.
func findBraceGroup(word string) (start, end int, alts []string, ok bool) {
	start = -1
	depth := 0
	var altStart int
	var pieces []string

	for i := 0; i < len(word); i++ {
		c := word[i]
		if c == '\\' && i+1 < len(word) {
			i++
			continue
		}
		if start < 0 {
			if c == '{' {
				start = i
				depth = 1
				altStart = i + 1
				pieces = nil
			}
			continue
		}
		switch c {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				pieces = append(pieces, word[altStart:i])
				if len(pieces) < 2 {
					// No top-level comma: not an expansion group, keep
					// scanning for a later one.
					start = -1
					continue
				}
				return start, i, pieces, true
			}
		case ',':
			if depth == 1 {
				pieces = append(pieces, word[altStart:i])
				altStart = i + 1
			}
		}
	}
	return 0, 0, nil, false
}

func unescapeBraceChars(s string) string {
	if !strings.ContainsAny(s, "\\") {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) && (s[i+1] == '{' || s[i+1] == ',' || s[i+1] == '}') {
			b.WriteByte(s[i+1])
			i++
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
