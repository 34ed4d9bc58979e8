package grammar

import (
	"github.com/alecthomas/participle/v2"

	"github.com/lazyshell/dsh/internal/shellerr"
)

var parserInst = participle.MustBuild[Commands](
	participle.Lexer(lex),
	participle.Elide("Whitespace", "Comment", "Newline"),
	participle.UseLookahead(2),
)

// Parse turns one input line (or a multi-line `-c` script joined with
// trailing-backslash continuations, spec.md §4.1 supplement) into a
// Commands parse tree. On failure it returns a *shellerr.ParseError
// identifying a byte span, never partial results (spec.md §4.1: "on parse
// failure ... no partial execution occurs").
func Parse(input string) (*Commands, error) {
	joined := joinContinuations(input)

	tree, err := parserInst.ParseString("", joined)
	if err != nil {
		pos := 0
		if pe, ok := err.(participle.Error); ok {
			pos = pe.Position().Offset
		}
		return nil, &shellerr.ParseError{
			Input: input,
			Span:  shellerr.Span{Start: pos, End: pos},
			Msg:   err.Error(),
		}
	}
	return tree, nil
}

// joinContinuations collapses a trailing unescaped backslash followed by
// a newline into a single space, so a multi-line `-c` string parses as
// one logical line (spec.md §4.1 supplement; the REPL's own line
// continuation UI is out of scope).
func joinContinuations(input string) string {
	out := make([]byte, 0, len(input))
	for i := 0; i < len(input); i++ {
		if input[i] == '\\' && i+1 < len(input) && input[i+1] == '\n' {
			out = append(out, ' ')
			i++
			continue
		}
		out = append(out, input[i])
	}
	return string(out)
}
