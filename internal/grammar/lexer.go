// Package grammar implements the PEG-style command-line grammar from
// spec.md §4.1, using alecthomas/participle/v2 — the same struct-tag PEG
// approach the retrieval pack's gosh shell uses for its own parser.
package grammar

import (
	"github.com/alecthomas/participle/v2/lexer"
)

// lex tokenizes a command line. Rule order matters: participle's simple
// lexer tries rules in the order given, so multi-character operators
// (">>", "&&", "<(") must precede their single-character prefixes.
var lex = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Whitespace", Pattern: `[ \t]+`},
	{Name: "Comment", Pattern: `#[^\n]*`},
	{Name: "Newline", Pattern: `\r?\n`},
	{Name: "ProcSubst", Pattern: `<\(`},
	{Name: "CmdSubst", Pattern: `\$\(`},
	{Name: "LParen", Pattern: `\(`},
	{Name: "RParen", Pattern: `\)`},
	{Name: "AndIf", Pattern: `&&`},
	{Name: "OrIf", Pattern: `\|\|`},
	{Name: "CaptureSuffix", Pattern: `\|%`},
	{Name: "RedirAllAppend", Pattern: `&>>`},
	{Name: "RedirAll", Pattern: `&>`},
	{Name: "Background", Pattern: `&`},
	{Name: "Pipe", Pattern: `\|`},
	{Name: "Semi", Pattern: `;`},
	{Name: "RedirErrAppend", Pattern: `2>>`},
	{Name: "RedirErr", Pattern: `2>`},
	{Name: "RedirAppend", Pattern: `>>`},
	{Name: "RedirOut", Pattern: `>`},
	{Name: "RedirIn", Pattern: `<`},
	{Name: "Backtick", Pattern: "`[^`]*`"},
	{Name: "DQString", Pattern: `"(\\.|[^"\\])*"`},
	{Name: "SQString", Pattern: `'[^']*'`},
	{Name: "Variable", Pattern: `\$\{[A-Za-z_][A-Za-z0-9_]*\}|\$[A-Za-z_][A-Za-z0-9_]*`},
	{Name: "Word", Pattern: "[^ \t\r\n|&;<>()\"'`$]+"},
})
