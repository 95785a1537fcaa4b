package deck

import (
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// extensionGrammar is the participle grammar for solver-extension lines:
//
//	Solver 1 :: Linear System Solver = Direct
//
// Whitespace is kept as a token so captured keys and values concatenate
// back to their original spelling.
type extensionGrammar struct {
	Scope string `parser:"@Word"`
	ID    string `parser:"Space @Int Space?"`
	Key   string `parser:"\"::\" @(Word | Int | Space | Colon | \"::\")+"`
	Value string `parser:"\"=\" @(Word | Int | Space | Colon | \"::\" | \"=\")+"`
}

// extensionLexer tokenizes a single trimmed line. Int precedes Word so a
// bare solver id is never read as a word.
var extensionLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Scope", Pattern: `::`},
	{Name: "Assign", Pattern: `=`},
	{Name: "Colon", Pattern: `:`},
	{Name: "Int", Pattern: `[0-9]+`},
	{Name: "Space", Pattern: `\s+`},
	{Name: "Word", Pattern: `[^\s=:]+`},
})

var extensionParser = participle.MustBuild[extensionGrammar](
	participle.Lexer(extensionLexer),
)

// solverExtension is a parsed "Solver <id> :: <key> = <value>" line.
type solverExtension struct {
	ID    string
	Key   string
	Value string
}

// parseSolverExtension parses line against the extension grammar. scope is
// the dialect's scope keyword, matched case-insensitively.
func parseSolverExtension(line, scope string) (solverExtension, bool) {
	s := strings.TrimSpace(line)
	if scope == "" || len(s) <= len(scope) || !strings.EqualFold(s[:len(scope)], scope) {
		return solverExtension{}, false
	}
	if !strings.Contains(s, "::") || !strings.Contains(s, "=") {
		return solverExtension{}, false
	}

	g, err := extensionParser.ParseString("", s)
	if err != nil || !strings.EqualFold(g.Scope, scope) {
		return solverExtension{}, false
	}

	ext := solverExtension{
		ID:    g.ID,
		Key:   strings.TrimSpace(g.Key),
		Value: strings.TrimSpace(g.Value),
	}
	if ext.Key == "" || ext.Value == "" {
		return solverExtension{}, false
	}
	return ext, true
}
