// Package parseerr implements the parser's diagnostic type: the
// offending token, plus a caret-pointer source excerpt when a token
// position and source text are supplied. The parser supplies neither,
// so its diagnostics render as the one-line message only.
package parseerr

import (
	"fmt"
	"strings"

	"github.com/phillarmonic/essence/internal/token"
)

// SyntaxError is a parser-surfaced error carrying the offending token's
// position. It is printed as "essence: syntax error near unexpected
// token <name>"; the offending list is dropped and control returns to
// the REPL.
type SyntaxError struct {
	Token  token.Token
	Source string // the source line(s) being parsed, for the caret excerpt
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("essence: syntax error near unexpected token %s", e.Token.Type)
}

// Format renders the error with a caret pointing at the offending
// column, when source position information is available.
func (e *SyntaxError) Format() string {
	var b strings.Builder
	b.WriteString(e.Error())
	b.WriteByte('\n')

	if e.Token.Line <= 0 || e.Source == "" {
		return b.String()
	}
	lines := strings.Split(e.Source, "\n")
	if e.Token.Line > len(lines) {
		return b.String()
	}
	sourceLine := lines[e.Token.Line-1]
	b.WriteString("  " + sourceLine + "\n")
	col := e.Token.Column
	if col < 1 {
		col = 1
	}
	b.WriteString("  " + strings.Repeat(" ", col-1) + "^\n")
	return b.String()
}

// New builds a SyntaxError for tok.
func New(tok token.Token, source string) *SyntaxError {
	return &SyntaxError{Token: tok, Source: source}
}
