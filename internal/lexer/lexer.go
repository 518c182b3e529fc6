// Package lexer implements the character-driven tokenizer: single-token
// lookahead via unget_token, and context-sensitive digraph recognition
// for "||" and "&&".
package lexer

import (
	"github.com/phillarmonic/essence/internal/token"
)

// Lexer tokenizes a Stream. It holds no character-level state of its
// own, that lives in the Stream, only the single ungot-token slot.
type Lexer struct {
	stream *Stream
	ungot  *token.Token
}

// New returns a Lexer reading from stream.
func New(stream *Stream) *Lexer {
	return &Lexer{stream: stream}
}

// Stream exposes the backing character stream for the parser's raw
// reads during command substitution.
func (l *Lexer) Stream() *Stream {
	return l.stream
}

// UngetToken pushes back one token. The lexer holds at most one; a
// second call before the first is consumed overwrites it, callers
// must not attempt that.
func (l *Lexer) UngetToken(t token.Token) {
	l.ungot = &t
}

// NextToken returns the next token from the stream, applying digraph
// collapsing for "||" and "&&". prev is the token immediately
// preceding this call (used only to decide whether a second PIPE/
// AMPERSAND should collapse into OR/AND, so that a run of three pipe
// characters tokenizes as OR followed by PIPE rather than OR-OR).
func (l *Lexer) NextToken(prev token.Token) token.Token {
	if l.ungot != nil {
		t := *l.ungot
		l.ungot = nil
		return t
	}

	t := l.scanOne()

	if t.Type == token.PIPE && prev.Type != token.PIPE {
		second := l.scanOne()
		if second.Type == token.PIPE {
			return token.Token{Type: token.OR, Line: t.Line, Column: t.Column}
		}
		l.ungot = &second
		return t
	}

	if t.Type == token.AMPERSAND && prev.Type != token.AMPERSAND {
		second := l.scanOne()
		if second.Type == token.AMPERSAND {
			return token.Token{Type: token.AND, Line: t.Line, Column: t.Column}
		}
		l.ungot = &second
		return t
	}

	return t
}

// scanOne reads exactly one token from the stream with no digraph
// lookahead.
func (l *Lexer) scanOne() token.Token {
	b, ok := l.stream.ReadByte()
	if !ok {
		return token.Token{Type: token.EOF}
	}

	class := token.Classify(b)
	if class != token.STRING {
		return token.Token{Type: class, Literal: string(b)}
	}

	// STRING accretion: greedily consume a maximal run of STRING-class
	// bytes, ungetting the first non-STRING byte.
	var lit []byte
	lit = append(lit, b)
	for {
		next, ok := l.stream.ReadByte()
		if !ok {
			break
		}
		if !token.IsStringRune(next) {
			l.stream.UngetByte(next)
			break
		}
		lit = append(lit, next)
	}
	return token.Token{Type: token.STRING, Literal: string(lit)}
}
