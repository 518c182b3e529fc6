package lexer

import (
	"testing"

	"github.com/phillarmonic/essence/internal/input"
	"github.com/phillarmonic/essence/internal/shellctx"
	"github.com/phillarmonic/essence/internal/token"
)

func newTestLexer(src string) *Lexer {
	stream := NewStream(input.NewOnce(src), shellctx.PS1)
	return New(stream)
}

func TestLexer_PipelineAndDigraphs(t *testing.T) {
	src := `echo hi | tr a-z A-Z && true || false`

	lx := newTestLexer(src)

	expected := []struct {
		typ     token.Type
		literal string
	}{
		{token.STRING, "echo"},
		{token.SPACE, " "},
		{token.STRING, "hi"},
		{token.SPACE, " "},
		{token.PIPE, "|"},
		{token.SPACE, " "},
		{token.STRING, "tr"},
		{token.SPACE, " "},
		{token.STRING, "a-z"},
		{token.SPACE, " "},
		{token.STRING, "A-Z"},
		{token.SPACE, " "},
		{token.AND, ""},
		{token.SPACE, " "},
		{token.STRING, "true"},
		{token.SPACE, " "},
		{token.OR, ""},
		{token.SPACE, " "},
		{token.STRING, "false"},
		{token.NEWLINE, "\n"},
		{token.EOF, ""},
	}

	var prev token.Token
	for i, want := range expected {
		tok := lx.NextToken(prev)
		if tok.Type != want.typ {
			t.Fatalf("test[%d] - tokentype wrong. expected=%v, got=%v (literal %q)", i, want.typ, tok.Type, tok.Literal)
		}
		if want.literal != "" && tok.Literal != want.literal {
			t.Fatalf("test[%d] - literal wrong. expected=%q, got=%q", i, want.literal, tok.Literal)
		}
		prev = tok
	}
}

func TestLexer_TriplePipeDoesNotReMerge(t *testing.T) {
	// "|||" must lex as OR then PIPE: the prev check prevents
	// re-merging the third pipe.
	lx := newTestLexer(`|||`)

	var prev token.Token
	tok := lx.NextToken(prev)
	if tok.Type != token.OR {
		t.Fatalf("expected OR, got %v", tok.Type)
	}
	prev = tok

	tok = lx.NextToken(prev)
	if tok.Type != token.PIPE {
		t.Fatalf("expected PIPE, got %v", tok.Type)
	}
}

func TestLexer_UngetToken(t *testing.T) {
	lx := newTestLexer(`a b`)

	var prev token.Token
	first := lx.NextToken(prev)
	lx.UngetToken(first)
	replay := lx.NextToken(prev)
	if replay.Type != first.Type || replay.Literal != first.Literal {
		t.Fatalf("unget did not replay token: got %+v, want %+v", replay, first)
	}
}
