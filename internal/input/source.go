// Package input supplies the character stream's "more data" callback:
// one line at a time, from a terminal (via the line editor), a script
// file, or a fixed -c string.
package input

import (
	"bufio"
	"io"

	"github.com/phillarmonic/essence/internal/shellctx"
)

// LineReader is satisfied by the interactive line editor: read one
// line, rendering the given prompt first.
type LineReader interface {
	ReadLine(prompt string) (line string, eof bool)
}

// PromptFunc renders the effective prompt for a given mode (PS1/PS2).
type PromptFunc func(mode shellctx.PromptMode) string

// Source supplies the parser's character stream with additional lines
// on demand, tagged by the prompt_mode the parser wants rendered for
// the next one (PS1 for a fresh command, PS2 to continue a block or an
// unterminated quote/substitution).
type Source interface {
	NextLine(mode shellctx.PromptMode) (line string, eof bool)
}

// Interactive reads lines from a terminal via a LineReader, rendering
// PS1/PS2 through the supplied PromptFunc.
type Interactive struct {
	Reader LineReader
	Prompt PromptFunc
}

func (s *Interactive) NextLine(mode shellctx.PromptMode) (string, bool) {
	prompt := ""
	if s.Prompt != nil {
		prompt = s.Prompt(mode)
	}
	line, eof := s.Reader.ReadLine(prompt)
	if eof {
		return "", true
	}
	return line + "\n", false
}

// Script reads lines from a buffered script file. A final line without
// a trailing newline gets one appended; EOF is reported by returning
// eof=true so the lexer can emit a clean EOF token on the next call.
type Script struct {
	r *bufio.Reader
}

// NewScript wraps r as a Script source.
func NewScript(r io.Reader) *Script {
	return &Script{r: bufio.NewReader(r)}
}

func (s *Script) NextLine(_ shellctx.PromptMode) (string, bool) {
	line, err := s.r.ReadString('\n')
	if len(line) == 0 && err != nil {
		return "", true
	}
	if len(line) == 0 || line[len(line)-1] != '\n' {
		line += "\n"
	}
	return line, false
}

// Once yields a single fixed string (the -c argument) and then reports
// EOF. A -c script with an unbalanced construct (open quote, unterminated
// $(...), an if/while without its terminator) therefore surfaces as a
// syntax error rather than prompting for PS2 continuation: there is no
// terminal to prompt and no further script lines to draw from.
type Once struct {
	text   string
	served bool
}

// NewOnce wraps text (the -c string) as a one-shot Source.
func NewOnce(text string) *Once {
	return &Once{text: text}
}

func (s *Once) NextLine(_ shellctx.PromptMode) (string, bool) {
	if s.served {
		return "", true
	}
	s.served = true
	if len(s.text) == 0 || s.text[len(s.text)-1] != '\n' {
		return s.text + "\n", false
	}
	return s.text, false
}
