package lexer

import (
	"github.com/phillarmonic/essence/internal/input"
	"github.com/phillarmonic/essence/internal/shellctx"
)

// Stream is the authoritative character stream backing both the lexer
// and the parser's raw-character reads during command substitution:
// tokens are a thin overlay on top of it.
type Stream struct {
	source input.Source
	mode   shellctx.PromptMode

	buf    string
	pos    int
	ungot  *byte
	atTrueEOF bool
}

// NewStream wraps source. mode is the prompt mode to request for the
// very first line (normally PS1).
func NewStream(source input.Source, mode shellctx.PromptMode) *Stream {
	return &Stream{source: source, mode: mode}
}

// SetPromptMode changes which prompt is requested the next time the
// stream needs more input (the parser sets this to PS2 before resuming
// a block body or an unterminated construct).
func (s *Stream) SetPromptMode(mode shellctx.PromptMode) {
	s.mode = mode
}

// AtEOF reports whether the stream has been permanently exhausted: the
// underlying source reported EOF and nothing buffered or ungot remains.
// A REPL driving repeated Interpret() calls over one long-lived Stream
// uses this to know when to stop looping.
func (s *Stream) AtEOF() bool {
	return s.atTrueEOF && s.ungot == nil && s.pos >= len(s.buf)
}

// ReadByte returns the next byte of input, or ok=false once the
// underlying source reports EOF with nothing buffered.
func (s *Stream) ReadByte() (byte, bool) {
	if s.ungot != nil {
		b := *s.ungot
		s.ungot = nil
		return b, true
	}
	if s.pos >= len(s.buf) {
		if !s.refill() {
			return 0, false
		}
	}
	b := s.buf[s.pos]
	s.pos++
	return b, true
}

// UngetByte pushes back a single byte; the stream holds at most one.
func (s *Stream) UngetByte(b byte) {
	s.ungot = &b
}

func (s *Stream) refill() bool {
	if s.atTrueEOF {
		return false
	}
	line, eof := s.source.NextLine(s.mode)
	if eof {
		s.atTrueEOF = true
		return false
	}
	s.buf = line
	s.pos = 0
	return len(s.buf) > 0
}
