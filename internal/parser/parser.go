// Package parser implements the stateful token-driven parser: inline
// expansion (variables, tilde, command substitution), assembly of
// command.List values with pipeline and conditional-chain flags, and
// the if/while block constructs.
package parser

import (
	"bytes"
	"math/rand"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/phillarmonic/essence/internal/buffer"
	"github.com/phillarmonic/essence/internal/command"
	"github.com/phillarmonic/essence/internal/lexer"
	"github.com/phillarmonic/essence/internal/parseerr"
	"github.com/phillarmonic/essence/internal/shellctx"
	"github.com/phillarmonic/essence/internal/token"
)

// Executor is injected so if/while block constructs can execute their
// condition/then/else or condition/body sub-lists eagerly, during
// parsing itself, without this package depending on the executor
// package's process-spawning machinery.
type Executor interface {
	Execute(list *command.List, ctx *shellctx.Context)
}

// Substituter spawns a child shell to evaluate $(...) text and returns
// its raw captured stdout, truncated to 128 bytes, before the
// sentinel-byte/trailing-newline stripping runSubstitution applies. A
// nil Substituter makes every command substitution yield the empty
// string.
type Substituter interface {
	Substitute(text string) []byte
}

// ChildShellSubstituter runs $(...) text through a fresh invocation of
// the running binary itself (essence -c <text>).
type ChildShellSubstituter struct {
	// SelfPath names the binary to run; when empty, os.Executable() (or
	// os.Args[0] if that fails) is used.
	SelfPath string
}

// Substitute implements Substituter.
func (c *ChildShellSubstituter) Substitute(text string) []byte {
	self := c.SelfPath
	if self == "" {
		if resolved, err := os.Executable(); err == nil {
			self = resolved
		} else {
			self = os.Args[0]
		}
	}
	out, err := exec.Command(self, "-c", text).Output()
	if err != nil && len(out) == 0 {
		return nil
	}
	if len(out) > 128 {
		out = out[:128]
	}
	return out
}

// Parser consumes tokens from a lexer and builds command.List values.
type Parser struct {
	lex  *lexer.Lexer
	ctx  *shellctx.Context
	exec Executor
	sub  Substituter
}

// New builds a Parser reading from lex, sharing ctx with the executor,
// dispatching if/while sub-lists through exec, and evaluating $(...)
// through sub.
func New(lex *lexer.Lexer, ctx *shellctx.Context, exec Executor, sub Substituter) *Parser {
	return &Parser{lex: lex, ctx: ctx, exec: exec, sub: sub}
}

// Interpret builds one command list from the current input line(s) and
// returns it for the caller to execute. Block constructs (if/while)
// execute their own sub-lists internally and never appear as entries
// in the returned list. Each call starts a fresh command, so the stream
// is switched back to PS1 for its first line.
func (p *Parser) Interpret() (*command.List, error) {
	p.lex.Stream().SetPromptMode(shellctx.PS1)
	list, _, err := p.parseUntil("", "")
	return list, err
}

// parseUntil reads until a STRING token equal to stop1 or stop2 appears
// at a command boundary (no current word, no pending redirect,
// argc==0), or until top-level NEWLINE/EOF when both stops are empty.
// It returns the built list and which stop word matched ("" at top
// level).
func (p *Parser) parseUntil(stop1, stop2 string) (*command.List, string, error) {
	list := command.NewList()
	buf := buffer.New(64)

	quoted := false
	singleQuoted := false
	pendingRedirect := false

	flushWord := func() {
		if buf.Len() == 0 {
			return
		}
		cmd := list.Current()
		cmd.Argv = append(cmd.Argv, buf.String())
		buf.Reset()
	}

	finalizeRedirect := func() error {
		if !pendingRedirect {
			return nil
		}
		if buf.Len() == 0 {
			return parseerr.New(token.Token{Type: token.REDIRECT_OUT}, "")
		}
		filename := buf.String()
		buf.Reset()
		f, err := os.Create(filename)
		if err != nil {
			return err
		}
		list.Current().StdoutFile = f
		pendingRedirect = false
		return nil
	}

	var prev token.Token
	for {
		tok := p.lex.NextToken(prev)

		if tok.Type == token.STRING && !quoted && !pendingRedirect &&
			buf.Len() == 0 && list.Current().Argc() == 0 {
			lit := tok.Literal
			if stop1 != "" && lit == stop1 {
				list.TrimTrailingEmpty()
				return list, stop1, nil
			}
			if stop2 != "" && lit == stop2 {
				list.TrimTrailingEmpty()
				return list, stop2, nil
			}
			switch lit {
			case "if":
				if err := p.parseIf(); err != nil {
					return nil, "", err
				}
				prev = tok
				continue
			case "while":
				if err := p.parseWhile(); err != nil {
					return nil, "", err
				}
				prev = tok
				continue
			case "else":
				return nil, "", parseerr.New(tok, "")
			}
		}

		switch tok.Type {
		case token.EOF, token.NEWLINE:
			if quoted {
				if tok.Type == token.EOF {
					return nil, "", parseerr.New(tok, "")
				}
				buf.WriteByte('\n')
				p.lex.Stream().SetPromptMode(shellctx.PS2)
				prev = tok
				continue
			}
			if pendingRedirect {
				if buf.Len() == 0 {
					return nil, "", parseerr.New(tok, "")
				}
				if err := finalizeRedirect(); err != nil {
					return nil, "", err
				}
			} else {
				flushWord()
			}
			if stop1 != "" || stop2 != "" {
				if tok.Type == token.EOF {
					return nil, "", parseerr.New(tok, "")
				}
				list.Append()
				p.lex.Stream().SetPromptMode(shellctx.PS2)
				prev = tok
				continue
			}
			list.TrimTrailingEmpty()
			return list, "", nil

		case token.SPACE:
			if quoted {
				buf.WriteByte(' ')
				break
			}
			if pendingRedirect {
				if err := finalizeRedirect(); err != nil {
					return nil, "", err
				}
			} else {
				flushWord()
			}

		case token.STRING:
			buf.WriteString(tok.Literal)

		case token.DOUBLE_QUOTE:
			if singleQuoted {
				buf.WriteByte('"')
				break
			}
			quoted = !quoted

		case token.SINGLE_QUOTE:
			if quoted && !singleQuoted {
				buf.WriteByte('\'')
				break
			}
			if singleQuoted {
				singleQuoted = false
				quoted = false
			} else {
				singleQuoted = true
				quoted = true
			}

		case token.REDIRECT_OUT:
			if quoted {
				buf.WriteByte('>')
				break
			}
			pendingRedirect = true
			for {
				next := p.lex.NextToken(tok)
				if next.Type != token.SPACE {
					p.lex.UngetToken(next)
					break
				}
			}

		case token.PIPE:
			if quoted {
				buf.WriteByte('|')
				break
			}
			if list.Current().Argc() == 0 || pendingRedirect {
				return nil, "", parseerr.New(tok, "")
			}
			flushWord()
			list.Append().Set(command.FlagPipeFromPrev)

		case token.OR:
			if quoted {
				buf.WriteString("||")
				break
			}
			if list.Current().Argc() == 0 || pendingRedirect {
				return nil, "", parseerr.New(tok, "")
			}
			flushWord()
			list.Append().Set(command.FlagOr)

		case token.AND:
			if quoted {
				buf.WriteString("&&")
				break
			}
			if list.Current().Argc() == 0 || pendingRedirect {
				return nil, "", parseerr.New(tok, "")
			}
			flushWord()
			list.Append().Set(command.FlagAnd)

		case token.SEMICOLON:
			if quoted {
				buf.WriteByte(';')
				break
			}
			flushWord()
			list.Append()

		case token.EQUALS:
			if quoted {
				buf.WriteByte('=')
				break
			}
			if list.Current().Argc() == 0 && buf.Len() > 0 {
				name := buf.String()
				buf.Reset()
				value, err := p.scanAssignmentValue()
				if err != nil {
					return nil, "", err
				}
				cmd := list.Current()
				cmd.ExtraEnv = append(cmd.ExtraEnv, name+"="+value)
			} else {
				buf.WriteByte('=')
			}

		case token.DOLLAR:
			if singleQuoted {
				buf.WriteByte('$')
				break
			}
			expanded, err := p.expandDollar()
			if err != nil {
				return nil, "", err
			}
			buf.WriteString(expanded)

		case token.TILDE:
			if quoted {
				buf.WriteByte('~')
				break
			}
			buf.WriteString(p.homeDir())

		case token.HASHTAG:
			if quoted {
				buf.WriteByte('#')
				break
			}
			flushWord()
			for {
				next := p.lex.NextToken(tok)
				if next.Type == token.NEWLINE || next.Type == token.EOF {
					p.lex.UngetToken(next)
					break
				}
			}

		default:
			// REDIRECT_IN, STAR, QUESTION_MARK, OPEN_PAREN, CLOSE_PAREN
			// reach here unquoted: recognized by the lexer, not acted on
			// by the parser, so their literal byte is kept.
			buf.WriteString(tok.Literal)
		}

		prev = tok
	}
}

// parseIf implements the if/then/else/fi block construct.
func (p *Parser) parseIf() error {
	condList, _, err := p.parseUntil("then", "")
	if err != nil {
		return err
	}
	thenList, matched, err := p.parseUntil("else", "fi")
	if err != nil {
		return err
	}
	var elseList *command.List
	if matched == "else" {
		elseList, _, err = p.parseUntil("fi", "")
		if err != nil {
			return err
		}
	}

	if p.exec == nil {
		return nil
	}
	p.exec.Execute(condList, p.ctx)
	if p.ctx.LastExitStatus == 0 {
		p.exec.Execute(thenList, p.ctx)
	} else if elseList != nil {
		p.exec.Execute(elseList, p.ctx)
	}
	return nil
}

// parseWhile implements the while/do/done block construct.
func (p *Parser) parseWhile() error {
	condList, _, err := p.parseUntil("do", "")
	if err != nil {
		return err
	}
	bodyList, _, err := p.parseUntil("done", "")
	if err != nil {
		return err
	}

	if p.exec == nil {
		return nil
	}
	for {
		p.exec.Execute(condList, p.ctx)
		if p.ctx.LastSignalled {
			break
		}
		if p.ctx.LastExitStatus != 0 {
			break
		}
		p.exec.Execute(bodyList, p.ctx)
		if p.ctx.LastSignalled {
			break
		}
	}
	return nil
}

// scanAssignmentValue reads tokens until an unquoted SPACE/NEWLINE/EOF,
// accumulating STRING text and performing DOLLAR/TILDE expansion, for
// a NAME=VALUE assignment at command start.
func (p *Parser) scanAssignmentValue() (string, error) {
	var val strings.Builder
	quoted := false
	singleQuoted := false
	var prev token.Token

	for {
		tok := p.lex.NextToken(prev)
		prev = tok

		switch tok.Type {
		case token.SPACE:
			if quoted {
				val.WriteByte(' ')
				continue
			}
			p.lex.UngetToken(tok)
			return val.String(), nil
		case token.NEWLINE, token.EOF:
			p.lex.UngetToken(tok)
			return val.String(), nil
		case token.DOUBLE_QUOTE:
			if singleQuoted {
				val.WriteByte('"')
				continue
			}
			quoted = !quoted
		case token.SINGLE_QUOTE:
			if quoted && !singleQuoted {
				val.WriteByte('\'')
				continue
			}
			if singleQuoted {
				singleQuoted = false
				quoted = false
			} else {
				singleQuoted = true
				quoted = true
			}
		case token.DOLLAR:
			if singleQuoted {
				val.WriteByte('$')
				continue
			}
			expanded, err := p.expandDollar()
			if err != nil {
				return "", err
			}
			val.WriteString(expanded)
		case token.TILDE:
			if quoted {
				val.WriteByte('~')
				continue
			}
			val.WriteString(p.homeDir())
		case token.STRING:
			val.WriteString(tok.Literal)
		default:
			val.WriteString(tok.Literal)
		}
	}
}

// expandDollar handles the token immediately following a DOLLAR: $$ for
// the shell pid, $# for the argument count, $? for the last exit
// status, a bare name for variable lookup, and $(...) for command
// substitution.
func (p *Parser) expandDollar() (string, error) {
	peek := p.lex.NextToken(token.Token{Type: token.DOLLAR})
	switch peek.Type {
	case token.DOLLAR:
		return strconv.Itoa(p.ctx.ShellPID), nil
	case token.HASHTAG:
		return strconv.Itoa(p.ctx.Argc()), nil
	case token.QUESTION_MARK:
		return strconv.Itoa(p.ctx.LastExitStatus), nil
	case token.STRING:
		name := strings.TrimSuffix(peek.Literal, "\n")
		if name == "RANDOM" {
			return strconv.Itoa(rand.Intn(32768)), nil
		}
		return p.ctx.Env.Get(name), nil
	case token.OPEN_PAREN:
		text, err := p.readSubstitutionText()
		if err != nil {
			return "", err
		}
		return p.runSubstitution(text), nil
	default:
		p.lex.UngetToken(peek)
		return "$", nil
	}
}

// readSubstitutionText reads raw characters (not tokens) from the
// lexer's backing stream until a matching ')' at depth 1, switching the
// stream to PS2 continuation for the duration so a substitution that
// spans multiple lines prompts like any other continuation.
func (p *Parser) readSubstitutionText() (string, error) {
	stream := p.lex.Stream()
	saved := p.ctx.PromptMode
	stream.SetPromptMode(shellctx.PS2)
	defer stream.SetPromptMode(saved)

	depth := 1
	var buf strings.Builder
	for {
		b, ok := stream.ReadByte()
		if !ok {
			return "", parseerr.New(token.Token{Type: token.OPEN_PAREN}, "")
		}
		switch b {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return buf.String(), nil
			}
		}
		buf.WriteByte(b)
	}
}

// runSubstitution spawns the substituter, then strips a leading
// sentinel byte and a trailing newline from its captured output
// (including the truncation bug this preserves by default: the first
// byte of genuine output is discarded, not a sentinel the parent
// wrote).
func (p *Parser) runSubstitution(text string) string {
	if p.sub == nil {
		return ""
	}
	raw := p.sub.Substitute(text)
	if len(raw) == 0 {
		return ""
	}
	if !p.ctx.DisableSubstitutionTruncationBug {
		raw = raw[1:]
	}
	raw = bytes.TrimSuffix(raw, []byte("\n"))
	return string(raw)
}

func (p *Parser) homeDir() string {
	home := p.ctx.Env.Get("HOME")
	if home == "" {
		home = "/root/"
	}
	return home
}
