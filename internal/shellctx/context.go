// Package shellctx holds the single shared-state value threaded through
// the lexer, parser, executor, and line editor, replacing the scattered
// globals of the original implementation (last_exit_status,
// last_signalled, shell_pid, input_type, prompt_mode, history).
package shellctx

import (
	"os"

	"github.com/phillarmonic/essence/internal/historystore"
	"github.com/phillarmonic/essence/internal/pathcache"
	"github.com/phillarmonic/essence/internal/secrets"
)

// InputType distinguishes an interactive terminal session from a script
// or -c one-shot invocation.
type InputType int

const (
	Interactive InputType = iota
	Script
)

// PromptMode selects which prompt string is in effect: PS1 for a fresh
// command, PS2 while continuing a multi-line construct (an open quote,
// an unterminated $(...), or an if/while block body).
type PromptMode int

const (
	PS1 PromptMode = iota
	PS2
)

// Context is the shell's single mutable state cell.
type Context struct {
	LastExitStatus int
	LastSignalled  bool

	ShellPID int

	InputType  InputType
	PromptMode PromptMode

	// ScriptArgs holds argv[1:] when running a script file, exposed to
	// the parser's "$#" expansion as the shell's own argc.
	ScriptArgs []string

	History    *historystore.Store
	PathCache  *pathcache.Cache
	Secrets    secrets.Manager
	Env        *Environment

	// DisableSubstitutionTruncationBug turns off the command-substitution
	// sentinel-byte truncation bug (the zero value, false, preserves it:
	// runSubstitution drops output's leading byte). config.yaml's
	// compat_substitution_truncation=false sets this true.
	DisableSubstitutionTruncationBug bool
}

// New builds a Context for a fresh shell process.
func New(input InputType, scriptArgs []string, hist *historystore.Store, pc *pathcache.Cache, sm secrets.Manager) *Context {
	return &Context{
		ShellPID:   os.Getpid(),
		InputType:  input,
		PromptMode: PS1,
		ScriptArgs: scriptArgs,
		History:    hist,
		PathCache:  pc,
		Secrets:    sm,
		Env:        NewEnvironment(),
	}
}

// Argc mirrors "$#", the shell's own argument count: the HASHTAG
// expansion yields the argc of the shell itself.
func (c *Context) Argc() int {
	return len(c.ScriptArgs)
}
