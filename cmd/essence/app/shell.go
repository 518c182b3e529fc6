// Package app wires essence's components (lexer, parser, executor,
// line editor, builtins, history, secrets) into the running process,
// and hosts the cobra CLI front-end.
package app

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/afero"

	"github.com/phillarmonic/essence/internal/builtins"
	"github.com/phillarmonic/essence/internal/config"
	"github.com/phillarmonic/essence/internal/executor"
	"github.com/phillarmonic/essence/internal/historystore"
	"github.com/phillarmonic/essence/internal/input"
	"github.com/phillarmonic/essence/internal/lexer"
	"github.com/phillarmonic/essence/internal/lineedit"
	"github.com/phillarmonic/essence/internal/parser"
	"github.com/phillarmonic/essence/internal/parseerr"
	"github.com/phillarmonic/essence/internal/pathcache"
	"github.com/phillarmonic/essence/internal/promptexpander"
	"github.com/phillarmonic/essence/internal/secrets"
	"github.com/phillarmonic/essence/internal/shellctx"
)

const pathCacheSize = 256

// Shell bundles one running essence process's components.
type Shell struct {
	ctx    *shellctx.Context
	exec   *executor.Executor
	editor *lineedit.Editor
}

// newBuiltinTable adapts builtins.Table (package builtins' own named
// function type) to the executor's Builtin dispatch contract.
func newBuiltinTable() map[string]executor.Builtin {
	table := make(map[string]executor.Builtin, len(builtins.Table))
	for name, fn := range builtins.Table {
		table[name] = executor.Builtin(fn)
	}
	return table
}

// newShell builds a Shell. interactive wires up history and a line
// editor; scriptArgs becomes the shell's own argc/argv ("$#").
func newShell(interactive bool, scriptArgs []string) *Shell {
	home := homeDir()
	fs := afero.NewOsFs()

	cfg, err := config.Load(fs, home)
	if err != nil {
		fmt.Fprintf(os.Stderr, "essence: config: %v\n", err)
		cfg = config.Default()
	}
	applyPromptConfig(cfg)

	var hist *historystore.Store
	if interactive {
		if hist, err = historystore.Open(fs, home); err != nil {
			fmt.Fprintf(os.Stderr, "essence: history: %v\n", err)
			hist = nil
		} else if hist != nil {
			hist.SetLimit(cfg.HistoryLimit)
		}
	}

	pc := pathcache.New(pathCacheSize)

	sm, err := secrets.NewManager(secrets.WithFallback())
	if err != nil {
		fmt.Fprintf(os.Stderr, "essence: secrets: %v\n", err)
		sm = nil
	}

	inputType := shellctx.Script
	if interactive {
		inputType = shellctx.Interactive
	}

	ctx := shellctx.New(inputType, scriptArgs, hist, pc, sm)
	ctx.Env.OnPathChanged(pc.Invalidate)
	ctx.DisableSubstitutionTruncationBug = !cfg.CompatSubstitutionTruncation

	ex := executor.New(newBuiltinTable())

	var editor *lineedit.Editor
	if interactive {
		editor = lineedit.New(hist, pc)
	}

	return &Shell{ctx: ctx, exec: ex, editor: editor}
}

// applyPromptConfig exports PS1/PS2 into the process environment when
// the config file overrides them, so promptexpander.FromEnv picks them
// up the same way it would a user-set shell variable.
func applyPromptConfig(cfg config.Config) {
	if cfg.PS1 != "" {
		os.Setenv("PS1", cfg.PS1)
	}
	if cfg.PS2 != "" {
		os.Setenv("PS2", cfg.PS2)
	}
}

func homeDir() string {
	if h := os.Getenv("HOME"); h != "" {
		return h
	}
	return "/root/"
}

func selfPath() string {
	if p, err := os.Executable(); err == nil {
		return p
	}
	return "essence"
}

// run drives Interpret/Execute over stream until it is exhausted,
// returning the shell's final exit status.
func (s *Shell) run(stream *lexer.Stream) int {
	lex := lexer.New(stream)
	sub := &parser.ChildShellSubstituter{SelfPath: selfPath()}

	for {
		p := parser.New(lex, s.ctx, s.exec, sub)
		list, err := p.Interpret()
		if err != nil {
			if se, ok := err.(*parseerr.SyntaxError); ok {
				fmt.Fprint(os.Stderr, se.Format())
			} else {
				fmt.Fprintf(os.Stderr, "essence: %v\n", err)
			}
			s.ctx.LastExitStatus = 1
		} else if !list.Empty() {
			s.exec.Execute(list, s.ctx)
		}

		if stream.AtEOF() {
			break
		}
	}

	return s.ctx.LastExitStatus
}

// RunInteractive starts the REPL: source $HOME/.esrc if present, enter
// raw terminal mode, then read and execute lines until EOF (Ctrl-D).
func RunInteractive() int {
	s := newShell(true, nil)
	executor.InstallInteractiveSignalDiscipline()

	s.sourceStartupFile()

	if err := s.editor.EnterRawMode(); err != nil {
		fmt.Fprintf(os.Stderr, "essence: %v\n", err)
	}
	defer s.editor.Restore()
	defer func() {
		if s.ctx.History != nil {
			s.ctx.History.Close()
		}
	}()

	promptFn := func(mode shellctx.PromptMode) string {
		name := "PS1"
		fallback := promptexpander.FallbackPS1
		if mode == shellctx.PS2 {
			name, fallback = "PS2", promptexpander.FallbackPS2
		}
		raw := promptexpander.FromEnv(name, fallback)
		return promptexpander.Expand(raw, promptexpander.State{LastExitStatus: s.ctx.LastExitStatus}, time.Now())
	}

	src := &input.Interactive{Reader: s.editor, Prompt: promptFn}
	stream := lexer.NewStream(src, shellctx.PS1)
	return s.run(stream)
}

// sourceStartupFile executes $HOME/.esrc as a script before the
// interactive loop starts, ignoring a missing file but reporting (and
// proceeding past) any other open failure.
func (s *Shell) sourceStartupFile() {
	path := homeDir() + "/.esrc"
	f, err := os.Open(path)
	if err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "essence: %s: %v\n", path, err)
			s.ctx.LastExitStatus = 127
		}
		return
	}
	defer f.Close()

	stream := lexer.NewStream(input.NewScript(f), shellctx.PS1)
	s.run(stream)
}

// RunOnce parses and executes text (the -c argument) once.
func RunOnce(text string) int {
	s := newShell(false, nil)
	stream := lexer.NewStream(input.NewOnce(text), shellctx.PS1)
	return s.run(stream)
}

// RunScript executes the file at path as a script; args becomes the
// shell's own argc/argv exposed via "$#". Returns 127 if path cannot
// be opened.
func RunScript(path string, args []string) int {
	f, err := os.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "essence: %s: %v\n", path, err)
		return 127
	}
	defer f.Close()

	s := newShell(false, args)
	stream := lexer.NewStream(input.NewScript(f), shellctx.PS1)
	return s.run(stream)
}
