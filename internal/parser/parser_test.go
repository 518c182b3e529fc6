package parser

import (
	"path/filepath"
	"reflect"
	"testing"

	"github.com/phillarmonic/essence/internal/command"
	"github.com/phillarmonic/essence/internal/input"
	"github.com/phillarmonic/essence/internal/lexer"
	"github.com/phillarmonic/essence/internal/shellctx"
)

type fakeExecutor struct {
	calls  [][]string
	script func(list *command.List, ctx *shellctx.Context)
}

func (f *fakeExecutor) Execute(list *command.List, ctx *shellctx.Context) {
	if len(list.Commands) > 0 {
		f.calls = append(f.calls, list.Commands[0].Argv)
	}
	if f.script != nil {
		f.script(list, ctx)
	}
}

func newTestParser(src string, exec Executor, sub Substituter) *Parser {
	stream := lexer.NewStream(input.NewOnce(src), shellctx.PS1)
	lex := lexer.New(stream)
	ctx := &shellctx.Context{Env: shellctx.NewEnvironment(), ShellPID: 4242}
	return New(lex, ctx, exec, sub)
}

func argvs(list *command.List) [][]string {
	out := make([][]string, len(list.Commands))
	for i, c := range list.Commands {
		out[i] = c.Argv
	}
	return out
}

func TestInterpret_SimpleArgsAndAssignment(t *testing.T) {
	t.Setenv("A", "1")
	t.Setenv("B", "2")
	p := newTestParser("A=1 B=2 ; echo $A$B\n", nil, nil)

	list, err := p.Interpret()
	if err != nil {
		t.Fatalf("Interpret: %v", err)
	}
	if len(list.Commands) != 2 {
		t.Fatalf("got %d commands, want 2", len(list.Commands))
	}
	first := list.Commands[0]
	if first.Argc() != 0 {
		t.Fatalf("first command argc = %d, want 0", first.Argc())
	}
	wantEnv := []string{"A=1", "B=2"}
	if !reflect.DeepEqual(first.ExtraEnv, wantEnv) {
		t.Fatalf("ExtraEnv = %v, want %v", first.ExtraEnv, wantEnv)
	}
	second := list.Commands[1]
	want := []string{"echo", "12"}
	if !reflect.DeepEqual(second.Argv, want) {
		t.Fatalf("second.Argv = %v, want %v", second.Argv, want)
	}
}

func TestInterpret_Pipeline(t *testing.T) {
	p := newTestParser("echo hi | tr a-z A-Z\n", nil, nil)
	list, err := p.Interpret()
	if err != nil {
		t.Fatalf("Interpret: %v", err)
	}
	if len(list.Commands) != 2 {
		t.Fatalf("got %d commands, want 2", len(list.Commands))
	}
	if list.Commands[0].Has(command.FlagPipeFromPrev) {
		t.Fatal("first command should not carry PIPE_FROM_PREV")
	}
	if !list.Commands[1].Has(command.FlagPipeFromPrev) {
		t.Fatal("second command should carry PIPE_FROM_PREV")
	}
	want := [][]string{{"echo", "hi"}, {"tr", "a-z", "A-Z"}}
	if got := argvs(list); !reflect.DeepEqual(got, want) {
		t.Fatalf("argv = %v, want %v", got, want)
	}
}

func TestInterpret_ConditionalChainFlagsWithoutPipe(t *testing.T) {
	p := newTestParser("false && echo x || echo y\n", nil, nil)
	list, err := p.Interpret()
	if err != nil {
		t.Fatalf("Interpret: %v", err)
	}
	if len(list.Commands) != 3 {
		t.Fatalf("got %d commands, want 3", len(list.Commands))
	}
	if !list.Commands[1].Has(command.FlagAnd) {
		t.Fatal("second command should carry AND")
	}
	if list.Commands[1].Has(command.FlagPipeFromPrev) {
		t.Fatal("second command should not carry PIPE_FROM_PREV")
	}
	if !list.Commands[2].Has(command.FlagOr) {
		t.Fatal("third command should carry OR")
	}
}

func TestInterpret_Redirect(t *testing.T) {
	target := filepath.Join(t.TempDir(), "out.txt")
	p := newTestParser("echo hi > "+target+"\n", nil, nil)
	list, err := p.Interpret()
	if err != nil {
		t.Fatalf("Interpret: %v", err)
	}
	cmd := list.Commands[0]
	if cmd.StdoutFile == nil {
		t.Fatal("expected StdoutFile to be set")
	}
	defer cmd.StdoutFile.Close()
	if cmd.StdoutFile.Name() != target {
		t.Fatalf("StdoutFile.Name() = %q, want %q", cmd.StdoutFile.Name(), target)
	}
	if !reflect.DeepEqual(cmd.Argv, []string{"echo", "hi"}) {
		t.Fatalf("Argv = %v, want [echo hi]", cmd.Argv)
	}
}

func TestInterpret_SpecialVariables(t *testing.T) {
	stream := lexer.NewStream(input.NewOnce("echo $$ $? $#\n"), shellctx.PS1)
	lex := lexer.New(stream)
	ctx := &shellctx.Context{
		Env:            shellctx.NewEnvironment(),
		ShellPID:       4242,
		LastExitStatus: 7,
		ScriptArgs:     []string{"a", "b"},
	}
	p := New(lex, ctx, nil, nil)

	list, err := p.Interpret()
	if err != nil {
		t.Fatalf("Interpret: %v", err)
	}
	want := []string{"echo", "4242", "7", "2"}
	if got := list.Commands[0].Argv; !reflect.DeepEqual(got, want) {
		t.Fatalf("Argv = %v, want %v", got, want)
	}
}

func TestInterpret_SingleQuoteSuppressesExpansion(t *testing.T) {
	t.Setenv("A", "1")
	p := newTestParser(`echo '$A'` + "\n", nil, nil)
	list, err := p.Interpret()
	if err != nil {
		t.Fatalf("Interpret: %v", err)
	}
	want := []string{"echo", "$A"}
	if got := list.Commands[0].Argv; !reflect.DeepEqual(got, want) {
		t.Fatalf("Argv = %v, want %v", got, want)
	}
}

func TestInterpret_DoubleQuoteStillExpandsDollar(t *testing.T) {
	t.Setenv("A", "1")
	p := newTestParser(`echo "$A"` + "\n", nil, nil)
	list, err := p.Interpret()
	if err != nil {
		t.Fatalf("Interpret: %v", err)
	}
	want := []string{"echo", "1"}
	if got := list.Commands[0].Argv; !reflect.DeepEqual(got, want) {
		t.Fatalf("Argv = %v, want %v", got, want)
	}
}

func TestInterpret_SyntaxErrorPipeAtStart(t *testing.T) {
	p := newTestParser("| echo hi\n", nil, nil)
	if _, err := p.Interpret(); err == nil {
		t.Fatal("expected a syntax error")
	}
}

func TestInterpret_SyntaxErrorRedirectWithoutFilename(t *testing.T) {
	p := newTestParser("echo hi >", nil, nil)
	if _, err := p.Interpret(); err == nil {
		t.Fatal("expected a syntax error")
	}
}

func TestInterpret_StrayElseIsSyntaxError(t *testing.T) {
	p := newTestParser("else echo no\n", nil, nil)
	if _, err := p.Interpret(); err == nil {
		t.Fatal("expected a syntax error for a stray else")
	}
}

func TestIf_RunsThenBranchOnSuccess(t *testing.T) {
	exec := &fakeExecutor{script: func(list *command.List, ctx *shellctx.Context) {
		if len(list.Commands) > 0 && len(list.Commands[0].Argv) > 0 && list.Commands[0].Argv[0] == "true" {
			ctx.LastExitStatus = 0
		}
	}}
	p := newTestParser("if true; then echo yes; else echo no; fi\n", exec, nil)
	if _, err := p.Interpret(); err != nil {
		t.Fatalf("Interpret: %v", err)
	}
	if len(exec.calls) != 2 {
		t.Fatalf("got %d Execute calls, want 2 (cond, then)", len(exec.calls))
	}
	if !reflect.DeepEqual(exec.calls[0], []string{"true"}) {
		t.Fatalf("first call = %v, want [true]", exec.calls[0])
	}
	if !reflect.DeepEqual(exec.calls[1], []string{"echo", "yes"}) {
		t.Fatalf("second call = %v, want [echo yes]", exec.calls[1])
	}
}

func TestIf_RunsElseBranchOnFailure(t *testing.T) {
	exec := &fakeExecutor{script: func(list *command.List, ctx *shellctx.Context) {
		if len(list.Commands) > 0 && len(list.Commands[0].Argv) > 0 && list.Commands[0].Argv[0] == "false" {
			ctx.LastExitStatus = 1
		}
	}}
	p := newTestParser("if false; then echo yes; else echo no; fi\n", exec, nil)
	if _, err := p.Interpret(); err != nil {
		t.Fatalf("Interpret: %v", err)
	}
	if len(exec.calls) != 2 {
		t.Fatalf("got %d Execute calls, want 2 (cond, else)", len(exec.calls))
	}
	if exec.calls[1][0] != "echo" {
		t.Fatalf("expected the else branch's echo to run, got %v", exec.calls[1])
	}
}

func TestWhile_StopsWhenConditionFails(t *testing.T) {
	iterations := 0
	exec := &fakeExecutor{script: func(list *command.List, ctx *shellctx.Context) {
		if len(list.Commands) == 0 || len(list.Commands[0].Argv) == 0 {
			return
		}
		switch list.Commands[0].Argv[0] {
		case "test":
			iterations++
			if iterations >= 3 {
				ctx.LastExitStatus = 1
			} else {
				ctx.LastExitStatus = 0
			}
		}
	}}
	p := newTestParser("while test; do echo x; done\n", exec, nil)
	if _, err := p.Interpret(); err != nil {
		t.Fatalf("Interpret: %v", err)
	}
	if iterations != 3 {
		t.Fatalf("condition ran %d times, want 3", iterations)
	}
	bodyRuns := 0
	for _, c := range exec.calls {
		if len(c) > 0 && c[0] == "echo" {
			bodyRuns++
		}
	}
	if bodyRuns != 2 {
		t.Fatalf("body ran %d times, want 2", bodyRuns)
	}
}

func TestWhile_StopsOnSignalled(t *testing.T) {
	exec := &fakeExecutor{script: func(list *command.List, ctx *shellctx.Context) {
		if len(list.Commands) == 0 || len(list.Commands[0].Argv) == 0 {
			return
		}
		if list.Commands[0].Argv[0] == "true" {
			ctx.LastExitStatus = 0
			ctx.LastSignalled = true
		}
	}}
	p := newTestParser("while true; do echo x; done\n", exec, nil)
	if _, err := p.Interpret(); err != nil {
		t.Fatalf("Interpret: %v", err)
	}
	if len(exec.calls) != 1 {
		t.Fatalf("got %d Execute calls, want 1 (condition only, signalled stops the loop)", len(exec.calls))
	}
}

type fixedSubstituter struct {
	out []byte
}

func (f fixedSubstituter) Substitute(string) []byte {
	return f.out
}

func TestInterpret_CommandSubstitutionStripsSentinelAndNewline(t *testing.T) {
	// With a zero-valued Context the leading byte of genuine output is
	// dropped (no sentinel is written by the parent); this test pins
	// that default behavior.
	sub := fixedSubstituter{out: []byte("Xhello\n")}
	p := newTestParser("echo $(date)\n", nil, sub)
	list, err := p.Interpret()
	if err != nil {
		t.Fatalf("Interpret: %v", err)
	}
	want := []string{"echo", "hello"}
	if got := list.Commands[0].Argv; !reflect.DeepEqual(got, want) {
		t.Fatalf("Argv = %v, want %v", got, want)
	}
}

func TestInterpret_EmptyLineProducesEmptyList(t *testing.T) {
	p := newTestParser("\n", nil, nil)
	list, err := p.Interpret()
	if err != nil {
		t.Fatalf("Interpret: %v", err)
	}
	if !list.Empty() {
		t.Fatalf("expected an empty list for a blank line, got %v", argvs(list))
	}
}
