// Package executor runs command.List values built by the parser:
// builtin dispatch, PATH-searching fork/exec, fd redirection,
// pipelines, conditional short-circuit chaining, and foreground
// process-group/terminal control.
package executor

import (
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"golang.org/x/sys/unix"
	"golang.org/x/term"

	"github.com/phillarmonic/essence/internal/command"
	"github.com/phillarmonic/essence/internal/shellctx"
)

// Builtin is the dispatch contract for builtin commands (cd, pwd,
// export, exit, help): invoked synchronously with the full argv,
// returning the status to become last_exit_status.
type Builtin func(ctx *shellctx.Context, argv []string) int

// Executor dispatches command.List values.
type Executor struct {
	Builtins map[string]Builtin
}

// New builds an Executor dispatching the given builtin table.
func New(builtins map[string]Builtin) *Executor {
	return &Executor{Builtins: builtins}
}

// jobControlSignals are ignored by the shell during interactive
// operation and reset to their default disposition around a child's
// fork+exec window, so the child observes SIG_DFL.
var jobControlSignals = []os.Signal{
	unix.SIGINT, unix.SIGQUIT, unix.SIGTSTP, unix.SIGTTIN, unix.SIGTTOU,
}

// InstallInteractiveSignalDiscipline ignores the interactive-job
// signals for the shell process itself. Called once by the CLI
// entrypoint on entering interactive mode.
func InstallInteractiveSignalDiscipline() {
	signal.Ignore(jobControlSignals...)
}

// withDefaultChildSignals resets the job-control signals to SIG_DFL for
// the duration of fn (the child's fork+exec window sees the default
// disposition), then restores the shell's own SIG_IGN.
func withDefaultChildSignals(fn func() error) error {
	signal.Reset(jobControlSignals...)
	defer signal.Ignore(jobControlSignals...)
	return fn()
}

// Execute implements parser.Executor: it runs every command in list in
// order, honoring pipeline spans and AND/OR short-circuiting, leaving
// the outcome in ctx.LastExitStatus / ctx.LastSignalled.
func (e *Executor) Execute(list *command.List, ctx *shellctx.Context) {
	cmds := list.Commands
	for i := 0; i < len(cmds); {
		if i > 0 {
			cmd := cmds[i]
			if cmd.Has(command.FlagOr) && ctx.LastExitStatus == 0 {
				i++
				continue
			}
			if cmd.Has(command.FlagAnd) && ctx.LastExitStatus != 0 {
				i++
				continue
			}
		}

		j := i + 1
		for j < len(cmds) && cmds[j].Has(command.FlagPipeFromPrev) {
			j++
		}
		span := cmds[i:j]

		if len(span) == 1 {
			status, signalled := e.runSingle(span[0], ctx, os.Stdin, os.Stdout, os.Stderr)
			ctx.LastExitStatus = status
			ctx.LastSignalled = signalled
		} else {
			e.runPipeline(span, ctx)
		}

		i = j
	}
}

// runSingle runs one command outside of a pipeline context: plain
// assignment, builtin dispatch, or fork/exec.
func (e *Executor) runSingle(cmd *command.Command, ctx *shellctx.Context, stdin, stdout, stderr *os.File) (int, bool) {
	if cmd.Argc() == 0 {
		if len(cmd.ExtraEnv) > 0 {
			_ = ctx.Env.Apply(cmd.ExtraEnv)
		}
		return ctx.LastExitStatus, false
	}

	if builtin, ok := e.Builtins[cmd.Argv[0]]; ok {
		return builtin(ctx, cmd.Argv), false
	}

	return e.fork(cmd, ctx, stdin, stdout, stderr)
}

func (e *Executor) fork(cmd *command.Command, ctx *shellctx.Context, stdin, stdout, stderr *os.File) (int, bool) {
	path, ok := ctx.PathCache.Lookup(cmd.Argv[0])
	if !ok {
		fmt.Fprintf(os.Stderr, "essence: %s: command not found\n", cmd.Argv[0])
		return 127, false
	}

	c := exec.Command(path, cmd.Argv[1:]...)
	c.Env = append(os.Environ(), cmd.ExtraEnv...)
	c.Stdin = pick(cmd.StdinFile, stdin)
	c.Stdout = pick(cmd.StdoutFile, stdout)
	c.Stderr = pick(cmd.StderrFile, stderr)
	c.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	startErr := withDefaultChildSignals(c.Start)
	if startErr != nil {
		fmt.Fprintf(os.Stderr, "essence: %s: %v\n", cmd.Argv[0], startErr)
		return 126, false
	}

	e.foreground(c.Process.Pid)
	err := c.Wait()
	e.background()

	return exitResult(cmd.Argv[0], err)
}

// runPipeline wires a span of PIPE_FROM_PREV-linked commands through
// n-1 anonymous pipes, spawns every stage, closes the parent's pipe
// fds, then waits for each stage in order.
func (e *Executor) runPipeline(span []*command.Command, ctx *shellctx.Context) {
	n := len(span)
	readEnds := make([]*os.File, n-1)
	writeEnds := make([]*os.File, n-1)
	allPipeFDs := make([]*os.File, 0, (n-1)*2)

	for k := 0; k < n-1; k++ {
		r, w, err := os.Pipe()
		if err != nil {
			fmt.Fprintf(os.Stderr, "essence: pipe: %v\n", err)
			for _, f := range allPipeFDs {
				f.Close()
			}
			ctx.LastExitStatus = 1
			ctx.LastSignalled = false
			return
		}
		readEnds[k], writeEnds[k] = r, w
		allPipeFDs = append(allPipeFDs, r, w)
	}

	procs := make([]*exec.Cmd, n)
	names := make([]string, n)
	spawnFailedStatus := -1

	for k := 0; k < n; k++ {
		stdin, stdout := os.Stdin, os.Stdout
		if k > 0 {
			stdin = readEnds[k-1]
		}
		if k < n-1 {
			stdout = writeEnds[k]
		}

		cmd := span[k]
		names[k] = cmd.Argv[0]

		if builtin, ok := e.Builtins[cmd.Argv[0]]; ok {
			// Builtins run in-process and cannot straddle a real OS
			// pipe boundary; they are dispatched synchronously against
			// the shell's own stdio whenever the command name matches.
			ctx.LastExitStatus = builtin(ctx, cmd.Argv)
			continue
		}

		path, ok := ctx.PathCache.Lookup(cmd.Argv[0])
		if !ok {
			fmt.Fprintf(os.Stderr, "essence: %s: command not found\n", cmd.Argv[0])
			spawnFailedStatus = 127
			break
		}

		c := exec.Command(path, cmd.Argv[1:]...)
		c.Env = append(os.Environ(), cmd.ExtraEnv...)
		c.Stdin = pick(cmd.StdinFile, stdin)
		c.Stdout = pick(cmd.StdoutFile, stdout)
		c.Stderr = pick(cmd.StderrFile, os.Stderr)
		c.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

		if err := withDefaultChildSignals(c.Start); err != nil {
			fmt.Fprintf(os.Stderr, "essence: %s: %v\n", cmd.Argv[0], err)
			spawnFailedStatus = 126
			break
		}
		procs[k] = c
	}

	for _, f := range allPipeFDs {
		f.Close()
	}

	lastStatus := ctx.LastExitStatus
	lastSignalled := false
	firstForeground := true

	for k, c := range procs {
		if c == nil {
			continue
		}
		if firstForeground {
			e.foreground(c.Process.Pid)
			firstForeground = false
		}
		status, signalled := exitResult(names[k], c.Wait())
		lastStatus, lastSignalled = status, signalled
		if signalled {
			break
		}
	}
	if !firstForeground {
		e.background()
	}

	if spawnFailedStatus >= 0 {
		lastStatus = spawnFailedStatus
	}
	ctx.LastExitStatus = lastStatus
	ctx.LastSignalled = lastSignalled
}

func pick(redirected, fallback *os.File) *os.File {
	if redirected != nil {
		return redirected
	}
	return fallback
}

// foreground transfers terminal foreground control to pid for the
// duration of a wait, a no-op when stdin isn't a controlling terminal
// (scripts, -c strings, tests).
func (e *Executor) foreground(pid int) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return
	}
	_ = unix.Tcsetpgrp(int(os.Stdin.Fd()), pid)
}

// background reclaims terminal foreground control for the shell's own
// process group, ignoring SIGTTOU for the instant of the ioctl (a
// background writer to the controlling terminal would otherwise stop
// the shell itself).
func (e *Executor) background() {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return
	}
	signal.Ignore(unix.SIGTTOU)
	_ = unix.Tcsetpgrp(int(os.Stdin.Fd()), unix.Getpgrp())
	signal.Ignore(jobControlSignals...)
}

func exitResult(name string, err error) (int, bool) {
	if err == nil {
		return 0, false
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			if ws.Signaled() {
				fmt.Fprintf(os.Stderr, "essence: %s: %s\n", name, ws.Signal())
				return 128 + int(ws.Signal()), true
			}
			return ws.ExitStatus(), false
		}
		return exitErr.ExitCode(), false
	}
	fmt.Fprintf(os.Stderr, "essence: %s: %v\n", name, err)
	return 126, false
}
