// Package builtins implements the five commands the executor dispatches
// synchronously rather than forking: cd, pwd, export, exit, help.
package builtins

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/phillarmonic/essence/internal/shellctx"
)

// Func matches the executor's Builtin dispatch contract without this
// package importing the executor package, avoiding an import cycle;
// cmd/essence wires Table directly into an executor.Builtin map.
type Func func(ctx *shellctx.Context, argv []string) int

// Table is the builtin dispatch table.
var Table = map[string]Func{
	"cd":     Cd,
	"pwd":    Pwd,
	"export": Export,
	"exit":   Exit,
	"help":   Help,
}

// Cd changes the shell's working directory, falling back to HOME (then
// "/root/") when given no argument.
func Cd(ctx *shellctx.Context, argv []string) int {
	dir := ctx.Env.Get("HOME")
	if dir == "" {
		dir = "/root/"
	}
	if len(argv) > 1 {
		dir = argv[1]
	}
	if err := os.Chdir(dir); err != nil {
		fmt.Fprintf(os.Stderr, "essence: cd: %v\n", err)
		return 1
	}
	return 0
}

// Pwd prints the working directory.
func Pwd(ctx *shellctx.Context, argv []string) int {
	dir, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "essence: pwd: %v\n", err)
		return 1
	}
	fmt.Println(dir)
	return 0
}

// Export assigns NAME=VALUE pairs to the shell environment. The
// `--secret NAME` form resolves NAME's value from the configured
// secrets backend instead of a literal; `--secret NAME=VALUE` instead
// writes VALUE into the secrets backend under NAME, then exports it.
func Export(ctx *shellctx.Context, argv []string) int {
	args := argv[1:]
	status := 0

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if arg == "--secret" {
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "essence: export: --secret requires a NAME")
				status = 1
				continue
			}
			i++
			spec := args[i]

			var name, value string
			var err error
			if n, v, ok := strings.Cut(spec, "="); ok {
				name, value = n, v
				err = storeSecret(ctx, name, value)
			} else {
				name = spec
				value, err = exportSecret(ctx, name)
			}
			if err != nil {
				fmt.Fprintf(os.Stderr, "essence: export: --secret %s: %v\n", name, err)
				status = 1
				continue
			}
			if err := ctx.Env.Set(name, value); err != nil {
				fmt.Fprintf(os.Stderr, "essence: export: %s: %v\n", name, err)
				status = 1
			}
			continue
		}

		name, value, ok := strings.Cut(arg, "=")
		if !ok {
			fmt.Fprintf(os.Stderr, "essence: export: %s: not a NAME=VALUE pair\n", arg)
			status = 1
			continue
		}
		if err := ctx.Env.Set(name, value); err != nil {
			fmt.Fprintf(os.Stderr, "essence: export: %s: %v\n", name, err)
			status = 1
		}
	}

	return status
}

// Exit terminates the shell process: with no argument it exits with
// last_exit_status; with an argument it exits with the given status.
func Exit(ctx *shellctx.Context, argv []string) int {
	code := ctx.LastExitStatus
	if len(argv) > 1 {
		if n, err := strconv.Atoi(argv[1]); err == nil {
			code = n
		}
	}
	if ctx.History != nil {
		_ = ctx.History.Close()
	}
	os.Exit(code)
	return code
}

// Help prints a short usage summary of the builtins.
func Help(ctx *shellctx.Context, argv []string) int {
	fmt.Println(`essence builtins:
  cd [DIR]               change the working directory
  pwd                     print the working directory
  export NAME=VALUE...    set shell environment variables
  export --secret NAME    export a value pulled from the secrets backend
  exit [STATUS]           exit the shell
  help                    show this message`)
	return 0
}
