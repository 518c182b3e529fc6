package app

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// App represents the essence CLI application.
type App struct {
	version string
	commit  string
	date    string

	rootCmd *cobra.Command

	command     string
	showVersion bool
	showHelp    bool
	status      int
}

// NewApp creates the essence CLI application: essence with no arguments
// starts the interactive REPL, "-c STRING" executes STRING once, and a
// positional FILE plus trailing arguments runs FILE as a script.
func NewApp(version, commit, date string) *App {
	a := &App{version: version, commit: commit, date: date}

	a.rootCmd = &cobra.Command{
		Use:   "essence [-c STRING | FILE [args...]]",
		Short: "essence is a small POSIX-flavored interactive shell",
		Long: `essence is a small POSIX-flavored interactive shell.

Invoked with no arguments it starts an interactive REPL, sourcing
$HOME/.esrc first if present. Invoked as "essence -c STRING" it parses
and executes STRING once. Invoked as "essence FILE [args...]" it runs
FILE as a script; the number of trailing arguments is available to the
script as $#, and the individual arguments ($1, $2, ...) are not
expanded.`,
		RunE:          a.run,
		Args:          cobra.ArbitraryArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	a.setupFlags()
	// cobra answers -h/--help itself before RunE runs, so the usage text
	// and exit status 1 are produced by the help function.
	a.rootCmd.SetHelpFunc(func(cmd *cobra.Command, _ []string) {
		fmt.Fprint(os.Stderr, cmd.UsageString())
		a.status = 1
	})
	a.rootCmd.AddCommand(a.createCompletionCommand())

	return a
}

func (a *App) setupFlags() {
	flags := a.rootCmd.Flags()
	flags.StringVarP(&a.command, "command", "c", "", "parse and execute STRING once, then exit")
	flags.BoolVarP(&a.showVersion, "version", "v", false, "print version information and exit")
	flags.BoolVarP(&a.showHelp, "help", "h", false, "show usage information and exit")
}

// Execute runs the CLI application, returning the process exit status.
func (a *App) Execute() int {
	if err := a.rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "essence: %v\n", err)
		return 1
	}
	return a.status
}

func (a *App) run(cmd *cobra.Command, args []string) error {
	if a.showHelp {
		fmt.Fprint(os.Stderr, cmd.UsageString())
		a.status = 1
		return nil
	}

	if a.showVersion {
		if err := ShowVersion(a.version, a.commit, a.date); err != nil {
			return err
		}
		a.status = 0
		return nil
	}

	if cmd.Flags().Changed("command") {
		a.status = RunOnce(a.command)
		return nil
	}

	if len(args) > 0 {
		a.status = RunScript(args[0], args[1:])
		return nil
	}

	a.status = RunInteractive()
	return nil
}
