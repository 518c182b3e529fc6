package app

import (
	"os"

	"github.com/spf13/cobra"
)

// createCompletionCommand builds the "completion" subcommand that emits a
// shell completion script for essence's own flags. essence has no
// sub-tasks to complete (interactive command/file-name completion is
// handled by internal/lineedit while the shell is running), so this is
// limited to cobra's own flag/command completion machinery.
func (a *App) createCompletionCommand() *cobra.Command {
	return &cobra.Command{
		Use:                   "completion [bash|zsh|fish|powershell]",
		Short:                 "Generate completion script",
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		Run: func(cmd *cobra.Command, args []string) {
			switch args[0] {
			case "bash":
				_ = a.rootCmd.GenBashCompletion(os.Stdout)
			case "zsh":
				_ = a.rootCmd.GenZshCompletion(os.Stdout)
			case "fish":
				_ = a.rootCmd.GenFishCompletion(os.Stdout, true)
			case "powershell":
				_ = a.rootCmd.GenPowerShellCompletionWithDesc(os.Stdout)
			}
		},
	}
}
