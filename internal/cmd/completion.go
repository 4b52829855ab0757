package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion scripts",
	Long: `Generate shell completion scripts for bash, zsh, fish, or powershell.

To load completions in your shell session, run:

Bash:
  source <(taxonline-cli completion bash)

Zsh:
  source <(taxonline-cli completion zsh)

Fish:
  taxonline-cli completion fish | source

PowerShell:
  taxonline-cli completion powershell | Out-String | Invoke-Expression

To load completions for every new session, execute once:

Bash:
  taxonline-cli completion bash > /etc/bash_completion.d/taxonline-cli

Zsh:
  taxonline-cli completion zsh > /usr/local/share/zsh/site-functions/_taxonline-cli

Fish:
  taxonline-cli completion fish > ~/.config/fish/completions/taxonline-cli.fish

PowerShell:
  taxonline-cli completion powershell >> $PROFILE
`,
	ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		switch args[0] {
		case "bash":
			return rootCmd.GenBashCompletionV2(out, true)
		case "zsh":
			return rootCmd.GenZshCompletion(out)
		case "fish":
			return rootCmd.GenFishCompletion(out, true)
		case "powershell":
			return rootCmd.GenPowerShellCompletionWithDesc(out)
		}
		return fmt.Errorf("unknown shell: %s", args[0])
	},
}

func init() {
	rootCmd.AddCommand(completionCmd)
}
