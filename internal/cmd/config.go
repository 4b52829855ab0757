package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/taxonline/admin/cli/pkg/config"
	"github.com/taxonline/admin/cli/pkg/formatter"
	"github.com/taxonline/admin/cli/pkg/output"
)

// configKeys are the settings shown by "config show", in display order.
var configKeys = []string{
	"api.base_url",
	"api.ws_url",
	"api.timeout",
	"stream.reconnect_delay_ms",
	"stream.max_reconnect_attempts",
	"stream.buffer_size",
	"output.format",
	"output.download_dir",
	"log.level",
	"log.file",
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and change CLI settings",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the resolved configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if output.GetOutputFormat() == output.FormatJSON {
			return output.Print("", config.Settings())
		}
		rows := make([][]string, 0, len(configKeys)+2)
		for _, k := range configKeys {
			rows = append(rows, []string{k, config.GetString(k)})
		}
		rows = append(rows,
			[]string{"config file", config.GetConfigFilePath()},
			[]string{"session file", config.GetSessionPath()},
		)
		return output.PrintTable([]string{"KEY", "VALUE"}, rows, nil)
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Persist a setting in the user config file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if args[0] == "output.format" && !output.ValidateOutputFormat(args[1]) {
			return fmt.Errorf("invalid output format %q: must be table, text or json", args[1])
		}
		if err := config.SetString(args[0], args[1]); err != nil {
			return fmt.Errorf("failed to write %s: %w", config.GetConfigFilePath(), err)
		}
		formatter.PrintSuccess("%s = %s", args[0], args[1])
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
