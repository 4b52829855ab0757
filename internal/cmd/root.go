package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	clierrors "github.com/taxonline/admin/cli/pkg/errors"
	"github.com/taxonline/admin/cli/pkg/config"
	"github.com/taxonline/admin/cli/pkg/logger"
	"github.com/taxonline/admin/cli/pkg/output"
)

var (
	verbose    bool
	configPath string
	outputFmt  string
)

var rootCmd = &cobra.Command{
	Use:   "taxonline-cli",
	Short: "TaxOnline admin CLI - manage the fiscal document corpus",
	Long: `TaxOnline CLI is the administration client of the TaxOnline retrieval
backend. Upload fiscal documents, follow their indexing pipeline live,
monitor the platform, run retrieval tests and curate indexed chunks
directly from the terminal.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Init(configPath); err != nil {
			return fmt.Errorf("error initializing config: %w", err)
		}

		logger.Init(verbose)

		if outputFmt != "" {
			if !output.ValidateOutputFormat(outputFmt) {
				return clierrors.ValidationError("output", "must be one of: table, text, json")
			}
			config.Set("output.format", outputFmt)
		}

		app = newApp()
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if app != nil {
			app.Close()
		}
	},
}

// Execute runs the command tree. Interrupts cancel the running command.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if app != nil {
		app.Close()
	}
	if err != nil {
		fmt.Fprint(os.Stderr, clierrors.FormatError(err))
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default: ~/.config/taxonline/cli/config.toml)")
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", "", "Output format: table, text, json (default from config)")

	rootCmd.AddCommand(authCmd)
	rootCmd.AddCommand(documentsCmd)
	rootCmd.AddCommand(pipelineCmd)
	rootCmd.AddCommand(metricsCmd)
	rootCmd.AddCommand(analyticsCmd)
	rootCmd.AddCommand(testsCmd)
	rootCmd.AddCommand(chunksCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
