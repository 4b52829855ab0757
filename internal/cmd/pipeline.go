package cmd

import (
	"github.com/spf13/cobra"

	"github.com/taxonline/admin/cli/pkg/api"
	"github.com/taxonline/admin/cli/pkg/formatter"
	"github.com/taxonline/admin/cli/pkg/output"
)

var (
	jobsStatus string
	jobsLimit  int

	rollbackYes bool
)

var pipelineCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Inspect indexing jobs",
}

var pipelineJobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List indexing jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		jobs, err := app.Pipeline.Jobs(cmd.Context(), api.JobFilter{Status: jobsStatus, Limit: jobsLimit})
		if err != nil {
			return err
		}
		return output.PrintTable(formatter.JobHeaders, formatter.JobRows(jobs), jobs)
	},
}

var pipelineJobCmd = &cobra.Command{
	Use:   "job <id>",
	Short: "Show one job with its stored logs",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID("job id", args[0])
		if err != nil {
			return err
		}
		job, err := app.Pipeline.Job(cmd.Context(), id)
		if err != nil {
			return err
		}
		if output.GetOutputFormat() == output.FormatJSON {
			return output.Print("", job)
		}
		if err := output.PrintRecord("Job", formatter.JobRecord(job)); err != nil {
			return err
		}
		for _, ev := range job.Logs {
			printEvent(job.ID, ev)
		}
		return nil
	},
}

var pipelineRollbackCmd = &cobra.Command{
	Use:   "rollback <id>",
	Short: "Remove everything a completed or failed job indexed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID("job id", args[0])
		if err != nil {
			return err
		}
		ok, err := confirm("Roll back job "+args[0]+"?", rollbackYes)
		if err != nil || !ok {
			return err
		}
		if err := app.Pipeline.Rollback(cmd.Context(), id); err != nil {
			return err
		}
		formatter.PrintSuccess("Rolled back job %d", id)
		return nil
	},
}

var pipelineLogsCmd = &cobra.Command{
	Use:   "logs <id>",
	Short: "Stream the live log of a job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID("job id", args[0])
		if err != nil {
			return err
		}
		h, err := app.Pipeline.Logs(cmd.Context(), id)
		if cmd.Context().Err() != nil {
			// Interrupted by the user.
			return nil
		}
		if err != nil {
			return err
		}
		if last, ok := h.Buffer().Last(); ok {
			formatter.PrintInfo("Job %d ended: %s", id, last.Status)
		}
		return nil
	},
}

func init() {
	pipelineJobsCmd.Flags().StringVar(&jobsStatus, "status", "", "Filter by status")
	pipelineJobsCmd.Flags().IntVar(&jobsLimit, "limit", 50, "Maximum number of jobs")

	pipelineRollbackCmd.Flags().BoolVarP(&rollbackYes, "yes", "y", false, "Skip confirmation")

	pipelineCmd.AddCommand(pipelineJobsCmd)
	pipelineCmd.AddCommand(pipelineJobCmd)
	pipelineCmd.AddCommand(pipelineRollbackCmd)
	pipelineCmd.AddCommand(pipelineLogsCmd)
}
