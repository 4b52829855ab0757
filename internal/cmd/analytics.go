package cmd

import (
	"github.com/spf13/cobra"

	"github.com/taxonline/admin/cli/pkg/api"
	"github.com/taxonline/admin/cli/pkg/formatter"
	"github.com/taxonline/admin/cli/pkg/output"
)

var (
	heatmapDays  int
	topLimit     int
	topFailed    bool
	behaviorDays int

	exportFormat string
	exportTable  string
	exportDays   int
	exportDir    string
)

var analyticsCmd = &cobra.Command{
	Use:   "analytics",
	Short: "Corpus coverage and query analytics",
}

var analyticsCoverageCmd = &cobra.Command{
	Use:   "coverage",
	Short: "Documents and chunks per fiscal domain",
	RunE: func(cmd *cobra.Command, args []string) error {
		rows, err := app.Analytics.Coverage(cmd.Context())
		if err != nil {
			return err
		}
		return output.PrintTable(formatter.CoverageHeaders, formatter.CoverageRows(rows), rows)
	},
}

var analyticsHeatmapCmd = &cobra.Command{
	Use:   "heatmap",
	Short: "Queries per day and domain",
	RunE: func(cmd *cobra.Command, args []string) error {
		cells, err := app.Analytics.Heatmap(cmd.Context(), heatmapDays)
		if err != nil {
			return err
		}
		return output.PrintTable(formatter.HeatmapHeaders, formatter.HeatmapRows(cells), cells)
	},
}

var analyticsTopQueriesCmd = &cobra.Command{
	Use:   "top-queries",
	Short: "Most frequent queries",
	RunE: func(cmd *cobra.Command, args []string) error {
		rows, err := app.Analytics.TopQueries(cmd.Context(), topLimit, topFailed)
		if err != nil {
			return err
		}
		return output.PrintTable(formatter.TopQueryHeaders, formatter.TopQueryRows(rows), rows)
	},
}

var analyticsBehaviorCmd = &cobra.Command{
	Use:   "behavior",
	Short: "Hourly user activity",
	RunE: func(cmd *cobra.Command, args []string) error {
		points, err := app.Analytics.Behavior(cmd.Context(), behaviorDays)
		if err != nil {
			return err
		}
		return output.PrintTable(formatter.BehaviorHeaders, formatter.BehaviorRows(points), points)
	},
}

var analyticsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Download query logs or documents as CSV or JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := exportDir
		if dir == "" {
			dir = downloadDir()
		}
		path, err := app.Analytics.Export(cmd.Context(), api.ExportRequest{
			Format: exportFormat,
			Table:  exportTable,
			Days:   exportDays,
		}, dir)
		if err != nil {
			return err
		}
		formatter.PrintSuccess("Exported to %s", path)
		return nil
	},
}

func init() {
	analyticsHeatmapCmd.Flags().IntVar(&heatmapDays, "days", 30, "Days of history")
	analyticsTopQueriesCmd.Flags().IntVar(&topLimit, "limit", 20, "Number of queries")
	analyticsTopQueriesCmd.Flags().BoolVar(&topFailed, "failed", false, "Only queries that returned nothing")
	analyticsBehaviorCmd.Flags().IntVar(&behaviorDays, "days", 7, "Days of history")

	analyticsExportCmd.Flags().StringVar(&exportFormat, "format", "csv", "File format: csv or json")
	analyticsExportCmd.Flags().StringVar(&exportTable, "table", "query_logs", "Table: query_logs or documents")
	analyticsExportCmd.Flags().IntVar(&exportDays, "days", 30, "Days of history")
	analyticsExportCmd.Flags().StringVar(&exportDir, "dir", "", "Target directory (default: output.download_dir)")

	analyticsCmd.AddCommand(analyticsCoverageCmd)
	analyticsCmd.AddCommand(analyticsHeatmapCmd)
	analyticsCmd.AddCommand(analyticsTopQueriesCmd)
	analyticsCmd.AddCommand(analyticsBehaviorCmd)
	analyticsCmd.AddCommand(analyticsExportCmd)
}
