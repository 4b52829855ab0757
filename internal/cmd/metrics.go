package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/taxonline/admin/cli/pkg/formatter"
	"github.com/taxonline/admin/cli/pkg/output"
	"github.com/taxonline/admin/cli/pkg/service"
)

var (
	perfHours    int
	dashHours    int
	dashWatch    bool
	dashInterval time.Duration
)

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Monitor backend health and query performance",
}

var metricsHealthCmd = &cobra.Command{
	Use:   "health",
	Short: "Show the health of the backend services",
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := app.Monitoring.Health(cmd.Context())
		if err != nil {
			return err
		}
		if output.GetOutputFormat() != output.FormatJSON {
			formatter.Bold.Fprintf(output.Out, "Overall: %s\n", formatter.Status(h.Overall))
		}
		return output.PrintTable(formatter.HealthHeaders, formatter.HealthRows(h), h)
	},
}

var metricsRealtimeCmd = &cobra.Command{
	Use:   "realtime",
	Short: "Show query metrics for the last hour",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := app.Monitoring.Realtime(cmd.Context())
		if err != nil {
			return err
		}
		return output.PrintRecord("Last hour", formatter.RealtimeRecord(m))
	},
}

var metricsPerformanceCmd = &cobra.Command{
	Use:   "performance",
	Short: "Show hourly query performance",
	RunE: func(cmd *cobra.Command, args []string) error {
		points, err := app.Monitoring.Performance(cmd.Context(), perfHours)
		if err != nil {
			return err
		}
		return output.PrintTable(formatter.PerformanceHeaders, formatter.PerformanceRows(points), points)
	},
}

var metricsDashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Show health, realtime and performance together",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !dashWatch {
			d, err := app.Monitoring.Dashboard(cmd.Context(), dashHours)
			if err != nil {
				return err
			}
			return printDashboard(d)
		}

		return app.Monitoring.Watch(cmd.Context(), dashHours, dashInterval, func(d *service.Dashboard, err error) {
			if err != nil {
				formatter.PrintError("refresh failed: %v", err)
				return
			}
			if output.GetOutputFormat() != output.FormatJSON {
				formatter.Muted.Fprintf(output.Out, "\n--- %s ---\n", time.Now().Format("15:04:05"))
			}
			if err := printDashboard(d); err != nil {
				formatter.PrintError("%v", err)
			}
		})
	},
}

func printDashboard(d *service.Dashboard) error {
	if output.GetOutputFormat() == output.FormatJSON {
		return output.Print("", d)
	}

	formatter.Bold.Fprintf(output.Out, "Overall: %s\n", formatter.Status(d.Health.Overall))
	if err := output.PrintTable(formatter.HealthHeaders, formatter.HealthRows(d.Health), d.Health); err != nil {
		return err
	}
	if err := output.PrintRecord("\nLast hour", formatter.RealtimeRecord(d.Realtime)); err != nil {
		return err
	}
	formatter.Bold.Fprintln(output.Out, "\nPerformance")
	return output.PrintTable(formatter.PerformanceHeaders, formatter.PerformanceRows(d.Performance), d.Performance)
}

func init() {
	metricsPerformanceCmd.Flags().IntVar(&perfHours, "hours", 24, "Hours of history")

	metricsDashboardCmd.Flags().IntVar(&dashHours, "hours", 24, "Hours of performance history")
	metricsDashboardCmd.Flags().BoolVarP(&dashWatch, "watch", "w", false, "Refresh until interrupted")
	metricsDashboardCmd.Flags().DurationVar(&dashInterval, "interval", service.RealtimeTTL, "Refresh interval with --watch")

	metricsCmd.AddCommand(metricsHealthCmd)
	metricsCmd.AddCommand(metricsRealtimeCmd)
	metricsCmd.AddCommand(metricsPerformanceCmd)
	metricsCmd.AddCommand(metricsDashboardCmd)
}
