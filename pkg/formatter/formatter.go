package formatter

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/fatih/color"

	"github.com/taxonline/admin/cli/pkg/api"
	"github.com/taxonline/admin/cli/pkg/output"
	"github.com/taxonline/admin/cli/pkg/session"
	"github.com/taxonline/admin/cli/pkg/stream"
)

var (
	Bold    = color.New(color.Bold)
	Success = color.New(color.FgGreen)
	Error   = color.New(color.FgRed)
	Info    = color.New(color.FgCyan)
	Warning = color.New(color.FgYellow)
	Muted   = color.New(color.Faint)
)

// PrintSuccess prints a success message
func PrintSuccess(format string, args ...interface{}) {
	output.PrintSuccess(format, args...)
}

// PrintError prints an error message
func PrintError(format string, args ...interface{}) {
	output.PrintError(format, args...)
}

// PrintInfo prints an info message
func PrintInfo(format string, args ...interface{}) {
	output.PrintInfo(format, args...)
}

// PrintWarning prints a warning message
func PrintWarning(format string, args ...interface{}) {
	output.PrintWarning(format, args...)
}

// Status colors a job, document or service status.
func Status(s string) string {
	switch s {
	case "completed", "indexed", "ok", "green", "passed":
		return Success.Sprint(s)
	case "failed", "error", "red":
		return Error.Sprint(s)
	case "running", "processing", "started", "yellow", "degraded":
		return Warning.Sprint(s)
	case "rolled_back":
		return Muted.Sprint(s)
	}
	return s
}

// EventLine renders one job log event for a live stream.
func EventLine(jobID int, ev stream.Event) string {
	ts := ev.Timestamp
	if t, ok := ev.Time(); ok {
		ts = t.Local().Format("15:04:05")
	}
	stage := ev.Stage
	if stage == "" {
		stage = "-"
	}
	return fmt.Sprintf("%s job %d %s %5.1f%% %-10s %s %s",
		Muted.Sprint(ts), jobID, output.ProgressBar(ev.Progress, 20), ev.Progress, stage, Status(ev.Status), ev.Message)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func score(f float64) string {
	return strconv.FormatFloat(f, 'f', 4, 64)
}

var UserHeaders = []string{"ID", "USERNAME", "EMAIL", "ROLE"}

func UserRows(users []session.User) [][]string {
	rows := make([][]string, 0, len(users))
	for _, u := range users {
		rows = append(rows, []string{strconv.Itoa(u.ID), u.Username, orDash(u.Email), string(u.Role)})
	}
	return rows
}

var DocumentHeaders = []string{"ID", "FILENAME", "TYPE", "YEAR", "DOMAIN", "STATUS", "CHUNKS", "QUALITY", "CREATED"}

func DocumentRows(docs []api.Document) [][]string {
	rows := make([][]string, 0, len(docs))
	for _, d := range docs {
		quality := "-"
		if d.QualityScore != nil {
			quality = fmt.Sprintf("%.2f", *d.QualityScore)
		}
		rows = append(rows, []string{
			strconv.Itoa(d.ID), d.Filename, d.DocType, strconv.Itoa(d.Year), d.Domain,
			Status(d.Status), strconv.Itoa(d.ChunkCount), quality, d.CreatedAt.String(),
		})
	}
	return rows
}

var UploadHeaders = []string{"DOCUMENT", "JOB", "FILENAME"}

func UploadRows(res *api.UploadResult) [][]string {
	rows := make([][]string, 0, len(res.Uploaded))
	for _, u := range res.Uploaded {
		rows = append(rows, []string{strconv.Itoa(u.DocumentID), strconv.Itoa(u.JobID), u.Filename})
	}
	return rows
}

var JobHeaders = []string{"ID", "DOCUMENT", "STATUS", "STAGE", "PROGRESS", "CREATED", "COMPLETED"}

func JobRows(jobs []api.PipelineJob) [][]string {
	rows := make([][]string, 0, len(jobs))
	for _, j := range jobs {
		rows = append(rows, []string{
			strconv.Itoa(j.ID), strconv.Itoa(j.DocumentID), Status(j.Status), orDash(j.Stage),
			fmt.Sprintf("%.0f%%", j.Progress), j.CreatedAt.String(), j.CompletedAt.String(),
		})
	}
	return rows
}

// JobRecord is the detail view of one job.
func JobRecord(j *api.PipelineJob) map[string]interface{} {
	return map[string]interface{}{
		"id":        j.ID,
		"document":  j.DocumentID,
		"status":    Status(j.Status),
		"stage":     orDash(j.Stage),
		"progress":  fmt.Sprintf("%s %.0f%%", output.ProgressBar(j.Progress, 20), j.Progress),
		"error":     orDash(j.Error),
		"started":   j.StartedAt.String(),
		"completed": j.CompletedAt.String(),
		"logs":      len(j.Logs),
	}
}

var HealthHeaders = []string{"SERVICE", "STATUS", "DETAIL"}

func HealthRows(h *api.HealthReport) [][]string {
	names := make([]string, 0, len(h.Services))
	for name := range h.Services {
		names = append(names, name)
	}
	sort.Strings(names)

	rows := make([][]string, 0, len(names))
	for _, name := range names {
		s := h.Services[name]
		var detail string
		switch {
		case s.Error != "":
			detail = s.Error
		case s.VectorsCount != nil:
			detail = fmt.Sprintf("%d vectors", *s.VectorsCount)
		case s.Shards != nil:
			detail = fmt.Sprintf("%d shards", *s.Shards)
		case len(s.Models) > 0:
			detail = strings.Join(s.Models, ", ")
		}
		rows = append(rows, []string{name, Status(s.Status), orDash(detail)})
	}
	return rows
}

func RealtimeRecord(m *api.RealtimeMetrics) map[string]interface{} {
	return map[string]interface{}{
		"queries_last_hour":   m.QueriesLastHour,
		"queries_per_minute":  m.QueriesPerMinute,
		"failed_queries":      m.FailedQueries,
		"error_rate":          fmt.Sprintf("%.1f%%", m.ErrorRate),
		"avg_retrieval_score": score(m.AvgRetrievalScore),
		"avg_latency_ms":      fmt.Sprintf("%.1f", m.AvgLatencyMs),
		"cache_hit_rate":      fmt.Sprintf("%.1f%%", m.CacheHitRate),
	}
}

var PerformanceHeaders = []string{"HOUR", "QUERIES", "AVG SCORE", "AVG LATENCY", "FAILED"}

func PerformanceRows(points []api.PerformancePoint) [][]string {
	rows := make([][]string, 0, len(points))
	for _, p := range points {
		rows = append(rows, []string{
			p.Hour.String(), strconv.Itoa(p.Total), score(p.AvgScore),
			fmt.Sprintf("%.1f ms", p.AvgLatency), strconv.Itoa(p.Failed),
		})
	}
	return rows
}

var CoverageHeaders = []string{"DOMAIN", "DOCUMENTS", "CHUNKS"}

func CoverageRows(rows []api.CoverageRow) [][]string {
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, []string{r.Domain, strconv.Itoa(r.Documents), strconv.Itoa(r.Chunks)})
	}
	return out
}

var HeatmapHeaders = []string{"DAY", "DOMAIN", "QUERIES"}

func HeatmapRows(cells []api.HeatmapCell) [][]string {
	out := make([][]string, 0, len(cells))
	for _, c := range cells {
		out = append(out, []string{c.Day.Format("2006-01-02"), c.Domain, strconv.Itoa(c.Count)})
	}
	return out
}

var TopQueryHeaders = []string{"QUERY", "COUNT", "AVG SCORE"}

func TopQueryRows(rows []api.TopQuery) [][]string {
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, []string{r.Query, strconv.Itoa(r.Count), score(r.AvgScore)})
	}
	return out
}

var BehaviorHeaders = []string{"HOUR", "QUERIES", "AVG LATENCY", "AVG SCORE", "FAILURES"}

func BehaviorRows(points []api.BehaviorPoint) [][]string {
	out := make([][]string, 0, len(points))
	for _, p := range points {
		out = append(out, []string{
			p.Hour.String(), strconv.Itoa(p.Queries), fmt.Sprintf("%.1f ms", p.AvgLatency),
			score(p.AvgScore), strconv.Itoa(p.Failures),
		})
	}
	return out
}

var TestCaseHeaders = []string{"ID", "DOMAIN", "QUESTION", "EXPECTED", "TAGS"}

func TestCaseRows(cases []api.TestCase) [][]string {
	out := make([][]string, 0, len(cases))
	for _, c := range cases {
		out = append(out, []string{
			strconv.Itoa(c.ID), orDash(c.Domain), Truncate(c.Question, 60), Truncate(c.ExpectedAnswer, 40), strings.Join(c.Tags, ","),
		})
	}
	return out
}

var TestRunHeaders = []string{"ID", "NAME", "STATUS", "PASSED", "PASS RATE", "CREATED", "COMPLETED"}

func TestRunRows(runs []api.TestRun) [][]string {
	out := make([][]string, 0, len(runs))
	for _, r := range runs {
		passed, rate := "-", "-"
		if r.Summary != nil {
			passed = fmt.Sprintf("%d/%d", r.Summary.Passed, r.Summary.Total)
			rate = fmt.Sprintf("%.1f%%", r.Summary.PassRate)
		}
		out = append(out, []string{
			strconv.Itoa(r.ID), r.Name, Status(r.Status), passed, rate, r.CreatedAt.String(), r.CompletedAt.String(),
		})
	}
	return out
}

var RunResultHeaders = []string{"CASE", "QUESTION", "SCORE A", "SCORE B", "LATENCY A", "PASSED"}

func RunResultRows(results []api.RunResult) [][]string {
	out := make([][]string, 0, len(results))
	for _, r := range results {
		scoreB := "-"
		if r.ResultB != nil {
			scoreB = score(r.ResultB.Score)
		}
		passed := Error.Sprint("no")
		if r.Passed {
			passed = Success.Sprint("yes")
		}
		out = append(out, []string{
			strconv.Itoa(r.CaseID), Truncate(r.Question, 50), score(r.ResultA.Score), scoreB,
			fmt.Sprintf("%d ms", r.ResultA.LatencyMs), passed,
		})
	}
	return out
}

var ChunkHeaders = []string{"ID", "SCORE", "DOMAIN", "TEXT"}

func ChunkRows(chunks []api.Chunk) [][]string {
	out := make([][]string, 0, len(chunks))
	for _, c := range chunks {
		domain, _ := c.Metadata["domain"].(string)
		out = append(out, []string{c.ID, score(c.Score), orDash(domain), Truncate(c.Text, 80)})
	}
	return out
}

// Truncate shortens s to n runes on one line.
func Truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}
