package output

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	json "github.com/json-iterator/go"

	"github.com/taxonline/admin/cli/pkg/config"
)

// OutputFormat represents the output format type
type OutputFormat string

const (
	FormatJSON  OutputFormat = "json"
	FormatTable OutputFormat = "table"
	FormatText  OutputFormat = "text"
)

// Out is where everything is printed. Tests swap it for a buffer.
var Out io.Writer = color.Output

// GetOutputFormat returns the configured output format
func GetOutputFormat() OutputFormat {
	switch config.GetString("output.format") {
	case "json":
		return FormatJSON
	case "text":
		return FormatText
	default:
		return FormatTable
	}
}

// ValidateOutputFormat checks if format is valid
func ValidateOutputFormat(format string) bool {
	return format == "json" || format == "table" || format == "text"
}

// Print outputs data in the configured format with optional title
func Print(title string, data interface{}) error {
	if title != "" && GetOutputFormat() != FormatJSON {
		color.New(color.Bold).Fprintf(Out, "%s\n", title)
	}
	return printJSON(data)
}

// PrintTable prints rows under headers, or data as JSON when the output
// format is json.
func PrintTable(headers []string, rows [][]string, data interface{}) error {
	switch GetOutputFormat() {
	case FormatJSON:
		return printJSON(data)
	case FormatText:
		for _, row := range rows {
			fmt.Fprintln(Out, strings.Join(row, " | "))
		}
		return nil
	default:
		if len(rows) == 0 {
			PrintInfo("No results")
			return nil
		}
		printTable(headers, rows)
		return nil
	}
}

// PrintRecord outputs a single record (map/object) in the configured format
func PrintRecord(title string, record map[string]interface{}) error {
	if GetOutputFormat() == FormatJSON {
		return printJSON(record)
	}

	keys := make([]string, 0, len(record))
	for k := range record {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	if title != "" {
		color.New(color.Bold).Fprintf(Out, "%s\n", title)
	}
	bold := color.New(color.Bold)
	w := tabwriter.NewWriter(Out, 0, 0, 2, ' ', 0)
	for _, k := range keys {
		bold.Fprint(w, k+":")
		fmt.Fprintf(w, "\t%v\n", record[k])
	}
	return w.Flush()
}

// PrintSuccess prints a success message
func PrintSuccess(msg string, args ...interface{}) {
	color.New(color.FgGreen).Fprintf(Out, msg+"\n", args...)
}

// PrintError prints an error message
func PrintError(msg string, args ...interface{}) {
	color.New(color.FgRed).Fprintf(Out, "Error: "+msg+"\n", args...)
}

// PrintInfo prints an info message
func PrintInfo(msg string, args ...interface{}) {
	color.New(color.FgCyan).Fprintf(Out, msg+"\n", args...)
}

// PrintWarning prints a warning message
func PrintWarning(msg string, args ...interface{}) {
	color.New(color.FgYellow).Fprintf(Out, "Warning: "+msg+"\n", args...)
}

// ProgressBar renders progress in [0,100] as a bar of width cells.
func ProgressBar(progress float64, width int) string {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	filled := int(progress / 100 * float64(width))
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", width-filled) + "]"
}

func printJSON(data interface{}) error {
	s, err := FormatAsPrettyJSON(data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(Out, s)
	return err
}

func printTable(headers []string, rows [][]string) {
	w := tabwriter.NewWriter(Out, 0, 0, 2, ' ', 0)
	bold := color.New(color.Bold)

	for i, h := range headers {
		bold.Fprint(w, h)
		if i < len(headers)-1 {
			fmt.Fprint(w, "\t")
		}
	}
	fmt.Fprintln(w)

	for _, row := range rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}

	w.Flush()
}

// FormatAsJSON converts data to JSON string (convenience function)
func FormatAsJSON(data interface{}) (string, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return "", err
	}
	return string(jsonData), nil
}

// FormatAsPrettyJSON converts data to pretty JSON string (convenience function)
func FormatAsPrettyJSON(data interface{}) (string, error) {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", err
	}
	return string(jsonData), nil
}
