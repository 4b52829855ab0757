package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/taxonline/admin/cli/pkg/api"
	clierrors "github.com/taxonline/admin/cli/pkg/errors"
	"github.com/taxonline/admin/cli/pkg/formatter"
	"github.com/taxonline/admin/cli/pkg/output"
	"github.com/taxonline/admin/cli/pkg/prompter"
)

var (
	uploadDocType string
	uploadYear    int
	uploadDomain  string
	uploadTags    []string
	uploadFollow  bool

	listStatus  string
	listDomain  string
	listDocType string

	deleteYes bool
)

var documentsCmd = &cobra.Command{
	Use:     "documents",
	Aliases: []string{"docs"},
	Short:   "Manage the fiscal document corpus",
}

var documentsUploadCmd = &cobra.Command{
	Use:   "upload <file.pdf>...",
	Short: "Upload PDF documents for indexing",
	Long: `Upload up to 10 PDF documents (100MB each) with shared metadata.
Each file starts an indexing job; use --follow to stream the job logs.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		meta := api.UploadMeta{
			DocType: uploadDocType,
			Year:    uploadYear,
			Domain:  uploadDomain,
			Tags:    uploadTags,
		}
		res, err := app.Documents.Upload(cmd.Context(), args, meta)
		if err != nil {
			return err
		}
		if err := output.PrintTable(formatter.UploadHeaders, formatter.UploadRows(res), res); err != nil {
			return err
		}
		if !uploadFollow {
			formatter.PrintInfo("Follow progress with: taxonline-cli pipeline logs <job>")
			return nil
		}

		ids := make([]int, 0, len(res.Uploaded))
		for _, u := range res.Uploaded {
			ids = append(ids, u.JobID)
		}
		return followJobs(cmd.Context(), ids)
	},
}

var documentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List documents",
	RunE: func(cmd *cobra.Command, args []string) error {
		docs, err := app.Documents.List(cmd.Context(), api.DocumentFilter{
			Status:  listStatus,
			Domain:  listDomain,
			DocType: listDocType,
		})
		if err != nil {
			return err
		}
		return output.PrintTable(formatter.DocumentHeaders, formatter.DocumentRows(docs), docs)
	},
}

var documentsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a document and its indexed chunks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID("document id", args[0])
		if err != nil {
			return err
		}
		ok, err := confirm(fmt.Sprintf("Delete document %d and all its chunks?", id), deleteYes)
		if err != nil || !ok {
			return err
		}
		if err := app.Documents.Delete(cmd.Context(), id); err != nil {
			return err
		}
		formatter.PrintSuccess("Deleted document %d", id)
		return nil
	},
}

// followJobs streams the logs of jobs until they all end and reports how
// each one finished.
func followJobs(ctx context.Context, ids []int) error {
	if len(ids) == 0 {
		return nil
	}
	outcomes, err := app.Documents.Follow(ctx, ids)
	if err != nil {
		return err
	}

	failed := 0
	for _, o := range outcomes {
		switch {
		case o.Succeeded():
			formatter.PrintSuccess("Job %d completed", o.JobID)
		case o.Err != nil:
			failed++
			formatter.PrintError("Job %d: %v", o.JobID, o.Err)
		default:
			failed++
			formatter.PrintError("Job %d %s: %s", o.JobID, o.Last.Status, o.Last.Message)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d jobs did not complete", failed, len(outcomes))
	}
	return nil
}

func parseID(field, s string) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || id <= 0 {
		return 0, clierrors.ValidationError(field, "must be a positive integer")
	}
	return id, nil
}

func confirm(question string, assumeYes bool) (bool, error) {
	if assumeYes {
		return true, nil
	}
	ok, err := prompter.PromptConfirm(question)
	if err != nil {
		return false, err
	}
	if !ok {
		formatter.PrintInfo("Cancelled")
	}
	return ok, nil
}

func init() {
	documentsUploadCmd.Flags().StringVar(&uploadDocType, "doc-type", "", "Document type: "+strings.Join(api.DocTypes, ", "))
	documentsUploadCmd.Flags().IntVar(&uploadYear, "year", 0, "Publication year")
	documentsUploadCmd.Flags().StringVar(&uploadDomain, "domain", "", "Fiscal domain: "+strings.Join(api.Domains, ", "))
	documentsUploadCmd.Flags().StringSliceVar(&uploadTags, "tags", nil, "Comma-separated tags")
	documentsUploadCmd.Flags().BoolVarP(&uploadFollow, "follow", "f", false, "Stream job logs until indexing ends")
	_ = documentsUploadCmd.MarkFlagRequired("doc-type")
	_ = documentsUploadCmd.MarkFlagRequired("year")
	_ = documentsUploadCmd.MarkFlagRequired("domain")

	documentsListCmd.Flags().StringVar(&listStatus, "status", "", "Filter by status")
	documentsListCmd.Flags().StringVar(&listDomain, "domain", "", "Filter by domain")
	documentsListCmd.Flags().StringVar(&listDocType, "doc-type", "", "Filter by document type")

	documentsDeleteCmd.Flags().BoolVarP(&deleteYes, "yes", "y", false, "Skip confirmation")

	documentsCmd.AddCommand(documentsUploadCmd)
	documentsCmd.AddCommand(documentsListCmd)
	documentsCmd.AddCommand(documentsDeleteCmd)
}
