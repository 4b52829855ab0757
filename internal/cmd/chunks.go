package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/taxonline/admin/cli/pkg/api"
	"github.com/taxonline/admin/cli/pkg/formatter"
	"github.com/taxonline/admin/cli/pkg/output"
	"github.com/taxonline/admin/cli/pkg/prompter"
)

var (
	searchDomain string
	searchLimit  int

	chunkText     string
	chunkEdit     bool
	chunkMetadata map[string]string
	chunkYes      bool

	reindexFollow bool
)

var chunksCmd = &cobra.Command{
	Use:   "chunks",
	Short: "Search and curate indexed chunks",
}

var chunksSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Semantic search over indexed chunks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		chunks, err := app.Chunks.Search(cmd.Context(), api.ChunkSearch{
			Query:  args[0],
			Domain: searchDomain,
			Limit:  searchLimit,
		})
		if err != nil {
			return err
		}
		return output.PrintTable(formatter.ChunkHeaders, formatter.ChunkRows(chunks), chunks)
	},
}

var chunksGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show a chunk with its metadata",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := app.Chunks.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if output.GetOutputFormat() == output.FormatJSON {
			return output.Print("", c)
		}
		record := make(map[string]interface{}, len(c.Metadata)+1)
		for k, v := range c.Metadata {
			record[k] = v
		}
		record["id"] = c.ID
		if err := output.PrintRecord("Chunk", record); err != nil {
			return err
		}
		fmt.Fprintf(output.Out, "\n%s\n", c.Text)
		return nil
	},
}

var chunksUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Correct the text or metadata of a chunk",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var upd api.ChunkUpdate
		switch {
		case chunkEdit:
			current, err := app.Chunks.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			formatter.Muted.Fprintf(output.Out, "%s\n\n", current.Text)
			text, err := prompter.PromptMultilineString("New text", 200)
			if err != nil {
				return err
			}
			if text != "" {
				upd.Text = &text
			}
		case cmd.Flags().Changed("text"):
			upd.Text = &chunkText
		}
		if len(chunkMetadata) > 0 {
			upd.Metadata = make(map[string]interface{}, len(chunkMetadata))
			for k, v := range chunkMetadata {
				upd.Metadata[k] = metadataValue(v)
			}
		}

		if err := app.Chunks.Update(cmd.Context(), args[0], upd); err != nil {
			return err
		}
		formatter.PrintSuccess("Updated chunk %s", args[0])
		return nil
	},
}

var chunksDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a chunk from the index",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ok, err := confirm("Delete chunk "+args[0]+"?", chunkYes)
		if err != nil || !ok {
			return err
		}
		if err := app.Chunks.Delete(cmd.Context(), args[0]); err != nil {
			return err
		}
		formatter.PrintSuccess("Deleted chunk %s", args[0])
		return nil
	},
}

var chunksReindexCmd = &cobra.Command{
	Use:   "reindex <document-id>",
	Short: "Re-chunk and re-embed a document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID("document id", args[0])
		if err != nil {
			return err
		}
		res, err := app.Chunks.Reindex(cmd.Context(), id)
		if err != nil {
			return err
		}
		formatter.PrintSuccess("Reindexing document %d (job %d)", id, res.JobID)
		if !reindexFollow {
			return nil
		}
		return followJobs(cmd.Context(), []int{res.JobID})
	},
}

// metadataValue keeps numbers and booleans typed so that year=2024 is not
// stored as a string.
func metadataValue(s string) interface{} {
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return s
}

func init() {
	chunksSearchCmd.Flags().StringVar(&searchDomain, "domain", "", "Restrict to a fiscal domain")
	chunksSearchCmd.Flags().IntVar(&searchLimit, "limit", 20, "Maximum number of chunks")

	chunksUpdateCmd.Flags().StringVar(&chunkText, "text", "", "Replacement text")
	chunksUpdateCmd.Flags().BoolVarP(&chunkEdit, "edit", "e", false, "Type the replacement text interactively")
	chunksUpdateCmd.Flags().StringToStringVar(&chunkMetadata, "metadata", nil, "Metadata to set, as key=value pairs")
	chunksUpdateCmd.MarkFlagsMutuallyExclusive("text", "edit")

	chunksDeleteCmd.Flags().BoolVarP(&chunkYes, "yes", "y", false, "Skip confirmation")

	chunksReindexCmd.Flags().BoolVarP(&reindexFollow, "follow", "f", false, "Stream the reindex job logs")

	chunksCmd.AddCommand(chunksSearchCmd)
	chunksCmd.AddCommand(chunksGetCmd)
	chunksCmd.AddCommand(chunksUpdateCmd)
	chunksCmd.AddCommand(chunksDeleteCmd)
	chunksCmd.AddCommand(chunksReindexCmd)
}
