package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/taxonline/admin/cli/pkg/api"
	clierrors "github.com/taxonline/admin/cli/pkg/errors"
	"github.com/taxonline/admin/cli/pkg/formatter"
	"github.com/taxonline/admin/cli/pkg/output"
	"github.com/taxonline/admin/cli/pkg/prompter"
	"github.com/taxonline/admin/cli/pkg/service"
)

var (
	casesDomain string

	caseQuestion string
	caseExpected string
	caseSources  []string
	caseDomain   string
	caseTags     []string
	caseYes      bool

	runName      string
	runCases     []int
	runTopK      int
	runMinScore  float64
	runBTopK     int
	runBMinScore float64
	runWait      bool
)

var testsCmd = &cobra.Command{
	Use:   "tests",
	Short: "Retrieval test cases and runs",
}

var casesCmd = &cobra.Command{
	Use:   "cases",
	Short: "Manage test cases",
}

var casesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List test cases",
	RunE: func(cmd *cobra.Command, args []string) error {
		cases, err := app.Testing.Cases(cmd.Context(), casesDomain)
		if err != nil {
			return err
		}
		return output.PrintTable(formatter.TestCaseHeaders, formatter.TestCaseRows(cases), cases)
	},
}

var casesCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a test case",
	RunE: func(cmd *cobra.Command, args []string) error {
		in := api.TestCaseInput{
			Question:        caseQuestion,
			ExpectedAnswer:  caseExpected,
			ExpectedSources: caseSources,
			Domain:          caseDomain,
			Tags:            caseTags,
		}
		var err error
		if in.Question == "" {
			if in.Question, err = prompter.PromptString("Question: "); err != nil {
				return err
			}
		}
		if in.ExpectedAnswer == "" {
			if in.ExpectedAnswer, err = prompter.PromptMultilineString("Expected answer", 50); err != nil {
				return err
			}
		}

		id, err := app.Testing.CreateCase(cmd.Context(), in)
		if err != nil {
			return err
		}
		formatter.PrintSuccess("Created test case %d", id)
		return nil
	},
}

var casesUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Update a test case",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID("test case id", args[0])
		if err != nil {
			return err
		}
		current, err := findCase(cmd.Context(), id)
		if err != nil {
			return err
		}

		in := api.TestCaseInput{
			Question:        current.Question,
			ExpectedAnswer:  current.ExpectedAnswer,
			ExpectedSources: current.ExpectedSources,
			Domain:          current.Domain,
			Tags:            current.Tags,
		}
		flags := cmd.Flags()
		if flags.Changed("question") {
			in.Question = caseQuestion
		}
		if flags.Changed("expected") {
			in.ExpectedAnswer = caseExpected
		}
		if flags.Changed("sources") {
			in.ExpectedSources = caseSources
		}
		if flags.Changed("domain") {
			in.Domain = caseDomain
		}
		if flags.Changed("tags") {
			in.Tags = caseTags
		}

		if err := app.Testing.UpdateCase(cmd.Context(), id, in); err != nil {
			return err
		}
		formatter.PrintSuccess("Updated test case %d", id)
		return nil
	},
}

var casesDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a test case",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID("test case id", args[0])
		if err != nil {
			return err
		}
		ok, err := confirm(fmt.Sprintf("Delete test case %d?", id), caseYes)
		if err != nil || !ok {
			return err
		}
		if err := app.Testing.DeleteCase(cmd.Context(), id); err != nil {
			return err
		}
		formatter.PrintSuccess("Deleted test case %d", id)
		return nil
	},
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Start and inspect test runs",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List test runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		runs, err := app.Testing.Runs(cmd.Context())
		if err != nil {
			return err
		}
		return output.PrintTable(formatter.TestRunHeaders, formatter.TestRunRows(runs), runs)
	},
}

var runsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Start a test run, optionally comparing two retrieval configs",
	RunE: func(cmd *cobra.Command, args []string) error {
		in := api.TestRunInput{
			Name:        runName,
			TestCaseIDs: runCases,
			ConfigA:     api.RetrievalConfig{TopK: runTopK, MinScore: runMinScore},
		}
		if runBTopK > 0 {
			in.ConfigB = &api.RetrievalConfig{TopK: runBTopK, MinScore: runBMinScore}
		}

		started, err := app.Testing.StartRun(cmd.Context(), in)
		if err != nil {
			return err
		}
		formatter.PrintSuccess("Started test run %d", started.RunID)
		if !runWait {
			return nil
		}
		return waitAndPrintRun(cmd.Context(), started.RunID)
	},
}

var runsGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show a test run and its results",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID("run id", args[0])
		if err != nil {
			return err
		}
		if runWait {
			return waitAndPrintRun(cmd.Context(), id)
		}
		run, err := app.Testing.Run(cmd.Context(), id)
		if err != nil {
			return err
		}
		return printRun(run)
	},
}

func findCase(ctx context.Context, id int) (*api.TestCase, error) {
	cases, err := app.Testing.Cases(ctx, "")
	if err != nil {
		return nil, err
	}
	for i := range cases {
		if cases[i].ID == id {
			return &cases[i], nil
		}
	}
	return nil, clierrors.NotFoundError("test case", fmt.Sprint(id))
}

func waitAndPrintRun(ctx context.Context, id int) error {
	formatter.PrintInfo("Waiting for run %d to finish...", id)
	run, err := app.Testing.WaitRun(ctx, id, service.RunPollInterval)
	if err != nil {
		return err
	}
	return printRun(run)
}

func printRun(run *api.TestRun) error {
	if output.GetOutputFormat() == output.FormatJSON {
		return output.Print("", run)
	}
	if err := output.PrintTable(formatter.TestRunHeaders, formatter.TestRunRows([]api.TestRun{*run}), run); err != nil {
		return err
	}
	if len(run.Results) == 0 {
		return nil
	}
	fmt.Fprintln(output.Out)
	return output.PrintTable(formatter.RunResultHeaders, formatter.RunResultRows(run.Results), run.Results)
}

func init() {
	casesListCmd.Flags().StringVar(&casesDomain, "domain", "", "Filter by domain")

	for _, c := range []*cobra.Command{casesCreateCmd, casesUpdateCmd} {
		c.Flags().StringVar(&caseQuestion, "question", "", "Question asked to the assistant")
		c.Flags().StringVar(&caseExpected, "expected", "", "Expected answer")
		c.Flags().StringSliceVar(&caseSources, "sources", nil, "Expected source documents")
		c.Flags().StringVar(&caseDomain, "domain", "", "Fiscal domain")
		c.Flags().StringSliceVar(&caseTags, "tags", nil, "Comma-separated tags")
	}
	casesDeleteCmd.Flags().BoolVarP(&caseYes, "yes", "y", false, "Skip confirmation")

	runsCreateCmd.Flags().StringVar(&runName, "name", "", "Run name")
	runsCreateCmd.Flags().IntSliceVar(&runCases, "cases", nil, "Test case ids (default: all)")
	runsCreateCmd.Flags().IntVar(&runTopK, "top-k", 5, "Chunks retrieved per question")
	runsCreateCmd.Flags().Float64Var(&runMinScore, "min-score", 0.5, "Minimum similarity score")
	runsCreateCmd.Flags().IntVar(&runBTopK, "b-top-k", 0, "Top-k of a second config to compare against")
	runsCreateCmd.Flags().Float64Var(&runBMinScore, "b-min-score", 0.5, "Minimum score of the second config")
	runsCreateCmd.Flags().BoolVarP(&runWait, "wait", "w", false, "Wait for the run to finish")
	_ = runsCreateCmd.MarkFlagRequired("name")
	runsGetCmd.Flags().BoolVarP(&runWait, "wait", "w", false, "Wait for the run to finish")

	casesCmd.AddCommand(casesListCmd)
	casesCmd.AddCommand(casesCreateCmd)
	casesCmd.AddCommand(casesUpdateCmd)
	casesCmd.AddCommand(casesDeleteCmd)

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsCreateCmd)
	runsCmd.AddCommand(runsGetCmd)

	testsCmd.AddCommand(casesCmd)
	testsCmd.AddCommand(runsCmd)
}
