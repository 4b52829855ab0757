package api

import (
	"context"

	"github.com/taxonline/admin/cli/pkg/client"
	"github.com/taxonline/admin/cli/pkg/logger"
)

// ListTestCases returns active test cases, optionally for one domain.
func (a *API) ListTestCases(ctx context.Context, domain string) ([]TestCase, error) {
	logger.Debug("Listing test cases", "domain", domain)

	var cases []TestCase
	if err := a.c.Get(ctx, "/tests/cases", &cases, client.WithQuery("domain", domain)); err != nil {
		return nil, err
	}
	return cases, nil
}

// CreateTestCase adds a test case and returns its id.
func (a *API) CreateTestCase(ctx context.Context, in TestCaseInput) (int, error) {
	logger.Debug("Creating test case", "domain", in.Domain)

	var resp struct {
		ID int `json:"id"`
	}
	if err := a.c.Post(ctx, "/tests/cases", &resp, client.WithJSON(in)); err != nil {
		return 0, err
	}
	return resp.ID, nil
}

// UpdateTestCase replaces a test case.
func (a *API) UpdateTestCase(ctx context.Context, id int, in TestCaseInput) error {
	logger.Debug("Updating test case", "case_id", id)
	return a.c.Put(ctx, path("/tests/cases/%d", id), nil, client.WithJSON(in))
}

// DeleteTestCase deactivates a test case.
func (a *API) DeleteTestCase(ctx context.Context, id int) error {
	logger.Debug("Deleting test case", "case_id", id)
	return a.c.Delete(ctx, path("/tests/cases/%d", id), nil)
}

// ListTestRuns returns the last 50 runs.
func (a *API) ListTestRuns(ctx context.Context) ([]TestRun, error) {
	logger.Debug("Listing test runs")

	var runs []TestRun
	if err := a.c.Get(ctx, "/tests/runs", &runs); err != nil {
		return nil, err
	}
	return runs, nil
}

// CreateTestRun starts a run. An empty TestCaseIDs runs every active case.
func (a *API) CreateTestRun(ctx context.Context, in TestRunInput) (*TestRunStarted, error) {
	logger.Debug("Starting test run", "name", in.Name, "cases", len(in.TestCaseIDs), "ab", in.ConfigB != nil)

	if in.TestCaseIDs == nil {
		in.TestCaseIDs = []int{}
	}
	var started TestRunStarted
	if err := a.c.Post(ctx, "/tests/runs", &started, client.WithJSON(in)); err != nil {
		return nil, err
	}
	return &started, nil
}

// GetTestRun fetches a run with its per-case results.
func (a *API) GetTestRun(ctx context.Context, id int) (*TestRun, error) {
	logger.Debug("Fetching test run", "run_id", id)

	var run TestRun
	if err := a.c.Get(ctx, path("/tests/runs/%d", id), &run); err != nil {
		return nil, err
	}
	return &run, nil
}
