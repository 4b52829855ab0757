package service

import (
	"context"
	"fmt"
	"time"

	"github.com/taxonline/admin/cli/pkg/api"
	"github.com/taxonline/admin/cli/pkg/logger"
)

// RunPollInterval is how often a pending test run is re-read.
const RunPollInterval = 5 * time.Second

// TestingService manages the retrieval test-case library and A/B runs.
type TestingService struct {
	api  *api.API
	caps Capabilities

	cases *Cached[[]api.TestCase]
	runs  *Cached[[]api.TestRun]
}

// NewTestingService creates the testing view.
func NewTestingService(a *api.API, caps Capabilities) *TestingService {
	return &TestingService{
		api:   a,
		caps:  caps,
		cases: NewCached[[]api.TestCase](0),
		runs:  NewCached[[]api.TestRun](RunPollInterval),
	}
}

func (s *TestingService) Cases(ctx context.Context, domain string) ([]api.TestCase, error) {
	if err := requireSession(s.caps); err != nil {
		return nil, err
	}
	return s.cases.Get(ctx, domain, func(ctx context.Context) ([]api.TestCase, error) {
		cases, err := s.api.ListTestCases(ctx, domain)
		if err != nil {
			return nil, fmt.Errorf("failed to list test cases: %w", err)
		}
		return cases, nil
	})
}

func (s *TestingService) CreateCase(ctx context.Context, in api.TestCaseInput) (int, error) {
	if err := requireEditor(s.caps, "Creating test cases"); err != nil {
		return 0, err
	}
	if err := validate.Struct(in); err != nil {
		return 0, err
	}
	id, err := s.api.CreateTestCase(ctx, in)
	if err != nil {
		return 0, fmt.Errorf("failed to create test case: %w", err)
	}
	s.cases.Invalidate()
	return id, nil
}

func (s *TestingService) UpdateCase(ctx context.Context, id int, in api.TestCaseInput) error {
	if err := requireEditor(s.caps, "Editing test cases"); err != nil {
		return err
	}
	if err := validate.Struct(in); err != nil {
		return err
	}
	if err := s.api.UpdateTestCase(ctx, id, in); err != nil {
		return fmt.Errorf("failed to update test case %d: %w", id, err)
	}
	s.cases.Invalidate()
	return nil
}

func (s *TestingService) DeleteCase(ctx context.Context, id int) error {
	if err := requireEditor(s.caps, "Deleting test cases"); err != nil {
		return err
	}
	if err := s.api.DeleteTestCase(ctx, id); err != nil {
		return fmt.Errorf("failed to delete test case %d: %w", id, err)
	}
	s.cases.Invalidate()
	return nil
}

func (s *TestingService) Runs(ctx context.Context) ([]api.TestRun, error) {
	if err := requireSession(s.caps); err != nil {
		return nil, err
	}
	return s.runs.Get(ctx, "", func(ctx context.Context) ([]api.TestRun, error) {
		runs, err := s.api.ListTestRuns(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list test runs: %w", err)
		}
		return runs, nil
	})
}

// StartRun starts a run over the given cases; no ids means every case.
func (s *TestingService) StartRun(ctx context.Context, in api.TestRunInput) (*api.TestRunStarted, error) {
	if err := requireSession(s.caps); err != nil {
		return nil, err
	}
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	started, err := s.api.CreateTestRun(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("failed to start test run: %w", err)
	}
	s.runs.Invalidate()
	logger.Info("Test run started", "run_id", started.RunID, "name", in.Name)
	return started, nil
}

func (s *TestingService) Run(ctx context.Context, id int) (*api.TestRun, error) {
	if err := requireSession(s.caps); err != nil {
		return nil, err
	}
	run, err := s.api.GetTestRun(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch test run %d: %w", id, err)
	}
	return run, nil
}

// WaitRun re-reads run id every interval until it is completed or failed.
func (s *TestingService) WaitRun(ctx context.Context, id int, interval time.Duration) (*api.TestRun, error) {
	if interval <= 0 {
		interval = RunPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		run, err := s.Run(ctx, id)
		if err != nil {
			return nil, err
		}
		if run.Status == "completed" || run.Status == "failed" {
			s.runs.Invalidate()
			return run, nil
		}
		logger.Debug("Test run pending", "run_id", id, "status", run.Status)

		select {
		case <-ctx.Done():
			return run, ctx.Err()
		case <-ticker.C:
		}
	}
}
