package api

import (
	"context"

	"github.com/taxonline/admin/cli/pkg/client"
	"github.com/taxonline/admin/cli/pkg/logger"
)

// GetJob fetches one pipeline job with its logs.
func (a *API) GetJob(ctx context.Context, id int) (*PipelineJob, error) {
	logger.Debug("Fetching pipeline job", "job_id", id)

	var job PipelineJob
	if err := a.c.Get(ctx, path("/pipeline/jobs/%d", id), &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// ListJobs returns the newest jobs, optionally filtered by status.
func (a *API) ListJobs(ctx context.Context, filter JobFilter) ([]PipelineJob, error) {
	logger.Debug("Listing pipeline jobs", "status", filter.Status, "limit", filter.Limit)

	var jobs []PipelineJob
	err := a.c.Get(ctx, "/pipeline/jobs", &jobs,
		client.WithQuery("status", filter.Status),
		client.WithQuery("limit", itoa(filter.Limit)))
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

// RollbackJob removes what a completed or failed job indexed.
func (a *API) RollbackJob(ctx context.Context, id int) error {
	logger.Debug("Rolling back pipeline job", "job_id", id)
	return a.c.Post(ctx, path("/pipeline/jobs/%d/rollback", id), nil)
}
