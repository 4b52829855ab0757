package service

import (
	"context"
	"fmt"
	"time"

	"github.com/taxonline/admin/cli/pkg/api"
	clierrors "github.com/taxonline/admin/cli/pkg/errors"
	"github.com/taxonline/admin/cli/pkg/logger"
	"github.com/taxonline/admin/cli/pkg/stream"
)

// PipelineService lists indexing jobs, rolls them back and follows their
// live log.
type PipelineService struct {
	api     *api.API
	caps    Capabilities
	streams *stream.Registry

	jobs *Cached[[]api.PipelineJob]
}

// NewPipelineService creates the pipeline view.
func NewPipelineService(a *api.API, caps Capabilities, streams *stream.Registry) *PipelineService {
	return &PipelineService{
		api:     a,
		caps:    caps,
		streams: streams,
		jobs:    NewCached[[]api.PipelineJob](15 * time.Second),
	}
}

// Jobs lists recent jobs.
func (s *PipelineService) Jobs(ctx context.Context, filter api.JobFilter) ([]api.PipelineJob, error) {
	if err := requireSession(s.caps); err != nil {
		return nil, err
	}
	return s.jobs.Get(ctx, key(filter.Status, filter.Limit), func(ctx context.Context) ([]api.PipelineJob, error) {
		jobs, err := s.api.ListJobs(ctx, filter)
		if err != nil {
			return nil, fmt.Errorf("failed to list jobs: %w", err)
		}
		return jobs, nil
	})
}

// Job fetches one job with its stored log.
func (s *PipelineService) Job(ctx context.Context, id int) (*api.PipelineJob, error) {
	if err := requireSession(s.caps); err != nil {
		return nil, err
	}
	job, err := s.api.GetJob(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch job %d: %w", id, err)
	}
	return job, nil
}

// Rollback removes what job id indexed. Only completed or failed jobs can
// be rolled back; the status is checked first so the user gets a clear
// message without a round trip that would fail.
func (s *PipelineService) Rollback(ctx context.Context, id int) error {
	job, err := s.Job(ctx, id)
	if err != nil {
		return err
	}
	if !job.Rollbackable() {
		return clierrors.ValidationError("job", fmt.Sprintf("job %d is %s; only completed or failed jobs can be rolled back", id, job.Status))
	}
	if err := s.api.RollbackJob(ctx, id); err != nil {
		return fmt.Errorf("failed to roll back job %d: %w", id, err)
	}
	s.jobs.Invalidate()
	logger.Info("Job rolled back", "job_id", id)
	return nil
}

// Logs follows the live log of job id until it ends. The returned handle
// holds the retained events; its Err tells why the stream stopped.
func (s *PipelineService) Logs(ctx context.Context, id int) (*stream.Handle, error) {
	if s.streams == nil {
		return nil, fmt.Errorf("job streaming is not configured")
	}
	if err := requireSession(s.caps); err != nil {
		return nil, err
	}

	h := s.streams.Watch(ctx, id)
	err := h.Wait(ctx)
	if ctx.Err() != nil {
		s.streams.Close(id)
		return h, ctx.Err()
	}
	s.jobs.Invalidate()
	if err != nil {
		return h, clierrors.StreamError(id, err)
	}
	return h, nil
}
