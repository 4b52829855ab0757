package service

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/taxonline/admin/cli/pkg/api"
	clierrors "github.com/taxonline/admin/cli/pkg/errors"
	"github.com/taxonline/admin/cli/pkg/logger"
	"github.com/taxonline/admin/cli/pkg/stream"
)

// DocumentService is the upload view: it validates and sends PDFs, lists
// indexed documents and follows the pipeline jobs an upload starts.
type DocumentService struct {
	api       *api.API
	caps      Capabilities
	streams   *stream.Registry
	validator *DocumentValidator

	documents *Cached[[]api.Document]
}

// NewDocumentService creates the upload view. streams may be nil when
// jobs are never followed.
func NewDocumentService(a *api.API, caps Capabilities, streams *stream.Registry) *DocumentService {
	return &DocumentService{
		api:       a,
		caps:      caps,
		streams:   streams,
		validator: NewDocumentValidator(),
		documents: NewCached[[]api.Document](0),
	}
}

// List returns documents matching filter, from cache when possible.
func (s *DocumentService) List(ctx context.Context, filter api.DocumentFilter) ([]api.Document, error) {
	if err := requireSession(s.caps); err != nil {
		return nil, err
	}
	return s.documents.Get(ctx, key(filter.Status, filter.Domain, filter.DocType), func(ctx context.Context) ([]api.Document, error) {
		docs, err := s.api.ListDocuments(ctx, filter)
		if err != nil {
			return nil, fmt.Errorf("failed to list documents: %w", err)
		}
		return docs, nil
	})
}

// Upload validates paths and meta, then sends every file in one request.
// The document list is invalidated once the backend accepts the upload.
func (s *DocumentService) Upload(ctx context.Context, paths []string, meta api.UploadMeta) (*api.UploadResult, error) {
	if err := requireEditor(s.caps, "Uploading documents"); err != nil {
		return nil, err
	}
	if err := validate.Struct(meta); err != nil {
		return nil, err
	}
	pdfs, err := s.validator.ValidateFiles(paths)
	if err != nil {
		return nil, err
	}

	files := make([]api.UploadFile, 0, len(pdfs))
	for _, p := range pdfs {
		fh, err := os.Open(p.Path)
		if err != nil {
			closeAll(files)
			return nil, clierrors.FileNotFoundError(p.Path)
		}
		files = append(files, api.UploadFile{Name: p.Name, Size: p.Size, Reader: fh})
	}
	defer closeAll(files)

	logger.Info("Uploading documents", "count", len(files), "domain", meta.Domain)
	res, err := s.api.UploadDocuments(ctx, meta, files)
	if err != nil {
		return nil, fmt.Errorf("upload failed: %w", err)
	}
	s.documents.Invalidate()
	return res, nil
}

func closeAll(files []api.UploadFile) {
	for _, f := range files {
		if c, ok := f.Reader.(*os.File); ok {
			c.Close()
		}
	}
}

// Delete removes a document and its indexed chunks.
func (s *DocumentService) Delete(ctx context.Context, id int) error {
	if err := requireEditor(s.caps, "Deleting documents"); err != nil {
		return err
	}
	if err := s.api.DeleteDocument(ctx, id); err != nil {
		return fmt.Errorf("failed to delete document %d: %w", id, err)
	}
	s.documents.Invalidate()
	return nil
}

// JobOutcome is how following one job ended.
type JobOutcome struct {
	JobID int
	Last  stream.Event
	// Err is set when the stream closed without a terminal event.
	Err error
}

// Succeeded reports whether the job completed.
func (o JobOutcome) Succeeded() bool {
	return o.Err == nil && o.Last.Status == stream.StatusCompleted
}

// Follow streams the logs of jobIDs until each reaches a terminal event
// or its stream gives up. Events reach the registry's OnEvent callback.
// Documents are re-fetched on the next List once every job has ended.
func (s *DocumentService) Follow(ctx context.Context, jobIDs []int) ([]JobOutcome, error) {
	if s.streams == nil {
		return nil, fmt.Errorf("job streaming is not configured")
	}
	if err := requireSession(s.caps); err != nil {
		return nil, err
	}

	outcomes := make([]JobOutcome, len(jobIDs))
	g, gctx := errgroup.WithContext(ctx)
	for i, id := range jobIDs {
		h := s.streams.Watch(ctx, id)
		g.Go(func() error {
			err := h.Wait(gctx)
			if gctx.Err() != nil {
				return gctx.Err()
			}
			last, _ := h.Buffer().Last()
			outcomes[i] = JobOutcome{JobID: id, Last: last, Err: err}
			if err != nil {
				logger.Warn("Job stream ended early", "job_id", id, "error", err)
			}
			return nil
		})
	}
	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		for _, id := range jobIDs {
			s.streams.Close(id)
		}
		return nil, err
	}

	s.documents.Invalidate()
	logger.Debug("Followed jobs", "count", len(jobIDs))
	return outcomes, nil
}
