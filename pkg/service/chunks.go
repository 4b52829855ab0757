package service

import (
	"context"
	"fmt"

	"github.com/taxonline/admin/cli/pkg/api"
	clierrors "github.com/taxonline/admin/cli/pkg/errors"
)

// ChunkService searches and edits indexed chunks.
type ChunkService struct {
	api  *api.API
	caps Capabilities

	results *Cached[[]api.Chunk]
}

// NewChunkService creates the chunk management view.
func NewChunkService(a *api.API, caps Capabilities) *ChunkService {
	return &ChunkService{
		api:     a,
		caps:    caps,
		results: NewCached[[]api.Chunk](0),
	}
}

func (s *ChunkService) Search(ctx context.Context, q api.ChunkSearch) ([]api.Chunk, error) {
	if err := requireSession(s.caps); err != nil {
		return nil, err
	}
	if err := validate.Struct(q); err != nil {
		return nil, err
	}
	return s.results.Get(ctx, key(q.Query, q.Domain, q.Limit), func(ctx context.Context) ([]api.Chunk, error) {
		chunks, err := s.api.SearchChunks(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("chunk search failed: %w", err)
		}
		return chunks, nil
	})
}

func (s *ChunkService) Get(ctx context.Context, id string) (*api.Chunk, error) {
	if err := requireSession(s.caps); err != nil {
		return nil, err
	}
	c, err := s.api.GetChunk(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch chunk %s: %w", id, err)
	}
	return c, nil
}

// Update replaces the text or metadata of a chunk. An update with neither
// is rejected locally.
func (s *ChunkService) Update(ctx context.Context, id string, upd api.ChunkUpdate) error {
	if err := requireEditor(s.caps, "Editing chunks"); err != nil {
		return err
	}
	if upd.Text == nil && len(upd.Metadata) == 0 {
		return clierrors.ValidationError("chunk", "nothing to update")
	}
	if err := s.api.UpdateChunk(ctx, id, upd); err != nil {
		return fmt.Errorf("failed to update chunk %s: %w", id, err)
	}
	s.results.Invalidate()
	return nil
}

func (s *ChunkService) Delete(ctx context.Context, id string) error {
	if err := requireEditor(s.caps, "Deleting chunks"); err != nil {
		return err
	}
	if err := s.api.DeleteChunk(ctx, id); err != nil {
		return fmt.Errorf("failed to delete chunk %s: %w", id, err)
	}
	s.results.Invalidate()
	return nil
}

// Reindex re-runs the pipeline for a document and returns the new job.
func (s *ChunkService) Reindex(ctx context.Context, documentID int) (*api.ReindexResult, error) {
	if err := requireEditor(s.caps, "Reindexing documents"); err != nil {
		return nil, err
	}
	res, err := s.api.ReindexDocument(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to reindex document %d: %w", documentID, err)
	}
	s.results.Invalidate()
	return res, nil
}
