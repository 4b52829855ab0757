package api

import (
	"context"
	"net/url"

	"github.com/taxonline/admin/cli/pkg/client"
	"github.com/taxonline/admin/cli/pkg/logger"
)

// SearchChunks runs a semantic search over indexed chunks.
func (a *API) SearchChunks(ctx context.Context, s ChunkSearch) ([]Chunk, error) {
	logger.Debug("Searching chunks", "q", s.Query, "domain", s.Domain, "limit", s.Limit)

	var chunks []Chunk
	err := a.c.Get(ctx, "/chunks/search", &chunks,
		client.WithQuery("q", s.Query),
		client.WithQuery("domain", s.Domain),
		client.WithQuery("limit", itoa(s.Limit)))
	if err != nil {
		return nil, err
	}
	return chunks, nil
}

// GetChunk fetches one chunk. The text is split out of the payload.
func (a *API) GetChunk(ctx context.Context, id string) (*Chunk, error) {
	logger.Debug("Fetching chunk", "chunk_id", id)

	var p chunkPoint
	if err := a.c.Get(ctx, "/chunks/"+url.PathEscape(id), &p); err != nil {
		return nil, err
	}
	c := p.chunk()
	return &c, nil
}

// UpdateChunk sets the text and/or metadata of a chunk.
func (a *API) UpdateChunk(ctx context.Context, id string, upd ChunkUpdate) error {
	logger.Debug("Updating chunk", "chunk_id", id)
	return a.c.Put(ctx, "/chunks/"+url.PathEscape(id), nil, client.WithJSON(upd))
}

// DeleteChunk removes a chunk from the vector store.
func (a *API) DeleteChunk(ctx context.Context, id string) error {
	logger.Debug("Deleting chunk", "chunk_id", id)
	return a.c.Delete(ctx, "/chunks/"+url.PathEscape(id), nil)
}

// ReindexDocument queues a new pipeline job for a document.
func (a *API) ReindexDocument(ctx context.Context, documentID int) (*ReindexResult, error) {
	logger.Debug("Reindexing document", "document_id", documentID)

	var r ReindexResult
	if err := a.c.Post(ctx, path("/chunks/reindex/%d", documentID), &r); err != nil {
		return nil, err
	}
	return &r, nil
}
