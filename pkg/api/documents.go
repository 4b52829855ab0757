package api

import (
	"context"
	"strconv"
	"strings"

	"github.com/taxonline/admin/cli/pkg/client"
	"github.com/taxonline/admin/cli/pkg/logger"
)

// UploadDocuments sends PDFs with shared metadata. Each accepted file gets
// a document and a pipeline job.
func (a *API) UploadDocuments(ctx context.Context, meta UploadMeta, files []UploadFile) (*UploadResult, error) {
	logger.Debug("Uploading documents", "count", len(files), "doc_type", meta.DocType, "domain", meta.Domain)

	fields := map[string]string{
		"doc_type": meta.DocType,
		"year":     strconv.Itoa(meta.Year),
		"domain":   meta.Domain,
		"tags":     strings.Join(meta.Tags, ","),
	}
	parts := make([]client.FilePart, 0, len(files))
	for _, f := range files {
		parts = append(parts, client.FilePart{
			Field:       "files",
			Name:        f.Name,
			ContentType: "application/pdf",
			Reader:      f.Reader,
		})
	}

	var result UploadResult
	if err := a.c.Post(ctx, "/upload/documents", &result, client.WithMultipart(fields, parts...)); err != nil {
		return nil, err
	}

	logger.Debug("Documents uploaded", "accepted", len(result.Uploaded))
	return &result, nil
}

// ListDocuments returns the newest documents matching filter.
func (a *API) ListDocuments(ctx context.Context, filter DocumentFilter) ([]Document, error) {
	logger.Debug("Listing documents", "status", filter.Status, "domain", filter.Domain, "doc_type", filter.DocType)

	var docs []Document
	err := a.c.Get(ctx, "/upload/documents", &docs,
		client.WithQuery("status", filter.Status),
		client.WithQuery("domain", filter.Domain),
		client.WithQuery("doc_type", filter.DocType))
	if err != nil {
		return nil, err
	}
	return docs, nil
}

// DeleteDocument removes a document; indexed chunks are rolled back first
// by the backend.
func (a *API) DeleteDocument(ctx context.Context, id int) error {
	logger.Debug("Deleting document", "document_id", id)
	return a.c.Delete(ctx, path("/upload/documents/%d", id), nil)
}
