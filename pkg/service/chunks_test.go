package service

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/go-playground/validator/v10"
	json "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taxonline/admin/cli/pkg/api"
	clierrors "github.com/taxonline/admin/cli/pkg/errors"
	"github.com/taxonline/admin/cli/pkg/session"
)

func TestSearchValidatesQuery(t *testing.T) {
	var searches int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/chunks/search", counted(&searches, `[{"id":"c1","score":0.91,"text":"Le taux normal de TVA est de 19%","metadata":{"domain":"TVA"}}]`))
	e := newEnv(t, session.RoleViewer, mux)
	svc := NewChunkService(e.api, e.store)

	_, err := svc.Search(context.Background(), api.ChunkSearch{Query: "tv"})
	var verrs validator.ValidationErrors
	assert.ErrorAs(t, err, &verrs)
	assert.Zero(t, atomic.LoadInt32(&searches))

	chunks, err := svc.Search(context.Background(), api.ChunkSearch{Query: "taux tva", Limit: 10})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "c1", chunks[0].ID)
}

func TestUpdateChunk(t *testing.T) {
	var searches int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/chunks/search", counted(&searches, `[]`))
	mux.HandleFunc("PUT /api/chunks/{id}", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "corrected text", body["text"])
		_, hasMeta := body["metadata"]
		assert.False(t, hasMeta)
		writeJSON(w, 200, `{"updated":"c1"}`)
	})
	e := newEnv(t, session.RoleEditor, mux)
	svc := NewChunkService(e.api, e.store)
	ctx := context.Background()

	err := svc.Update(ctx, "c1", api.ChunkUpdate{})
	assertCLIError(t, err, clierrors.ErrorTypeValidation)

	_, _ = svc.Search(ctx, api.ChunkSearch{Query: "taux"})
	text := "corrected text"
	require.NoError(t, svc.Update(ctx, "c1", api.ChunkUpdate{Text: &text}))
	_, _ = svc.Search(ctx, api.ChunkSearch{Query: "taux"})
	assert.Equal(t, int32(2), atomic.LoadInt32(&searches))
}

func TestChunkEditsRequireEditor(t *testing.T) {
	e := newEnv(t, session.RoleViewer, http.NewServeMux())
	svc := NewChunkService(e.api, e.store)
	ctx := context.Background()
	text := "x"

	assertCLIError(t, svc.Update(ctx, "c1", api.ChunkUpdate{Text: &text}), clierrors.ErrorTypePermission)
	assertCLIError(t, svc.Delete(ctx, "c1"), clierrors.ErrorTypePermission)
	_, err := svc.Reindex(ctx, 3)
	assertCLIError(t, err, clierrors.ErrorTypePermission)
}

func TestReindex(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/chunks/reindex/{id}", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "3", r.PathValue("id"))
		writeJSON(w, 200, `{"job_id":44}`)
	})
	e := newEnv(t, session.RoleAdmin, mux)

	res, err := NewChunkService(e.api, e.store).Reindex(context.Background(), 3)

	require.NoError(t, err)
	assert.Equal(t, 44, res.JobID)
}
