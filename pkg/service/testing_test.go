package service

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/go-playground/validator/v10"
	json "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taxonline/admin/cli/pkg/api"
	clierrors "github.com/taxonline/admin/cli/pkg/errors"
	"github.com/taxonline/admin/cli/pkg/session"
)

func TestCreateCaseGatedAndValidated(t *testing.T) {
	var creates int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/tests/cases", counted(&creates, `{"id":31}`))

	viewer := newEnv(t, session.RoleViewer, mux)
	_, err := NewTestingService(viewer.api, viewer.store).CreateCase(context.Background(),
		api.TestCaseInput{Question: "Q?", ExpectedAnswer: "A"})
	assertCLIError(t, err, clierrors.ErrorTypePermission)

	editor := newEnv(t, session.RoleEditor, mux)
	svc := NewTestingService(editor.api, editor.store)
	_, err = svc.CreateCase(context.Background(), api.TestCaseInput{Question: "Q?"})
	var verrs validator.ValidationErrors
	assert.ErrorAs(t, err, &verrs)
	_, err = svc.CreateCase(context.Background(), api.TestCaseInput{Question: "Q?", ExpectedAnswer: "A", Domain: "VAT"})
	assert.ErrorAs(t, err, &verrs)
	assert.Zero(t, atomic.LoadInt32(&creates))

	id, err := svc.CreateCase(context.Background(), api.TestCaseInput{
		Question:       gofakeit.HipsterSentence(),
		ExpectedAnswer: gofakeit.Word(),
		Domain:         "TVA",
	})
	require.NoError(t, err)
	assert.Equal(t, 31, id)
}

func TestCaseCommandsInvalidateList(t *testing.T) {
	var lists int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/tests/cases", counted(&lists, `[{"id":1,"question":"Q","expected_answer":"A","domain":"TVA","tags":[]}]`))
	mux.HandleFunc("PUT /api/tests/cases/{id}", func(w http.ResponseWriter, r *http.Request) { writeJSON(w, 200, `{"updated":1}`) })
	mux.HandleFunc("DELETE /api/tests/cases/{id}", func(w http.ResponseWriter, r *http.Request) { writeJSON(w, 200, `{"deleted":1}`) })
	e := newEnv(t, session.RoleEditor, mux)
	svc := NewTestingService(e.api, e.store)
	ctx := context.Background()

	_, err := svc.Cases(ctx, "TVA")
	require.NoError(t, err)
	_, _ = svc.Cases(ctx, "TVA")
	assert.Equal(t, int32(1), atomic.LoadInt32(&lists))

	require.NoError(t, svc.UpdateCase(ctx, 1, api.TestCaseInput{Question: "Q2", ExpectedAnswer: "A"}))
	_, _ = svc.Cases(ctx, "TVA")
	assert.Equal(t, int32(2), atomic.LoadInt32(&lists))

	require.NoError(t, svc.DeleteCase(ctx, 1))
	_, _ = svc.Cases(ctx, "TVA")
	assert.Equal(t, int32(3), atomic.LoadInt32(&lists))
}

func TestStartRunByViewer(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/tests/runs", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "baseline", body["name"])
		writeJSON(w, 200, `{"run_id":8,"status":"started"}`)
	})
	e := newEnv(t, session.RoleViewer, mux)
	svc := NewTestingService(e.api, e.store)

	started, err := svc.StartRun(context.Background(), api.TestRunInput{
		Name:    "baseline",
		ConfigA: api.RetrievalConfig{TopK: 5, MinScore: 0.5},
	})
	require.NoError(t, err)
	assert.Equal(t, 8, started.RunID)

	_, err = svc.StartRun(context.Background(), api.TestRunInput{Name: "bad", ConfigA: api.RetrievalConfig{TopK: 0}})
	var verrs validator.ValidationErrors
	assert.ErrorAs(t, err, &verrs)
}

func TestWaitRunPollsUntilDone(t *testing.T) {
	var polls int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/tests/runs/{id}", func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&polls, 1) < 3 {
			writeJSON(w, 200, `{"id":8,"name":"baseline","status":"running","summary":null}`)
			return
		}
		writeJSON(w, 200, `{"id":8,"name":"baseline","status":"completed",
			"results":[{"test_case_id":1,"question":"Q","expected":"A","result_a":{"score":0.8,"latency_ms":120,"chunks_returned":5,"top_text":"t"},"result_b":null,"passed":true}],
			"summary":{"total":1,"passed":1,"failed":0,"pass_rate":100}}`)
	})
	e := newEnv(t, session.RoleViewer, mux)

	run, err := NewTestingService(e.api, e.store).WaitRun(context.Background(), 8, time.Millisecond)

	require.NoError(t, err)
	assert.Equal(t, "completed", run.Status)
	assert.Equal(t, int32(3), atomic.LoadInt32(&polls))
	require.Len(t, run.Results, 1)
	assert.True(t, run.Results[0].Passed)
	assert.Equal(t, 100.0, run.Summary.PassRate)
}

func TestWaitRunCancelled(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/tests/runs/{id}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, `{"id":8,"name":"baseline","status":"running"}`)
	})
	e := newEnv(t, session.RoleViewer, mux)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := NewTestingService(e.api, e.store).WaitRun(ctx, 8, 5*time.Millisecond)

	assert.Error(t, err)
}
