package client

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taxonline/admin/cli/pkg/session"
)

type fakeSession struct {
	mu      sync.Mutex
	token   string
	expired []string
}

func (s *fakeSession) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func (s *fakeSession) Expire(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expired = append(s.expired, token)
	if token != s.token || token == "" {
		return false
	}
	s.token = ""
	return true
}

type stubAuth struct{ token string }

func (a stubAuth) Authenticate(ctx context.Context, identifier, secret string) (string, session.User, error) {
	return a.token, session.User{Username: identifier, Role: session.RoleEditor}, nil
}

func newTestClient(t *testing.T, handler http.HandlerFunc, sess Session, onUnauthorized func()) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Options{BaseURL: srv.URL + "/api", OnUnauthorized: onUnauthorized}, sess)
}

func TestRequestAttachesBearerToken(t *testing.T) {
	var gotAuth, gotRequestID, gotAgent string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotRequestID = r.Header.Get(RequestIDHeader)
		gotAgent = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusOK)
	}, &fakeSession{token: "tok-123"}, nil)

	_, err := c.Request(context.Background(), http.MethodGet, "/auth/me")

	require.NoError(t, err)
	assert.Equal(t, "Bearer tok-123", gotAuth)
	assert.NotEmpty(t, gotRequestID)
	assert.Equal(t, UserAgent, gotAgent)
}

func TestRequestWithoutTokenIsUnauthenticated(t *testing.T) {
	var gotAuth []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Values("Authorization")
	}, &fakeSession{}, nil)

	_, err := c.Request(context.Background(), http.MethodGet, "/metrics/health")

	require.NoError(t, err)
	assert.Empty(t, gotAuth)
}

func TestPublicRequestNeverCarriesToken(t *testing.T) {
	var gotAuth string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
	}, &fakeSession{token: "tok"}, nil)

	_, err := c.Request(context.Background(), http.MethodPost, "/auth/login", Public())

	require.NoError(t, err)
	assert.Empty(t, gotAuth)
}

func TestTokenReadPerRequest(t *testing.T) {
	var seen []string
	var mu sync.Mutex
	sess := &fakeSession{token: "first"}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, r.Header.Get("Authorization"))
		mu.Unlock()
	}, sess, nil)

	_, err := c.Request(context.Background(), http.MethodGet, "/a")
	require.NoError(t, err)
	sess.mu.Lock()
	sess.token = "second"
	sess.mu.Unlock()
	_, err = c.Request(context.Background(), http.MethodGet, "/b")
	require.NoError(t, err)

	assert.Equal(t, []string{"Bearer first", "Bearer second"}, seen)
}

func TestUnauthorizedExpiresSessionAndNavigates(t *testing.T) {
	sess := &fakeSession{token: "stale"}
	var navigations int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"detail":"Could not validate credentials"}`)
	}, sess, func() { atomic.AddInt32(&navigations, 1) })

	_, err := c.Request(context.Background(), http.MethodGet, "/pipeline/jobs")

	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))
	assert.Equal(t, "", sess.Token())
	assert.Equal(t, []string{"stale"}, sess.expired)
	assert.Equal(t, int32(1), navigations)
}

func TestConcurrentUnauthorizedLogsOutOnce(t *testing.T) {
	store := session.NewStore(session.NewMemoryPersister())
	require.NoError(t, store.Login(context.Background(), stubAuth{token: "shared"}, "amel", "pw"))

	release := make(chan struct{})
	var arrived sync.WaitGroup
	const inFlight = 8
	arrived.Add(inFlight)
	var navigations int32

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		arrived.Done()
		<-release
		w.WriteHeader(http.StatusUnauthorized)
	}, store, func() { atomic.AddInt32(&navigations, 1) })

	var wg sync.WaitGroup
	errs := make([]error, inFlight)
	for i := 0; i < inFlight; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.Request(context.Background(), http.MethodGet, "/tests/runs")
		}(i)
	}
	arrived.Wait()
	close(release)
	wg.Wait()

	for _, err := range errs {
		assert.True(t, IsUnauthorized(err))
	}
	assert.Equal(t, int32(1), navigations)
	assert.Equal(t, session.StateAnonymous, store.State())
}

func TestPublicUnauthorizedKeepsSession(t *testing.T) {
	sess := &fakeSession{token: "current"}
	called := false
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"detail":"Incorrect username or password"}`)
	}, sess, func() { called = true })

	_, err := c.Request(context.Background(), http.MethodPost, "/auth/login", Public(), WithForm(map[string]string{"username": "a", "password": "b"}))

	require.Error(t, err)
	assert.Equal(t, "current", sess.Token())
	assert.Empty(t, sess.expired)
	assert.False(t, called)
}

func TestServerErrorHasNoSessionSideEffect(t *testing.T) {
	sess := &fakeSession{token: "tok"}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"detail":"Can only rollback completed or failed jobs"}`)
	}, sess, nil)

	resp, err := c.Request(context.Background(), http.MethodPost, "/pipeline/jobs/4/rollback")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "Can only rollback completed or failed jobs", apiErr.Message)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "tok", sess.Token())
	assert.Empty(t, sess.expired)
}

func TestTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := New(Options{BaseURL: url}, &fakeSession{token: "tok"})
	_, err := c.Request(context.Background(), http.MethodGet, "/metrics/realtime")

	require.Error(t, err)
	assert.True(t, IsTransport(err))
	assert.Equal(t, 0, StatusCode(err))
}

func TestDoDecodesJSON(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/metrics/performance", r.URL.Path)
		assert.Equal(t, "12", r.URL.Query().Get("hours"))
		assert.False(t, r.URL.Query().Has("domain"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `[{"total": 5}]`)
	}, &fakeSession{}, nil)

	var out []struct {
		Total int `json:"total"`
	}
	err := c.Get(context.Background(), "/metrics/performance", &out, WithQuery("hours", "12"), WithQuery("domain", ""))

	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, 5, out[0].Total)
}

func TestWithJSONBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"question":"TVA rate?","tags":["tva"]}`, string(body))
		_, _ = io.WriteString(w, `{"id": 11}`)
	}, &fakeSession{}, nil)

	payload := map[string]interface{}{"question": "TVA rate?", "tags": []string{"tva"}}
	var out struct {
		ID int `json:"id"`
	}
	require.NoError(t, c.Post(context.Background(), "/tests/cases", &out, WithJSON(payload)))
	assert.Equal(t, 11, out.ID)
}

func TestWithFormIsURLEncoded(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded"))
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "amel", r.PostForm.Get("username"))
		assert.Equal(t, "s3cret", r.PostForm.Get("password"))
	}, &fakeSession{}, nil)

	_, err := c.Request(context.Background(), http.MethodPost, "/auth/login", WithForm(map[string]string{"username": "amel", "password": "s3cret"}))
	require.NoError(t, err)
}

func TestWithMultipartUpload(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "loi", r.FormValue("doc_type"))
		assert.Equal(t, "2024", r.FormValue("year"))

		files := r.MultipartForm.File["files"]
		require.Len(t, files, 2)
		assert.Equal(t, "a.pdf", files[0].Filename)
		assert.Equal(t, "b.pdf", files[1].Filename)
		f, err := files[1].Open()
		require.NoError(t, err)
		defer f.Close()
		data, _ := io.ReadAll(f)
		assert.Equal(t, "%PDF-b", string(data))
	}, &fakeSession{token: "t"}, nil)

	_, err := c.Request(context.Background(), http.MethodPost, "/upload/documents",
		WithMultipart(map[string]string{"doc_type": "loi", "year": "2024"},
			FilePart{Field: "files", Name: "a.pdf", ContentType: "application/pdf", Reader: strings.NewReader("%PDF-a")},
			FilePart{Field: "files", Name: "b.pdf", ContentType: "application/pdf", Reader: strings.NewReader("%PDF-b")},
		))
	require.NoError(t, err)
}

func TestDownloadReturnsRawBytes(t *testing.T) {
	csv := "id,query\n1,\"taux TVA\"\n"
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", "attachment; filename=query_logs_30d.csv")
		_, _ = io.WriteString(w, csv)
	}, &fakeSession{token: "t"}, nil)

	data, header, err := c.Download(context.Background(), "/analytics/export", WithQuery("format", "csv"))

	require.NoError(t, err)
	assert.Equal(t, csv, string(data))
	assert.Equal(t, "text/csv", header.Get("Content-Type"))
}

func TestParseError(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		message string
	}{
		{"detail string", 404, `{"detail":"Job not found"}`, "Job not found"},
		{"validation list", 422, `{"detail":[{"loc":["query","q"],"msg":"ensure this value has at least 3 characters"}]}`, "q: ensure this value has at least 3 characters"},
		{"plain text", 502, "Bad Gateway", "Bad Gateway"},
		{"empty body", 500, "", ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ParseError(tc.status, []byte(tc.body))
			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tc.status, apiErr.StatusCode)
			assert.Equal(t, tc.message, apiErr.Message)
			assert.NotEmpty(t, apiErr.Error())
		})
	}
}

func TestErrorPredicates(t *testing.T) {
	assert.True(t, IsNotFound(&APIError{StatusCode: 404}))
	assert.True(t, IsForbidden(&APIError{StatusCode: 403}))
	assert.True(t, IsServerError(&APIError{StatusCode: 503}))
	assert.False(t, IsServerError(&APIError{StatusCode: 400}))
	assert.False(t, IsUnauthorized(io.EOF))
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", bearerToken("Bearer abc"))
	assert.Equal(t, "abc", bearerToken("bearer abc"))
	assert.Equal(t, "", bearerToken("Basic abc"))
	assert.Equal(t, "", bearerToken(""))
}
