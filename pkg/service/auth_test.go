package service

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taxonline/admin/cli/pkg/api"
	clierrors "github.com/taxonline/admin/cli/pkg/errors"
	"github.com/taxonline/admin/cli/pkg/session"
)

func loginMux(mux *http.ServeMux) *http.ServeMux {
	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if r.PostForm.Get("password") != "s3cret" {
			writeJSON(w, 401, `{"detail":"Incorrect username or password"}`)
			return
		}
		writeJSON(w, 200, `{"access_token":"tok-new","refresh_token":"r","token_type":"bearer",
			"user":{"id":2,"username":"karim","email":"karim@taxonline.dz","role":"admin"}}`)
	})
	return mux
}

func TestLoginReplacesSession(t *testing.T) {
	e := newEnv(t, session.RoleViewer, loginMux(http.NewServeMux()))
	svc := NewAuthService(e.api, e.store)

	u, err := svc.Login(context.Background(), " karim ", "s3cret")

	require.NoError(t, err)
	assert.Equal(t, "karim", u.Username)
	assert.Equal(t, "tok-new", e.store.Token())
	assert.True(t, e.store.IsAdmin())
}

func TestLoginFailureKeepsSession(t *testing.T) {
	e := newEnv(t, session.RoleViewer, loginMux(http.NewServeMux()))
	svc := NewAuthService(e.api, e.store)

	_, err := svc.Login(context.Background(), "karim", "wrong")

	assertCLIError(t, err, clierrors.ErrorTypeAuth)
	assert.True(t, session.IsLoginFailure(err))
	assert.Equal(t, "tok-amina", e.store.Token())

	_, err = svc.Login(context.Background(), "karim", "")
	assertCLIError(t, err, clierrors.ErrorTypeValidation)
}

func TestLogout(t *testing.T) {
	e := newEnv(t, session.RoleEditor, http.NewServeMux())
	svc := NewAuthService(e.api, e.store)

	svc.Logout()
	svc.Logout()

	assert.False(t, e.store.IsAuthenticated())
}

func TestMeRefreshesProfile(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/auth/me", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-amina", r.Header.Get("Authorization"))
		writeJSON(w, 200, `{"id":7,"username":"amina","role":"admin","last_login":"2026-03-01T08:00:00"}`)
	})
	e := newEnv(t, session.RoleViewer, mux)

	u, err := NewAuthService(e.api, e.store).Me(context.Background())

	require.NoError(t, err)
	assert.Equal(t, session.RoleAdmin, u.Role)
	assert.True(t, e.store.IsAdmin())
}

func TestMeWithRevokedToken(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/auth/me", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 401, `{"detail":"Could not validate credentials"}`)
	})
	e := newEnv(t, session.RoleViewer, mux)

	_, err := NewAuthService(e.api, e.store).Me(context.Background())

	assertCLIError(t, err, clierrors.ErrorTypeSessionExpired)
	assert.False(t, e.store.IsAuthenticated())
}

func TestUsersAdminOnly(t *testing.T) {
	var lists, creates int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/auth/users", counted(&lists, `[{"id":1,"username":"amina","role":"admin"}]`))
	mux.HandleFunc("POST /api/auth/users", counted(&creates, `{"id":9,"username":"lina"}`))

	editor := newEnv(t, session.RoleEditor, mux)
	_, err := NewAuthService(editor.api, editor.store).Users(context.Background())
	assertCLIError(t, err, clierrors.ErrorTypePermission)

	admin := newEnv(t, session.RoleAdmin, mux)
	svc := NewAuthService(admin.api, admin.store)
	users, err := svc.Users(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 1)

	_, err = svc.CreateUser(context.Background(), api.UserInput{Username: "li", Email: "bad", Password: "short", Role: "owner"})
	assertCLIError(t, err, clierrors.ErrorTypeValidation)
	assert.Zero(t, atomic.LoadInt32(&creates))

	created, err := svc.CreateUser(context.Background(), api.UserInput{
		Username: "lina", Email: "lina@taxonline.dz", Password: "longenough", Role: session.RoleEditor,
	})
	require.NoError(t, err)
	assert.Equal(t, 9, created.ID)

	_, _ = svc.Users(context.Background())
	assert.Equal(t, int32(2), atomic.LoadInt32(&lists))
}
