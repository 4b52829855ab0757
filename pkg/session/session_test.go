package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAuth struct {
	token string
	user  User
	err   error
	calls int
}

func (a *stubAuth) Authenticate(ctx context.Context, identifier, secret string) (string, User, error) {
	a.calls++
	return a.token, a.user, a.err
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "7",
		"exp": exp.Unix(),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return tok
}

func TestLoginSetsTokenAndUser(t *testing.T) {
	tests := []struct {
		role     Role
		isAdmin  bool
		isEditor bool
	}{
		{RoleAdmin, true, true},
		{RoleEditor, false, true},
		{RoleViewer, false, false},
	}

	for _, tc := range tests {
		t.Run(string(tc.role), func(t *testing.T) {
			p := NewMemoryPersister()
			s := NewStore(p)
			auth := &stubAuth{token: "tok-" + string(tc.role), user: User{ID: 1, Username: "amel", Role: tc.role}}

			require.NoError(t, s.Login(context.Background(), auth, "amel", "secret"))

			assert.Equal(t, "tok-"+string(tc.role), s.Token())
			require.NotNil(t, s.User())
			assert.Equal(t, "amel", s.User().Username)
			assert.Equal(t, StateAuthenticated, s.State())
			assert.Equal(t, tc.isAdmin, s.IsAdmin())
			assert.Equal(t, tc.isEditor, s.IsEditor())

			snap, err := p.Load()
			require.NoError(t, err)
			require.NotNil(t, snap)
			assert.Equal(t, s.Token(), snap.Token)
			assert.Equal(t, tc.role, snap.User.Role)
		})
	}
}

func TestLoginFailureLeavesStateUnchanged(t *testing.T) {
	p := NewMemoryPersister()
	s := NewStore(p)
	require.NoError(t, s.Login(context.Background(), &stubAuth{token: "good", user: User{Username: "amel", Role: RoleEditor}}, "amel", "pw"))
	saves := p.Saves()

	err := s.Login(context.Background(), &stubAuth{err: errors.New("401 Incorrect username or password")}, "amel", "wrong")

	require.Error(t, err)
	assert.True(t, IsLoginFailure(err))
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, InvalidCredentials, authErr.Kind)

	assert.Equal(t, "good", s.Token())
	assert.Equal(t, "amel", s.User().Username)
	assert.Equal(t, saves, p.Saves())
}

func TestLoginNetworkFailure(t *testing.T) {
	s := NewStore(nil)

	err := s.Login(context.Background(), &stubAuth{err: timeoutErr{}}, "amel", "pw")

	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, Network, authErr.Kind)
	assert.True(t, IsLoginFailure(err))
	assert.Equal(t, StateAnonymous, s.State())
}

func TestLoginRejectsEmptyToken(t *testing.T) {
	s := NewStore(nil)

	err := s.Login(context.Background(), &stubAuth{user: User{Username: "x"}}, "x", "y")

	assert.True(t, IsLoginFailure(err))
	assert.Empty(t, s.Token())
	assert.Nil(t, s.User())
}

func TestLogoutClearsPersistedSnapshot(t *testing.T) {
	p := NewMemoryPersister()
	s := NewStore(p)
	require.NoError(t, s.Login(context.Background(), &stubAuth{token: "t", user: User{Username: "a", Role: RoleAdmin}}, "a", "b"))

	s.Logout()

	assert.Empty(t, s.Token())
	assert.Nil(t, s.User())
	assert.False(t, s.IsAdmin())
	assert.False(t, s.IsEditor())
	snap, err := p.Load()
	require.NoError(t, err)
	assert.Nil(t, snap)

	// logging out twice is harmless
	assert.NotPanics(t, s.Logout)
}

func TestRestoreFromSnapshot(t *testing.T) {
	p := NewMemoryPersister()
	require.NoError(t, p.Save(Snapshot{Token: "persisted", User: &User{ID: 3, Username: "yacine", Role: RoleEditor}}))

	s := NewStore(p)

	assert.Equal(t, StateAuthenticated, s.State())
	assert.Equal(t, "persisted", s.Token())
	assert.True(t, s.IsEditor())
	assert.False(t, s.IsAdmin())
}

func TestRestoreDiscardsIncompleteSnapshot(t *testing.T) {
	tests := []struct {
		name string
		snap Snapshot
	}{
		{"token without user", Snapshot{Token: "orphan"}},
		{"user without token", Snapshot{User: &User{Username: "ghost"}}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := NewMemoryPersister()
			require.NoError(t, p.Save(tc.snap))

			s := NewStore(p)

			assert.Equal(t, StateAnonymous, s.State())
			assert.Empty(t, s.Token())
			assert.Nil(t, s.User())
			snap, _ := p.Load()
			assert.Nil(t, snap)
		})
	}
}

func TestRestoreDiscardsExpiredJWT(t *testing.T) {
	p := NewMemoryPersister()
	require.NoError(t, p.Save(Snapshot{Token: signedToken(t, time.Now().Add(-time.Hour)), User: &User{Username: "old"}}))

	s := NewStore(p)

	assert.Equal(t, StateAnonymous, s.State())
}

func TestRestoreKeepsLiveJWT(t *testing.T) {
	tok := signedToken(t, time.Now().Add(time.Hour))
	p := NewMemoryPersister()
	require.NoError(t, p.Save(Snapshot{Token: tok, User: &User{Username: "live", Role: RoleViewer}}))

	s := NewStore(p)

	assert.Equal(t, tok, s.Token())
}

func TestTokenExpiry(t *testing.T) {
	exp := time.Now().Add(30 * time.Minute).Truncate(time.Second)
	got, ok := TokenExpiry(signedToken(t, exp))
	require.True(t, ok)
	assert.True(t, exp.Equal(got))

	_, ok = TokenExpiry("opaque-token")
	assert.False(t, ok)
	assert.False(t, TokenExpired("opaque-token"))
}

func TestExpireConcurrentTransitionsOnce(t *testing.T) {
	p := NewMemoryPersister()
	s := NewStore(p)
	require.NoError(t, s.Login(context.Background(), &stubAuth{token: "shared", user: User{Username: "a"}}, "a", "b"))

	var transitions int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.Expire("shared") {
				atomic.AddInt32(&transitions, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), transitions)
	assert.Equal(t, StateAnonymous, s.State())
}

func TestExpireIgnoresStaleToken(t *testing.T) {
	s := NewStore(nil)
	require.NoError(t, s.Login(context.Background(), &stubAuth{token: "new", user: User{Username: "a"}}, "a", "b"))

	assert.False(t, s.Expire("old"))
	assert.False(t, s.Expire(""))
	assert.Equal(t, "new", s.Token())
}

func TestRefreshUpdatesProfile(t *testing.T) {
	p := NewMemoryPersister()
	s := NewStore(p)
	require.NoError(t, s.Login(context.Background(), &stubAuth{token: "t", user: User{Username: "a", Role: RoleViewer}}, "a", "b"))

	s.Refresh(User{Username: "a", Role: RoleEditor})

	assert.True(t, s.IsEditor())
	snap, _ := p.Load()
	assert.Equal(t, RoleEditor, snap.User.Role)

	s.Logout()
	s.Refresh(User{Username: "a", Role: RoleAdmin})
	assert.Nil(t, s.User())
}

func TestUserReturnsCopy(t *testing.T) {
	s := NewStore(nil)
	require.NoError(t, s.Login(context.Background(), &stubAuth{token: "t", user: User{Username: "a", Role: RoleViewer}}, "a", "b"))

	u := s.User()
	u.Role = RoleAdmin

	assert.False(t, s.IsAdmin())
}

func TestFilePersisterRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	p := NewFilePersister(path)

	snap, err := p.Load()
	require.NoError(t, err)
	assert.Nil(t, snap)

	require.NoError(t, p.Save(Snapshot{Token: "abc", User: &User{ID: 9, Username: "nadia", FullName: "Nadia B", Role: RoleAdmin}}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := p.Load()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "abc", loaded.Token)
	assert.Equal(t, "Nadia B", loaded.User.DisplayName())

	require.NoError(t, p.Clear())
	require.NoError(t, p.Clear())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestFilePersisterCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	_, err := NewFilePersister(path).Load()
	assert.Error(t, err)

	// the store starts anonymous rather than failing
	s := NewStore(NewFilePersister(path))
	assert.Equal(t, StateAnonymous, s.State())
}

func TestStoreWithFilePersisterSurvivesRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")

	first := NewStore(NewFilePersister(path))
	require.NoError(t, first.Login(context.Background(), &stubAuth{token: "keep", user: User{Username: "a", Role: RoleEditor}}, "a", "b"))

	second := NewStore(NewFilePersister(path))
	assert.Equal(t, "keep", second.Token())
	assert.True(t, second.IsEditor())

	second.Logout()
	third := NewStore(NewFilePersister(path))
	assert.Equal(t, StateAnonymous, third.State())
}
