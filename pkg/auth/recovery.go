package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/taxonline/admin/cli/pkg/api"
	"github.com/taxonline/admin/cli/pkg/client"
	"github.com/taxonline/admin/cli/pkg/logger"
	"github.com/taxonline/admin/cli/pkg/session"
)

// ErrNotAuthenticated is returned when there is no session to validate.
var ErrNotAuthenticated = errors.New("not authenticated")

// ProfileFetcher is the /auth/me binding.
type ProfileFetcher interface {
	Me(ctx context.Context) (*api.Profile, error)
}

// SessionRecovery lazily re-validates a restored session against the
// backend so that role changes and revoked tokens are noticed.
type SessionRecovery struct {
	store  *session.Store
	fetch  ProfileFetcher
	maxAge time.Duration
	now    func() time.Time

	mu        sync.Mutex
	checkedAt time.Time
	token     string
}

// NewSessionRecovery creates a recovery handler. A session validated less
// than maxAge ago is not checked again; zero always checks.
func NewSessionRecovery(store *session.Store, fetch ProfileFetcher, maxAge time.Duration) *SessionRecovery {
	return &SessionRecovery{
		store:  store,
		fetch:  fetch,
		maxAge: maxAge,
		now:    time.Now,
	}
}

// Revalidate fetches the profile and replaces the stored user with it.
// A 401 has already ended the session in the gateway by the time it
// returns here. Network failures leave the session as it is.
func (sr *SessionRecovery) Revalidate(ctx context.Context) (*session.User, error) {
	token := sr.store.Token()
	if token == "" {
		return nil, ErrNotAuthenticated
	}

	sr.mu.Lock()
	fresh := sr.token == token && sr.maxAge > 0 && sr.now().Sub(sr.checkedAt) < sr.maxAge
	sr.mu.Unlock()
	if fresh {
		return sr.store.User(), nil
	}

	logger.Debug("Revalidating session")
	profile, err := sr.fetch.Me(ctx)
	if err != nil {
		if IsSessionError(err) {
			logger.Info("Stored session is no longer valid")
		} else {
			logger.Warn("Could not revalidate session", "error", err)
		}
		return nil, err
	}

	prev := sr.store.User()
	if prev != nil && prev.Role != profile.Role {
		logger.Info("Role changed", "username", profile.Username, "from", prev.Role, "to", profile.Role)
	}
	// The session may have ended while the request was in flight.
	if sr.store.Token() != token {
		return nil, ErrNotAuthenticated
	}
	sr.store.Refresh(profile.User)

	sr.mu.Lock()
	sr.token = token
	sr.checkedAt = sr.now()
	sr.mu.Unlock()

	u := profile.User
	return &u, nil
}

// IsSessionError reports whether err means the session is gone.
func IsSessionError(err error) bool {
	return errors.Is(err, ErrNotAuthenticated) || client.IsUnauthorized(err)
}
