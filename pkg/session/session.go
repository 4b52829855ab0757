// Package session holds the authenticated identity of the CLI: the bearer
// token, the user profile it resolves to, and the capabilities derived from
// the user's role. State is persisted on every change so that the next
// process starts authenticated without a network call.
package session

import (
	"context"
	"sync"

	"github.com/taxonline/admin/cli/pkg/logger"
)

// Role is the backend's user role.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
)

// User is the profile returned by the authentication endpoint.
type User struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Role     Role   `json:"role"`
}

// DisplayName returns the full name, falling back to the username.
func (u User) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Username
}

// Snapshot is the persisted form of a session.
type Snapshot struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

// Valid reports whether the snapshot holds both halves of a session.
func (s Snapshot) Valid() bool {
	return s.Token != "" && s.User != nil
}

// State is the authentication state of the store.
type State int

const (
	StateAnonymous State = iota
	StateAuthenticated
)

func (s State) String() string {
	if s == StateAuthenticated {
		return "authenticated"
	}
	return "anonymous"
}

// Authenticator exchanges credentials for a token and a user profile.
type Authenticator interface {
	Authenticate(ctx context.Context, identifier, secret string) (token string, user User, err error)
}

// Store is the single source of truth for who is logged in. Token and user
// are always set and cleared together under one lock, and every mutation
// rewrites the persisted snapshot before the lock is released.
type Store struct {
	mu        sync.RWMutex
	token     string
	user      *User
	persister Persister
}

// NewStore creates a store and restores the persisted snapshot, if any.
// A snapshot that is incomplete or carries an expired token is discarded.
func NewStore(p Persister) *Store {
	if p == nil {
		p = NewMemoryPersister()
	}
	s := &Store{persister: p}
	s.restore()
	return s
}

func (s *Store) restore() {
	snap, err := s.persister.Load()
	if err != nil {
		logger.Warn("Failed to load session snapshot", "error", err)
		return
	}
	if snap == nil {
		return
	}
	if !snap.Valid() || TokenExpired(snap.Token) {
		logger.Debug("Discarding stale session snapshot")
		if err := s.persister.Clear(); err != nil {
			logger.Warn("Failed to clear session snapshot", "error", err)
		}
		return
	}
	user := *snap.User
	s.token = snap.Token
	s.user = &user
	logger.Debug("Session restored", "username", user.Username, "role", user.Role)
}

// Login authenticates through auth. On success token and user are set and
// persisted together; on failure the prior state is left untouched.
func (s *Store) Login(ctx context.Context, auth Authenticator, identifier, secret string) error {
	token, user, err := auth.Authenticate(ctx, identifier, secret)
	if err != nil {
		return classifyLoginError(err)
	}
	if token == "" {
		return &AuthError{Kind: InvalidCredentials}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.user = &user
	s.persistLocked()
	logger.Info("Logged in", "username", user.Username, "role", user.Role)
	return nil
}

// Logout clears the session and the persisted snapshot. It never fails.
func (s *Store) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked()
}

// Expire ends the session because a request carrying token was rejected.
// It only acts when token is still the current token, so a late 401 for a
// previous session cannot end a newer one. It returns true for the single
// call that performed the transition.
func (s *Store) Expire(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == "" || token != s.token {
		return false
	}
	s.clearLocked()
	logger.Info("Session expired")
	return true
}

// Refresh replaces the profile of the current session, e.g. after the
// backend reports a role change. It is a no-op when anonymous.
func (s *Store) Refresh(user User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == "" {
		return
	}
	s.user = &user
	s.persistLocked()
}

// Token returns the current bearer token, or "" when anonymous.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// User returns a copy of the current user, or nil when anonymous.
func (s *Store) User() *User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// Snapshot returns the current state in persisted form.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{Token: s.token}
	if s.user != nil {
		u := *s.user
		snap.User = &u
	}
	return snap
}

// State returns the authentication state.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token != "" {
		return StateAuthenticated
	}
	return StateAnonymous
}

// IsAuthenticated reports whether a session is active.
func (s *Store) IsAuthenticated() bool {
	return s.State() == StateAuthenticated
}

// IsAdmin reports whether the current user has the admin role.
func (s *Store) IsAdmin() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user != nil && s.user.Role == RoleAdmin
}

// IsEditor reports whether the current user may edit content. Admins are
// editors too.
func (s *Store) IsEditor() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user != nil && (s.user.Role == RoleAdmin || s.user.Role == RoleEditor)
}

func (s *Store) clearLocked() {
	s.token = ""
	s.user = nil
	if err := s.persister.Clear(); err != nil {
		logger.Warn("Failed to clear session snapshot", "error", err)
	}
}

func (s *Store) persistLocked() {
	snap := Snapshot{Token: s.token, User: s.user}
	if err := s.persister.Save(snap); err != nil {
		logger.Error("Failed to persist session", "error", err)
	}
}
