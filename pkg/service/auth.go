package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/taxonline/admin/cli/pkg/api"
	"github.com/taxonline/admin/cli/pkg/auth"
	clierrors "github.com/taxonline/admin/cli/pkg/errors"
	"github.com/taxonline/admin/cli/pkg/logger"
	"github.com/taxonline/admin/cli/pkg/session"
)

// AuthService logs users in and out and manages accounts.
type AuthService struct {
	api      *api.API
	store    *session.Store
	recovery *auth.SessionRecovery

	users *Cached[[]session.User]
}

// NewAuthService creates the auth view.
func NewAuthService(a *api.API, store *session.Store) *AuthService {
	return &AuthService{
		api:      a,
		store:    store,
		recovery: auth.NewSessionRecovery(store, a, 0),
		users:    NewCached[[]session.User](0),
	}
}

// Login authenticates and replaces the current session on success.
func (s *AuthService) Login(ctx context.Context, username, password string) (*session.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, clierrors.ValidationError("username", "is required")
	}
	if password == "" {
		return nil, clierrors.ValidationError("password", "is required")
	}

	if err := s.store.Login(ctx, s.api, username, password); err != nil {
		return nil, err
	}
	s.users.Invalidate()
	return s.store.User(), nil
}

// Logout ends the session. It never fails.
func (s *AuthService) Logout() {
	if u := s.store.User(); u != nil {
		logger.Debug("Logging out", "username", u.Username)
	}
	s.store.Logout()
	s.users.Invalidate()
}

// Me re-validates the session against the backend and returns the fresh
// profile.
func (s *AuthService) Me(ctx context.Context) (*session.User, error) {
	if err := requireSession(s.store); err != nil {
		return nil, err
	}
	u, err := s.recovery.Revalidate(ctx)
	if err != nil {
		if auth.IsSessionError(err) {
			return nil, clierrors.SessionExpiredError(err)
		}
		return nil, err
	}
	return u, nil
}

func (s *AuthService) Users(ctx context.Context) ([]session.User, error) {
	if err := requireAdmin(s.store, "Listing users"); err != nil {
		return nil, err
	}
	return s.users.Get(ctx, "", func(ctx context.Context) ([]session.User, error) {
		users, err := s.api.ListUsers(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list users: %w", err)
		}
		return users, nil
	})
}

func (s *AuthService) CreateUser(ctx context.Context, in api.UserInput) (*api.CreatedUser, error) {
	if err := requireAdmin(s.store, "Creating users"); err != nil {
		return nil, err
	}
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	created, err := s.api.CreateUser(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	s.users.Invalidate()
	return created, nil
}
