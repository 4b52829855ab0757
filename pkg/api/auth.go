package api

import (
	"context"

	"github.com/taxonline/admin/cli/pkg/client"
	"github.com/taxonline/admin/cli/pkg/logger"
	"github.com/taxonline/admin/cli/pkg/session"
)

// Login exchanges credentials for a token pair. The request never carries
// the current session's token, so a failed attempt cannot end that session.
func (a *API) Login(ctx context.Context, username, password string) (*LoginResponse, error) {
	logger.Debug("Attempting login", "username", username)

	var resp LoginResponse
	err := a.c.Post(ctx, "/auth/login", &resp,
		client.Public(),
		client.WithForm(map[string]string{
			"username": username,
			"password": password,
		}))
	if err != nil {
		return nil, err
	}

	logger.Debug("Login successful", "username", resp.User.Username, "role", resp.User.Role)
	return &resp, nil
}

// Authenticate implements session.Authenticator.
func (a *API) Authenticate(ctx context.Context, identifier, secret string) (string, session.User, error) {
	resp, err := a.Login(ctx, identifier, secret)
	if err != nil {
		return "", session.User{}, err
	}
	return resp.AccessToken, resp.User, nil
}

// Me fetches the profile of the authenticated user.
func (a *API) Me(ctx context.Context) (*Profile, error) {
	logger.Debug("Fetching current user")

	var p Profile
	if err := a.c.Get(ctx, "/auth/me", &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ListUsers lists active users. Admin only.
func (a *API) ListUsers(ctx context.Context) ([]session.User, error) {
	logger.Debug("Listing users")

	var users []session.User
	if err := a.c.Get(ctx, "/auth/users", &users); err != nil {
		return nil, err
	}
	return users, nil
}

// CreateUser creates an account. Admin only.
func (a *API) CreateUser(ctx context.Context, in UserInput) (*CreatedUser, error) {
	logger.Debug("Creating user", "username", in.Username, "role", in.Role)

	var created CreatedUser
	if err := a.c.Post(ctx, "/auth/users", &created, client.WithJSON(in)); err != nil {
		return nil, err
	}
	return &created, nil
}
