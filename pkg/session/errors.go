package session

import (
	"context"
	"errors"
	"net"
)

// AuthErrorKind tells why a login failed.
type AuthErrorKind int

const (
	InvalidCredentials AuthErrorKind = iota
	Network
)

func (k AuthErrorKind) String() string {
	if k == Network {
		return "network"
	}
	return "invalid_credentials"
}

// AuthError is returned by Store.Login. Callers that only need to know that
// the login failed should use IsLoginFailure.
type AuthError struct {
	Kind  AuthErrorKind
	Cause error
}

func (e *AuthError) Error() string {
	if e.Kind == Network {
		if e.Cause != nil {
			return "login failed: cannot reach server: " + e.Cause.Error()
		}
		return "login failed: cannot reach server"
	}
	return "login failed: invalid credentials"
}

func (e *AuthError) Unwrap() error {
	return e.Cause
}

// IsLoginFailure reports whether err came from a failed login.
func IsLoginFailure(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

func classifyLoginError(err error) error {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &AuthError{Kind: Network, Cause: err}
	}
	return &AuthError{Kind: InvalidCredentials, Cause: err}
}
