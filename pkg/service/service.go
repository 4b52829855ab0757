// Package service holds the view modules of the admin client: each one
// validates input, checks the session's capabilities, calls the endpoint
// bindings and keeps its own cached query state.
package service

import (
	"strconv"

	"github.com/go-playground/validator/v10"

	clierrors "github.com/taxonline/admin/cli/pkg/errors"
	"github.com/taxonline/admin/cli/pkg/session"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Capabilities is the part of the session the view modules gate on.
type Capabilities interface {
	IsAuthenticated() bool
	IsEditor() bool
	IsAdmin() bool
}

var _ Capabilities = (*session.Store)(nil)

func requireSession(c Capabilities) error {
	if !c.IsAuthenticated() {
		return clierrors.NotLoggedInError()
	}
	return nil
}

func requireEditor(c Capabilities, action string) error {
	if err := requireSession(c); err != nil {
		return err
	}
	if !c.IsEditor() {
		return clierrors.PermissionError(action, string(session.RoleEditor))
	}
	return nil
}

func requireAdmin(c Capabilities, action string) error {
	if err := requireSession(c); err != nil {
		return err
	}
	if !c.IsAdmin() {
		return clierrors.PermissionError(action, string(session.RoleAdmin))
	}
	return nil
}

func pluralize(count int) string {
	if count == 1 {
		return ""
	}
	return "s"
}

func key(parts ...interface{}) string {
	s := ""
	for i, p := range parts {
		if i > 0 {
			s += "|"
		}
		switch v := p.(type) {
		case string:
			s += v
		case int:
			s += strconv.Itoa(v)
		case bool:
			s += strconv.FormatBool(v)
		}
	}
	return s
}
