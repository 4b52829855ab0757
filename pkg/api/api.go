// Package api binds each backend endpoint to a typed Go function.
package api

import (
	"fmt"
	"strconv"

	"github.com/taxonline/admin/cli/pkg/client"
)

// API exposes the backend endpoints over one gateway client.
type API struct {
	c *client.Client
}

// New creates an API on top of c.
func New(c *client.Client) *API {
	return &API{c: c}
}

// Client returns the underlying gateway client.
func (a *API) Client() *client.Client {
	return a.c
}

func itoa(n int) string {
	if n == 0 {
		return ""
	}
	return strconv.Itoa(n)
}

func path(format string, args ...interface{}) string {
	return fmt.Sprintf(format, args...)
}
