package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taxonline/admin/cli/pkg/client"
	"github.com/taxonline/admin/cli/pkg/session"
	"github.com/taxonline/admin/cli/pkg/stream"
)

func TestNewCLIError(t *testing.T) {
	cause := errors.New("underlying error")
	err := NewCLIError(ErrorTypeValidation, "Test error", cause)

	require.NotNil(t, err)
	assert.Equal(t, ErrorTypeValidation, err.Type)
	assert.Equal(t, "Test error", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestWithSuggestion(t *testing.T) {
	err := NewCLIError(ErrorTypeValidation, "Test", nil)
	assert.False(t, err.HasSuggestion())

	err.WithSuggestion("Try something else")

	assert.True(t, err.HasSuggestion())
	assert.Equal(t, "Try something else", err.Suggestion)
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		err  *CLIError
		typ  ErrorType
		hint bool
	}{
		{NetworkError("down", nil), ErrorTypeNetwork, true},
		{TimeoutError(nil), ErrorTypeTimeout, true},
		{SessionExpiredError(nil), ErrorTypeSessionExpired, true},
		{NotLoggedInError(), ErrorTypeAuth, true},
		{ForbiddenError("", nil), ErrorTypeForbidden, true},
		{PermissionError("Uploading documents", "editor"), ErrorTypePermission, true},
		{FileNotFoundError("/tmp/x.pdf"), ErrorTypeFileNotFound, true},
		{FileTypeError("notes.docx"), ErrorTypeFileType, true},
		{FileSizeError("big.pdf", 120.4, 100), ErrorTypeFileSize, true},
		{ServerError(502, "", nil), ErrorTypeServer, true},
		{NotFoundError("Job", "9"), ErrorTypeNotFound, false},
	}
	for _, tc := range tests {
		t.Run(string(tc.typ), func(t *testing.T) {
			assert.Equal(t, tc.typ, tc.err.Type)
			assert.Equal(t, tc.hint, tc.err.HasSuggestion())
			assert.NotEmpty(t, tc.err.Message)
		})
	}

	assert.Equal(t, "Uploading documents requires the editor role", PermissionError("Uploading documents", "editor").Message)
	assert.Contains(t, FileSizeError("big.pdf", 120.4, 100).Message, "120.4 MB")
}

func TestCategorizeAPIErrors(t *testing.T) {
	tests := []struct {
		status int
		typ    ErrorType
	}{
		{401, ErrorTypeSessionExpired},
		{403, ErrorTypeForbidden},
		{404, ErrorTypeNotFound},
		{400, ErrorTypeBadRequest},
		{422, ErrorTypeBadRequest},
		{500, ErrorTypeServer},
		{503, ErrorTypeServer},
	}
	for _, tc := range tests {
		t.Run(fmt.Sprint(tc.status), func(t *testing.T) {
			apiErr := &client.APIError{StatusCode: tc.status, Message: "detail text"}
			got := CategorizeError(fmt.Errorf("listing jobs: %w", apiErr))
			assert.Equal(t, tc.typ, got.Type)
			assert.Equal(t, tc.status, got.StatusCode)
		})
	}

	got := CategorizeError(&client.APIError{StatusCode: 400, Message: "Can only rollback completed or failed jobs"})
	assert.Equal(t, "Can only rollback completed or failed jobs", got.Message)
}

func TestCategorizeLoginErrors(t *testing.T) {
	invalid := &session.AuthError{Kind: session.InvalidCredentials, Cause: &client.APIError{StatusCode: 401, Message: "Incorrect username or password"}}
	got := CategorizeError(invalid)
	assert.Equal(t, ErrorTypeAuth, got.Type)
	assert.Equal(t, "Incorrect username or password", got.Message)

	network := &session.AuthError{Kind: session.Network, Cause: errors.New("dial tcp: connection refused")}
	assert.Equal(t, ErrorTypeNetwork, CategorizeError(network).Type)
}

func TestCategorizeTransportAndTimeout(t *testing.T) {
	transport := &client.TransportError{Method: "GET", Path: "/metrics/health", Err: errors.New("connection refused")}
	assert.Equal(t, ErrorTypeNetwork, CategorizeError(transport).Type)

	timeout := &client.TransportError{Method: "GET", Path: "/metrics/health", Err: context.DeadlineExceeded}
	assert.Equal(t, ErrorTypeTimeout, CategorizeError(timeout).Type)
}

func TestCategorizeValidation(t *testing.T) {
	type form struct {
		DocType string `validate:"required,oneof=code loi"`
	}
	err := validator.New().Struct(form{DocType: "memo"})
	require.Error(t, err)

	got := CategorizeError(err)
	assert.Equal(t, ErrorTypeValidation, got.Type)
	assert.Contains(t, got.Message, "doctype")
	assert.Contains(t, got.Message, "code, loi")
}

func TestCategorizeStreamErrors(t *testing.T) {
	assert.Equal(t, ErrorTypeStream, CategorizeError(stream.ErrUnauthorized).Type)
	assert.Equal(t, ErrorTypeStream, CategorizeError(stream.ErrReconnectExhausted).Type)

	se := StreamError(12, stream.ErrReconnectExhausted)
	assert.Contains(t, se.Suggestion, "pipeline job 12")
	assert.Equal(t, loginHint, StreamError(12, stream.ErrUnauthorized).Suggestion)
}

func TestCategorizePassesCLIErrorThrough(t *testing.T) {
	orig := PermissionError("Deleting chunks", "editor")
	assert.Same(t, orig, CategorizeError(fmt.Errorf("wrapped: %w", orig)))
	assert.Nil(t, CategorizeError(nil))
	assert.Equal(t, ErrorTypeUnknown, CategorizeError(errors.New("boom")).Type)
}

func TestFormatError(t *testing.T) {
	assert.Empty(t, FormatError(nil))

	out := FormatError(&client.APIError{StatusCode: 401})
	assert.True(t, strings.HasPrefix(out, "❌ Error (session_expired): Your session has expired"))
	assert.Contains(t, out, "auth login")

	plain := FormatError(errors.New("boom"))
	assert.Equal(t, "❌ Error: boom\n", plain)
}
