package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/taxonline/admin/cli/pkg/client"
	"github.com/taxonline/admin/cli/pkg/session"
	"github.com/taxonline/admin/cli/pkg/stream"
)

// ErrorType categorizes different error types
type ErrorType string

const (
	// Network errors
	ErrorTypeNetwork ErrorType = "network"
	ErrorTypeTimeout ErrorType = "timeout"

	// Authentication errors
	ErrorTypeAuth           ErrorType = "auth"
	ErrorTypeForbidden      ErrorType = "forbidden"
	ErrorTypeSessionExpired ErrorType = "session_expired"
	ErrorTypePermission     ErrorType = "permission"

	// Validation errors
	ErrorTypeValidation   ErrorType = "validation"
	ErrorTypeFileNotFound ErrorType = "file_not_found"
	ErrorTypeFileType     ErrorType = "file_type"
	ErrorTypeFileSize     ErrorType = "file_size"

	// Server errors
	ErrorTypeServer     ErrorType = "server"
	ErrorTypeBadRequest ErrorType = "bad_request"
	ErrorTypeNotFound   ErrorType = "not_found"

	// Job stream errors
	ErrorTypeStream ErrorType = "stream"

	ErrorTypeUnknown ErrorType = "unknown"
)

const loginHint = "Run 'taxonline-cli auth login' to sign in again."

// CLIError represents a structured error with context
type CLIError struct {
	Type       ErrorType
	Message    string
	Cause      error
	Suggestion string
	StatusCode int
}

// Error implements the error interface
func (e *CLIError) Error() string {
	return e.Message
}

// WithSuggestion adds a helpful suggestion to the error
func (e *CLIError) WithSuggestion(suggestion string) *CLIError {
	e.Suggestion = suggestion
	return e
}

// HasSuggestion returns true if the error has a suggestion
func (e *CLIError) HasSuggestion() bool {
	return e.Suggestion != ""
}

// Unwrap returns the underlying error
func (e *CLIError) Unwrap() error {
	return e.Cause
}

// NewCLIError creates a new CLI error
func NewCLIError(errorType ErrorType, message string, cause error) *CLIError {
	return &CLIError{
		Type:    errorType,
		Message: message,
		Cause:   cause,
	}
}

// NetworkError creates a network error
func NetworkError(message string, cause error) *CLIError {
	err := NewCLIError(ErrorTypeNetwork, message, cause)
	err.Suggestion = "Check that the backend is reachable (api.base_url) and try again."
	return err
}

// TimeoutError creates a timeout error
func TimeoutError(cause error) *CLIError {
	err := NewCLIError(ErrorTypeTimeout, "Request timed out", cause)
	err.Suggestion = "The server is taking too long to respond. Try again in a moment."
	return err
}

// AuthError creates an authentication error
func AuthError(message string, cause error) *CLIError {
	err := NewCLIError(ErrorTypeAuth, message, cause)
	err.Suggestion = "Check your username and password."
	return err
}

// SessionExpiredError is returned once the backend has rejected the token.
func SessionExpiredError(cause error) *CLIError {
	err := NewCLIError(ErrorTypeSessionExpired, "Your session has expired", cause)
	err.StatusCode = 401
	err.Suggestion = loginHint
	return err
}

// NotLoggedInError is returned before any request when there is no session.
func NotLoggedInError() *CLIError {
	err := NewCLIError(ErrorTypeAuth, "You are not logged in", nil)
	err.Suggestion = loginHint
	return err
}

// ForbiddenError creates a forbidden error
func ForbiddenError(message string, cause error) *CLIError {
	if message == "" {
		message = "Access denied"
	}
	err := NewCLIError(ErrorTypeForbidden, message, cause)
	err.StatusCode = 403
	err.Suggestion = "Contact an administrator if you believe this is an error."
	return err
}

// PermissionError is raised locally when the session role lacks a capability.
func PermissionError(action, role string) *CLIError {
	err := NewCLIError(ErrorTypePermission, fmt.Sprintf("%s requires the %s role", action, role), nil)
	err.Suggestion = "Ask an administrator to upgrade your account."
	return err
}

// ValidationError creates a validation error
func ValidationError(field, reason string) *CLIError {
	message := fmt.Sprintf("Validation error: %s - %s", field, reason)
	return NewCLIError(ErrorTypeValidation, message, nil)
}

// FileNotFoundError creates a file not found error
func FileNotFoundError(path string) *CLIError {
	err := NewCLIError(ErrorTypeFileNotFound, fmt.Sprintf("File not found: %s", path), nil)
	err.Suggestion = "Check the file path and try again."
	return err
}

// FileTypeError rejects anything but PDF uploads.
func FileTypeError(name string) *CLIError {
	err := NewCLIError(ErrorTypeFileType, fmt.Sprintf("%s: PDF only", name), nil)
	err.Suggestion = "Only .pdf documents can be indexed."
	return err
}

// FileSizeError creates a file size error
func FileSizeError(name string, sizeMB float64, maxMB int) *CLIError {
	err := NewCLIError(ErrorTypeFileSize,
		fmt.Sprintf("%s: too large: %.1f MB (max: %d MB)", name, sizeMB, maxMB),
		nil)
	err.Suggestion = fmt.Sprintf("Split the document into files under %d MB.", maxMB)
	return err
}

// ServerError creates a server error
func ServerError(status int, message string, cause error) *CLIError {
	if message == "" {
		message = "Server error"
	}
	err := NewCLIError(ErrorTypeServer, message, cause)
	err.StatusCode = status
	err.Suggestion = "The server encountered an error. Try again in a few moments."
	return err
}

// NotFoundError creates a not found error
func NotFoundError(resourceType, identifier string) *CLIError {
	err := NewCLIError(ErrorTypeNotFound,
		fmt.Sprintf("%s not found: %s", resourceType, identifier),
		nil)
	err.StatusCode = 404
	return err
}

// StreamError reports a job log stream that ended without a terminal event.
func StreamError(jobID int, cause error) *CLIError {
	err := NewCLIError(ErrorTypeStream, fmt.Sprintf("Log stream for job %d stopped: %v", jobID, cause), cause)
	switch {
	case errors.Is(cause, stream.ErrUnauthorized):
		err.Suggestion = loginHint
	case errors.Is(cause, stream.ErrReconnectExhausted):
		err.Suggestion = fmt.Sprintf("Check the job later with 'taxonline-cli pipeline job %d'.", jobID)
	}
	return err
}

// CategorizeError converts a standard error into a CLIError
func CategorizeError(err error) *CLIError {
	if err == nil {
		return nil
	}

	// Check if it's already a CLIError
	var cliErr *CLIError
	if errors.As(err, &cliErr) {
		return cliErr
	}

	var authErr *session.AuthError
	if errors.As(err, &authErr) {
		if authErr.Kind == session.Network {
			return NetworkError("Could not reach the server to log in", err)
		}
		var apiErr *client.APIError
		if errors.As(err, &apiErr) && apiErr.Message != "" {
			return AuthError(apiErr.Message, err)
		}
		return AuthError("Invalid credentials", err)
	}

	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == 401:
			return SessionExpiredError(err)
		case apiErr.StatusCode == 403:
			return ForbiddenError(apiErr.Message, err)
		case apiErr.StatusCode == 404:
			e := NewCLIError(ErrorTypeNotFound, messageOr(apiErr.Message, "Not found"), err)
			e.StatusCode = 404
			return e
		case apiErr.StatusCode >= 500:
			return ServerError(apiErr.StatusCode, apiErr.Message, err)
		default:
			e := NewCLIError(ErrorTypeBadRequest, messageOr(apiErr.Message, apiErr.Error()), err)
			e.StatusCode = apiErr.StatusCode
			return e
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return TimeoutError(err)
	}
	if client.IsTransport(err) {
		return NetworkError("Could not connect to server. Make sure it's running.", err)
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		e := ValidationError(strings.ToLower(fe.Field()), describeRule(fe))
		e.Cause = err
		return e
	}

	if errors.Is(err, stream.ErrUnauthorized) || errors.Is(err, stream.ErrReconnectExhausted) {
		e := NewCLIError(ErrorTypeStream, err.Error(), err)
		e.Suggestion = loginHint
		if errors.Is(err, stream.ErrReconnectExhausted) {
			e.Suggestion = "The backend stayed unreachable. Try again later."
		}
		return e
	}

	return NewCLIError(ErrorTypeUnknown, err.Error(), err)
}

func describeRule(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "email":
		return "must be a valid email address"
	}
	return "failed " + fe.Tag()
}

func messageOr(msg, fallback string) string {
	if msg != "" {
		return msg
	}
	return fallback
}

// FormatError returns a user-friendly error message
func FormatError(err error) string {
	if err == nil {
		return ""
	}

	cliErr := CategorizeError(err)
	var sb strings.Builder

	sb.WriteString("❌ Error")
	if cliErr.Type != ErrorTypeUnknown {
		sb.WriteString(" (")
		sb.WriteString(string(cliErr.Type))
		sb.WriteString(")")
	}
	sb.WriteString(": ")
	sb.WriteString(cliErr.Message)
	sb.WriteString("\n")

	if cliErr.HasSuggestion() {
		sb.WriteString("\n💡 Suggestion: ")
		sb.WriteString(cliErr.Suggestion)
		sb.WriteString("\n")
	}

	return sb.String()
}
