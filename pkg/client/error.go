package client

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	json "github.com/json-iterator/go"
)

// APIError is a non-2xx answer from the backend.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("[%d] %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("[%d] %s", e.StatusCode, e.Message)
}

// TransportError means no response was received at all.
type TransportError struct {
	Method string
	Path   string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// errorBody covers FastAPI's error shapes: {"detail": "..."} and the
// validation form {"detail": [{"loc": [...], "msg": "..."}]}.
type errorBody struct {
	Detail  interface{} `json:"detail"`
	Message string      `json:"message"`
}

// ParseError builds an APIError from a status code and response body.
func ParseError(statusCode int, body []byte) error {
	apiErr := &APIError{StatusCode: statusCode}

	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil {
		apiErr.Message = detailMessage(eb.Detail)
		if apiErr.Message == "" {
			apiErr.Message = eb.Message
		}
		return apiErr
	}

	apiErr.Message = strings.TrimSpace(string(body))
	return apiErr
}

func detailMessage(detail interface{}) string {
	switch d := detail.(type) {
	case string:
		return d
	case []interface{}:
		msgs := make([]string, 0, len(d))
		for _, item := range d {
			m, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			msg, _ := m["msg"].(string)
			if loc, ok := m["loc"].([]interface{}); ok && len(loc) > 0 {
				msg = fmt.Sprintf("%v: %s", loc[len(loc)-1], msg)
			}
			if msg != "" {
				msgs = append(msgs, msg)
			}
		}
		return strings.Join(msgs, "; ")
	}
	return ""
}

// StatusCode returns the HTTP status of an APIError, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// IsUnauthorized checks if error is due to missing/invalid authentication
func IsUnauthorized(err error) bool {
	return StatusCode(err) == http.StatusUnauthorized
}

// IsForbidden checks if error is due to insufficient permissions
func IsForbidden(err error) bool {
	return StatusCode(err) == http.StatusForbidden
}

// IsNotFound checks if error is due to resource not found
func IsNotFound(err error) bool {
	return StatusCode(err) == http.StatusNotFound
}

// IsServerError checks if error is due to server error (5xx)
func IsServerError(err error) bool {
	return StatusCode(err) >= 500
}

// IsTransport checks if no response was received.
func IsTransport(err error) bool {
	var tErr *TransportError
	return errors.As(err, &tErr)
}
