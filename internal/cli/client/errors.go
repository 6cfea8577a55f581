package client

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnauthenticated means the server did not accept our session (HTTP 401)
	ErrUnauthenticated = errors.New("not authenticated")
	// ErrForbidden means the session is valid but lacks the privilege (HTTP 403)
	ErrForbidden = errors.New("access denied")
)

// APIError is returned for any non-success response
type APIError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s failed (status %d)", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s failed (status %d): %s", e.Op, e.StatusCode, e.Message)
}

// Is maps auth status codes onto the sentinel errors
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthenticated:
		return e.StatusCode == http.StatusUnauthorized
	case ErrForbidden:
		return e.StatusCode == http.StatusForbidden
	}
	return false
}
