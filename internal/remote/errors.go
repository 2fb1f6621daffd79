// ABOUTME: Error values returned by backend implementations.
// ABOUTME: StatusError matches ErrStatus, and ErrNotFound for 404s.
package remote

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotFound is returned when a tracker, install or resource is missing.
	ErrNotFound = errors.New("not found")
	// ErrStatus matches every StatusError.
	ErrStatus = errors.New("unexpected status")
)

// StatusError is a non-2xx backend response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("status %d", e.Code)
	}
	return fmt.Sprintf("status %d: %s", e.Code, e.Body)
}

// Is lets errors.Is match ErrStatus, and ErrNotFound for 404s.
func (e *StatusError) Is(target error) bool {
	switch target {
	case ErrStatus:
		return true
	case ErrNotFound:
		return e.Code == http.StatusNotFound
	}
	return false
}

// Temporary reports whether the failure is on the server side.
func (e *StatusError) Temporary() bool {
	return e.Code >= http.StatusInternalServerError || e.Code == http.StatusTooManyRequests
}
