package client

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors matched by *APIError. Use errors.Is() to check.
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrStore        = errors.New("database error")
	ErrUnavailable  = errors.New("service unavailable")
	ErrServer       = errors.New("server error")
)

// Client-side failures that never reached the API.
var (
	ErrRateLimited     = errors.New("sonicweb: rate limit wait failed")
	ErrNotAcknowledged = errors.New("sonicweb: request not acknowledged")
)

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("sonicweb: HTTP %d", e.Status)
	}
	return fmt.Sprintf("sonicweb: HTTP %d %s: %s", e.Status, e.Code, e.Message)
}

// Is maps the response status onto the package sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrInvalidInput:
		return e.Status == http.StatusBadRequest
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized
	case ErrForbidden:
		return e.Status == http.StatusForbidden
	case ErrStore:
		return e.Status == http.StatusUnprocessableEntity
	case ErrUnavailable:
		return e.Status == http.StatusServiceUnavailable
	case ErrServer:
		return e.Status >= http.StatusInternalServerError
	}
	return false
}
