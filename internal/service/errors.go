package service

import (
	"errors"
	"net/http"

	"github.com/sorengranfeldt/mre/internal/core"
)

// HTTPError represents an error with an associated HTTP status code.
// TODO(future): it is probably not optimal to tie service errors to HTTP layer. We should refactor this later. :)
type HTTPError struct {
	StatusCode int
	Wrapped    error
}

func (e HTTPError) Error() string {
	return e.Wrapped.Error()
}

func (e HTTPError) Unwrap() error {
	return e.Wrapped
}

func httpError(statusCode int, err error) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Wrapped:    err,
	}
}

// statusFor classifies an aborted processing pass.
func statusFor(err error) int {
	var (
		cfgErr  core.ConfigurationError
		convErr core.ConversionError
	)
	switch {
	case errors.Is(err, core.ErrNotInitialized):
		return http.StatusServiceUnavailable
	case errors.Is(err, core.ErrNotSupported):
		return http.StatusNotImplemented
	case errors.As(err, &cfgErr), errors.As(err, &convErr):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
