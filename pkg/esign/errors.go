package esign

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNotFound is returned when a lookup by id or criteria matches nothing.
var ErrNotFound = errors.New("esign: resource not found")

// APIError carries a non-2xx response from the remote service.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("esign: %s %s: http %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// Is lets errors.Is(err, ErrNotFound) match a 404 response.
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}
