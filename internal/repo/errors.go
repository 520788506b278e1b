package repo

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnexpectedShape reports an upstream response whose top-level JSON shape is not the one
// the endpoint documents.
var ErrUnexpectedShape = errors.New("unexpected upstream response shape")

// StatusError is returned for any non-2xx response from Instana.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("instana %s %s returned %s", e.Method, e.URL, e.Status)
	if body := strings.TrimSpace(e.Body); body != "" {
		msg += ": " + truncate(body, 256)
	}
	return msg
}

// HTTPStatus exposes the status code to retry predicates.
func (e *StatusError) HTTPStatus() int {
	return e.StatusCode
}

// StatusCode extracts the HTTP status from err, or 0 when err is not a StatusError.
func StatusCode(err error) int {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode
	}
	return 0
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
