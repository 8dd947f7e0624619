package orderapi

import (
	"fmt"
	"net/http"
)

// StaleTaskError means the order service rejected an accept because the task
// was already taken by another driver or is no longer eligible. It is
// recoverable: the caller refreshes the pool and moves on.
type StaleTaskError struct {
	TaskID     string
	StatusCode int
}

func (e *StaleTaskError) Error() string {
	return fmt.Sprintf("task %s no longer available (status %d)", e.TaskID, e.StatusCode)
}

// TransportError wraps a network failure or an unexpected non-2xx response.
// Local state is left at its last known-good value when one of these surfaces.
type TransportError struct {
	Op         string
	StatusCode int // 0 when the request never completed
	Err        error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: unexpected status %d", e.Op, e.StatusCode)
}

func (e *TransportError) Unwrap() error { return e.Err }

// staleStatus reports whether an accept rejection means the task is gone
// rather than the call having failed outright.
func staleStatus(code int) bool {
	switch code {
	case http.StatusBadRequest, http.StatusNotFound, http.StatusConflict, http.StatusGone:
		return true
	}
	return false
}
