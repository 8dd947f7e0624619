package coordinator

import "fmt"

// ConflictError means a local precondition was violated: accepting while a
// task is already active, advancing with none, or re-entering an operation
// that is still in flight. It never reaches the network.
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string { return e.Reason }

// UnknownStatusError records that the backend returned a status string the
// mapper cannot classify. The task is retained with StatusUnknown so it stays
// visible for manual recovery; this error is only ever reported, not returned.
type UnknownStatusError struct {
	TaskID string
}

func (e *UnknownStatusError) Error() string {
	return fmt.Sprintf("task %s has an unrecognized status; keeping it visible for manual review", e.TaskID)
}
