package prescription

import (
	"errors"
	"fmt"
)

var (
	ErrNotOpen             = errors.New("editor is not open")
	ErrSubmitInFlight      = errors.New("a submit is already in progress")
	ErrIndexOutOfRange     = errors.New("line item index out of range")
	ErrOverwriteDeclined   = errors.New("overwrite of the existing prescription was declined")
	ErrInvalidDate         = errors.New("prescription date must be a calendar date (YYYY-MM-DD)")
	ErrSessionNotFound     = errors.New("draft session not found")
	ErrDraftForbidden      = errors.New("draft belongs to another user")
	ErrPrescriptionMissing = errors.New("prescription not found")
)

// ValidationError is a local check failure. Index is the 1-based line item
// the message refers to, or 0.
type ValidationError struct {
	Field   string `json:"field"`
	Index   int    `json:"index,omitempty"`
	Message string `json:"error"`
}

func (e *ValidationError) Error() string {
	return e.Message
}

// RemoteError wraps a failure reported by the data layer. Its message is
// the remote detail, unchanged.
type RemoteError struct {
	Op  string
	Err error
}

func (e *RemoteError) Error() string {
	return e.Err.Error()
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// Detail is the message with the failing operation in front, for logs.
func (e *RemoteError) Detail() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}
