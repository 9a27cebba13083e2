package reference

import "fmt"

// ValidationError rejects a write before it reaches the database.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"error"`
}

func (e *ValidationError) Error() string {
	return e.Message
}

// WriteError wraps a failure reported by a database function. Its message
// is the remote detail, unchanged.
type WriteError struct {
	Op  string
	Err error
}

func (e *WriteError) Error() string {
	return e.Err.Error()
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// Detail is the message with the failing operation in front, for logs.
func (e *WriteError) Detail() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}
