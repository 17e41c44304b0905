package tasks

import "errors"

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("task not found")
)

const (
	msgTitleRequired  = "Title is required"
	msgStatusRequired = "Status is required"
	msgInvalidStatus  = "Invalid status. Must be: to_do, process, or done"
	msgInvalidDueDate = "Invalid dueDate format. Use ISO 8601 format (YYYY-MM-DD or YYYY-MM-DDTHH:mm:ss)"
	msgNotFound       = "Task not found"
	msgInvalidJSON    = "Invalid JSON body"
	msgBodyTooLarge   = "Request body too large"
)

// InputError describes a rejected field. It matches ErrInvalidInput.
type InputError struct {
	Field   string
	Message string
}

func (e *InputError) Error() string { return e.Message }

func (e *InputError) Is(target error) bool { return target == ErrInvalidInput }

func invalid(field, msg string) error {
	return &InputError{Field: field, Message: msg}
}
