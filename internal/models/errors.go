// ABOUTME: User-facing error type shared by every layer.
// ABOUTME: UserMessage renders any error as something safe to show a person.
package models

import "errors"

// GenericUserMessage is shown for errors without a user-facing message.
const GenericUserMessage = "Something went wrong. Please try again."

// UserError wraps an error with a message intended for end users.
type UserError struct {
	Message string
	Err     error
}

// NewUserError creates a UserError with no underlying cause.
func NewUserError(message string) *UserError {
	return &UserError{Message: message}
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// UserMessage returns the first user-facing message in err's chain.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var ue *UserError
	if errors.As(err, &ue) {
		return ue.Message
	}
	return GenericUserMessage
}
