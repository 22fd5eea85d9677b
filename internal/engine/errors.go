package engine

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidDecision = errors.New("invalid decision")
	ErrNotAccepted     = errors.New("participant has not accepted the invitation")
)

// ValidationError reports unusable command input. State is unchanged.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// PreconditionError reports a command that does not apply to the current
// state of the interaction. Callers should not retry it.
type PreconditionError struct {
	Reason string
}

func (e PreconditionError) Error() string {
	return e.Reason
}

func invalid(field, format string, args ...any) error {
	return ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}
