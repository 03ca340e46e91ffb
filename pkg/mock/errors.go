package mock

import "fmt"

// ValidationError reports that a proposed mock or requirement violates a
// structural invariant. It maps to a 400-class status on the wire.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid mock definition: %s", e.Reason)
}

// Validationf builds a ValidationError from a format string.
func Validationf(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}
