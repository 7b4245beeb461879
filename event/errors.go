package event

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownEventType is returned when a map's "type" is missing, empty,
	// not a string, or not registered.
	ErrUnknownEventType = errors.New("unknown event type")

	// ErrSchemaValidation is the sentinel wrapped by every SchemaValidationError.
	ErrSchemaValidation = errors.New("schema validation failed")
)

// SchemaValidationError reports the first field of an event map that does not
// satisfy its variant's schema.
type SchemaValidationError struct {
	Type   Type
	Field  string
	Reason string
}

func (e *SchemaValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s: %s", ErrSchemaValidation, e.Type, e.Reason)
	}
	return fmt.Sprintf("%s: %s.%s: %s", ErrSchemaValidation, e.Type, e.Field, e.Reason)
}

// Unwrap allows errors.Is(err, ErrSchemaValidation).
func (e *SchemaValidationError) Unwrap() error { return ErrSchemaValidation }
