package booking

import "fmt"

// The four expected, recoverable conditions of the engine. The routing layer
// maps them to 404/400/409/410; none of them is a server error. Anything else
// (storage outage, programming error) propagates unmodified.

// NotFoundError marks an unknown or inactive event type / booking context.
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found", e.Resource)
}

// ValidationError marks malformed input such as an unparseable timestamp.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ConflictError marks a slot race lost, either at the availability recheck
// or at the unique-constraint insert.
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string {
	return e.Reason
}

// GoneError marks an action token that is expired, unknown, or terminally
// consumed without a matching replay.
type GoneError struct {
	Reason string
}

func (e *GoneError) Error() string {
	return e.Reason
}
