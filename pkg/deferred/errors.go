package deferred

import "errors"

var (
	// ErrProducerMustBeNamed is returned when a producer is an anonymous
	// function or a method value. Neither has a stable identity to memoize
	// and register under.
	ErrProducerMustBeNamed = errors.New("producer must be a named top-level function")

	// ErrNilProducer is returned for a nil producer function
	ErrNilProducer = errors.New("producer function is nil")

	// ErrSessionNotFound is returned by Registry lookups for unknown IDs
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionClosed is returned when updating a closed session
	ErrSessionClosed = errors.New("session closed")
)
