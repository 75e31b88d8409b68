package bundle

import "errors"

var (
	// ErrMissingName is returned when a dependency has no name
	ErrMissingName = errors.New("dependency name is required")

	// ErrMissingVersion is returned when a dependency has no version
	ErrMissingVersion = errors.New("dependency version is required")

	// ErrConflictingField is returned when a caller supplies a field that is
	// derived automatically from the compiled artifact
	ErrConflictingField = errors.New("conflicting dependency field")
)
