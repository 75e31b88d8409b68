package pipeline

import "errors"

var (
	// ErrInvalidRequest is returned for a request without a theme
	ErrInvalidRequest = errors.New("invalid compile request")

	// ErrMissingCompiler is returned by New when no compiler is configured
	ErrMissingCompiler = errors.New("compiler is required")

	// ErrMissingStore is returned by New when no artifact store is configured
	ErrMissingStore = errors.New("artifact store is required")
)
