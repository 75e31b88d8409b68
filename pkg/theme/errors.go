package theme

import "errors"

var (
	// ErrInvalidThemeSpec is returned when a theme specification has an
	// unsupported shape. Accepted shapes: nil, a version number, a version
	// string, "preset", "preset@version", or a *Theme.
	ErrInvalidThemeSpec = errors.New("invalid theme specification: expected nil, a version number, \"version\", \"preset\", \"preset@version\" or a *Theme")

	// ErrWrongThemeKind is returned when a layer (a bundle of rules meant to
	// be added to a theme) is passed where a complete theme is expected
	ErrWrongThemeKind = errors.New("wrong theme kind: got a layer, add it to a theme with AddLayer instead of passing it as the theme")

	// ErrUnknownVersion is returned when a version token is not recognised
	ErrUnknownVersion = errors.New("unknown framework version")

	// ErrUnsupportedFormat is returned when a theme file has an unknown extension
	ErrUnsupportedFormat = errors.New("unsupported theme file format")
)
