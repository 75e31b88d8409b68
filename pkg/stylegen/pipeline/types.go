package pipeline

import (
	"github.com/platinummonkey/themeforge/pkg/observability"
	"github.com/platinummonkey/themeforge/pkg/stylegen"
	"github.com/platinummonkey/themeforge/pkg/stylegen/cache"
	"github.com/platinummonkey/themeforge/pkg/stylegen/compiler"
	"github.com/platinummonkey/themeforge/pkg/stylegen/store"
	"github.com/platinummonkey/themeforge/pkg/theme"
)

// Config wires a Pipeline to its collaborators
type Config struct {
	// Compiler is required
	Compiler compiler.Compiler

	// Store is the local artifact directory tree (required)
	Store *store.Store

	// Cache is the optional remote build cache consulted after the store misses
	Cache cache.Cache

	// FrameworkDir holds the framework and preset sources the entry imports
	FrameworkDir string

	// Runtime locates the companion files copied next to every stylesheet
	Runtime stylegen.Runtime

	Logger  *observability.Logger
	Metrics *observability.Metrics
}

// Request is one compilation request
type Request struct {
	Theme   *theme.Theme
	Options stylegen.CompileOptions

	// Tags are caller supplied cache key tags, e.g. a consuming library's
	// version. Order is part of the key.
	Tags []string

	Flags stylegen.Flags

	// Component, when set, compiles only the component's rules against the
	// theme instead of the whole framework
	Component *Component
}

// Component is a stylesheet fragment compiled against a theme
type Component struct {
	Name    string
	Version string
	Rules   []string
}

// stylesheetName is the output file name for the component
func (c *Component) stylesheetName() string {
	return c.Name + ".min.css"
}
