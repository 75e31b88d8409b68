package api

import (
	"github.com/platinummonkey/themeforge/pkg/bundle"
	"github.com/platinummonkey/themeforge/pkg/deferred"
)

// Dependency is a dependency record plus URLs for files served from the
// artifact store
type Dependency struct {
	bundle.Dependency
	Links *Links `json:"links,omitempty"`
}

// Links are the /assets URLs of a record's files
type Links struct {
	Stylesheet string   `json:"stylesheet,omitempty"`
	Script     string   `json:"script,omitempty"`
	AuxFiles   []string `json:"aux_files,omitempty"`
}

// DependenciesResponse is returned by the dependency endpoints
type DependenciesResponse struct {
	Theme        string       `json:"theme"`
	Dependencies []Dependency `json:"dependencies"`
}

// ThemeRequest selects a theme by spec ("flatly@5", "4", 4, "") or inline
// definition. Definition wins when both are set.
type ThemeRequest struct {
	Theme      any            `json:"theme,omitempty"`
	Definition map[string]any `json:"definition,omitempty"`
}

// SessionResponse describes a live session
type SessionResponse struct {
	ID        string   `json:"id"`
	Theme     string   `json:"theme"`
	Listeners []string `json:"listeners"`
}

// UpdatesResponse drains the re-run results of a session
type UpdatesResponse struct {
	Updates []deferred.Update `json:"updates"`
}
