package theme

import (
	"fmt"
	"strings"
)

// DefaultVersion is the framework version used when none is given
const DefaultVersion = "5"

var knownVersions = []string{"3", "4", "5"}

// presets bundled with every version
var commonPresets = []string{
	"cerulean", "cosmo", "cyborg", "darkly", "flatly", "journal", "lumen",
	"paper", "readable", "sandstone", "simplex", "slate", "spacelab",
	"superhero", "united", "yeti",
}

// presets introduced after version 3
var modernPresets = []string{
	"litera", "lux", "materia", "minty", "pulse", "sketchy", "solar",
}

// presets only available for version 5
var v5Presets = []string{"morph", "quartz", "shiny", "vapor", "zephyr"}

// KnownVersions returns the recognised version tokens
func KnownVersions() []string {
	return append([]string(nil), knownVersions...)
}

// IsKnownVersion reports whether v is a recognised version token
func IsKnownVersion(v string) bool {
	for _, known := range knownVersions {
		if v == known {
			return true
		}
	}
	return false
}

// Presets returns the bundled preset names for a version
func Presets(version string) []string {
	out := append([]string(nil), commonPresets...)
	switch version {
	case "4":
		out = append(out, modernPresets...)
	case "5":
		out = append(out, modernPresets...)
		out = append(out, v5Presets...)
	}
	return out
}

// IsKnownPreset reports whether name is bundled for the version
func IsKnownPreset(version, name string) bool {
	for _, p := range Presets(version) {
		if p == name {
			return true
		}
	}
	return false
}

func normalizePreset(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	switch name {
	case "default", "bootstrap":
		return ""
	}
	return name
}

func errUnknownVersion(v string) error {
	return fmt.Errorf("%w: %q (known: %s)", ErrUnknownVersion, v, strings.Join(knownVersions, ", "))
}
