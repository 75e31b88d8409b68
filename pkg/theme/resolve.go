// Package theme normalises theme specifications into a canonical Theme and
// derives content hashes that identify what a theme compiles to.
//
// Resolve accepts:
//
//	nil               the default theme
//	4, 5.0            the untouched theme for that version
//	"5"               the untouched theme for that version
//	"flatly@5"        preset flatly at version 5
//	"flatly"          preset flatly at the default version
//	*Theme, Theme     returned as is
//
// Any string that is not a known version and has no "@" is taken as a preset
// name. Unknown preset names are not rejected here; callers that want to warn
// about them can use Theme.PresetKnown.
package theme

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Resolve normalises a theme specification into a canonical *Theme
func Resolve(spec any) (*Theme, error) {
	switch v := spec.(type) {
	case nil:
		return Default(), nil
	case *Theme:
		if v == nil {
			return Default(), nil
		}
		return v, nil
	case Theme:
		return v.copy(), nil
	case Layer, *Layer, []Layer:
		return nil, ErrWrongThemeKind
	case string:
		return resolveString(v)
	case int:
		return resolveVersion(strconv.Itoa(v))
	case int32:
		return resolveVersion(strconv.FormatInt(int64(v), 10))
	case int64:
		return resolveVersion(strconv.FormatInt(v, 10))
	case uint:
		return resolveVersion(strconv.FormatUint(uint64(v), 10))
	case float32:
		return resolveFloat(float64(v))
	case float64:
		return resolveFloat(v)
	default:
		return nil, fmt.Errorf("%w: got %T", ErrInvalidThemeSpec, spec)
	}
}

func resolveString(s string) (*Theme, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Default(), nil
	}

	switch strings.Count(s, "@") {
	case 0:
		if IsKnownVersion(s) {
			return &Theme{version: s}, nil
		}
		// TODO: consider rejecting names missing from Presets once callers
		// have had a release with the unknown-preset warning.
		return &Theme{version: DefaultVersion, preset: normalizePreset(s)}, nil
	case 1:
		preset, version, _ := strings.Cut(s, "@")
		preset = strings.TrimSpace(preset)
		version = strings.TrimSpace(version)
		if preset == "" || version == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidThemeSpec, s)
		}
		if !IsKnownVersion(version) {
			return nil, fmt.Errorf("%w: %q: %v", ErrInvalidThemeSpec, s, errUnknownVersion(version))
		}
		return &Theme{version: version, preset: normalizePreset(preset)}, nil
	default:
		return nil, fmt.Errorf("%w: %q contains more than one '@'", ErrInvalidThemeSpec, s)
	}
}

func resolveFloat(f float64) (*Theme, error) {
	if f != math.Trunc(f) || math.IsInf(f, 0) || math.IsNaN(f) {
		return nil, fmt.Errorf("%w: version %v is not a whole number", ErrInvalidThemeSpec, f)
	}
	return resolveVersion(strconv.FormatInt(int64(f), 10))
}

func resolveVersion(v string) (*Theme, error) {
	if !IsKnownVersion(v) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidThemeSpec, errUnknownVersion(v))
	}
	return &Theme{version: v}, nil
}
