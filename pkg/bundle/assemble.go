// Package bundle merges compiled artifacts and the dependency records declared
// by theme layers into the ordered sequence served to a rendering surface.
//
// Deduplication is keyed on (name, version). The first occurrence wins, so a
// record declared closer to the root of the tree shadows a transitive
// declaration of the same pair.
package bundle

import (
	"fmt"
	"path/filepath"
)

// Assemble flattens the primary records followed by each nested group into one
// sequence, preserving order and dropping repeated (name, version) pairs.
func Assemble(primary []Dependency, nested ...[]Dependency) []Dependency {
	total := len(primary)
	for _, group := range nested {
		total += len(group)
	}

	seen := make(map[string]struct{}, total)
	result := make([]Dependency, 0, total)

	add := func(deps []Dependency) {
		for _, dep := range deps {
			key := dep.Key()
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			result = append(result, dep.Clone())
		}
	}

	add(primary)
	for _, group := range nested {
		add(group)
	}

	return result
}

// ThemedDependency builds the record for a component whose stylesheet was
// compiled against a theme. baseDir and stylesheet come from the artifact.
func ThemedDependency(name, version, baseDir, stylesheet string, extra Extra) (Dependency, error) {
	if extra.Stylesheet != "" {
		return Dependency{}, fmt.Errorf("%w: stylesheet is derived from the compiled artifact", ErrConflictingField)
	}

	dep := Dependency{
		Name:       name,
		Version:    version,
		BaseDir:    baseDir,
		Stylesheet: filepath.ToSlash(stylesheet),
		Script:     extra.Script,
		AuxFiles:   extra.AuxFiles,
		Meta:       extra.Meta,
	}

	if err := dep.Validate(); err != nil {
		return Dependency{}, err
	}
	return dep.Clone(), nil
}
