package bundle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssemble(t *testing.T) {
	t.Run("first occurrence wins", func(t *testing.T) {
		primary := []Dependency{
			{Name: "bootstrap", Version: "5.3.1", Stylesheet: "bootstrap.min.css"},
		}
		nestedA := []Dependency{
			{Name: "x", Version: "1.0", Stylesheet: "a.css"},
			{Name: "y", Version: "2.0"},
		}
		nestedB := []Dependency{
			{Name: "x", Version: "1.0", Stylesheet: "b.css"},
			{Name: "z", Version: "0.1"},
		}

		result := Assemble(primary, nestedA, nestedB)
		require.Len(t, result, 4)

		names := make([]string, 0, len(result))
		for _, dep := range result {
			names = append(names, dep.Name)
		}
		assert.Equal(t, []string{"bootstrap", "x", "y", "z"}, names)
		assert.Equal(t, "a.css", result[1].Stylesheet)
	})

	t.Run("same name different version kept", func(t *testing.T) {
		result := Assemble(nil,
			[]Dependency{{Name: "x", Version: "1.0"}},
			[]Dependency{{Name: "x", Version: "2.0"}},
		)
		assert.Len(t, result, 2)
	})

	t.Run("duplicates within primary", func(t *testing.T) {
		result := Assemble([]Dependency{
			{Name: "x", Version: "1.0"},
			{Name: "x", Version: "1.0"},
		})
		assert.Len(t, result, 1)
	})

	t.Run("empty input", func(t *testing.T) {
		result := Assemble(nil)
		assert.NotNil(t, result)
		assert.Empty(t, result)
	})

	t.Run("result does not alias input", func(t *testing.T) {
		primary := []Dependency{{Name: "x", Version: "1.0", AuxFiles: []string{"a.map"}}}
		result := Assemble(primary)
		result[0].AuxFiles[0] = "changed"
		assert.Equal(t, "a.map", primary[0].AuxFiles[0])
	})
}

func TestThemedDependency(t *testing.T) {
	t.Run("derives stylesheet", func(t *testing.T) {
		dep, err := ThemedDependency("widget", "1.2.0", "/tmp/out", "widget.min.css", Extra{
			Script: "widget.js",
			Meta:   map[string]string{"viewport": "width=device-width"},
		})
		require.NoError(t, err)
		assert.Equal(t, "widget.min.css", dep.Stylesheet)
		assert.Equal(t, "widget.js", dep.Script)
		assert.Equal(t, "/tmp/out", dep.BaseDir)
	})

	t.Run("explicit stylesheet conflicts", func(t *testing.T) {
		_, err := ThemedDependency("widget", "1.2.0", "/tmp/out", "widget.min.css", Extra{
			Stylesheet: "mine.css",
		})
		assert.ErrorIs(t, err, ErrConflictingField)
	})

	t.Run("missing version", func(t *testing.T) {
		_, err := ThemedDependency("widget", "", "/tmp/out", "widget.min.css", Extra{})
		assert.ErrorIs(t, err, ErrMissingVersion)
	})
}
