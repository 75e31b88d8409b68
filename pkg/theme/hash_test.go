package theme

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/platinummonkey/themeforge/pkg/bundle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContentHash_SemanticEquality(t *testing.T) {
	a, err := Resolve("flatly@5")
	require.NoError(t, err)
	b, err := Resolve("FLATLY")
	require.NoError(t, err)
	c := Default().WithPreset("flatly")

	assert.Equal(t, a.ContentHash(), b.ContentHash())
	assert.Equal(t, a.ContentHash(), c.ContentHash())
	assert.True(t, a.Equal(c))
}

func TestContentHash_EmptyLayersIgnored(t *testing.T) {
	base := Default()
	withEmpty := base.AddLayer(Layer{Name: "nothing"}).AddDefaults()
	assert.Equal(t, base.ContentHash(), withEmpty.ContentHash())
}

func TestContentHash_LayerNameIgnored(t *testing.T) {
	a := Default().AddLayer(Layer{Name: "one", Rules: []string{".a{}"}})
	b := Default().AddLayer(Layer{Name: "two", Rules: []string{".a{}"}})
	assert.Equal(t, a.ContentHash(), b.ContentHash())
}

func TestContentHash_LayerSplitting(t *testing.T) {
	tests := map[string][2]*Theme{
		"rules": {
			Default().AddRules(".a{}").AddRules(".b{}"),
			Default().AddRules(".a{}", ".b{}"),
		},
		"defaults": {
			Default().AddDefaults(Var{Name: "primary", Value: "red"}).AddDefaults(Var{Name: "secondary", Value: "blue"}),
			Default().AddDefaults(Var{Name: "secondary", Value: "blue"}, Var{Name: "primary", Value: "red"}),
		},
		"mixed layer": {
			Default().AddLayer(Layer{Mixins: []string{"@mixin x {}"}, Rules: []string{".a{}"}}),
			Default().AddMixins("@mixin x {}").AddRules(".a{}"),
		},
	}
	for name, pair := range tests {
		t.Run(name, func(t *testing.T) {
			require.Equal(t, string(Source(pair[0])), string(Source(pair[1])))
			assert.Equal(t, pair[0].ContentHash(), pair[1].ContentHash())
			assert.Equal(t, pair[0].StyleHash(), pair[1].StyleHash())
			assert.True(t, pair[0].Equal(pair[1]))
		})
	}
}

func TestContentHash_AttachmentEditedInPlace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.woff")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0644))
	th := Default().AddLayer(Layer{Attachments: []Attachment{{Name: "fonts/a.woff", Path: path}}})
	before := th.ContentHash()

	require.NoError(t, os.WriteFile(path, []byte("v2 longer"), 0644))
	later := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, later, later))

	assert.NotEqual(t, before, th.ContentHash())
	assert.Equal(t, Default().StyleHash(), th.StyleHash())
}

func TestContentHash_Differences(t *testing.T) {
	base := Default()
	variants := map[string]*Theme{
		"base":     base,
		"v4":       mustNew(t, "4"),
		"preset":   base.WithPreset("darkly"),
		"default":  base.AddDefaults(Var{Name: "primary", Value: "red"}),
		"rule":     base.AddRules(".a{color:red}"),
		"mixin":    base.AddMixins("@mixin x {}"),
		"function": base.AddFunctions("@function f() { @return 1; }"),
		"attach":   base.AddLayer(Layer{Attachments: []Attachment{{Name: "fonts/a.woff", Path: "/src/a.woff"}}}),
		"dep":      base.AddLayer(Layer{Dependencies: []bundle.Dependency{{Name: "x", Version: "1.0"}}}),
	}

	seen := make(map[string]string)
	for name, th := range variants {
		h := th.ContentHash()
		if other, ok := seen[h]; ok {
			t.Fatalf("%s and %s share a content hash", name, other)
		}
		seen[h] = name
	}
}

func TestContentHash_FieldBoundaries(t *testing.T) {
	a := Default().AddRules("ab", "c")
	b := Default().AddRules("a", "bc")
	assert.NotEqual(t, a.ContentHash(), b.ContentHash())
}

func TestContentHash_OrderMatters(t *testing.T) {
	a := Default().AddRules(".a{}").AddRules(".b{}")
	b := Default().AddRules(".b{}").AddRules(".a{}")
	assert.NotEqual(t, a.ContentHash(), b.ContentHash())
}

func TestStyleHash_IgnoresFiles(t *testing.T) {
	base := Default()
	withFiles := base.AddLayer(Layer{
		Attachments:  []Attachment{{Name: "a.woff", Path: "/src/a.woff"}},
		Dependencies: []bundle.Dependency{{Name: "x", Version: "1.0"}},
	})

	assert.Equal(t, base.StyleHash(), withFiles.StyleHash())
	assert.NotEqual(t, base.ContentHash(), withFiles.ContentHash())
	assert.True(t, withFiles.IsUntouched())
	assert.False(t, base.AddRules(".x{}").IsUntouched())
	assert.False(t, base.WithPreset("lux").IsUntouched())
}

func TestBuildersDoNotMutate(t *testing.T) {
	base := Default()
	before := base.ContentHash()

	_ = base.AddRules(".a{}")
	_ = base.WithPreset("lux")
	_, err := base.WithVersion("4")
	require.NoError(t, err)

	assert.Equal(t, before, base.ContentHash())
	assert.Empty(t, base.Layers())

	layers := base.AddRules(".a{}").Layers()
	layers[0].Rules[0] = "changed"
	assert.NotEqual(t, "changed", base.AddRules(".a{}").Layers()[0].Rules[0])
}

func mustNew(t *testing.T, version string) *Theme {
	t.Helper()
	th, err := New(version)
	require.NoError(t, err)
	return th
}
