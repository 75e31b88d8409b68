package cache

import (
	"strings"
	"testing"

	"github.com/platinummonkey/themeforge/pkg/stylegen"
	"github.com/platinummonkey/themeforge/pkg/theme"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustResolve(t *testing.T, spec any) *theme.Theme {
	t.Helper()
	th, err := theme.Resolve(spec)
	require.NoError(t, err)
	return th
}

func TestGenerateCacheKey_Deterministic(t *testing.T) {
	opts := stylegen.DefaultCompileOptions()

	a := GenerateCacheKey(mustResolve(t, "flatly@4"), opts, "exec-sass-1.77.8", "mylib-1.0")
	b := GenerateCacheKey(mustResolve(t, "flatly@4"), opts, "exec-sass-1.77.8", "mylib-1.0")

	assert.Equal(t, a.String(), b.String())
	assert.Equal(t, a.Digest(), b.Digest())
}

func TestGenerateCacheKey_SemanticEquality(t *testing.T) {
	opts := stylegen.DefaultCompileOptions()
	primary := theme.Var{Name: "primary", Value: "#123456"}

	fromVersion := mustResolve(t, 5).WithPreset("Flatly").AddDefaults(primary)
	fromString := mustResolve(t, "flatly@5").AddDefaults(primary)
	withEmptyLayer := mustResolve(t, "flatly").AddLayer(theme.Layer{}).AddDefaults(primary)

	want := GenerateCacheKey(fromVersion, opts, "c").String()
	assert.Equal(t, want, GenerateCacheKey(fromString, opts, "c").String())
	assert.Equal(t, want, GenerateCacheKey(withEmptyLayer, opts, "c").String())
}

func TestGenerateCacheKey_Differences(t *testing.T) {
	base := mustResolve(t, 5)
	opts := stylegen.DefaultCompileOptions()
	ref := GenerateCacheKey(base, opts, "c1", "a", "b").String()

	expanded := opts
	expanded.OutputStyle = stylegen.OutputStyleExpanded

	tests := []struct {
		name string
		key  *stylegen.CacheKey
	}{
		{"different compiler", GenerateCacheKey(base, opts, "c2", "a", "b")},
		{"tag order", GenerateCacheKey(base, opts, "c1", "b", "a")},
		{"fewer tags", GenerateCacheKey(base, opts, "c1", "a")},
		{"options", GenerateCacheKey(base, expanded, "c1", "a", "b")},
		{"theme content", GenerateCacheKey(base.AddRules(".x{}"), opts, "c1", "a", "b")},
		{"version", GenerateCacheKey(mustResolve(t, 4), opts, "c1", "a", "b")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotEqual(t, ref, tt.key.String())
		})
	}
}

func TestGenerateCacheKey_Format(t *testing.T) {
	th := mustResolve(t, nil)
	key := GenerateCacheKey(th, stylegen.DefaultCompileOptions(), "exec-sass", "", "devmode")

	parts := strings.Split(FormatCacheKey(key), ":")
	require.Len(t, parts, 4)
	assert.Equal(t, "exec-sass", parts[0])
	assert.Equal(t, th.ContentHash(), parts[1])
	assert.Len(t, parts[2], 16)
	assert.Equal(t, "devmode", parts[3])

	noTags := GenerateCacheKey(th, stylegen.DefaultCompileOptions(), "exec-sass")
	assert.Len(t, strings.Split(noTags.String(), ":"), 3)
}

func TestHashOptions_OrderIndependent(t *testing.T) {
	a := hashOptions(map[string]string{"a": "1", "b": "2"})
	b := hashOptions(map[string]string{"b": "2", "a": "1"})
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, hashOptions(map[string]string{"a": "2", "b": "1"}))
}

func TestValidateCacheKey(t *testing.T) {
	valid := GenerateCacheKey(mustResolve(t, nil), stylegen.DefaultCompileOptions(), "exec-sass", "v1")
	assert.NoError(t, ValidateCacheKey(valid))

	tests := []struct {
		name string
		key  *stylegen.CacheKey
	}{
		{"nil", nil},
		{"no compiler", &stylegen.CacheKey{ThemeHash: "t", OptionsHash: "o"}},
		{"no theme", &stylegen.CacheKey{CompilerID: "c", OptionsHash: "o"}},
		{"no options", &stylegen.CacheKey{CompilerID: "c", ThemeHash: "t"}},
		{"separator in tag", &stylegen.CacheKey{CompilerID: "c", ThemeHash: "t", OptionsHash: "o", Tags: []string{"a:b"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, ValidateCacheKey(tt.key), ErrInvalidCacheKey)
		})
	}
}
