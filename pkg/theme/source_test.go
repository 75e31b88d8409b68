package theme

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSource(t *testing.T) {
	th := Default().
		WithPreset("flatly").
		AddDefaults(Var{Name: "primary", Value: "blue"}).
		AddDefaults(Var{Name: "$primary", Value: "red"}).
		AddRules(".brand { color: $primary; }")

	src := string(Source(th))

	red := strings.Index(src, "$primary: red !default;")
	blue := strings.Index(src, "$primary: blue !default;")
	preset := strings.Index(src, `@import "presets/bs5/flatly/defaults";`)
	framework := strings.Index(src, `@import "bs5/defaults";`)
	rules := strings.Index(src, ".brand { color: $primary; }")

	assert.True(t, red >= 0 && blue >= 0)
	assert.Less(t, red, blue, "later defaults come first")
	assert.Less(t, blue, preset)
	assert.Less(t, preset, framework)
	assert.Less(t, framework, rules)
}

func TestSource_NoPreset(t *testing.T) {
	src := string(Source(mustNew(t, "4")))
	assert.Contains(t, src, `@import "bs4/rules";`)
	assert.NotContains(t, src, "presets/")
}

func TestPartialSource(t *testing.T) {
	th := Default().
		WithPreset("lux").
		AddDefaults(Var{Name: "primary", Value: "red"}).
		AddMixins("@mixin pill { border-radius: 50rem; }").
		AddRules(".theme-rule {}")

	src := string(PartialSource(th, []string{".widget { @include pill; color: $primary; }"}))

	assert.Contains(t, src, "$primary: red !default;")
	assert.Contains(t, src, `@import "presets/bs5/lux/defaults";`)
	assert.Contains(t, src, "@mixin pill")
	assert.Contains(t, src, ".widget {")
	assert.NotContains(t, src, `@import "bs5/rules";`)
	assert.NotContains(t, src, "presets/bs5/lux/rules")
	assert.NotContains(t, src, ".theme-rule")
}
