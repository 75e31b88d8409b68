package compiler

import (
	"testing"

	"github.com/platinummonkey/themeforge/pkg/stylegen"
	"github.com/stretchr/testify/assert"
)

func TestSassArgs(t *testing.T) {
	tests := []struct {
		name     string
		opts     stylegen.CompileOptions
		expected []string
	}{
		{
			name: "defaults",
			opts: stylegen.DefaultCompileOptions(),
			expected: []string{
				"--style=compressed", "--no-source-map", "--load-path=/fw",
				"--no-error-css", "entry.scss", "out.css",
			},
		},
		{
			name: "empty style falls back to compressed",
			opts: stylegen.CompileOptions{},
			expected: []string{
				"--style=compressed", "--no-source-map", "--load-path=/fw",
				"--no-error-css", "entry.scss", "out.css",
			},
		},
		{
			name: "embedded source map with sources",
			opts: stylegen.CompileOptions{
				OutputStyle:       stylegen.OutputStyleExpanded,
				SourceMapEmbed:    true,
				SourceMapContents: true,
				IncludePaths:      []string{"/extra"},
			},
			expected: []string{
				"--style=expanded", "--source-map", "--embed-source-map", "--embed-sources",
				"--load-path=/fw", "--load-path=/extra",
				"--no-error-css", "entry.scss", "out.css",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, sassArgs(tt.opts, []string{"/fw"}, "entry.scss", "out.css"))
		})
	}
}

func TestMountPlan(t *testing.T) {
	binds, loadPaths := mountPlan("/tmp/in", "/tmp/out", []string{"/srv/bs5", "/srv/extra"})

	assert.Equal(t, []string{
		"/tmp/in:/input:ro",
		"/tmp/out:/output",
		"/srv/bs5:/load/0:ro",
		"/srv/extra:/load/1:ro",
	}, binds)
	assert.Equal(t, []string{"/load/0", "/load/1"}, loadPaths)
}

func TestSanitizeIdentity(t *testing.T) {
	assert.Equal(t, "1.77.8", sanitizeIdentity("1.77.8 compiled with dart2js 3.4.0"))
	assert.Equal(t, "a_b_c", sanitizeIdentity("a:b,c"))
}
