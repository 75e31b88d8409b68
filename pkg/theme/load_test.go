package theme

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_YAML(t *testing.T) {
	data := []byte(`
version: 4
preset: minty
layers:
  - name: brand
    defaults:
      - name: primary
        value: "#123456"
    rules:
      - ".brand { color: $primary; }"
    dependencies:
      - name: brand-fonts
        version: "1.0.0"
`)
	th, err := Parse(data, FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, "4", th.Version())
	assert.Equal(t, "minty", th.Preset())
	require.Len(t, th.Layers(), 1)
	assert.Equal(t, "#123456", th.Layers()[0].Defaults[0].Value)
	require.Len(t, th.Dependencies(), 1)
	assert.Equal(t, "brand-fonts", th.Dependencies()[0].Name)
}

func TestParse_JSONC(t *testing.T) {
	data := []byte(`{
  // comments are allowed
  "version": "5",
  "layers": [
    {"rules": [".x { display: none; }"]},
  ],
}`)
	th, err := Parse(data, FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, "5", th.Version())
	assert.Len(t, th.Layers(), 1)
}

func TestParse_EquivalentToBuilders(t *testing.T) {
	fromFile, err := Parse([]byte("version: 5\npreset: lux\nlayers:\n  - rules: ['.a{}']\n"), FormatYAML)
	require.NoError(t, err)

	built := Default().WithPreset("lux").AddRules(".a{}")
	assert.Equal(t, built.ContentHash(), fromFile.ContentHash())
}

func TestParse_InvalidVersion(t *testing.T) {
	_, err := Parse([]byte("version: 12\n"), FormatYAML)
	assert.ErrorIs(t, err, ErrInvalidThemeSpec)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "theme.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
version: 5
layers:
  - attachments:
      - name: fonts/brand.woff2
        path: fonts/brand.woff2
`), 0644))

	th, err := LoadFile(path)
	require.NoError(t, err)
	attachments := th.Attachments()
	require.Len(t, attachments, 1)
	assert.Equal(t, filepath.Join(dir, "fonts/brand.woff2"), attachments[0].Path)
}

func TestLoadFile_UnsupportedFormat(t *testing.T) {
	_, err := LoadFile("theme.toml")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}
