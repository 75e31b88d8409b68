package theme

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Format identifies a theme file encoding
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// File is the on-disk form of a theme
type File struct {
	Version any     `yaml:"version" json:"version"`
	Preset  string  `yaml:"preset" json:"preset"`
	Layers  []Layer `yaml:"layers" json:"layers"`
}

// FormatFromPath picks a format from the file extension
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json", ".jsonc":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// LoadFile reads and parses a theme file. Relative attachment paths are
// resolved against the file's directory.
func LoadFile(path string) (*Theme, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read theme file: %w", err)
	}

	f, err := decode(data, format)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	baseDir := filepath.Dir(path)
	for i := range f.Layers {
		for j, a := range f.Layers[i].Attachments {
			if a.Path != "" && !filepath.IsAbs(a.Path) {
				f.Layers[i].Attachments[j].Path = filepath.Join(baseDir, a.Path)
			}
		}
	}

	return f.Theme()
}

// Parse parses theme file content
func Parse(data []byte, format Format) (*Theme, error) {
	f, err := decode(data, format)
	if err != nil {
		return nil, err
	}
	return f.Theme()
}

func decode(data []byte, format Format) (*File, error) {
	var f File
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, err
		}
	case FormatJSON:
		if err := json.Unmarshal(jsonc.ToJSON(data), &f); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	return &f, nil
}

// Theme builds the canonical theme described by the file
func (f *File) Theme() (*Theme, error) {
	base, err := Resolve(f.Version)
	if err != nil {
		return nil, err
	}

	t := base
	if f.Preset != "" {
		t = t.WithPreset(f.Preset)
	}
	for _, l := range f.Layers {
		t = t.AddLayer(l)
	}
	return t, nil
}
