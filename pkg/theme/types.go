package theme

import (
	"strings"

	"github.com/platinummonkey/themeforge/pkg/bundle"
)

// Var is a single variable assignment
type Var struct {
	Name  string `yaml:"name" json:"name"`
	Value string `yaml:"value" json:"value"`
}

// Attachment is a file that travels with the compiled stylesheet. Name is the
// destination path relative to the artifact directory; Path is the source.
type Attachment struct {
	Name string `yaml:"name" json:"name"`
	Path string `yaml:"path" json:"path"`
}

// Layer is an overlay of variables, rules and files applied on top of the
// framework. A Layer on its own is not a theme.
type Layer struct {
	Name         string              `yaml:"name,omitempty" json:"name,omitempty"`
	Functions    []string            `yaml:"functions,omitempty" json:"functions,omitempty"`
	Defaults     []Var               `yaml:"defaults,omitempty" json:"defaults,omitempty"`
	Mixins       []string            `yaml:"mixins,omitempty" json:"mixins,omitempty"`
	Rules        []string            `yaml:"rules,omitempty" json:"rules,omitempty"`
	Attachments  []Attachment        `yaml:"attachments,omitempty" json:"attachments,omitempty"`
	Dependencies []bundle.Dependency `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`
}

// Empty reports whether the layer contributes nothing
func (l Layer) Empty() bool {
	return len(l.Functions) == 0 && len(l.Defaults) == 0 && len(l.Mixins) == 0 &&
		len(l.Rules) == 0 && len(l.Attachments) == 0 && len(l.Dependencies) == 0
}

// affectsStyle reports whether the layer changes compiled output
func (l Layer) affectsStyle() bool {
	return len(l.Functions) > 0 || len(l.Defaults) > 0 || len(l.Mixins) > 0 || len(l.Rules) > 0
}

func (l Layer) clone() Layer {
	out := Layer{Name: l.Name}
	out.Functions = append([]string(nil), l.Functions...)
	out.Defaults = append([]Var(nil), l.Defaults...)
	out.Mixins = append([]string(nil), l.Mixins...)
	out.Rules = append([]string(nil), l.Rules...)
	out.Attachments = append([]Attachment(nil), l.Attachments...)
	if len(l.Dependencies) > 0 {
		out.Dependencies = make([]bundle.Dependency, len(l.Dependencies))
		for i, dep := range l.Dependencies {
			out.Dependencies[i] = dep.Clone()
		}
	}
	return out
}

// Theme is a fully specified theme: a framework version, an optional preset
// and an ordered list of layers. Values are immutable; every builder method
// returns a new Theme.
type Theme struct {
	version string
	preset  string
	layers  []Layer
}

// New returns the untouched theme for a framework version
func New(version string) (*Theme, error) {
	if !IsKnownVersion(version) {
		return nil, errUnknownVersion(version)
	}
	return &Theme{version: version}, nil
}

// Default returns the untouched theme for the default version
func Default() *Theme {
	return &Theme{version: DefaultVersion}
}

// Version returns the framework version
func (t *Theme) Version() string {
	return t.version
}

// Preset returns the normalised preset name, empty when none
func (t *Theme) Preset() string {
	return t.preset
}

// Layers returns a copy of the theme's layers
func (t *Theme) Layers() []Layer {
	out := make([]Layer, len(t.layers))
	for i, l := range t.layers {
		out[i] = l.clone()
	}
	return out
}

// Attachments returns every file attachment declared by the layers, in order
func (t *Theme) Attachments() []Attachment {
	var out []Attachment
	for _, l := range t.layers {
		out = append(out, l.Attachments...)
	}
	return out
}

// Dependencies returns every nested bundle declared by the layers, in order
func (t *Theme) Dependencies() []bundle.Dependency {
	var out []bundle.Dependency
	for _, l := range t.layers {
		for _, dep := range l.Dependencies {
			out = append(out, dep.Clone())
		}
	}
	return out
}

// PresetKnown reports whether the preset is one of the bundled presets for
// the theme's version. Unknown presets are accepted by Resolve.
func (t *Theme) PresetKnown() bool {
	return t.preset == "" || IsKnownPreset(t.version, t.preset)
}

// IsUntouched reports whether the theme compiles to the same output as the
// plain framework for its version. Layers that only carry attachments or
// nested bundles do not change the compiled stylesheet.
func (t *Theme) IsUntouched() bool {
	if t.preset != "" {
		return false
	}
	for _, l := range t.layers {
		if l.affectsStyle() {
			return false
		}
	}
	return true
}

// WithPreset returns a copy of the theme using the named preset
func (t *Theme) WithPreset(name string) *Theme {
	out := t.copy()
	out.preset = normalizePreset(name)
	return out
}

// WithVersion returns a copy of the theme targeting another framework version
func (t *Theme) WithVersion(version string) (*Theme, error) {
	if !IsKnownVersion(version) {
		return nil, errUnknownVersion(version)
	}
	out := t.copy()
	out.version = version
	return out, nil
}

// AddLayer returns a copy of the theme with the layer appended. Empty layers
// are ignored.
func (t *Theme) AddLayer(layer Layer) *Theme {
	out := t.copy()
	if !layer.Empty() {
		out.layers = append(out.layers, layer.clone())
	}
	return out
}

// AddDefaults returns a copy of the theme with variable defaults added. Later
// additions take precedence over earlier ones and over the framework's own.
func (t *Theme) AddDefaults(vars ...Var) *Theme {
	return t.AddLayer(Layer{Defaults: vars})
}

// AddRules returns a copy of the theme with rules appended after the framework
func (t *Theme) AddRules(rules ...string) *Theme {
	return t.AddLayer(Layer{Rules: rules})
}

// AddMixins returns a copy of the theme with mixins declared after the
// framework variables
func (t *Theme) AddMixins(mixins ...string) *Theme {
	return t.AddLayer(Layer{Mixins: mixins})
}

// AddFunctions returns a copy of the theme with functions declared before
// any variables
func (t *Theme) AddFunctions(functions ...string) *Theme {
	return t.AddLayer(Layer{Functions: functions})
}

// Equal reports semantic equality
func (t *Theme) Equal(other *Theme) bool {
	if t == nil || other == nil {
		return t == other
	}
	return t.ContentHash() == other.ContentHash()
}

// String renders the theme's identity for logs
func (t *Theme) String() string {
	var b strings.Builder
	if t.preset != "" {
		b.WriteString(t.preset)
		b.WriteString("@")
	}
	b.WriteString(t.version)
	if len(t.layers) > 0 {
		b.WriteString("+")
		b.WriteString(t.ContentHash()[:12])
	}
	return b.String()
}

func (t *Theme) copy() *Theme {
	out := &Theme{version: t.version, preset: t.preset}
	out.layers = make([]Layer, len(t.layers))
	for i, l := range t.layers {
		out.layers[i] = l.clone()
	}
	return out
}
