package bundle

// Dependency is a single record in the dependency sequence handed to a
// rendering surface. BaseDir is an absolute directory; Stylesheet, Script and
// AuxFiles are relative to it.
type Dependency struct {
	Name       string            `json:"name" yaml:"name"`
	Version    string            `json:"version" yaml:"version"`
	BaseDir    string            `json:"base_dir,omitempty" yaml:"base_dir,omitempty"`
	Stylesheet string            `json:"stylesheet,omitempty" yaml:"stylesheet,omitempty"`
	Script     string            `json:"script,omitempty" yaml:"script,omitempty"`
	AuxFiles   []string          `json:"aux_files,omitempty" yaml:"aux_files,omitempty"`
	Meta       map[string]string `json:"meta,omitempty" yaml:"meta,omitempty"`
}

// Key returns the deduplication key of the dependency
func (d Dependency) Key() string {
	return d.Name + "@" + d.Version
}

// Validate checks the fields every record must carry
func (d Dependency) Validate() error {
	if d.Name == "" {
		return ErrMissingName
	}
	if d.Version == "" {
		return ErrMissingVersion
	}
	return nil
}

// Clone returns a deep copy
func (d Dependency) Clone() Dependency {
	out := d
	if d.AuxFiles != nil {
		out.AuxFiles = append([]string(nil), d.AuxFiles...)
	}
	if d.Meta != nil {
		out.Meta = make(map[string]string, len(d.Meta))
		for k, v := range d.Meta {
			out.Meta[k] = v
		}
	}
	return out
}

// Extra holds caller supplied fields for ThemedDependency. Stylesheet is
// derived from the compiled artifact and may not be set here; Script is
// copied through as given.
type Extra struct {
	Stylesheet string
	Script     string
	AuxFiles   []string
	Meta       map[string]string
}
