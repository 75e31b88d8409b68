package stylegen

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/platinummonkey/themeforge/pkg/bundle"
)

// Output styles understood by the compilers
const (
	OutputStyleExpanded   = "expanded"
	OutputStyleCompressed = "compressed"
)

// CompileOptions configures the external compiler. Equality is exact.
type CompileOptions struct {
	OutputStyle       string   `json:"output_style" yaml:"output_style"`
	SourceMap         bool     `json:"source_map" yaml:"source_map"`
	SourceMapEmbed    bool     `json:"source_map_embed" yaml:"source_map_embed"`
	SourceMapContents bool     `json:"source_map_contents" yaml:"source_map_contents"`
	Precision         int      `json:"precision" yaml:"precision"`
	IncludePaths      []string `json:"include_paths,omitempty" yaml:"include_paths,omitempty"`
}

// DefaultCompileOptions returns the documented default configuration. Only
// this exact configuration is eligible for precompiled stylesheets.
func DefaultCompileOptions() CompileOptions {
	return CompileOptions{
		OutputStyle: OutputStyleCompressed,
	}
}

// Equal reports field-by-field equality
func (o CompileOptions) Equal(other CompileOptions) bool {
	return o.OutputStyle == other.OutputStyle &&
		o.SourceMap == other.SourceMap &&
		o.SourceMapEmbed == other.SourceMapEmbed &&
		o.SourceMapContents == other.SourceMapContents &&
		o.Precision == other.Precision &&
		slices.Equal(o.IncludePaths, other.IncludePaths)
}

// IsDefault reports whether the options equal DefaultCompileOptions
func (o CompileOptions) IsDefault() bool {
	return o.Equal(DefaultCompileOptions())
}

// Map flattens the options for hashing. Include paths keep their order.
func (o CompileOptions) Map() map[string]string {
	return map[string]string{
		"output_style":        o.OutputStyle,
		"source_map":          strconv.FormatBool(o.SourceMap),
		"source_map_embed":    strconv.FormatBool(o.SourceMapEmbed),
		"source_map_contents": strconv.FormatBool(o.SourceMapContents),
		"precision":           strconv.Itoa(o.Precision),
		"include_paths":       strings.Join(o.IncludePaths, "\x00"),
	}
}

// Flags are the process-wide switches read at compile time
type Flags struct {
	DevMode bool

	// ContrastWarnings overrides the color contrast diagnostics. When nil the
	// diagnostics follow DevMode.
	ContrastWarnings *bool
}

// EffectiveContrastWarnings resolves the diagnostics toggle
func (f Flags) EffectiveContrastWarnings() bool {
	if f.ContrastWarnings != nil {
		return *f.ContrastWarnings
	}
	return f.DevMode
}

// CacheKey identifies a compiled artifact
type CacheKey struct {
	CompilerID  string
	ThemeHash   string
	OptionsHash string
	Tags        []string
}

// String returns the cache key as a string.
//
// Format: {compilerID}:{themeHash}:{optionsHash}[:{tag1},{tag2}...]
func (k *CacheKey) String() string {
	parts := []string{k.CompilerID, k.ThemeHash, k.OptionsHash}
	if len(k.Tags) > 0 {
		parts = append(parts, strings.Join(k.Tags, ","))
	}
	return strings.Join(parts, ":")
}

// Digest returns a filesystem-safe hash of the key
func (k *CacheKey) Digest() string {
	sum := sha256.Sum256([]byte(k.String()))
	return hex.EncodeToString(sum[:])
}

// File is an entry of an artifact directory
type File struct {
	Path string `json:"path"`
	Size int64  `json:"size"`
}

// FileContent is a file held in memory
type FileContent struct {
	Path    string `json:"path"`
	Content []byte `json:"content"`
}

// Build is the cacheable output of one compilation, moved between cache tiers
type Build struct {
	Key        string        `json:"key"`
	Stylesheet string        `json:"stylesheet"`
	Files      []FileContent `json:"files"`
	CreatedAt  time.Time     `json:"created_at"`
}

// Size returns the total content size
func (b *Build) Size() int64 {
	var n int64
	for _, f := range b.Files {
		n += int64(len(f.Content))
	}
	return n
}

// AssetCopyWarning records an auxiliary file that could not be placed next to
// the stylesheet. The artifact is still usable.
type AssetCopyWarning struct {
	File string `json:"file"`
	Err  string `json:"error"`
}

func (w AssetCopyWarning) String() string {
	return fmt.Sprintf("failed to copy %s: %s", w.File, w.Err)
}

// Artifact is a compiled or staged stylesheet with its auxiliary files
type Artifact struct {
	Key          string              `json:"key"`
	Dir          string              `json:"dir"`
	Stylesheet   string              `json:"stylesheet"`
	Script       string              `json:"script,omitempty"`
	Files        []File              `json:"files"`
	Dependencies []bundle.Dependency `json:"dependencies,omitempty"`
	Precompiled  bool                `json:"precompiled"`
	CacheHit     bool                `json:"cache_hit"`
	Warnings     []AssetCopyWarning  `json:"warnings,omitempty"`
}

// StylesheetPath returns the absolute path of the stylesheet
func (a *Artifact) StylesheetPath() string {
	return filepath.Join(a.Dir, a.Stylesheet)
}

// Dependency describes the artifact as a dependency record. Every file other
// than the stylesheet and script is listed as auxiliary.
func (a *Artifact) Dependency(name, version string) bundle.Dependency {
	dep := bundle.Dependency{
		Name:       name,
		Version:    version,
		BaseDir:    a.Dir,
		Stylesheet: filepath.ToSlash(a.Stylesheet),
		Script:     filepath.ToSlash(a.Script),
	}
	for _, f := range a.Files {
		if f.Path == a.Stylesheet || f.Path == a.Script {
			continue
		}
		dep.AuxFiles = append(dep.AuxFiles, filepath.ToSlash(f.Path))
	}
	return dep
}
