// Package compiler runs the external dart-sass compiler, either as a local
// binary or inside a container. The compiler is a pure function of its input:
// the same entry source, framework sources and options always produce the
// same files.
package compiler

import (
	"context"
	"time"

	"github.com/platinummonkey/themeforge/pkg/stylegen"
	"github.com/platinummonkey/themeforge/pkg/stylegen/config"
)

// Compiler compiles a rendered theme entry into a stylesheet
type Compiler interface {
	// Identity names the compiler and its version. It is folded into every
	// cache key, so it must change whenever the output could change.
	Identity() string

	// Compile runs the compiler. Input the compiler rejects yields a *CompileError.
	Compile(ctx context.Context, in *Input) (*Output, error)
}

// Input is one compilation request
type Input struct {
	// Source is the entry file text, usually theme.Source(t)
	Source []byte

	// LoadPaths are directories searched by @import, e.g. the framework sources
	LoadPaths []string

	// OutputName is the stylesheet file name (default config.DefaultStylesheetName)
	OutputName string

	Options stylegen.CompileOptions
}

// Output is the result of a successful compilation
type Output struct {
	// Stylesheet is the path of the stylesheet within Files
	Stylesheet string

	// Files holds the stylesheet and any source map
	Files []stylegen.FileContent

	// Diagnostic holds warnings the compiler printed on success
	Diagnostic string

	Duration time.Duration
}

// Build converts the output into a cacheable build
func (o *Output) Build(key string) *stylegen.Build {
	files := make([]stylegen.FileContent, len(o.Files))
	copy(files, o.Files)
	return &stylegen.Build{
		Key:        key,
		Stylesheet: o.Stylesheet,
		Files:      files,
		CreatedAt:  time.Now().UTC(),
	}
}

func outputName(in *Input) string {
	if in.OutputName != "" {
		return in.OutputName
	}
	return config.DefaultStylesheetName
}
