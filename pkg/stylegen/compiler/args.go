package compiler

import (
	"github.com/platinummonkey/themeforge/pkg/stylegen"
)

// sassArgs builds the dart-sass command line. loadPaths, entry and output are
// paths as seen by the process that runs sass.
//
// Precision is part of CompileOptions for cache identity only: dart-sass has
// no precision flag and always emits ten digits.
func sassArgs(opts stylegen.CompileOptions, loadPaths []string, entry, output string) []string {
	args := make([]string, 0, 8+len(loadPaths))

	style := opts.OutputStyle
	if style == "" {
		style = stylegen.OutputStyleCompressed
	}
	args = append(args, "--style="+style)

	if opts.SourceMap || opts.SourceMapEmbed || opts.SourceMapContents {
		args = append(args, "--source-map")
		if opts.SourceMapEmbed {
			args = append(args, "--embed-source-map")
		}
		if opts.SourceMapContents {
			args = append(args, "--embed-sources")
		}
	} else {
		args = append(args, "--no-source-map")
	}

	for _, p := range loadPaths {
		args = append(args, "--load-path="+p)
	}
	for _, p := range opts.IncludePaths {
		args = append(args, "--load-path="+p)
	}

	args = append(args, "--no-error-css", entry, output)
	return args
}
