// Package engine ties the theme resolver, precompiled locator, compilation
// pipeline and bundle assembler together into the operations callers use:
// dependencies for a theme, a component stylesheet compiled against a theme,
// and bulk warm-up.
package engine

import (
	"context"
	"fmt"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/themeforge/pkg/bundle"
	"github.com/platinummonkey/themeforge/pkg/deferred"
	"github.com/platinummonkey/themeforge/pkg/observability"
	"github.com/platinummonkey/themeforge/pkg/stylegen"
	"github.com/platinummonkey/themeforge/pkg/stylegen/config"
	"github.com/platinummonkey/themeforge/pkg/stylegen/pipeline"
	"github.com/platinummonkey/themeforge/pkg/stylegen/precompiled"
	"github.com/platinummonkey/themeforge/pkg/theme"
)

// ThemeDependencyName names the primary record of every theme
const ThemeDependencyName = "bootstrap"

// ThemeProducerName identifies Engine.Producer in memo tables and sessions
const ThemeProducerName = "themeforge/theme-dependencies"

// Libraries lists the fixed runtime library records appended after a theme's
// own records, per framework version
type Libraries map[string][]bundle.Dependency

// DefaultLibraries ships jQuery for the versions whose runtime needs it.
// Files are expected under {root}/jquery/.
func DefaultLibraries(root string) Libraries {
	jquery := bundle.Dependency{
		Name:    "jquery",
		Version: "3.6.0",
		BaseDir: filepath.Join(root, "jquery"),
		Script:  "jquery.min.js",
	}
	return Libraries{
		"3": {jquery},
		"4": {jquery},
	}
}

// Config wires an Engine
type Config struct {
	// Pipeline is required
	Pipeline *pipeline.Pipeline

	// Locator serves prebuilt stylesheets; nil always compiles
	Locator *precompiled.Locator

	// Flags are the process-wide devmode and diagnostics switches
	Flags stylegen.Flags

	// Tags are folded into every cache key, e.g. the host library version
	Tags []string

	Libraries Libraries

	// MaxParallelBuilds bounds Warm; <= 0 uses the default
	MaxParallelBuilds int

	Logger  *observability.Logger
	Metrics *observability.Metrics
}

// Engine resolves themes to dependency records
type Engine struct {
	pipeline    *pipeline.Pipeline
	locator     *precompiled.Locator
	flags       stylegen.Flags
	tags        []string
	libraries   Libraries
	parallelism int
	logger      *observability.Logger
	metrics     *observability.Metrics
}

// New creates an engine
func New(cfg Config) (*Engine, error) {
	if cfg.Pipeline == nil {
		return nil, fmt.Errorf("engine: pipeline is required")
	}
	parallelism := cfg.MaxParallelBuilds
	if parallelism <= 0 {
		parallelism = config.DefaultMaxParallelBuilds
	}
	return &Engine{
		pipeline:    cfg.Pipeline,
		locator:     cfg.Locator,
		flags:       cfg.Flags,
		tags:        append([]string(nil), cfg.Tags...),
		libraries:   cfg.Libraries,
		parallelism: parallelism,
		logger:      observability.OrDefault(cfg.Logger),
		metrics:     cfg.Metrics,
	}, nil
}

// Flags returns the process-wide flags
func (e *Engine) Flags() stylegen.Flags {
	return e.flags
}

// Resolve normalises spec. Unknown presets are accepted with a warning.
func (e *Engine) Resolve(spec any) (*theme.Theme, error) {
	t, err := theme.Resolve(spec)
	if err != nil {
		return nil, err
	}
	if !t.PresetKnown() {
		e.logger.WithFields(map[string]interface{}{
			"preset":  t.Preset(),
			"version": t.Version(),
		}).Warn("unknown preset; the compiler will fail if its sources are missing")
	}
	return t, nil
}

// Artifact returns the compiled stylesheet for t, from the precompiled set
// when t and opts allow it
func (e *Engine) Artifact(ctx context.Context, t *theme.Theme, opts stylegen.CompileOptions) (*stylegen.Artifact, error) {
	if e.locator != nil && e.precompiledAllowed() {
		artifact, ok, err := e.locator.Locate(ctx, t, opts)
		if err != nil {
			// Staging failures are not fatal; the pipeline can still build it
			e.logger.WithError(err).WithField("theme", t.String()).
				Warn("precompiled lookup failed, compiling instead")
		} else if ok {
			return artifact, nil
		}
	}

	return e.pipeline.Compile(ctx, &pipeline.Request{
		Theme:   t,
		Options: opts,
		Tags:    e.tags,
		Flags:   e.flags,
	})
}

// precompiledAllowed reports whether the flags match the prebuilt stylesheets,
// which were compiled with diagnostics off
func (e *Engine) precompiledAllowed() bool {
	return !e.flags.DevMode && !e.flags.EffectiveContrastWarnings()
}

// ThemeDependencies returns the ordered, deduplicated dependency records for
// a theme: the compiled stylesheet first, then records declared by the
// theme's layers, then the version's runtime libraries.
func (e *Engine) ThemeDependencies(ctx context.Context, spec any, opts stylegen.CompileOptions) (deps []bundle.Dependency, err error) {
	t, err := e.Resolve(spec)
	if err != nil {
		return nil, err
	}

	ctx, span := observability.StartSpan(ctx, "engine.theme_dependencies",
		observability.AttrTheme.String(t.String()))
	defer func() { observability.EndSpan(span, err) }()

	artifact, err := e.Artifact(ctx, t, opts)
	if err != nil {
		return nil, err
	}

	primary := artifact.Dependency(ThemeDependencyName, t.Version())
	primary.Meta = map[string]string{"theme": t.String()}
	span.SetAttributes(observability.AttrPrecompiled.Bool(artifact.Precompiled))
	if artifact.Precompiled {
		primary.Meta["precompiled"] = "true"
	}

	return bundle.Assemble([]bundle.Dependency{primary}, artifact.Dependencies, e.libraries[t.Version()]), nil
}

// ComponentDependency compiles a component's rules against t and returns its
// record. extra may add a script, auxiliary files or metadata; a stylesheet
// in extra is rejected because it comes from the compiled output.
func (e *Engine) ComponentDependency(ctx context.Context, t *theme.Theme, c pipeline.Component, extra bundle.Extra) (bundle.Dependency, error) {
	if extra.Stylesheet != "" {
		return bundle.Dependency{}, fmt.Errorf("%w: stylesheet is derived from the compiled artifact", bundle.ErrConflictingField)
	}
	if t == nil {
		t = theme.Default()
	}

	artifact, err := e.pipeline.Compile(ctx, &pipeline.Request{
		Theme:     t,
		Options:   stylegen.DefaultCompileOptions(),
		Tags:      e.tags,
		Flags:     e.flags,
		Component: &c,
	})
	if err != nil {
		return bundle.Dependency{}, err
	}
	return bundle.ThemedDependency(c.Name, c.Version, artifact.Dir, artifact.Stylesheet, extra)
}

// Warm builds or stages the artifacts for every spec, at most
// MaxParallelBuilds at a time. Results are in spec order.
func (e *Engine) Warm(ctx context.Context, specs []any, opts stylegen.CompileOptions) ([]*stylegen.Artifact, error) {
	themes := make([]*theme.Theme, len(specs))
	for i, spec := range specs {
		t, err := e.Resolve(spec)
		if err != nil {
			return nil, fmt.Errorf("theme %d: %w", i, err)
		}
		themes[i] = t
	}

	results := make([]*stylegen.Artifact, len(themes))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.parallelism)
	for i, t := range themes {
		i, t := i, t
		g.Go(func() error {
			artifact, err := e.Artifact(gctx, t, opts)
			if err != nil {
				return fmt.Errorf("warming %s: %w", t, err)
			}
			results[i] = artifact
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	e.logger.WithField("themes", len(themes)).Info("warmed artifacts")
	return results, nil
}

// Producer returns a deferred producer rendering this engine's theme
// dependencies with the default compile options
func (e *Engine) Producer(opts ...deferred.Option) (*deferred.Producer, error) {
	return deferred.NewNamed(ThemeProducerName, e.themeDependencies, opts...)
}

func (e *Engine) themeDependencies(ctx context.Context, t *theme.Theme) ([]bundle.Dependency, error) {
	return e.ThemeDependencies(ctx, t, stylegen.DefaultCompileOptions())
}
