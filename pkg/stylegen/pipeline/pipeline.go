// Package pipeline turns a theme into a compiled artifact on disk.
//
// Resolution order for a request:
//
//  1. the local artifact store, keyed by CacheKey
//  2. the remote build cache, when configured; a hit is materialised locally
//  3. the external compiler
//
// The diagnostics variable is injected into the theme before the key is
// computed, and the flags that decide its value are folded into the key as
// tags, so devmode and normal builds never share an entry.
//
// A component request compiles a fragment against the theme. Its output holds
// only the fragment's rules, and it never carries theme attachments or the
// runtime files; those travel with the theme's own artifact.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/platinummonkey/themeforge/pkg/observability"
	"github.com/platinummonkey/themeforge/pkg/stylegen"
	"github.com/platinummonkey/themeforge/pkg/stylegen/cache"
	"github.com/platinummonkey/themeforge/pkg/stylegen/compiler"
	"github.com/platinummonkey/themeforge/pkg/stylegen/config"
	"github.com/platinummonkey/themeforge/pkg/stylegen/store"
	"github.com/platinummonkey/themeforge/pkg/theme"
)

// Pipeline compiles themes through the store, remote cache and compiler
type Pipeline struct {
	compiler     compiler.Compiler
	store        *store.Store
	cache        cache.Cache
	frameworkDir string
	runtime      stylegen.Runtime
	logger       *observability.Logger
	metrics      *observability.Metrics
}

// New creates a pipeline
func New(cfg Config) (*Pipeline, error) {
	if cfg.Compiler == nil {
		return nil, ErrMissingCompiler
	}
	if cfg.Store == nil {
		return nil, ErrMissingStore
	}
	return &Pipeline{
		compiler:     cfg.Compiler,
		store:        cfg.Store,
		cache:        cfg.Cache,
		frameworkDir: cfg.FrameworkDir,
		runtime:      cfg.Runtime,
		logger:       observability.OrDefault(cfg.Logger),
		metrics:      cfg.Metrics,
	}, nil
}

// CompilerID returns the identity of the configured compiler
func (p *Pipeline) CompilerID() string {
	return p.compiler.Identity()
}

// Key returns the cache key Compile would use for req
func (p *Pipeline) Key(req *Request) (*stylegen.CacheKey, error) {
	if req == nil || req.Theme == nil {
		return nil, ErrInvalidRequest
	}
	if c := req.Component; c != nil && (c.Name == "" || c.Version == "") {
		return nil, fmt.Errorf("%w: component needs a name and a version", ErrInvalidRequest)
	}
	key := cache.GenerateCacheKey(prepare(req.Theme, req.Flags), req.Options, p.compiler.Identity(), keyTags(req)...)
	if err := cache.ValidateCacheKey(key); err != nil {
		return nil, err
	}
	return key, nil
}

// Compile returns the artifact for req, compiling only when neither the store
// nor the remote cache has it. A rejected input yields a *compiler.CompileError.
func (p *Pipeline) Compile(ctx context.Context, req *Request) (artifact *stylegen.Artifact, err error) {
	key, err := p.Key(req)
	if err != nil {
		return nil, err
	}
	keyStr := key.String()

	ctx, span := observability.StartSpan(ctx, "pipeline.compile",
		observability.AttrTheme.String(req.Theme.String()),
		observability.AttrCacheKey.String(keyStr),
	)
	defer func() { observability.EndSpan(span, err) }()

	logger := observability.FromContextOr(ctx, p.logger).WithField("artifact_key", keyStr)

	artifact, ok, err := p.store.Lookup(key)
	if err != nil {
		return nil, err
	}
	if ok {
		p.metrics.RecordCacheHit(observability.TierStore)
		span.SetAttributes(observability.AttrSource.String("store"))
		return finish(artifact, req, true), nil
	}
	p.metrics.RecordCacheMiss(observability.TierStore)

	if artifact, ok := p.fromCache(ctx, key, logger); ok {
		span.SetAttributes(observability.AttrSource.String("remote"))
		return finish(artifact, req, true), nil
	}

	span.SetAttributes(observability.AttrSource.String("compiler"))
	build, warnings, err := p.compile(ctx, key, req, logger)
	if err != nil {
		return nil, err
	}

	artifact, err = p.store.Put(key, build, scriptName(build), warnings)
	if err != nil {
		return nil, fmt.Errorf("storing artifact: %w", err)
	}

	if p.cache != nil {
		if err := p.cache.Set(ctx, key, build); err != nil {
			logger.WithError(err).Warn("failed to populate remote build cache")
		}
	}

	return finish(artifact, req, false), nil
}

// fromCache materialises a remote hit into the store
func (p *Pipeline) fromCache(ctx context.Context, key *stylegen.CacheKey, logger *observability.Logger) (*stylegen.Artifact, bool) {
	if p.cache == nil {
		return nil, false
	}

	build, err := p.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			logger.WithError(err).Warn("remote build cache lookup failed")
		}
		return nil, false
	}

	artifact, err := p.store.Put(key, build, scriptName(build), nil)
	if err != nil {
		logger.WithError(err).Warn("failed to materialise cached build, compiling instead")
		return nil, false
	}
	return artifact, true
}

func (p *Pipeline) compile(ctx context.Context, key *stylegen.CacheKey, req *Request, logger *observability.Logger) (*stylegen.Build, []stylegen.AssetCopyWarning, error) {
	t := prepare(req.Theme, req.Flags)

	var loadPaths []string
	if p.frameworkDir != "" {
		loadPaths = append(loadPaths, p.frameworkDir)
	}

	in := &compiler.Input{
		Source:     theme.Source(t),
		LoadPaths:  loadPaths,
		OutputName: config.DefaultStylesheetName,
		Options:    req.Options,
	}
	if c := req.Component; c != nil {
		in.Source = theme.PartialSource(t, c.Rules)
		in.OutputName = c.stylesheetName()
	}

	start := time.Now()
	out, err := p.compiler.Compile(ctx, in)
	p.metrics.RecordCompilation(p.compiler.Identity(), time.Since(start), errorType(err))
	if err != nil {
		logger.WithError(err).WithField("theme", req.Theme.String()).Error("compilation failed")
		return nil, nil, err
	}
	if out.Diagnostic != "" {
		logger.WithField("diagnostic", out.Diagnostic).Debug("compiler reported diagnostics")
	}

	build := out.Build(key.String())
	var warnings []stylegen.AssetCopyWarning
	if req.Component == nil {
		warnings = p.addAssets(build, req.Theme, logger)
		p.metrics.RecordAssetWarnings(len(warnings))
	}

	logger.WithFields(map[string]interface{}{
		"theme":    req.Theme.String(),
		"duration": out.Duration.String(),
		"files":    len(build.Files),
	}).Info("compiled theme")
	return build, warnings, nil
}

// addAssets reads the theme's attachments and the companion runtime files
// into build. Failures are collected as warnings; the stylesheet stays usable.
func (p *Pipeline) addAssets(build *stylegen.Build, t *theme.Theme, logger *observability.Logger) []stylegen.AssetCopyWarning {
	var warnings []stylegen.AssetCopyWarning
	warn := func(file string, err error) {
		warnings = append(warnings, stylegen.AssetCopyWarning{File: file, Err: err.Error()})
		logger.WithError(err).WithField("file", file).Warn("failed to copy asset next to stylesheet")
	}

	taken := make(map[string]bool, len(build.Files))
	for _, f := range build.Files {
		taken[f.Path] = true
	}
	add := func(name, src string) {
		rel, err := stylegen.CleanRelPath(name)
		if err != nil {
			warn(name, err)
			return
		}
		if taken[rel] {
			warn(name, fmt.Errorf("%s collides with a compiled file", rel))
			return
		}
		content, err := os.ReadFile(src)
		if err != nil {
			warn(name, err)
			return
		}
		taken[rel] = true
		build.Files = append(build.Files, stylegen.FileContent{Path: rel, Content: content})
	}

	for _, a := range t.Attachments() {
		add(a.Name, a.Path)
	}

	if p.runtime.Root == "" {
		return warnings
	}
	files, err := p.runtime.Files(t.Version())
	if err != nil {
		warn(p.runtime.Dir(t.Version()), err)
		return warnings
	}
	for _, f := range files {
		add(f, filepath.Join(p.runtime.Dir(t.Version()), f))
	}
	return warnings
}

// prepare injects the diagnostics variable. It is added as the latest layer
// so it overrides any earlier default.
func prepare(t *theme.Theme, flags stylegen.Flags) *theme.Theme {
	return t.AddDefaults(theme.Var{
		Name:  config.ContrastWarningsVariable,
		Value: strconv.FormatBool(flags.EffectiveContrastWarnings()),
	})
}

func keyTags(req *Request) []string {
	tags := append([]string(nil), req.Tags...)
	if req.Flags.DevMode {
		tags = append(tags, config.DevModeTag)
	}
	if req.Flags.EffectiveContrastWarnings() {
		tags = append(tags, config.ContrastWarningsTag)
	}
	if req.Component != nil {
		tags = append(tags, componentTag(req.Component))
	}
	return tags
}

// componentTag identifies the fragment in the key. Names and rules may hold
// characters keys reject, so only a hash goes in.
func componentTag(c *Component) string {
	h := sha256.New()
	for _, s := range append([]string{c.Name, c.Version}, c.Rules...) {
		h.Write([]byte(s))
		h.Write([]byte{0})
	}
	return "component-" + hex.EncodeToString(h.Sum(nil))[:16]
}

func scriptName(build *stylegen.Build) string {
	for _, f := range build.Files {
		if f.Path == stylegen.RuntimeScript {
			return f.Path
		}
	}
	return ""
}

func finish(artifact *stylegen.Artifact, req *Request, hit bool) *stylegen.Artifact {
	artifact.CacheHit = hit
	if req.Component == nil {
		artifact.Dependencies = req.Theme.Dependencies()
	}
	return artifact
}

func errorType(err error) string {
	var compileErr *compiler.CompileError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &compileErr):
		return "compile"
	case errors.Is(err, compiler.ErrTimeout):
		return "timeout"
	case errors.Is(err, compiler.ErrCompilerUnavailable):
		return "unavailable"
	case errors.Is(err, compiler.ErrNoOutput):
		return "no_output"
	default:
		return "internal"
	}
}
