// Package precompiled serves the stylesheets shipped prebuilt with each
// framework version.
//
// Only the documented default compile options and a theme that leaves the
// framework's styling untouched qualify. Layers that merely attach files or
// nested bundles still qualify; their attachments are staged next to the
// prebuilt stylesheet.
package precompiled

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/platinummonkey/themeforge/pkg/observability"
	"github.com/platinummonkey/themeforge/pkg/stylegen"
	"github.com/platinummonkey/themeforge/pkg/stylegen/config"
	"github.com/platinummonkey/themeforge/pkg/stylegen/store"
	"github.com/platinummonkey/themeforge/pkg/theme"
	"github.com/zeebo/blake3"
)

// Lookup outcomes reported to metrics
const (
	OutcomeHit        = "hit"
	OutcomeMiss       = "miss"
	OutcomeIneligible = "ineligible"
)

// Table maps a framework version to its prebuilt stylesheet
type Table map[string]string

// DefaultTable expects {root}/bs{version}/bootstrap.min.css for every known version
func DefaultTable(root string) Table {
	table := make(Table)
	for _, v := range theme.KnownVersions() {
		table[v] = filepath.Join(root, "bs"+v, config.DefaultStylesheetName)
	}
	return table
}

// Locator stages prebuilt stylesheets into the artifact store
type Locator struct {
	table   Table
	runtime stylegen.Runtime
	store   *store.Store
	logger  *observability.Logger
	metrics *observability.Metrics

	mu           sync.Mutex
	scriptHashes map[string]string
}

// Option configures a Locator
type Option func(*Locator)

// WithLogger sets the logger
func WithLogger(logger *observability.Logger) Option {
	return func(l *Locator) { l.logger = logger }
}

// WithMetrics reports lookup outcomes
func WithMetrics(m *observability.Metrics) Option {
	return func(l *Locator) { l.metrics = m }
}

// NewLocator creates a locator over table
func NewLocator(table Table, runtime stylegen.Runtime, st *store.Store, opts ...Option) *Locator {
	l := &Locator{
		table:        table,
		runtime:      runtime,
		store:        st,
		scriptHashes: make(map[string]string),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = observability.OrDefault(l.logger)
	return l
}

// Eligible reports whether (t, opts) may use a prebuilt stylesheet at all
func Eligible(t *theme.Theme, opts stylegen.CompileOptions) bool {
	return opts.IsDefault() && t.IsUntouched()
}

// Locate returns the staged prebuilt artifact for t, or false when the
// combination is ineligible or nothing is shipped for the version. Misses
// are never errors.
func (l *Locator) Locate(ctx context.Context, t *theme.Theme, opts stylegen.CompileOptions) (*stylegen.Artifact, bool, error) {
	if !Eligible(t, opts) {
		l.metrics.RecordPrecompiled(OutcomeIneligible)
		return nil, false, nil
	}

	src, ok := l.table[t.Version()]
	if !ok {
		l.metrics.RecordPrecompiled(OutcomeMiss)
		return nil, false, nil
	}
	if _, err := os.Stat(src); err != nil {
		l.metrics.RecordPrecompiled(OutcomeMiss)
		return nil, false, nil
	}

	name, err := l.stagingName(t)
	if err != nil {
		l.logger.WithError(err).WithField("version", t.Version()).
			Warn("cannot name precompiled staging directory, falling back to compilation")
		l.metrics.RecordPrecompiled(OutcomeMiss)
		return nil, false, nil
	}

	dir := l.store.StagingDir(name)
	created, err := l.store.CreateDir(dir, func(tmp string) error {
		return l.stage(tmp, name, src, t)
	})
	if err != nil {
		return nil, false, fmt.Errorf("staging precompiled stylesheet: %w", err)
	}

	artifact, ok, err := l.store.LookupDir(dir)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		// Pruned between commit and read; the next call stages again
		l.metrics.RecordPrecompiled(OutcomeMiss)
		return nil, false, nil
	}

	artifact.Precompiled = true
	artifact.CacheHit = !created
	artifact.Dependencies = t.Dependencies()
	l.metrics.RecordPrecompiled(OutcomeHit)
	l.metrics.RecordAssetWarnings(len(artifact.Warnings))
	return artifact, true, nil
}

// stage fills a staging directory: the stylesheet is required, attachments
// and runtime files degrade to warnings. The stylesheet is written first and
// no later file may replace one already staged.
func (l *Locator) stage(tmp, name, src string, t *theme.Theme) error {
	if err := copyFile(src, filepath.Join(tmp, config.DefaultStylesheetName)); err != nil {
		return fmt.Errorf("copying precompiled stylesheet: %w", err)
	}

	var warnings []stylegen.AssetCopyWarning
	warn := func(file string, err error) {
		warnings = append(warnings, stylegen.AssetCopyWarning{File: file, Err: err.Error()})
		l.logger.WithError(err).WithFields(map[string]interface{}{
			"artifact_key": name,
			"file":         file,
		}).Warn("failed to copy asset next to precompiled stylesheet")
	}

	taken := map[string]bool{config.DefaultStylesheetName: true}
	add := func(file, from string) bool {
		rel, err := stylegen.CleanRelPath(file)
		if err != nil {
			warn(file, err)
			return false
		}
		if taken[rel] {
			warn(file, fmt.Errorf("%s collides with a staged file", rel))
			return false
		}
		if err := copyFile(from, filepath.Join(tmp, filepath.FromSlash(rel))); err != nil {
			warn(file, err)
			return false
		}
		taken[rel] = true
		return true
	}

	for _, a := range t.Attachments() {
		add(a.Name, a.Path)
	}

	script := ""
	files, err := l.runtime.Files(t.Version())
	if err != nil {
		warn(l.runtime.Dir(t.Version()), err)
	}
	for _, f := range files {
		if add(f, filepath.Join(l.runtime.Dir(t.Version()), f)) && f == stylegen.RuntimeScript {
			script = f
		}
	}

	return store.Commit(tmp, name, config.DefaultStylesheetName, script, warnings)
}

// stagingName is precompiled-{version}-{runtime script hash}, plus an
// attachment hash when the theme attaches files, so themes with different
// attachments never share a directory. The hash covers each file's stamp,
// so an attachment edited in place is staged afresh.
func (l *Locator) stagingName(t *theme.Theme) (string, error) {
	scriptHash, err := l.scriptHash(t.Version())
	if err != nil {
		return "", err
	}
	name := fmt.Sprintf("precompiled-%s-%s", t.Version(), scriptHash)

	if attachments := t.Attachments(); len(attachments) > 0 {
		sorted := append([]theme.Attachment(nil), attachments...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
		h := blake3.New()
		for _, a := range sorted {
			_, _ = io.WriteString(h, a.Name+"\x00"+a.Path+"\x00"+a.Stamp()+"\x00")
		}
		name += "-" + hex.EncodeToString(h.Sum(nil))[:12]
	}
	return name, nil
}

// scriptHash hashes the companion runtime script once per version
func (l *Locator) scriptHash(version string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if h, ok := l.scriptHashes[version]; ok {
		return h, nil
	}

	data, err := os.ReadFile(l.runtime.ScriptPath(version))
	if err != nil {
		return "", fmt.Errorf("reading runtime script: %w", err)
	}
	sum := blake3.Sum256(data)
	h := hex.EncodeToString(sum[:])[:16]
	l.scriptHashes[version] = h
	return h, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
