// Package store keeps compiled artifacts on local disk.
//
// Layout:
//
//	{Root}/
//	  builds/
//	    {digest[0:2]}/
//	      {digest}/
//	        .artifact.json   (written last; marks the entry complete)
//	        bootstrap.min.css
//	        ...
//	  staging/
//	    precompiled-{version}-{runtime hash}/
//
// Entries are create-if-absent: a directory is filled under a temporary name
// and renamed into place. Losing the rename race to another writer counts as
// success, and a committed directory is never rewritten. Entries may vanish at
// any time (Prune, tmp cleaners); a missing entry is a miss, never an error.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/platinummonkey/themeforge/pkg/observability"
	"github.com/platinummonkey/themeforge/pkg/stylegen"
)

const (
	buildsDir    = "builds"
	stagingDir   = "staging"
	manifestName = ".artifact.json"
	tmpPrefix    = ".tmp-"
)

// ErrInvalidPath is returned when an asset path escapes the store
var ErrInvalidPath = errors.New("invalid artifact path")

// manifest describes a committed artifact directory
type manifest struct {
	Key        string                      `json:"key"`
	Stylesheet string                      `json:"stylesheet"`
	Script     string                      `json:"script,omitempty"`
	Files      []stylegen.File             `json:"files"`
	Warnings   []stylegen.AssetCopyWarning `json:"warnings,omitempty"`
	CreatedAt  time.Time                   `json:"created_at"`
}

// Store is a content-addressed artifact directory tree
type Store struct {
	root   string
	logger *observability.Logger
}

// New creates a store rooted at root, creating the directory if needed
func New(root string, logger *observability.Logger) (*Store, error) {
	if root == "" {
		return nil, fmt.Errorf("store root is required")
	}
	for _, dir := range []string{buildsDir, stagingDir} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0755); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
	}
	return &Store{root: root, logger: observability.OrDefault(logger)}, nil
}

// Root returns the store root
func (s *Store) Root() string {
	return s.root
}

// BuildDir returns the directory an artifact with this key lives in
func (s *Store) BuildDir(key *stylegen.CacheKey) string {
	digest := key.Digest()
	return filepath.Join(s.root, buildsDir, digest[:2], digest)
}

// StagingDir returns the directory of a named staging entry
func (s *Store) StagingDir(name string) string {
	return filepath.Join(s.root, stagingDir, name)
}

// Lookup returns the committed artifact for key. A missing or incomplete
// entry reports false with a nil error.
func (s *Store) Lookup(key *stylegen.CacheKey) (*stylegen.Artifact, bool, error) {
	return s.load(s.BuildDir(key))
}

// LookupDir loads a committed artifact from a directory inside the store
func (s *Store) LookupDir(dir string) (*stylegen.Artifact, bool, error) {
	return s.load(dir)
}

func (s *Store) load(dir string) (*stylegen.Artifact, bool, error) {
	data, err := os.ReadFile(filepath.Join(dir, manifestName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("reading artifact manifest: %w", err)
	}

	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		// A torn manifest can only come from outside interference; treat as a miss
		s.logger.WithError(err).WithField("dir", dir).Warn("ignoring unreadable artifact manifest")
		return nil, false, nil
	}

	// The stylesheet disappearing under us is eviction, not corruption
	if _, err := os.Stat(filepath.Join(dir, m.Stylesheet)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("checking stylesheet: %w", err)
	}

	return &stylegen.Artifact{
		Key:        m.Key,
		Dir:        dir,
		Stylesheet: m.Stylesheet,
		Script:     m.Script,
		Files:      m.Files,
		Warnings:   m.Warnings,
	}, true, nil
}

// Put commits build under key and returns the committed artifact. When the
// key already exists the existing entry is returned unchanged.
func (s *Store) Put(key *stylegen.CacheKey, build *stylegen.Build, script string, warnings []stylegen.AssetCopyWarning) (*stylegen.Artifact, error) {
	if build == nil {
		return nil, fmt.Errorf("build cannot be nil")
	}

	dir := s.BuildDir(key)
	_, err := s.CreateDir(dir, func(tmp string) error {
		files := make([]stylegen.File, 0, len(build.Files))
		for _, f := range build.Files {
			if err := writeFile(tmp, f.Path, f.Content); err != nil {
				return err
			}
			files = append(files, stylegen.File{Path: f.Path, Size: int64(len(f.Content))})
		}
		return writeManifest(tmp, manifest{
			Key:        key.String(),
			Stylesheet: build.Stylesheet,
			Script:     script,
			Files:      files,
			Warnings:   warnings,
			CreatedAt:  build.CreatedAt,
		})
	})
	if err != nil {
		return nil, err
	}

	artifact, ok, err := s.load(dir)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("artifact %s vanished after commit", key.Digest())
	}
	return artifact, nil
}

// Commit writes the manifest for a directory filled by the caller inside a
// CreateDir callback. files are relative to tmp.
func Commit(tmp, key, stylesheet, script string, warnings []stylegen.AssetCopyWarning) error {
	var files []stylegen.File
	err := filepath.WalkDir(tmp, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || d.Name() == manifestName {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(tmp, path)
		if err != nil {
			return err
		}
		files = append(files, stylegen.File{Path: filepath.ToSlash(rel), Size: info.Size()})
		return nil
	})
	if err != nil {
		return fmt.Errorf("listing artifact files: %w", err)
	}

	return writeManifest(tmp, manifest{
		Key:        key,
		Stylesheet: stylesheet,
		Script:     script,
		Files:      files,
		Warnings:   warnings,
		CreatedAt:  time.Now().UTC(),
	})
}

// CreateDir atomically creates dir, filling it through fill. It reports
// whether this call created the directory. An existing dir, including one
// created by a concurrent caller, is success and fill is not run.
func (s *Store) CreateDir(dir string, fill func(tmp string) error) (bool, error) {
	if _, err := os.Stat(filepath.Join(dir, manifestName)); err == nil {
		return false, nil
	}

	parent := filepath.Dir(dir)
	if err := os.MkdirAll(parent, 0755); err != nil {
		return false, fmt.Errorf("creating artifact parent directory: %w", err)
	}

	// Temp dir in the same parent keeps the rename on one filesystem
	tmp, err := os.MkdirTemp(parent, tmpPrefix+filepath.Base(dir)+"-")
	if err != nil {
		return false, fmt.Errorf("creating temp artifact dir: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = os.RemoveAll(tmp)
		}
	}()

	if err := fill(tmp); err != nil {
		return false, err
	}

	if err := os.Rename(tmp, dir); err != nil {
		if _, statErr := os.Stat(filepath.Join(dir, manifestName)); statErr == nil {
			// Lost the race; the winner's output is byte-identical
			return false, nil
		}
		if isExistErr(err) {
			// A directory without a manifest is debris from a crashed writer
			// that predates the temp+rename scheme; replace it
			_ = os.RemoveAll(dir)
			if err := os.Rename(tmp, dir); err == nil {
				committed = true
				return true, nil
			}
			if _, statErr := os.Stat(filepath.Join(dir, manifestName)); statErr == nil {
				return false, nil
			}
		}
		return false, fmt.Errorf("committing artifact dir: %w", err)
	}
	committed = true
	return true, nil
}

// Resolve maps an asset request to a file inside the store. dir is either a
// build digest or a staging directory name.
func (s *Store) Resolve(dir, file string) (string, error) {
	if dir == "" || strings.ContainsAny(dir, `/\`) || dir == "." || dir == ".." || strings.HasPrefix(dir, tmpPrefix) {
		return "", ErrInvalidPath
	}
	clean := filepath.Clean(filepath.FromSlash(file))
	if clean == "." || filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) || clean == manifestName {
		return "", ErrInvalidPath
	}

	var base string
	if isDigest(dir) {
		base = filepath.Join(s.root, buildsDir, dir[:2], dir)
	} else {
		base = s.StagingDir(dir)
	}
	return filepath.Join(base, clean), nil
}

// AssetDir maps an artifact directory inside the store back to the dir
// name Resolve accepts. Directories outside the store report false.
func (s *Store) AssetDir(dir string) (string, bool) {
	rel, err := filepath.Rel(s.root, dir)
	if err != nil {
		return "", false
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	switch {
	case len(parts) == 3 && parts[0] == buildsDir && isDigest(parts[2]):
		return parts[2], true
	case len(parts) == 2 && parts[0] == stagingDir && !strings.HasPrefix(parts[1], tmpPrefix):
		return parts[1], true
	}
	return "", false
}

// Prune removes build and staging entries older than maxAge, plus abandoned
// temp directories. It returns the number of directories removed.
func (s *Store) Prune(maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge)
	removed := 0

	prune := func(dir string) error {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return err
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			path := filepath.Join(dir, entry.Name())
			if !olderThan(path, entry, cutoff) {
				continue
			}
			if err := os.RemoveAll(path); err != nil {
				s.logger.WithError(err).WithField("dir", path).Warn("failed to prune artifact directory")
				continue
			}
			removed++
		}
		return nil
	}

	shards, err := os.ReadDir(filepath.Join(s.root, buildsDir))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return removed, fmt.Errorf("reading builds directory: %w", err)
	}
	for _, shard := range shards {
		if shard.IsDir() {
			if err := prune(filepath.Join(s.root, buildsDir, shard.Name())); err != nil {
				return removed, fmt.Errorf("pruning builds: %w", err)
			}
		}
	}
	if err := prune(filepath.Join(s.root, stagingDir)); err != nil {
		return removed, fmt.Errorf("pruning staging: %w", err)
	}

	s.logger.WithField("removed", removed).Debug("pruned artifact store")
	return removed, nil
}

// olderThan uses the manifest time for committed entries and the directory
// time for debris
func olderThan(path string, entry os.DirEntry, cutoff time.Time) bool {
	if info, err := os.Stat(filepath.Join(path, manifestName)); err == nil {
		return info.ModTime().Before(cutoff)
	}
	info, err := entry.Info()
	if err != nil {
		return false
	}
	return info.ModTime().Before(cutoff)
}

func writeManifest(dir string, m manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling artifact manifest: %w", err)
	}
	return writeFile(dir, manifestName, data)
}

func writeFile(dir, name string, content []byte) error {
	clean := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return fmt.Errorf("%w: %s", ErrInvalidPath, name)
	}
	path := filepath.Join(dir, clean)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", name, err)
	}
	if err := os.WriteFile(path, content, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	return nil
}

func isExistErr(err error) bool {
	return errors.Is(err, os.ErrExist) || strings.Contains(err.Error(), "directory not empty")
}

func isDigest(s string) bool {
	if len(s) != 64 {
		return false
	}
	for _, r := range s {
		if !strings.ContainsRune("0123456789abcdef", r) {
			return false
		}
	}
	return true
}
