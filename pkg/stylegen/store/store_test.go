package store

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/platinummonkey/themeforge/pkg/observability"
	"github.com/platinummonkey/themeforge/pkg/stylegen"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir(), observability.NopLogger())
	require.NoError(t, err)
	return s
}

func testKey() *stylegen.CacheKey {
	return &stylegen.CacheKey{CompilerID: "exec-sass", ThemeHash: "abc", OptionsHash: "0123456789abcdef"}
}

func testBuild(css string) *stylegen.Build {
	return &stylegen.Build{
		Key:        testKey().String(),
		Stylesheet: "bootstrap.min.css",
		Files: []stylegen.FileContent{
			{Path: "bootstrap.min.css", Content: []byte(css)},
			{Path: "bootstrap.bundle.min.js", Content: []byte("js")},
			{Path: "fonts/a.woff2", Content: []byte("font")},
		},
		CreatedAt: time.Now().UTC(),
	}
}

func TestStore_LookupMissing(t *testing.T) {
	s := newTestStore(t)
	artifact, ok, err := s.Lookup(testKey())
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, artifact)
}

func TestStore_PutLookup(t *testing.T) {
	s := newTestStore(t)
	warnings := []stylegen.AssetCopyWarning{{File: "bootstrap.bundle.min.js.map", Err: "not found"}}

	artifact, err := s.Put(testKey(), testBuild("a{}"), "bootstrap.bundle.min.js", warnings)
	require.NoError(t, err)
	assert.Equal(t, s.BuildDir(testKey()), artifact.Dir)
	assert.Equal(t, "bootstrap.bundle.min.js", artifact.Script)
	assert.Len(t, artifact.Files, 3)
	assert.Equal(t, warnings, artifact.Warnings)

	content, err := os.ReadFile(artifact.StylesheetPath())
	require.NoError(t, err)
	assert.Equal(t, "a{}", string(content))

	found, ok, err := s.Lookup(testKey())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, artifact.Key, found.Key)
	assert.Equal(t, artifact.Files, found.Files)
}

func TestStore_PutNeverRewrites(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Put(testKey(), testBuild("first"), "", nil)
	require.NoError(t, err)
	artifact, err := s.Put(testKey(), testBuild("second"), "", nil)
	require.NoError(t, err)

	content, err := os.ReadFile(artifact.StylesheetPath())
	require.NoError(t, err)
	assert.Equal(t, "first", string(content))
}

func TestStore_ConcurrentFirstUse(t *testing.T) {
	s := newTestStore(t)

	const racers = 8
	var wg sync.WaitGroup
	errs := make([]error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.Put(testKey(), testBuild("same"), "", nil)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}

	artifact, ok, err := s.Lookup(testKey())
	require.NoError(t, err)
	require.True(t, ok)
	content, err := os.ReadFile(artifact.StylesheetPath())
	require.NoError(t, err)
	assert.Equal(t, "same", string(content))

	// No temp debris left behind
	entries, err := os.ReadDir(filepath.Dir(artifact.Dir))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestStore_EvictedEntryIsMiss(t *testing.T) {
	s := newTestStore(t)
	artifact, err := s.Put(testKey(), testBuild("a{}"), "", nil)
	require.NoError(t, err)

	require.NoError(t, os.Remove(artifact.StylesheetPath()))
	_, ok, err := s.Lookup(testKey())
	assert.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, os.RemoveAll(artifact.Dir))
	_, ok, err = s.Lookup(testKey())
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_CreateDir(t *testing.T) {
	s := newTestStore(t)
	dir := s.StagingDir("precompiled-5-abc")

	calls := 0
	fill := func(tmp string) error {
		calls++
		require.NoError(t, os.WriteFile(filepath.Join(tmp, "bootstrap.min.css"), []byte("x"), 0644))
		return Commit(tmp, "precompiled", "bootstrap.min.css", "", nil)
	}

	created, err := s.CreateDir(dir, fill)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = s.CreateDir(dir, fill)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, 1, calls)

	artifact, ok, err := s.LookupDir(dir)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []stylegen.File{{Path: "bootstrap.min.css", Size: 1}}, artifact.Files)
}

func TestStore_PutRejectsEscapingPaths(t *testing.T) {
	s := newTestStore(t)
	build := testBuild("a{}")
	build.Files = append(build.Files, stylegen.FileContent{Path: "../evil", Content: []byte("x")})

	_, err := s.Put(testKey(), build, "", nil)
	assert.ErrorIs(t, err, ErrInvalidPath)
	_, ok, _ := s.Lookup(testKey())
	assert.False(t, ok)
}

func TestStore_Resolve(t *testing.T) {
	s := newTestStore(t)
	digest := testKey().Digest()

	path, err := s.Resolve(digest, "fonts/a.woff2")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(s.BuildDir(testKey()), "fonts", "a.woff2"), path)

	path, err = s.Resolve("precompiled-5-abc", "bootstrap.min.css")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(s.StagingDir("precompiled-5-abc"), "bootstrap.min.css"), path)

	for _, tc := range [][2]string{
		{"..", "x"},
		{"a/b", "x"},
		{digest, "../../etc/passwd"},
		{digest, manifestName},
		{".tmp-x", "y"},
		{"", "y"},
	} {
		_, err := s.Resolve(tc[0], tc[1])
		assert.ErrorIs(t, err, ErrInvalidPath, "%v", tc)
	}
}

func TestStore_AssetDir(t *testing.T) {
	s := newTestStore(t)
	digest := testKey().Digest()

	dir, ok := s.AssetDir(s.BuildDir(testKey()))
	require.True(t, ok)
	assert.Equal(t, digest, dir)

	dir, ok = s.AssetDir(s.StagingDir("precompiled-5-abc"))
	require.True(t, ok)
	assert.Equal(t, "precompiled-5-abc", dir)

	for _, outside := range []string{t.TempDir(), s.Root(), s.StagingDir(".tmp-123"), filepath.Join(s.Root(), "builds", "ab")} {
		_, ok := s.AssetDir(outside)
		assert.False(t, ok, outside)
	}
}

func TestStore_Prune(t *testing.T) {
	s := newTestStore(t)
	artifact, err := s.Put(testKey(), testBuild("a{}"), "", nil)
	require.NoError(t, err)

	removed, err := s.Prune(time.Hour)
	require.NoError(t, err)
	assert.Zero(t, removed)

	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(artifact.Dir, manifestName), old, old))

	removed, err = s.Prune(time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, ok, err := s.Lookup(testKey())
	assert.NoError(t, err)
	assert.False(t, ok)
}
