// Package cache provides cache key generation and the multi-level build cache
//
// CRITICAL INVARIANT: KEYS HASH CONTENT, NOT IDENTITY
// Two independently constructed themes with the same content produce the same
// key. The theme half of the key is theme.ContentHash(); the options half is a
// hash over the options map with keys sorted alphabetically.
//
// Cache Key Format Version: v1
// Format: {compilerID}:{themeHash}:{optionsHash}[:{tag1},{tag2}...]
//
// Tags keep the order they were given in. Callers must pass them in a stable
// order. The compiler identity always participates, so upgrading the compiler
// invalidates every previous entry.
//
// DO NOT modify hashOptions() or CacheKey.String() without:
// 1. Incrementing cache format version
// 2. Clearing all existing cached builds
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/platinummonkey/themeforge/pkg/stylegen"
	"github.com/platinummonkey/themeforge/pkg/theme"
)

// GenerateCacheKey derives the cache key for compiling t with opts
func GenerateCacheKey(t *theme.Theme, opts stylegen.CompileOptions, compilerID string, tags ...string) *stylegen.CacheKey {
	var kept []string
	for _, tag := range tags {
		if tag != "" {
			kept = append(kept, tag)
		}
	}
	return &stylegen.CacheKey{
		CompilerID:  compilerID,
		ThemeHash:   t.ContentHash(),
		OptionsHash: hashOptions(opts.Map()),
		Tags:        kept,
	}
}

// FormatCacheKey formats a cache key as a string for storage.
// stylegen.CacheKey.String() is the single source of truth for the format.
func FormatCacheKey(key *stylegen.CacheKey) string {
	return key.String()
}

// hashOptions generates a stable hash of options map
//
// CRITICAL INVARIANT: Map keys are sorted alphabetically before hashing.
//
// Algorithm:
// 1. Extract and sort all keys alphabetically
// 2. For each key in sorted order: hash key + \0 + value + \0
// 3. Return first 16 hex characters of SHA256 hash
func hashOptions(options map[string]string) string {
	keys := make([]string, 0, len(options))
	for k := range options {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	hasher := sha256.New()
	for _, k := range keys {
		hasher.Write([]byte(k))
		hasher.Write([]byte{0})
		hasher.Write([]byte(options[k]))
		hasher.Write([]byte{0})
	}

	return hex.EncodeToString(hasher.Sum(nil))[:16]
}

// ValidateCacheKey validates a cache key
func ValidateCacheKey(key *stylegen.CacheKey) error {
	if key == nil {
		return fmt.Errorf("%w: cache key is nil", ErrInvalidCacheKey)
	}
	if key.CompilerID == "" {
		return fmt.Errorf("%w: compiler id is required", ErrInvalidCacheKey)
	}
	if key.ThemeHash == "" {
		return fmt.Errorf("%w: theme hash is required", ErrInvalidCacheKey)
	}
	if key.OptionsHash == "" {
		return fmt.Errorf("%w: options hash is required", ErrInvalidCacheKey)
	}
	for _, field := range append([]string{key.CompilerID}, key.Tags...) {
		if strings.ContainsAny(field, ":,") {
			return fmt.Errorf("%w: %q contains a separator", ErrInvalidCacheKey, field)
		}
	}
	return nil
}
