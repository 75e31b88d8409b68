// Package stylegen holds the types shared by the artifact engine: compile
// options, cache keys, builds and the artifacts served to callers.
//
// Subpackages:
//
//	cache/        cache key derivation and the L1/L2/L3 build cache
//	compiler/     dart-sass as a local binary or a container
//	precompiled/  prebuilt stylesheets for untouched themes
//	pipeline/     store → remote cache → compiler resolution
//	store/        the on-disk artifact tree
//	artifacts/    S3 archive of packed builds
//	config/       centralised defaults
package stylegen
