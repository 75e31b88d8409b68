// Package config provides default configuration values for the stylegen system
//
// CENTRALIZED DEFAULTS: All magic constants should be defined here
//
// This file is the single source of truth for default values across the
// stylegen packages, so defaults are discoverable and do not drift between
// files.
package config

import (
	"time"
)

// Build Cache Defaults
const (
	// DefaultCacheMaxSize is the maximum size for the in-memory build cache
	// Default: 50MB
	//
	// A compiled framework stylesheet with its runtime script and source map
	// is roughly 300-600KB, so 50MB keeps around a hundred recent builds.
	DefaultCacheMaxSize = 50 * 1024 * 1024

	// DefaultCacheAvgItemSize is the assumed size of one build when turning
	// DefaultCacheMaxSize into an entry count
	DefaultCacheAvgItemSize = 512 * 1024

	// DefaultCacheTTL is the time-to-live for in-memory build entries
	// Default: 30 minutes
	//
	// Builds never change for a given key, so the TTL only bounds memory held
	// by themes nobody asks for any more.
	DefaultCacheTTL = 30 * time.Minute

	// DefaultRemoteCacheTTL is the time-to-live for Redis build entries
	// Default: 24 hours
	DefaultRemoteCacheTTL = 24 * time.Hour

	// DefaultRemoteKeyPrefix prefixes every Redis key written by the cache
	DefaultRemoteKeyPrefix = "themeforge:build:"

	// DefaultArchivePrefix prefixes every S3 object written by the archive tier
	DefaultArchivePrefix = "builds/"
)

// Memoization Defaults
const (
	// DefaultMemoTTL is how long a deferred producer result is reused
	// Default: 5 seconds
	//
	// Long enough to absorb a page rendering the same widget many times,
	// short enough that a theme change is picked up almost immediately.
	DefaultMemoTTL = 5 * time.Second

	// DefaultMemoMaxEntries bounds the shared memo table
	DefaultMemoMaxEntries = 1000
)

// Compiler Defaults
const (
	// DefaultSassBinary is the dart-sass executable used by the exec compiler
	DefaultSassBinary = "sass"

	// DefaultSassImage is the container image used by the docker compiler
	DefaultSassImage = "michalklempa/dart-sass"

	// DefaultSassTag is the image tag used by the docker compiler
	DefaultSassTag = "1.77.8"

	// DefaultCompileTimeout bounds a single compiler invocation
	// Default: 2 minutes
	//
	// A full framework build takes a few seconds. The limit only stops a
	// wedged compiler from holding a request forever.
	DefaultCompileTimeout = 2 * time.Minute

	// DefaultDockerMemoryLimit is the memory limit for compiler containers
	// Default: 512MB
	DefaultDockerMemoryLimit = int64(512 * 1024 * 1024)

	// DefaultDockerCPULimit is the CPU limit for compiler containers
	// Default: 1.0 (1 CPU core)
	DefaultDockerCPULimit = 1.0

	// DefaultMaxParallelBuilds bounds concurrent compilations during warm-up
	DefaultMaxParallelBuilds = 4
)

// Artifact Layout Defaults
const (
	// DefaultStylesheetName is the file name of a compiled stylesheet
	DefaultStylesheetName = "bootstrap.min.css"

	// DefaultEntryName is the file name of the rendered compiler entry point
	DefaultEntryName = "entry.scss"

	// ContrastWarningsVariable is injected into every compile
	ContrastWarningsVariable = "enable-color-contrast-warnings"

	// DevModeTag and ContrastWarningsTag are folded into cache keys when the
	// corresponding flag is on
	DevModeTag          = "devmode"
	ContrastWarningsTag = "contrast-warnings"
)
