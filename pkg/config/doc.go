// Package config provides application configuration management from environment variables.
//
// # Overview
//
// This package loads and validates configuration from environment variables with
// sensible defaults for all settings. Defaults for the stylesheet engine itself
// live in pkg/stylegen/config.
//
// # Configuration Structure
//
// Server settings:
//
//	THEMEFORGE_HOST="0.0.0.0"
//	THEMEFORGE_PORT="8080"
//	THEMEFORGE_HEALTH_PORT="9090"
//	THEMEFORGE_READ_TIMEOUT="15s"
//	THEMEFORGE_WRITE_TIMEOUT="3m"
//	THEMEFORGE_REQUEST_TIMEOUT="90s"                # unset: no per-request deadline
//	THEMEFORGE_CORS_ORIGINS="https://app.example"   # comma separated
//	THEMEFORGE_RATE_LIMIT="60"                      # requests/min per client, 0 disables
//	THEMEFORGE_RATE_LIMIT_BURST="10"
//
// Paths:
//
//	THEMEFORGE_CACHE_ROOT="/var/cache/themeforge"
//	THEMEFORGE_ASSETS_DIR="/usr/share/themeforge"  # framework/, precompiled/, runtime/, lib/
//	THEMEFORGE_FRAMEWORK_DIR="/usr/share/themeforge/framework"
//
// Compiler settings:
//
//	THEMEFORGE_COMPILER="exec"  # exec, docker
//	THEMEFORGE_SASS_BINARY="sass"
//	THEMEFORGE_SASS_IMAGE="michalklempa/dart-sass"
//	THEMEFORGE_SASS_TAG="1.77.8"
//	THEMEFORGE_COMPILE_TIMEOUT="2m"
//
// Diagnostics:
//
//	THEMEFORGE_DEVMODE="false"
//	THEMEFORGE_CONTRAST_WARNINGS=""  # unset follows devmode
//	THEMEFORGE_MEMO_TTL="5s"
//
// Cache settings:
//
//	THEMEFORGE_L1_CACHE_SIZE="52428800"
//	THEMEFORGE_REDIS_ADDR="localhost:6379"  # enables L2
//	THEMEFORGE_S3_BUCKET="themeforge-builds"  # enables L3
//	THEMEFORGE_S3_REGION="us-east-1"
//	THEMEFORGE_PRUNE_SCHEDULE="@hourly"
//	THEMEFORGE_PRUNE_MAX_AGE="168h"
//
// Observability settings:
//
//	THEMEFORGE_LOG_LEVEL="info"  # debug, info, warn, error
//	THEMEFORGE_METRICS_ENABLED="true"
//	THEMEFORGE_OTEL_ENABLED="true"
//	THEMEFORGE_OTEL_ENDPOINT="otel-collector:4317"
//
// # Usage Example
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	fmt.Printf("Server: %s:%s\n", cfg.Server.Host, cfg.Server.Port)
//	fmt.Printf("Compiler: %s\n", cfg.Compiler.Kind)
//	fmt.Printf("Log level: %s\n", cfg.Observability.LogLevel)
//
// # Related Packages
//
//   - pkg/stylegen/cache: Uses the cache configuration
//   - pkg/observability: Uses observability configuration
package config
