package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/platinummonkey/themeforge/pkg/observability"
	"github.com/platinummonkey/themeforge/pkg/stylegen"
	"github.com/platinummonkey/themeforge/pkg/stylegen/artifacts"
	"github.com/platinummonkey/themeforge/pkg/stylegen/cache"
	defaults "github.com/platinummonkey/themeforge/pkg/stylegen/config"
)

// Compiler kinds
const (
	CompilerExec   = "exec"
	CompilerDocker = "docker"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Paths to the framework sources and the artifact store
	Paths PathsConfig

	// Compiler configuration
	Compiler CompilerConfig

	// Flags are the process-wide devmode and diagnostics switches
	Flags stylegen.Flags

	// Memo configuration for deferred producers
	Memo MemoConfig

	// Cache is the remote build cache (L1/L2)
	Cache cache.Config

	// Archive is the S3 tier, used when Cache.EnableL3 is set
	Archive artifacts.Config

	// Prune configuration for the artifact store
	Prune PruneConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// RequestTimeout bounds API requests; 0 disables it
	RequestTimeout time.Duration

	// AllowedOrigins enables CORS for the listed origins
	AllowedOrigins []string

	// RateLimit is the API requests allowed per client per minute; 0
	// disables rate limiting. Redis-backed when THEMEFORGE_REDIS_ADDR is set.
	RateLimit      int
	RateLimitBurst int

	// SessionIdleTTL closes live sessions not used for this long; 0 keeps
	// them until deleted
	SessionIdleTTL time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// PathsConfig locates inputs and the artifact store on disk
type PathsConfig struct {
	CacheRoot      string
	FrameworkDir   string
	PrecompiledDir string
	RuntimeDir     string
	LibraryDir     string
}

// CompilerConfig selects and configures the stylesheet compiler
type CompilerConfig struct {
	Kind       string // exec or docker
	SassBinary string
	SassImage  string
	SassTag    string
	Timeout    time.Duration

	// MaxParallelBuilds bounds warm-up concurrency
	MaxParallelBuilds int
}

// MemoConfig configures the shared producer memo table
type MemoConfig struct {
	TTL        time.Duration
	MaxEntries int
}

// PruneConfig schedules eviction of old store entries
type PruneConfig struct {
	Enabled  bool
	Schedule string // cron expression
	MaxAge   time.Duration
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel observability.LogLevel

	// Metrics
	MetricsEnabled bool

	// OpenTelemetry
	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool // Use insecure gRPC connection
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Paths:         loadPathsConfig(),
		Compiler:      loadCompilerConfig(),
		Flags:         loadFlags(),
		Memo:          loadMemoConfig(),
		Cache:         loadCacheConfig(),
		Archive:       loadArchiveConfig(),
		Prune:         loadPruneConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadServerConfig loads server configuration from environment
func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("THEMEFORGE_HOST", "0.0.0.0"),
		Port:            getEnv("THEMEFORGE_PORT", "8080"),
		ReadTimeout:     getEnvDuration("THEMEFORGE_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("THEMEFORGE_WRITE_TIMEOUT", 3*time.Minute),
		IdleTimeout:     getEnvDuration("THEMEFORGE_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("THEMEFORGE_SHUTDOWN_TIMEOUT", 30*time.Second),
		RequestTimeout:  getEnvDuration("THEMEFORGE_REQUEST_TIMEOUT", 0),
		AllowedOrigins:  getEnvList("THEMEFORGE_CORS_ORIGINS"),
		RateLimit:       getEnvInt("THEMEFORGE_RATE_LIMIT", 0),
		RateLimitBurst:  getEnvInt("THEMEFORGE_RATE_LIMIT_BURST", 10),
		SessionIdleTTL:  getEnvDuration("THEMEFORGE_SESSION_IDLE_TTL", 30*time.Minute),
		HealthPort:      getEnv("THEMEFORGE_HEALTH_PORT", "9090"),
	}
}

// loadPathsConfig loads directory locations. Unset input directories are
// derived from THEMEFORGE_ASSETS_DIR.
func loadPathsConfig() PathsConfig {
	assets := getEnv("THEMEFORGE_ASSETS_DIR", "./assets")
	return PathsConfig{
		CacheRoot:      getEnv("THEMEFORGE_CACHE_ROOT", defaultCacheRoot()),
		FrameworkDir:   getEnv("THEMEFORGE_FRAMEWORK_DIR", assets+"/framework"),
		PrecompiledDir: getEnv("THEMEFORGE_PRECOMPILED_DIR", assets+"/precompiled"),
		RuntimeDir:     getEnv("THEMEFORGE_RUNTIME_DIR", assets+"/runtime"),
		LibraryDir:     getEnv("THEMEFORGE_LIBRARY_DIR", assets+"/lib"),
	}
}

func defaultCacheRoot() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return dir + "/themeforge"
	}
	return os.TempDir() + "/themeforge"
}

// loadCompilerConfig loads compiler configuration from environment
func loadCompilerConfig() CompilerConfig {
	return CompilerConfig{
		Kind:              strings.ToLower(getEnv("THEMEFORGE_COMPILER", CompilerExec)),
		SassBinary:        getEnv("THEMEFORGE_SASS_BINARY", defaults.DefaultSassBinary),
		SassImage:         getEnv("THEMEFORGE_SASS_IMAGE", defaults.DefaultSassImage),
		SassTag:           getEnv("THEMEFORGE_SASS_TAG", defaults.DefaultSassTag),
		Timeout:           getEnvDuration("THEMEFORGE_COMPILE_TIMEOUT", defaults.DefaultCompileTimeout),
		MaxParallelBuilds: getEnvInt("THEMEFORGE_MAX_PARALLEL_BUILDS", defaults.DefaultMaxParallelBuilds),
	}
}

// loadFlags loads the devmode and diagnostics switches. Contrast warnings
// follow devmode unless set explicitly.
func loadFlags() stylegen.Flags {
	flags := stylegen.Flags{DevMode: getEnvBool("THEMEFORGE_DEVMODE", false)}
	if value := os.Getenv("THEMEFORGE_CONTRAST_WARNINGS"); value != "" {
		enabled := getEnvBool("THEMEFORGE_CONTRAST_WARNINGS", false)
		flags.ContrastWarnings = &enabled
	}
	return flags
}

// loadMemoConfig loads memo table configuration from environment
func loadMemoConfig() MemoConfig {
	return MemoConfig{
		TTL:        getEnvDuration("THEMEFORGE_MEMO_TTL", defaults.DefaultMemoTTL),
		MaxEntries: getEnvInt("THEMEFORGE_MEMO_MAX_ENTRIES", defaults.DefaultMemoMaxEntries),
	}
}

// loadCacheConfig loads remote build cache configuration from environment
func loadCacheConfig() cache.Config {
	cfg := cache.DefaultConfig()

	if l1 := getEnv("THEMEFORGE_L1_CACHE_ENABLED", ""); l1 != "" {
		cfg.EnableL1 = getEnvBool("THEMEFORGE_L1_CACHE_ENABLED", true)
	}
	if l1Size := getEnvInt64("THEMEFORGE_L1_CACHE_SIZE", 0); l1Size > 0 {
		cfg.L1MaxSize = l1Size
	}
	if l1TTL := getEnvDuration("THEMEFORGE_L1_CACHE_TTL", 0); l1TTL > 0 {
		cfg.L1TTL = l1TTL
	}

	// Redis config
	if redisAddr := getEnv("THEMEFORGE_REDIS_ADDR", ""); redisAddr != "" {
		cfg.EnableL2 = true
		cfg.L2Addr = redisAddr
	}
	cfg.L2Password = getEnv("THEMEFORGE_REDIS_PASSWORD", "")
	cfg.L2DB = getEnvInt("THEMEFORGE_REDIS_DB", 0)
	if l2TTL := getEnvDuration("THEMEFORGE_REDIS_TTL", 0); l2TTL > 0 {
		cfg.L2TTL = l2TTL
	}
	if prefix := getEnv("THEMEFORGE_REDIS_KEY_PREFIX", ""); prefix != "" {
		cfg.L2KeyPrefix = prefix
	}

	cfg.EnableL3 = getEnv("THEMEFORGE_S3_BUCKET", "") != ""

	return *cfg
}

// loadArchiveConfig loads S3 archive configuration from environment
func loadArchiveConfig() artifacts.Config {
	cfg := artifacts.DefaultConfig()

	cfg.S3Bucket = getEnv("THEMEFORGE_S3_BUCKET", "")
	cfg.S3Region = getEnv("THEMEFORGE_S3_REGION", "us-east-1")
	cfg.S3Endpoint = getEnv("THEMEFORGE_S3_ENDPOINT", "")
	cfg.S3AccessKey = getEnv("THEMEFORGE_S3_ACCESS_KEY", "")
	cfg.S3SecretKey = getEnv("THEMEFORGE_S3_SECRET_KEY", "")
	cfg.S3UsePathStyle = getEnvBool("THEMEFORGE_S3_USE_PATH_STYLE", false)
	if prefix := getEnv("THEMEFORGE_S3_PREFIX", ""); prefix != "" {
		cfg.S3Prefix = prefix
	}
	cfg.EnableChecksum = getEnvBool("THEMEFORGE_S3_CHECKSUM", true)

	return *cfg
}

// loadPruneConfig loads store pruning configuration from environment
func loadPruneConfig() PruneConfig {
	return PruneConfig{
		Enabled:  getEnvBool("THEMEFORGE_PRUNE_ENABLED", true),
		Schedule: getEnv("THEMEFORGE_PRUNE_SCHEDULE", "@hourly"),
		MaxAge:   getEnvDuration("THEMEFORGE_PRUNE_MAX_AGE", 7*24*time.Hour),
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	cfg := ObservabilityConfig{
		LogLevel:           observability.ParseLevel(getEnv("THEMEFORGE_LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("THEMEFORGE_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("THEMEFORGE_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("THEMEFORGE_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("THEMEFORGE_OTEL_SERVICE_NAME", "themeforge"),
		OTelServiceVersion: getEnv("THEMEFORGE_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("THEMEFORGE_OTEL_INSECURE", true),
	}

	return cfg
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if c.Server.SessionIdleTTL < 0 {
		return fmt.Errorf("session idle TTL must not be negative")
	}
	if c.Server.RateLimit < 0 || c.Server.RateLimitBurst < 0 {
		return fmt.Errorf("rate limit and burst must not be negative")
	}

	if c.Paths.CacheRoot == "" {
		return fmt.Errorf("cache root is required")
	}

	// Validate compiler config based on kind
	switch c.Compiler.Kind {
	case CompilerExec:
		if c.Compiler.SassBinary == "" {
			return fmt.Errorf("sass binary is required for the exec compiler")
		}
	case CompilerDocker:
		if c.Compiler.SassImage == "" || c.Compiler.SassTag == "" {
			return fmt.Errorf("sass image and tag are required for the docker compiler")
		}
	default:
		return fmt.Errorf("invalid compiler: %s (must be exec or docker)", c.Compiler.Kind)
	}
	if c.Compiler.Timeout <= 0 {
		return fmt.Errorf("compile timeout must be positive")
	}

	if c.Memo.TTL <= 0 {
		return fmt.Errorf("memo TTL must be positive")
	}

	if c.Cache.EnableL3 && c.Archive.S3Bucket == "" {
		return fmt.Errorf("S3 bucket is required for the archive cache tier")
	}

	if c.Prune.Enabled {
		if c.Prune.Schedule == "" {
			return fmt.Errorf("prune schedule is required when pruning is enabled")
		}
		if c.Prune.MaxAge <= 0 {
			return fmt.Errorf("prune max age must be positive")
		}
	}

	// Validate OpenTelemetry config
	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvList splits a comma separated environment variable, dropping blanks
func getEnvList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvInt64 returns an int64 environment variable or a default
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
