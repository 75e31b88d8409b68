package artifacts

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/platinummonkey/themeforge/pkg/stylegen"
	"github.com/platinummonkey/themeforge/pkg/stylegen/config"
)

// Manager archives builds in object storage
type Manager interface {
	// Store uploads a build under its cache key
	Store(ctx context.Context, key string, build *stylegen.Build) (*StoreResult, error)

	// Retrieve downloads the build stored under a cache key
	Retrieve(ctx context.Context, key string) (*stylegen.Build, error)

	// Delete removes an archived build
	Delete(ctx context.Context, key string) error

	// Exists checks if a build is archived
	Exists(ctx context.Context, key string) (bool, error)

	// Close releases resources
	Close() error
}

// S3API is the subset of the S3 client used by S3Manager
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// StoreResult represents the result of storing a build
type StoreResult struct {
	S3Key          string
	S3Bucket       string
	Hash           string
	Size           int64
	CompressedSize int64
}

// Config holds artifact manager configuration
type Config struct {
	S3Bucket       string
	S3Prefix       string
	S3Region       string
	S3Endpoint     string
	S3AccessKey    string
	S3SecretKey    string
	S3UsePathStyle bool
	EnableChecksum bool // Verify checksums on download
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		S3Prefix:       config.DefaultArchivePrefix,
		EnableChecksum: true,
	}
}
