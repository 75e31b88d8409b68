package artifacts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/platinummonkey/themeforge/pkg/stylegen"
)

const checksumMetadataKey = "checksum-sha256"

// S3Manager implements build archiving using S3
type S3Manager struct {
	client S3API
	config *Config
}

// NewS3Manager creates a new S3 artifact manager
func NewS3Manager(ctx context.Context, cfg *Config) (*S3Manager, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.S3Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.S3Region),
	}
	if cfg.S3AccessKey != "" && cfg.S3SecretKey != "" {
		// Static credentials (MinIO or AWS with explicit keys)
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
		}
		o.UsePathStyle = cfg.S3UsePathStyle
	})

	return NewS3ManagerWithClient(client, cfg), nil
}

// NewS3ManagerWithClient creates a manager around an existing client
func NewS3ManagerWithClient(client S3API, cfg *Config) *S3Manager {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &S3Manager{
		client: client,
		config: cfg,
	}
}

// Store uploads a build to S3
func (m *S3Manager) Store(ctx context.Context, key string, build *stylegen.Build) (*StoreResult, error) {
	if key == "" {
		return nil, fmt.Errorf("key cannot be empty")
	}

	archive, hash, err := Pack(build)
	if err != nil {
		return nil, fmt.Errorf("failed to compress build: %w", err)
	}

	objectKey := m.buildS3Key(key)
	_, err = m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(m.config.S3Bucket),
		Key:         aws.String(objectKey),
		Body:        bytes.NewReader(archive),
		ContentType: aws.String("application/gzip"),
		Metadata: map[string]string{
			checksumMetadataKey: hash,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	return &StoreResult{
		S3Key:          objectKey,
		S3Bucket:       m.config.S3Bucket,
		Hash:           hash,
		Size:           build.Size(),
		CompressedSize: int64(len(archive)),
	}, nil
}

// Retrieve downloads a build from S3
func (m *S3Manager) Retrieve(ctx context.Context, key string) (*stylegen.Build, error) {
	output, err := m.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(m.config.S3Bucket),
		Key:    aws.String(m.buildS3Key(key)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	defer output.Body.Close()

	data, err := io.ReadAll(output.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}

	if m.config.EnableChecksum {
		if want := output.Metadata[checksumMetadataKey]; want != "" {
			if got := sha256Hex(data); got != want {
				return nil, fmt.Errorf("%w: want %s, got %s", ErrChecksumMismatch, want, got)
			}
		}
	}

	return Unpack(data)
}

// Delete removes an archived build from S3
func (m *S3Manager) Delete(ctx context.Context, key string) error {
	_, err := m.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(m.config.S3Bucket),
		Key:    aws.String(m.buildS3Key(key)),
	})
	if err != nil {
		return fmt.Errorf("failed to delete from S3: %w", err)
	}
	return nil
}

// Exists checks if a build is archived
func (m *S3Manager) Exists(ctx context.Context, key string) (bool, error) {
	_, err := m.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(m.config.S3Bucket),
		Key:    aws.String(m.buildS3Key(key)),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check S3 object: %w", err)
	}
	return true, nil
}

// Close releases resources
func (m *S3Manager) Close() error {
	// S3 client doesn't need explicit closing
	return nil
}

// buildS3Key builds an S3 key from a cache key digest.
// Format: {prefix}{digest[0:2]}/{digest}.tar.gz
func (m *S3Manager) buildS3Key(key string) string {
	digest := sha256Hex([]byte(key))
	return path.Join(m.config.S3Prefix, digest[:2], digest+".tar.gz")
}

func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}
