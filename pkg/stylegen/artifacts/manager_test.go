package artifacts

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type storedObject struct {
	body     []byte
	metadata map[string]string
}

// mockS3Client keeps objects in memory
type mockS3Client struct {
	mu      sync.Mutex
	objects map[string]storedObject
	putErr  error
	getErr  error
}

func newMockS3Client() *mockS3Client {
	return &mockS3Client{objects: make(map[string]storedObject)}
}

func (m *mockS3Client) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.putErr != nil {
		return nil, m.putErr
	}
	body, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[aws.ToString(params.Key)] = storedObject{body: body, metadata: params.Metadata}
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3Client) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[aws.ToString(params.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{
		Body:     io.NopCloser(bytes.NewReader(obj.body)),
		Metadata: obj.metadata,
	}, nil
}

func (m *mockS3Client) DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, aws.ToString(params.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (m *mockS3Client) HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[aws.ToString(params.Key)]; !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{}, nil
}

func newTestManager(client S3API) *S3Manager {
	cfg := DefaultConfig()
	cfg.S3Bucket = "test-bucket"
	cfg.S3Region = "us-west-2"
	return NewS3ManagerWithClient(client, cfg)
}

func TestS3Manager_StoreRetrieve(t *testing.T) {
	ctx := context.Background()
	client := newMockS3Client()
	manager := newTestManager(client)
	build := sampleBuild()

	result, err := manager.Store(ctx, build.Key, build)
	require.NoError(t, err)
	assert.Equal(t, "test-bucket", result.S3Bucket)
	assert.True(t, strings.HasPrefix(result.S3Key, "builds/"))
	assert.True(t, strings.HasSuffix(result.S3Key, ".tar.gz"))
	assert.Equal(t, build.Size(), result.Size)
	assert.Positive(t, result.CompressedSize)

	exists, err := manager.Exists(ctx, build.Key)
	require.NoError(t, err)
	assert.True(t, exists)

	restored, err := manager.Retrieve(ctx, build.Key)
	require.NoError(t, err)
	assert.Equal(t, build.Files, restored.Files)
	assert.Equal(t, build.Stylesheet, restored.Stylesheet)

	require.NoError(t, manager.Delete(ctx, build.Key))
	exists, err = manager.Exists(ctx, build.Key)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestS3Manager_RetrieveMissing(t *testing.T) {
	manager := newTestManager(newMockS3Client())

	_, err := manager.Retrieve(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestS3Manager_ChecksumMismatch(t *testing.T) {
	ctx := context.Background()
	client := newMockS3Client()
	manager := newTestManager(client)
	build := sampleBuild()

	result, err := manager.Store(ctx, build.Key, build)
	require.NoError(t, err)

	obj := client.objects[result.S3Key]
	obj.metadata = map[string]string{checksumMetadataKey: "deadbeef"}
	client.objects[result.S3Key] = obj

	_, err = manager.Retrieve(ctx, build.Key)
	assert.ErrorIs(t, err, ErrChecksumMismatch)
}

func TestS3Manager_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("empty key", func(t *testing.T) {
		manager := newTestManager(newMockS3Client())
		_, err := manager.Store(ctx, "", sampleBuild())
		assert.Error(t, err)
	})

	t.Run("upload failure", func(t *testing.T) {
		client := newMockS3Client()
		client.putErr = errors.New("connection reset")
		manager := newTestManager(client)
		_, err := manager.Store(ctx, "k", sampleBuild())
		assert.ErrorIs(t, err, ErrUploadFailed)
	})

	t.Run("download failure", func(t *testing.T) {
		client := newMockS3Client()
		client.getErr = errors.New("timeout")
		manager := newTestManager(client)
		_, err := manager.Retrieve(ctx, "k")
		assert.ErrorIs(t, err, ErrDownloadFailed)
	})
}

func TestBuildS3Key(t *testing.T) {
	manager := newTestManager(newMockS3Client())

	key := manager.buildS3Key("exec-sass:abc:def")
	digest := sha256Hex([]byte("exec-sass:abc:def"))
	assert.Equal(t, "builds/"+digest[:2]+"/"+digest+".tar.gz", key)
}

func TestNewS3Manager_RequiresBucket(t *testing.T) {
	_, err := NewS3Manager(context.Background(), DefaultConfig())
	assert.Error(t, err)
}
