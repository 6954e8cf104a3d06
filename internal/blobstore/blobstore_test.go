package blobstore

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorePut(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads")
	store, err := NewLocalStore(dir)
	require.NoError(t, err)

	object, err := store.Put(context.Background(), strings.NewReader("pdf-bytes"), "plan_20250115_103000_ab12cd34.pdf", "application/pdf")
	require.NoError(t, err)

	assert.Equal(t, "uploads/plan_20250115_103000_ab12cd34.pdf", object.Reference)
	assert.Equal(t, int64(9), object.Size)

	written, err := os.ReadFile(filepath.Join(dir, "plan_20250115_103000_ab12cd34.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "pdf-bytes", string(written))

	_, err = os.Stat(filepath.Join(dir, "plan_20250115_103000_ab12cd34.pdf.tmp"))
	assert.True(t, os.IsNotExist(err))
}

func TestLocalStoreRejectsTraversal(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	for _, name := range []string{"../escape.pdf", "nested/file.pdf", "", ".."} {
		_, err := store.Put(context.Background(), strings.NewReader("x"), name, "")
		assert.ErrorIs(t, err, ErrInvalidName, name)
	}
}

type fakeS3 struct {
	puts    []*s3.PutObjectInput
	bodies  []string
	putErr  error
	headErr error
}

func (f *fakeS3) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	body, _ := io.ReadAll(params.Body)
	f.puts = append(f.puts, params)
	f.bodies = append(f.bodies, string(body))
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) HeadBucket(_ context.Context, _ *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	return &s3.HeadBucketOutput{}, f.headErr
}

func TestS3StorePut(t *testing.T) {
	client := &fakeS3{}
	store, err := NewS3Store(client, "factory-docs", "/uploads/")
	require.NoError(t, err)

	object, err := store.Put(context.Background(), strings.NewReader("jpeg-bytes"), "belt_20250115_103000_ab12cd34.jpg", "image/jpeg")
	require.NoError(t, err)

	assert.Equal(t, "s3://factory-docs/uploads/belt_20250115_103000_ab12cd34.jpg", object.Reference)
	assert.Equal(t, int64(10), object.Size)
	require.Len(t, client.puts, 1)
	assert.Equal(t, "factory-docs", aws.ToString(client.puts[0].Bucket))
	assert.Equal(t, "uploads/belt_20250115_103000_ab12cd34.jpg", aws.ToString(client.puts[0].Key))
	assert.Equal(t, "image/jpeg", aws.ToString(client.puts[0].ContentType))
	assert.Equal(t, int64(10), aws.ToInt64(client.puts[0].ContentLength))
	assert.Equal(t, "jpeg-bytes", client.bodies[0])
}

func TestS3StorePropagatesErrors(t *testing.T) {
	client := &fakeS3{putErr: errors.New("access denied"), headErr: errors.New("no such bucket")}
	store, err := NewS3Store(client, "factory-docs", "")
	require.NoError(t, err)

	_, err = store.Put(context.Background(), strings.NewReader("x"), "a.pdf", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")

	err = store.Verify(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "factory-docs")
}

func TestNewS3StoreRequiresBucket(t *testing.T) {
	_, err := NewS3Store(&fakeS3{}, " ", "")
	assert.Error(t, err)
}
