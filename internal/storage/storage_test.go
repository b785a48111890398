package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/listflow/internal/config"
	"github.com/ignite/listflow/internal/domain"
)

type fakeS3 struct {
	objects map[string][]byte
	types   map[string]string
	putErr  error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	k := aws.ToString(in.Bucket) + "/" + aws.ToString(in.Key)
	f.objects[k] = data
	f.types[k] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func testBroadcast() *domain.BroadcastRequest {
	runAt := int64(1715342400000)
	return &domain.BroadcastRequest{
		BroadcastID: "b-1",
		TemplateID:  "Newsletter",
		Predicate:   domain.Predicate{Tags: []string{"list-a"}},
		RunAt:       &runAt,
		Phase:       domain.PhasePending,
		CreatedAt:   time.Date(2024, 5, 10, 23, 59, 0, 0, time.UTC).UnixMilli(),
	}
}

func TestBroadcastKey(t *testing.T) {
	assert.Equal(t, "broadcasts/2024/05/10/b-1.json", BroadcastKey("broadcasts", testBroadcast()))
	assert.Equal(t, "2024/05/10/b-1.json", BroadcastKey("", testBroadcast()))
}

func TestNew_Disabled(t *testing.T) {
	a, err := New(config.ArchiveConfig{Prefix: "broadcasts"}, nil)
	require.NoError(t, err)
	assert.Nil(t, a)
}

func TestNew_BucketWithoutClient(t *testing.T) {
	_, err := New(config.ArchiveConfig{Bucket: "archive"}, nil)
	assert.Error(t, err)
}

func TestS3Archive(t *testing.T) {
	client := newFakeS3()
	a, err := New(config.ArchiveConfig{Bucket: "archive", Prefix: "broadcasts"}, client)
	require.NoError(t, err)
	ctx := context.Background()

	b := testBroadcast()
	require.NoError(t, a.ArchiveBroadcast(ctx, b))
	assert.Equal(t, "application/json", client.types["archive/broadcasts/2024/05/10/b-1.json"])

	got, err := a.GetBroadcast(ctx, "broadcasts/2024/05/10/b-1.json")
	require.NoError(t, err)
	assert.Equal(t, b, got)

	_, err = a.GetBroadcast(ctx, "broadcasts/2024/05/10/missing.json")
	assert.Error(t, err)
}

func TestS3Archive_PutError(t *testing.T) {
	client := newFakeS3()
	client.putErr = errors.New("AccessDenied")
	a, err := New(config.ArchiveConfig{Bucket: "archive"}, client)
	require.NoError(t, err)

	err = a.ArchiveBroadcast(context.Background(), testBroadcast())
	assert.ErrorIs(t, err, client.putErr)
	assert.Contains(t, err.Error(), "s3://archive/")
}

func TestLocalArchive(t *testing.T) {
	a, err := New(config.ArchiveConfig{LocalPath: t.TempDir(), Prefix: "broadcasts"}, nil)
	require.NoError(t, err)
	ctx := context.Background()

	b := testBroadcast()
	require.NoError(t, a.ArchiveBroadcast(ctx, b))
	got, err := a.GetBroadcast(ctx, BroadcastKey("broadcasts", b))
	require.NoError(t, err)
	assert.Equal(t, b, got)
}
