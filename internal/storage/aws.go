package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ignite/listflow/internal/domain"
)

// S3API is the subset of the S3 client used by the archive.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// bucketStore keeps broadcast documents in one S3 bucket.
type bucketStore struct {
	client S3API
	bucket string
}

func (s *bucketStore) putBroadcast(ctx context.Context, key string, b *domain.BroadcastRequest) error {
	body, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling broadcast %s: %w", b.BroadcastID, err)
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
		Metadata: map[string]string{
			"broadcast-id": b.BroadcastID,
			"template-id":  b.TemplateID,
		},
	})
	if err != nil {
		return fmt.Errorf("archiving broadcast %s to s3://%s/%s: %w", b.BroadcastID, s.bucket, key, err)
	}
	return nil
}

func (s *bucketStore) getBroadcast(ctx context.Context, key string) (*domain.BroadcastRequest, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("reading s3://%s/%s: %w", s.bucket, key, err)
	}
	defer out.Body.Close()

	var b domain.BroadcastRequest
	if err := json.NewDecoder(out.Body).Decode(&b); err != nil {
		return nil, fmt.Errorf("decoding archived broadcast %s: %w", key, err)
	}
	return &b, nil
}
