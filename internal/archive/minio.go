package archive

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/dooshek/polyvoice/internal/logger"
	"github.com/dooshek/polyvoice/internal/types"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioStore uploads to an S3-compatible bucket
type MinioStore struct {
	client *minio.Client
	bucket string
	now    func() time.Time
}

// NewMinioStore connects and makes sure the bucket exists, creating it when
// missing
func NewMinioStore(ctx context.Context, cfg types.MinioConfig) (*MinioStore, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("minio archive needs an endpoint and a bucket")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init S3 client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		logger.Infof("Creating archive bucket %q", cfg.Bucket)
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %q: %w", cfg.Bucket, err)
		}
	}

	return &MinioStore{client: client, bucket: cfg.Bucket, now: time.Now}, nil
}

func (s *MinioStore) Put(ctx context.Context, obj Object) (string, error) {
	ext, contentType := Sniff(obj.Data)
	now := s.now()
	key := NewKey(now, ext)

	meta := map[string]string{"generated-at": now.Format(time.RFC3339)}
	for k, v := range obj.Metadata {
		meta[k] = v
	}

	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(obj.Data), int64(len(obj.Data)), minio.PutObjectOptions{
		ContentType:  contentType,
		UserMetadata: meta,
	})
	if err != nil {
		return "", fmt.Errorf("upload failed: %w", err)
	}

	logger.Debugf("Uploaded %d bytes to s3://%s/%s", len(obj.Data), s.bucket, key)
	return key, nil
}

func (s *MinioStore) Name() string {
	return BackendMinio
}
