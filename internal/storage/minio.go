// AngelaMos | 2026
// minio.go

package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/carterperez-dev/bookshelf/internal/config"
)

type MinioStore struct {
	client     *minio.Client
	region     string
	pingBucket string
}

func NewMinioStore(cfg config.StorageConfig) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}

	return &MinioStore{
		client:     client,
		region:     cfg.Region,
		pingBucket: cfg.BooksBucket,
	}, nil
}

func (m *MinioStore) Put(
	ctx context.Context,
	bucket, key string,
	r io.Reader,
	size int64,
	contentType string,
) error {
	_, err := m.client.PutObject(ctx, bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	return nil
}

func (m *MinioStore) PresignGet(
	ctx context.Context,
	bucket, key string,
	expiry time.Duration,
) (string, error) {
	u, err := m.client.PresignedGetObject(ctx, bucket, key, expiry, nil)
	if err != nil {
		return "", fmt.Errorf("presign get: %w", err)
	}
	return u.String(), nil
}

func (m *MinioStore) Delete(ctx context.Context, bucket, key string) error {
	err := m.client.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{})
	if err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

func (m *MinioStore) EnsureBucket(ctx context.Context, bucket string) error {
	exists, err := m.client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	if exists {
		return nil
	}

	err = m.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: m.region})
	if err != nil {
		return fmt.Errorf("create bucket: %w", err)
	}
	return nil
}

func (m *MinioStore) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := m.client.BucketExists(pingCtx, m.pingBucket); err != nil {
		return fmt.Errorf("storage ping failed: %w", err)
	}
	return nil
}

var _ ObjectStore = (*MinioStore)(nil)
