// AngelaMos | 2026
// storage.go

package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/carterperez-dev/bookshelf/internal/config"
)

// SignedURLExpiry is how long a read link handed to a client stays valid.
const SignedURLExpiry = time.Hour

var ErrObjectNotFound = errors.New("object not found")

// ObjectStore is the subset of S3 semantics the library needs.
type ObjectStore interface {
	Put(
		ctx context.Context,
		bucket, key string,
		r io.Reader,
		size int64,
		contentType string,
	) error
	PresignGet(
		ctx context.Context,
		bucket, key string,
		expiry time.Duration,
	) (string, error)
	Delete(ctx context.Context, bucket, key string) error
	EnsureBucket(ctx context.Context, bucket string) error
	Ping(ctx context.Context) error
}

type Buckets struct {
	Books  string
	Covers string
}

func BucketsFromConfig(cfg config.StorageConfig) Buckets {
	return Buckets{
		Books:  cfg.BooksBucket,
		Covers: cfg.CoversBucket,
	}
}

// New builds the configured store and makes sure both buckets exist.
func New(ctx context.Context, cfg config.StorageConfig) (ObjectStore, error) {
	var (
		store ObjectStore
		err   error
	)

	switch cfg.Driver {
	case "minio":
		store, err = NewMinioStore(cfg)
	case "s3":
		store, err = NewS3Store(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	for _, bucket := range []string{cfg.BooksBucket, cfg.CoversBucket} {
		if err := store.EnsureBucket(ctx, bucket); err != nil {
			return nil, fmt.Errorf("ensure bucket %s: %w", bucket, err)
		}
	}

	return store, nil
}

// ObjectKey builds "<prefix>/<id>/<sanitized filename>".
func ObjectKey(prefix, id, filename string) string {
	return path.Join(prefix, id, SafeFilename(filename))
}

func SafeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base(name)
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == "/" {
		return "file"
	}

	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
