// AngelaMos | 2026
// memory.go

// Package storagetest provides an in-memory ObjectStore for tests.
package storagetest

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/carterperez-dev/bookshelf/internal/storage"
)

type Object struct {
	Data        []byte
	ContentType string
}

type MemoryStore struct {
	mu      sync.Mutex
	objects map[string]Object
	buckets map[string]bool

	// While set, matching calls return these errors. FailPutBucket limits
	// FailPut to one bucket.
	FailPut       error
	FailPutBucket string
	FailDelete    error
	FailPing      error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		objects: make(map[string]Object),
		buckets: make(map[string]bool),
	}
}

func (m *MemoryStore) Put(
	_ context.Context,
	bucket, key string,
	r io.Reader,
	_ int64,
	contentType string,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailPut != nil && (m.FailPutBucket == "" || m.FailPutBucket == bucket) {
		return m.FailPut
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read object: %w", err)
	}

	m.objects[bucket+"/"+key] = Object{Data: data, ContentType: contentType}
	return nil
}

func (m *MemoryStore) PresignGet(
	_ context.Context,
	bucket, key string,
	expiry time.Duration,
) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.objects[bucket+"/"+key]; !ok {
		return "", storage.ErrObjectNotFound
	}

	return fmt.Sprintf(
		"https://storage.test/%s/%s?expires=%d",
		bucket,
		key,
		int(expiry.Seconds()),
	), nil
}

func (m *MemoryStore) Delete(_ context.Context, bucket, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailDelete != nil {
		return m.FailDelete
	}

	delete(m.objects, bucket+"/"+key)
	return nil
}

func (m *MemoryStore) EnsureBucket(_ context.Context, bucket string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.buckets[bucket] = true
	return nil
}

func (m *MemoryStore) Ping(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.FailPing
}

func (m *MemoryStore) Has(bucket, key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.objects[bucket+"/"+key]
	return ok
}

func (m *MemoryStore) Get(bucket, key string) (Object, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	obj, ok := m.objects[bucket+"/"+key]
	return obj, ok
}

func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.objects)
}

var _ storage.ObjectStore = (*MemoryStore)(nil)
