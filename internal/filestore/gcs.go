package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"

	"github.com/driveindex/syncd/internal/domain"
	"github.com/driveindex/syncd/internal/jsonenc"
)

// GCSStore is a GCS-backed Store: one JSON object per file descriptor.
type GCSStore struct {
	client *storage.Client
	bucket string
}

// NewGCSStore creates a GCSStore. It assumes the client is authenticated,
// e.g. via GOOGLE_APPLICATION_CREDENTIALS.
func NewGCSStore(ctx context.Context, bucketName string) (*GCSStore, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}
	return &GCSStore{client: client, bucket: bucketName}, nil
}

func (s *GCSStore) objectName(id string) string {
	return fmt.Sprintf("%s.json", id)
}

// Upsert writes fd unconditionally, overwriting any existing object.
func (s *GCSStore) Upsert(ctx context.Context, fd *domain.FileDescriptor) error {
	obj := s.client.Bucket(s.bucket).Object(s.objectName(fd.ID))

	rec := *fd
	rec.SyncedAt = time.Now().UTC()
	data, err := jsonenc.Marshal(&rec)
	if err != nil {
		return fmt.Errorf("marshal file descriptor: %w", err)
	}

	w := obj.NewWriter(ctx)
	if _, err := w.Write(data); err != nil {
		w.Close()
		return fmt.Errorf("write object: %w", err)
	}
	return w.Close()
}

func (s *GCSStore) Get(ctx context.Context, id string) (*domain.FileDescriptor, error) {
	obj := s.client.Bucket(s.bucket).Object(s.objectName(id))

	r, err := obj.NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, domain.ErrFileNotFound
		}
		return nil, fmt.Errorf("read object: %w", err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read object body: %w", err)
	}

	var fd domain.FileDescriptor
	if err := jsonenc.Unmarshal(data, &fd); err != nil {
		return nil, fmt.Errorf("unmarshal file descriptor: %w", err)
	}
	return &fd, nil
}

func (s *GCSStore) Delete(ctx context.Context, id string) error {
	obj := s.client.Bucket(s.bucket).Object(s.objectName(id))
	if err := obj.Delete(ctx); err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return domain.ErrFileNotFound
		}
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

// List scans the bucket for JSON objects and loads them with bounded
// concurrency.
func (s *GCSStore) List(ctx context.Context) ([]*domain.FileDescriptor, error) {
	it := s.client.Bucket(s.bucket).Objects(ctx, nil)

	var objectNames []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list objects: %w", err)
		}
		if strings.HasSuffix(attrs.Name, ".json") {
			objectNames = append(objectNames, attrs.Name)
		}
	}

	var mu sync.Mutex
	var out []*domain.FileDescriptor
	var wg sync.WaitGroup

	semaphore := make(chan struct{}, MaxListConcurrency)

	for _, name := range objectNames {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(objectName string) {
			defer wg.Done()
			defer func() { <-semaphore }()

			obj := s.client.Bucket(s.bucket).Object(objectName)
			r, err := obj.NewReader(ctx)
			if err != nil {
				return
			}
			defer r.Close()

			data, err := io.ReadAll(r)
			if err != nil {
				return
			}

			var fd domain.FileDescriptor
			if err := jsonenc.Unmarshal(data, &fd); err == nil {
				mu.Lock()
				out = append(out, &fd)
				mu.Unlock()
			}
		}(name)
	}

	wg.Wait()
	return out, nil
}

var _ Store = (*GCSStore)(nil)
