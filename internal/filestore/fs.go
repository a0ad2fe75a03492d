package filestore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/driveindex/syncd/internal/domain"
	"github.com/driveindex/syncd/internal/jsonenc"
)

// FSStore is a local-filesystem-backed Store: one JSON file per file
// descriptor.
type FSStore struct {
	baseDir string
	mu      sync.RWMutex
}

// NewFSStore creates an FSStore rooted at baseDir, creating it if absent.
func NewFSStore(baseDir string) (*FSStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("create base directory: %w", err)
	}
	return &FSStore{baseDir: baseDir}, nil
}

func (s *FSStore) path(id string) string {
	return filepath.Join(s.baseDir, fmt.Sprintf("%s.json", id))
}

func (s *FSStore) Upsert(ctx context.Context, fd *domain.FileDescriptor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := *fd
	rec.SyncedAt = time.Now().UTC()
	data, err := jsonenc.Marshal(&rec)
	if err != nil {
		return fmt.Errorf("marshal file descriptor: %w", err)
	}
	if err := os.WriteFile(s.path(fd.ID), data, 0644); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	return nil
}

func (s *FSStore) Get(ctx context.Context, id string) (*domain.FileDescriptor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrFileNotFound
		}
		return nil, fmt.Errorf("read file: %w", err)
	}

	var fd domain.FileDescriptor
	if err := jsonenc.Unmarshal(data, &fd); err != nil {
		return nil, fmt.Errorf("unmarshal file descriptor: %w", err)
	}
	return &fd, nil
}

func (s *FSStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path(id)); err != nil {
		if os.IsNotExist(err) {
			return domain.ErrFileNotFound
		}
		return fmt.Errorf("remove file: %w", err)
	}
	return nil
}

// List scans the directory for JSON files and loads them with bounded
// concurrency.
func (s *FSStore) List(ctx context.Context) ([]*domain.FileDescriptor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, fmt.Errorf("read directory: %w", err)
	}

	var mu sync.Mutex
	var out []*domain.FileDescriptor
	var wg sync.WaitGroup

	semaphore := make(chan struct{}, MaxListConcurrency)

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		wg.Add(1)
		semaphore <- struct{}{}

		go func(filename string) {
			defer wg.Done()
			defer func() { <-semaphore }()

			data, err := os.ReadFile(filepath.Join(s.baseDir, filename))
			if err != nil {
				return
			}

			var fd domain.FileDescriptor
			if err := jsonenc.Unmarshal(data, &fd); err == nil {
				mu.Lock()
				out = append(out, &fd)
				mu.Unlock()
			}
		}(entry.Name())
	}

	wg.Wait()
	return out, nil
}

var _ Store = (*FSStore)(nil)
