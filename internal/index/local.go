package index

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// LocalBackend keeps the index document in a local file. Used by deployments
// that have a writable disk and only want the blob store for image bytes.
type LocalBackend struct {
	path string
	mu   sync.Mutex
}

// NewLocalBackend creates a file backend, ensuring the parent directory
// exists.
func NewLocalBackend(path string) (*LocalBackend, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}
	return &LocalBackend{path: path}, nil
}

func (b *LocalBackend) Load(_ context.Context) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	data, err := os.ReadFile(b.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reading index file: %w", err)
	}
	return data, nil
}

// Save writes the document atomically: a rename replaces the previous
// revision so readers never observe a torn write.
func (b *LocalBackend) Save(_ context.Context, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	tempPath := b.path + ".tmp." + fmt.Sprintf("%d", time.Now().UnixNano())
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("writing temporary index file: %w", err)
	}

	if err := os.Rename(tempPath, b.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("replacing index file: %w", err)
	}
	return nil
}
