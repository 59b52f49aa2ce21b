// Package memory keeps archived objects in-memory for dry runs and tests.
package memory

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/JakeFAU/review-hub/internal/storage"
)

// BlobStore stores objects in-memory and returns pseudo URIs.
type BlobStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewBlobStore creates a new in-memory store.
func NewBlobStore() *BlobStore {
	return &BlobStore{data: make(map[string][]byte)}
}

// PutObject persists a copy of the content and returns a URI.
func (s *BlobStore) PutObject(_ context.Context, path string, _ string, data io.Reader) (string, error) {
	byteData, err := io.ReadAll(data)
	if err != nil {
		return "", fmt.Errorf("read object data: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[path] = byteData
	return "memory://" + path, nil
}

// Latest returns the lexically greatest object under prefix.
func (s *BlobStore) Latest(_ context.Context, prefix string) (string, []byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var newest string
	for name := range s.data {
		if strings.HasPrefix(name, prefix) && name > newest {
			newest = name
		}
	}
	if newest == "" {
		return "", nil, storage.ErrNotFound
	}
	return newest, append([]byte(nil), s.data[newest]...), nil
}

// Paths lists stored object names in order.
func (s *BlobStore) Paths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.data))
	for name := range s.data {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
