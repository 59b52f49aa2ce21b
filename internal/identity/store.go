// Package identity persists the set of review identity keys that have already
// been written to the sink. The backing file holds one key per line and only
// ever grows.
package identity

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/JakeFAU/review-hub/internal/lock"
)

// Store is a line-delimited, append-only key set guarded by a sibling lock file.
type Store struct {
	path string
}

// New returns a Store backed by path. The file is created lazily.
func New(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Load reads every known key. A missing file is an empty set.
func (s *Store) Load() (map[string]struct{}, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]struct{}{}, nil
		}
		return nil, fmt.Errorf("open identity store: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only

	keys := make(map[string]struct{})
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		keys[line] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan identity store: %w", err)
	}
	return keys, nil
}

// Count returns the number of distinct keys on disk.
func (s *Store) Count() (int, error) {
	keys, err := s.Load()
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

// AddMany appends the keys that are not yet stored and returns how many were
// added. The file is re-read under the lock so concurrent writers never
// duplicate a key.
func (s *Store) AddMany(keys []string) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	added := 0
	err := lock.WithLock(s.path+".lock", func() error {
		if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
			return fmt.Errorf("create identity store dir: %w", err)
		}
		current, err := s.Load()
		if err != nil {
			return err
		}
		f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return fmt.Errorf("open identity store for append: %w", err)
		}
		defer f.Close() //nolint:errcheck // Sync reports write errors

		w := bufio.NewWriter(f)
		for _, key := range keys {
			key = strings.TrimSpace(key)
			if key == "" {
				continue
			}
			if _, ok := current[key]; ok {
				continue
			}
			current[key] = struct{}{}
			if _, err := w.WriteString(key + "\n"); err != nil {
				return fmt.Errorf("append identity key: %w", err)
			}
			added++
		}
		if err := w.Flush(); err != nil {
			return fmt.Errorf("flush identity store: %w", err)
		}
		if err := f.Sync(); err != nil {
			return fmt.Errorf("sync identity store: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return added, nil
}
