// Package lock provides advisory, cross-process file locks built on flock(2).
package lock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"
)

// pollInterval is how often WithLockContext retries a contended lock.
const pollInterval = 100 * time.Millisecond

// Locker runs fn while holding an exclusive lock on path.
type Locker interface {
	WithLock(path string, fn func() error) error
}

// FileLocker implements Locker with flock. The zero value is ready to use.
type FileLocker struct{}

// WithLock satisfies Locker.
func (FileLocker) WithLock(path string, fn func() error) error {
	return WithLock(path, fn)
}

// WithLock creates path if needed, blocks until an exclusive flock is held,
// runs fn and always releases the lock before returning fn's error.
//
// The lock is not re-entrant: taking the same path twice in one process deadlocks.
func WithLock(path string, fn func() error) error {
	f, err := openLockFile(path)
	if err != nil {
		return err
	}
	defer f.Close() //nolint:errcheck // closing releases the lock as well

	if err := flock(f, unix.LOCK_EX); err != nil {
		return fmt.Errorf("acquire lock %s: %w", path, err)
	}
	defer unlock(f)

	return fn()
}

// WithLockContext behaves like WithLock but gives up once ctx is done.
func WithLockContext(ctx context.Context, path string, fn func() error) error {
	f, err := openLockFile(path)
	if err != nil {
		return err
	}
	defer f.Close() //nolint:errcheck // closing releases the lock as well

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		err := flock(f, unix.LOCK_EX|unix.LOCK_NB)
		if err == nil {
			break
		}
		if !errors.Is(err, unix.EWOULDBLOCK) {
			return fmt.Errorf("acquire lock %s: %w", path, err)
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("wait for lock %s: %w", path, ctx.Err())
		case <-ticker.C:
		}
	}
	defer unlock(f)

	return fn()
}

func openLockFile(path string) (*os.File, error) {
	if path == "" {
		return nil, fmt.Errorf("lock path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600) //nolint:gosec // path comes from config
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}
	return f, nil
}

func flock(f *os.File, how int) error {
	for {
		err := unix.Flock(int(f.Fd()), how) //nolint:gosec // fd fits in int
		if !errors.Is(err, unix.EINTR) {
			return err
		}
	}
}

func unlock(f *os.File) {
	_ = unix.Flock(int(f.Fd()), unix.LOCK_UN) //nolint:gosec // fd fits in int
}
