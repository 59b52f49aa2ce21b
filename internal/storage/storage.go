// Package storage defines the run-summary archive and its object layout.
// Implementations live in the local, gcs and memory subpackages.
package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"time"
)

// ErrNotFound is returned by Latest when nothing is stored under a prefix.
var ErrNotFound = errors.New("object not found")

// ContentType is the media type of archived summaries.
const ContentType = "application/json"

// Archive stores run summaries and returns the newest one.
type Archive interface {
	PutObject(ctx context.Context, path, contentType string, r io.Reader) (string, error)
	// Latest returns the lexically greatest object name under prefix and its
	// content.
	Latest(ctx context.Context, prefix string) (string, []byte, error)
}

// SummaryPath lays summaries out as <prefix>/<date>/<run_id>.json. Run ids are
// time-ordered, so the lexical maximum is the newest run.
func SummaryPath(prefix string, at time.Time, runID string) string {
	return path.Join(prefix, at.Format("2006-01-02"), runID+".json")
}

// Nop discards summaries.
type Nop struct{}

// PutObject drains r and reports no location.
func (Nop) PutObject(_ context.Context, _, _ string, r io.Reader) (string, error) {
	_, err := io.Copy(io.Discard, r)
	return "", err
}

// Latest always reports ErrNotFound.
func (Nop) Latest(context.Context, string) (string, []byte, error) {
	return "", nil, ErrNotFound
}
