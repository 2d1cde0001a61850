// Package file implements a local filesystem-backed data source.
package file

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"lodging/internal/table"
)

// Local is a filesystem data source that opens files from the local disk.
type Local struct{ path string }

// NewLocal returns a new Local data source bound to the provided filesystem
// path. Every Open reopens the file, so a Local may be shared between
// goroutines.
func NewLocal(path string) *Local { return &Local{path: path} }

// ID returns the path; it identifies the source for the session cache.
func (l *Local) ID() string { return l.path }

// Open opens the configured path for reading.
//
// A canceled context short-circuits before touching the filesystem. Any
// failure to open is table.ErrSourceUnavailable, with the *fs.PathError still
// reachable through errors.As.
func (l *Local) Open(ctx context.Context) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", l.path, errors.Join(table.ErrSourceUnavailable, err))
	}
	st, err := f.Stat()
	if err == nil && st.IsDir() {
		_ = f.Close()
		return nil, fmt.Errorf("open %s: is a directory: %w", l.path, table.ErrSourceUnavailable)
	}
	return f, nil
}
