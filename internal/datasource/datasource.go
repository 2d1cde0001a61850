// Package datasource defines where raw delimited bytes come from. The loader
// only sees a Source; file and httpds provide the local and remote variants.
package datasource

import (
	"context"
	"io"
)

// Source opens a fresh stream of the underlying dataset. Callers close the
// returned reader. Errors that mean "the data cannot be reached" wrap
// table.ErrSourceUnavailable.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

// Identity is implemented by sources that can name themselves. The loader
// uses it as the memoization key together with the delimiter.
type Identity interface {
	ID() string
}
