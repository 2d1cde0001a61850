package sqlite

import (
	"context"

	"lodging/internal/ddl"
	"lodging/internal/storage"
	"lodging/internal/table"
)

// newRepository is swapped by tests to avoid opening a database.
var newRepository = NewRepository

type wrappedRepo struct {
	*Repository
	closeFn func()
}

var _ storage.Repository = (*wrappedRepo)(nil)

func (w *wrappedRepo) Close() {
	if w.closeFn != nil {
		w.closeFn()
	}
}

// MapType maps report kinds to SQLite storage classes.
func MapType(k table.Kind) string {
	switch k {
	case table.Float:
		return "REAL"
	case table.String:
		return "TEXT"
	}
	return ""
}

func init() {
	storage.Register("sqlite", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		r, closeFn, err := newRepository(ctx, Config{DSN: cfg.DSN, Table: cfg.Table, Columns: cfg.Columns})
		if err != nil {
			return nil, err
		}
		return &wrappedRepo{Repository: r, closeFn: closeFn}, nil
	})
	storage.RegisterDDL("sqlite", storage.Dialect{
		MapType: MapType,
		CreateTable: func(td ddl.TableDef) string {
			return ddl.CreateIfNotExists(td, ddl.DoubleQuote)
		},
	})
}
