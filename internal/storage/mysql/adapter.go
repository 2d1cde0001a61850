package mysql

import (
	"context"

	"lodging/internal/ddl"
	"lodging/internal/storage"
	"lodging/internal/table"
)

// newRepository is swapped by tests to avoid a live server.
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

// MapType maps report kinds to MySQL column types.
func MapType(k table.Kind) string {
	switch k {
	case table.Float:
		return "DOUBLE"
	case table.String:
		return "TEXT"
	}
	return ""
}

func init() {
	storage.Register("mysql", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		r, closeFn, err := newRepository(ctx, Config{DSN: cfg.DSN, Table: cfg.Table, Columns: cfg.Columns})
		if err != nil {
			return nil, err
		}
		return &wrappedRepo{Repository: r, closeFn: closeFn}, nil
	})
	storage.RegisterDDL("mysql", storage.Dialect{
		MapType: MapType,
		CreateTable: func(td ddl.TableDef) string {
			return ddl.CreateIfNotExists(td, Quote)
		},
	})
}
