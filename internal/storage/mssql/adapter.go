package mssql

import (
	"context"
	"fmt"
	"strings"

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

// MapType maps report kinds to SQL Server column types.
func MapType(k table.Kind) string {
	switch k {
	case table.Float:
		return "FLOAT"
	case table.String:
		return "NVARCHAR(MAX)"
	}
	return ""
}

// CreateTable renders a CREATE TABLE guarded by OBJECT_ID, since SQL Server
// has no IF NOT EXISTS form.
func CreateTable(td ddl.TableDef) string {
	fqn := ddl.QuoteFQN(td.FQN, Quote)
	return fmt.Sprintf("IF OBJECT_ID(N'%s', N'U') IS NULL\nCREATE TABLE %s %s;",
		strings.ReplaceAll(fqn, "'", "''"), fqn, ddl.ColumnList(td, Quote))
}

func init() {
	storage.Register("mssql", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		r, closeFn, err := newRepository(ctx, Config{DSN: cfg.DSN, Table: cfg.Table, Columns: cfg.Columns})
		if err != nil {
			return nil, err
		}
		return &wrappedRepo{Repository: r, closeFn: closeFn}, nil
	})
	storage.RegisterDDL("mssql", storage.Dialect{MapType: MapType, CreateTable: CreateTable})
}
