package storage

import (
	"context"
	"fmt"

	"lodging/internal/ddl"
	"lodging/internal/table"
)

// Dialect is the DDL side of a backend.
type Dialect struct {
	MapType     ddl.TypeMapper
	CreateTable func(ddl.TableDef) string
}

var dialects = map[string]Dialect{}

// RegisterDDL registers the dialect used by EnsureTable for kind.
func RegisterDDL(kind string, d Dialect) {
	mu.Lock()
	defer mu.Unlock()
	dialects[kind] = d
}

// CreateStatement renders the CREATE TABLE statement kind would run for t.
func CreateStatement(kind, fqn string, t *table.Table) (string, error) {
	mu.RLock()
	d, ok := dialects[kind]
	mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("storage: no DDL dialect for kind %q", kind)
	}
	td, err := ddl.FromTable(fqn, t, d.MapType)
	if err != nil {
		return "", err
	}
	return d.CreateTable(td), nil
}

// EnsureTable creates fqn shaped like t if it does not exist.
func EnsureTable(ctx context.Context, kind string, repo Repository, fqn string, t *table.Table) error {
	stmt, err := CreateStatement(kind, fqn, t)
	if err != nil {
		return err
	}
	if err := repo.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("storage: create %s: %w", fqn, err)
	}
	return nil
}
