// Package ddl derives backend-neutral table definitions from report tables and
// renders the column list of a CREATE TABLE statement. Dialects supply the
// type mapping and identifier quoting.
package ddl

import (
	"fmt"
	"strings"

	"lodging/internal/table"
)

// ColumnDef describes one destination column.
type ColumnDef struct {
	Name     string
	SQLType  string
	Nullable bool
}

// TableDef is a destination table: a possibly schema-qualified name and its
// ordered columns.
type TableDef struct {
	FQN     string
	Columns []ColumnDef
}

// TypeMapper maps a column kind to a dialect's SQL type.
type TypeMapper func(table.Kind) string

// Quoter quotes a single identifier for a dialect.
type Quoter func(string) string

// FromTable builds a TableDef named fqn whose columns mirror t. Every column
// is nullable since any report cell may be missing.
func FromTable(fqn string, t *table.Table, mapType TypeMapper) (TableDef, error) {
	if strings.TrimSpace(fqn) == "" {
		return TableDef{}, fmt.Errorf("ddl: table name must not be empty")
	}
	if t == nil || t.Width() == 0 {
		return TableDef{}, fmt.Errorf("ddl: %s: no columns", fqn)
	}
	td := TableDef{FQN: fqn}
	for _, c := range t.Columns() {
		typ := mapType(c.Kind)
		if typ == "" {
			return TableDef{}, fmt.Errorf("ddl: %s.%s: no SQL type for kind %s", fqn, c.Name, c.Kind)
		}
		td.Columns = append(td.Columns, ColumnDef{Name: c.Name, SQLType: typ, Nullable: true})
	}
	return td, nil
}

// QuoteFQN quotes each dot-separated part of a table name.
func QuoteFQN(fqn string, quote Quoter) string {
	parts := strings.Split(fqn, ".")
	for i, p := range parts {
		parts[i] = quote(p)
	}
	return strings.Join(parts, ".")
}

// ColumnList renders "(\n  a TYPE NULL,\n  b TYPE NOT NULL\n)".
func ColumnList(td TableDef, quote Quoter) string {
	var b strings.Builder
	b.WriteString("(\n")
	for i, c := range td.Columns {
		b.WriteString("  ")
		b.WriteString(quote(c.Name))
		b.WriteByte(' ')
		b.WriteString(c.SQLType)
		if c.Nullable {
			b.WriteString(" NULL")
		} else {
			b.WriteString(" NOT NULL")
		}
		if i < len(td.Columns)-1 {
			b.WriteByte(',')
		}
		b.WriteByte('\n')
	}
	b.WriteString(")")
	return b.String()
}

// CreateIfNotExists renders the CREATE TABLE IF NOT EXISTS form shared by
// SQLite, Postgres and MySQL.
func CreateIfNotExists(td TableDef, quote Quoter) string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s %s;", QuoteFQN(td.FQN, quote), ColumnList(td, quote))
}

// DoubleQuote is the ANSI identifier quote used by SQLite and Postgres.
func DoubleQuote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
