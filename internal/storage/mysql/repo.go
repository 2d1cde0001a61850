// Package mysql writes report tables to MySQL with go-sql-driver/mysql using
// multi-row INSERT statements.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"

	"lodging/internal/ddl"
)

// maxPlaceholders is MySQL's limit on bound parameters per statement.
const maxPlaceholders = 65535

// Config is the MySQL view of storage.Config.
type Config struct {
	DSN     string
	Table   string
	Columns []string
}

// Repository is a MySQL storage.Repository.
type Repository struct {
	db  *sql.DB
	cfg Config
}

// NewRepository parses the DSN, opens and pings. The returned func closes.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	mcfg, err := mysql.ParseDSN(cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("mysql: dsn: %w", err)
	}
	conn, err := mysql.NewConnector(mcfg)
	if err != nil {
		return nil, nil, fmt.Errorf("mysql: connector: %w", err)
	}
	db := sql.OpenDB(conn)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("mysql: ping: %w", err)
	}
	return &Repository{db: db, cfg: cfg}, func() { _ = db.Close() }, nil
}

// Quote backtick-quotes an identifier, doubling embedded backticks.
func Quote(s string) string {
	return "`" + strings.ReplaceAll(s, "`", "``") + "`"
}

// insertSQL renders INSERT ... VALUES (?,..),(?,..) for n rows.
func insertSQL(fqn string, columns []string, n int) string {
	cols := make([]string, len(columns))
	for i, c := range columns {
		cols[i] = Quote(c)
	}
	tuple := "(" + strings.TrimSuffix(strings.Repeat("?,", len(columns)), ",") + ")"
	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES ", ddl.QuoteFQN(fqn, Quote), strings.Join(cols, ","))
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(tuple)
	}
	return b.String()
}

// chunkRows is how many rows fit one statement under maxPlaceholders.
func chunkRows(width int) int {
	if width <= 0 {
		return 0
	}
	return maxPlaceholders / width
}

// CopyFrom inserts rows in one transaction, splitting them into as few
// statements as the placeholder limit allows.
func (r *Repository) CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error) {
	if len(columns) == 0 {
		return 0, fmt.Errorf("mysql: CopyFrom: no columns")
	}
	if len(rows) == 0 {
		return 0, nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("mysql: begin: %w", err)
	}

	var total int64
	step := chunkRows(len(columns))
	for lo := 0; lo < len(rows); lo += step {
		hi := min(lo+step, len(rows))
		args := make([]any, 0, (hi-lo)*len(columns))
		for i := lo; i < hi; i++ {
			if len(rows[i]) != len(columns) {
				_ = tx.Rollback()
				return 0, fmt.Errorf("mysql: row %d has %d values, want %d", i, len(rows[i]), len(columns))
			}
			args = append(args, rows[i]...)
		}
		res, err := tx.ExecContext(ctx, insertSQL(r.cfg.Table, columns, hi-lo), args...)
		if err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("mysql: insert: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("mysql: rows affected: %w", err)
		}
		total += n
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("mysql: commit: %w", err)
	}
	return total, nil
}

// Exec runs a single statement. Blank statements are ignored.
func (r *Repository) Exec(ctx context.Context, stmt string) error {
	if strings.TrimSpace(stmt) == "" {
		return nil
	}
	if _, err := r.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("mysql: exec: %w", err)
	}
	return nil
}
