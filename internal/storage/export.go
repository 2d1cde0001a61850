package storage

import (
	"context"
	"fmt"
	"log"

	"golang.org/x/sync/errgroup"

	"lodging/internal/config"
	"lodging/internal/metrics"
	"lodging/internal/table"
)

// Write copies t into the table prefix+name of the database cfg points at,
// creating it first when cfg.AutoCreateTable is set. Rows are streamed
// through LoadBatches in cfg.BatchSize chunks.
func Write(ctx context.Context, cfg config.Storage, name string, t *table.Table) (n int64, err error) {
	defer func() { metrics.RecordExport(cfg.Kind, err) }()

	dest := cfg.TablePrefix + name
	repo, err := New(ctx, Config{Kind: cfg.Kind, DSN: cfg.DSN, Table: dest, Columns: t.Names()})
	if err != nil {
		return 0, err
	}
	defer repo.Close()

	if cfg.AutoCreateTable {
		if err := EnsureTable(ctx, cfg.Kind, repo, dest, t); err != nil {
			return 0, err
		}
	}

	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 1000
	}

	g, gctx := errgroup.WithContext(ctx)
	rows := make(chan []any, batch)
	g.Go(func() error {
		defer close(rows)
		for i := 0; i < t.Len(); i++ {
			select {
			case rows <- []any(t.Row(i)):
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})
	g.Go(func() error {
		var err error
		n, err = LoadBatches(gctx, dest, t.Names(), rows, batch, repo.CopyFrom)
		return err
	})
	if err := g.Wait(); err != nil {
		return n, fmt.Errorf("storage: write %s: %w", dest, err)
	}
	return n, nil
}

// WriteAll writes every table in order and stops at the first failure.
func WriteAll(ctx context.Context, cfg config.Storage, tables []table.Named) error {
	for _, nt := range tables {
		n, err := Write(ctx, cfg, nt.Name, nt.Table)
		if err != nil {
			return err
		}
		log.Printf("storage: kind=%s table=%s%s rows=%d", cfg.Kind, cfg.TablePrefix, nt.Name, n)
	}
	return nil
}
