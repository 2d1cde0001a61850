package storage

import (
	"context"
	"errors"
	"log"
	"time"
)

// CopyFn is a backend's bulk insert. It receives rows aligned to columns and
// returns the count it wrote.
type CopyFn func(ctx context.Context, columns []string, rows [][]any) (int64, error)

// LoadBatches drains in, groups rows into batches of batchSize and hands each
// batch to copyFn. It returns the running total and the first error; a
// canceled ctx stops it with ctx.Err(). Every flush logs progress for dest.
func LoadBatches(
	ctx context.Context,
	dest string,
	columns []string,
	in <-chan []any,
	batchSize int,
	copyFn CopyFn,
) (int64, error) {
	if batchSize <= 0 {
		return 0, errors.New("storage: batch size must be > 0")
	}
	if copyFn == nil {
		return 0, errors.New("storage: nil copy function")
	}

	var (
		total   int64
		flushes int
		batch   = make([][]any, 0, batchSize)
		start   = time.Now()
		prev    = start
	)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := copyFn(ctx, columns, batch)
		total += n
		batch = batch[:0]
		if err != nil {
			log.Printf("storage: dest=%s copy failed wrote=%d total=%d err=%v", dest, n, total, err)
			return err
		}
		flushes++
		now := time.Now()
		rps := 0.0
		if d := now.Sub(prev); d > 0 {
			rps = float64(n) / d.Seconds()
		}
		log.Printf("storage: dest=%s batch=%d rows=%d total=%d rps=%.0f elapsed=%s",
			dest, flushes, n, total, rps, now.Sub(start).Truncate(time.Millisecond))
		prev = now
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return total, ctx.Err()
		case row, ok := <-in:
			if !ok {
				if err := flush(); err != nil {
					return total, err
				}
				return total, nil
			}
			batch = append(batch, row)
			if len(batch) == batchSize {
				if err := flush(); err != nil {
					return total, err
				}
			}
		}
	}
}
