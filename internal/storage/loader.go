package storage

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/sirupsen/logrus"
)

// CopyFn abstracts a backend's bulk insert. Implementations insert the rows
// (aligned to columns) and return the number of rows actually inserted.
// Repository.CopyFrom satisfies it.
type CopyFn func(ctx context.Context, columns []string, rows [][]any) (int64, error)

// LoadStats summarizes one LoadBatches call.
type LoadStats struct {
	Rows     int64 // rows pulled from the sequence
	Inserted int64 // rows the backend reported as inserted
	Batches  int64 // successful flushes
}

// LoadBatches pulls rows from the sequence, groups them into batches of
// batchSize and calls copyFn for each batch as soon as it fills, so the first
// batch is written before the sequence is exhausted.
//
// An error yielded by the sequence aborts the load without flushing the
// pending batch. A copyFn failure is returned as a *LoadError. Progress is
// logged on each successful flush.
func LoadBatches(
	ctx context.Context,
	table string,
	columns []string,
	rows iter.Seq2[[]any, error],
	batchSize int,
	copyFn CopyFn,
) (LoadStats, error) {
	var stats LoadStats
	if batchSize <= 0 {
		return stats, fmt.Errorf("batchSize must be > 0")
	}
	if copyFn == nil {
		return stats, fmt.Errorf("copyFn must not be nil")
	}

	var (
		batch       = make([][]any, 0, batchSize)
		start       = time.Now()
		lastFlushTS = start
		lastTotal   int64
		log         = logrus.WithField("table", table)
	)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := copyFn(ctx, columns, batch)
		stats.Inserted += n
		batch = batch[:0]

		if err != nil {
			log.WithField("inserted", stats.Inserted).Errorf("loader: copy failed: %v", err)
			return &LoadError{Table: table, Batch: stats.Batches + 1, Err: err}
		}

		stats.Batches++
		now := time.Now()
		sinceLast := now.Sub(lastFlushTS)
		rps := float64(0)
		if sinceLast > 0 {
			rps = float64(stats.Inserted-lastTotal) / sinceLast.Seconds()
		}
		log.WithFields(logrus.Fields{
			"batch":          stats.Batches,
			"rps":            int64(rps),
			"inserted":       n,
			"total_inserted": stats.Inserted,
			"elapsed":        now.Sub(start).Truncate(time.Millisecond),
		}).Info("loader: batch flushed")
		lastFlushTS = now
		lastTotal = stats.Inserted
		return nil
	}

	for row, err := range rows {
		if err != nil {
			return stats, err
		}
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if len(row) != len(columns) {
			return stats, fmt.Errorf("load %s: row has %d values, want %d", table, len(row), len(columns))
		}
		stats.Rows++
		batch = append(batch, row)
		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return stats, err
			}
		}
	}

	if err := flush(); err != nil {
		return stats, err
	}
	log.WithFields(logrus.Fields{
		"rows":           stats.Rows,
		"total_inserted": stats.Inserted,
		"batches":        stats.Batches,
	}).Info("loader: input exhausted")
	return stats, nil
}
