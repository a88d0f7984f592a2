// Package job wires the pipeline stages into the four sync jobs and runs
// them, one after another or concurrently.
package job

import (
	"context"
	"fmt"
	"iter"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"wikisync/internal/config"
	"wikisync/internal/metrics"
	"wikisync/internal/mwapi"
	"wikisync/internal/paginate"
	"wikisync/internal/storage"
)

// Error is the failure of one job.
type Error struct {
	Job string
	Err error
}

func (e *Error) Error() string { return fmt.Sprintf("job %s: %v", e.Job, e.Err) }

func (e *Error) Unwrap() error { return e.Err }

// Result summarizes one job run.
type Result struct {
	Job        string
	Table      string
	Pages      int64
	Extracted  int64 // records pulled out of pages
	Skipped    int64 // records deliberately left out, e.g. autoblocks
	Duplicates int64 // rows dropped as repeats within the run
	Rows       int64 // rows handed to the loader
	Inserted   int64 // rows the database reported as inserted
	Batches    int64
	Duration   time.Duration
}

// Opener opens the destination for one table. storage.New satisfies it.
type Opener func(ctx context.Context, cfg storage.Config) (storage.Repository, error)

// Runner runs jobs against one wiki and one destination database.
type Runner struct {
	wiki  Wiki
	store config.StorageConfig
	sync  config.SyncConfig
	runID string
	open  Opener
}

// NewRunner returns a Runner for the given wiki and configuration.
func NewRunner(w Wiki, cfg config.Config) *Runner {
	return &Runner{
		wiki:  w,
		store: cfg.Storage,
		sync:  cfg.Sync,
		runID: uuid.NewString(),
		open:  storage.New,
	}
}

// RunID identifies this process run in logs.
func (r *Runner) RunID() string { return r.runID }

// RunAll runs the named jobs (all jobs when names is empty). Sequential runs
// follow the default job order and stop at the first failure. Parallel runs
// start every job at once; the first failure cancels the rest. Results are
// returned in job order for every job that finished.
func (r *Runner) RunAll(ctx context.Context, names []string, parallel bool) ([]Result, error) {
	selected, err := r.selectSpecs(names)
	if err != nil {
		return nil, err
	}

	if !parallel {
		results := make([]Result, 0, len(selected))
		for _, s := range selected {
			res, err := r.run(ctx, s)
			if err != nil {
				return results, err
			}
			results = append(results, res)
		}
		return results, nil
	}

	var (
		mu   sync.Mutex
		done = make([]*Result, len(selected))
	)
	g, gctx := errgroup.WithContext(ctx)
	for i, s := range selected {
		g.Go(func() error {
			res, err := r.run(gctx, s)
			if err != nil {
				return err
			}
			mu.Lock()
			done[i] = &res
			mu.Unlock()
			return nil
		})
	}
	err = g.Wait()

	results := make([]Result, 0, len(selected))
	for _, res := range done {
		if res != nil {
			results = append(results, *res)
		}
	}
	return results, err
}

// Run runs a single job by name.
func (r *Runner) Run(ctx context.Context, name string) (Result, error) {
	s, ok := Lookup(name)
	if !ok {
		return Result{}, fmt.Errorf("unknown job %q", name)
	}
	return r.run(ctx, s)
}

func (r *Runner) selectSpecs(names []string) ([]Spec, error) {
	if len(names) == 0 {
		return Specs(), nil
	}
	want := map[string]bool{}
	for _, n := range names {
		s, ok := Lookup(n)
		if !ok {
			return nil, fmt.Errorf("unknown job %q", n)
		}
		want[s.Name] = true
	}
	var out []Spec
	for _, s := range specs {
		if want[s.Name] {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *Runner) run(ctx context.Context, s Spec) (Result, error) {
	start := time.Now()
	res, err := r.load(ctx, s)
	res.Duration = time.Since(start)
	metrics.RecordJob(s.Name, err, res.Duration)

	log := logrus.WithFields(logrus.Fields{"job": s.Name, "table": res.Table, "run_id": r.runID})
	if err != nil {
		log.WithError(err).Error("job failed")
		return res, &Error{Job: s.Name, Err: err}
	}
	log.WithFields(logrus.Fields{
		"pages":      res.Pages,
		"extracted":  res.Extracted,
		"skipped":    res.Skipped,
		"duplicates": res.Duplicates,
		"inserted":   res.Inserted,
		"elapsed":    res.Duration.Round(time.Millisecond),
	}).Info("job done")
	return res, nil
}

func (r *Runner) load(ctx context.Context, s Spec) (Result, error) {
	table := r.store.TablePrefix + s.Table.Name
	res := Result{Job: s.Name, Table: table}
	log := logrus.WithFields(logrus.Fields{"job": s.Name, "table": table, "run_id": r.runID})

	plan, err := s.Plan(ctx, r.wiki, r.sync)
	if err != nil {
		return res, fmt.Errorf("plan: %w", err)
	}
	if plan.Empty {
		log.Warn("nothing to fetch")
		return res, nil
	}

	columns := s.Table.ColumnNames()
	repo, err := r.open(ctx, storage.Config{
		Kind:       r.store.Kind,
		DSN:        r.store.DSN,
		Table:      table,
		Columns:    columns,
		KeyColumns: s.Table.Key,
		Policy:     s.Policy(),
	})
	if err != nil {
		return res, fmt.Errorf("open storage: %w", err)
	}
	defer repo.Close()

	if r.store.CreateTables {
		if err := storage.EnsureTable(ctx, r.store.Kind, repo, s.Table, table); err != nil {
			return res, fmt.Errorf("create table: %w", err)
		}
	}

	log.WithField("policy", s.Policy()).Info("job started")

	rows := r.rows(ctx, s, plan, &res)
	var dedup *storage.Dedup
	if s.Policy() == storage.PolicyIgnore {
		dedup = storage.NewDedup(s.Table.KeyIndexes(), r.store.BatchSize)
		rows = dedup.Filter(rows)
	}

	stats, err := storage.LoadBatches(ctx, table, columns, rows, r.store.BatchSize, repo.CopyFrom)
	res.Rows, res.Inserted, res.Batches = stats.Rows, stats.Inserted, stats.Batches
	if dedup != nil {
		res.Duplicates = dedup.Dropped
	}

	metrics.RecordRows(s.Name, "extracted", res.Extracted)
	metrics.RecordRows(s.Name, "skipped", res.Skipped)
	metrics.RecordRows(s.Name, "duplicate", res.Duplicates)
	metrics.RecordRows(s.Name, "inserted", res.Inserted)
	metrics.RecordBatches(s.Name, res.Batches)
	return res, err
}

// rows chains paginate, extract and convert into one lazy row sequence.
func (r *Runner) rows(ctx context.Context, s Spec, plan Plan, res *Result) iter.Seq2[[]any, error] {
	return func(yield func([]any, error) bool) {
		p := paginate.New(timed{req: r.wiki, job: s.Name})

		var pages iter.Seq2[paginate.Page, error]
		if plan.BucketParam != "" {
			pages = p.Bucketed(ctx, plan.Query, plan.BucketParam, plan.Buckets)
		} else {
			pages = p.Pages(ctx, plan.Query)
		}

		for page, err := range pages {
			if err != nil {
				yield(nil, err)
				return
			}
			res.Pages++
			metrics.RecordPage(s.Name)

			items, err := s.Extract(page.Body)
			if err != nil {
				yield(nil, fmt.Errorf("page %d: %w", page.Number, err))
				return
			}
			for it := range items {
				res.Extracted++
				out, keep, err := s.Convert(it)
				if err != nil {
					yield(nil, fmt.Errorf("page %d: %w", page.Number, err))
					return
				}
				if !keep {
					res.Skipped++
					continue
				}
				for _, row := range out {
					if !yield(row, nil) {
						return
					}
				}
			}
		}
	}
}

// timed records the latency of every request made for a job.
type timed struct {
	req paginate.Requester
	job string
}

func (t timed) Request(ctx context.Context, method string, params mwapi.Params) (map[string]any, error) {
	start := time.Now()
	doc, err := t.req.Request(ctx, method, params)
	metrics.RecordRequest(t.job, err, time.Since(start))
	return doc, err
}
