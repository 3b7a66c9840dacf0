package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/bcdannyboy/cnpricer/logger"
	"github.com/bcdannyboy/cnpricer/solver"
	"github.com/gofrs/uuid"
	"golang.org/x/sync/errgroup"
)

var (
	ErrJobPanicked     = errors.New("job panicked")
	ErrIncompleteBatch = errors.New("incomplete batch")
)

// ResultHandler receives each result as soon as its worker finishes the job.
// Calls are serialized. Returning an error aborts the batch.
type ResultHandler func(JobResult) error

type Processor struct {
	workers int
	opts    ComputeOptions
	log     *slog.Logger
	compute func(Job, ComputeOptions) JobResult
}

type Option func(*Processor)

func WithWorkers(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.workers = n
		}
	}
}

func WithLookup(l solver.Lookup) Option {
	return func(p *Processor) { p.opts.Lookup = l }
}

func WithMaxGridNodes(n int) Option {
	return func(p *Processor) { p.opts.MaxGridNodes = n }
}

func WithLogger(l *slog.Logger) Option {
	return func(p *Processor) {
		if l != nil {
			p.log = l
		}
	}
}

func NewProcessor(opts ...Option) *Processor {
	p := &Processor{
		workers: runtime.NumCPU(),
		log:     logger.Get(),
		compute: ComputeJob,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Processor) Workers() int {
	return p.workers
}

// Range is a half-open [Start, End) slice of a batch.
type Range struct {
	Start int
	End   int
}

// Partition splits n jobs into at most workers contiguous ranges whose sizes
// differ by at most one; the first n%workers ranges carry the extra job.
func Partition(n, workers int) []Range {
	if n <= 0 || workers <= 0 {
		return nil
	}
	workers = min(workers, n)
	size, remainder := n/workers, n%workers

	ranges := make([]Range, workers)
	start := 0
	for i := range ranges {
		end := start + size
		if i < remainder {
			end++
		}
		ranges[i] = Range{Start: start, End: end}
		start = end
	}
	return ranges
}

// RunBatch drains q once and prices every drained job on a pool of goroutines
// created for this call. It blocks until all workers finish. Every drained job
// yields exactly one result; result order across workers is unspecified.
//
// Cancellation of ctx is observed between jobs only; jobs not started when it
// fires are reported as failed with the context's error.
func (p *Processor) RunBatch(ctx context.Context, q *Queue, onResult ResultHandler) ([]JobResult, error) {
	batch := q.Drain()
	if len(batch) == 0 {
		return nil, nil
	}
	return p.run(ctx, batch, onResult)
}

func (p *Processor) run(ctx context.Context, batch []Job, onResult ResultHandler) ([]JobResult, error) {
	batchID := newBatchID()
	ranges := Partition(len(batch), p.workers)
	log := p.log.With(slog.String("batch_id", batchID), slog.Int("jobs", len(batch)), slog.Int("workers", len(ranges)))
	log.Info("batch started")
	start := time.Now()

	var (
		resultMu sync.Mutex
		results  = make([]JobResult, 0, len(batch))
		failed   int
	)
	deliver := func(res JobResult) error {
		resultMu.Lock()
		defer resultMu.Unlock()

		results = append(results, res)
		if res.Failed() {
			failed++
			log.Warn("job failed", slog.String("ticker", res.Ticker), slog.String("option_type", res.OptionType),
				slog.Float64("strike", res.Strike), slog.Int("days", res.Days), slog.Any("error", res.Err))
		}
		if onResult != nil {
			return onResult(res)
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, r := range ranges {
		slice := batch[r.Start:r.End]
		g.Go(func() error {
			for _, job := range slice {
				var res JobResult
				switch {
				case ctx.Err() != nil:
					res = newResult(job)
					res.Err = ctx.Err()
				case gctx.Err() != nil:
					// another worker's handler failed; the batch is already lost
					return nil
				default:
					res = p.computeSafely(job)
				}
				if err := deliver(res); err != nil {
					return fmt.Errorf("result handler: %w", err)
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		log.Error("batch aborted", slog.Any("error", err))
		return results, err
	}
	if len(results) != len(batch) {
		return results, fmt.Errorf("%w: %d results for %d jobs", ErrIncompleteBatch, len(results), len(batch))
	}

	log.Info("batch finished", slog.Int("failed", failed), slog.Duration("elapsed", time.Since(start)))
	return results, nil
}

func (p *Processor) computeSafely(job Job) (res JobResult) {
	defer func() {
		if r := recover(); r != nil {
			res = newResult(job)
			res.Err = fmt.Errorf("%w: %v", ErrJobPanicked, r)
		}
	}()
	return p.compute(job, p.opts)
}

func newBatchID() string {
	id, err := uuid.NewV4()
	if err != nil {
		return "unknown"
	}
	return id.String()
}
