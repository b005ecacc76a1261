package batch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/meigma/unpkg/internal/pkgtype"
	"github.com/meigma/unpkg/internal/sizing"
)

// Task is one entry to decode and write.
type Task struct {
	// Path is the slash-separated destination path.
	Path string

	// Size is the stored size of the entry, charged against the read-ahead budget.
	Size uint64

	// Load returns the decoded content. A Load error is recorded as a
	// Failure and does not stop the batch.
	Load func() ([]byte, error)
}

// Processor decodes tasks concurrently and writes them to a Sink.
type Processor struct {
	workers        int // 0 = GOMAXPROCS, <0 = serial, >0 = fixed count
	readAheadBytes uint64
	logger         *slog.Logger
}

// log returns the logger, falling back to a discard logger if nil.
func (p *Processor) log() *slog.Logger {
	if p.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return p.logger
}

// ProcessorOption configures a Processor.
type ProcessorOption func(*Processor)

// WithWorkers sets the number of workers for parallel processing.
// Values < 0 force serial processing. Zero uses GOMAXPROCS.
func WithWorkers(n int) ProcessorOption {
	return func(p *Processor) {
		p.workers = n
	}
}

// WithReadAheadBytes caps the total stored size of entries being decoded at
// once. A value of 0 disables the byte budget.
func WithReadAheadBytes(limit uint64) ProcessorOption {
	return func(p *Processor) {
		p.readAheadBytes = limit
	}
}

// WithProcessorLogger sets the logger for batch processing operations.
// If not set, logging is disabled.
func WithProcessorLogger(logger *slog.Logger) ProcessorOption {
	return func(p *Processor) {
		p.logger = logger
	}
}

// NewProcessor creates a new batch processor.
func NewProcessor(opts ...ProcessorOption) *Processor {
	p := &Processor{}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process decodes every task and writes the result to sink.
//
// Tasks rejected by sink.ShouldProcess are skipped without being decoded.
// Load failures are collected in the returned stats. Sink failures and
// context cancellation stop processing and are returned as the error.
func (p *Processor) Process(ctx context.Context, tasks []Task, sink Sink) (ProcessStats, error) {
	var (
		mu    sync.Mutex
		stats ProcessStats
	)
	if len(tasks) == 0 {
		return stats, nil
	}

	var budget *semaphore.Weighted
	var limit int64
	if p.readAheadBytes > 0 {
		l, err := sizing.ToInt(p.readAheadBytes, pkgtype.ErrSizeOverflow)
		if err != nil {
			return stats, fmt.Errorf("batch: %w", err)
		}
		limit = int64(l)
		budget = semaphore.NewWeighted(limit)
	}

	workers := p.workerCount(len(tasks))
	p.log().Debug("batch processing", "entries", len(tasks), "workers", workers)

	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for i, task := range tasks {
		if !sink.ShouldProcess(task.Path) {
			stats.Skipped++
			p.log().Debug("skipping existing file", "path", task.Path)
			continue
		}

		// An entry larger than the whole budget takes all of it.
		weight := min(int64(min(task.Size, uint64(1)<<62)), limit) //nolint:gosec // clamped
		if budget != nil {
			if err := budget.Acquire(gctx, weight); err != nil {
				break
			}
		}
		eg.Go(func() error {
			if budget != nil {
				defer budget.Release(weight)
			}
			if err := gctx.Err(); err != nil {
				return err
			}

			content, err := task.Load()
			if err != nil {
				p.log().Warn("entry failed", "path", task.Path, "error", err)
				mu.Lock()
				stats.Failures = append(stats.Failures, Failure{Index: i, Path: task.Path, Err: err})
				mu.Unlock()
				return nil
			}
			if err := write(sink, task.Path, content); err != nil {
				return fmt.Errorf("batch: %s: %w", task.Path, err)
			}

			mu.Lock()
			stats.Written++
			stats.TotalBytes += uint64(len(content))
			mu.Unlock()
			return nil
		})
	}

	err := eg.Wait()
	if err == nil {
		err = ctx.Err()
	}
	slices.SortFunc(stats.Failures, func(a, b Failure) int { return a.Index - b.Index })
	return stats, err
}

// write stores content at path through a committer.
func write(sink Sink, path string, content []byte) error {
	w, err := sink.Writer(path)
	if err != nil {
		return err
	}
	if err := writeAll(w, content); err != nil {
		_ = w.Discard() //nolint:errcheck // best-effort cleanup
		return err
	}
	if err := w.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// workerCount determines the number of workers to use for n tasks.
func (p *Processor) workerCount(n int) int {
	workers := p.workers
	switch {
	case workers < 0:
		return 1
	case workers == 0:
		workers = runtime.GOMAXPROCS(0)
	}
	return max(1, min(workers, n))
}

// writeAll writes all data to w, handling partial writes.
func writeAll(w io.Writer, data []byte) error {
	for len(data) > 0 {
		n, err := w.Write(data)
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
		data = data[n:]
	}
	return nil
}
