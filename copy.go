package unpkg

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/meigma/unpkg/internal/batch"
)

// CopyOption configures CopyDir.
type CopyOption func(*copyConfig)

type copyConfig struct {
	overwrite      bool
	directWrites   bool
	fileMode       fs.FileMode
	workers        int
	readAheadBytes uint64
	logger         *slog.Logger
}

// log returns the logger, falling back to a discard logger if nil.
func (c *copyConfig) log() *slog.Logger {
	if c.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.logger
}

// CopyWithOverwrite allows overwriting existing files.
// By default, existing files are skipped.
func CopyWithOverwrite(overwrite bool) CopyOption {
	return func(c *copyConfig) {
		c.overwrite = overwrite
	}
}

// CopyWithDirectWrites writes files in place instead of renaming a
// temporary file into position.
func CopyWithDirectWrites(enabled bool) CopyOption {
	return func(c *copyConfig) {
		c.directWrites = enabled
	}
}

// CopyWithFileMode sets the permission bits of written files (default 0o644).
func CopyWithFileMode(mode fs.FileMode) CopyOption {
	return func(c *copyConfig) {
		c.fileMode = mode
	}
}

// CopyWithWorkers sets the number of workers for parallel decoding.
// Values < 0 force serial processing. Zero uses GOMAXPROCS.
func CopyWithWorkers(n int) CopyOption {
	return func(c *copyConfig) {
		c.workers = n
	}
}

// CopyWithReadAheadBytes caps the stored bytes being decoded at once.
// A value of 0 disables the budget.
func CopyWithReadAheadBytes(limit uint64) CopyOption {
	return func(c *copyConfig) {
		c.readAheadBytes = limit
	}
}

// CopyWithLogger sets the logger for copy operations.
// If not set, logging is disabled.
func CopyWithLogger(logger *slog.Logger) CopyOption {
	return func(c *copyConfig) {
		c.logger = logger
	}
}

// CopyStats summarizes a CopyDir run.
type CopyStats struct {
	// Tally holds the per-entry outcomes in index order. Skipped files are
	// not counted.
	Tally Tally

	// Written is the number of files written to the destination.
	Written int

	// Skipped is the number of files left untouched because they already existed.
	Skipped int

	// TotalBytes is the sum of decoded sizes for all written files.
	TotalBytes uint64
}

// CopyDir decodes every declared file and writes it beneath destDir.
//
// Files are written atomically using temp files and renames, and parent
// directories are created as needed. All writes go through an os.Root opened
// on destDir. Entry failures are recorded in the returned Tally and do not
// stop the copy; filesystem failures do.
func (s *Session) CopyDir(ctx context.Context, destDir string, opts ...CopyOption) (CopyStats, error) {
	var stats CopyStats
	if s.data == nil {
		return stats, ErrClosed
	}

	cfg := copyConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	sinkOpts := []batch.FileSinkOption{
		batch.WithOverwrite(cfg.overwrite),
		batch.WithDirectWrites(cfg.directWrites),
	}
	if cfg.fileMode != 0 {
		sinkOpts = append(sinkOpts, batch.WithFileMode(cfg.fileMode))
	}
	sink, err := batch.NewFileSink(destDir, sinkOpts...)
	if err != nil {
		return stats, err
	}
	defer sink.Close()

	// taskOf maps each record to its task, or to -1 when the index
	// already rejected it.
	taskOf := make([]int, 0, s.index.Len())
	tasks := make([]batch.Task, 0, s.index.Valid())
	for r := range s.index.Records() {
		if r.Err != nil {
			taskOf = append(taskOf, -1)
			continue
		}
		taskOf = append(taskOf, len(tasks))
		tasks = append(tasks, batch.Task{
			Path: r.Entry.Path,
			Size: r.Entry.DataLength,
			Load: func() ([]byte, error) { return s.extract(r.Entry) },
		})
	}

	proc := batch.NewProcessor(
		batch.WithWorkers(cfg.workers),
		batch.WithReadAheadBytes(cfg.readAheadBytes),
		batch.WithProcessorLogger(cfg.logger),
	)
	pstats, procErr := proc.Process(ctx, tasks, sink)

	failed := make(map[int]error, len(pstats.Failures))
	for _, f := range pstats.Failures {
		failed[f.Index] = f.Err
	}
	for i := range s.index.Len() {
		r := s.index.Record(i)
		t := taskOf[i]
		switch {
		case t < 0:
			cfg.log().Warn("entry rejected", "path", r.Entry.Path, "error", r.Err)
			stats.Tally.Record(&EntryError{Path: r.Entry.Path, Err: r.Err})
		case failed[t] != nil:
			stats.Tally.Record(&EntryError{Path: r.Entry.Path, Err: failed[t]})
		}
	}
	stats.Tally.Succeeded = pstats.Written
	stats.Written = pstats.Written
	stats.Skipped = pstats.Skipped
	stats.TotalBytes = pstats.TotalBytes

	if procErr != nil {
		return stats, fmt.Errorf("copy to %s: %w", destDir, procErr)
	}
	cfg.log().Info("copy complete",
		"dest", destDir,
		"written", stats.Written,
		"skipped", stats.Skipped,
		"failed", stats.Tally.Failed,
		"bytes", stats.TotalBytes,
	)
	return stats, nil
}
