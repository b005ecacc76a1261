// Package batch writes decoded entries to a sink with bounded concurrency.
package batch

import "io"

// Sink receives decoded file content during batch processing.
type Sink interface {
	// ShouldProcess returns false if the entry at path should be skipped.
	ShouldProcess(path string) bool

	// Writer returns a writer for the content at path.
	// The returned Committer must have Commit() called after a successful
	// write, or Discard() called on any error.
	Writer(path string) (Committer, error)
}

// Committer is a writer that can be committed or discarded.
//
// Implementations should stage writes until Commit is called.
type Committer interface {
	io.Writer

	// Commit finalizes the write, making content available.
	Commit() error

	// Discard aborts the write and cleans up any temporary resources.
	Discard() error
}
