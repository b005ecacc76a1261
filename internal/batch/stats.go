package batch

// Failure is an entry that could not be decoded.
type Failure struct {
	// Index is the position of the task in the slice passed to Process.
	Index int
	Path  string
	Err   error
}

// ProcessStats contains statistics from a batch processing operation.
type ProcessStats struct {
	// Written is the number of entries committed to the sink.
	Written int

	// Skipped is the number of entries skipped (ShouldProcess returned false).
	Skipped int

	// TotalBytes is the sum of decoded sizes for all written entries.
	TotalBytes uint64

	// Failures lists entries whose Load failed, ordered by Index.
	Failures []Failure
}
