//go:generate flatc --go --go-namespace fb -o internal schema/index.fbs

// Package unpkg recovers the JavaScript sources embedded in self-contained
// executables produced by a Node.js packager.
//
// A packaged executable is a host binary followed by a payload region
// delimited by two sentinel sequences. The region starts with a fixed-size
// header that points at a bundle index, a tree of directories and files
// whose leaves locate each file's stored (possibly compressed) bytes.
//
// # Quick Start
//
// Open a binary and iterate its files:
//
//	s, err := unpkg.Open("./app")
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//
//	var tally unpkg.Tally
//	for entry, err := range s.Entries() {
//	    tally.Record(err)
//	    if err != nil {
//	        continue
//	    }
//	    fmt.Println(entry.Path, len(entry.Content))
//	}
//
// Or write everything beneath a directory:
//
//	stats, err := s.CopyDir(ctx, "./recovered")
//
// # Errors
//
// Failures that prevent any extraction ([ErrSentinelNotFound],
// [ErrHeaderOutOfBounds], [ErrIndexCorrupt], ...) are returned by [Open] and
// [New] as a [*FormatError] carrying the container offset where parsing
// stopped. Failures scoped to one file ([ErrUnsafePath], [ErrDuplicatePath],
// [ErrEntryRangeInvalid], [ErrDecompressionFailed]) are yielded by
// [Session.Entries] as an [*EntryError] and never end the iteration.
package unpkg
