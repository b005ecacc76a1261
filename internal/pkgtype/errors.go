package pkgtype

import (
	"errors"
	"fmt"
)

// Session-fatal errors. Nothing can be extracted when one of these occurs.
var (
	// ErrSentinelNotFound is returned when the start or end sentinel is absent.
	ErrSentinelNotFound = errors.New("unpkg: sentinel not found")

	// ErrRegionInverted is returned when the end sentinel does not follow the start sentinel.
	ErrRegionInverted = errors.New("unpkg: payload region inverted")

	// ErrTruncatedHeader is returned when fewer bytes than the header size follow the start sentinel.
	ErrTruncatedHeader = errors.New("unpkg: truncated header")

	// ErrUnsupportedVersion is returned for unrecognized format versions.
	ErrUnsupportedVersion = errors.New("unpkg: unsupported format version")

	// ErrHeaderOutOfBounds is returned when the header describes ranges outside the payload region.
	ErrHeaderOutOfBounds = errors.New("unpkg: header out of bounds")

	// ErrIndexCorrupt is returned when the bundle index cannot be parsed.
	ErrIndexCorrupt = errors.New("unpkg: index corrupt")
)

// Entry-scoped errors. The session continues with the remaining entries.
var (
	// ErrEntryRangeInvalid is returned when an entry's data lies outside the payload region.
	ErrEntryRangeInvalid = errors.New("unpkg: entry range invalid")

	// ErrUnsafePath is returned when an entry path could escape the output root.
	ErrUnsafePath = errors.New("unpkg: unsafe path")

	// ErrDuplicatePath is returned for every occurrence of a path after the first.
	ErrDuplicatePath = errors.New("unpkg: duplicate path")

	// ErrDecompressionFailed is returned when an entry's stored bytes cannot be decoded.
	ErrDecompressionFailed = errors.New("unpkg: decompression failed")
)

// ErrSizeOverflow is returned when byte counts exceed supported limits.
var ErrSizeOverflow = errors.New("unpkg: size overflow")

// FormatError is a session-fatal parse failure at a container offset.
type FormatError struct {
	// Offset is the absolute container offset where parsing stopped.
	Offset int64
	// Err is one of the session-fatal sentinel errors, possibly wrapped.
	Err error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("%v (at offset %#x)", e.Err, e.Offset)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// FormatErrorf returns a FormatError at offset wrapping kind with a formatted detail.
func FormatErrorf(kind error, offset int64, format string, a ...any) *FormatError {
	return &FormatError{
		Offset: offset,
		Err:    fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, a...)),
	}
}

// EntryError is a failure scoped to a single virtual path.
type EntryError struct {
	Path string
	Err  error
}

func (e *EntryError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *EntryError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether err aborts a whole extraction session.
func IsFatal(err error) bool {
	for _, kind := range []error{
		ErrSentinelNotFound,
		ErrRegionInverted,
		ErrTruncatedHeader,
		ErrUnsupportedVersion,
		ErrHeaderOutOfBounds,
		ErrIndexCorrupt,
	} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}
