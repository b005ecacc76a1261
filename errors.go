package unpkg

import (
	"errors"

	"github.com/meigma/unpkg/internal/pkgtype"
)

// Session-fatal errors re-exported from pkgtype.
var (
	// ErrSentinelNotFound is returned when the start or end sentinel is absent.
	ErrSentinelNotFound = pkgtype.ErrSentinelNotFound

	// ErrRegionInverted is returned when the end sentinel does not follow the start sentinel.
	ErrRegionInverted = pkgtype.ErrRegionInverted

	// ErrTruncatedHeader is returned when fewer bytes than the header size follow the start sentinel.
	ErrTruncatedHeader = pkgtype.ErrTruncatedHeader

	// ErrUnsupportedVersion is returned for unrecognized format versions.
	ErrUnsupportedVersion = pkgtype.ErrUnsupportedVersion

	// ErrHeaderOutOfBounds is returned when the header describes ranges outside the payload region.
	ErrHeaderOutOfBounds = pkgtype.ErrHeaderOutOfBounds

	// ErrIndexCorrupt is returned when the bundle index cannot be parsed.
	ErrIndexCorrupt = pkgtype.ErrIndexCorrupt
)

// Entry-scoped errors re-exported from pkgtype.
var (
	// ErrEntryRangeInvalid is returned when an entry's data lies outside the payload region.
	ErrEntryRangeInvalid = pkgtype.ErrEntryRangeInvalid

	// ErrUnsafePath is returned when an entry path could escape the output root.
	ErrUnsafePath = pkgtype.ErrUnsafePath

	// ErrDuplicatePath is returned for every occurrence of a path after the first.
	ErrDuplicatePath = pkgtype.ErrDuplicatePath

	// ErrDecompressionFailed is returned when an entry's stored bytes cannot be decoded.
	ErrDecompressionFailed = pkgtype.ErrDecompressionFailed
)

// ErrSizeOverflow is returned when byte counts exceed supported limits.
var ErrSizeOverflow = pkgtype.ErrSizeOverflow

// ErrClosed is returned when a closed Session is used.
var ErrClosed = errors.New("unpkg: session closed")

// IsFatal reports whether err aborts a whole extraction session.
func IsFatal(err error) bool {
	return pkgtype.IsFatal(err)
}
