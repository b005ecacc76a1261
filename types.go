package unpkg

import (
	"github.com/meigma/unpkg/internal/header"
	"github.com/meigma/unpkg/internal/pkgtype"
)

// Type aliases for the data model shared with the internal packages.
type (
	// Region is the byte range of the payload within the container.
	Region = pkgtype.Region

	// Header is the fixed-layout bundle header.
	Header = pkgtype.Header

	// Entry is one file declared by the bundle index.
	Entry = pkgtype.Entry

	// DecodedEntry is an entry's path together with its decoded content.
	DecodedEntry = pkgtype.DecodedEntry

	// Compression identifies the encoding of an entry's stored bytes.
	Compression = pkgtype.Compression

	// FormatError is a session-fatal parse failure at a container offset.
	FormatError = pkgtype.FormatError

	// EntryError is a failure scoped to a single virtual path.
	EntryError = pkgtype.EntryError

	// VersionError reports an unrecognized format version.
	VersionError = header.VersionError
)

// Compression codes.
const (
	CompressionNone    = pkgtype.CompressionNone
	CompressionDeflate = pkgtype.CompressionDeflate
	CompressionGzip    = pkgtype.CompressionGzip
	CompressionBrotli  = pkgtype.CompressionBrotli
	CompressionZstd    = pkgtype.CompressionZstd
)

// Format versions.
const (
	// VersionJSON is the format version with a JSON bundle index.
	VersionJSON = header.VersionJSON

	// VersionFlatBuffers is the format version with a FlatBuffers bundle index.
	VersionFlatBuffers = header.VersionFlatBuffers
)
