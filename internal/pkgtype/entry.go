package pkgtype

import (
	"fmt"

	"github.com/opencontainers/go-digest"
)

// Region is the byte range of the embedded payload within the container.
//
// Start is the offset of the first byte after the start sentinel and End is
// the offset of the first byte of the end sentinel.
type Region struct {
	Start int64
	End   int64
}

// Len returns the number of bytes in the region.
func (r Region) Len() int64 {
	return r.End - r.Start
}

// String returns the region as a half-open offset range.
func (r Region) String() string {
	return fmt.Sprintf("[%#x, %#x)", r.Start, r.End)
}

// Header is the fixed-layout bundle header at the start of the payload region.
type Header struct {
	// Version is the container format version.
	Version uint32

	// PayloadLength is the declared length of the payload region.
	PayloadLength uint64

	// IndexOffset is the offset of the bundle index relative to Region.Start.
	IndexOffset uint64

	// IndexLength is the size in bytes of the bundle index.
	IndexLength uint64
}

// Entry is one virtual file described by the bundle index.
type Entry struct {
	// Path is the slash-separated path relative to the bundle root
	// (e.g., "snapshot/app/index.js").
	Path string

	// DataOffset is the offset of the stored bytes relative to Region.Start.
	DataOffset uint64

	// DataLength is the number of stored (possibly compressed) bytes.
	DataLength uint64

	// Compression is the encoding of the stored bytes.
	Compression Compression
}

// DecodedEntry is an entry's path together with its decoded content.
type DecodedEntry struct {
	Path    string
	Content []byte
}

// Digest returns the sha256 digest of the decoded content.
func (e DecodedEntry) Digest() digest.Digest {
	return digest.FromBytes(e.Content)
}
