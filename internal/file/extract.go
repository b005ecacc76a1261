// Package file decodes the stored bytes of bundle entries.
package file

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"

	"github.com/meigma/unpkg/internal/pkgtype"
	"github.com/meigma/unpkg/internal/sizing"
)

const (
	// DefaultMaxFileSize is the default maximum decoded entry size (256MB).
	DefaultMaxFileSize = 256 << 20

	// DefaultMaxDecoderMemory is the default maximum zstd decoder memory (256MB).
	DefaultMaxDecoderMemory = 256 << 20
)

// Extractor decodes entry content from a container.
//
// An Extractor holds no per-container state and is safe for concurrent use.
type Extractor struct {
	maxFileSize      uint64
	maxDecoderMemory uint64
	lowmem           bool
	zstd             *zstdPool
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithMaxFileSize sets the maximum decoded size of a single entry.
// Set to 0 to disable the limit.
func WithMaxFileSize(limit uint64) Option {
	return func(x *Extractor) {
		x.maxFileSize = limit
	}
}

// WithMaxDecoderMemory sets the maximum zstd decoder memory limit.
// Set to 0 to disable the limit.
func WithMaxDecoderMemory(limit uint64) Option {
	return func(x *Extractor) {
		x.maxDecoderMemory = limit
	}
}

// WithDecoderLowmem sets whether zstd decoders use low-memory mode (default: false).
func WithDecoderLowmem(enabled bool) Option {
	return func(x *Extractor) {
		x.lowmem = enabled
	}
}

// NewExtractor creates an Extractor.
func NewExtractor(opts ...Option) *Extractor {
	x := &Extractor{
		maxFileSize:      DefaultMaxFileSize,
		maxDecoderMemory: DefaultMaxDecoderMemory,
	}
	for _, opt := range opts {
		opt(x)
	}
	x.zstd = newZstdPool(x.maxDecoderMemory, x.lowmem)
	return x
}

// Extract returns the decoded content of entry.
//
// The entry range is checked again against region so that Extract is safe on
// entries that did not come from the index decoder. The returned slice never
// aliases container.
func (x *Extractor) Extract(container []byte, region pkgtype.Region, entry pkgtype.Entry) ([]byte, error) {
	if region.Start < 0 || region.End > int64(len(container)) ||
		!sizing.Within(entry.DataOffset, entry.DataLength, region.Len()) {
		return nil, fmt.Errorf("%w: [%d, +%d) outside region %s",
			pkgtype.ErrEntryRangeInvalid, entry.DataOffset, entry.DataLength, region)
	}
	start := region.Start + int64(entry.DataOffset)            //nolint:gosec // bounded by region length
	stored := container[start : start+int64(entry.DataLength)] //nolint:gosec // bounded by region length

	if entry.Compression == pkgtype.CompressionNone {
		if x.maxFileSize != 0 && entry.DataLength > x.maxFileSize {
			return nil, x.tooLarge()
		}
		return bytes.Clone(stored), nil
	}

	reader, release, err := x.decoder(entry.Compression, bytes.NewReader(stored))
	if err != nil {
		return nil, err
	}
	defer release()

	content, err := sizing.ReadAllWithLimit(reader, x.maxFileSize, pkgtype.ErrSizeOverflow)
	if err != nil {
		if errors.Is(err, pkgtype.ErrSizeOverflow) {
			return nil, x.tooLarge()
		}
		return nil, decompressError(entry.Compression, err)
	}
	return content, nil
}

// decoder returns a reader producing the decoded form of src.
func (x *Extractor) decoder(c pkgtype.Compression, src io.Reader) (io.Reader, func(), error) {
	if !c.Known() {
		return nil, nil, fmt.Errorf("%w: unknown compression code %d", pkgtype.ErrDecompressionFailed, uint8(c))
	}
	switch c {
	case pkgtype.CompressionDeflate:
		r := flate.NewReader(src)
		return r, func() { _ = r.Close() }, nil
	case pkgtype.CompressionGzip:
		r, err := gzip.NewReader(src)
		if err != nil {
			return nil, nil, decompressError(c, err)
		}
		return r, func() { _ = r.Close() }, nil
	case pkgtype.CompressionBrotli:
		return newBrotliReader(src), func() {}, nil
	case pkgtype.CompressionZstd:
		dec, release, err := x.zstd.get(src)
		if err != nil {
			return nil, nil, decompressError(c, err)
		}
		return dec, release, nil
	default:
		return nil, nil, fmt.Errorf("%w: no decoder for %s", pkgtype.ErrDecompressionFailed, c)
	}
}

func (x *Extractor) tooLarge() error {
	return fmt.Errorf("%w: %w: decoded size exceeds %d bytes",
		pkgtype.ErrDecompressionFailed, pkgtype.ErrSizeOverflow, x.maxFileSize)
}

func decompressError(c pkgtype.Compression, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: %s: unexpected end of stream", pkgtype.ErrDecompressionFailed, c)
	}
	return fmt.Errorf("%w: %s: %v", pkgtype.ErrDecompressionFailed, c, err)
}
