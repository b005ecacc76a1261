package pkgtype

// Compression identifies the encoding of an entry's stored bytes.
type Compression uint8

const (
	CompressionNone Compression = iota
	CompressionDeflate
	CompressionGzip
	CompressionBrotli
	CompressionZstd
)

// String returns the human-readable name of the compression algorithm.
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionDeflate:
		return "deflate"
	case CompressionGzip:
		return "gzip"
	case CompressionBrotli:
		return "brotli"
	case CompressionZstd:
		return "zstd"
	default:
		return "unknown"
	}
}

// Known reports whether c is a compression code the extractor can decode.
func (c Compression) Known() bool {
	return c <= CompressionZstd
}
