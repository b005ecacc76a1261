package unpkg

// Option configures a Session.
type Option func(*Session)

// WithMaxFileSize limits the decoded size of a single entry.
// Larger entries fail with ErrDecompressionFailed.
// Set limit to 0 to disable the limit.
func WithMaxFileSize(limit uint64) Option {
	return func(s *Session) {
		s.maxFileSize = limit
	}
}

// WithMaxDecoderMemory limits the maximum memory used by the zstd decoder.
// Set limit to 0 to disable the limit.
func WithMaxDecoderMemory(limit uint64) Option {
	return func(s *Session) {
		s.maxDecoderMemory = limit
	}
}

// WithDecoderLowmem sets whether zstd decoders use low-memory mode (default: false).
func WithDecoderLowmem(enabled bool) Option {
	return func(s *Session) {
		s.decoderLowmem = enabled
	}
}

// WithMmap controls whether Open memory-maps the container (default: true).
//
// When false, Open reads the whole file into memory.
func WithMmap(enabled bool) Option {
	return func(s *Session) {
		s.useMmap = enabled
	}
}
