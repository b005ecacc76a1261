package unpkg

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"os"

	"github.com/edsrzf/mmap-go"

	"github.com/meigma/unpkg/internal/file"
	"github.com/meigma/unpkg/internal/header"
	"github.com/meigma/unpkg/internal/index"
	"github.com/meigma/unpkg/internal/scan"
)

// Session is one extraction run over a container.
//
// The container is located, its header read and its index decoded exactly
// once, when the Session is created. A Session can be iterated any number of
// times. It must not be used after Close.
type Session struct {
	data    []byte
	mapping mmap.MMap

	region Region
	header Header
	index  *index.Index
	ext    *file.Extractor

	maxFileSize      uint64
	maxDecoderMemory uint64
	decoderLowmem    bool
	useMmap          bool
}

// Open loads the packaged executable at path and prepares a Session.
//
// The file is memory-mapped unless WithMmap(false) is given; empty files are
// always read.
func Open(path string, opts ...Option) (*Session, error) {
	s := newSession(opts)

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	var data []byte
	if s.useMmap && info.Size() > 0 {
		m, err := mmap.Map(f, mmap.RDONLY, 0)
		if err != nil {
			return nil, fmt.Errorf("map %s: %w", path, err)
		}
		s.mapping = m
		data = m
	} else {
		data, err = io.ReadAll(f)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
	}

	if err := s.load(data); err != nil {
		_ = s.Close() //nolint:errcheck // best-effort cleanup
		return nil, err
	}
	return s, nil
}

// New prepares a Session over container bytes already in memory.
//
// The Session reads container but never modifies it; callers must not modify
// it while the Session is in use.
func New(container []byte, opts ...Option) (*Session, error) {
	s := newSession(opts)
	if err := s.load(container); err != nil {
		return nil, err
	}
	return s, nil
}

func newSession(opts []Option) *Session {
	s := &Session{
		maxFileSize:      file.DefaultMaxFileSize,
		maxDecoderMemory: file.DefaultMaxDecoderMemory,
		useMmap:          true,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.ext = file.NewExtractor(
		file.WithMaxFileSize(s.maxFileSize),
		file.WithMaxDecoderMemory(s.maxDecoderMemory),
		file.WithDecoderLowmem(s.decoderLowmem),
	)
	return s
}

// load runs the locate, header and index stages.
func (s *Session) load(container []byte) error {
	region, err := scan.Locate(container)
	if err != nil {
		return diagnose(container, err)
	}
	h, err := header.Read(container, region)
	if err != nil {
		return err
	}
	idx, err := index.Decode(container, region, h)
	if err != nil {
		return err
	}

	s.data = container
	s.region = region
	s.header = h
	s.index = idx
	return nil
}

// diagnose refines a missing end sentinel. A container whose start sentinel
// is followed by a header declaring more bytes than remain was truncated, and
// the header error is more useful than ErrSentinelNotFound.
func diagnose(container []byte, err error) error {
	if !errors.Is(err, ErrSentinelNotFound) {
		return err
	}
	start, ok := scan.FindStart(container)
	if !ok {
		return err
	}
	if _, probeErr := header.Probe(container, start); probeErr != nil {
		return probeErr
	}
	return err
}

// Close releases the container mapping. It is safe to call more than once.
func (s *Session) Close() error {
	s.data = nil
	if s.mapping == nil {
		return nil
	}
	m := s.mapping
	s.mapping = nil
	return m.Unmap()
}

// Region returns the payload region.
func (s *Session) Region() Region {
	return s.region
}

// Header returns the decoded bundle header.
func (s *Session) Header() Header {
	return s.header
}

// Len returns the number of files declared by the index, including rejected
// ones.
func (s *Session) Len() int {
	return s.index.Len()
}

// Paths returns the declared file paths in index order.
func (s *Session) Paths() []string {
	paths := make([]string, 0, s.index.Len())
	for r := range s.index.Records() {
		paths = append(paths, r.Entry.Path)
	}
	return paths
}

// Declared iterates over the files declared by the index without decoding
// them. The error is non-nil for entries rejected during index validation.
func (s *Session) Declared() iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		for r := range s.index.Records() {
			var err error
			if r.Err != nil {
				err = &EntryError{Path: r.Entry.Path, Err: r.Err}
			}
			if !yield(r.Entry, err) {
				return
			}
		}
	}
}

// Entries returns an iterator over every declared file in index order.
//
// Each file yields either its decoded content and a nil error, or an
// *EntryError. Iteration is lazy: a file is decoded only when it is reached,
// and stopping early decodes nothing further. Entries can be called again to
// restart from the first file.
func (s *Session) Entries() iter.Seq2[DecodedEntry, error] {
	return func(yield func(DecodedEntry, error) bool) {
		if s.data == nil {
			yield(DecodedEntry{}, ErrClosed)
			return
		}
		for r := range s.index.Records() {
			entry := DecodedEntry{Path: r.Entry.Path}
			err := r.Err
			if err == nil {
				entry.Content, err = s.ext.Extract(s.data, s.region, r.Entry)
			}
			if err != nil {
				if !yield(entry, &EntryError{Path: r.Entry.Path, Err: err}) {
					return
				}
				continue
			}
			if !yield(entry, nil) {
				return
			}
		}
	}
}

// extract decodes a single validated entry.
func (s *Session) extract(e Entry) ([]byte, error) {
	if s.data == nil {
		return nil, ErrClosed
	}
	return s.ext.Extract(s.data, s.region, e)
}
