package file

import (
	"errors"
	"io"
	"sync"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"
)

// zstdPool manages reusable zstd decoders to reduce allocation overhead.
type zstdPool struct {
	pool      sync.Pool
	maxMemory uint64
	lowmem    bool
}

// newZstdPool creates a pool of single-goroutine zstd decoders.
// If maxMemory is 0, no memory limit is applied to decoders.
func newZstdPool(maxMemory uint64, lowmem bool) *zstdPool {
	p := &zstdPool{maxMemory: maxMemory, lowmem: lowmem}
	p.pool.New = func() any {
		dec, err := p.newDecoder(nil)
		if err != nil {
			return nil
		}
		return dec
	}
	return p
}

// get returns a decoder reading from r and a release function that must be
// called when the caller is done with it.
func (p *zstdPool) get(r io.Reader) (*zstd.Decoder, func(), error) {
	dec, ok := p.pool.Get().(*zstd.Decoder)
	if !ok {
		// Pool's New function failed, try directly
		fresh, err := p.newDecoder(r)
		if err != nil {
			return nil, nil, err
		}
		return fresh, fresh.Close, nil
	}

	if err := dec.Reset(r); err != nil {
		dec.Close()
		fresh, err := p.newDecoder(r)
		if err != nil {
			return nil, nil, err
		}
		return fresh, fresh.Close, nil
	}

	return dec, func() {
		_ = dec.Reset(nil) //nolint:errcheck // clearing state before pool return
		p.pool.Put(dec)
	}, nil
}

func (p *zstdPool) newDecoder(r io.Reader) (*zstd.Decoder, error) {
	opts := []zstd.DOption{
		zstd.WithDecoderConcurrency(1),
		zstd.WithDecoderLowmem(p.lowmem),
	}
	if p.maxMemory != 0 {
		opts = append(opts, zstd.WithDecoderMaxMemory(p.maxMemory))
	}
	return zstd.NewReader(r, opts...)
}

// brotliTail follows the stored stream. A decoder that already reached its
// final meta-block rejects it as excess input; one that is still mid-stream
// consumes it.
const brotliTail = 0x00

// errBrotliExcess is the message the brotli decoder reports for input after
// the end of a complete stream.
const errBrotliExcess = "brotli: excessive input"

// brotliReader reports io.ErrUnexpectedEOF for streams that end before their
// last meta-block. The brotli decoder alone returns io.EOF in that case.
type brotliReader struct {
	dec *brotli.Reader
	src *tailReader
}

func newBrotliReader(src io.Reader) *brotliReader {
	t := &tailReader{r: src}
	return &brotliReader{dec: brotli.NewReader(t), src: t}
}

func (b *brotliReader) Read(p []byte) (int, error) {
	n, err := b.dec.Read(p)
	if !b.src.served {
		return n, err
	}
	if n == 0 && err != nil && err.Error() == errBrotliExcess {
		return 0, io.EOF
	}
	return 0, io.ErrUnexpectedEOF
}

// tailReader yields r followed by a single brotliTail byte.
type tailReader struct {
	r      io.Reader
	eof    bool
	served bool
}

func (t *tailReader) Read(p []byte) (int, error) {
	if !t.eof {
		n, err := t.r.Read(p)
		if errors.Is(err, io.EOF) {
			t.eof = true
			err = nil
		}
		if n > 0 || err != nil {
			return n, err
		}
	}
	if t.served || len(p) == 0 {
		return 0, io.EOF
	}
	p[0] = brotliTail
	t.served = true
	return 1, nil
}
