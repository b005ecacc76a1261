package file

import (
	"bytes"
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/unpkg/internal/pkgtype"
	"github.com/meigma/unpkg/testutil"
)

var codecs = []pkgtype.Compression{
	pkgtype.CompressionNone,
	pkgtype.CompressionDeflate,
	pkgtype.CompressionGzip,
	pkgtype.CompressionBrotli,
	pkgtype.CompressionZstd,
}

// place returns a container holding stored inside a region that starts after
// a short stub, and the entry that covers it.
func place(stored []byte, c pkgtype.Compression) ([]byte, pkgtype.Region, pkgtype.Entry) {
	container := append([]byte("stub"), stored...)
	container = append(container, "tail"...)
	region := pkgtype.Region{Start: 4, End: int64(4 + len(stored))}
	entry := pkgtype.Entry{Path: "x", DataLength: uint64(len(stored)), Compression: c}
	return container, region, entry
}

func randomText(n int) []byte {
	r := rand.New(rand.NewPCG(1, 2)) //nolint:gosec // deterministic test data
	const alphabet = "abcdefghijklmnopqrstuvwxyz0123456789 \n{}();"
	b := make([]byte, n)
	for i := range b {
		b[i] = alphabet[r.IntN(len(alphabet))]
	}
	return b
}

func TestExtract_RoundTrip(t *testing.T) {
	t.Parallel()

	x := NewExtractor()
	content := randomText(8 << 10)
	for _, c := range codecs {
		t.Run(c.String(), func(t *testing.T) {
			t.Parallel()

			stored, err := testutil.Encode(content, c)
			require.NoError(t, err)

			container, region, entry := place(stored, c)
			got, err := x.Extract(container, region, entry)
			require.NoError(t, err)
			assert.Equal(t, content, got)

			// The result must not alias the container.
			for i := range container {
				container[i] = 0
			}
			assert.Equal(t, content, got)
		})
	}
}

func TestExtract_Empty(t *testing.T) {
	t.Parallel()

	x := NewExtractor()
	for _, c := range codecs {
		stored, err := testutil.Encode(nil, c)
		require.NoError(t, err)
		container, region, entry := place(stored, c)
		got, err := x.Extract(container, region, entry)
		require.NoError(t, err, c.String())
		assert.Empty(t, got, c.String())
	}
}

func TestExtract_Offset(t *testing.T) {
	t.Parallel()

	container := []byte("stub....HEADERhello, world!tail")
	region := pkgtype.Region{Start: 4, End: 27}
	entry := pkgtype.Entry{Path: "a", DataOffset: 10, DataLength: 13}

	got, err := NewExtractor().Extract(container, region, entry)
	require.NoError(t, err)
	assert.Equal(t, "hello, world!", string(got))
}

func TestExtract_Truncated(t *testing.T) {
	t.Parallel()

	x := NewExtractor()
	content := randomText(16 << 10)
	for _, c := range codecs[1:] {
		t.Run(c.String(), func(t *testing.T) {
			t.Parallel()

			stored, err := testutil.Encode(content, c)
			require.NoError(t, err)
			for _, cut := range []int{len(stored) / 2, len(stored) - 4, len(stored) - 1} {
				container, region, entry := place(stored[:cut], c)
				got, err := x.Extract(container, region, entry)
				assert.ErrorIs(t, err, pkgtype.ErrDecompressionFailed, "cut %d/%d", cut, len(stored))
				assert.Nil(t, got, "cut %d/%d", cut, len(stored))
			}
		})
	}
}

func TestExtract_BrotliStreamEnd(t *testing.T) {
	t.Parallel()

	x := NewExtractor()
	content := randomText(4 << 10)
	stored, err := testutil.Encode(content, pkgtype.CompressionBrotli)
	require.NoError(t, err)

	// Every proper prefix of the stream is incomplete.
	for cut := range len(stored) {
		container, region, entry := place(stored[:cut], pkgtype.CompressionBrotli)
		_, err := x.Extract(container, region, entry)
		require.ErrorIs(t, err, pkgtype.ErrDecompressionFailed, "cut %d/%d", cut, len(stored))
	}

	container, region, entry := place(stored, pkgtype.CompressionBrotli)
	got, err := x.Extract(container, region, entry)
	require.NoError(t, err)
	assert.Equal(t, content, got)

	container, region, entry = place(append(bytes.Clone(stored), "junk"...), pkgtype.CompressionBrotli)
	_, err = x.Extract(container, region, entry)
	assert.ErrorIs(t, err, pkgtype.ErrDecompressionFailed)
}

func TestExtract_Garbage(t *testing.T) {
	t.Parallel()

	x := NewExtractor()
	garbage := bytes.Repeat([]byte{0xff}, 64)
	for _, c := range []pkgtype.Compression{
		pkgtype.CompressionDeflate,
		pkgtype.CompressionGzip,
		pkgtype.CompressionZstd,
	} {
		container, region, entry := place(garbage, c)
		_, err := x.Extract(container, region, entry)
		assert.ErrorIs(t, err, pkgtype.ErrDecompressionFailed, c.String())
	}
}

func TestExtract_UnknownCompression(t *testing.T) {
	t.Parallel()

	container, region, entry := place([]byte("abc"), pkgtype.Compression(9))
	_, err := NewExtractor().Extract(container, region, entry)
	assert.ErrorIs(t, err, pkgtype.ErrDecompressionFailed)
	assert.Contains(t, err.Error(), "unknown compression code 9")
}

func TestExtract_MaxFileSize(t *testing.T) {
	t.Parallel()

	x := NewExtractor(WithMaxFileSize(100))

	content := bytes.Repeat([]byte("a"), 101)
	for _, c := range codecs {
		stored, err := testutil.Encode(content, c)
		require.NoError(t, err)
		container, region, entry := place(stored, c)
		_, err = x.Extract(container, region, entry)
		assert.ErrorIs(t, err, pkgtype.ErrDecompressionFailed, c.String())
		assert.ErrorIs(t, err, pkgtype.ErrSizeOverflow, c.String())
	}

	// Exactly at the limit is allowed.
	stored, err := testutil.Encode(content[:100], pkgtype.CompressionZstd)
	require.NoError(t, err)
	container, region, entry := place(stored, pkgtype.CompressionZstd)
	got, err := x.Extract(container, region, entry)
	require.NoError(t, err)
	assert.Len(t, got, 100)
}

func TestExtract_Unlimited(t *testing.T) {
	t.Parallel()

	content := bytes.Repeat([]byte("z"), 1<<20)
	stored, err := testutil.Encode(content, pkgtype.CompressionGzip)
	require.NoError(t, err)
	container, region, entry := place(stored, pkgtype.CompressionGzip)

	got, err := NewExtractor(WithMaxFileSize(0)).Extract(container, region, entry)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestExtract_RangeInvalid(t *testing.T) {
	t.Parallel()

	container, region, entry := place([]byte("abcdef"), pkgtype.CompressionNone)
	x := NewExtractor()

	tests := []struct {
		name   string
		region pkgtype.Region
		entry  pkgtype.Entry
	}{
		{"past region end", region, pkgtype.Entry{DataOffset: 3, DataLength: 4}},
		{"offset overflow", region, pkgtype.Entry{DataOffset: 1<<64 - 1, DataLength: 2}},
		{"region past container", pkgtype.Region{Start: 4, End: 100}, entry},
		{"inverted region", pkgtype.Region{Start: 8, End: 4}, pkgtype.Entry{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := x.Extract(container, tc.region, tc.entry)
			assert.ErrorIs(t, err, pkgtype.ErrEntryRangeInvalid)
		})
	}
}

func TestExtract_Concurrent(t *testing.T) {
	t.Parallel()

	x := NewExtractor()
	content := randomText(4 << 10)
	stored, err := testutil.Encode(content, pkgtype.CompressionZstd)
	require.NoError(t, err)
	container, region, entry := place(stored, pkgtype.CompressionZstd)

	var wg sync.WaitGroup
	errs := make([]error, 16)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 8 {
				got, err := x.Extract(container, region, entry)
				if err == nil && !bytes.Equal(got, content) {
					err = assert.AnError
				}
				if err != nil {
					errs[i] = err
					return
				}
			}
		}()
	}
	wg.Wait()
	for _, err := range errs {
		assert.NoError(t, err)
	}
}
