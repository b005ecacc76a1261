package scan

import (
	"bytes"
	"crypto/rand"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/unpkg/internal/pkgtype"
)

func noise(t *testing.T, n int) []byte {
	t.Helper()
	b := make([]byte, n)
	_, err := rand.Read(b)
	require.NoError(t, err)
	// Without '<' the noise can never contain a sentinel.
	return bytes.ReplaceAll(b, []byte{'<'}, []byte{'>'})
}

func TestInitSentinels(t *testing.T) {
	assert.Len(t, start, len(sentinelPrefix)+len(startSuffix))
	assert.Len(t, end, len(sentinelPrefix)+len(endSuffix))
	assert.Equal(t, SentinelSize, len(start))
	assert.NotEqual(t, start, end)
	assert.True(t, bytes.HasPrefix(start, sentinelPrefix))
}

func TestLocate(t *testing.T) {
	t.Parallel()

	stub := noise(t, 50)
	buf := bytes.NewBuffer(bytes.Clone(stub))
	buf.Write(start)
	buf.WriteString("payload")
	buf.Write(end)
	buf.WriteString("trailer")

	region, err := Locate(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, int64(len(stub)+SentinelSize), region.Start)
	assert.Equal(t, int64(len("payload")), region.Len())
	assert.Equal(t, []byte("payload"), buf.Bytes()[region.Start:region.End])
}

func TestLocate_FirstMatchesWin(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	buf.Write(start)
	buf.WriteString("one")
	buf.Write(end)
	buf.Write(start)
	buf.WriteString("two")
	buf.Write(end)

	region, err := Locate(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, []byte("one"), buf.Bytes()[region.Start:region.End])
}

func TestLocate_EndBeforeStartIsSkipped(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	buf.Write(end)
	buf.WriteString("noise")
	buf.Write(start)
	buf.WriteString("payload")
	buf.Write(end)

	region, err := Locate(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), buf.Bytes()[region.Start:region.End])
}

func TestLocate_Errors(t *testing.T) {
	t.Parallel()

	join := func(parts ...[]byte) []byte { return bytes.Join(parts, nil) }

	tests := []struct {
		name      string
		container []byte
		want      error
	}{
		{"empty", nil, pkgtype.ErrSentinelNotFound},
		{"noise only", noise(t, 256), pkgtype.ErrSentinelNotFound},
		{"start only", join(noise(t, 16), start, []byte("data")), pkgtype.ErrSentinelNotFound},
		{"end only", join(noise(t, 16), end), pkgtype.ErrSentinelNotFound},
		{"partial start", join(start[:SentinelSize-1], []byte("data"), end), pkgtype.ErrSentinelNotFound},
		{"end precedes start", join(end, []byte("data"), start, []byte("more")), pkgtype.ErrRegionInverted},
		{"empty region", join(start, end), pkgtype.ErrRegionInverted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Locate(tt.container)
			require.ErrorIs(t, err, tt.want)

			var fe *pkgtype.FormatError
			require.True(t, errors.As(err, &fe))
		})
	}
}

func TestFindStart(t *testing.T) {
	t.Parallel()

	container := bytes.Join([][]byte{[]byte("abc"), start, []byte("rest")}, nil)
	off, ok := FindStart(container)
	require.True(t, ok)
	assert.Equal(t, int64(3+SentinelSize), off)

	_, ok = FindStart([]byte("nothing here"))
	assert.False(t, ok)
}

func TestSentinelCopies(t *testing.T) {
	t.Parallel()

	s := StartSentinel()
	s[0] = 'X'
	assert.Equal(t, byte('<'), start[0])
	assert.Equal(t, end, EndSentinel())
}
