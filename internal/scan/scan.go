// Package scan locates the embedded payload region inside a container.
package scan

import (
	"bytes"

	"github.com/meigma/unpkg/internal/pkgtype"
)

// sentinelPrefix is shared by both sentinels. It is joined with a suffix at
// init so neither full sentinel appears contiguously in this binary.
var sentinelPrefix = []byte{'<', '~', 'P', 'K', 'G', '~', '>', 0}

var (
	startSuffix = []byte("VFS/BEGN")
	endSuffix   = []byte("VFS/DONE")
)

// start and end are the complete sentinel byte sequences.
var (
	start []byte
	end   []byte
)

// SentinelSize is the length of both sentinels in bytes.
var SentinelSize int

func init() {
	start = join(sentinelPrefix, startSuffix)
	end = join(sentinelPrefix, endSuffix)
	SentinelSize = len(start)
}

func join(prefix, suffix []byte) []byte {
	b := make([]byte, 0, len(prefix)+len(suffix))
	b = append(b, prefix...)
	return append(b, suffix...)
}

// StartSentinel returns a copy of the payload start sentinel.
func StartSentinel() []byte {
	return bytes.Clone(start)
}

// EndSentinel returns a copy of the payload end sentinel.
func EndSentinel() []byte {
	return bytes.Clone(end)
}

// FindStart returns the offset of the first byte after the first start sentinel.
func FindStart(container []byte) (int64, bool) {
	i := bytes.Index(container, start)
	if i < 0 {
		return 0, false
	}
	return int64(i + len(start)), true
}

// Locate finds the payload region delimited by the first start sentinel and
// the first end sentinel that follows it.
func Locate(container []byte) (pkgtype.Region, error) {
	s := bytes.Index(container, start)
	if s < 0 {
		return pkgtype.Region{}, pkgtype.FormatErrorf(pkgtype.ErrSentinelNotFound, 0,
			"no start sentinel in %d bytes", len(container))
	}
	regionStart := s + len(start)

	e := bytes.Index(container[regionStart:], end)
	if e < 0 {
		if before := bytes.Index(container[:s], end); before >= 0 {
			return pkgtype.Region{}, pkgtype.FormatErrorf(pkgtype.ErrRegionInverted, int64(before),
				"end sentinel at %#x precedes start sentinel at %#x", before, s)
		}
		return pkgtype.Region{}, pkgtype.FormatErrorf(pkgtype.ErrSentinelNotFound, int64(regionStart),
			"no end sentinel after start sentinel at %#x", s)
	}
	if e == 0 {
		return pkgtype.Region{}, pkgtype.FormatErrorf(pkgtype.ErrRegionInverted, int64(regionStart),
			"end sentinel immediately follows start sentinel at %#x", s)
	}

	return pkgtype.Region{
		Start: int64(regionStart),
		End:   int64(regionStart + e),
	}, nil
}
