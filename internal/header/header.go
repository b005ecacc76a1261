// Package header decodes the fixed-layout bundle header that follows the
// payload start sentinel.
package header

import (
	"encoding/binary"
	"fmt"

	"github.com/go-restruct/restruct"

	"github.com/meigma/unpkg/internal/pkgtype"
	"github.com/meigma/unpkg/internal/sizing"
)

// Size is the encoded header size in bytes.
const Size = 32

// Recognized format versions.
const (
	// VersionJSON bundles carry a JSON directory tree index.
	VersionJSON uint32 = 1

	// VersionFlatBuffers bundles carry a FlatBuffers directory tree index.
	VersionFlatBuffers uint32 = 2
)

// Supported reports whether version is a recognized format version.
func Supported(version uint32) bool {
	return version == VersionJSON || version == VersionFlatBuffers
}

// raw is the on-disk header layout.
type raw struct {
	Version       uint32 `struct:"uint32"`
	Reserved      uint32 `struct:"uint32"`
	PayloadLength uint64 `struct:"uint64"`
	IndexOffset   uint64 `struct:"uint64"`
	IndexLength   uint64 `struct:"uint64"`
}

// Read decodes the header at region.Start and validates it against region.
func Read(container []byte, region pkgtype.Region) (pkgtype.Header, error) {
	if region.Len() < Size {
		return pkgtype.Header{}, pkgtype.FormatErrorf(pkgtype.ErrTruncatedHeader, region.Start,
			"need %d header bytes, region holds %d", Size, region.Len())
	}
	h, err := decode(container, region.Start)
	if err != nil {
		return pkgtype.Header{}, err
	}
	if h.PayloadLength != uint64(region.Len()) { //nolint:gosec // region length is non-negative
		return pkgtype.Header{}, pkgtype.FormatErrorf(pkgtype.ErrHeaderOutOfBounds, region.Start,
			"declared payload length %d does not match region length %d", h.PayloadLength, region.Len())
	}
	if err := checkIndex(h, region); err != nil {
		return pkgtype.Header{}, err
	}
	return h, nil
}

// Probe decodes the header at start when no end sentinel was found and
// validates it against the remainder of the container. A nil error means the
// header itself is plausible and the end sentinel is simply missing.
func Probe(container []byte, start int64) (pkgtype.Header, error) {
	h, err := decode(container, start)
	if err != nil {
		return pkgtype.Header{}, err
	}
	remaining := int64(len(container)) - start
	if !sizing.Within(0, h.PayloadLength, remaining) {
		return pkgtype.Header{}, pkgtype.FormatErrorf(pkgtype.ErrHeaderOutOfBounds, start,
			"declared payload length %d exceeds the %d bytes remaining", h.PayloadLength, remaining)
	}
	region := pkgtype.Region{Start: start, End: start + int64(h.PayloadLength)} //nolint:gosec // bounded by remaining
	if err := checkIndex(h, region); err != nil {
		return pkgtype.Header{}, err
	}
	return h, nil
}

// Encode returns the on-disk form of h.
func Encode(h pkgtype.Header) ([]byte, error) {
	return restruct.Pack(binary.LittleEndian, &raw{
		Version:       h.Version,
		PayloadLength: h.PayloadLength,
		IndexOffset:   h.IndexOffset,
		IndexLength:   h.IndexLength,
	})
}

func decode(container []byte, start int64) (pkgtype.Header, error) {
	if start < 0 || start > int64(len(container)) || int64(len(container))-start < Size {
		return pkgtype.Header{}, pkgtype.FormatErrorf(pkgtype.ErrTruncatedHeader, start,
			"need %d header bytes, have %d", Size, max(int64(len(container))-start, 0))
	}

	var r raw
	if err := restruct.Unpack(container[start:start+Size], binary.LittleEndian, &r); err != nil {
		return pkgtype.Header{}, pkgtype.FormatErrorf(pkgtype.ErrTruncatedHeader, start, "%v", err)
	}
	if !Supported(r.Version) {
		return pkgtype.Header{}, &pkgtype.FormatError{
			Offset: start,
			Err:    &VersionError{Version: r.Version},
		}
	}

	return pkgtype.Header{
		Version:       r.Version,
		PayloadLength: r.PayloadLength,
		IndexOffset:   r.IndexOffset,
		IndexLength:   r.IndexLength,
	}, nil
}

func checkIndex(h pkgtype.Header, region pkgtype.Region) error {
	if h.IndexOffset < Size {
		return pkgtype.FormatErrorf(pkgtype.ErrHeaderOutOfBounds, region.Start,
			"index offset %d overlaps the %d-byte header", h.IndexOffset, Size)
	}
	if !sizing.Within(h.IndexOffset, h.IndexLength, region.Len()) {
		return pkgtype.FormatErrorf(pkgtype.ErrHeaderOutOfBounds, region.Start,
			"index range [%d, +%d) exceeds region length %d", h.IndexOffset, h.IndexLength, region.Len())
	}
	return nil
}

// VersionError reports an unrecognized format version.
type VersionError struct {
	Version uint32
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("%v: %d", pkgtype.ErrUnsupportedVersion, e.Version)
}

// Is matches pkgtype.ErrUnsupportedVersion.
func (e *VersionError) Is(target error) bool {
	return target == pkgtype.ErrUnsupportedVersion
}
