package index

import (
	"fmt"
	"iter"
	"strings"

	"github.com/meigma/unpkg/internal/header"
	"github.com/meigma/unpkg/internal/pkgtype"
	"github.com/meigma/unpkg/internal/sizing"
)

// maxDepth bounds directory nesting in both index encodings.
const maxDepth = 256

// Record is one file node of the index in depth-first order.
//
// Err is nil when Entry passed validation. Otherwise Err wraps one of
// ErrUnsafePath, ErrDuplicatePath or ErrEntryRangeInvalid and Entry carries
// whatever the index declared.
type Record struct {
	Entry pkgtype.Entry
	Err   error
}

// Index is the flattened bundle index.
type Index struct {
	version uint32
	records []Record
	valid   int
}

// Decode extracts the index byte range described by h and parses it according
// to h.Version. Syntax and schema violations are returned as a
// *pkgtype.FormatError wrapping ErrIndexCorrupt. Entry-level problems never
// fail Decode; they are recorded on the affected records.
func Decode(container []byte, region pkgtype.Region, h pkgtype.Header) (*Index, error) {
	if !sizing.Within(h.IndexOffset, h.IndexLength, region.Len()) ||
		!sizing.Within(0, uint64(region.End), int64(len(container))) { //nolint:gosec // End is non-negative
		return nil, pkgtype.FormatErrorf(pkgtype.ErrHeaderOutOfBounds, region.Start,
			"index range [%d, +%d) outside region %s", h.IndexOffset, h.IndexLength, region)
	}
	base := region.Start + int64(h.IndexOffset)         //nolint:gosec // bounded by region length
	data := container[base : base+int64(h.IndexLength)] //nolint:gosec // bounded by region length

	f := newFlattener(region.Len())
	var err error
	switch h.Version {
	case header.VersionJSON:
		err = decodeJSON(data, base, f)
	case header.VersionFlatBuffers:
		err = decodeFlatBuffers(data, base, f)
	default:
		return nil, &pkgtype.FormatError{Offset: region.Start, Err: &header.VersionError{Version: h.Version}}
	}
	if err != nil {
		return nil, err
	}

	return &Index{
		version: h.Version,
		records: f.records,
		valid:   f.valid,
	}, nil
}

// Version returns the format version the index was decoded with.
func (idx *Index) Version() uint32 {
	return idx.version
}

// Len returns the number of file records, including rejected ones.
func (idx *Index) Len() int {
	return len(idx.records)
}

// Valid returns the number of records that passed validation.
func (idx *Index) Valid() int {
	return idx.valid
}

// Record returns the i-th record.
func (idx *Index) Record(i int) Record {
	return idx.records[i]
}

// Records returns an iterator over all records in depth-first order.
func (idx *Index) Records() iter.Seq[Record] {
	return func(yield func(Record) bool) {
		for _, r := range idx.records {
			if !yield(r) {
				return
			}
		}
	}
}

// flattener accumulates records while an index tree is walked.
type flattener struct {
	regionLen int64
	seen      map[string]int // file path -> record index
	dirs      map[string]int // directory path -> first record beneath it
	records   []Record
	valid     int
}

func newFlattener(regionLen int64) *flattener {
	return &flattener{
		regionLen: regionLen,
		seen:      make(map[string]int),
		dirs:      make(map[string]int),
	}
}

// file records a file node reached through segments.
func (f *flattener) file(segments []string, off, length uint64, c pkgtype.Compression) {
	entry := pkgtype.Entry{
		Path:        strings.Join(segments, "/"),
		DataOffset:  off,
		DataLength:  length,
		Compression: c,
	}
	f.records = append(f.records, Record{Entry: entry, Err: f.check(segments, entry)})
	if f.records[len(f.records)-1].Err == nil {
		f.valid++
	}
}

func (f *flattener) check(segments []string, entry pkgtype.Entry) error {
	for _, seg := range segments {
		if !ValidSegment(seg) {
			return fmt.Errorf("%w: segment %q", pkgtype.ErrUnsafePath, seg)
		}
	}
	if first, ok := f.seen[entry.Path]; ok {
		return fmt.Errorf("%w: first declared as file #%d", pkgtype.ErrDuplicatePath, first)
	}
	if first, ok := f.dirs[entry.Path]; ok {
		return fmt.Errorf("%w: already a directory of file #%d", pkgtype.ErrDuplicatePath, first)
	}
	for i := 1; i < len(segments); i++ {
		dir := strings.Join(segments[:i], "/")
		if first, ok := f.seen[dir]; ok {
			return fmt.Errorf("%w: parent %q is file #%d", pkgtype.ErrDuplicatePath, dir, first)
		}
	}

	// The path is claimed even if the range check below fails.
	f.seen[entry.Path] = len(f.records)
	for i := 1; i < len(segments); i++ {
		dir := strings.Join(segments[:i], "/")
		if _, ok := f.dirs[dir]; !ok {
			f.dirs[dir] = len(f.records)
		}
	}
	if !sizing.Within(entry.DataOffset, entry.DataLength, f.regionLen) {
		return fmt.Errorf("%w: [%d, +%d) exceeds region length %d",
			pkgtype.ErrEntryRangeInvalid, entry.DataOffset, entry.DataLength, f.regionLen)
	}
	return nil
}
