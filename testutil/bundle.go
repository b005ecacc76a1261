// Package testutil builds synthetic packaged executables for tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/andybalholm/brotli"
	flatbuffers "github.com/google/flatbuffers/go"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/meigma/unpkg/internal/fb"
	"github.com/meigma/unpkg/internal/header"
	"github.com/meigma/unpkg/internal/pkgtype"
	"github.com/meigma/unpkg/internal/scan"
)

// node is a directory or file in the index tree under construction.
type node struct {
	name        string
	dir         bool
	children    []*node
	offset      uint64
	length      uint64
	compression pkgtype.Compression
}

// Builder assembles a container laid out as
// stub | START | header | file data | index | END | trailer.
//
// File data precedes the index so that entry offsets are known before the
// index is serialized.
type Builder struct {
	version    uint32
	stub       []byte
	trailer    []byte
	root       *node
	data       bytes.Buffer
	rawIndex   []byte
	editHeader func(*pkgtype.Header)
}

// NewBuilder returns a Builder producing a version 1 (JSON index) bundle.
func NewBuilder() *Builder {
	return &Builder{
		version: header.VersionJSON,
		stub:    []byte("\x7fELF host stub"),
		root:    &node{dir: true},
	}
}

// Version sets the header format version and the index encoding.
func (b *Builder) Version(v uint32) *Builder {
	b.version = v
	return b
}

// Stub sets the host binary bytes that precede the start sentinel.
func (b *Builder) Stub(stub []byte) *Builder {
	b.stub = stub
	return b
}

// Trailer sets bytes appended after the end sentinel.
func (b *Builder) Trailer(trailer []byte) *Builder {
	b.trailer = trailer
	return b
}

// RawIndex replaces the serialized index with data.
func (b *Builder) RawIndex(data []byte) *Builder {
	b.rawIndex = data
	return b
}

// EditHeader registers fn to modify the header right before it is encoded.
func (b *Builder) EditHeader(fn func(*pkgtype.Header)) *Builder {
	b.editHeader = fn
	return b
}

// AddFile encodes content with c and adds it at the slash-separated path.
func (b *Builder) AddFile(path string, content []byte, c pkgtype.Compression) *Builder {
	return b.AddFileSegments(strings.Split(path, "/"), content, c)
}

// AddFileSegments is AddFile with explicit path segments, allowing names that
// contain separators.
func (b *Builder) AddFileSegments(segments []string, content []byte, c pkgtype.Compression) *Builder {
	stored, err := Encode(content, c)
	if err != nil {
		panic(err)
	}
	off := uint64(header.Size + b.data.Len()) //nolint:gosec // test data is small
	b.data.Write(stored)
	return b.AddRawFile(segments, off, uint64(len(stored)), c)
}

// AddRawFile adds a file node with explicit region-relative coordinates and
// stores no data for it.
func (b *Builder) AddRawFile(segments []string, off, length uint64, c pkgtype.Compression) *Builder {
	dir := b.root
	for _, seg := range segments[:len(segments)-1] {
		dir = dir.subdir(seg)
	}
	dir.children = append(dir.children, &node{
		name:        segments[len(segments)-1],
		offset:      off,
		length:      length,
		compression: c,
	})
	return b
}

// AddData appends stored bytes without indexing them and returns their
// region-relative offset.
func (b *Builder) AddData(stored []byte) uint64 {
	off := uint64(header.Size + b.data.Len()) //nolint:gosec // test data is small
	b.data.Write(stored)
	return off
}

func (n *node) subdir(name string) *node {
	for _, c := range n.children {
		if c.dir && c.name == name {
			return c
		}
	}
	d := &node{name: name, dir: true}
	n.children = append(n.children, d)
	return d
}

// Index returns the serialized index for the current tree.
func (b *Builder) Index() ([]byte, error) {
	if b.rawIndex != nil {
		return b.rawIndex, nil
	}
	switch b.version {
	case header.VersionFlatBuffers:
		return encodeFlatBuffers(b.root), nil
	default:
		var buf bytes.Buffer
		if err := encodeJSON(&buf, b.root); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
}

// Build returns the complete container bytes.
func (b *Builder) Build() ([]byte, error) {
	idx, err := b.Index()
	if err != nil {
		return nil, err
	}

	indexOffset := header.Size + b.data.Len()
	h := pkgtype.Header{
		Version:       b.version,
		PayloadLength: uint64(indexOffset + len(idx)), //nolint:gosec // test data is small
		IndexOffset:   uint64(indexOffset),            //nolint:gosec // test data is small
		IndexLength:   uint64(len(idx)),
	}
	if b.editHeader != nil {
		b.editHeader(&h)
	}
	hdr, err := header.Encode(h)
	if err != nil {
		return nil, fmt.Errorf("encode header: %w", err)
	}

	var out bytes.Buffer
	out.Write(b.stub)
	out.Write(scan.StartSentinel())
	out.Write(hdr)
	out.Write(b.data.Bytes())
	out.Write(idx)
	out.Write(scan.EndSentinel())
	out.Write(b.trailer)
	return out.Bytes(), nil
}

// MustBuild is Build that panics on error.
func (b *Builder) MustBuild() []byte {
	data, err := b.Build()
	if err != nil {
		panic(err)
	}
	return data
}

// RegionStart returns the container offset of the payload region.
func (b *Builder) RegionStart() int64 {
	return int64(len(b.stub) + scan.SentinelSize)
}

func encodeJSON(buf *bytes.Buffer, dir *node) error {
	buf.WriteByte('{')
	for i, c := range dir.children {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(c.name)
		if err != nil {
			return err
		}
		buf.Write(name)
		buf.WriteByte(':')
		if c.dir {
			if err := encodeJSON(buf, c); err != nil {
				return err
			}
			continue
		}
		buf.WriteByte('[')
		buf.WriteString(strconv.FormatUint(c.offset, 10))
		buf.WriteByte(',')
		buf.WriteString(strconv.FormatUint(c.length, 10))
		buf.WriteByte(',')
		buf.WriteString(strconv.Itoa(int(c.compression)))
		buf.WriteByte(']')
	}
	buf.WriteByte('}')
	return nil
}

func encodeFlatBuffers(root *node) []byte {
	builder := flatbuffers.NewBuilder(1024)
	rootOffset := buildNode(builder, root)

	fb.IndexStart(builder)
	fb.IndexAddRoot(builder, rootOffset)
	builder.Finish(fb.IndexEnd(builder))
	return builder.FinishedBytes()
}

// buildNode serializes n bottom-up; children must be finished before the
// parent object is started.
func buildNode(builder *flatbuffers.Builder, n *node) flatbuffers.UOffsetT {
	var childrenOffset flatbuffers.UOffsetT
	if n.dir {
		offsets := make([]flatbuffers.UOffsetT, len(n.children))
		for i, c := range n.children {
			offsets[i] = buildNode(builder, c)
		}
		fb.NodeStartChildrenVector(builder, len(offsets))
		for i := len(offsets) - 1; i >= 0; i-- {
			builder.PrependUOffsetT(offsets[i])
		}
		childrenOffset = builder.EndVector(len(offsets))
	}
	nameOffset := builder.CreateString(n.name)

	fb.NodeStart(builder)
	fb.NodeAddName(builder, nameOffset)
	if n.dir {
		fb.NodeAddKind(builder, fb.NodeKindDirectory)
		fb.NodeAddChildren(builder, childrenOffset)
	} else {
		fb.NodeAddKind(builder, fb.NodeKindFile)
		fb.NodeAddDataOffset(builder, n.offset)
		fb.NodeAddDataLength(builder, n.length)
		fb.NodeAddCompression(builder, fb.Compression(n.compression))
	}
	return fb.NodeEnd(builder)
}

// Encode returns content encoded with c.
func Encode(content []byte, c pkgtype.Compression) ([]byte, error) {
	var buf bytes.Buffer
	switch c {
	case pkgtype.CompressionNone:
		return bytes.Clone(content), nil
	case pkgtype.CompressionDeflate:
		w, err := flate.NewWriter(&buf, flate.BestCompression)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(content); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
	case pkgtype.CompressionGzip:
		w := gzip.NewWriter(&buf)
		if _, err := w.Write(content); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
	case pkgtype.CompressionBrotli:
		w := brotli.NewWriter(&buf)
		if _, err := w.Write(content); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
	case pkgtype.CompressionZstd:
		enc, err := zstd.NewWriter(nil, zstd.WithZeroFrames(true))
		if err != nil {
			return nil, err
		}
		defer enc.Close()
		return enc.EncodeAll(content, nil), nil
	default:
		// Unknown codes store the content verbatim so decoders can reject them.
		return bytes.Clone(content), nil
	}
	return buf.Bytes(), nil
}
