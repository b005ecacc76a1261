package index

import (
	flatbuffers "github.com/google/flatbuffers/go"

	"github.com/meigma/unpkg/internal/fb"
	"github.com/meigma/unpkg/internal/pkgtype"
)

// fbWalker decodes a version 2 index. FlatBuffers accessors do not bounds
// check untrusted buffers, so every access runs under a recover in
// decodeFlatBuffers.
type fbWalker struct {
	base   int64
	f      *flattener
	path   []string
	visits int
	limit  int

	// pos is the buffer position of the table being read.
	pos flatbuffers.UOffsetT
}

func decodeFlatBuffers(data []byte, base int64, f *flattener) (err error) {
	w := &fbWalker{base: base, f: f}
	defer func() {
		if r := recover(); r != nil {
			err = pkgtype.FormatErrorf(pkgtype.ErrIndexCorrupt, base+int64(w.pos), "malformed flatbuffer: %v", r)
		}
	}()
	if len(data) < 2*flatbuffers.SizeUOffsetT {
		return pkgtype.FormatErrorf(pkgtype.ErrIndexCorrupt, base, "index too short (%d bytes)", len(data))
	}

	idx := fb.GetRootAsIndex(data, 0)
	w.pos = idx.Table().Pos
	var root fb.Node
	if idx.Root(&root) == nil {
		return pkgtype.FormatErrorf(pkgtype.ErrIndexCorrupt, base, "index has no root node")
	}
	w.pos = root.Table().Pos
	if root.Kind() != fb.NodeKindDirectory {
		return pkgtype.FormatErrorf(pkgtype.ErrIndexCorrupt, base, "root node must be a directory, got %s", root.Kind())
	}

	// Children are referenced by offset, so a crafted buffer can share one
	// subtree between many parents. Every real node costs at least one
	// 4-byte vector slot, which bounds the visits of a well-formed tree.
	w.limit = len(data) / flatbuffers.SizeUOffsetT
	return w.directory(&root, 1)
}

func (w *fbWalker) directory(n *fb.Node, depth int) error {
	if depth > maxDepth {
		return w.corrupt(n, "directory nesting exceeds %d levels", maxDepth)
	}
	count := n.ChildrenLength()
	for i := range count {
		w.visits++
		if w.visits > w.limit {
			return w.corrupt(n, "node count exceeds what the index can hold")
		}

		var child fb.Node
		w.pos = n.Table().Pos
		n.Children(&child, i)
		w.pos = child.Table().Pos
		name := string(child.Name())

		w.path = append(w.path, name)
		var err error
		switch child.Kind() {
		case fb.NodeKindDirectory:
			err = w.directory(&child, depth+1)
		case fb.NodeKindFile:
			w.f.file(w.path, child.DataOffset(), child.DataLength(), pkgtype.Compression(child.Compression()))
		default:
			err = w.corrupt(&child, "node %q has unknown kind %s", name, child.Kind())
		}
		w.path = w.path[:len(w.path)-1]
		if err != nil {
			return err
		}
	}
	return nil
}

func (w *fbWalker) corrupt(n *fb.Node, format string, a ...any) error {
	return pkgtype.FormatErrorf(pkgtype.ErrIndexCorrupt, w.base+int64(n.Table().Pos), format, a...)
}
