package index

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strconv"

	"github.com/meigma/unpkg/internal/pkgtype"
)

// fileArity is the number of elements in a JSON file node:
// [data_offset, data_length, compression].
const fileArity = 3

// jsonWalker decodes a version 1 index with a token stream so that object
// key order, which encodes the depth-first order, is preserved.
type jsonWalker struct {
	dec  *json.Decoder
	base int64
	f    *flattener
	path []string
}

func decodeJSON(data []byte, base int64, f *flattener) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	w := &jsonWalker{dec: dec, base: base, f: f}

	tok, err := w.token()
	if err != nil {
		return err
	}
	if tok != json.Delim('{') {
		return w.corrupt("root must be a directory object, got %s", describe(tok))
	}
	if err := w.directory(1); err != nil {
		return err
	}

	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return w.corrupt("trailing data after root directory")
	}
	return nil
}

// directory walks the members of an object whose opening brace was consumed.
func (w *jsonWalker) directory(depth int) error {
	if depth > maxDepth {
		return w.corrupt("directory nesting exceeds %d levels", maxDepth)
	}
	for w.dec.More() {
		tok, err := w.token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return w.corrupt("expected node name, got %s", describe(tok))
		}

		tok, err = w.token()
		if err != nil {
			return err
		}
		w.path = append(w.path, name)
		switch tok {
		case json.Delim('{'):
			err = w.directory(depth + 1)
		case json.Delim('['):
			err = w.file()
		default:
			err = w.corrupt("node %q must be an object or array, got %s", name, describe(tok))
		}
		w.path = w.path[:len(w.path)-1]
		if err != nil {
			return err
		}
	}

	tok, err := w.token()
	if err != nil {
		return err
	}
	if tok != json.Delim('}') {
		return w.corrupt("expected end of directory, got %s", describe(tok))
	}
	return nil
}

// file decodes the elements of an array whose opening bracket was consumed.
func (w *jsonWalker) file() error {
	var fields [fileArity]uint64
	for i := range fileArity {
		tok, err := w.token()
		if err != nil {
			return err
		}
		num, ok := tok.(json.Number)
		if !ok {
			return w.corrupt("file node field %d must be a number, got %s", i, describe(tok))
		}
		v, err := strconv.ParseUint(num.String(), 10, 64)
		if err != nil {
			return w.corrupt("file node field %d: %q is not a non-negative integer", i, num.String())
		}
		fields[i] = v
	}

	tok, err := w.token()
	if err != nil {
		return err
	}
	if tok != json.Delim(']') {
		return w.corrupt("file node must have exactly %d fields", fileArity)
	}
	if fields[2] > 0xff {
		return w.corrupt("compression code %d out of range", fields[2])
	}

	w.f.file(w.path, fields[0], fields[1], pkgtype.Compression(fields[2]))
	return nil
}

// token reads the next token, converting decoder failures to ErrIndexCorrupt.
func (w *jsonWalker) token() (json.Token, error) {
	tok, err := w.dec.Token()
	if err == nil {
		return tok, nil
	}
	var syntax *json.SyntaxError
	switch {
	case errors.As(err, &syntax):
		return nil, pkgtype.FormatErrorf(pkgtype.ErrIndexCorrupt, w.base+syntax.Offset, "%v", syntax)
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return nil, w.corrupt("unexpected end of index")
	default:
		return nil, w.corrupt("%v", err)
	}
}

func (w *jsonWalker) corrupt(format string, a ...any) error {
	return pkgtype.FormatErrorf(pkgtype.ErrIndexCorrupt, w.base+w.dec.InputOffset(), format, a...)
}

func describe(tok json.Token) string {
	switch v := tok.(type) {
	case json.Delim:
		return strconv.Quote(v.String())
	case string:
		return "string " + strconv.Quote(v)
	case json.Number:
		return "number " + v.String()
	case bool:
		return "boolean"
	case nil:
		return "null"
	default:
		return "unexpected token"
	}
}
