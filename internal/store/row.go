package store

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Blob is a binary field value: an image, a recording, an attached file.
type Blob struct {
	MIME string
	Data []byte
}

// Ext returns the file extension implied by the blob's MIME subtype, without
// the dot. "image/png" gives "png"; a missing type gives "bin".
func (b *Blob) Ext() string {
	mime := b.MIME
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	_, sub, ok := strings.Cut(strings.TrimSpace(mime), "/")
	if !ok || sub == "" {
		return "bin"
	}
	if i := strings.IndexByte(sub, '+'); i > 0 {
		sub = sub[:i]
	}
	return strings.ToLower(sub)
}

// Row is one record. Values are JSON-compatible (string, json.Number, bool,
// nil, []any, map[string]any) except binary fields, which hold *Blob or
// []*Blob.
type Row map[string]any

// ID returns the row's numeric id, or 0 when absent or malformed.
func (r Row) ID() int64 {
	id, _ := r.Int("id")
	return id
}

// Int reads an integer field from any of the numeric shapes a row can carry.
func (r Row) Int(key string) (int64, bool) {
	return toInt(r[key])
}

// String reads a string field; non-strings yield "".
func (r Row) String(key string) string {
	s, _ := r[key].(string)
	return s
}

// Blob returns a single-blob field or nil.
func (r Row) Blob(key string) *Blob {
	b, _ := r[key].(*Blob)
	return b
}

// Blobs returns an array-of-blobs field. A []any whose elements are all
// blobs is accepted too; mixed arrays return nil, see BlobArray.
func (r Row) Blobs(key string) []*Blob {
	switch v := r[key].(type) {
	case []*Blob:
		return v
	case []any:
		out := make([]*Blob, 0, len(v))
		for _, e := range v {
			b, ok := e.(*Blob)
			if !ok {
				return nil
			}
			out = append(out, b)
		}
		return out
	}
	return nil
}

// BlobArray returns the elements of v when v is a non-empty array whose first
// element is a blob, and nil otherwise. Later elements may be any value.
func BlobArray(v any) []any {
	switch a := v.(type) {
	case []*Blob:
		if len(a) == 0 {
			return nil
		}
		out := make([]any, len(a))
		for i, b := range a {
			out[i] = b
		}
		return out
	case []any:
		if len(a) == 0 {
			return nil
		}
		if _, ok := a[0].(*Blob); ok {
			return a
		}
	}
	return nil
}

// Clone returns a shallow copy of the row.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// splitBlobs separates binary fields from the JSON-compatible remainder.
func (r Row) splitBlobs() (Row, map[string]any) {
	body := make(Row, len(r))
	blobs := make(map[string]any)
	for k, v := range r {
		switch bv := v.(type) {
		case *Blob:
			blobs[k] = bv
		case []*Blob:
			blobs[k] = bv
		default:
			elems := BlobArray(v)
			if elems == nil {
				body[k] = v
				continue
			}
			// Blob elements go to the blobs table at their index. Other
			// elements stay in the body with null in the blob slots.
			bs := make([]*Blob, len(elems))
			rest := make([]any, len(elems))
			mixed := false
			for i, e := range elems {
				if b, ok := e.(*Blob); ok {
					bs[i] = b
					continue
				}
				rest[i] = e
				mixed = true
			}
			blobs[k] = bs
			if mixed {
				body[k] = rest
			}
		}
	}
	return body, blobs
}

func toInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		return int64(n), n == float64(int64(n))
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		return i, err == nil
	}
	return 0, false
}

func decodeBody(data string) (Row, error) {
	dec := json.NewDecoder(strings.NewReader(data))
	dec.UseNumber()
	var row Row
	if err := dec.Decode(&row); err != nil {
		return nil, fmt.Errorf("failed to decode row body: %w", err)
	}
	if row == nil {
		row = Row{}
	}
	return row, nil
}
