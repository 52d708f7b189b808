package vault

import (
	"context"
	"fmt"
	"strconv"

	"github.com/workshopops/workshop/internal/store"
)

// FileRef is the prefix of a path reference that replaces a blob in JSON.
const FileRef = "file://"

// ExtractBlobs writes every binary field of rows into folder and returns
// copies of the rows with those fields replaced by file:// references.
//
//   - a single blob becomes <folder>/<rowId>_<field>.<ext>
//   - an array whose first element is a blob has every blob element written
//     to <folder>/<rowId>_<field>_<i>.<ext>; other elements keep their value
//     and position
//
// Other values pass through unchanged; nested objects are not scanned. The
// input rows are not modified.
func ExtractBlobs(ctx context.Context, w Writer, rows []store.Row, folder string) ([]store.Row, error) {
	out := make([]store.Row, 0, len(rows))
	for _, row := range rows {
		converted, err := extractRow(ctx, w, row, folder)
		if err != nil {
			return nil, err
		}
		out = append(out, converted)
	}
	return out, nil
}

func extractRow(ctx context.Context, w Writer, row store.Row, folder string) (store.Row, error) {
	out := row.Clone()
	id := itoa(row.ID())

	for field := range row {
		if b := row.Blob(field); b != nil {
			rel := joinRel(folder, fmt.Sprintf("%s_%s.%s", id, field, b.Ext()))
			if err := w.WriteFile(ctx, rel, b.Data); err != nil {
				return nil, err
			}
			out[field] = FileRef + rel
			continue
		}

		elems := store.BlobArray(row[field])
		if elems == nil {
			continue
		}
		refs, err := extractArray(ctx, w, elems, func(i int, b *store.Blob) string {
			return joinRel(folder, fmt.Sprintf("%s_%s_%d.%s", id, field, i, b.Ext()))
		})
		if err != nil {
			return nil, err
		}
		out[field] = refs
	}
	return out, nil
}

// extractArray writes each blob element of elems to name(i, blob) and
// replaces it with a file:// reference. Non-blob elements keep their value and
// position. An all-blob array comes back as []string.
func extractArray(ctx context.Context, w Writer, elems []any, name func(int, *store.Blob) string) (any, error) {
	refs := make([]any, len(elems))
	mixed := false
	for i, e := range elems {
		b, ok := e.(*store.Blob)
		if !ok || b == nil {
			refs[i] = e
			mixed = true
			continue
		}
		rel := name(i, b)
		if err := w.WriteFile(ctx, rel, b.Data); err != nil {
			return nil, err
		}
		refs[i] = FileRef + rel
	}
	if mixed {
		return refs, nil
	}
	out := make([]string, len(refs))
	for i, r := range refs {
		out[i] = r.(string)
	}
	return out, nil
}

// blobOf returns the first binary payload of row among fields, in order.
func blobOf(row store.Row, fields ...string) *store.Blob {
	for _, f := range fields {
		if b := row.Blob(f); b != nil {
			return b
		}
	}
	return nil
}

func joinRel(parts ...string) string {
	out := ""
	for _, p := range parts {
		if p == "" {
			continue
		}
		if out == "" {
			out = p
			continue
		}
		out += "/" + p
	}
	return out
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
