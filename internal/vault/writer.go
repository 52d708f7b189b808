package vault

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	natomic "github.com/natefinch/atomic"
)

// Writer writes files below the vault root. Paths are slash-separated and
// relative to the root.
type Writer interface {
	WriteFile(ctx context.Context, rel string, data []byte) error
}

// DirWriter writes into a local directory. Each file is written to a temp
// file and renamed into place, so an interrupted sync never leaves a
// truncated file behind.
type DirWriter struct {
	root string
}

// NewDirWriter returns a writer rooted at root.
func NewDirWriter(root string) *DirWriter {
	return &DirWriter{root: root}
}

// WriteFile creates parent directories as needed and replaces rel.
func (w *DirWriter) WriteFile(ctx context.Context, rel string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path, err := w.resolve(rel)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", rel, err)
	}
	if err := natomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write %s: %w", rel, err)
	}
	return nil
}

// resolve joins rel onto the root and rejects paths that escape it.
func (w *DirWriter) resolve(rel string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(rel))
	if clean == "." || filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid vault path %q", rel)
	}
	return filepath.Join(w.root, clean), nil
}

// countingWriter counts successful writes for sync reports.
type countingWriter struct {
	Writer
	n atomic.Int64
}

func (c *countingWriter) WriteFile(ctx context.Context, rel string, data []byte) error {
	if err := c.Writer.WriteFile(ctx, rel, data); err != nil {
		return err
	}
	c.n.Add(1)
	return nil
}

// WriteJSON writes v as indented JSON with a trailing newline. Map keys are
// sorted by encoding/json, so unchanged data always produces the same bytes.
func WriteJSON(ctx context.Context, w Writer, rel string, v any) error {
	data, err := encodeJSON(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", rel, err)
	}
	return w.WriteFile(ctx, rel, data)
}

func encodeJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
