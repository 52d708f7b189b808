package vault

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/workshopops/workshop/internal/store"
)

// instructionMeta is the YAML front matter of an instruction file.
type instructionMeta struct {
	ID        int64    `yaml:"id"`
	Name      string   `yaml:"name"`
	Category  string   `yaml:"category,omitempty"`
	Tags      []string `yaml:"tags,omitempty"`
	UpdatedAt string   `yaml:"updated_at,omitempty"`
}

// writeInstructions writes LLM Instructions/<category>/<name>.md for each
// instruction: YAML front matter, then the content.
func (e *Engine) writeInstructions(ctx context.Context, w Writer, _ store.Table, rows []store.Row) error {
	var errs []error
	for _, row := range rows {
		rel, data, err := renderInstruction(row)
		if err == nil {
			err = w.WriteFile(ctx, rel, data)
		}
		if err != nil {
			e.logger.Printf("WARNING: Failed to sync instruction %d: %v", row.ID(), err)
			errs = append(errs, fmt.Errorf("instruction %d: %w", row.ID(), err))
		}
	}
	return errors.Join(errs...)
}

func renderInstruction(row store.Row) (string, []byte, error) {
	meta := instructionMeta{
		ID:        row.ID(),
		Name:      row.String("name"),
		Category:  row.String("category"),
		Tags:      stringList(row["tags"]),
		UpdatedAt: row.String("updated_at"),
	}

	category := Sanitize(meta.Category)
	if category == "" || category == "_" {
		category = "General"
	}
	name := Sanitize(meta.Name)
	if name == "" || name == "_" {
		name = "instruction_" + itoa(meta.ID)
	}

	var buf bytes.Buffer
	buf.WriteString("---\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(meta); err != nil {
		return "", nil, fmt.Errorf("failed to encode front matter: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", nil, err
	}
	buf.WriteString("---\n\n")

	content := row.String("content")
	buf.WriteString(content)
	if content != "" && !strings.HasSuffix(content, "\n") {
		buf.WriteByte('\n')
	}

	return joinRel("LLM Instructions", category, name+".md"), buf.Bytes(), nil
}

// stringList reads a list of strings from a row value. A comma-separated
// string is accepted too.
func stringList(v any) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		var out []string
		for _, s := range strings.Split(t, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
