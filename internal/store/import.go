package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Fixture is a TOML document of rows to load into the store.
//
//	[[rows]]
//	table = "projects"
//	fields = { id = 1, title = "Desk lamp", status = "planning" }
//
//	  [[rows.blobs]]
//	  field = "cover"
//	  mime = "image/png"
//	  path = "lamp.png"
//
//	[settings]
//	"pref.theme" = "dark"
type Fixture struct {
	Rows     []FixtureRow      `toml:"rows"`
	Settings map[string]string `toml:"settings"`
}

// FixtureRow is one row of a fixture.
type FixtureRow struct {
	Table  string         `toml:"table"`
	Fields map[string]any `toml:"fields"`
	Blobs  []FixtureBlob  `toml:"blobs"`
}

// FixtureBlob attaches a file from disk to a row field. With Array set the
// blob is appended to a list field instead of replacing a single value.
type FixtureBlob struct {
	Field string `toml:"field"`
	MIME  string `toml:"mime"`
	Path  string `toml:"path"`
	Array bool   `toml:"array"`
}

// ImportResult summarizes an import.
type ImportResult struct {
	Rows     int
	Blobs    int
	Settings int
}

// ImportFile loads a TOML fixture from path. Blob paths are resolved relative
// to the fixture's directory.
func (db *DB) ImportFile(ctx context.Context, path string) (ImportResult, error) {
	var fx Fixture
	if _, err := toml.DecodeFile(path, &fx); err != nil {
		return ImportResult{}, fmt.Errorf("failed to parse fixture %s: %w", path, err)
	}
	return db.Import(ctx, fx, filepath.Dir(path))
}

// Import writes every fixture row and setting.
func (db *DB) Import(ctx context.Context, fx Fixture, baseDir string) (ImportResult, error) {
	var res ImportResult

	for i, fr := range fx.Rows {
		if fr.Table == "" {
			return res, fmt.Errorf("fixture row %d: table is required", i)
		}
		row := Row(fr.Fields)
		if row == nil {
			row = Row{}
		}
		for _, fb := range fr.Blobs {
			p := fb.Path
			if !filepath.IsAbs(p) {
				p = filepath.Join(baseDir, p)
			}
			// #nosec G304 - fixture paths come from the operator
			data, err := os.ReadFile(p)
			if err != nil {
				return res, fmt.Errorf("fixture row %d: failed to read blob %s: %w", i, fb.Path, err)
			}
			b := &Blob{MIME: fb.MIME, Data: data}
			if fb.Array {
				row[fb.Field] = append(row.Blobs(fb.Field), b)
			} else {
				row[fb.Field] = b
			}
			res.Blobs++
		}
		if _, err := db.Put(ctx, Table(fr.Table), row); err != nil {
			return res, fmt.Errorf("fixture row %d: %w", i, err)
		}
		res.Rows++
	}

	for k, v := range fx.Settings {
		if err := db.SetSetting(ctx, k, v); err != nil {
			return res, err
		}
		res.Settings++
	}

	return res, nil
}
