package vault

import (
	"context"
	"fmt"
	"strings"

	"github.com/workshopops/workshop/internal/store"
)

// projectHandler writes one project-scoped table for one project.
type projectHandler func(e *Engine, ctx context.Context, w Writer, dir string, table store.Table, rows []store.Row) error

var projectHandlers = map[store.Table]projectHandler{
	store.ProjectScripts:  (*Engine).writeScripts,
	store.NotebookEntries: (*Engine).writeNotebook,
	store.ProjectFiles:    (*Engine).writeProjectFiles,
}

// projectDir returns Projects/<id> - <title>.
func projectDir(project store.Row) string {
	title := project.String("title")
	if title == "" {
		title = project.String("name")
	}
	return joinRel("Projects", folderName(project.ID(), title))
}

// syncProject writes project.json and every non-empty project-scoped table.
// A failing table is logged and recorded in res; only a failure to write the
// project record itself is returned.
func (e *Engine) syncProject(ctx context.Context, w Writer, project store.Row, res *Result) error {
	dir := projectDir(project)

	rows, err := ExtractBlobs(ctx, w, []store.Row{project}, dir)
	if err != nil {
		return err
	}
	if err := WriteJSON(ctx, w, joinRel(dir, "project.json"), rows[0]); err != nil {
		return err
	}

	for _, table := range store.ProjectScoped() {
		rows, err := e.tables.ByForeignKey(ctx, table, "project_id", project.ID())
		if err != nil {
			e.logger.Printf("WARNING: Failed to read %s for project %d: %v", table, project.ID(), err)
			res.fail(fmt.Sprintf("project %d/%s", project.ID(), table), err)
			continue
		}
		if len(rows) == 0 {
			continue
		}

		handler, ok := projectHandlers[table]
		if !ok {
			handler = (*Engine).writeProjectTable
		}
		if err := handler(e, ctx, w, dir, table, rows); err != nil {
			e.logger.Printf("WARNING: Failed to sync %s for project %d: %v", table, project.ID(), err)
			res.fail(fmt.Sprintf("project %d/%s", project.ID(), table), err)
		}
	}
	return nil
}

// writeProjectTable extracts blobs into assets/<name>/ and dumps the rows as
// assets/<name>/<name>.json.
func (e *Engine) writeProjectTable(ctx context.Context, w Writer, dir string, table store.Table, rows []store.Row) error {
	name := table.SimpleName()
	folder := joinRel(dir, "assets", name)

	out, err := ExtractBlobs(ctx, w, rows, folder)
	if err != nil {
		return err
	}
	return WriteJSON(ctx, w, joinRel(folder, name+".json"), out)
}

// scriptExt maps a declared script language to a file extension.
var scriptExt = map[string]string{
	"arduino":     "ino",
	"bash":        "sh",
	"c":           "c",
	"c++":         "cpp",
	"cpp":         "cpp",
	"csharp":      "cs",
	"css":         "css",
	"gcode":       "gcode",
	"go":          "go",
	"html":        "html",
	"java":        "java",
	"javascript":  "js",
	"json":        "json",
	"lua":         "lua",
	"markdown":    "md",
	"micropython": "py",
	"openscad":    "scad",
	"python":      "py",
	"ruby":        "rb",
	"rust":        "rs",
	"shell":       "sh",
	"sql":         "sql",
	"typescript":  "ts",
	"yaml":        "yml",
}

// ScriptExt returns the extension for language, "txt" when unknown.
func ScriptExt(language string) string {
	if ext, ok := scriptExt[strings.ToLower(strings.TrimSpace(language))]; ok {
		return ext
	}
	return "txt"
}

// writeScripts writes each script as scripts/<name>.<ext>.
func (e *Engine) writeScripts(ctx context.Context, w Writer, dir string, _ store.Table, rows []store.Row) error {
	for _, row := range rows {
		ext := ScriptExt(row.String("language"))

		stem := row.String("name")
		if s, x := stemAndExt(stem); x == ext {
			stem = s
		}
		stem = Sanitize(stem)
		if stem == "" || stem == "_" {
			stem = "script_" + itoa(row.ID())
		}

		var content []byte
		if b := blobOf(row, "content", "code", "source"); b != nil {
			content = b.Data
		} else {
			text := row.String("content")
			if text == "" {
				text = row.String("code")
			}
			content = []byte(text)
		}

		if err := w.WriteFile(ctx, joinRel(dir, "scripts", stem+"."+ext), content); err != nil {
			return err
		}
	}
	return nil
}

// writeNotebook writes notebook/<date>_<id>.json per entry and one
// notebook/<date>_<id>_img<N>.<ext> file per embedded image.
func (e *Engine) writeNotebook(ctx context.Context, w Writer, dir string, _ store.Table, rows []store.Row) error {
	folder := joinRel(dir, "notebook")

	for _, row := range rows {
		base := entryDate(row) + "_" + itoa(row.ID())
		entry := row.Clone()

		if images := store.BlobArray(row["images"]); images != nil {
			refs, err := extractArray(ctx, w, images, func(i int, img *store.Blob) string {
				ext := img.Ext()
				if img.MIME == "" {
					ext = "png"
				}
				return joinRel(folder, fmt.Sprintf("%s_img%d.%s", base, i, ext))
			})
			if err != nil {
				return err
			}
			entry["images"] = refs
		}

		out, err := ExtractBlobs(ctx, w, []store.Row{entry}, folder)
		if err != nil {
			return err
		}
		if err := WriteJSON(ctx, w, joinRel(folder, base+".json"), out[0]); err != nil {
			return err
		}
	}
	return nil
}

// entryDate returns the YYYY-MM-DD part of an entry's date, or "undated".
// Slashes become dashes so 2024/02/01 and 2024-02-01 name the same file.
func entryDate(row store.Row) string {
	for _, key := range []string{"date", "created_at", "createdAt"} {
		s := row.String(key)
		if len(s) > 10 {
			s = s[:10]
		}
		s = strings.Map(func(r rune) rune {
			switch {
			case r >= '0' && r <= '9', r == '-':
				return r
			case r == '/':
				return '-'
			}
			return -1
		}, s)
		if s != "" {
			return s
		}
	}
	return "undated"
}

// writeProjectFiles writes each attached file's raw content under assets/
// with its own name.
func (e *Engine) writeProjectFiles(ctx context.Context, w Writer, dir string, _ store.Table, rows []store.Row) error {
	for _, row := range rows {
		b := blobOf(row, "data", "content", "blob", "file")
		var data []byte
		switch {
		case b != nil:
			data = b.Data
		case row.String("content") != "":
			data = []byte(row.String("content"))
		default:
			e.logger.Printf("WARNING: project file %d has no content, skipping", row.ID())
			continue
		}

		name := fileName(row.String("name"))
		if name == "" {
			name = "file_" + itoa(row.ID())
			if b != nil {
				name += "." + b.Ext()
			}
		}
		if err := w.WriteFile(ctx, joinRel(dir, "assets", name), data); err != nil {
			return err
		}
	}
	return nil
}
