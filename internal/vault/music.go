package vault

import (
	"context"
	"errors"
	"fmt"

	"github.com/workshopops/workshop/internal/store"
)

// writeSongs writes one folder per song:
//
//	Music/Songs/<id> - <title>/song.json
//	Music/Songs/<id> - <title>/documents.json
//	Music/Songs/<id> - <title>/recordings/<id>_<name>.<ext>
//	Music/Songs/<id> - <title>/files/<category>/<name>
func (e *Engine) writeSongs(ctx context.Context, w Writer, _ store.Table, songs []store.Row) error {
	var errs []error
	for _, song := range songs {
		if err := e.writeSong(ctx, w, song); err != nil {
			e.logger.Printf("WARNING: Failed to sync song %d: %v", song.ID(), err)
			errs = append(errs, fmt.Errorf("song %d: %w", song.ID(), err))
		}
	}
	return errors.Join(errs...)
}

func (e *Engine) writeSong(ctx context.Context, w Writer, song store.Row) error {
	dir := joinRel("Music", "Songs", folderName(song.ID(), song.String("title")))

	out, err := ExtractBlobs(ctx, w, []store.Row{song}, dir)
	if err != nil {
		return err
	}
	if err := WriteJSON(ctx, w, joinRel(dir, "song.json"), out[0]); err != nil {
		return err
	}

	docs, err := e.tables.ByForeignKey(ctx, store.SongDocuments, "song_id", song.ID())
	if err != nil {
		return err
	}
	if len(docs) > 0 {
		out, err := ExtractBlobs(ctx, w, docs, joinRel(dir, "documents"))
		if err != nil {
			return err
		}
		if err := WriteJSON(ctx, w, joinRel(dir, "documents.json"), out); err != nil {
			return err
		}
	}

	recordings, err := e.tables.ByForeignKey(ctx, store.SongRecordings, "song_id", song.ID())
	if err != nil {
		return err
	}
	if err := e.writeRecordings(ctx, w, joinRel(dir, "recordings"), recordings); err != nil {
		return err
	}

	files, err := e.tables.ByForeignKey(ctx, store.SongFiles, "song_id", song.ID())
	if err != nil {
		return err
	}
	return writeCategorizedFiles(ctx, w, joinRel(dir, "files"), files)
}

// writeRecordings writes each recording's audio as <id>_<name>.<ext> plus a
// recordings.json index whose audio fields reference those files.
func (e *Engine) writeRecordings(ctx context.Context, w Writer, folder string, rows []store.Row) error {
	if len(rows) == 0 {
		return nil
	}

	index := make([]store.Row, 0, len(rows))
	for _, row := range rows {
		entry := row.Clone()
		for _, field := range []string{"data", "blob", "audio", "file"} {
			b := row.Blob(field)
			if b == nil {
				continue
			}
			name := row.String("name")
			if name == "" {
				name = row.String("title")
			}
			rel := joinRel(folder, itoa(row.ID())+"_"+attachmentName(name, b, field))
			if err := w.WriteFile(ctx, rel, b.Data); err != nil {
				return err
			}
			entry[field] = FileRef + rel
			break
		}
		index = append(index, entry)
	}

	out, err := ExtractBlobs(ctx, w, index, folder)
	if err != nil {
		return err
	}
	return WriteJSON(ctx, w, joinRel(folder, "recordings.json"), out)
}

// writeAlbums writes Music/Albums/<id> - <title>/album.json and the album's
// files under files/<category>/.
func (e *Engine) writeAlbums(ctx context.Context, w Writer, _ store.Table, albums []store.Row) error {
	var errs []error
	for _, album := range albums {
		dir := joinRel("Music", "Albums", folderName(album.ID(), album.String("title")))
		err := func() error {
			out, err := ExtractBlobs(ctx, w, []store.Row{album}, dir)
			if err != nil {
				return err
			}
			if err := WriteJSON(ctx, w, joinRel(dir, "album.json"), out[0]); err != nil {
				return err
			}
			files, err := e.tables.ByForeignKey(ctx, store.AlbumFiles, "album_id", album.ID())
			if err != nil {
				return err
			}
			return writeCategorizedFiles(ctx, w, joinRel(dir, "files"), files)
		}()
		if err != nil {
			e.logger.Printf("WARNING: Failed to sync album %d: %v", album.ID(), err)
			errs = append(errs, fmt.Errorf("album %d: %w", album.ID(), err))
		}
	}
	return errors.Join(errs...)
}

// writeCategorizedFiles writes each row's content to
// <folder>/<category>/<name>. Rows without content are skipped.
func writeCategorizedFiles(ctx context.Context, w Writer, folder string, rows []store.Row) error {
	for _, row := range rows {
		b := blobOf(row, "data", "blob", "file", "content")
		if b == nil {
			continue
		}
		category := Sanitize(row.String("category"))
		if category == "" || category == "_" {
			category = "general"
		}
		name := fileName(row.String("name"))
		if name == "" {
			name = itoa(row.ID()) + "." + b.Ext()
		}
		if err := w.WriteFile(ctx, joinRel(folder, category, name), b.Data); err != nil {
			return err
		}
	}
	return nil
}

// attachmentName keeps a name's own extension, or adds the blob's.
func attachmentName(name string, b *store.Blob, fallback string) string {
	stem, ext := stemAndExt(fileName(name))
	if ext == "" {
		ext = b.Ext()
	}
	stem = Sanitize(stem)
	if stem == "" || stem == "_" {
		stem = fallback
	}
	return stem + "." + ext
}
