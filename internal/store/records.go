package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// All returns every row of table ordered by id.
func (db *DB) All(ctx context.Context, table Table) ([]Row, error) {
	return db.queryRows(ctx, table,
		`SELECT id, body FROM records WHERE tbl = ? ORDER BY id`, string(table))
}

// ByForeignKey returns the rows of table whose field key equals value,
// ordered by id.
func (db *DB) ByForeignKey(ctx context.Context, table Table, key string, value any) ([]Row, error) {
	if n, ok := toInt(value); ok {
		value = n
	}
	return db.queryRows(ctx, table,
		`SELECT id, body FROM records WHERE tbl = ? AND json_extract(body, ?) = ? ORDER BY id`,
		string(table), "$."+key, value)
}

// Get returns one row by id, or ErrNotFound.
func (db *DB) Get(ctx context.Context, table Table, id int64) (Row, error) {
	rows, err := db.queryRows(ctx, table,
		`SELECT id, body FROM records WHERE tbl = ? AND id = ?`, string(table), id)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s %d: %w", table, id, ErrNotFound)
	}
	return rows[0], nil
}

// Tables returns the names of every table that currently holds rows.
func (db *DB) Tables(ctx context.Context) ([]Table, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT DISTINCT tbl FROM records ORDER BY tbl`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	var tables []Table
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		tables = append(tables, Table(name))
	}
	return tables, rows.Err()
}

// Put inserts or replaces a row and returns its id. A row without an id gets
// the next free id in its table. Binary fields are stored in the blobs table.
func (db *DB) Put(ctx context.Context, table Table, row Row) (int64, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	id := row.ID()
	if id == 0 {
		if err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(id), 0) + 1 FROM records WHERE tbl = ?`, string(table)).Scan(&id); err != nil {
			return 0, fmt.Errorf("failed to allocate id in %s: %w", table, err)
		}
	}

	body, blobs := row.splitBlobs()
	body["id"] = id

	data, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal %s %d: %w", table, id, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO records (tbl, id, body, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(tbl, id) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`,
		string(table), id, string(data), db.now().UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("failed to upsert %s %d: %w", table, id, err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM blobs WHERE tbl = ? AND row_id = ?`, string(table), id); err != nil {
		return 0, fmt.Errorf("failed to clear blobs for %s %d: %w", table, id, err)
	}

	for field, v := range blobs {
		switch bv := v.(type) {
		case *Blob:
			if err := insertBlob(ctx, tx, table, id, field, -1, bv); err != nil {
				return 0, err
			}
		case []*Blob:
			for i, b := range bv {
				if err := insertBlob(ctx, tx, table, id, field, i, b); err != nil {
					return 0, err
				}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit %s %d: %w", table, id, err)
	}
	return id, nil
}

// Update merges fields into an existing row. A nil value removes the field.
func (db *DB) Update(ctx context.Context, table Table, id int64, fields map[string]any) error {
	row, err := db.Get(ctx, table, id)
	if err != nil {
		return err
	}
	for k, v := range fields {
		if v == nil {
			delete(row, k)
			continue
		}
		row[k] = v
	}
	_, err = db.Put(ctx, table, row)
	return err
}

// Delete removes a row and its blobs. Deleting a missing row is not an error.
func (db *DB) Delete(ctx context.Context, table Table, id int64) error {
	if _, err := db.conn.ExecContext(ctx,
		`DELETE FROM blobs WHERE tbl = ? AND row_id = ?`, string(table), id); err != nil {
		return fmt.Errorf("failed to delete blobs for %s %d: %w", table, id, err)
	}
	if _, err := db.conn.ExecContext(ctx,
		`DELETE FROM records WHERE tbl = ? AND id = ?`, string(table), id); err != nil {
		return fmt.Errorf("failed to delete %s %d: %w", table, id, err)
	}
	return nil
}

func insertBlob(ctx context.Context, tx *sql.Tx, table Table, id int64, field string, idx int, b *Blob) error {
	if b == nil {
		return nil
	}
	data := b.Data
	if data == nil {
		data = []byte{}
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO blobs (tbl, row_id, field, idx, mime, data) VALUES (?, ?, ?, ?, ?, ?)`,
		string(table), id, field, idx, b.MIME, data)
	if err != nil {
		return fmt.Errorf("failed to store blob %s.%s[%d] for %d: %w", table, field, idx, id, err)
	}
	return nil
}

func (db *DB) queryRows(ctx context.Context, table Table, query string, args ...any) ([]Row, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}

	var out []Row
	for rows.Next() {
		var (
			id   int64
			body string
		)
		if err := rows.Scan(&id, &body); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan %s row: %w", table, err)
		}
		row, err := decodeBody(body)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("%s %d: %w", table, id, err)
		}
		row["id"] = id
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to iterate %s: %w", table, err)
	}
	rows.Close()

	for _, row := range out {
		if err := db.attachBlobs(ctx, table, row); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (db *DB) attachBlobs(ctx context.Context, table Table, row Row) error {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT field, idx, mime, data FROM blobs WHERE tbl = ? AND row_id = ? ORDER BY field, idx`,
		string(table), row.ID())
	if err != nil {
		return fmt.Errorf("failed to load blobs for %s %d: %w", table, row.ID(), err)
	}
	defer rows.Close()

	type element struct {
		idx int
		b   *Blob
	}
	arrays := make(map[string][]element)
	for rows.Next() {
		var (
			field string
			idx   int
			b     Blob
		)
		if err := rows.Scan(&field, &idx, &b.MIME, &b.Data); err != nil {
			return fmt.Errorf("failed to scan blob for %s %d: %w", table, row.ID(), err)
		}
		if idx < 0 {
			row[field] = &b
			continue
		}
		arrays[field] = append(arrays[field], element{idx, &b})
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for field, elems := range arrays {
		// a mixed array keeps its other elements in the body
		if rest, ok := row[field].([]any); ok {
			merged := make([]any, len(rest))
			copy(merged, rest)
			for _, e := range elems {
				if e.idx < len(merged) {
					merged[e.idx] = e.b
				}
			}
			row[field] = merged
			continue
		}
		blobs := make([]*Blob, len(elems))
		for i, e := range elems {
			blobs[i] = e.b
		}
		row[field] = blobs
	}
	return nil
}

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
