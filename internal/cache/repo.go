package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/vellum/internal/checksum"
	"github.com/starford/vellum/internal/storage"
)

// Stats summarizes the cache content.
type Stats struct {
	Documents  int   `json:"documents"`
	Includes   int   `json:"includes"`
	Renderings int   `json:"renderings"`
	Size       int64 `json:"size"`
	Stored     int64 `json:"stored"`
}

// Lookup returns the rendering of doc as content type to when one exists
// and was made from the document's current content.
func (db *DB) Lookup(ctx context.Context, doc storage.Document, to string) ([]byte, bool, error) {
	src, err := storage.ReadAll(doc)
	if err != nil {
		return nil, false, err
	}
	var (
		cs   string
		blob []byte
	)
	err = db.conn.QueryRowContext(ctx,
		`SELECT checksum, data FROM renderings WHERE path = ? AND content_type = ?`,
		doc.Path(), to).Scan(&cs, &blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache: lookup: %w", err)
	}
	if cs != checksum.Sum(src) {
		return nil, false, nil
	}
	data, err := decompress(blob)
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// Store saves the rendering of doc as content type to.
func (db *DB) Store(ctx context.Context, doc storage.Document, to string, data []byte) error {
	src, err := storage.ReadAll(doc)
	if err != nil {
		return err
	}
	blob, err := compress(data)
	if err != nil {
		return err
	}
	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO renderings (path, content_type, checksum, size, data, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(path, content_type) DO UPDATE SET
			checksum   = excluded.checksum,
			size       = excluded.size,
			data       = excluded.data,
			created_at = excluded.created_at
	`, doc.Path(), to, checksum.Sum(src), len(data), blob, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("cache: store: %w", err)
	}
	return nil
}

// Refresh records the current content of doc and its includes. When the
// content changed, the renderings of doc and of every document including
// it are dropped and their paths returned.
func (db *DB) Refresh(ctx context.Context, doc storage.Document, data []byte) ([]string, error) {
	p := doc.Path()
	cs := checksum.Sum(data)
	previous, err := db.checksum(ctx, p)
	if err != nil {
		return nil, err
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("cache: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	_, err = tx.ExecContext(ctx, `
		INSERT INTO documents (path, content_type, checksum, size, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			content_type = excluded.content_type,
			checksum     = excluded.checksum,
			size         = excluded.size,
			updated_at   = excluded.updated_at
	`, p, doc.ContentType(), cs, len(data), doc.LastModified().UTC())
	if err != nil {
		return nil, fmt.Errorf("cache: upsert document: %w", err)
	}

	_, _ = tx.ExecContext(ctx, `DELETE FROM includes WHERE source = ?`, p)
	if targets := includeTargets(p, doc.ContentType(), data); len(targets) > 0 {
		stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO includes (source, target) VALUES (?, ?)`)
		if err != nil {
			return nil, fmt.Errorf("cache: prepare include insert: %w", err)
		}
		defer stmt.Close()
		for _, target := range targets {
			if _, err := stmt.ExecContext(ctx, p, target); err != nil {
				return nil, fmt.Errorf("cache: insert include: %w", err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("cache: commit: %w", err)
	}

	if previous == cs {
		return nil, nil
	}
	return db.Invalidate(ctx, p)
}

// Forget removes a document that no longer exists and invalidates the
// renderings that depended on it.
func (db *DB) Forget(ctx context.Context, path string) ([]string, error) {
	affected, err := db.Invalidate(ctx, path)
	if err != nil {
		return nil, err
	}
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("cache: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, _ = tx.ExecContext(ctx, `DELETE FROM includes WHERE source = ?`, path)
	_, _ = tx.ExecContext(ctx, `DELETE FROM documents WHERE path = ?`, path)
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("cache: commit: %w", err)
	}
	return affected, nil
}

// Invalidate drops the renderings of path and of every document including
// it, directly or through other includes. It returns the affected paths,
// path first.
func (db *DB) Invalidate(ctx context.Context, path string) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx, `
		WITH RECURSIVE affected(path) AS (
			SELECT ?
			UNION
			SELECT i.source FROM includes i JOIN affected a ON i.target = a.path
		)
		SELECT path FROM affected
	`, path)
	if err != nil {
		return nil, fmt.Errorf("cache: dependents: %w", err)
	}
	var affected []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			rows.Close()
			return nil, err
		}
		affected = append(affected, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, p := range affected {
		if _, err := db.conn.ExecContext(ctx, `DELETE FROM renderings WHERE path = ?`, p); err != nil {
			return nil, fmt.Errorf("cache: invalidate %s: %w", p, err)
		}
	}
	return affected, nil
}

// Dependents returns the documents that directly include path.
func (db *DB) Dependents(ctx context.Context, path string) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT source FROM includes WHERE target = ? ORDER BY source`, path)
	if err != nil {
		return nil, fmt.Errorf("cache: dependents: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// AllChecksums returns the recorded checksum of every known document.
func (db *DB) AllChecksums(ctx context.Context) (map[string]string, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT path, checksum FROM documents`)
	if err != nil {
		return nil, fmt.Errorf("cache: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

// Stats counts the cache content.
func (db *DB) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	err := db.conn.QueryRowContext(ctx, `
		SELECT
			(SELECT count(*) FROM documents),
			(SELECT count(*) FROM includes),
			(SELECT count(*) FROM renderings),
			(SELECT coalesce(sum(size), 0) FROM renderings),
			(SELECT coalesce(sum(length(data)), 0) FROM renderings)
	`).Scan(&s.Documents, &s.Includes, &s.Renderings, &s.Size, &s.Stored)
	if err != nil {
		return Stats{}, fmt.Errorf("cache: stats: %w", err)
	}
	return s, nil
}

// Purge drops every rendering.
func (db *DB) Purge(ctx context.Context) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM renderings`); err != nil {
		return fmt.Errorf("cache: purge: %w", err)
	}
	return nil
}

func (db *DB) checksum(ctx context.Context, path string) (string, error) {
	var cs string
	err := db.conn.QueryRowContext(ctx, `SELECT checksum FROM documents WHERE path = ?`, path).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("cache: checksum: %w", err)
	}
	return cs, nil
}
