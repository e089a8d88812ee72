// Package records persists per-post export records so unchanged posts can
// be skipped on later runs.
package records

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Record describes one exported post: the fingerprint of its text content
// and the file it was saved under.
type Record struct {
	PostID      string
	ContentHash string
	FileName    string
	SavedAt     time.Time
}

// Store is a SQLite-backed record store.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the record database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create record directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open record database: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func migrate(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS export_records (
		post_id      TEXT PRIMARY KEY,
		content_hash TEXT NOT NULL,
		file_name    TEXT NOT NULL,
		saved_at     TIMESTAMP NOT NULL
	);`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to migrate record database: %w", err)
	}
	return nil
}

// Get returns the record for a post, or nil when none exists.
func (s *Store) Get(postID string) (*Record, error) {
	row := s.db.QueryRow(
		`SELECT post_id, content_hash, file_name, saved_at FROM export_records WHERE post_id = ?`,
		postID,
	)

	var rec Record
	err := row.Scan(&rec.PostID, &rec.ContentHash, &rec.FileName, &rec.SavedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read record %s: %w", postID, err)
	}
	return &rec, nil
}

// Put inserts or replaces the record for a post.
func (s *Store) Put(rec *Record) error {
	_, err := s.db.Exec(
		`INSERT INTO export_records (post_id, content_hash, file_name, saved_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(post_id) DO UPDATE SET
			content_hash = excluded.content_hash,
			file_name    = excluded.file_name,
			saved_at     = excluded.saved_at`,
		rec.PostID, rec.ContentHash, rec.FileName, rec.SavedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save record %s: %w", rec.PostID, err)
	}
	return nil
}

// All returns every record, most recently saved first.
func (s *Store) All() ([]Record, error) {
	rows, err := s.db.Query(
		`SELECT post_id, content_hash, file_name, saved_at FROM export_records ORDER BY saved_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	var recs []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.PostID, &rec.ContentHash, &rec.FileName, &rec.SavedAt); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// Delete removes the record for a post. Deleting a missing record is not
// an error.
func (s *Store) Delete(postID string) error {
	_, err := s.db.Exec(`DELETE FROM export_records WHERE post_id = ?`, postID)
	if err != nil {
		return fmt.Errorf("failed to delete record %s: %w", postID, err)
	}
	return nil
}

// Clear removes all records.
func (s *Store) Clear() error {
	_, err := s.db.Exec(`DELETE FROM export_records`)
	if err != nil {
		return fmt.Errorf("failed to clear records: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
