package mapping

import (
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore is the opt-in mapping backend for libraries large enough
// that a single JSON document becomes unwieldy to parse on every run.
// Grounded on the teacher's internal/database/sqlite_store.go: a plain
// database/sql handle over the mattn/go-sqlite3 driver, selected only
// when config.MappingBackend == "sqlite" (mirrors the teacher's
// EnableSQLite opt-in flag).
type SQLiteStore struct {
	mu sync.Mutex
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the mapping database at path
// and ensures its schema exists.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("mapping: open sqlite: %w", err)
	}
	s := &SQLiteStore{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) createSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS mapping_entries (
			fingerprint TEXT NOT NULL,
			dbid INTEGER NOT NULL,
			album_key TEXT NOT NULL,
			source_path_hint TEXT NOT NULL,
			source_size INTEGER NOT NULL,
			source_mtime INTEGER NOT NULL,
			art_hash TEXT,
			format_info TEXT NOT NULL,
			PRIMARY KEY (fingerprint, dbid)
		);
		CREATE INDEX IF NOT EXISTS idx_mapping_fingerprint ON mapping_entries(fingerprint);
	`)
	if err != nil {
		return fmt.Errorf("mapping: create schema: %w", err)
	}
	return nil
}

// Lookup returns every entry recorded for fingerprint.
func (s *SQLiteStore) Lookup(fingerprint string) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`
		SELECT fingerprint, dbid, album_key, source_path_hint, source_size, source_mtime, art_hash, format_info
		FROM mapping_entries WHERE fingerprint = ?`, fingerprint)
	if err != nil {
		return nil
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var artHash sql.NullString
		if err := rows.Scan(&e.Fingerprint, &e.DBID, &e.AlbumKey, &e.SourcePathHint,
			&e.SourceSize, &e.SourceMTime, &artHash, &e.FormatInfo); err != nil {
			continue
		}
		e.ArtHash = artHash.String
		out = append(out, e)
	}
	return out
}

// Add inserts a new entry, replacing any existing row with the same
// (fingerprint, dbid) key.
func (s *SQLiteStore) Add(e Entry) {
	s.upsert(e)
}

// Update replaces the entry matching e's fingerprint and dbid.
func (s *SQLiteStore) Update(e Entry) {
	s.upsert(e)
}

func (s *SQLiteStore) upsert(e Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = s.db.Exec(`
		INSERT INTO mapping_entries
			(fingerprint, dbid, album_key, source_path_hint, source_size, source_mtime, art_hash, format_info)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(fingerprint, dbid) DO UPDATE SET
			album_key=excluded.album_key,
			source_path_hint=excluded.source_path_hint,
			source_size=excluded.source_size,
			source_mtime=excluded.source_mtime,
			art_hash=excluded.art_hash,
			format_info=excluded.format_info`,
		e.Fingerprint, e.DBID, e.AlbumKey, e.SourcePathHint, e.SourceSize, e.SourceMTime, e.ArtHash, e.FormatInfo)
}

// Remove deletes the entry identified by (fingerprint, dbid), if present.
func (s *SQLiteStore) Remove(fingerprint string, dbid uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = s.db.Exec(`DELETE FROM mapping_entries WHERE fingerprint = ? AND dbid = ?`, fingerprint, dbid)
}

// All returns every entry in the table.
func (s *SQLiteStore) All() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`
		SELECT fingerprint, dbid, album_key, source_path_hint, source_size, source_mtime, art_hash, format_info
		FROM mapping_entries`)
	if err != nil {
		return nil
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var artHash sql.NullString
		if err := rows.Scan(&e.Fingerprint, &e.DBID, &e.AlbumKey, &e.SourcePathHint,
			&e.SourceSize, &e.SourceMTime, &artHash, &e.FormatInfo); err != nil {
			continue
		}
		e.ArtHash = artHash.String
		out = append(out, e)
	}
	return out
}

// Save is a no-op: every mutating call already commits directly to the
// database, unlike JSONStore's in-memory-then-flush model.
func (s *SQLiteStore) Save() error {
	return nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
