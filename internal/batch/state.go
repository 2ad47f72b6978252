package batch

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// StateDB tracks which workout files have been scored to avoid re-scoring
// and re-submitting unchanged files.
type StateDB struct {
	db *sql.DB
}

// OpenStateDB opens (or creates) the SQLite state database at dir/state.db.
func OpenStateDB(dir string) (*StateDB, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating state dir %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", filepath.Join(dir, "state.db"))
	if err != nil {
		return nil, fmt.Errorf("opening state db: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS scored_files (
		path          TEXT PRIMARY KEY,
		size          INTEGER NOT NULL,
		hash          TEXT NOT NULL,
		fatigue_total REAL NOT NULL,
		xp            INTEGER NOT NULL,
		snapshot_id   TEXT NOT NULL DEFAULT '',
		scored_at     TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating state table: %w", err)
	}

	return &StateDB{db: db}, nil
}

// ScoredFile is what the state DB remembers about a scored file.
type ScoredFile struct {
	Path         string
	Size         int64
	Hash         string
	FatigueTotal float64
	XP           int
	SnapshotID   string
}

// IsScored checks if a file was already scored with the same size and hash.
func (s *StateDB) IsScored(relPath string, size int64, hash string) (bool, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM scored_files WHERE path = ? AND size = ? AND hash = ?`,
		relPath, size, hash,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking state for %s: %w", relPath, err)
	}
	return count > 0, nil
}

// MarkScored records a scored file, replacing any older entry for the path.
func (s *StateDB) MarkScored(f ScoredFile) error {
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO scored_files (path, size, hash, fatigue_total, xp, snapshot_id)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		f.Path, f.Size, f.Hash, f.FatigueTotal, f.XP, f.SnapshotID,
	)
	if err != nil {
		return fmt.Errorf("marking %s scored: %w", f.Path, err)
	}
	return nil
}

// Close closes the state database.
func (s *StateDB) Close() error {
	return s.db.Close()
}

// ReadHashed reads a file once and returns its content with the hex
// SHA-256 of exactly those bytes.
func ReadHashed(path string) ([]byte, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", err
	}
	sum := sha256.Sum256(data)
	return data, hex.EncodeToString(sum[:]), nil
}
