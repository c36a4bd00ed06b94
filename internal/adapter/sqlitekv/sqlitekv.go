// Package sqlitekv implements the durable key-value port on SQLite.
package sqlitekv

import (
	"bytes"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"
	_ "modernc.org/sqlite"

	"healthsync/internal/domain"
)

// Ensure interface is met.
var _ domain.KeyValue = (*Store)(nil)

// zstdMagic identifies a compressed blob on load, so compression can be
// toggled without rewriting existing rows.
var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// Store persists blobs in a single-table SQLite database. Each Save
// replaces the row atomically, so a failed write never leaves a torn
// value behind. Blobs over the size ceiling are rejected with
// ErrSizeExceeded.
type Store struct {
	db           *sql.DB
	maxBlobBytes int
	encoder      *zstd.Encoder
	decoder      *zstd.Decoder
}

// Open opens (creating if needed) the database at path. maxBlobBytes
// caps the stored (post-compression) blob size; zero disables the cap.
// compress enables zstd compression of saved blobs.
func Open(path string, maxBlobBytes int, compress bool) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open kv store: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		blob BLOB NOT NULL,
		updated_at TEXT NOT NULL
	);`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate kv store: %w", err)
	}

	s := &Store{db: db, maxBlobBytes: maxBlobBytes}
	if compress {
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("create zstd encoder: %w", err)
		}
		s.encoder = enc
	}
	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	s.decoder = dec
	return s, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save stores blob under key, replacing any previous value.
func (s *Store) Save(key string, blob []byte) error {
	stored := blob
	if s.encoder != nil {
		stored = s.encoder.EncodeAll(blob, make([]byte, 0, len(blob)/2))
	}
	if s.maxBlobBytes > 0 && len(stored) > s.maxBlobBytes {
		return fmt.Errorf("%w: key %s, %d bytes", domain.ErrSizeExceeded, key, len(stored))
	}
	_, err := s.db.Exec(
		`INSERT INTO kv(key, blob, updated_at) VALUES(?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET blob=excluded.blob, updated_at=excluded.updated_at;`,
		key, stored, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// Load returns the blob stored under key, or nil when absent.
func (s *Store) Load(key string) ([]byte, error) {
	var blob []byte
	err := s.db.QueryRow(`SELECT blob FROM kv WHERE key=?;`, key).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	if bytes.HasPrefix(blob, zstdMagic) {
		out, err := s.decoder.DecodeAll(blob, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: key %s: %v", domain.ErrDecode, key, err)
		}
		return out, nil
	}
	return blob, nil
}

// Remove deletes the key. Removing an absent key is not an error.
func (s *Store) Remove(key string) error {
	if _, err := s.db.Exec(`DELETE FROM kv WHERE key=?;`, key); err != nil {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}
