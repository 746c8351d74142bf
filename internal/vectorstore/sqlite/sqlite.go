// Package sqlite keeps book vectors in a local SQLite file so the index
// survives restarts.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite" // SQLite driver

	"librarian/internal/domain"
	"librarian/internal/embedding"
	"librarian/internal/vectorstore"
)

var _ vectorstore.Storage = (*Storage)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS embeddings (
	record_id TEXT PRIMARY KEY,
	title     TEXT NOT NULL,
	vector    BLOB NOT NULL
);`

// Storage is a SQLite-backed vector store. Vectors are stored as
// little-endian float32 BLOBs and searched by a full scan.
type Storage struct {
	db   *sql.DB
	lock *flock.Flock
}

// New opens (or creates) the database at path.
func New(path string) (*Storage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection serializes writers inside the process.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &Storage{db: db, lock: flock.New(path + ".lock")}, nil
}

// Lock takes the cross-process rebuild lock, polling until ctx is done.
func (s *Storage) Lock(ctx context.Context) (func(), error) {
	locked, err := s.lock.TryLockContext(ctx, 200*time.Millisecond)
	if err != nil {
		return func() {}, fmt.Errorf("cannot acquire index lock %s: %w", s.lock.Path(), err)
	}
	if !locked {
		return func() {}, fmt.Errorf("another process is rebuilding the index (lock: %s)", s.lock.Path())
	}
	return func() { _ = s.lock.Unlock() }, nil
}

func (s *Storage) Init(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return vectorstore.ErrInvalidDimension
	}
	current, err := s.dimension(ctx)
	if err != nil {
		return err
	}
	if current != 0 && current != dimension {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM embeddings`); err != nil {
			return err
		}
		if err := deleteMeta(ctx, s.db, metaFingerprint); err != nil {
			return err
		}
	}
	return setMeta(ctx, s.db, metaDimension, strconv.Itoa(dimension))
}

// Replace swaps the whole index for entries in one transaction and records
// the fingerprint of the data they were built from. On error the previous
// contents are kept.
func (s *Storage) Replace(ctx context.Context, dimension int, entries []domain.Entry, fingerprint string) error {
	if dimension <= 0 {
		return vectorstore.ErrInvalidDimension
	}
	if err := vectorstore.ValidateEntries(entries, dimension); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM embeddings`); err != nil {
		return err
	}
	if err := setMeta(ctx, tx, metaDimension, strconv.Itoa(dimension)); err != nil {
		return err
	}
	if err := insertEntries(ctx, tx, entries); err != nil {
		return err
	}
	if err := setMeta(ctx, tx, metaFingerprint, fingerprint); err != nil {
		return err
	}
	return tx.Commit()
}

// Fingerprint returns the value stored by the last Replace, or "" when the
// contents were written some other way.
func (s *Storage) Fingerprint(ctx context.Context) (string, error) {
	return getMeta(ctx, s.db, metaFingerprint)
}

func (s *Storage) Upsert(ctx context.Context, entries []domain.Entry) error {
	dim, err := s.dimension(ctx)
	if err != nil {
		return err
	}
	if err := vectorstore.ValidateEntries(entries, dim); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := insertEntries(ctx, tx, entries); err != nil {
		return err
	}
	// Piecemeal writes no longer match any recorded build.
	if err := deleteMeta(ctx, tx, metaFingerprint); err != nil {
		return err
	}
	return tx.Commit()
}

func insertEntries(ctx context.Context, tx *sql.Tx, entries []domain.Entry) error {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO embeddings(record_id, title, vector) VALUES(?, ?, ?)
		 ON CONFLICT(record_id) DO UPDATE SET title = excluded.title, vector = excluded.vector`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, e.RecordID, e.Title, encodeVector(e.Vector)); err != nil {
			return fmt.Errorf("upsert %s: %w", e.RecordID, err)
		}
	}
	return nil
}

// Search returns no hits when the store was never initialized.
func (s *Storage) Search(ctx context.Context, vector []float64, topK int) ([]domain.Hit, error) {
	dim, err := s.dimension(ctx)
	if err != nil {
		return nil, err
	}
	if dim == 0 {
		return nil, nil
	}
	if len(vector) != dim {
		return nil, vectorstore.ErrDimensionMismatch
	}
	if topK <= 0 {
		topK = 5
	}
	rows, err := s.db.QueryContext(ctx, `SELECT record_id, title, vector FROM embeddings ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []domain.Hit
	for rows.Next() {
		var (
			h    domain.Hit
			blob []byte
		)
		if err := rows.Scan(&h.RecordID, &h.Title, &blob); err != nil {
			return nil, err
		}
		v, err := decodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("record %s: %w", h.RecordID, err)
		}
		if h.Distance, err = embedding.Distance(v, vector); err != nil {
			return nil, fmt.Errorf("record %s: %w", h.RecordID, err)
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	if topK < len(hits) {
		hits = hits[:topK]
	}
	return hits, nil
}

func (s *Storage) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM embeddings`).Scan(&n)
	return n, err
}

// Clear removes all vectors and forgets the dimension and fingerprint.
func (s *Storage) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM embeddings`); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM meta`)
	return err
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) dimension(ctx context.Context) (int, error) {
	v, err := getMeta(ctx, s.db, metaDimension)
	if err != nil || v == "" {
		return 0, err
	}
	return strconv.Atoi(v)
}

const (
	metaDimension   = "dimension"
	metaFingerprint = "fingerprint"
)

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func getMeta(ctx context.Context, db *sql.DB, key string) (string, error) {
	var v string
	err := db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return v, err
}

func setMeta(ctx context.Context, db execer, key, value string) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO meta(key, value) VALUES(?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

func deleteMeta(ctx context.Context, db execer, key string) error {
	_, err := db.ExecContext(ctx, `DELETE FROM meta WHERE key = ?`, key)
	return err
}

func encodeVector(v []float64) []byte {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(float32(x)))
	}
	return buf
}

func decodeVector(b []byte) ([]float64, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("vector blob length %d is not a multiple of 4", len(b))
	}
	out := make([]float64, len(b)/4)
	for i := range out {
		out[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:])))
	}
	return out, nil
}
