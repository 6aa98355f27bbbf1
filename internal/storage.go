package internal

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"
)

// Storage persists recordings and their thumbnails in SQLite
type Storage struct {
	db  *sql.DB
	now func() time.Time

	mu     sync.Mutex
	lastID int64
	loaded bool
}

// NewStorage creates a new Storage over a migrated database
func NewStorage(db *sql.DB) *Storage {
	return &Storage{db: db, now: time.Now}
}

// OpenStorage opens the database at path and wraps it
func OpenStorage(path string) (*Storage, error) {
	db, err := OpenDatabase(path)
	if err != nil {
		return nil, &StoreError{Op: "open", Err: err}
	}
	return NewStorage(db), nil
}

// Close closes the underlying database
func (s *Storage) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle for diagnostics
func (s *Storage) DB() *sql.DB {
	return s.db
}

// NextID returns a creation timestamp in milliseconds that is strictly greater than
// every id handed out before or already stored.
func (s *Storage) NextID(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		var max sql.NullInt64
		if err := s.db.QueryRowContext(ctx, "SELECT MAX(id) FROM recordings").Scan(&max); err != nil {
			return 0, &StoreError{Op: "next-id", Err: err}
		}
		if max.Valid && max.Int64 > s.lastID {
			s.lastID = max.Int64
		}
		s.loaded = true
	}

	id := s.now().UnixMilli()
	if id <= s.lastID {
		id = s.lastID + 1
	}
	s.lastID = id
	return id, nil
}

func (s *Storage) observeID(id int64) {
	s.mu.Lock()
	if id > s.lastID {
		s.lastID = id
	}
	s.mu.Unlock()
}

// Put stores a recording. A zero ID is assigned from NextID; CreatedAt defaults to the id.
func (s *Storage) Put(ctx context.Context, rec *Recording) error {
	return s.Save(ctx, rec, nil)
}

// Save stores a recording and, when thumb is non-empty, its thumbnail in one transaction
func (s *Storage) Save(ctx context.Context, rec *Recording, thumb []byte) error {
	if rec == nil {
		return &StoreError{Op: "put", Err: errors.New("nil recording")}
	}
	if rec.ID == 0 {
		id, err := s.NextID(ctx)
		if err != nil {
			return err
		}
		rec.ID = id
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.UnixMilli(rec.ID)
	}
	if rec.Data == nil {
		rec.Data = []byte{}
	}
	rec.Size = int64(len(rec.Data))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &StoreError{Op: "put", RecordingID: rec.ID, Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO recordings (id, kind, mime_type, size, data, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		rec.ID, string(rec.Kind), rec.MimeType, rec.Size, rec.Data, rec.CreatedAt.UnixMilli())
	if err != nil {
		return &StoreError{Op: "put", RecordingID: rec.ID, Err: err}
	}

	if len(thumb) > 0 {
		if err := putThumbnail(ctx, tx, rec.ID, thumb); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return &StoreError{Op: "put", RecordingID: rec.ID, Err: err}
	}
	rec.HasThumbnail = len(thumb) > 0
	s.observeID(rec.ID)

	LogDebug("Stored recording %d (%s, %d bytes)", rec.ID, rec.Kind, rec.Size)
	return nil
}

// PutThumbnail attaches (or replaces) the thumbnail of an existing recording
func (s *Storage) PutThumbnail(ctx context.Context, recordingID int64, image []byte) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &StoreError{Op: "put-thumbnail", RecordingID: recordingID, Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	err = tx.QueryRowContext(ctx, "SELECT 1 FROM recordings WHERE id = ?", recordingID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return &StoreError{Op: "put-thumbnail", RecordingID: recordingID, Err: ErrNotFound}
	}
	if err != nil {
		return &StoreError{Op: "put-thumbnail", RecordingID: recordingID, Err: err}
	}

	if err := putThumbnail(ctx, tx, recordingID, image); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return &StoreError{Op: "put-thumbnail", RecordingID: recordingID, Err: err}
	}
	return nil
}

func putThumbnail(ctx context.Context, tx *sql.Tx, recordingID int64, image []byte) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO thumbnails (recording_id, image) VALUES (?, ?)
		 ON CONFLICT(recording_id) DO UPDATE SET image = excluded.image`,
		recordingID, image)
	if err != nil {
		return &StoreError{Op: "put-thumbnail", RecordingID: recordingID, Err: err}
	}
	return nil
}

// List returns recording metadata, newest first. Media bytes are not loaded.
func (s *Storage) List(ctx context.Context) ([]*Recording, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.kind, r.mime_type, r.size, r.created_at, t.id IS NOT NULL
		FROM recordings r
		LEFT JOIN thumbnails t ON t.recording_id = r.id
		ORDER BY r.id DESC`)
	if err != nil {
		return nil, &StoreError{Op: "list", Err: err}
	}
	defer rows.Close()

	recordings := make([]*Recording, 0)
	for rows.Next() {
		rec, err := scanRecording(rows, false)
		if err != nil {
			return nil, &StoreError{Op: "list", Err: err}
		}
		recordings = append(recordings, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &StoreError{Op: "list", Err: err}
	}
	return recordings, nil
}

// Get returns one recording including its media bytes
func (s *Storage) Get(ctx context.Context, id int64) (*Recording, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT r.id, r.kind, r.mime_type, r.size, r.created_at, t.id IS NOT NULL, r.data
		FROM recordings r
		LEFT JOIN thumbnails t ON t.recording_id = r.id
		WHERE r.id = ?`, id)
	rec, err := scanRecording(row, true)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &StoreError{Op: "get", RecordingID: id, Err: ErrNotFound}
	}
	if err != nil {
		return nil, &StoreError{Op: "get", RecordingID: id, Err: err}
	}
	return rec, nil
}

// Thumbnail returns the thumbnail of a recording
func (s *Storage) Thumbnail(ctx context.Context, recordingID int64) (*Thumbnail, error) {
	thumb := &Thumbnail{}
	err := s.db.QueryRowContext(ctx,
		"SELECT id, recording_id, image FROM thumbnails WHERE recording_id = ?", recordingID).
		Scan(&thumb.ID, &thumb.RecordingID, &thumb.Image)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &StoreError{Op: "get-thumbnail", RecordingID: recordingID, Err: ErrNotFound}
	}
	if err != nil {
		return nil, &StoreError{Op: "get-thumbnail", RecordingID: recordingID, Err: err}
	}
	return thumb, nil
}

// Delete removes a recording and every thumbnail referencing it
func (s *Storage) Delete(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &StoreError{Op: "delete", RecordingID: id, Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	// Explicit so the invariant holds even on a connection without foreign_keys.
	if _, err := tx.ExecContext(ctx, "DELETE FROM thumbnails WHERE recording_id = ?", id); err != nil {
		return &StoreError{Op: "delete", RecordingID: id, Err: err}
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM recordings WHERE id = ?", id)
	if err != nil {
		return &StoreError{Op: "delete", RecordingID: id, Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return &StoreError{Op: "delete", RecordingID: id, Err: err}
	}
	if n == 0 {
		return &StoreError{Op: "delete", RecordingID: id, Err: ErrNotFound}
	}
	if err := tx.Commit(); err != nil {
		return &StoreError{Op: "delete", RecordingID: id, Err: err}
	}

	LogDebug("Deleted recording %d", id)
	return nil
}

// DeleteAll removes every recording and thumbnail and returns how many recordings went
func (s *Storage) DeleteAll(ctx context.Context) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, &StoreError{Op: "delete-all", Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM thumbnails"); err != nil {
		return 0, &StoreError{Op: "delete-all", Err: err}
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM recordings")
	if err != nil {
		return 0, &StoreError{Op: "delete-all", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, &StoreError{Op: "delete-all", Err: err}
	}
	if err := tx.Commit(); err != nil {
		return 0, &StoreError{Op: "delete-all", Err: err}
	}
	return n, nil
}

// PruneOrphans removes thumbnails whose recording no longer exists
func (s *Storage) PruneOrphans(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM thumbnails WHERE recording_id NOT IN (SELECT id FROM recordings)")
	if err != nil {
		return 0, &StoreError{Op: "prune", Err: err}
	}
	return res.RowsAffected()
}

// CountThumbnails returns the number of thumbnail rows, optionally for one recording (id > 0)
func (s *Storage) CountThumbnails(ctx context.Context, recordingID int64) (int, error) {
	query := "SELECT COUNT(*) FROM thumbnails"
	args := []interface{}{}
	if recordingID > 0 {
		query += " WHERE recording_id = ?"
		args = append(args, recordingID)
	}
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, &StoreError{Op: "count", RecordingID: recordingID, Err: err}
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecording(row scanner, withData bool) (*Recording, error) {
	rec := &Recording{}
	var kind string
	var createdAt int64
	dest := []interface{}{&rec.ID, &kind, &rec.MimeType, &rec.Size, &createdAt, &rec.HasThumbnail}
	if withData {
		dest = append(dest, &rec.Data)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	rec.Kind = Mode(kind)
	rec.CreatedAt = time.UnixMilli(createdAt)
	return rec, nil
}
