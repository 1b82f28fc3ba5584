package handoff

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteSlots keeps slots in a local database so that separate invocations
// from the same terminal share one session
type SQLiteSlots struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// NewSQLiteSlots opens (or creates) the database at dbPath. Rows older than
// ttl are ignored; a zero ttl keeps rows forever.
func NewSQLiteSlots(dbPath string, ttl time.Duration) (*SQLiteSlots, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &SQLiteSlots{db: db, ttl: ttl, now: time.Now}
	if err := s.init(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize database: %w", err)
	}

	return s, nil
}

// init creates the database schema
func (s *SQLiteSlots) init() error {
	schema := `
	CREATE TABLE IF NOT EXISTS handoff_slots (
		session TEXT NOT NULL,
		slot TEXT NOT NULL,
		value BLOB NOT NULL,
		updated_at INTEGER NOT NULL,
		expires_at INTEGER,
		PRIMARY KEY (session, slot)
	);

	CREATE INDEX IF NOT EXISTS idx_expires_at ON handoff_slots(expires_at);

	CREATE TABLE IF NOT EXISTS handoff_leases (
		session TEXT PRIMARY KEY,
		owner TEXT NOT NULL,
		expires_at INTEGER NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Get looks up one slot
func (s *SQLiteSlots) Get(ctx context.Context, session, slot string) ([]byte, bool, error) {
	query := `
		SELECT value
		FROM handoff_slots
		WHERE session = ? AND slot = ? AND (expires_at IS NULL OR expires_at > ?)
	`

	var value []byte
	err := s.db.QueryRowContext(ctx, query, session, slot, s.now().Unix()).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("query slot: %w", err)
	}

	return value, true, nil
}

const upsertSlot = `
	INSERT OR REPLACE INTO handoff_slots
	(session, slot, value, updated_at, expires_at)
	VALUES (?, ?, ?, ?, ?)
`

// expiry returns the updated_at and expires_at values for a write made now
func (s *SQLiteSlots) expiry() (int64, sql.NullInt64) {
	now := s.now()
	var expires sql.NullInt64
	if s.ttl > 0 {
		expires = sql.NullInt64{Int64: now.Add(s.ttl).Unix(), Valid: true}
	}
	return now.Unix(), expires
}

// Set stores one slot
func (s *SQLiteSlots) Set(ctx context.Context, session, slot string, value []byte) error {
	updated, expires := s.expiry()
	if _, err := s.db.ExecContext(ctx, upsertSlot, session, slot, value, updated, expires); err != nil {
		return fmt.Errorf("record slot: %w", err)
	}
	return nil
}

// SetAll stores several slots in one transaction
func (s *SQLiteSlots) SetAll(ctx context.Context, session string, values map[string][]byte) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	updated, expires := s.expiry()
	for slot, value := range values {
		if _, err := tx.ExecContext(ctx, upsertSlot, session, slot, value, updated, expires); err != nil {
			return fmt.Errorf("record slot %s: %w", slot, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit slots: %w", err)
	}
	return nil
}

// Delete removes slots of a session
func (s *SQLiteSlots) Delete(ctx context.Context, session string, slots ...string) error {
	if len(slots) == 0 {
		return nil
	}

	args := []any{session}
	for _, slot := range slots {
		args = append(args, slot)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(slots)), ",")
	query := `DELETE FROM handoff_slots WHERE session = ? AND slot IN (` + placeholders + `)`

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete slots: %w", err)
	}
	return nil
}

// Lock takes the session lease. An expired lease is taken over in the
// same statement, so two processes cannot both win.
func (s *SQLiteSlots) Lock(ctx context.Context, session, owner string, ttl time.Duration) (bool, error) {
	query := `
		INSERT INTO handoff_leases (session, owner, expires_at)
		VALUES (?, ?, ?)
		ON CONFLICT(session) DO UPDATE
		SET owner = excluded.owner, expires_at = excluded.expires_at
		WHERE handoff_leases.expires_at <= ?
	`

	now := s.now()
	res, err := s.db.ExecContext(ctx, query, session, owner, now.Add(ttl).UnixMilli(), now.UnixMilli())
	if err != nil {
		return false, fmt.Errorf("take lease: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("take lease: %w", err)
	}
	return n == 1, nil
}

// Unlock drops the lease held by owner
func (s *SQLiteSlots) Unlock(ctx context.Context, session, owner string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM handoff_leases WHERE session = ? AND owner = ?`, session, owner); err != nil {
		return fmt.Errorf("drop lease: %w", err)
	}
	return nil
}

// Purge removes expired rows and returns how many slots went. Stale leases
// left by crashed processes go too.
func (s *SQLiteSlots) Purge(ctx context.Context) (int64, error) {
	now := s.now()
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM handoff_slots WHERE expires_at IS NOT NULL AND expires_at <= ?`, now.Unix())
	if err != nil {
		return 0, fmt.Errorf("purge slots: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM handoff_leases WHERE expires_at <= ?`, now.UnixMilli()); err != nil {
		return 0, fmt.Errorf("purge leases: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the database connection
func (s *SQLiteSlots) Close() error {
	return s.db.Close()
}
