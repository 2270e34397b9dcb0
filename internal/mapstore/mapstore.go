// Package mapstore provides the durable sync mapping table.
//
// The store associates a server agenda-item id with the native
// calendar event id currently representing it, plus a fingerprint of
// the last-synced content. It also carries the fresh-install marker
// used by reconciliation to detect restored-but-stale state.
//
// The database runs in embedded mode with WAL for concurrency
// support; schema creation is idempotent.
package mapstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// Mapping is one persisted agenda-item/native-event association.
type Mapping struct {
	// AgendaItemID is the server-side agenda item id (unique key).
	AgendaItemID string

	// NativeEventID is the calendar event currently representing the item.
	NativeEventID string

	// Fingerprint is the content hash of the last successfully synced
	// intent, used to detect server-side changes without a full diff.
	Fingerprint string

	// LastSyncedAt is when the mapping was last written.
	LastSyncedAt time.Time
}

// Store wraps the SQLite database holding mappings and the install marker.
type Store struct {
	conn *sql.DB
	path string
}

// Open creates a database connection at the specified path.
//
// If the database doesn't exist, it is created along with the schema.
// The caller MUST call Close() when done.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", fmt.Sprintf("file:%s", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(5 * time.Minute)

	s := &Store{conn: conn, path: path}

	// WAL for concurrent readers during writes.
	if _, err := s.conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := s.conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if err := s.initSchema(context.Background()); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection after a WAL checkpoint.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}
	if _, err := s.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}
	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	s.conn = nil
	return nil
}

// initSchema creates the schema if it doesn't exist. Idempotent.
func (s *Store) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS mappings (
		agenda_item_id TEXT PRIMARY KEY,
		native_event_id TEXT NOT NULL,
		fingerprint TEXT NOT NULL,
		last_synced_at TEXT NOT NULL
	);

	-- Single-row marker distinguishing a live install from restored
	-- state after a reinstall.
	CREATE TABLE IF NOT EXISTS install_marker (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		instance_id TEXT NOT NULL,
		installed_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_mappings_native ON mappings(native_event_id);
	`
	if _, err := s.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// Get returns the mapping for an agenda item, or nil when none exists.
func (s *Store) Get(ctx context.Context, agendaItemID string) (*Mapping, error) {
	query := `
	SELECT agenda_item_id, native_event_id, fingerprint, last_synced_at
	FROM mappings WHERE agenda_item_id = ?
	`
	row := s.conn.QueryRowContext(ctx, query, agendaItemID)

	var m Mapping
	var syncedAt string
	err := row.Scan(&m.AgendaItemID, &m.NativeEventID, &m.Fingerprint, &syncedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query mapping %s: %w", agendaItemID, err)
	}

	m.LastSyncedAt, err = time.Parse(time.RFC3339, syncedAt)
	if err != nil {
		return nil, fmt.Errorf("invalid last_synced_at for %s: %w", agendaItemID, err)
	}
	return &m, nil
}

// Upsert inserts or updates a mapping. At most one row per agenda item
// id is enforced by the primary key.
func (s *Store) Upsert(ctx context.Context, m Mapping) error {
	if m.AgendaItemID == "" {
		return fmt.Errorf("agenda_item_id is required")
	}
	if m.NativeEventID == "" {
		return fmt.Errorf("native_event_id is required")
	}
	if m.LastSyncedAt.IsZero() {
		m.LastSyncedAt = time.Now().UTC()
	}

	query := `
	INSERT INTO mappings (agenda_item_id, native_event_id, fingerprint, last_synced_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(agenda_item_id) DO UPDATE SET
		native_event_id = excluded.native_event_id,
		fingerprint = excluded.fingerprint,
		last_synced_at = excluded.last_synced_at
	`
	_, err := s.conn.ExecContext(ctx, query,
		m.AgendaItemID,
		m.NativeEventID,
		m.Fingerprint,
		m.LastSyncedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert mapping %s: %w", m.AgendaItemID, err)
	}
	return nil
}

// Remove deletes the mapping for an agenda item.
// Returns nil if the mapping doesn't exist (idempotent).
func (s *Store) Remove(ctx context.Context, agendaItemID string) error {
	_, err := s.conn.ExecContext(ctx, `DELETE FROM mappings WHERE agenda_item_id = ?`, agendaItemID)
	if err != nil {
		return fmt.Errorf("failed to remove mapping %s: %w", agendaItemID, err)
	}
	return nil
}

// All returns every stored mapping.
func (s *Store) All(ctx context.Context) ([]Mapping, error) {
	query := `
	SELECT agenda_item_id, native_event_id, fingerprint, last_synced_at
	FROM mappings ORDER BY agenda_item_id
	`
	rows, err := s.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query mappings: %w", err)
	}
	defer rows.Close()

	var out []Mapping
	for rows.Next() {
		var m Mapping
		var syncedAt string
		if err := rows.Scan(&m.AgendaItemID, &m.NativeEventID, &m.Fingerprint, &syncedAt); err != nil {
			return nil, fmt.Errorf("failed to scan mapping: %w", err)
		}
		m.LastSyncedAt, err = time.Parse(time.RFC3339, syncedAt)
		if err != nil {
			return nil, fmt.Errorf("invalid last_synced_at for %s: %w", m.AgendaItemID, err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate mappings: %w", err)
	}
	return out, nil
}

// InstallMarker reports whether the install marker has been written.
func (s *Store) InstallMarker(ctx context.Context) (bool, error) {
	var count int
	err := s.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM install_marker`).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to query install marker: %w", err)
	}
	return count > 0, nil
}

// WriteInstallMarker records this installation. Idempotent: a marker
// already present is left as is so the original install time survives.
func (s *Store) WriteInstallMarker(ctx context.Context) error {
	query := `
	INSERT INTO install_marker (id, instance_id, installed_at)
	VALUES (1, ?, ?)
	ON CONFLICT(id) DO NOTHING
	`
	_, err := s.conn.ExecContext(ctx, query,
		uuid.NewString(),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to write install marker: %w", err)
	}
	return nil
}
