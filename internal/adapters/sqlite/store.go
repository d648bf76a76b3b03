// Package sqlite implements the sample store on an embedded SQLite database.
//
// The database runs in WAL mode with synchronous=FULL, so a sample is on disk
// once Insert returns. Identifiers come from an AUTOINCREMENT key and are never
// reused. Triggers reject any change to a sample's coordinates or capture time
// and any synced=1 -> synced=0 transition.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/bft-labs/trackship/internal/domain"
)

const deviceIDKey = "device_id"

// Store implements ports.SampleStore.
type Store struct {
	db   *sql.DB
	path string

	// mu serializes writers. Readers rely on WAL snapshots.
	mu     sync.Mutex
	closed bool
}

// Open opens or creates the database at path and migrates the schema.
//
// The caller MUST call Close() when done.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("sqlite: path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dsn := "file:" + path +
		"?_pragma=journal_mode(wal)" +
		"&_pragma=synchronous(full)" +
		"&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetConnMaxIdleTime(5 * time.Minute)

	s := &Store{db: db, path: path}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	if err := s.ensureDeviceID(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close checkpoints the WAL and closes the database. Later calls on the store
// fail with ErrStorageFault.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return s.db.Close()
}

// Insert durably commits a new unsynced sample.
func (s *Store) Insert(ctx context.Context, latitude, longitude float64, capturedAt int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO samples (latitude, longitude, captured_at, synced) VALUES (?, ?, ?, 0)`,
		latitude, longitude, capturedAt)
	if err != nil {
		return 0, fmt.Errorf("insert sample: %w: %w", domain.ErrStorageFault, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert sample id: %w: %w", domain.ErrStorageFault, err)
	}
	return id, nil
}

// ListUnsynced returns the backlog in insertion order.
func (s *Store) ListUnsynced(ctx context.Context) ([]domain.Sample, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, latitude, longitude, captured_at, synced FROM samples WHERE synced = 0 ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list unsynced: %w: %w", domain.ErrStorageFault, err)
	}
	return scanSamples(rows)
}

// MarkSynced sets synced=1. Unknown and already synced ids are a no-op.
func (s *Store) MarkSynced(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx,
		`UPDATE samples SET synced = 1 WHERE id = ? AND synced = 0`, id); err != nil {
		return fmt.Errorf("mark sample %d synced: %w: %w", id, domain.ErrStorageFault, err)
	}
	return nil
}

// ListRecent returns up to n samples, newest first. n <= 0 means
// domain.DefaultRecentLimit.
func (s *Store) ListRecent(ctx context.Context, n int) ([]domain.Sample, error) {
	if n <= 0 {
		n = domain.DefaultRecentLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, latitude, longitude, captured_at, synced FROM samples ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("list recent: %w: %w", domain.ErrStorageFault, err)
	}
	return scanSamples(rows)
}

// Counts returns the total number of samples and the backlog size.
func (s *Store) Counts(ctx context.Context) (total, unsynced int, err error) {
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(CASE WHEN synced = 0 THEN 1 ELSE 0 END), 0) FROM samples`).
		Scan(&total, &unsynced)
	if err != nil {
		return 0, 0, fmt.Errorf("count samples: %w: %w", domain.ErrStorageFault, err)
	}
	return total, unsynced, nil
}

// DeviceID returns the identifier generated when the database was created.
func (s *Store) DeviceID(ctx context.Context) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, deviceIDKey).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("read device id: %w", err)
	}
	return id, nil
}

func (s *Store) ensureDeviceID(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO meta (key, value) VALUES (?, ?)`, deviceIDKey, uuid.NewString())
	if err != nil {
		return fmt.Errorf("init device id: %w", err)
	}
	return nil
}

func scanSamples(rows *sql.Rows) ([]domain.Sample, error) {
	defer rows.Close()

	var out []domain.Sample
	for rows.Next() {
		var smp domain.Sample
		if err := rows.Scan(&smp.ID, &smp.Latitude, &smp.Longitude, &smp.CapturedAt, &smp.Synced); err != nil {
			return nil, fmt.Errorf("scan sample: %w: %w", domain.ErrStorageFault, err)
		}
		out = append(out, smp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate samples: %w: %w", domain.ErrStorageFault, err)
	}
	return out, nil
}
