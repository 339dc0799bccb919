package storage

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"trajectory_planner/internal/trajectory"
)

// savedAtLayout sorts lexically in time order.
const savedAtLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteStore keeps missions in a local SQLite file as compressed binary
// snapshots.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens or creates a SQLite mission store at the given path.
// ":memory:" gives a private in-memory store.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if path == ":memory:" {
		// Each connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	if err := createSQLiteSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func createSQLiteSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS missions (
		name TEXT PRIMARY KEY,
		snapshot BLOB NOT NULL,
		waypoint_count INTEGER NOT NULL DEFAULT 0,
		saved_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_missions_saved_at ON missions(saved_at);
	`
	if _, err := db.Exec(schema); err != nil {
		return err
	}
	return migrateSQLiteSchema(db)
}

// migrateSQLiteSchema adds columns missing from older databases.
func migrateSQLiteSchema(db *sql.DB) error {
	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM pragma_table_info('missions') WHERE name='drone_count'`).Scan(&count)
	if err != nil {
		return err
	}
	if count == 0 {
		if _, err := db.Exec(`ALTER TABLE missions ADD COLUMN drone_count INTEGER NOT NULL DEFAULT 0`); err != nil {
			return fmt.Errorf("add drone_count: %w", err)
		}
	}
	return nil
}

// Save stores s under name, replacing any mission with that name.
func (s *SQLiteStore) Save(ctx context.Context, name string, snap trajectory.Snapshot) (MissionInfo, error) {
	if !ValidName(name) {
		return MissionInfo{}, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	var buf bytes.Buffer
	if err := trajectory.WriteBinary(&buf, snap); err != nil {
		return MissionInfo{}, err
	}

	info := infoOf(name, snap, time.Now().UTC())
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO missions (name, snapshot, waypoint_count, drone_count, saved_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			snapshot = excluded.snapshot,
			waypoint_count = excluded.waypoint_count,
			drone_count = excluded.drone_count,
			saved_at = excluded.saved_at
	`, name, buf.Bytes(), info.Waypoints, info.Drones, info.SavedAt.Format(savedAtLayout))
	if err != nil {
		return MissionInfo{}, fmt.Errorf("save mission: %w", err)
	}
	return info, nil
}

// Load returns the mission saved under name.
func (s *SQLiteStore) Load(ctx context.Context, name string) (Mission, error) {
	var blob []byte
	var savedAt string
	err := s.db.QueryRowContext(ctx, `SELECT snapshot, saved_at FROM missions WHERE name = ?`, name).Scan(&blob, &savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Mission{}, fmt.Errorf("%w: %s", ErrMissionNotFound, name)
	}
	if err != nil {
		return Mission{}, fmt.Errorf("load mission: %w", err)
	}

	snap, err := trajectory.ReadBinary(bytes.NewReader(blob))
	if err != nil {
		return Mission{}, err
	}
	at, _ := time.Parse(savedAtLayout, savedAt)
	return Mission{Name: name, Snapshot: snap, SavedAt: at}, nil
}

// List returns every mission, newest first.
func (s *SQLiteStore) List(ctx context.Context) ([]MissionInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, waypoint_count, drone_count, saved_at
		FROM missions
		ORDER BY saved_at DESC, name
	`)
	if err != nil {
		return nil, fmt.Errorf("list missions: %w", err)
	}
	defer rows.Close()

	infos := []MissionInfo{}
	for rows.Next() {
		var info MissionInfo
		var savedAt string
		if err := rows.Scan(&info.Name, &info.Waypoints, &info.Drones, &savedAt); err != nil {
			return nil, fmt.Errorf("scan mission: %w", err)
		}
		info.SavedAt, _ = time.Parse(savedAtLayout, savedAt)
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

// Delete removes the mission saved under name.
func (s *SQLiteStore) Delete(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM missions WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("delete mission: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrMissionNotFound, name)
	}
	return nil
}
