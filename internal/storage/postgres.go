package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"trajectory_planner/internal/trajectory"
)

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
}

// PostgresStore keeps missions in PostgreSQL as JSONB snapshots.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// OpenPostgres opens a connection pool to PostgreSQL.
func OpenPostgres(ctx context.Context, cfg PostgresConfig) (*PostgresStore, error) {
	connStr := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database)

	poolCfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Close closes the PostgreSQL connection pool.
func (d *PostgresStore) Close() error {
	d.pool.Close()
	return nil
}

// CreateSchema creates the PostgreSQL tables.
func (d *PostgresStore) CreateSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS missions (
		name            TEXT PRIMARY KEY,
		snapshot        JSONB NOT NULL,
		waypoint_count  INTEGER NOT NULL DEFAULT 0,
		drone_count     INTEGER NOT NULL DEFAULT 0,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		saved_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_missions_saved_at ON missions(saved_at);
	`

	if _, err := d.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Save stores s under name, replacing any mission with that name.
func (d *PostgresStore) Save(ctx context.Context, name string, s trajectory.Snapshot) (MissionInfo, error) {
	if !ValidName(name) {
		return MissionInfo{}, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	data, err := trajectory.Marshal(s)
	if err != nil {
		return MissionInfo{}, err
	}

	info := infoOf(name, s, time.Now().UTC())
	_, err = d.pool.Exec(ctx, `
		INSERT INTO missions (name, snapshot, waypoint_count, drone_count, saved_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (name) DO UPDATE SET
			snapshot = EXCLUDED.snapshot,
			waypoint_count = EXCLUDED.waypoint_count,
			drone_count = EXCLUDED.drone_count,
			saved_at = EXCLUDED.saved_at
	`, name, data, info.Waypoints, info.Drones, info.SavedAt)
	if err != nil {
		return MissionInfo{}, fmt.Errorf("save mission: %w", err)
	}
	return info, nil
}

// Load returns the mission saved under name.
func (d *PostgresStore) Load(ctx context.Context, name string) (Mission, error) {
	var data []byte
	var savedAt time.Time
	err := d.pool.QueryRow(ctx, `SELECT snapshot, saved_at FROM missions WHERE name = $1`, name).Scan(&data, &savedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Mission{}, fmt.Errorf("%w: %s", ErrMissionNotFound, name)
	}
	if err != nil {
		return Mission{}, fmt.Errorf("load mission: %w", err)
	}

	s, err := trajectory.Parse(data)
	if err != nil {
		return Mission{}, err
	}
	return Mission{Name: name, Snapshot: s, SavedAt: savedAt}, nil
}

// List returns every mission, newest first.
func (d *PostgresStore) List(ctx context.Context) ([]MissionInfo, error) {
	rows, err := d.pool.Query(ctx, `
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
		if err := rows.Scan(&info.Name, &info.Waypoints, &info.Drones, &info.SavedAt); err != nil {
			return nil, fmt.Errorf("scan mission: %w", err)
		}
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

// Delete removes the mission saved under name.
func (d *PostgresStore) Delete(ctx context.Context, name string) error {
	tag, err := d.pool.Exec(ctx, `DELETE FROM missions WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("delete mission: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrMissionNotFound, name)
	}
	return nil
}

// Pool returns the underlying connection pool for direct queries.
func (d *PostgresStore) Pool() *pgxpool.Pool {
	return d.pool
}
