package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"trajectory_planner/internal/trajectory"
)

// ClickHouseConfig holds ClickHouse connection settings.
type ClickHouseConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
}

// ClickHouseArchive is an append-only archive of exported trajectory rows.
type ClickHouseArchive struct {
	conn driver.Conn
}

// Conn returns the underlying ClickHouse connection for direct queries.
func (d *ClickHouseArchive) Conn() driver.Conn {
	return d.conn
}

// OpenClickHouse opens a connection to ClickHouse.
func OpenClickHouse(ctx context.Context, cfg ClickHouseConfig) (*ClickHouseArchive, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout:     10 * time.Second,
		MaxOpenConns:    5,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Hour,
	})
	if err != nil {
		return nil, fmt.Errorf("open clickhouse: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping clickhouse: %w", err)
	}

	return &ClickHouseArchive{conn: conn}, nil
}

// Close closes the ClickHouse connection.
func (d *ClickHouseArchive) Close() error {
	return d.conn.Close()
}

// CreateSchema creates the ClickHouse tables.
func (d *ClickHouseArchive) CreateSchema(ctx context.Context) error {
	q := `CREATE TABLE IF NOT EXISTS trajectory_rows (
		mission         LowCardinality(String),
		drone_id        LowCardinality(String),
		drone_name      String,
		seq             UInt32,
		x               Float64,
		y               Float64,
		z               Float64,
		is_return       Bool,
		exported_at     DateTime64(3)
	)
	ENGINE = MergeTree()
	PARTITION BY toYYYYMM(exported_at)
	ORDER BY (mission, drone_id, exported_at, seq)`

	if err := d.conn.Exec(ctx, q); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// ArchiveFile is one drone's exported coordinates.
type ArchiveFile struct {
	DroneID   string
	DroneName string
	Rows      []trajectory.Row
}

// ArchivedRow is a row read back from the archive.
type ArchivedRow struct {
	Mission    string
	DroneID    string
	DroneName  string
	Row        trajectory.Row
	ExportedAt time.Time
}

// Archive appends every file's rows under mission in one batch and
// returns the number of rows written.
func (d *ClickHouseArchive) Archive(ctx context.Context, mission string, files []ArchiveFile) (int, error) {
	batch, err := d.conn.PrepareBatch(ctx, `
		INSERT INTO trajectory_rows (mission, drone_id, drone_name, seq, x, y, z, is_return, exported_at)
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare batch: %w", err)
	}

	now := time.Now().UTC()
	n := 0
	for _, f := range files {
		for _, r := range f.Rows {
			err := batch.Append(mission, f.DroneID, f.DroneName, uint32(r.Seq), r.X, r.Y, r.Z, r.Return, now)
			if err != nil {
				_ = batch.Abort()
				return 0, fmt.Errorf("append to batch: %w", err)
			}
			n++
		}
	}

	if err := batch.Send(); err != nil {
		return 0, fmt.Errorf("send batch: %w", err)
	}
	return n, nil
}

// Rows returns the most recent export of a mission, ordered by drone and
// sequence number.
func (d *ClickHouseArchive) Rows(ctx context.Context, mission string) ([]ArchivedRow, error) {
	rows, err := d.conn.Query(ctx, `
		SELECT mission, drone_id, drone_name, seq, x, y, z, is_return, exported_at
		FROM trajectory_rows
		WHERE mission = ?
		  AND exported_at = (SELECT max(exported_at) FROM trajectory_rows WHERE mission = ?)
		ORDER BY drone_id, seq
	`, mission, mission)
	if err != nil {
		return nil, fmt.Errorf("query rows: %w", err)
	}
	defer rows.Close()

	var out []ArchivedRow
	for rows.Next() {
		var a ArchivedRow
		var seq uint32
		err := rows.Scan(&a.Mission, &a.DroneID, &a.DroneName, &seq,
			&a.Row.X, &a.Row.Y, &a.Row.Z, &a.Row.Return, &a.ExportedAt)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		a.Row.Seq = int(seq)
		out = append(out, a)
	}
	return out, rows.Err()
}
