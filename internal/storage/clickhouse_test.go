package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"trajectory_planner/internal/trajectory"
)

func TestClickHouseArchive(t *testing.T) {
	host := os.Getenv("CLICKHOUSE_HOST")
	if host == "" {
		t.Skip("CLICKHOUSE_HOST not set")
	}

	cfg := DefaultConfig().ClickHouse
	cfg.Host = host

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	ch, err := OpenClickHouse(ctx, cfg)
	if err != nil {
		t.Skipf("ClickHouse not available: %v", err)
	}
	defer ch.Close()

	if err := ch.CreateSchema(ctx); err != nil {
		t.Fatalf("CreateSchema: %v", err)
	}

	mission := "test-archive-" + time.Now().Format("20060102150405.000000")
	rows := trajectory.Rows(testSnapshot().Waypoints)
	n, err := ch.Archive(ctx, mission, []ArchiveFile{{DroneID: "drone-1", DroneName: "Drone 1", Rows: rows}})
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if n != len(rows) {
		t.Errorf("archived %d rows, want %d", n, len(rows))
	}

	got, err := ch.Rows(ctx, mission)
	if err != nil {
		t.Fatalf("Rows: %v", err)
	}
	if len(got) != len(rows) {
		t.Fatalf("read %d rows, want %d", len(got), len(rows))
	}
	for i, a := range got {
		if a.Row != rows[i] {
			t.Errorf("row %d = %+v, want %+v", i, a.Row, rows[i])
		}
	}
}
