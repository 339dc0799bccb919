package storage

import (
	"context"
	"errors"
	"os"
	"testing"
)

// setupTestPostgres creates a test database connection.
// Returns nil if no PostgreSQL connection is available.
func setupTestPostgres(t *testing.T) *PostgresStore {
	t.Helper()

	cfg := DefaultConfig().Postgres
	if host := os.Getenv("POSTGRES_HOST"); host != "" {
		cfg.Host = host
	}
	if user := os.Getenv("POSTGRES_USER"); user != "" {
		cfg.User = user
	}
	if password := os.Getenv("POSTGRES_PASSWORD"); password != "" {
		cfg.Password = password
	}
	if database := os.Getenv("POSTGRES_DB"); database != "" {
		cfg.Database = database
	}

	ctx := context.Background()
	pg, err := OpenPostgres(ctx, cfg)
	if err != nil {
		return nil
	}

	if err := pg.CreateSchema(ctx); err != nil {
		_ = pg.Close()
		return nil
	}

	return pg
}

func TestPostgresSaveLoad(t *testing.T) {
	pg := setupTestPostgres(t)
	if pg == nil {
		t.Skip("No PostgreSQL connection available")
	}
	defer pg.Close()

	ctx := context.Background()
	const name = "test-mission-save-load"

	cleanup := func() {
		_, _ = pg.pool.Exec(ctx, "DELETE FROM missions WHERE name = $1", name)
	}
	cleanup()
	defer cleanup()

	if _, err := pg.Save(ctx, name, testSnapshot()); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// A second save replaces the first.
	smaller := testSnapshot()
	smaller.Waypoints = smaller.Waypoints[:1]
	if _, err := pg.Save(ctx, name, smaller); err != nil {
		t.Fatalf("Save: %v", err)
	}

	m, err := pg.Load(ctx, name)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(m.Snapshot.Waypoints) != 1 || m.Snapshot.Waypoints[0].ID != "w1" {
		t.Errorf("waypoints = %+v", m.Snapshot.Waypoints)
	}
	if g := m.Snapshot.Metadata.GridSize; g == nil || *g != 1 {
		t.Errorf("grid size = %v", g)
	}

	infos, err := pg.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	found := false
	for _, info := range infos {
		if info.Name == name {
			found = true
			if info.Waypoints != 1 || info.Drones != 1 {
				t.Errorf("info = %+v", info)
			}
		}
	}
	if !found {
		t.Errorf("%s missing from List", name)
	}

	if err := pg.Delete(ctx, name); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := pg.Load(ctx, name); !errors.Is(err, ErrMissionNotFound) {
		t.Errorf("Load deleted = %v, want ErrMissionNotFound", err)
	}
}
