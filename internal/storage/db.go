// Package storage persists named mission snapshots and archives exported
// trajectories.
package storage

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"trajectory_planner/internal/trajectory"
)

// ErrMissionNotFound is returned when no mission has the requested name.
var ErrMissionNotFound = errors.New("mission not found")

// ErrInvalidName is returned for mission names that cannot be stored.
var ErrInvalidName = errors.New("invalid mission name")

var missionName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9 _.-]{0,127}$`)

// ValidName reports whether name can be used as a mission name.
func ValidName(name string) bool {
	return missionName.MatchString(name)
}

// Mission is a saved snapshot.
type Mission struct {
	Name     string              `json:"name"`
	Snapshot trajectory.Snapshot `json:"snapshot"`
	SavedAt  time.Time           `json:"savedAt"`
}

// MissionInfo summarises a saved mission.
type MissionInfo struct {
	Name      string    `json:"name"`
	Waypoints int       `json:"waypoints"`
	Drones    int       `json:"drones"`
	SavedAt   time.Time `json:"savedAt"`
}

func infoOf(name string, s trajectory.Snapshot, at time.Time) MissionInfo {
	return MissionInfo{
		Name:      name,
		Waypoints: len(s.Waypoints),
		Drones:    len(s.Drones),
		SavedAt:   at,
	}
}

// MissionStore saves and loads missions by name. Saving under an existing
// name replaces it.
type MissionStore interface {
	Save(ctx context.Context, name string, s trajectory.Snapshot) (MissionInfo, error)
	Load(ctx context.Context, name string) (Mission, error)
	List(ctx context.Context) ([]MissionInfo, error)
	Delete(ctx context.Context, name string) error
	Close() error
}

// Backends accepted in Config.Backend.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Config holds the storage settings.
type Config struct {
	Backend    string
	SQLitePath string
	Postgres   PostgresConfig
	ClickHouse ClickHouseConfig
}

// DefaultConfig returns the default storage configuration.
func DefaultConfig() Config {
	return Config{
		Backend:    BackendSQLite,
		SQLitePath: "missions.db",
		Postgres: PostgresConfig{
			Host:     "localhost",
			Port:     5432,
			Database: "planner",
			User:     "planner",
			Password: "planner",
		},
		ClickHouse: ClickHouseConfig{
			Host:     "localhost",
			Port:     9000,
			Database: "trajectory",
			User:     "default",
			Password: "",
		},
	}
}

// OpenMissions opens the mission store selected by cfg.Backend and makes
// sure its schema exists.
func OpenMissions(ctx context.Context, cfg Config) (MissionStore, error) {
	switch cfg.Backend {
	case BackendSQLite, "":
		return OpenSQLite(cfg.SQLitePath)
	case BackendPostgres:
		pg, err := OpenPostgres(ctx, cfg.Postgres)
		if err != nil {
			return nil, err
		}
		if err := pg.CreateSchema(ctx); err != nil {
			_ = pg.Close()
			return nil, err
		}
		return pg, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
