// Package main provides a tool to export drone trajectories to KML format.
// KML (Keyhole Markup Language) files can be viewed in Google Earth, Google Maps, and
// other mapping applications. Scene coordinates are metres from a geographic origin
// given on the command line.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"trajectory_planner/internal/drone"
	"trajectory_planner/internal/storage"
	"trajectory_planner/internal/trajectory"
)

func main() {
	input := flag.String("input", "", "Snapshot file (.json or .trj)")
	mission := flag.String("mission", "", "Read a stored mission instead of a file")
	backend := flag.String("store", storage.BackendSQLite, "Mission store: sqlite or postgres")
	sqlitePath := flag.String("sqlite", storage.DefaultConfig().SQLitePath, "SQLite mission database")
	pgHost := flag.String("pg-host", "localhost", "PostgreSQL host")
	pgPort := flag.Int("pg-port", 5432, "PostgreSQL port")
	pgUser := flag.String("pg-user", "planner", "PostgreSQL user")
	pgPassword := flag.String("pg-password", "", "PostgreSQL password")
	pgDB := flag.String("pg-db", "planner", "PostgreSQL database")

	lat := flag.Float64("lat", 0, "Latitude of the scene origin")
	lon := flag.Float64("lon", 0, "Longitude of the scene origin")
	alt := flag.Float64("alt", 0, "Altitude of the scene origin in metres")
	output := flag.String("output", "", "Output KML file (default: stdout)")
	includeHidden := flag.Bool("hidden", false, "Include hidden drones")
	verbose := flag.Bool("v", false, "Verbose output")

	flag.Parse()

	var snap trajectory.Snapshot
	var name string
	switch {
	case *mission != "":
		ctx := context.Background()
		store, err := storage.OpenMissions(ctx, storage.Config{
			Backend:    *backend,
			SQLitePath: *sqlitePath,
			Postgres: storage.PostgresConfig{
				Host:     *pgHost,
				Port:     *pgPort,
				Database: *pgDB,
				User:     *pgUser,
				Password: *pgPassword,
			},
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening mission store: %v\n", err)
			os.Exit(1)
		}
		m, err := store.Load(ctx, *mission)
		_ = store.Close()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading mission: %v\n", err)
			os.Exit(1)
		}
		snap, name = m.Snapshot, m.Name
	case *input != "":
		var err error
		snap, err = trajectory.ReadFile(*input)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", *input, err)
			os.Exit(1)
		}
		base := filepath.Base(*input)
		name = strings.TrimSuffix(base, filepath.Ext(base))
	default:
		fmt.Fprintln(os.Stderr, "Either -input or -mission is required")
		os.Exit(2)
	}

	drones := snap.Drones
	if len(drones) == 0 {
		drones = dronesOf(snap)
	}
	if !*includeHidden {
		visible := drones[:0]
		for _, d := range drones {
			if d.IsVisible {
				visible = append(visible, d)
			}
		}
		drones = visible
	}

	if len(snap.Waypoints) == 0 {
		fmt.Fprintf(os.Stderr, "No waypoints to export\n")
		os.Exit(0)
	}

	if *verbose {
		fmt.Fprintf(os.Stderr, "Exporting %d waypoints of %d drones to KML\n", len(snap.Waypoints), len(drones))
	}

	kml := trajectory.BuildKML(name, drones, snap.Waypoints, trajectory.Origin{
		Latitude:  *lat,
		Longitude: *lon,
		Altitude:  *alt,
	})

	var w io.Writer = os.Stdout
	if *output != "" {
		file, err := os.Create(*output)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating file: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = file.Close() }()
		w = file
	}

	if err := trajectory.WriteKML(w, kml); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing KML: %v\n", err)
		os.Exit(1)
	}

	if *verbose && *output != "" {
		fmt.Fprintf(os.Stderr, "Wrote %s\n", *output)
	}
}

// dronesOf lists the drones referenced by waypoints, for snapshots saved
// without a drone list.
func dronesOf(snap trajectory.Snapshot) []drone.Drone {
	seen := make(map[string]bool)
	var drones []drone.Drone
	for _, w := range snap.Waypoints {
		if seen[w.DroneID] {
			continue
		}
		seen[w.DroneID] = true
		color := drone.Palette[len(drones)%len(drone.Palette)]
		drones = append(drones, drone.Drone{ID: w.DroneID, Name: w.DroneID, Color: color, IsVisible: true})
	}
	return drones
}
