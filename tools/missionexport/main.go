// Package main provides a tool to export stored missions from the PostgreSQL
// database to CSV coordinate files: one directory per mission holding one
// X,Y,Z file per visible drone, the same files the planner's CSV export writes.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/sync/errgroup"

	"trajectory_planner/internal/planner"
	"trajectory_planner/internal/storage"
)

func main() {
	// PostgreSQL connection flags.
	pgHost := flag.String("pg-host", "localhost", "PostgreSQL host")
	pgPort := flag.Int("pg-port", 5432, "PostgreSQL port")
	pgUser := flag.String("pg-user", "planner", "PostgreSQL user")
	pgPassword := flag.String("pg-password", "", "PostgreSQL password")
	pgDB := flag.String("pg-db", "planner", "PostgreSQL database")

	outDir := flag.String("out", "missions", "Output directory")
	only := flag.String("mission", "", "Export only this mission")
	workers := flag.Int("workers", 4, "Missions exported concurrently")
	showStats := flag.Bool("stats", false, "Show statistics only, don't export")
	verbose := flag.Bool("v", false, "Verbose output")

	flag.Parse()

	ctx := context.Background()

	pg, err := storage.OpenPostgres(ctx, storage.PostgresConfig{
		Host:     *pgHost,
		Port:     *pgPort,
		Database: *pgDB,
		User:     *pgUser,
		Password: *pgPassword,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening PostgreSQL: %v\n", err)
		os.Exit(1)
	}
	defer pg.Close()

	infos, err := pg.List(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listing missions: %v\n", err)
		os.Exit(1)
	}
	if *only != "" {
		infos = filterMissions(infos, *only)
	}

	if *showStats {
		showMissionStats(infos)
		return
	}

	if len(infos) == 0 {
		fmt.Fprintf(os.Stderr, "No missions found matching criteria\n")
		os.Exit(0)
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(*workers)
	counts := make([]int, len(infos))
	for i, info := range infos {
		eg.Go(func() error {
			n, err := exportMission(ctx, pg, info.Name, filepath.Join(*outDir, info.Name))
			if err != nil {
				return fmt.Errorf("%s: %w", info.Name, err)
			}
			counts[i] = n
			if *verbose {
				fmt.Fprintf(os.Stderr, "%s: %d files\n", info.Name, n)
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		fmt.Fprintf(os.Stderr, "Error exporting: %v\n", err)
		os.Exit(1)
	}

	total := 0
	for _, n := range counts {
		total += n
	}
	fmt.Fprintf(os.Stderr, "Wrote %d files for %d missions to %s\n", total, len(infos), *outDir)
}

// exportMission writes one mission's CSV files into dir and returns how
// many it wrote.
func exportMission(ctx context.Context, store storage.MissionStore, name, dir string) (int, error) {
	m, err := store.Load(ctx, name)
	if err != nil {
		return 0, err
	}

	p := planner.New(nil)
	if err := p.Import(m.Snapshot, planner.ImportOptions{}); err != nil {
		return 0, err
	}
	files := p.CSVFiles()
	if len(files) == 0 {
		return 0, nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, err
	}
	for _, f := range files {
		out, err := os.Create(filepath.Join(dir, f.Name))
		if err != nil {
			return 0, err
		}
		if err := p.WriteCSV(out, f.DroneID); err != nil {
			_ = out.Close()
			return 0, err
		}
		if err := out.Close(); err != nil {
			return 0, err
		}
	}
	return len(files), nil
}

func filterMissions(infos []storage.MissionInfo, name string) []storage.MissionInfo {
	for _, info := range infos {
		if info.Name == name {
			return []storage.MissionInfo{info}
		}
	}
	return nil
}

// showMissionStats displays statistics about stored missions.
func showMissionStats(infos []storage.MissionInfo) {
	totalWaypoints := 0
	totalDrones := 0
	for _, info := range infos {
		totalWaypoints += info.Waypoints
		totalDrones += info.Drones
	}

	fmt.Printf("Mission Statistics\n")
	fmt.Printf("==================\n\n")
	fmt.Printf("Total missions: %d\n", len(infos))
	fmt.Printf("Total drones: %d\n", totalDrones)
	fmt.Printf("Total waypoints: %d\n", totalWaypoints)

	if len(infos) == 0 {
		return
	}

	largest := append([]storage.MissionInfo(nil), infos...)
	sort.Slice(largest, func(i, j int) bool {
		return largest[i].Waypoints > largest[j].Waypoints
	})
	if len(largest) > 10 {
		largest = largest[:10]
	}

	fmt.Printf("\nLargest missions:\n")
	for _, info := range largest {
		fmt.Printf("  %-32s %5d waypoints  %2d drones  saved %s\n",
			info.Name, info.Waypoints, info.Drones, info.SavedAt.Format("2006-01-02 15:04"))
	}
}
