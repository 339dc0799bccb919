package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"trajectory_planner/internal/storage"
	"trajectory_planner/internal/trajectory"
)

func runSave(args []string) {
	fs := flag.NewFlagSet("save", flag.ExitOnError)
	inPath := fs.String("input", "", "Snapshot file (.json or .trj)")
	name := fs.String("name", "", "Mission name")
	cfg := storeFlags(fs)
	_ = fs.Parse(args)

	if *inPath == "" || *name == "" {
		fatalf("Error: -input and -name are required")
	}
	snap, err := trajectory.ReadFile(*inPath)
	if err != nil {
		fatalf("Error reading %s: %v", *inPath, err)
	}

	ctx := context.Background()
	store, err := storage.OpenMissions(ctx, *cfg)
	if err != nil {
		fatalf("Error opening mission store: %v", err)
	}
	defer store.Close()

	info, err := store.Save(ctx, *name, snap)
	if err != nil {
		fatalf("Error saving mission: %v", err)
	}
	fmt.Fprintf(os.Stderr, "Saved %q: %d waypoints, %d drones\n", info.Name, info.Waypoints, info.Drones)
}

func runLoad(args []string) {
	fs := flag.NewFlagSet("load", flag.ExitOnError)
	name := fs.String("name", "", "Mission name")
	outPath := fs.String("output", "", "Destination snapshot (.json or .trj)")
	cfg := storeFlags(fs)
	_ = fs.Parse(args)

	if *name == "" || *outPath == "" {
		fatalf("Error: -name and -output are required")
	}

	ctx := context.Background()
	store, err := storage.OpenMissions(ctx, *cfg)
	if err != nil {
		fatalf("Error opening mission store: %v", err)
	}
	defer store.Close()

	m, err := store.Load(ctx, *name)
	if err != nil {
		fatalf("Error loading mission: %v", err)
	}
	if err := trajectory.WriteFile(*outPath, m.Snapshot); err != nil {
		fatalf("Error writing %s: %v", *outPath, err)
	}
	fmt.Fprintf(os.Stderr, "Wrote %q (saved %s) to %s\n", m.Name, m.SavedAt.Format(time.RFC3339), *outPath)
}

func runMissions(args []string) {
	fs := flag.NewFlagSet("missions", flag.ExitOnError)
	cfg := storeFlags(fs)
	_ = fs.Parse(args)

	ctx := context.Background()
	store, err := storage.OpenMissions(ctx, *cfg)
	if err != nil {
		fatalf("Error opening mission store: %v", err)
	}
	defer store.Close()

	infos, err := store.List(ctx)
	if err != nil {
		fatalf("Error listing missions: %v", err)
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tWAYPOINTS\tDRONES\tSAVED")
	for _, info := range infos {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\n", info.Name, info.Waypoints, info.Drones, info.SavedAt.Format(time.RFC3339))
	}
	_ = tw.Flush()
}

func runArchive(args []string) {
	fs := flag.NewFlagSet("archive", flag.ExitOnError)
	inPath := fs.String("input", "", "Snapshot file (.json or .trj)")
	mission := fs.String("mission", "", "Mission name recorded with the rows (default: input file name)")
	cfg := clickHouseFlags(fs)
	_ = fs.Parse(args)

	if *inPath == "" {
		fatalf("Error: -input is required")
	}
	if *mission == "" {
		base := filepath.Base(*inPath)
		*mission = strings.TrimSuffix(base, filepath.Ext(base))
	}

	p := loadPlanner(*inPath)
	var files []storage.ArchiveFile
	for _, f := range p.CSVFiles() {
		d, _ := p.Drone(f.DroneID)
		files = append(files, storage.ArchiveFile{
			DroneID:   f.DroneID,
			DroneName: d.Name,
			Rows:      trajectory.Rows(f.Waypoints),
		})
	}
	if len(files) == 0 {
		fatalf("No visible drones with waypoints to archive")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	ch, err := storage.OpenClickHouse(ctx, *cfg)
	if err != nil {
		fatalf("Error opening ClickHouse: %v", err)
	}
	defer ch.Close()

	if err := ch.CreateSchema(ctx); err != nil {
		fatalf("Error creating schema: %v", err)
	}
	n, err := ch.Archive(ctx, *mission, files)
	if err != nil {
		fatalf("Error archiving: %v", err)
	}
	fmt.Fprintf(os.Stderr, "Archived %d rows for %d drones as %q\n", n, len(files), *mission)
}
