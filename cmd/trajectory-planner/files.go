package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goforj/godump"
	"golang.org/x/sync/errgroup"

	"trajectory_planner/internal/planner"
	"trajectory_planner/internal/trajectory"
)

// loadPlanner reads a snapshot file into a fresh session.
func loadPlanner(path string) *planner.Planner {
	snap, err := trajectory.ReadFile(path)
	if err != nil {
		fatalf("Error reading %s: %v", path, err)
	}
	p := planner.New(nil)
	if err := p.Import(snap, planner.ImportOptions{}); err != nil {
		fatalf("Error importing %s: %v", path, err)
	}
	return p
}

func runExportCSV(args []string) {
	fs := flag.NewFlagSet("export-csv", flag.ExitOnError)
	inPath := fs.String("input", "", "Snapshot file (.json or .trj)")
	outDir := fs.String("out", ".", "Output directory")
	drone := fs.String("drone", "", "Export only this drone")
	_ = fs.Parse(args)

	if *inPath == "" {
		fatalf("Error: -input is required")
	}
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		fatalf("Error creating output directory: %v", err)
	}

	p := loadPlanner(*inPath)
	files := p.CSVFiles()

	var eg errgroup.Group
	eg.SetLimit(4)
	written := 0
	for _, f := range files {
		if *drone != "" && f.DroneID != *drone {
			continue
		}
		written++
		eg.Go(func() error {
			path := filepath.Join(*outDir, f.Name)
			out, err := os.Create(path)
			if err != nil {
				return err
			}
			if err := trajectory.WriteCSV(out, f.Waypoints); err != nil {
				_ = out.Close()
				return fmt.Errorf("%s: %w", path, err)
			}
			return out.Close()
		})
	}
	if err := eg.Wait(); err != nil {
		fatalf("Error writing CSV: %v", err)
	}

	if written == 0 {
		fatalf("No visible drones with waypoints to export")
	}
	fmt.Fprintf(os.Stderr, "Wrote %d CSV files to %s\n", written, *outDir)
}

func runConvert(args []string) {
	fs := flag.NewFlagSet("convert", flag.ExitOnError)
	inPath := fs.String("input", "", "Source snapshot (.json or .trj)")
	outPath := fs.String("output", "", "Destination snapshot (.json or .trj)")
	drone := fs.String("drone", "", "Keep only this drone's waypoints")
	_ = fs.Parse(args)

	if *inPath == "" || *outPath == "" {
		fatalf("Error: -input and -output are required")
	}

	snap, err := trajectory.ReadFile(*inPath)
	if err != nil {
		fatalf("Error reading %s: %v", *inPath, err)
	}
	if *drone != "" {
		snap = snap.ForDrone(*drone)
	}
	if err := trajectory.WriteFile(*outPath, snap); err != nil {
		fatalf("Error writing %s: %v", *outPath, err)
	}
	fmt.Fprintf(os.Stderr, "Converted %d waypoints to %s\n", len(snap.Waypoints), *outPath)
}

func runRenderPDF(args []string) {
	fs := flag.NewFlagSet("render-pdf", flag.ExitOnError)
	inPath := fs.String("input", "", "Snapshot file (.json or .trj)")
	outPath := fs.String("output", "plan.pdf", "Output PDF file")
	title := fs.String("title", "Trajectory plan", "Page title")
	hidden := fs.Bool("hidden", false, "Include hidden drones")
	_ = fs.Parse(args)

	if *inPath == "" {
		fatalf("Error: -input is required")
	}
	p := loadPlanner(*inPath)

	out, err := os.Create(*outPath)
	if err != nil {
		fatalf("Error creating %s: %v", *outPath, err)
	}
	err = trajectory.RenderPDF(out, p.Drones(), p.AllWaypoints(), trajectory.PlanOptions{
		Title:         *title,
		GridSize:      p.Settings().GridSize,
		IncludeHidden: *hidden,
	})
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		fatalf("Error rendering PDF: %v", err)
	}
	fmt.Fprintf(os.Stderr, "Wrote %s\n", *outPath)
}

func runInspect(args []string) {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	inPath := fs.String("input", "", "Snapshot file (.json or .trj)")
	edges := fs.Bool("edges", false, "Also dump the directed edges of each drone")
	_ = fs.Parse(args)

	if *inPath == "" {
		fatalf("Error: -input is required")
	}
	p := loadPlanner(*inPath)

	for _, d := range p.Drones() {
		wps := p.Waypoints(d.ID)
		fmt.Printf("%s (%s) %d waypoints, visible=%v\n", d.Name, d.ID, len(wps), d.IsVisible)
		godump.Fdump(os.Stdout, wps)
		if *edges {
			godump.Fdump(os.Stdout, p.Edges(d.ID))
		}
	}
	godump.Fdump(os.Stdout, p.Settings())
}
