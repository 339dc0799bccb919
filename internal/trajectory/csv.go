package trajectory

import (
	"cmp"
	"encoding/csv"
	"fmt"
	"io"
	"slices"
	"strconv"

	"trajectory_planner/internal/waypoint"
)

// CSVHeader is the first record of every coordinate file.
var CSVHeader = []string{"X", "Y", "Z"}

// Row is one exported coordinate triple, already in output axis order.
type Row struct {
	Seq int
	X   float64
	Y   float64
	Z   float64
	// Return marks the trailing row that closes a looped path.
	Return bool
}

// Rows converts one drone's waypoints to exported coordinates.
//
// Waypoints are emitted in ascending index order as (x, -z, -y). When the
// last anchor links back to the first anchor, a final row repeats the
// first waypoint as (x, z, y), without negation.
func Rows(wps []waypoint.Waypoint) []Row {
	sorted := slices.Clone(wps)
	slices.SortStableFunc(sorted, func(a, b waypoint.Waypoint) int {
		return cmp.Compare(a.Index, b.Index)
	})

	rows := make([]Row, 0, len(sorted)+1)
	for i, w := range sorted {
		p := w.Position
		rows = append(rows, Row{Seq: i + 1, X: p.X, Y: -p.Z, Z: -p.Y})
	}

	if closesLoop(sorted) {
		p := sorted[0].Position
		rows = append(rows, Row{Seq: len(rows) + 1, X: p.X, Y: p.Z, Z: p.Y, Return: true})
	}
	return rows
}

// closesLoop reports whether the last anchor of a sorted path stores an
// edge to the first anchor.
func closesLoop(sorted []waypoint.Waypoint) bool {
	var first, last *waypoint.Waypoint
	for i := range sorted {
		if !sorted[i].IsAnchor() {
			continue
		}
		if first == nil {
			first = &sorted[i]
		}
		last = &sorted[i]
	}
	return first != nil && first != last && last.ConnectedTo(first.Index)
}

// WriteCSV writes the drone's coordinate file: the X,Y,Z header followed
// by Rows formatted with two decimals.
func WriteCSV(w io.Writer, wps []waypoint.Waypoint) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range Rows(wps) {
		if err := cw.Write([]string{formatCoord(r.X), formatCoord(r.Y), formatCoord(r.Z)}); err != nil {
			return fmt.Errorf("write row %d: %w", r.Seq, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// CSVFileName returns the file name used for a drone's coordinate export.
func CSVFileName(droneName string) string {
	return droneName + ".csv"
}

// formatCoord renders v with two decimals. Values that round to zero are
// written as 0.00 regardless of sign.
func formatCoord(v float64) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)
	if s == "-0.00" {
		return "0.00"
	}
	return s
}
