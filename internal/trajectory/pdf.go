package trajectory

import (
	"cmp"
	"fmt"
	"io"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"trajectory_planner/internal/drone"
	"trajectory_planner/internal/waypoint"
)

// Page layout, in mm on landscape Letter.
const (
	gridOffsetU = 20.0
	gridOffsetV = 25.0
	gridW       = 240.0
	gridH       = 165.0
	// Scene units of empty border kept around the plotted paths.
	planMargin = 2.0
)

// planGrid maps scene ground-plane coordinates onto a rectangle of the
// page, keeping one scale on both axes. Scene Z grows towards the viewer,
// so it is drawn downwards.
type planGrid struct {
	*gofpdf.Fpdf

	OffsetU, OffsetV float64
	W, H             float64

	MinX, MinZ float64
	Scale      float64 // mm per scene unit
}

func newPlanGrid(pdf *gofpdf.Fpdf, minX, maxX, minZ, maxZ float64) planGrid {
	minX, maxX = minX-planMargin, maxX+planMargin
	minZ, maxZ = minZ-planMargin, maxZ+planMargin
	scale := math.Min(gridW/(maxX-minX), gridH/(maxZ-minZ))
	return planGrid{
		Fpdf:    pdf,
		OffsetU: gridOffsetU,
		OffsetV: gridOffsetV,
		W:       gridW,
		H:       gridH,
		MinX:    minX,
		MinZ:    minZ,
		Scale:   scale,
	}
}

func (g planGrid) UV(x, z float64) (float64, float64) {
	return g.OffsetU + (x-g.MinX)*g.Scale, g.OffsetV + (z-g.MinZ)*g.Scale
}

// drawGridlines draws a line every step scene units, picking a coarser
// step when the lines would be closer than 4mm.
func (g planGrid) drawGridlines(step float64) {
	if step <= 0 {
		step = 1
	}
	for step*g.Scale < 4 {
		step *= 2
	}

	g.SetDrawColor(0xdd, 0xdd, 0xdd)
	g.SetLineWidth(0.1)
	maxX := g.MinX + g.W/g.Scale
	maxZ := g.MinZ + g.H/g.Scale
	for x := math.Ceil(g.MinX/step) * step; x <= maxX; x += step {
		u, _ := g.UV(x, 0)
		g.Line(u, g.OffsetV, u, g.OffsetV+g.H)
	}
	for z := math.Ceil(g.MinZ/step) * step; z <= maxZ; z += step {
		_, v := g.UV(0, z)
		g.Line(g.OffsetU, v, g.OffsetU+g.W, v)
	}

	g.SetDrawColor(0x00, 0x00, 0x00)
	g.SetLineWidth(0.3)
	g.Rect(g.OffsetU, g.OffsetV, g.W, g.H, "D")
}

// PlanOptions controls RenderPDF.
type PlanOptions struct {
	Title    string
	GridSize float64
	// IncludeHidden also draws drones whose IsVisible flag is unset.
	IncludeHidden bool
}

// RenderPDF draws a one-page top-down plan of the drones' paths: one
// polyline per drone in its color, anchors labelled by index.
func RenderPDF(w io.Writer, drones []drone.Drone, wps []waypoint.Waypoint, opts PlanOptions) error {
	paths := make(map[string][]waypoint.Waypoint)
	for _, wp := range wps {
		paths[wp.DroneID] = append(paths[wp.DroneID], wp)
	}

	minX, maxX, minZ, maxZ := 0.0, 0.0, 0.0, 0.0
	first := true
	for _, d := range drones {
		if !d.IsVisible && !opts.IncludeHidden {
			continue
		}
		for _, wp := range paths[d.ID] {
			p := wp.Position
			if first {
				minX, maxX, minZ, maxZ = p.X, p.X, p.Z, p.Z
				first = false
				continue
			}
			minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
			minZ, maxZ = math.Min(minZ, p.Z), math.Max(maxZ, p.Z)
		}
	}

	pdf := gofpdf.New("L", "mm", "Letter", "")
	pdf.AddPage()
	pdf.SetFont("Arial", "", 10)

	title := opts.Title
	if title == "" {
		title = "Trajectory plan"
	}
	pdf.MoveTo(gridOffsetU, 10)
	pdf.Cell(120, 10, title)

	g := newPlanGrid(pdf, minX, maxX, minZ, maxZ)
	g.drawGridlines(opts.GridSize)

	legendV := gridOffsetV
	for _, d := range drones {
		if !d.IsVisible && !opts.IncludeHidden {
			continue
		}
		path := slices.Clone(paths[d.ID])
		slices.SortStableFunc(path, func(a, b waypoint.Waypoint) int { return cmp.Compare(a.Index, b.Index) })

		r, gr, b := parseHexColor(d.Color)
		g.SetDrawColor(r, gr, b)
		g.SetFillColor(r, gr, b)
		g.SetLineWidth(0.5)

		for i, wp := range path {
			u, v := g.UV(wp.Position.X, wp.Position.Z)
			if i == 0 {
				g.MoveTo(u, v)
			} else {
				g.LineTo(u, v)
			}
		}
		if closesLoop(path) {
			u, v := g.UV(path[0].Position.X, path[0].Position.Z)
			g.LineTo(u, v)
		}
		if len(path) > 1 {
			g.DrawPath("D")
		}

		g.SetFontSize(7)
		for _, wp := range path {
			if !wp.IsAnchor() {
				continue
			}
			u, v := g.UV(wp.Position.X, wp.Position.Z)
			g.Circle(u, v, 0.8, "F")
			g.Text(u+1.2, v-1.2, wp.Label())
		}

		g.SetFontSize(9)
		g.Rect(gridOffsetU+gridW+4, legendV, 4, 4, "F")
		g.Text(gridOffsetU+gridW+10, legendV+3.5, fmt.Sprintf("%s (%d)", d.Name, len(path)))
		legendV += 7
	}

	return pdf.Output(w)
}

// parseHexColor converts "#rrggbb" to components, falling back to black.
func parseHexColor(s string) (int, int, int) {
	s = strings.TrimPrefix(s, "#")
	if len(s) != 6 {
		return 0, 0, 0
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, 0, 0
	}
	return int(v >> 16 & 0xff), int(v >> 8 & 0xff), int(v & 0xff)
}
