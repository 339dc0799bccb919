package planner

import (
	"bytes"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"

	"trajectory_planner/internal/curve"
	"trajectory_planner/internal/drone"
	"trajectory_planner/internal/geom"
	"trajectory_planner/internal/trajectory"
	"trajectory_planner/internal/waypoint"
)

func place(t *testing.T, p *Planner, x, z float64) waypoint.Waypoint {
	t.Helper()
	pl, err := p.PlaceWaypoint(x, z, 2, "")
	if err != nil {
		t.Fatalf("PlaceWaypoint: %v", err)
	}
	if pl.Waypoint == nil {
		t.Fatal("PlaceWaypoint added nothing")
	}
	return *pl.Waypoint
}

func TestRemoveOnlyDroneRefused(t *testing.T) {
	p := New(nil)

	err := p.RemoveDrone(drone.DefaultID, true)
	if !errors.Is(err, drone.ErrLastDrone) {
		t.Fatalf("RemoveDrone = %v, want ErrLastDrone", err)
	}
	if len(p.Drones()) != 1 {
		t.Errorf("drones = %d, want 1", len(p.Drones()))
	}
}

func TestRemoveDroneCascade(t *testing.T) {
	tests := []struct {
		cascade bool
		want    int
	}{
		{true, 1},
		{false, 3},
	}

	for _, tt := range tests {
		p := New(nil)
		place(t, p, 0, 0)
		d := p.AddDrone("", "")
		place(t, p, 1, 1)
		place(t, p, 2, 2)

		if err := p.RemoveDrone(d.ID, tt.cascade); err != nil {
			t.Fatalf("RemoveDrone: %v", err)
		}
		if got := len(p.AllWaypoints()); got != tt.want {
			t.Errorf("cascade=%v: waypoints = %d, want %d", tt.cascade, got, tt.want)
		}
		if p.SelectedDrone() != drone.DefaultID {
			t.Errorf("SelectedDrone = %q, want %q", p.SelectedDrone(), drone.DefaultID)
		}
	}
}

func TestPlaceWaypoint(t *testing.T) {
	p := New(nil)

	a := place(t, p, 0.3, -1.8)
	if a.Position != (geom.Vec3{X: 0.5, Y: 2, Z: -2}) {
		t.Errorf("snapped position = %+v", a.Position)
	}
	if a.Name != "Waypoint 1" || a.Speed != DefaultSpeed || a.Altitude != 2 || a.Type != waypoint.TypeWaypoint {
		t.Errorf("placed waypoint = %+v", a)
	}
	if p.SelectedWaypoint() != a.ID {
		t.Errorf("SelectedWaypoint = %q, want %q", p.SelectedWaypoint(), a.ID)
	}

	// Names count waypoints across all drones.
	p.AddDrone("", "")
	b := place(t, p, 1, 1)
	if b.Name != "Waypoint 2" || b.Index != 1 {
		t.Errorf("second drone waypoint = %q index %v", b.Name, b.Index)
	}

	off := false
	if _, err := p.UpdateSettings(SettingsUpdate{SnapToGrid: &off}); err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}
	c := place(t, p, 1.3, 1.3)
	if c.Position.X != 1.3 || c.Position.Z != 1.3 {
		t.Errorf("unsnapped position = %+v", c.Position)
	}

	if _, err := p.PlaceWaypoint(0, 0, 2, "loiter"); !errors.Is(err, waypoint.ErrInvalidType) {
		t.Errorf("PlaceWaypoint(loiter) = %v, want ErrInvalidType", err)
	}
}

func TestPlaceReturn(t *testing.T) {
	p := New(nil)

	if _, err := p.PlaceWaypoint(0, 0, 2, waypoint.ReturnRequest); !errors.Is(err, waypoint.ErrTooFewWaypoints) {
		t.Fatalf("return with no waypoints = %v, want ErrTooFewWaypoints", err)
	}

	place(t, p, 0, 0)
	place(t, p, 4, 0)
	place(t, p, 4, 4)
	n := len(p.AllWaypoints())

	pl, err := p.PlaceWaypoint(9, 9, 2, waypoint.ReturnRequest)
	if err != nil {
		t.Fatalf("PlaceWaypoint(return): %v", err)
	}
	if !pl.ReturnLinked || pl.Waypoint != nil {
		t.Errorf("Placement = %+v, want return link only", pl)
	}
	if len(p.AllWaypoints()) != n {
		t.Error("return placement added a waypoint")
	}

	edges := p.Edges(drone.DefaultID)
	last := edges[len(edges)-1]
	if !last.Return || last.From != 3 || last.To != 1 {
		t.Errorf("last edge = %+v, want return 3->1", last)
	}
}

func TestSelectionRules(t *testing.T) {
	p := New(nil)
	a := place(t, p, 0, 0)
	b := place(t, p, 1, 0)

	if err := p.SelectWaypoint(a.ID); err != nil {
		t.Fatalf("SelectWaypoint: %v", err)
	}
	if err := p.RemoveWaypoint(b.ID); err != nil {
		t.Fatalf("RemoveWaypoint: %v", err)
	}
	if p.SelectedWaypoint() != a.ID {
		t.Error("removing another waypoint cleared the selection")
	}
	if err := p.RemoveWaypoint(a.ID); err != nil {
		t.Fatalf("RemoveWaypoint: %v", err)
	}
	if p.SelectedWaypoint() != "" {
		t.Error("removing the selected waypoint kept the selection")
	}

	c := place(t, p, 0, 0)
	d := p.AddDrone("", "")
	if p.SelectedWaypoint() != "" {
		t.Error("adding a drone kept the waypoint selection")
	}
	if err := p.SelectWaypoint(c.ID); err != nil {
		t.Fatalf("SelectWaypoint: %v", err)
	}
	if err := p.SelectDrone(d.ID); err != nil {
		t.Fatalf("SelectDrone: %v", err)
	}
	if p.SelectedWaypoint() != "" {
		t.Error("changing drone kept the waypoint selection")
	}

	if err := p.SelectWaypoint("nope"); !errors.Is(err, waypoint.ErrWaypointNotFound) {
		t.Errorf("SelectWaypoint(missing) = %v", err)
	}
}

func TestNoDroneSelected(t *testing.T) {
	p := New(nil)
	if err := p.SelectDrone(""); err != nil {
		t.Fatalf("SelectDrone: %v", err)
	}
	if _, err := p.PlaceWaypoint(0, 0, 2, ""); !errors.Is(err, waypoint.ErrNoDroneSelected) {
		t.Errorf("PlaceWaypoint = %v, want ErrNoDroneSelected", err)
	}
	if _, err := p.AddWaypoint("", waypoint.Input{}); !errors.Is(err, waypoint.ErrNoDroneSelected) {
		t.Errorf("AddWaypoint = %v, want ErrNoDroneSelected", err)
	}
	if _, err := p.AddWaypoint("drone-x", waypoint.Input{}); !errors.Is(err, drone.ErrDroneNotFound) {
		t.Errorf("AddWaypoint(unknown) = %v, want ErrDroneNotFound", err)
	}
	if len(p.AllWaypoints()) != 0 {
		t.Error("refused adds changed the graph")
	}
}

func TestCurveEditBlocksEdits(t *testing.T) {
	p := New(nil)
	a := place(t, p, 0, 0)
	b := place(t, p, 1, 0)

	if _, err := p.StartCurve(a.ID, b.ID); err != nil {
		t.Fatalf("StartCurve: %v", err)
	}
	if err := p.RemoveWaypoint(a.ID); !errors.Is(err, ErrCurveEditActive) {
		t.Errorf("RemoveWaypoint during curve edit = %v, want ErrCurveEditActive", err)
	}
	if _, err := p.PlaceWaypoint(5, 5, 2, ""); !errors.Is(err, ErrCurveEditActive) {
		t.Errorf("PlaceWaypoint during curve edit = %v, want ErrCurveEditActive", err)
	}

	res, err := p.FinishCurve()
	if err != nil || !res.Committed {
		t.Fatalf("FinishCurve = %+v, %v", res, err)
	}
	var labels []string
	for _, w := range p.Waypoints(drone.DefaultID) {
		labels = append(labels, w.Label())
	}
	if want := []string{"1", "1.01", "1.02", "2"}; !slices.Equal(labels, want) {
		t.Errorf("labels = %v, want %v", labels, want)
	}

	if err := p.RemoveWaypoint(a.ID); err != nil {
		t.Errorf("RemoveWaypoint after commit: %v", err)
	}
}

func TestCurveRefusedWhenNotConnected(t *testing.T) {
	p := New(nil)
	a := place(t, p, 0, 0)
	place(t, p, 1, 0)
	c := place(t, p, 2, 0)

	if _, err := p.StartCurve(a.ID, c.ID); !errors.Is(err, curve.ErrNotConnected) {
		t.Fatalf("StartCurve = %v, want ErrNotConnected", err)
	}
	if p.CurveSession().Active {
		t.Error("session created for unconnected waypoints")
	}
	if err := p.UpdateCurve([2]geom.Vec3{}); !errors.Is(err, curve.ErrNoCurveEdit) {
		t.Errorf("UpdateCurve = %v, want ErrNoCurveEdit", err)
	}
	if p.CancelCurve() {
		t.Error("CancelCurve = true with no session")
	}
}

func TestRefusedCurveStartKeepsSession(t *testing.T) {
	p := New(nil)
	a := place(t, p, 0, 0)
	b := place(t, p, 1, 0)
	c := place(t, p, 2, 0)

	open, err := p.StartCurve(a.ID, b.ID)
	if err != nil {
		t.Fatalf("StartCurve: %v", err)
	}
	var changes []Change
	p.OnChange(func(ch Change) { changes = append(changes, ch) })
	rev := p.Revision()

	if _, err := p.StartCurve(a.ID, c.ID); !errors.Is(err, curve.ErrNotConnected) {
		t.Fatalf("StartCurve = %v, want ErrNotConnected", err)
	}
	if got := p.CurveSession(); got != open {
		t.Errorf("CurveSession = %+v, want %+v", got, open)
	}
	if p.Revision() != rev || len(changes) != 0 {
		t.Errorf("refused start recorded changes: revision %d -> %d, %v", rev, p.Revision(), changes)
	}

	res, err := p.FinishCurve()
	if err != nil || !res.Committed {
		t.Errorf("FinishCurve = %+v, %v", res, err)
	}
}

func TestFailedCurveCommitReportsCancel(t *testing.T) {
	p := New(nil)
	// No fractional key fits between 1 and 1.000000001.
	s := trajectory.Snapshot{Waypoints: []waypoint.Waypoint{
		{ID: "a", Index: 1, Type: waypoint.TypeWaypoint, Connections: []float64{1.000000001}},
		{ID: "b", Index: 1.000000001, Type: waypoint.TypeWaypoint, Position: geom.Vec3{X: 4}, Connections: []float64{}},
	}}
	if err := p.Import(s, ImportOptions{DroneID: drone.DefaultID}); err != nil {
		t.Fatalf("Import: %v", err)
	}
	if _, err := p.StartCurve("a", "b"); err != nil {
		t.Fatalf("StartCurve: %v", err)
	}

	var kinds []Kind
	p.OnChange(func(ch Change) { kinds = append(kinds, ch.Kind) })
	rev := p.Revision()

	if _, err := p.FinishCurve(); !errors.Is(err, curve.ErrKeySpaceExhausted) {
		t.Fatalf("FinishCurve = %v, want ErrKeySpaceExhausted", err)
	}
	if p.CurveSession().Active {
		t.Error("session survived failed commit")
	}
	if !slices.Equal(kinds, []Kind{KindCurveCancelled}) || p.Revision() != rev+1 {
		t.Errorf("changes = %v, revision %d -> %d, want one cancellation", kinds, rev, p.Revision())
	}
	if got := len(p.Waypoints(drone.DefaultID)); got != 2 {
		t.Errorf("waypoints = %d, want 2", got)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	src := New(nil)
	a := place(t, src, 0, 0)
	b := place(t, src, 3, 1)
	place(t, src, 3, 4)
	if _, err := src.StartCurve(a.ID, b.ID); err != nil {
		t.Fatalf("StartCurve: %v", err)
	}
	if _, err := src.FinishCurve(); err != nil {
		t.Fatalf("FinishCurve: %v", err)
	}
	if _, err := src.LinkReturn(""); err != nil {
		t.Fatalf("LinkReturn: %v", err)
	}
	gs := 0.25
	if _, err := src.UpdateSettings(SettingsUpdate{GridSize: &gs}); err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}

	data, err := src.ExportJSON("")
	if err != nil {
		t.Fatalf("ExportJSON: %v", err)
	}

	dst := New(nil)
	if err := dst.ImportJSON(data, ImportOptions{}); err != nil {
		t.Fatalf("ImportJSON: %v", err)
	}

	want := src.Waypoints(drone.DefaultID)
	got := dst.Waypoints(drone.DefaultID)
	if len(got) != len(want) {
		t.Fatalf("waypoints = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Position != want[i].Position || got[i].Type != want[i].Type || got[i].Index != want[i].Index {
			t.Errorf("waypoint %d = %+v, want %+v", i, got[i], want[i])
		}
		if !slices.Equal(got[i].Connections, want[i].Connections) {
			t.Errorf("waypoint %d connections = %v, want %v", i, got[i].Connections, want[i].Connections)
		}
	}
	if dst.Settings().GridSize != 0.25 {
		t.Errorf("GridSize = %v, want 0.25", dst.Settings().GridSize)
	}
}

func TestImportMalformedLeavesState(t *testing.T) {
	p := New(nil)
	place(t, p, 0, 0)
	place(t, p, 1, 0)
	rev := p.Revision()

	err := p.ImportJSON([]byte(`{"waypoints": [{"id": "x"}]}`), ImportOptions{})
	if !errors.Is(err, trajectory.ErrMalformedSnapshot) {
		t.Fatalf("ImportJSON = %v, want ErrMalformedSnapshot", err)
	}
	if len(p.AllWaypoints()) != 2 || p.Revision() != rev {
		t.Error("failed import changed the session")
	}

	bad := trajectory.Snapshot{Waypoints: []waypoint.Waypoint{{Type: "return"}}}
	if err := p.Import(bad, ImportOptions{}); !errors.Is(err, trajectory.ErrMalformedSnapshot) {
		t.Errorf("Import(return type) = %v, want ErrMalformedSnapshot", err)
	}
}

func TestImportAssignsDrones(t *testing.T) {
	p := New(nil)
	other := p.AddDrone("Other", "")
	place(t, p, 0, 0)

	data := `{"waypoints": [
		{"position": {"x": 1, "y": 2, "z": 3}},
		{"droneId": "drone-new", "position": {"x": 4, "y": 5, "z": 6}}
	]}`
	if err := p.ImportJSON([]byte(data), ImportOptions{}); err != nil {
		t.Fatalf("ImportJSON: %v", err)
	}
	if got := p.Waypoints(other.ID); len(got) != 1 || got[0].ID == "" {
		t.Errorf("selected drone waypoints = %+v", got)
	}
	if _, ok := p.Drone("drone-new"); !ok {
		t.Error("referenced drone was not created")
	}

	// Forcing a drone replaces only that drone's waypoints.
	if err := p.ImportJSON([]byte(data), ImportOptions{DroneID: drone.DefaultID}); err != nil {
		t.Fatalf("ImportJSON(forced): %v", err)
	}
	if got := len(p.Waypoints(drone.DefaultID)); got != 2 {
		t.Errorf("forced drone waypoints = %d, want 2", got)
	}
	if got := len(p.Waypoints(other.ID)); got != 1 {
		t.Errorf("other drone waypoints = %d, want 1", got)
	}

	if err := p.ImportJSON([]byte(data), ImportOptions{DroneID: "nope"}); !errors.Is(err, drone.ErrDroneNotFound) {
		t.Errorf("ImportJSON(unknown drone) = %v, want ErrDroneNotFound", err)
	}
}

func TestImportDoesNotAliasCaller(t *testing.T) {
	p := New(nil)
	s := trajectory.Snapshot{Waypoints: []waypoint.Waypoint{
		{ID: "w", Index: 1, Type: waypoint.TypeWaypoint, Connections: []float64{}},
	}}
	if err := p.Import(s, ImportOptions{DroneID: drone.DefaultID}); err != nil {
		t.Fatalf("Import: %v", err)
	}
	if s.Waypoints[0].DroneID != "" {
		t.Errorf("Import modified the caller's snapshot: %q", s.Waypoints[0].DroneID)
	}
}

func TestCSVExports(t *testing.T) {
	p := New(nil)
	place(t, p, 1, 2)
	place(t, p, 3, 4)
	hidden := p.AddDrone("Hidden", "")
	place(t, p, 0, 0)
	if _, err := p.ToggleDroneVisibility(hidden.ID); err != nil {
		t.Fatalf("ToggleDroneVisibility: %v", err)
	}
	empty := p.AddDrone("Empty", "")

	files := p.CSVFiles()
	if len(files) != 1 || files[0].Name != "Drone 1.csv" || len(files[0].Waypoints) != 2 {
		t.Fatalf("CSVFiles = %+v", files)
	}

	var buf bytes.Buffer
	if err := p.WriteCSV(&buf, drone.DefaultID); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	if want := "X,Y,Z\n1.00,-2.00,-2.00\n3.00,-4.00,-2.00\n"; buf.String() != want {
		t.Errorf("WriteCSV =\n%s\nwant\n%s", buf.String(), want)
	}

	if err := p.WriteCSV(&buf, empty.ID); !errors.Is(err, ErrNoWaypoints) {
		t.Errorf("WriteCSV(empty) = %v, want ErrNoWaypoints", err)
	}
	if err := p.WriteCSV(&buf, "nope"); !errors.Is(err, drone.ErrDroneNotFound) {
		t.Errorf("WriteCSV(missing) = %v, want ErrDroneNotFound", err)
	}
}

func TestCSVFilesUniqueNames(t *testing.T) {
	p := New(nil)
	second := p.AddDrone("", "")
	third := p.AddDrone("", "")
	place(t, p, 0, 0)
	if err := p.RemoveDrone(second.ID, false); err != nil {
		t.Fatalf("RemoveDrone: %v", err)
	}
	again := p.AddDrone("", "")
	place(t, p, 1, 1)
	if again.Name != third.Name {
		t.Fatalf("names = %q, %q, want a repeat", third.Name, again.Name)
	}

	files := p.CSVFiles()
	if len(files) != 2 {
		t.Fatalf("CSVFiles = %+v", files)
	}
	if files[0].Name != "Drone 3.csv" {
		t.Errorf("first file = %q, want %q", files[0].Name, "Drone 3.csv")
	}
	if want := "Drone 3 (" + again.ID + ").csv"; files[1].Name != want {
		t.Errorf("second file = %q, want %q", files[1].Name, want)
	}
}

func TestOnChange(t *testing.T) {
	p := New(nil)

	var kinds []Kind
	var revs []uint64
	p.OnChange(func(ch Change) {
		kinds = append(kinds, ch.Kind)
		revs = append(revs, ch.Revision)
		// Callbacks run unlocked and may read the planner.
		_ = p.Revision()
	})

	a := place(t, p, 0, 0)
	place(t, p, 1, 0)
	if err := p.RemoveWaypoint(a.ID); err != nil {
		t.Fatalf("RemoveWaypoint: %v", err)
	}
	if err := p.RemoveDrone(drone.DefaultID, false); err == nil {
		t.Fatal("RemoveDrone of last drone succeeded")
	}

	want := []Kind{KindWaypointAdded, KindWaypointAdded, KindWaypointRemoved}
	if !slices.Equal(kinds, want) {
		t.Errorf("kinds = %v, want %v", kinds, want)
	}
	if !slices.Equal(revs, []uint64{1, 2, 3}) {
		t.Errorf("revisions = %v", revs)
	}
}

func TestUpdateSettingsRejectsGrid(t *testing.T) {
	p := New(nil)
	zero := 0.0
	if _, err := p.UpdateSettings(SettingsUpdate{GridSize: &zero}); err == nil || !strings.Contains(err.Error(), "grid size") {
		t.Errorf("UpdateSettings(0) = %v", err)
	}
	if p.Settings() != DefaultSettings() {
		t.Errorf("Settings = %+v", p.Settings())
	}
}

func TestConcurrentAccess(t *testing.T) {
	p := New(nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				if _, err := p.AddWaypoint(drone.DefaultID, waypoint.Input{Position: geom.Vec3{X: float64(i), Z: float64(j)}}); err != nil {
					t.Errorf("AddWaypoint: %v", err)
				}
				_ = p.Waypoints(drone.DefaultID)
				_ = p.Snapshot("")
			}
		}(i)
	}
	wg.Wait()

	wps := p.Waypoints(drone.DefaultID)
	if len(wps) != 200 {
		t.Fatalf("waypoints = %d, want 200", len(wps))
	}
	for i, w := range wps {
		if w.Index != float64(i+1) {
			t.Fatalf("index %d = %v", i, w.Index)
		}
	}
}
