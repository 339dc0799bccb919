package waypoint

import (
	"errors"
	"slices"
	"testing"

	"trajectory_planner/internal/geom"
)

const droneA = "drone-a"
const droneB = "drone-b"

func addN(t *testing.T, g *Graph, droneID string, n int) []Waypoint {
	t.Helper()
	var out []Waypoint
	for i := 0; i < n; i++ {
		w, err := g.Add(droneID, Input{Position: geom.Vec3{X: float64(i), Y: 2}})
		if err != nil {
			t.Fatalf("Add: %v", err)
		}
		out = append(out, w)
	}
	return out
}

func connections(g *Graph, droneID string) map[float64][]float64 {
	m := make(map[float64][]float64)
	for _, w := range g.Sorted(droneID) {
		m[w.Index] = w.Connections
	}
	return m
}

// checkChain verifies that the drone's waypoints are anchors 1..n, each
// linked exactly to its predecessor and successor.
func checkChain(t *testing.T, g *Graph, droneID string, n int) {
	t.Helper()
	wps := g.Sorted(droneID)
	if len(wps) != n {
		t.Fatalf("len = %d, want %d", len(wps), n)
	}
	for i, w := range wps {
		if w.Index != float64(i+1) {
			t.Errorf("wps[%d].Index = %v, want %d", i, w.Index, i+1)
		}
		var want []float64
		if i > 0 {
			want = append(want, float64(i))
		}
		if i < n-1 {
			want = append(want, float64(i+2))
		}
		got := slices.Clone(w.Connections)
		slices.Sort(got)
		if !slices.Equal(got, want) && !(len(got) == 0 && len(want) == 0) {
			t.Errorf("index %v connections = %v, want %v", w.Index, got, want)
		}
	}
}

func TestAddTwoWaypoints(t *testing.T) {
	g := NewGraph()

	a, err := g.Add(droneA, Input{Position: geom.Vec3{X: 0, Y: 2, Z: 0}})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	b, err := g.Add(droneA, Input{Position: geom.Vec3{X: 1, Y: 2, Z: 1}})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	if a.Index != 1 || b.Index != 2 {
		t.Fatalf("indices = %v, %v, want 1, 2", a.Index, b.Index)
	}
	if a.Type != TypeWaypoint {
		t.Errorf("default type = %q, want waypoint", a.Type)
	}

	conns := connections(g, droneA)
	if !slices.Equal(conns[1], []float64{2}) {
		t.Errorf("waypoint 1 connections = %v, want [2]", conns[1])
	}
	if !slices.Equal(conns[2], []float64{1}) {
		t.Errorf("waypoint 2 connections = %v, want [1]", conns[2])
	}
}

func TestAddBuildsChain(t *testing.T) {
	for _, n := range []int{1, 2, 3, 7, 20} {
		g := NewGraph()
		addN(t, g, droneA, n)
		checkChain(t, g, droneA, n)
	}
}

func TestAddRequiresDrone(t *testing.T) {
	g := NewGraph()
	if _, err := g.Add("", Input{}); !errors.Is(err, ErrNoDroneSelected) {
		t.Errorf("Add without drone = %v, want ErrNoDroneSelected", err)
	}
	if g.Len() != 0 {
		t.Errorf("Len = %d, want 0", g.Len())
	}
}

func TestAddRejectsInvalidType(t *testing.T) {
	g := NewGraph()
	if _, err := g.Add(droneA, Input{Type: "return"}); !errors.Is(err, ErrInvalidType) {
		t.Errorf("Add(return) = %v, want ErrInvalidType", err)
	}
}

func TestAddDronesAreIndependent(t *testing.T) {
	g := NewGraph()
	addN(t, g, droneA, 3)
	addN(t, g, droneB, 2)

	checkChain(t, g, droneA, 3)
	checkChain(t, g, droneB, 2)
}

func TestAddAfterCurvePoints(t *testing.T) {
	g := NewGraph()
	wps := addN(t, g, droneA, 2)

	// Splice two curve points between 1 and 2 by hand.
	g.Replace(droneA, []Waypoint{
		{ID: wps[0].ID, Index: 1, Type: TypeWaypoint, Connections: []float64{1.01}},
		{ID: "c1", Index: 1.01, Type: TypeWaypoint, Connections: []float64{1.02}},
		{ID: "c2", Index: 1.02, Type: TypeWaypoint, Connections: []float64{2}},
		{ID: wps[1].ID, Index: 2, Type: TypeWaypoint, Connections: []float64{}},
	})

	w, err := g.Add(droneA, Input{})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if w.Index != 3 {
		t.Errorf("Index = %v, want 3", w.Index)
	}
	if !slices.Equal(w.Connections, []float64{2}) {
		t.Errorf("connections = %v, want [2]", w.Connections)
	}
	prev, _ := g.Get(wps[1].ID)
	if !slices.Equal(prev.Connections, []float64{3}) {
		t.Errorf("previous connections = %v, want [3]", prev.Connections)
	}
}

func TestAddLinksTrailingCurvePoint(t *testing.T) {
	g := NewGraph()
	wps := addN(t, g, droneA, 1)

	// A curve point hanging past the last anchor is the previous waypoint.
	g.Replace(droneA, []Waypoint{
		{ID: wps[0].ID, Index: 1, Type: TypeWaypoint, Connections: []float64{1.01}},
		{ID: "c1", Index: 1.01, Type: TypeWaypoint, Connections: []float64{}},
	})

	w, err := g.Add(droneA, Input{})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if w.Index != 2 {
		t.Errorf("Index = %v, want 2", w.Index)
	}
	if !slices.Equal(w.Connections, []float64{1.01}) {
		t.Errorf("connections = %v, want [1.01]", w.Connections)
	}
	c, _ := g.Get("c1")
	if !slices.Equal(c.Connections, []float64{2}) {
		t.Errorf("curve point connections = %v, want [2]", c.Connections)
	}
}

func TestRemoveMiddle(t *testing.T) {
	g := NewGraph()
	wps := addN(t, g, droneA, 3)

	res, err := g.Remove(wps[1].ID)
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if res.Emptied {
		t.Error("Emptied = true, want false")
	}

	conns := connections(g, droneA)
	if len(conns) != 2 {
		t.Fatalf("survivors = %d, want 2", len(conns))
	}
	if !slices.Equal(conns[1], []float64{2}) || !slices.Equal(conns[2], []float64{1}) {
		t.Errorf("connections = %v, want {1:[2], 2:[1]}", conns)
	}

	last, _ := g.Get(wps[2].ID)
	if last.Index != 2 {
		t.Errorf("former index 3 renumbered to %v, want 2", last.Index)
	}
}

func TestRemoveAlwaysRestoresChain(t *testing.T) {
	const n = 6
	for victim := 0; victim < n; victim++ {
		g := NewGraph()
		wps := addN(t, g, droneA, n)
		if _, err := g.LinkReturn(droneA); err != nil {
			t.Fatalf("LinkReturn: %v", err)
		}

		if _, err := g.Remove(wps[victim].ID); err != nil {
			t.Fatalf("Remove(%d): %v", victim, err)
		}
		checkChain(t, g, droneA, n-1)
		if g.HasReturnLink(droneA) {
			t.Errorf("victim %d: return link survived removal", victim)
		}
	}
}

func TestRemoveFlattensCurvePoints(t *testing.T) {
	g := NewGraph()
	wps := addN(t, g, droneA, 3)
	g.Replace(droneA, []Waypoint{
		{ID: wps[0].ID, Index: 1, Type: TypeWaypoint, Connections: []float64{1.01}},
		{ID: "c1", Index: 1.01, DisplayIndex: "1.01", Type: TypeWaypoint, Connections: []float64{2}},
		{ID: wps[1].ID, Index: 2, Type: TypeWaypoint, Connections: []float64{3}},
		{ID: wps[2].ID, Index: 3, Type: TypeWaypoint, Connections: []float64{2}},
	})

	if _, err := g.Remove(wps[2].ID); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	checkChain(t, g, droneA, 3)

	c, _ := g.Get("c1")
	if c.Index != 2 || c.DisplayIndex != "" {
		t.Errorf("curve point after removal = index %v display %q, want anchor 2", c.Index, c.DisplayIndex)
	}
}

func TestRemoveOnlyWaypoint(t *testing.T) {
	g := NewGraph()
	wps := addN(t, g, droneA, 1)
	addN(t, g, droneB, 2)

	res, err := g.Remove(wps[0].ID)
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if !res.Emptied {
		t.Error("Emptied = false, want true")
	}
	if len(g.ByDrone(droneA)) != 0 {
		t.Error("drone A still has waypoints")
	}
	checkChain(t, g, droneB, 2)
}

func TestRemoveScopedToDrone(t *testing.T) {
	g := NewGraph()
	a := addN(t, g, droneA, 3)
	b := addN(t, g, droneB, 3)
	if _, err := g.LinkReturn(droneB); err != nil {
		t.Fatalf("LinkReturn: %v", err)
	}

	if _, err := g.Remove(a[0].ID); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	checkChain(t, g, droneA, 2)

	// Drone B keeps its indices and its return link.
	for i, w := range g.Sorted(droneB) {
		if w.ID != b[i].ID || w.Index != float64(i+1) {
			t.Errorf("drone B waypoint %d = %s@%v", i, w.ID, w.Index)
		}
	}
	if !g.HasReturnLink(droneB) {
		t.Error("drone B lost its return link")
	}
}

func TestRemoveMissing(t *testing.T) {
	g := NewGraph()
	if _, err := g.Remove("nope"); !errors.Is(err, ErrWaypointNotFound) {
		t.Errorf("Remove(missing) = %v, want ErrWaypointNotFound", err)
	}
}

func TestUpdate(t *testing.T) {
	g := NewGraph()
	wps := addN(t, g, droneA, 2)

	name := "Gate"
	pos := geom.Vec3{X: 5, Y: 6, Z: 7}
	hover := TypeHover
	heading := 90.0
	w, err := g.Update(wps[0].ID, Update{Name: &name, Position: &pos, Type: &hover, Heading: &heading})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if w.Name != "Gate" || w.Position != pos || w.Type != TypeHover || w.Heading == nil || *w.Heading != 90 {
		t.Errorf("Update = %+v", w)
	}
	if !slices.Equal(w.Connections, []float64{2}) {
		t.Errorf("connections changed to %v", w.Connections)
	}

	bad := Type("return")
	if _, err := g.Update(wps[0].ID, Update{Type: &bad}); !errors.Is(err, ErrInvalidType) {
		t.Errorf("Update(type=return) = %v, want ErrInvalidType", err)
	}
	if _, err := g.Update("nope", Update{}); !errors.Is(err, ErrWaypointNotFound) {
		t.Errorf("Update(missing) = %v, want ErrWaypointNotFound", err)
	}
}

func TestReturnedCopiesAreDetached(t *testing.T) {
	g := NewGraph()
	wps := addN(t, g, droneA, 2)

	first, _ := g.Get(wps[0].ID)
	first.Connections[0] = 99
	got, _ := g.Get(wps[0].ID)
	if got.Connections[0] != 2 {
		t.Errorf("graph mutated through returned copy: %v", got.Connections)
	}
}

func TestLinkReturn(t *testing.T) {
	g := NewGraph()
	addN(t, g, droneA, 1)

	if _, err := g.LinkReturn(droneA); !errors.Is(err, ErrTooFewWaypoints) {
		t.Fatalf("LinkReturn with one waypoint = %v, want ErrTooFewWaypoints", err)
	}

	addN(t, g, droneA, 2)
	added, err := g.LinkReturn(droneA)
	if err != nil || !added {
		t.Fatalf("LinkReturn = %v, %v, want true, nil", added, err)
	}
	added, err = g.LinkReturn(droneA)
	if err != nil || added {
		t.Errorf("second LinkReturn = %v, %v, want false, nil", added, err)
	}

	conns := connections(g, droneA)
	if !slices.Equal(conns[3], []float64{2, 1}) {
		t.Errorf("last connections = %v, want [2 1]", conns[3])
	}
	if !slices.Equal(conns[1], []float64{2}) {
		t.Errorf("first connections = %v, want [2] (one-way link)", conns[1])
	}
	if !g.HasReturnLink(droneA) {
		t.Error("HasReturnLink = false")
	}
}

func TestClearAndMove(t *testing.T) {
	g := NewGraph()
	a := addN(t, g, droneA, 2)
	addN(t, g, droneB, 3)

	if n := g.MoveToDrone([]string{a[1].ID}, droneB); n != 1 {
		t.Errorf("MoveToDrone = %d, want 1", n)
	}
	moved, _ := g.Get(a[1].ID)
	if moved.DroneID != droneB || moved.Index != 2 || !slices.Equal(moved.Connections, []float64{1}) {
		t.Errorf("moved waypoint = %+v, want index/connections untouched", moved)
	}

	if n := g.ClearDrone(droneB); n != 4 {
		t.Errorf("ClearDrone = %d, want 4", n)
	}
	if g.Len() != 1 {
		t.Errorf("Len = %d, want 1", g.Len())
	}

	g.ClearAll()
	if g.Len() != 0 {
		t.Errorf("Len after ClearAll = %d, want 0", g.Len())
	}
}

func TestLoad(t *testing.T) {
	g := NewGraph()
	addN(t, g, droneA, 2)

	err := g.Load([]Waypoint{{DroneID: droneA, Index: 1, Type: "bogus"}})
	if !errors.Is(err, ErrInvalidType) {
		t.Fatalf("Load(bogus) = %v, want ErrInvalidType", err)
	}
	if g.Len() != 2 {
		t.Errorf("failed Load changed the graph: Len = %d", g.Len())
	}

	if err := g.Load([]Waypoint{{DroneID: droneB, Index: 1, Type: TypeTakeoff}}); err != nil {
		t.Fatalf("Load: %v", err)
	}
	all := g.All()
	if len(all) != 1 || all[0].ID == "" || all[0].Connections == nil {
		t.Errorf("All = %+v", all)
	}
}

func TestParseType(t *testing.T) {
	tests := []struct {
		in      string
		want    Type
		wantErr bool
	}{
		{"", TypeWaypoint, false},
		{"takeoff", TypeTakeoff, false},
		{" Hover ", TypeHover, false},
		{"LANDING", TypeLanding, false},
		{"return", "", true},
		{"loiter", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseType(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseType(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseType(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
