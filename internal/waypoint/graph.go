// Package waypoint provides the per-drone waypoint graph: ordering keys,
// connection topology, and the add/remove/reindex operations that keep
// each drone's anchors a connected path.
package waypoint

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/google/uuid"
)

var (
	ErrWaypointNotFound = errors.New("waypoint not found")
	ErrNoDroneSelected  = errors.New("no drone selected")
	ErrTooFewWaypoints  = errors.New("at least two waypoints are required")
	ErrInvalidType      = errors.New("invalid waypoint type")
)

// Graph owns every waypoint of every drone. It is not safe for concurrent
// use; the planner serialises access.
type Graph struct {
	// Insertion order; a drone's subset keeps its relative order except
	// where an operation documents a re-sort.
	waypoints []*Waypoint
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{}
}

// Removal describes the outcome of Remove.
type Removal struct {
	Removed Waypoint
	// Emptied is set when the removed waypoint was the drone's last one.
	Emptied bool
}

// Add appends a new anchor to the drone's path. Its index is one past the
// highest integer index in use and it is linked to the drone's current
// last waypoint, which may be a curve point.
func (g *Graph) Add(droneID string, in Input) (Waypoint, error) {
	if droneID == "" {
		return Waypoint{}, ErrNoDroneSelected
	}
	typ := in.Type
	if typ == "" {
		typ = TypeWaypoint
	}
	if !typ.Valid() {
		return Waypoint{}, fmt.Errorf("%w: %q", ErrInvalidType, typ)
	}

	own := g.drone(droneID)

	newIndex := 1.0
	for _, w := range own {
		newIndex = math.Max(newIndex, math.Floor(w.Index)+1)
	}

	// The previous waypoint is the one with the largest index whose floor
	// lies below newIndex; this skips past curve points hanging off the
	// last anchor.
	var prev *Waypoint
	for _, w := range own {
		if math.Floor(w.Index) < newIndex && (prev == nil || w.Index > prev.Index) {
			prev = w
		}
	}

	wp := &Waypoint{
		ID:          "waypoint-" + uuid.NewString(),
		DroneID:     droneID,
		Index:       newIndex,
		Name:        in.Name,
		Position:    in.Position,
		Type:        typ,
		Altitude:    in.Altitude,
		Speed:       in.Speed,
		Connections: []float64{},
	}
	if in.Heading != nil {
		h := *in.Heading
		wp.Heading = &h
	}
	if prev != nil {
		prev.Connections = append(slices.DeleteFunc(prev.Connections, func(c float64) bool {
			return c == newIndex
		}), newIndex)
		wp.Connections = []float64{prev.Index}
	}

	g.waypoints = append(g.waypoints, wp)
	return wp.Clone(), nil
}

// Remove deletes a waypoint and rebuilds its drone's path from scratch:
// the survivors are sorted by index, renumbered 1..n and chained to their
// immediate neighbours only. Curve points therefore become plain anchors
// and any extra edges, including a return link, are dropped. Other drones
// are unaffected.
func (g *Graph) Remove(id string) (Removal, error) {
	target := g.find(id)
	if target == nil {
		return Removal{}, fmt.Errorf("%w: %s", ErrWaypointNotFound, id)
	}

	var others, survivors []*Waypoint
	for _, w := range g.waypoints {
		switch {
		case w == target:
		case w.DroneID == target.DroneID:
			survivors = append(survivors, w)
		default:
			others = append(others, w)
		}
	}

	res := Removal{Removed: target.Clone(), Emptied: len(survivors) == 0}

	slices.SortStableFunc(survivors, byIndex)
	for i, w := range survivors {
		w.Index = float64(i + 1)
		w.DisplayIndex = ""
		w.Connections = make([]float64, 0, 2)
		if i > 0 {
			w.Connections = append(w.Connections, float64(i))
		}
		if i < len(survivors)-1 {
			w.Connections = append(w.Connections, float64(i+2))
		}
	}

	g.waypoints = append(others, survivors...)
	return res, nil
}

// Update applies a field patch to a waypoint without re-checking any
// structural invariant.
func (g *Graph) Update(id string, u Update) (Waypoint, error) {
	w := g.find(id)
	if w == nil {
		return Waypoint{}, fmt.Errorf("%w: %s", ErrWaypointNotFound, id)
	}
	if err := u.apply(w); err != nil {
		return Waypoint{}, err
	}
	return w.Clone(), nil
}

// Get returns a copy of the waypoint with the given id.
func (g *Graph) Get(id string) (Waypoint, bool) {
	if w := g.find(id); w != nil {
		return w.Clone(), true
	}
	return Waypoint{}, false
}

// ByDrone returns copies of the drone's waypoints in stored order.
func (g *Graph) ByDrone(droneID string) []Waypoint {
	return cloneAll(g.drone(droneID))
}

// Sorted returns copies of the drone's waypoints in ascending index order.
func (g *Graph) Sorted(droneID string) []Waypoint {
	wps := g.ByDrone(droneID)
	slices.SortStableFunc(wps, func(a, b Waypoint) int { return cmp.Compare(a.Index, b.Index) })
	return wps
}

// All returns copies of every waypoint in stored order.
func (g *Graph) All() []Waypoint {
	return cloneAll(g.waypoints)
}

// Len returns the total number of waypoints across all drones.
func (g *Graph) Len() int {
	return len(g.waypoints)
}

// ClearAll removes every waypoint.
func (g *Graph) ClearAll() {
	g.waypoints = nil
}

// ClearDrone removes the drone's waypoints and returns how many there were.
func (g *Graph) ClearDrone(droneID string) int {
	n := len(g.waypoints)
	g.waypoints = slices.DeleteFunc(g.waypoints, func(w *Waypoint) bool {
		return w.DroneID == droneID
	})
	return n - len(g.waypoints)
}

// MoveToDrone reassigns the named waypoints to another drone, leaving
// their indices and connections untouched. It is a raw primitive: if the
// target drone already uses the same indices, uniqueness no longer holds.
// It returns the number of waypoints moved.
func (g *Graph) MoveToDrone(ids []string, targetDroneID string) int {
	n := 0
	for _, w := range g.waypoints {
		if slices.Contains(ids, w.ID) {
			w.DroneID = targetDroneID
			n++
		}
	}
	return n
}

// LinkReturn records a one-way edge from the drone's last anchor back to
// its first, closing the loop. The first anchor does not get a matching
// edge. It reports whether an edge was added.
func (g *Graph) LinkReturn(droneID string) (bool, error) {
	own := g.drone(droneID)
	if len(own) < 2 {
		return false, ErrTooFewWaypoints
	}

	first, last := anchorEnds(own)
	if first == nil || first == last {
		return false, ErrTooFewWaypoints
	}
	if last.ConnectedTo(first.Index) {
		return false, nil
	}
	last.Connections = append(last.Connections, first.Index)
	return true, nil
}

// HasReturnLink reports whether the drone's last anchor links back to its
// first anchor.
func (g *Graph) HasReturnLink(droneID string) bool {
	first, last := anchorEnds(g.drone(droneID))
	return first != nil && first != last && last.ConnectedTo(first.Index)
}

// Replace swaps the drone's whole waypoint collection for wps, sorted by
// index. Waypoints of other drones keep their positions.
func (g *Graph) Replace(droneID string, wps []Waypoint) {
	g.waypoints = slices.DeleteFunc(g.waypoints, func(w *Waypoint) bool {
		return w.DroneID == droneID
	})

	own := make([]*Waypoint, 0, len(wps))
	for _, w := range wps {
		w := w.Clone()
		w.DroneID = droneID
		own = append(own, &w)
	}
	slices.SortStableFunc(own, byIndex)
	g.waypoints = append(g.waypoints, own...)
}

// Load replaces the entire collection. Waypoints are stored as given;
// invalid types are rejected and nothing changes in that case.
func (g *Graph) Load(wps []Waypoint) error {
	loaded := make([]*Waypoint, 0, len(wps))
	for _, w := range wps {
		if !w.Type.Valid() {
			return fmt.Errorf("%w: %q", ErrInvalidType, w.Type)
		}
		w := w.Clone()
		if w.ID == "" {
			w.ID = "waypoint-" + uuid.NewString()
		}
		loaded = append(loaded, &w)
	}
	g.waypoints = loaded
	return nil
}

func (g *Graph) find(id string) *Waypoint {
	for _, w := range g.waypoints {
		if w.ID == id {
			return w
		}
	}
	return nil
}

func (g *Graph) drone(droneID string) []*Waypoint {
	var own []*Waypoint
	for _, w := range g.waypoints {
		if w.DroneID == droneID {
			own = append(own, w)
		}
	}
	return own
}

// anchorEnds returns the lowest- and highest-indexed anchors.
func anchorEnds(wps []*Waypoint) (first, last *Waypoint) {
	for _, w := range wps {
		if !w.IsAnchor() {
			continue
		}
		if first == nil || w.Index < first.Index {
			first = w
		}
		if last == nil || w.Index > last.Index {
			last = w
		}
	}
	return first, last
}

func byIndex(a, b *Waypoint) int {
	return cmp.Compare(a.Index, b.Index)
}

func cloneAll(wps []*Waypoint) []Waypoint {
	out := make([]Waypoint, 0, len(wps))
	for _, w := range wps {
		out = append(out, w.Clone())
	}
	return out
}
