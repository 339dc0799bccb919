package planner

import (
	"fmt"

	"trajectory_planner/internal/curve"
	"trajectory_planner/internal/drone"
	"trajectory_planner/internal/geom"
	"trajectory_planner/internal/waypoint"
)

const (
	// PlacementGrid is the ground-plane snap step for placed waypoints.
	PlacementGrid = 0.5
	// DefaultSpeed is given to placed waypoints.
	DefaultSpeed = 5
)

// Placement is the outcome of PlaceWaypoint: either a new waypoint or a
// return link on the selected drone.
type Placement struct {
	Waypoint     *waypoint.Waypoint `json:"waypoint,omitempty"`
	ReturnLinked bool               `json:"returnLinked"`
}

// resolveDrone maps "" to the selected drone and checks that the drone
// exists.
func (p *Planner) resolveDrone(droneID string) (string, error) {
	if droneID == "" {
		droneID = p.drones.Selected()
	}
	if droneID == "" {
		return "", waypoint.ErrNoDroneSelected
	}
	if _, ok := p.drones.Get(droneID); !ok {
		return "", fmt.Errorf("%w: %s", drone.ErrDroneNotFound, droneID)
	}
	return droneID, nil
}

// AddWaypoint appends an anchor to a drone's path and selects it. An
// empty droneID means the selected drone.
func (p *Planner) AddWaypoint(droneID string, in waypoint.Input) (waypoint.Waypoint, error) {
	p.mu.Lock()
	droneID, err := p.resolveDrone(droneID)
	if err != nil {
		p.mu.Unlock()
		return waypoint.Waypoint{}, err
	}
	w, err := p.graph.Add(droneID, in)
	if err != nil {
		p.mu.Unlock()
		return waypoint.Waypoint{}, err
	}
	p.selectedWaypoint = w.ID
	ch := p.changed(KindWaypointAdded, droneID, w.ID)
	p.mu.Unlock()

	p.notify(ch)
	return w, nil
}

// PlaceWaypoint handles a click on the ground plane at (x, z) for the
// selected drone. The return mode links the path back to its start
// instead of adding a waypoint. Otherwise the point is snapped to the
// placement grid when snapping is on and added at the given altitude.
// Placement is refused while a curve edit is open.
func (p *Planner) PlaceWaypoint(x, z, altitude float64, mode string) (Placement, error) {
	typ := waypoint.TypeWaypoint
	if mode != waypoint.ReturnRequest {
		var err error
		if typ, err = waypoint.ParseType(mode); err != nil {
			return Placement{}, err
		}
	}

	p.mu.Lock()
	if p.curves.Active() {
		p.mu.Unlock()
		return Placement{}, ErrCurveEditActive
	}

	if mode == waypoint.ReturnRequest {
		ch, linked, err := p.linkReturn("")
		p.mu.Unlock()
		if err != nil {
			return Placement{}, err
		}
		if linked {
			p.notify(ch)
		}
		return Placement{ReturnLinked: linked}, nil
	}

	droneID, err := p.resolveDrone("")
	if err != nil {
		p.mu.Unlock()
		return Placement{}, err
	}

	pos := geom.Vec3{X: x, Y: altitude, Z: z}
	if p.settings.SnapToGrid {
		pos = geom.SnapXZ(pos, PlacementGrid)
	}
	w, err := p.graph.Add(droneID, waypoint.Input{
		Name:     fmt.Sprintf("Waypoint %d", p.graph.Len()+1),
		Position: pos,
		Type:     typ,
		Altitude: altitude,
		Speed:    DefaultSpeed,
	})
	if err != nil {
		p.mu.Unlock()
		return Placement{}, err
	}
	p.selectedWaypoint = w.ID
	ch := p.changed(KindWaypointAdded, droneID, w.ID)
	p.mu.Unlock()

	p.notify(ch)
	return Placement{Waypoint: &w}, nil
}

// RemoveWaypoint deletes a waypoint and rebuilds its drone's path as a
// plain chain of renumbered anchors. It is refused while a curve edit is
// open.
func (p *Planner) RemoveWaypoint(id string) error {
	p.mu.Lock()
	if p.curves.Active() {
		p.mu.Unlock()
		return ErrCurveEditActive
	}
	res, err := p.graph.Remove(id)
	if err != nil {
		p.mu.Unlock()
		return err
	}
	if p.selectedWaypoint == id {
		p.selectedWaypoint = ""
	}
	ch := p.changed(KindWaypointRemoved, res.Removed.DroneID, id)
	p.mu.Unlock()

	p.log.Info("waypoint removed", "drone", res.Removed.DroneID, "index", res.Removed.Index, "emptied", res.Emptied)
	p.notify(ch)
	return nil
}

// UpdateWaypoint patches a waypoint's fields.
func (p *Planner) UpdateWaypoint(id string, u waypoint.Update) (waypoint.Waypoint, error) {
	p.mu.Lock()
	w, err := p.graph.Update(id, u)
	if err != nil {
		p.mu.Unlock()
		return waypoint.Waypoint{}, err
	}
	ch := p.changed(KindWaypointUpdated, w.DroneID, id)
	p.mu.Unlock()

	p.notify(ch)
	return w, nil
}

// Waypoint returns the waypoint with the given id.
func (p *Planner) Waypoint(id string) (waypoint.Waypoint, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.graph.Get(id)
}

// Waypoints returns a drone's waypoints in ascending index order.
func (p *Planner) Waypoints(droneID string) []waypoint.Waypoint {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.graph.Sorted(droneID)
}

// AllWaypoints returns every waypoint in stored order.
func (p *Planner) AllWaypoints() []waypoint.Waypoint {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.graph.All()
}

// Edges returns the directed edges of a drone's path.
func (p *Planner) Edges(droneID string) []waypoint.Edge {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.graph.Edges(droneID)
}

// ResolveConnections returns the indices adjacent to a waypoint in either
// direction.
func (p *Planner) ResolveConnections(id string) ([]float64, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	w, ok := p.graph.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", waypoint.ErrWaypointNotFound, id)
	}
	return p.graph.ResolveConnections(w), nil
}

// SelectedWaypoint returns the selected waypoint id, or "".
func (p *Planner) SelectedWaypoint() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.selectedWaypoint
}

// SelectWaypoint selects a waypoint; "" clears the selection.
func (p *Planner) SelectWaypoint(id string) error {
	p.mu.Lock()
	droneID := ""
	if id != "" {
		w, ok := p.graph.Get(id)
		if !ok {
			p.mu.Unlock()
			return fmt.Errorf("%w: %s", waypoint.ErrWaypointNotFound, id)
		}
		droneID = w.DroneID
	}
	p.selectedWaypoint = id
	ch := p.changed(KindWaypointSelected, droneID, id)
	p.mu.Unlock()

	p.notify(ch)
	return nil
}

// ClearAll removes every waypoint of every drone.
func (p *Planner) ClearAll() {
	p.mu.Lock()
	n := p.graph.Len()
	p.graph.ClearAll()
	p.curves.Cancel()
	p.selectedWaypoint = ""
	ch := p.changed(KindWaypointsCleared, "", "")
	p.mu.Unlock()

	p.log.Info("waypoints cleared", "count", n)
	p.notify(ch)
}

// ClearDrone removes one drone's waypoints and returns how many there were.
func (p *Planner) ClearDrone(droneID string) (int, error) {
	p.mu.Lock()
	if _, ok := p.drones.Get(droneID); !ok {
		p.mu.Unlock()
		return 0, fmt.Errorf("%w: %s", drone.ErrDroneNotFound, droneID)
	}
	n := p.graph.ClearDrone(droneID)
	p.selectedWaypoint = ""
	ch := p.changed(KindWaypointsCleared, droneID, "")
	p.mu.Unlock()

	p.notify(ch)
	return n, nil
}

// MoveWaypoints reassigns waypoints to another drone without touching
// their indices or connections.
func (p *Planner) MoveWaypoints(ids []string, targetDroneID string) (int, error) {
	p.mu.Lock()
	if _, ok := p.drones.Get(targetDroneID); !ok {
		p.mu.Unlock()
		return 0, fmt.Errorf("%w: %s", drone.ErrDroneNotFound, targetDroneID)
	}
	n := p.graph.MoveToDrone(ids, targetDroneID)
	ch := p.changed(KindWaypointsMoved, targetDroneID, "")
	p.mu.Unlock()

	p.notify(ch)
	return n, nil
}

// LinkReturn closes a drone's path by linking its last anchor back to the
// first. An empty droneID means the selected drone. It reports whether a
// link was added; an existing link is not an error.
func (p *Planner) LinkReturn(droneID string) (bool, error) {
	p.mu.Lock()
	ch, linked, err := p.linkReturn(droneID)
	p.mu.Unlock()
	if err != nil {
		return false, err
	}
	if linked {
		p.notify(ch)
	}
	return linked, nil
}

func (p *Planner) linkReturn(droneID string) (Change, bool, error) {
	droneID, err := p.resolveDrone(droneID)
	if err != nil {
		return Change{}, false, err
	}
	linked, err := p.graph.LinkReturn(droneID)
	if err != nil || !linked {
		return Change{}, false, err
	}
	return p.changed(KindReturnLinked, droneID, ""), true, nil
}

// StartCurve opens a curve edit between two connected waypoints.
func (p *Planner) StartCurve(startID, endID string) (curve.Session, error) {
	p.mu.Lock()
	s, err := p.curves.Start(startID, endID)
	if err != nil {
		p.mu.Unlock()
		return curve.Session{}, err
	}
	w, _ := p.graph.Get(startID)
	ch := p.changed(KindCurveStarted, w.DroneID, startID)
	p.mu.Unlock()

	p.notify(ch)
	return s, nil
}

// UpdateCurve replaces the control points of the open curve edit.
func (p *Planner) UpdateCurve(cps [2]geom.Vec3) error {
	p.mu.Lock()
	if err := p.curves.UpdateControlPoints(cps); err != nil {
		p.mu.Unlock()
		return err
	}
	ch := p.changed(KindCurveUpdated, "", p.curves.Session().StartWaypointID)
	p.mu.Unlock()

	p.notify(ch)
	return nil
}

// CancelCurve discards the open curve edit, reporting whether there was one.
func (p *Planner) CancelCurve() bool {
	p.mu.Lock()
	if !p.curves.Cancel() {
		p.mu.Unlock()
		return false
	}
	ch := p.changed(KindCurveCancelled, "", "")
	p.mu.Unlock()

	p.notify(ch)
	return true
}

// FinishCurve commits the open curve edit. If the session's endpoints no
// longer exist the edit is dropped and the result is not committed. A
// failed commit also ends the edit and is reported as a cancellation.
func (p *Planner) FinishCurve() (curve.Result, error) {
	p.mu.Lock()
	active := p.curves.Active()
	res, err := p.curves.Finish()
	if err != nil {
		ch := p.changed(KindCurveCancelled, "", "")
		p.mu.Unlock()

		p.log.Warn("curve commit failed", "error", err)
		p.notify(ch)
		return curve.Result{}, err
	}
	if !active {
		p.mu.Unlock()
		return res, nil
	}
	kind := KindCurveCommitted
	if !res.Committed {
		kind = KindCurveCancelled
	}
	ch := p.changed(kind, res.DroneID, "")
	p.mu.Unlock()

	if res.Committed {
		p.log.Info("curve committed", "drone", res.DroneID, "points", len(res.Points))
	}
	p.notify(ch)
	return res, nil
}

// CurveSession returns the state of the curve edit.
func (p *Planner) CurveSession() curve.Session {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.curves.Session()
}
