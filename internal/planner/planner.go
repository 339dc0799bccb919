// Package planner ties the drone registry, the waypoint graph and the
// curve engine into one editing session. Every exported method is safe
// for concurrent use and applies its change atomically; change callbacks
// run after the lock is released.
package planner

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"trajectory_planner/internal/curve"
	"trajectory_planner/internal/drone"
	"trajectory_planner/internal/log"
	"trajectory_planner/internal/waypoint"
)

// ErrCurveEditActive is returned for edits that are refused while a curve
// edit session is open.
var ErrCurveEditActive = errors.New("curve edit in progress")

// Kind identifies what changed.
type Kind string

const (
	KindDroneAdded       Kind = "drone_added"
	KindDroneRemoved     Kind = "drone_removed"
	KindDroneUpdated     Kind = "drone_updated"
	KindDroneSelected    Kind = "drone_selected"
	KindWaypointAdded    Kind = "waypoint_added"
	KindWaypointRemoved  Kind = "waypoint_removed"
	KindWaypointUpdated  Kind = "waypoint_updated"
	KindWaypointSelected Kind = "waypoint_selected"
	KindWaypointsCleared Kind = "waypoints_cleared"
	KindWaypointsMoved   Kind = "waypoints_moved"
	KindReturnLinked     Kind = "return_linked"
	KindCurveStarted     Kind = "curve_started"
	KindCurveUpdated     Kind = "curve_updated"
	KindCurveCancelled   Kind = "curve_cancelled"
	KindCurveCommitted   Kind = "curve_committed"
	KindImported         Kind = "imported"
	KindSettingsChanged  Kind = "settings_changed"
)

// Change is passed to OnChange callbacks after a mutation.
type Change struct {
	Kind       Kind
	DroneID    string
	WaypointID string
	Revision   uint64
	At         time.Time
}

// Settings are the scene settings that travel with a snapshot.
type Settings struct {
	GridSize          float64 `json:"gridSize"`
	SnapToGrid        bool    `json:"snapToGrid"`
	GridEnabled       bool    `json:"gridEnabled"`
	ShowCurveControls bool    `json:"showCurveControls"`
}

// DefaultSettings returns the settings of a fresh session.
func DefaultSettings() Settings {
	return Settings{
		GridSize:          1,
		SnapToGrid:        true,
		GridEnabled:       true,
		ShowCurveControls: true,
	}
}

// SettingsUpdate patches Settings; nil fields are left alone.
type SettingsUpdate struct {
	GridSize          *float64 `json:"gridSize,omitempty"`
	SnapToGrid        *bool    `json:"snapToGrid,omitempty"`
	GridEnabled       *bool    `json:"gridEnabled,omitempty"`
	ShowCurveControls *bool    `json:"showCurveControls,omitempty"`
}

// Planner is one trajectory editing session.
type Planner struct {
	mu sync.RWMutex

	drones *drone.Registry
	graph  *waypoint.Graph
	curves *curve.Engine

	settings         Settings
	selectedWaypoint string
	revision         uint64

	onChange []func(Change)
	log      *log.Logger
	now      func() time.Time
}

// New returns a session with the default drone selected and no waypoints.
// lg may be nil.
func New(lg *log.Logger) *Planner {
	g := waypoint.NewGraph()
	return &Planner{
		drones:   drone.NewRegistry(),
		graph:    g,
		curves:   curve.NewEngine(g),
		settings: DefaultSettings(),
		log:      lg,
		now:      time.Now,
	}
}

// OnChange registers a callback run after every mutation.
func (p *Planner) OnChange(fn func(Change)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onChange = append(p.onChange, fn)
}

// Revision increases by one with every mutation.
func (p *Planner) Revision() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.revision
}

// changed records a mutation. Callers hold the write lock and pass the
// result to notify once they have released it.
func (p *Planner) changed(kind Kind, droneID, waypointID string) Change {
	p.revision++
	return Change{
		Kind:       kind,
		DroneID:    droneID,
		WaypointID: waypointID,
		Revision:   p.revision,
		At:         p.now(),
	}
}

func (p *Planner) notify(changes ...Change) {
	p.mu.RLock()
	fns := p.onChange
	p.mu.RUnlock()

	for _, ch := range changes {
		p.log.Debug("planner change",
			"kind", ch.Kind, "drone", ch.DroneID, "waypoint", ch.WaypointID, "revision", ch.Revision)
		for _, fn := range fns {
			fn(ch)
		}
	}
}

// Settings returns the current scene settings.
func (p *Planner) Settings() Settings {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.settings
}

// UpdateSettings applies u. A non-positive grid size is rejected.
func (p *Planner) UpdateSettings(u SettingsUpdate) (Settings, error) {
	if u.GridSize != nil && *u.GridSize <= 0 {
		return Settings{}, fmt.Errorf("grid size must be positive, got %v", *u.GridSize)
	}

	p.mu.Lock()
	if u.GridSize != nil {
		p.settings.GridSize = *u.GridSize
	}
	if u.SnapToGrid != nil {
		p.settings.SnapToGrid = *u.SnapToGrid
	}
	if u.GridEnabled != nil {
		p.settings.GridEnabled = *u.GridEnabled
	}
	if u.ShowCurveControls != nil {
		p.settings.ShowCurveControls = *u.ShowCurveControls
	}
	s := p.settings
	ch := p.changed(KindSettingsChanged, "", "")
	p.mu.Unlock()

	p.notify(ch)
	return s, nil
}

// Drones lists the drones in creation order.
func (p *Planner) Drones() []drone.Drone {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.drones.List()
}

// Drone returns the drone with the given id.
func (p *Planner) Drone(id string) (drone.Drone, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.drones.Get(id)
}

// SelectedDrone returns the selected drone id, or "".
func (p *Planner) SelectedDrone() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.drones.Selected()
}

// AddDrone creates a drone and selects it. Empty name and color take the
// registry defaults.
func (p *Planner) AddDrone(name, color string) drone.Drone {
	p.mu.Lock()
	d := p.drones.Add(name, color)
	p.selectedWaypoint = ""
	ch := p.changed(KindDroneAdded, d.ID, "")
	p.mu.Unlock()

	p.log.Info("drone added", "drone", d.ID, "name", d.Name)
	p.notify(ch)
	return d
}

// RemoveDrone deletes a drone. With cascade set its waypoints are deleted
// too; otherwise they are left referring to the removed id.
func (p *Planner) RemoveDrone(id string, cascade bool) error {
	p.mu.Lock()
	if err := p.drones.Remove(id); err != nil {
		p.mu.Unlock()
		return err
	}
	removed := 0
	if cascade {
		removed = p.graph.ClearDrone(id)
		if _, ok := p.graph.Get(p.selectedWaypoint); !ok {
			p.selectedWaypoint = ""
		}
	}
	ch := p.changed(KindDroneRemoved, id, "")
	p.mu.Unlock()

	p.log.Info("drone removed", "drone", id, "cascade", cascade, "waypoints", removed)
	p.notify(ch)
	return nil
}

// UpdateDrone patches a drone's name, color or visibility.
func (p *Planner) UpdateDrone(id string, u drone.Update) (drone.Drone, error) {
	p.mu.Lock()
	d, err := p.drones.Update(id, u)
	if err != nil {
		p.mu.Unlock()
		return drone.Drone{}, err
	}
	ch := p.changed(KindDroneUpdated, id, "")
	p.mu.Unlock()

	p.notify(ch)
	return d, nil
}

// ToggleDroneVisibility flips a drone's visibility flag.
func (p *Planner) ToggleDroneVisibility(id string) (drone.Drone, error) {
	p.mu.Lock()
	d, err := p.drones.ToggleVisibility(id)
	if err != nil {
		p.mu.Unlock()
		return drone.Drone{}, err
	}
	ch := p.changed(KindDroneUpdated, id, "")
	p.mu.Unlock()

	p.notify(ch)
	return d, nil
}

// SelectDrone changes the drone selection and clears the waypoint
// selection. An empty id deselects.
func (p *Planner) SelectDrone(id string) error {
	p.mu.Lock()
	if err := p.drones.Select(id); err != nil {
		p.mu.Unlock()
		return err
	}
	p.selectedWaypoint = ""
	ch := p.changed(KindDroneSelected, id, "")
	p.mu.Unlock()

	p.notify(ch)
	return nil
}
