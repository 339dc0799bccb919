package planner

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/brunoga/deep"
	"github.com/google/uuid"

	"trajectory_planner/internal/drone"
	"trajectory_planner/internal/trajectory"
	"trajectory_planner/internal/waypoint"
)

// ErrNoWaypoints is returned when exporting a drone that has no waypoints.
var ErrNoWaypoints = errors.New("drone has no waypoints")

// Snapshot exports the session. A non-empty droneID limits the snapshot
// to that drone's waypoints.
func (p *Planner) Snapshot(droneID string) trajectory.Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	s := trajectory.Snapshot{
		Version:   trajectory.Version,
		Waypoints: p.graph.All(),
		Metadata:  trajectory.NewMetadata(p.now(), p.settings.GridSize, p.settings.SnapToGrid),
		Drones:    p.drones.List(),
	}
	if droneID != "" {
		s = s.ForDrone(droneID)
	}
	return s
}

// ExportJSON renders Snapshot(droneID) as indented JSON.
func (p *Planner) ExportJSON(droneID string) ([]byte, error) {
	return trajectory.Marshal(p.Snapshot(droneID))
}

// ImportOptions controls Import.
type ImportOptions struct {
	// DroneID, when set, puts every imported waypoint on that drone and
	// replaces only that drone's waypoints.
	DroneID string
}

// Import replaces the session's waypoints with those of s and applies its
// grid settings. Drones listed in s replace the registry; drones that
// waypoints refer to but that are not known are created. Waypoints
// without a drone go to the selected drone. On error nothing changes.
func (p *Planner) Import(s trajectory.Snapshot, opts ImportOptions) error {
	// The snapshot is normalised in place below.
	s = deep.MustCopy(s)

	for i, w := range s.Waypoints {
		if !w.Type.Valid() {
			return fmt.Errorf("%w: waypoint %d has type %q", trajectory.ErrMalformedSnapshot, i+1, w.Type)
		}
		if w.ID == "" {
			s.Waypoints[i].ID = "waypoint-" + uuid.NewString()
		}
		if w.Connections == nil {
			s.Waypoints[i].Connections = []float64{}
		}
	}

	p.mu.Lock()

	if opts.DroneID != "" {
		if _, ok := p.drones.Get(opts.DroneID); !ok {
			p.mu.Unlock()
			return fmt.Errorf("%w: %s", drone.ErrDroneNotFound, opts.DroneID)
		}
		s.AssignDrone(opts.DroneID)
		// Ids already used by another drone's waypoints are reissued.
		for i, w := range s.Waypoints {
			if held, ok := p.graph.Get(w.ID); ok && held.DroneID != opts.DroneID {
				s.Waypoints[i].ID = "waypoint-" + uuid.NewString()
			}
		}
		p.graph.Replace(opts.DroneID, s.Waypoints)
	} else {
		if len(s.Drones) > 0 {
			if err := p.drones.Restore(s.Drones); err != nil {
				p.mu.Unlock()
				return err
			}
		}
		fallback := p.drones.Selected()
		if fallback == "" {
			fallback = p.drones.List()[0].ID
		}
		for i := range s.Waypoints {
			if s.Waypoints[i].DroneID == "" {
				s.Waypoints[i].DroneID = fallback
			}
			p.drones.Ensure(s.Waypoints[i].DroneID)
		}
		if err := p.graph.Load(s.Waypoints); err != nil {
			p.mu.Unlock()
			return err
		}
	}

	if g := s.Metadata.GridSize; g != nil && *g > 0 {
		p.settings.GridSize = *g
	}
	if snap := s.Metadata.SnapToGrid; snap != nil {
		p.settings.SnapToGrid = *snap
	}
	p.curves.Cancel()
	p.selectedWaypoint = ""
	ch := p.changed(KindImported, opts.DroneID, "")
	p.mu.Unlock()

	p.log.Info("snapshot imported", "waypoints", len(s.Waypoints), "drone", opts.DroneID)
	p.notify(ch)
	return nil
}

// ImportJSON parses data and imports it.
func (p *Planner) ImportJSON(data []byte, opts ImportOptions) error {
	s, err := trajectory.Parse(data)
	if err != nil {
		return err
	}
	return p.Import(s, opts)
}

// WriteCSV writes one drone's coordinate file.
func (p *Planner) WriteCSV(w io.Writer, droneID string) error {
	p.mu.RLock()
	if _, ok := p.drones.Get(droneID); !ok {
		p.mu.RUnlock()
		return fmt.Errorf("%w: %s", drone.ErrDroneNotFound, droneID)
	}
	wps := p.graph.Sorted(droneID)
	p.mu.RUnlock()

	if len(wps) == 0 {
		return fmt.Errorf("%w: %s", ErrNoWaypoints, droneID)
	}
	return trajectory.WriteCSV(w, wps)
}

// CSVFile is one drone's coordinate export.
type CSVFile struct {
	DroneID   string
	Name      string
	Waypoints []waypoint.Waypoint
}

// CSVFiles returns the coordinate exports of every visible drone that has
// waypoints, in drone creation order. Drone names need not be unique; a
// file name already used, ignoring case, gets the drone id appended.
func (p *Planner) CSVFiles() []CSVFile {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var files []CSVFile
	used := make(map[string]bool)
	for _, d := range p.drones.List() {
		if !d.IsVisible {
			continue
		}
		wps := p.graph.Sorted(d.ID)
		if len(wps) == 0 {
			continue
		}
		name := trajectory.CSVFileName(d.Name)
		if used[strings.ToLower(name)] {
			name = trajectory.CSVFileName(d.Name + " (" + d.ID + ")")
		}
		used[strings.ToLower(name)] = true
		files = append(files, CSVFile{
			DroneID:   d.ID,
			Name:      name,
			Waypoints: wps,
		})
	}
	return files
}
