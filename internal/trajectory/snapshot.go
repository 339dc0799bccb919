// Package trajectory converts planner state to and from its external
// formats: the JSON snapshot, the compressed binary snapshot, per-drone
// CSV coordinate lists and the KML and PDF renderings.
package trajectory

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"trajectory_planner/internal/drone"
	"trajectory_planner/internal/geom"
	"trajectory_planner/internal/waypoint"
)

// Version is written to every snapshot.
const Version = "1.0"

// exportDateLayout matches the millisecond UTC timestamps of existing
// snapshot files.
const exportDateLayout = "2006-01-02T15:04:05.000Z07:00"

// ErrMalformedSnapshot is returned for input that cannot be imported.
var ErrMalformedSnapshot = errors.New("malformed trajectory snapshot")

// Metadata carries scene settings alongside the waypoints. Absent fields
// in an imported snapshot are left nil.
type Metadata struct {
	ExportDate string   `json:"exportDate,omitempty" msgpack:"exportDate,omitempty"`
	GridSize   *float64 `json:"gridSize,omitempty" msgpack:"gridSize,omitempty"`
	SnapToGrid *bool    `json:"snapToGrid,omitempty" msgpack:"snapToGrid,omitempty"`
}

// NewMetadata returns metadata stamped with the given export time.
func NewMetadata(at time.Time, gridSize float64, snapToGrid bool) Metadata {
	return Metadata{
		ExportDate: at.UTC().Format(exportDateLayout),
		GridSize:   &gridSize,
		SnapToGrid: &snapToGrid,
	}
}

// Snapshot is the round-trippable export of a planning session.
type Snapshot struct {
	Version   string              `json:"version" msgpack:"version"`
	Waypoints []waypoint.Waypoint `json:"waypoints" msgpack:"waypoints"`
	Metadata  Metadata            `json:"metadata" msgpack:"metadata"`
	// Drones is optional; files written by older tools carry waypoints only.
	Drones []drone.Drone `json:"drones,omitempty" msgpack:"drones,omitempty"`
}

// ForDrone returns a copy of s restricted to one drone's waypoints.
func (s Snapshot) ForDrone(droneID string) Snapshot {
	out := s
	out.Waypoints = nil
	for _, w := range s.Waypoints {
		if w.DroneID == droneID {
			out.Waypoints = append(out.Waypoints, w.Clone())
		}
	}
	out.Drones = nil
	for _, d := range s.Drones {
		if d.ID == droneID {
			out.Drones = append(out.Drones, d)
		}
	}
	return out
}

// AssignDrone moves every waypoint in s onto one drone.
func (s *Snapshot) AssignDrone(droneID string) {
	for i := range s.Waypoints {
		s.Waypoints[i].DroneID = droneID
	}
}

// Marshal renders s as indented JSON. An empty version is filled in.
func Marshal(s Snapshot) ([]byte, error) {
	if s.Version == "" {
		s.Version = Version
	}
	if s.Waypoints == nil {
		s.Waypoints = []waypoint.Waypoint{}
	}
	return json.MarshalIndent(s, "", "  ")
}

// importedWaypoint is the lenient wire shape accepted on import.
type importedWaypoint struct {
	ID           string     `json:"id"`
	DroneID      string     `json:"droneId"`
	Index        float64    `json:"index"`
	Name         string     `json:"name"`
	Position     *geom.Vec3 `json:"position"`
	Type         string     `json:"type"`
	Altitude     float64    `json:"altitude"`
	Speed        float64    `json:"speed"`
	Heading      *float64   `json:"heading"`
	Connections  []float64  `json:"connections"`
	DisplayIndex string     `json:"displayIndex"`
}

type importedSnapshot struct {
	Version   string              `json:"version"`
	Waypoints *[]importedWaypoint `json:"waypoints"`
	Metadata  *Metadata           `json:"metadata"`
	Drones    []drone.Drone       `json:"drones"`
}

// Parse decodes a JSON snapshot. A missing or zero index defaults to the
// waypoint's 1-based position in the file, missing connections to an
// empty list and a missing type to waypoint. Input without a waypoints
// array, a waypoint without a position, or a waypoint with an unknown
// type yields ErrMalformedSnapshot.
func Parse(data []byte) (Snapshot, error) {
	var in importedSnapshot
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&in); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrMalformedSnapshot, err)
	}
	if in.Waypoints == nil {
		return Snapshot{}, fmt.Errorf("%w: missing waypoints array", ErrMalformedSnapshot)
	}

	out := Snapshot{
		Version:   in.Version,
		Waypoints: make([]waypoint.Waypoint, 0, len(*in.Waypoints)),
		Drones:    in.Drones,
	}
	if out.Version == "" {
		out.Version = Version
	}
	if in.Metadata != nil {
		out.Metadata = *in.Metadata
	}

	for i, w := range *in.Waypoints {
		if w.Position == nil {
			return Snapshot{}, fmt.Errorf("%w: waypoint %d has no position", ErrMalformedSnapshot, i+1)
		}
		typ, err := waypoint.ParseType(w.Type)
		if err != nil {
			return Snapshot{}, fmt.Errorf("%w: waypoint %d: %v", ErrMalformedSnapshot, i+1, err)
		}

		idx := w.Index
		if idx == 0 {
			idx = float64(i + 1)
		}
		conns := w.Connections
		if conns == nil {
			conns = []float64{}
		}

		out.Waypoints = append(out.Waypoints, waypoint.Waypoint{
			ID:           w.ID,
			DroneID:      w.DroneID,
			Index:        idx,
			Name:         w.Name,
			Position:     *w.Position,
			Type:         typ,
			Altitude:     w.Altitude,
			Speed:        w.Speed,
			Heading:      w.Heading,
			Connections:  conns,
			DisplayIndex: w.DisplayIndex,
		})
	}

	return out, nil
}
