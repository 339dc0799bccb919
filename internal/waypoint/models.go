package waypoint

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"trajectory_planner/internal/geom"
)

// Type is the role of a waypoint in the flight.
type Type string

const (
	TypeTakeoff  Type = "takeoff"
	TypeWaypoint Type = "waypoint"
	TypeHover    Type = "hover"
	TypeLanding  Type = "landing"
)

// ReturnRequest is the placement mode that asks for the path to loop back
// to its start. It is never stored as a waypoint type.
const ReturnRequest = "return"

// Valid reports whether t is one of the stored waypoint types.
func (t Type) Valid() bool {
	switch t {
	case TypeTakeoff, TypeWaypoint, TypeHover, TypeLanding:
		return true
	}
	return false
}

// ParseType converts a type name to a Type. The empty string maps to
// TypeWaypoint.
func ParseType(s string) (Type, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return TypeWaypoint, nil
	}
	if t := Type(s); t.Valid() {
		return t, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidType, s)
}

// Waypoint is a single point of a drone's trajectory.
//
// Index is the ordering and addressing key within the drone: integers are
// anchors placed by the operator, fractional values are curve points
// spliced between two anchors. Connections hold the indices of adjacent
// waypoints of the same drone.
type Waypoint struct {
	ID           string    `json:"id" msgpack:"id"`
	DroneID      string    `json:"droneId" msgpack:"droneId"`
	Index        float64   `json:"index" msgpack:"index"`
	Name         string    `json:"name" msgpack:"name"`
	Position     geom.Vec3 `json:"position" msgpack:"position"`
	Type         Type      `json:"type" msgpack:"type"`
	Altitude     float64   `json:"altitude" msgpack:"altitude"`
	Speed        float64   `json:"speed" msgpack:"speed"`
	Heading      *float64  `json:"heading,omitempty" msgpack:"heading,omitempty"`
	Connections  []float64 `json:"connections" msgpack:"connections"`
	DisplayIndex string    `json:"displayIndex,omitempty" msgpack:"displayIndex,omitempty"`
}

// IsAnchor reports whether the waypoint was placed directly by the
// operator, i.e. its index has no fractional part.
func (w *Waypoint) IsAnchor() bool {
	return IsAnchorIndex(w.Index)
}

// ConnectedTo reports whether w stores an edge to the given index.
func (w *Waypoint) ConnectedTo(index float64) bool {
	return slices.Contains(w.Connections, index)
}

// Label returns the display index if set, otherwise the numeric index.
func (w *Waypoint) Label() string {
	if w.DisplayIndex != "" {
		return w.DisplayIndex
	}
	return FormatIndex(w.Index)
}

// Clone returns a copy that shares no memory with w.
func (w Waypoint) Clone() Waypoint {
	w.Connections = slices.Clone(w.Connections)
	if w.Connections == nil {
		w.Connections = []float64{}
	}
	if w.Heading != nil {
		h := *w.Heading
		w.Heading = &h
	}
	return w
}

// IsAnchorIndex reports whether index is an integer.
func IsAnchorIndex(index float64) bool {
	return index == math.Trunc(index)
}

// FormatIndex renders an index without trailing zeros.
func FormatIndex(index float64) string {
	return strconv.FormatFloat(index, 'f', -1, 64)
}

// Input carries the operator-supplied fields of a new anchor. Identity,
// index and connections are assigned by the graph.
type Input struct {
	Name     string    `json:"name"`
	Position geom.Vec3 `json:"position"`
	Type     Type      `json:"type"`
	Altitude float64   `json:"altitude"`
	Speed    float64   `json:"speed"`
	Heading  *float64  `json:"heading,omitempty"`
}

// Update lists the waypoint fields that can be patched. Nil fields are
// left alone. Changing Index or Connections is the caller's
// responsibility to keep consistent.
type Update struct {
	Name         *string    `json:"name,omitempty"`
	Position     *geom.Vec3 `json:"position,omitempty"`
	Type         *Type      `json:"type,omitempty"`
	Altitude     *float64   `json:"altitude,omitempty"`
	Speed        *float64   `json:"speed,omitempty"`
	Heading      *float64   `json:"heading,omitempty"`
	Index        *float64   `json:"index,omitempty"`
	Connections  *[]float64 `json:"connections,omitempty"`
	DisplayIndex *string    `json:"displayIndex,omitempty"`
}

func (u Update) apply(w *Waypoint) error {
	if u.Type != nil && !u.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidType, *u.Type)
	}

	if u.Name != nil {
		w.Name = *u.Name
	}
	if u.Position != nil {
		w.Position = *u.Position
	}
	if u.Type != nil {
		w.Type = *u.Type
	}
	if u.Altitude != nil {
		w.Altitude = *u.Altitude
	}
	if u.Speed != nil {
		w.Speed = *u.Speed
	}
	if u.Heading != nil {
		h := *u.Heading
		w.Heading = &h
	}
	if u.Index != nil {
		w.Index = *u.Index
	}
	if u.Connections != nil {
		w.Connections = slices.Clone(*u.Connections)
	}
	if u.DisplayIndex != nil {
		w.DisplayIndex = *u.DisplayIndex
	}
	return nil
}

// Edge is one directed arrow between two connected waypoints.
type Edge struct {
	From   float64 `json:"from"`
	To     float64 `json:"to"`
	FromID string  `json:"fromId"`
	ToID   string  `json:"toId"`
	Return bool    `json:"return"`
}
