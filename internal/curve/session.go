// Package curve implements curved sub-path editing: a short-lived edit
// session between two connected waypoints that, when committed, splices
// sampled Bézier points into the drone's path with fractional indices.
package curve

import (
	"errors"

	"trajectory_planner/internal/geom"
	"trajectory_planner/internal/waypoint"
)

var (
	ErrNotConnected = errors.New("waypoints are not connected")
	ErrNoCurveEdit  = errors.New("no curve edit in progress")
	// ErrKeySpaceExhausted is returned when no fractional index width can
	// fit the interior points between the lower endpoint and the next index.
	ErrKeySpaceExhausted = errors.New("no free fractional indices after")
)

// Session is the state of an in-progress curve edit.
type Session struct {
	Active          bool         `json:"active"`
	StartWaypointID string       `json:"startWaypointId,omitempty"`
	EndWaypointID   string       `json:"endWaypointId,omitempty"`
	ControlPoints   [2]geom.Vec3 `json:"controlPoints"`
}

// Result describes the outcome of Finish.
type Result struct {
	Committed bool   `json:"committed"`
	DroneID   string `json:"droneId,omitempty"`
	// Points are the spliced curve points in index order.
	Points []waypoint.Waypoint `json:"points,omitempty"`
}
