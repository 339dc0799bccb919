package curve

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"trajectory_planner/internal/geom"
	"trajectory_planner/internal/waypoint"
)

const (
	// Control points sit 1 unit above the chord, 30% in from each end.
	controlNear = 0.7
	controlFar  = 0.3
	controlLift = 1.0

	// Samples per unit of chord length, and the minimum total sample count.
	samplesPerUnit = 2
	minSamples     = 4

	defaultAltitude = 3
	defaultSpeed    = 5

	minKeyDigits = 2
	maxKeyDigits = 9
)

// Engine drives curve edit sessions against a waypoint graph. Like the
// graph itself it is not safe for concurrent use.
type Engine struct {
	graph   *waypoint.Graph
	session Session
}

// NewEngine returns an idle engine operating on g.
func NewEngine(g *waypoint.Graph) *Engine {
	return &Engine{graph: g}
}

// Start opens a session between two waypoints of the same drone that are
// connected in either direction. A session already in progress is
// replaced. On error the current session, if any, is left as it was.
func (e *Engine) Start(startID, endID string) (Session, error) {
	s, ok := e.graph.Get(startID)
	if !ok {
		return Session{}, fmt.Errorf("%w: %s", waypoint.ErrWaypointNotFound, startID)
	}
	end, ok := e.graph.Get(endID)
	if !ok {
		return Session{}, fmt.Errorf("%w: %s", waypoint.ErrWaypointNotFound, endID)
	}
	if !connected(s, end) {
		return Session{}, fmt.Errorf("%w: %s and %s", ErrNotConnected, s.Label(), end.Label())
	}

	e.session = Session{
		Active:          true,
		StartWaypointID: startID,
		EndWaypointID:   endID,
		ControlPoints:   initialControlPoints(s.Position, end.Position),
	}
	return e.session, nil
}

// UpdateControlPoints replaces both control points of the active session.
func (e *Engine) UpdateControlPoints(cps [2]geom.Vec3) error {
	if !e.session.Active {
		return ErrNoCurveEdit
	}
	e.session.ControlPoints = cps
	return nil
}

// Cancel discards the session, reporting whether one was active.
func (e *Engine) Cancel() bool {
	was := e.session.Active
	e.session = Session{}
	return was
}

// Active reports whether a session is in progress.
func (e *Engine) Active() bool {
	return e.session.Active
}

// Session returns a copy of the current session.
func (e *Engine) Session() Session {
	return e.session
}

// Finish commits the active session. The curve from start to end is
// sampled, the first and last samples are dropped, and the remaining
// points are spliced into the path between the two endpoints, replacing
// the direct edge.
//
// Without an active session, or when an endpoint no longer exists or has
// moved to another drone, Finish clears the session and returns a result
// with Committed unset and no error.
func (e *Engine) Finish() (Result, error) {
	sess := e.session
	e.session = Session{}
	if !sess.Active {
		return Result{}, nil
	}

	s, ok := e.graph.Get(sess.StartWaypointID)
	if !ok {
		return Result{}, nil
	}
	end, ok := e.graph.Get(sess.EndWaypointID)
	if !ok || end.DroneID != s.DroneID {
		return Result{}, nil
	}

	curve := geom.CubicBezier{
		P0: s.Position,
		P1: sess.ControlPoints[0],
		P2: sess.ControlPoints[1],
		P3: end.Position,
	}
	samples := curve.Sample(SampleCount(s.Position.Distance(end.Position)))
	interior := samples[1 : len(samples)-1]

	own := e.graph.ByDrone(s.DroneID)
	taken := make(map[float64]bool, len(own))
	for _, w := range own {
		taken[w.Index] = true
	}

	keys, err := allocateKeys(math.Min(s.Index, end.Index), len(interior), taken)
	if err != nil {
		return Result{}, err
	}

	altitude := s.Altitude
	if altitude == 0 {
		altitude = defaultAltitude
	}
	speed := s.Speed
	if speed == 0 {
		speed = defaultSpeed
	}

	points := make([]waypoint.Waypoint, len(interior))
	for i, pos := range interior {
		next := end.Index
		if i < len(interior)-1 {
			next = keys[i+1].index
		}
		points[i] = waypoint.Waypoint{
			ID:           "waypoint-" + uuid.NewString(),
			DroneID:      s.DroneID,
			Index:        keys[i].index,
			DisplayIndex: keys[i].label,
			Name:         fmt.Sprintf("Curve Point %d", i+1),
			Position:     pos,
			Type:         waypoint.TypeWaypoint,
			Altitude:     altitude,
			Speed:        speed,
			Connections:  []float64{next},
		}
	}

	for i := range own {
		w := &own[i]
		switch w.ID {
		case s.ID:
			w.Connections = append(without(w.Connections, end.Index), points[0].Index)
		case end.ID:
			w.Connections = without(w.Connections, s.Index)
		}
	}

	e.graph.Replace(s.DroneID, append(own, points...))

	return Result{Committed: true, DroneID: s.DroneID, Points: points}, nil
}

// SampleCount returns the total number of curve samples, endpoints
// included, for a chord of the given length.
func SampleCount(chord float64) int {
	return max(minSamples, int(math.Round(chord*samplesPerUnit)))
}

func initialControlPoints(s, e geom.Vec3) [2]geom.Vec3 {
	lift := geom.Up.Scale(controlLift)
	return [2]geom.Vec3{
		geom.Blend(s, controlNear, e, controlFar).Add(lift),
		geom.Blend(s, controlFar, e, controlNear).Add(lift),
	}
}

func connected(a, b waypoint.Waypoint) bool {
	if a.ID == b.ID || a.DroneID != b.DroneID {
		return false
	}
	return a.ConnectedTo(b.Index) || b.ConnectedTo(a.Index)
}

func without(conns []float64, index float64) []float64 {
	return slices.DeleteFunc(slices.Clone(conns), func(c float64) bool { return c == index })
}

type key struct {
	index float64
	label string
}

// allocateKeys returns n increasing fractional indices in the gap above
// lo: greater than lo, below the next taken index and below the next
// integer. Keys use the fewest decimal digits, two or more, that fit the
// gap, and are labelled "base.frac" with frac zero-padded to that width.
func allocateKeys(lo float64, n int, taken map[float64]bool) ([]key, error) {
	base := math.Floor(lo)
	hi := base + 1
	for idx := range taken {
		if idx > lo && idx < hi {
			hi = idx
		}
	}

	b := int64(base)
	scale := int64(1)
	for range minKeyDigits - 1 {
		scale *= 10
	}

	for digits := minKeyDigits; digits <= maxKeyDigits; digits++ {
		scale *= 10
		first, _ := decimalUnits(lo, digits)
		first++
		limit, cut := decimalUnits(hi, digits)
		if cut {
			limit++
		}
		if first+int64(n) > limit {
			continue
		}

		keys := make([]key, n)
		for i := range keys {
			u := first + int64(i)
			// Divide once so the key equals the decimal literal it prints as.
			keys[i] = key{
				index: float64(u) / float64(scale),
				label: fmt.Sprintf("%d.%0*d", b, digits, u-b*scale),
			}
		}
		return keys, nil
	}
	return nil, fmt.Errorf("%w %v", ErrKeySpaceExhausted, lo)
}

// decimalUnits returns v truncated to whole units of 10^-digits, and
// whether any nonzero digits were cut off. Indices are decimal keys, so
// the shortest decimal form of v is used rather than float arithmetic.
func decimalUnits(v float64, digits int) (int64, bool) {
	whole, frac, _ := strings.Cut(strconv.FormatFloat(v, 'f', -1, 64), ".")
	cut := false
	if len(frac) > digits {
		cut = strings.TrimRight(frac[digits:], "0") != ""
		frac = frac[:digits]
	}
	frac += strings.Repeat("0", digits-len(frac))
	u, _ := strconv.ParseInt(whole+frac, 10, 64)
	return u, cut
}
