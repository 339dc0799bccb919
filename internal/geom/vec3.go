// Package geom provides the small amount of 3D vector math the planner needs.
//
// Scene convention: X and Z span the ground plane, Y is up.
package geom

import "math"

// Vec3 is a point or direction in scene space.
type Vec3 struct {
	X float64 `json:"x" msgpack:"x"`
	Y float64 `json:"y" msgpack:"y"`
	Z float64 `json:"z" msgpack:"z"`
}

// Up is the unit vector along the vertical axis.
var Up = Vec3{Y: 1}

func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z}
}

func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z}
}

func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{v.X * s, v.Y * s, v.Z * s}
}

func (v Vec3) Length() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Distance returns the Euclidean distance between v and o.
func (v Vec3) Distance(o Vec3) float64 {
	return v.Sub(o).Length()
}

// Lerp returns (1-t)*a + t*b.
func Lerp(t float64, a, b Vec3) Vec3 {
	return a.Scale(1 - t).Add(b.Scale(t))
}

// Blend returns wa*a + wb*b without requiring the weights to sum to one.
func Blend(a Vec3, wa float64, b Vec3, wb float64) Vec3 {
	return a.Scale(wa).Add(b.Scale(wb))
}

// SnapXZ rounds the ground-plane coordinates of v to the nearest multiple
// of step. Y is left alone. A non-positive step returns v unchanged.
func SnapXZ(v Vec3, step float64) Vec3 {
	if step <= 0 {
		return v
	}
	v.X = math.Round(v.X/step) * step
	v.Z = math.Round(v.Z/step) * step
	return v
}
