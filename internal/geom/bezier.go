package geom

// CubicBezier is a cubic Bézier curve defined by its four-point control hull.
type CubicBezier struct {
	P0, P1, P2, P3 Vec3
}

// At evaluates the curve at parameter t in [0,1] using the Bernstein form.
func (c CubicBezier) At(t float64) Vec3 {
	u := 1 - t
	b0 := u * u * u
	b1 := 3 * u * u * t
	b2 := 3 * u * t * t
	b3 := t * t * t
	return Vec3{
		X: b0*c.P0.X + b1*c.P1.X + b2*c.P2.X + b3*c.P3.X,
		Y: b0*c.P0.Y + b1*c.P1.Y + b2*c.P2.Y + b3*c.P3.Y,
		Z: b0*c.P0.Z + b1*c.P1.Z + b2*c.P2.Z + b3*c.P3.Z,
	}
}

// Sample returns n points evenly spaced in t, including both endpoints.
// The first and last samples are exactly P0 and P3. n < 2 is treated as 2.
func (c CubicBezier) Sample(n int) []Vec3 {
	if n < 2 {
		n = 2
	}
	pts := make([]Vec3, n)
	pts[0] = c.P0
	pts[n-1] = c.P3
	for i := 1; i < n-1; i++ {
		pts[i] = c.At(float64(i) / float64(n-1))
	}
	return pts
}
