// Package math3 provides float32 math types for animation and skeletal work.
package math3

import "github.com/chewxy/math32"

// Vec3 is a 3D vector.
type Vec3 struct {
	X, Y, Z float32
}

// UnitScale returns the unit scale vector (1, 1, 1).
func UnitScale() Vec3 {
	return Vec3{1, 1, 1}
}

// Add returns v + other.
func (v Vec3) Add(other Vec3) Vec3 {
	return Vec3{v.X + other.X, v.Y + other.Y, v.Z + other.Z}
}

// Sub returns v - other.
func (v Vec3) Sub(other Vec3) Vec3 {
	return Vec3{v.X - other.X, v.Y - other.Y, v.Z - other.Z}
}

// Scale returns v * scalar.
func (v Vec3) Scale(s float32) Vec3 {
	return Vec3{v.X * s, v.Y * s, v.Z * s}
}

// Mul returns the componentwise product v * other.
// Scales combine as equivalent axes, no shearing.
func (v Vec3) Mul(other Vec3) Vec3 {
	return Vec3{v.X * other.X, v.Y * other.Y, v.Z * other.Z}
}

// Div returns the componentwise quotient v / other.
func (v Vec3) Div(other Vec3) Vec3 {
	return Vec3{v.X / other.X, v.Y / other.Y, v.Z / other.Z}
}

// Dot returns the dot product.
func (v Vec3) Dot(other Vec3) float32 {
	return v.X*other.X + v.Y*other.Y + v.Z*other.Z
}

// Cross returns the cross product.
func (v Vec3) Cross(other Vec3) Vec3 {
	return Vec3{
		v.Y*other.Z - v.Z*other.Y,
		v.Z*other.X - v.X*other.Z,
		v.X*other.Y - v.Y*other.X,
	}
}

// Length returns the magnitude.
func (v Vec3) Length() float32 {
	return math32.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Normalize returns a unit vector.
func (v Vec3) Normalize() Vec3 {
	l := v.Length()
	if l == 0 {
		return Vec3{}
	}
	return Vec3{v.X / l, v.Y / l, v.Z / l}
}

// Distance returns the distance to another point.
func (v Vec3) Distance(other Vec3) float32 {
	return v.Sub(other).Length()
}

// Lerp returns the linear interpolation v + t*(other-v).
func (v Vec3) Lerp(other Vec3, t float32) Vec3 {
	return Vec3{
		v.X + t*(other.X-v.X),
		v.Y + t*(other.Y-v.Y),
		v.Z + t*(other.Z-v.Z),
	}
}

// ApproxEqual reports whether each component of v is within tolerance of other.
func (v Vec3) ApproxEqual(other Vec3, tolerance float32) bool {
	return math32.Abs(v.X-other.X) <= tolerance &&
		math32.Abs(v.Y-other.Y) <= tolerance &&
		math32.Abs(v.Z-other.Z) <= tolerance
}
