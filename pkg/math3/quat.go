package math3

import "github.com/chewxy/math32"

// Quat represents a quaternion for 3D rotations.
// Components are stored as X, Y, Z, W where W is the scalar part.
type Quat struct {
	X, Y, Z, W float32
}

// QuatIdentity returns an identity quaternion (no rotation).
func QuatIdentity() Quat {
	return Quat{X: 0, Y: 0, Z: 0, W: 1}
}

// QuatFromAxisAngle creates a quaternion from axis-angle rotation.
// axis should be normalized, angle is in radians.
func QuatFromAxisAngle(axis Vec3, angle float32) Quat {
	halfAngle := angle / 2
	s := math32.Sin(halfAngle)
	return Quat{
		X: axis.X * s,
		Y: axis.Y * s,
		Z: axis.Z * s,
		W: math32.Cos(halfAngle),
	}
}

// ToAxisAngle returns the rotation as an angle in radians around a unit axis.
// The identity rotation reports a zero angle around the X axis.
func (q Quat) ToAxisAngle() (angle float32, axis Vec3) {
	sqLen := q.X*q.X + q.Y*q.Y + q.Z*q.Z
	if sqLen > 0 {
		w := q.W
		if w > 1 {
			w = 1
		} else if w < -1 {
			w = -1
		}
		angle = 2 * math32.Acos(w)
		invLen := 1 / math32.Sqrt(sqLen)
		axis = Vec3{q.X * invLen, q.Y * invLen, q.Z * invLen}
		return angle, axis
	}
	return 0, Vec3{X: 1}
}

// Normalize returns a normalized quaternion.
func (q Quat) Normalize() Quat {
	length := math32.Sqrt(q.X*q.X + q.Y*q.Y + q.Z*q.Z + q.W*q.W)
	if length < 0.0001 {
		return QuatIdentity()
	}
	invLen := 1.0 / length
	return Quat{
		X: q.X * invLen,
		Y: q.Y * invLen,
		Z: q.Z * invLen,
		W: q.W * invLen,
	}
}

// Dot returns the dot product of two quaternions.
func (q Quat) Dot(other Quat) float32 {
	return q.X*other.X + q.Y*other.Y + q.Z*other.Z + q.W*other.W
}

// Add returns the componentwise sum q + other.
func (q Quat) Add(other Quat) Quat {
	return Quat{q.X + other.X, q.Y + other.Y, q.Z + other.Z, q.W + other.W}
}

// Scale returns the componentwise product q * s.
func (q Quat) Scale(s float32) Quat {
	return Quat{q.X * s, q.Y * s, q.Z * s, q.W * s}
}

// Mul multiplies two quaternions (combines rotations).
func (q Quat) Mul(other Quat) Quat {
	return Quat{
		X: q.W*other.X + q.X*other.W + q.Y*other.Z - q.Z*other.Y,
		Y: q.W*other.Y - q.X*other.Z + q.Y*other.W + q.Z*other.X,
		Z: q.W*other.Z + q.X*other.Y - q.Y*other.X + q.Z*other.W,
		W: q.W*other.W - q.X*other.X - q.Y*other.Y - q.Z*other.Z,
	}
}

// Inverse returns the multiplicative inverse. For unit quaternions this is
// the conjugate. The zero quaternion inverts to itself.
func (q Quat) Inverse() Quat {
	norm := q.X*q.X + q.Y*q.Y + q.Z*q.Z + q.W*q.W
	if norm == 0 {
		return Quat{}
	}
	invNorm := 1 / norm
	return Quat{
		X: -q.X * invNorm,
		Y: -q.Y * invNorm,
		Z: -q.Z * invNorm,
		W: q.W * invNorm,
	}
}

// Rotate applies the rotation to a vector.
func (q Quat) Rotate(v Vec3) Vec3 {
	// nVidia SDK implementation: v' = v + 2w(q x v) + 2(q x (q x v))
	qv := Vec3{q.X, q.Y, q.Z}
	uv := qv.Cross(v)
	uuv := qv.Cross(uv)
	uv = uv.Scale(2 * q.W)
	uuv = uuv.Scale(2)
	return v.Add(uv).Add(uuv)
}

// Slerp performs spherical linear interpolation from q to other.
// t should be in range [0, 1]. When shortestPath is set the interpolation
// negates the far quaternion so the rotation takes the shorter arc.
func (q Quat) Slerp(other Quat, t float32, shortestPath bool) Quat {
	dot := q.Dot(other)
	if dot < 0 && shortestPath {
		other = Quat{X: -other.X, Y: -other.Y, Z: -other.Z, W: -other.W}
		dot = -dot
	}

	// If quaternions are very close, fall back to nlerp to avoid division
	// by a vanishing sine.
	if math32.Abs(dot) > 0.9995 {
		return Quat{
			X: q.X + t*(other.X-q.X),
			Y: q.Y + t*(other.Y-q.Y),
			Z: q.Z + t*(other.Z-q.Z),
			W: q.W + t*(other.W-q.W),
		}.Normalize()
	}

	if dot > 1 {
		dot = 1
	} else if dot < -1 {
		dot = -1
	}
	theta0 := math32.Acos(dot)
	theta := theta0 * t
	sinTheta := math32.Sin(theta)
	sinTheta0 := math32.Sin(theta0)

	s0 := math32.Cos(theta) - dot*sinTheta/sinTheta0
	s1 := sinTheta / sinTheta0

	return Quat{
		X: q.X*s0 + other.X*s1,
		Y: q.Y*s0 + other.Y*s1,
		Z: q.Z*s0 + other.Z*s1,
		W: q.W*s0 + other.W*s1,
	}
}

// Nlerp performs normalized linear interpolation from q to other. Cheaper
// than Slerp and commutative, at the cost of non-constant angular velocity.
func (q Quat) Nlerp(other Quat, t float32, shortestPath bool) Quat {
	if q.Dot(other) < 0 && shortestPath {
		other = Quat{X: -other.X, Y: -other.Y, Z: -other.Z, W: -other.W}
	}
	return Quat{
		X: q.X + t*(other.X-q.X),
		Y: q.Y + t*(other.Y-q.Y),
		Z: q.Z + t*(other.Z-q.Z),
		W: q.W + t*(other.W-q.W),
	}.Normalize()
}

// Log returns the quaternion logarithm. For a unit quaternion
// cos(A) + sin(A)*(x*i + y*j + z*k) the log is A*(x*i + y*j + z*k).
func (q Quat) Log() Quat {
	result := Quat{W: 0}
	if math32.Abs(q.W) < 1 {
		w := q.W
		if w > 1 {
			w = 1
		} else if w < -1 {
			w = -1
		}
		angle := math32.Acos(w)
		sin := math32.Sin(angle)
		if math32.Abs(sin) >= 1e-3 {
			coeff := angle / sin
			result.X = q.X * coeff
			result.Y = q.Y * coeff
			result.Z = q.Z * coeff
			return result
		}
	}
	result.X = q.X
	result.Y = q.Y
	result.Z = q.Z
	return result
}

// Exp returns the quaternion exponential, the inverse of Log for pure
// quaternions (w == 0).
func (q Quat) Exp() Quat {
	angle := math32.Sqrt(q.X*q.X + q.Y*q.Y + q.Z*q.Z)
	sin := math32.Sin(angle)
	result := Quat{W: math32.Cos(angle)}
	if math32.Abs(sin) >= 1e-3 {
		coeff := sin / angle
		result.X = q.X * coeff
		result.Y = q.Y * coeff
		result.Z = q.Z * coeff
		return result
	}
	result.X = q.X
	result.Y = q.Y
	result.Z = q.Z
	return result
}

// Squad performs spherical quadratic interpolation between p and q with
// inner control points a and b.
func Squad(t float32, p, a, b, q Quat, shortestPath bool) Quat {
	slerpT := 2 * t * (1 - t)
	slerpP := p.Slerp(q, t, shortestPath)
	slerpQ := a.Slerp(b, t, false)
	return slerpP.Slerp(slerpQ, slerpT, false)
}

// ApproxEqual reports whether the angular difference between the two
// rotations is within tolerance radians. A rotation and its negation
// describe the same orientation and compare equal.
func (q Quat) ApproxEqual(other Quat, tolerance float32) bool {
	dot := q.Dot(other)
	if dot > 1 {
		dot = 1
	} else if dot < -1 {
		dot = -1
	}
	angle := math32.Acos(dot)
	return math32.Abs(angle) <= tolerance ||
		math32.Abs(angle-math32.Pi) <= tolerance
}

// ToMat4 converts the quaternion to a 4x4 rotation matrix.
func (q Quat) ToMat4() Mat4 {
	// Normalize first
	q = q.Normalize()

	xx := q.X * q.X
	xy := q.X * q.Y
	xz := q.X * q.Z
	xw := q.X * q.W
	yy := q.Y * q.Y
	yz := q.Y * q.Z
	yw := q.Y * q.W
	zz := q.Z * q.Z
	zw := q.Z * q.W

	return Mat4{
		1 - 2*(yy+zz), 2 * (xy + zw), 2 * (xz - yw), 0,
		2 * (xy - zw), 1 - 2*(xx+zz), 2 * (yz + xw), 0,
		2 * (xz + yw), 2 * (yz - xw), 1 - 2*(xx+yy), 0,
		0, 0, 0, 1,
	}
}
