package math3

import "github.com/chewxy/math32"

// Mat4 is a 4x4 matrix in column-major order (OpenGL compatible).
// Layout: [m0 m4 m8  m12]
//
//	[m1 m5 m9  m13]
//	[m2 m6 m10 m14]
//	[m3 m7 m11 m15]
type Mat4 [16]float32

// Identity returns an identity matrix.
func Identity() Mat4 {
	return Mat4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// Translate returns a translation matrix.
func Translate(x, y, z float32) Mat4 {
	return Mat4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		x, y, z, 1,
	}
}

// Scale returns a scale matrix.
func Scale(x, y, z float32) Mat4 {
	return Mat4{
		x, 0, 0, 0,
		0, y, 0, 0,
		0, 0, z, 0,
		0, 0, 0, 1,
	}
}

// RotateX returns a rotation matrix around the X axis.
// angle is in radians.
func RotateX(angle float32) Mat4 {
	c := math32.Cos(angle)
	s := math32.Sin(angle)

	return Mat4{
		1, 0, 0, 0,
		0, c, s, 0,
		0, -s, c, 0,
		0, 0, 0, 1,
	}
}

// RotateY returns a rotation matrix around the Y axis.
// angle is in radians.
func RotateY(angle float32) Mat4 {
	c := math32.Cos(angle)
	s := math32.Sin(angle)

	return Mat4{
		c, 0, -s, 0,
		0, 1, 0, 0,
		s, 0, c, 0,
		0, 0, 0, 1,
	}
}

// RotateZ returns a rotation matrix around the Z axis.
// angle is in radians.
func RotateZ(angle float32) Mat4 {
	c := math32.Cos(angle)
	s := math32.Sin(angle)

	return Mat4{
		c, s, 0, 0,
		-s, c, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// TRS composes a transform matrix from translation, rotation and scale,
// applied in scale, rotate, translate order.
func TRS(translate Vec3, rotate Quat, scale Vec3) Mat4 {
	r := rotate.ToMat4()
	return Mat4{
		r[0] * scale.X, r[1] * scale.X, r[2] * scale.X, 0,
		r[4] * scale.Y, r[5] * scale.Y, r[6] * scale.Y, 0,
		r[8] * scale.Z, r[9] * scale.Z, r[10] * scale.Z, 0,
		translate.X, translate.Y, translate.Z, 1,
	}
}

// Mul multiplies this matrix by another (m * other).
func (m Mat4) Mul(other Mat4) Mat4 {
	var result Mat4
	for col := 0; col < 4; col++ {
		for row := 0; row < 4; row++ {
			result[col*4+row] =
				m[0*4+row]*other[col*4+0] +
					m[1*4+row]*other[col*4+1] +
					m[2*4+row]*other[col*4+2] +
					m[3*4+row]*other[col*4+3]
		}
	}
	return result
}

// TransformPoint transforms a 3D point by this matrix (assumes w=1).
func (m Mat4) TransformPoint(v Vec3) Vec3 {
	x := m[0]*v.X + m[4]*v.Y + m[8]*v.Z + m[12]
	y := m[1]*v.X + m[5]*v.Y + m[9]*v.Z + m[13]
	z := m[2]*v.X + m[6]*v.Y + m[10]*v.Z + m[14]
	w := m[3]*v.X + m[7]*v.Y + m[11]*v.Z + m[15]
	if w != 0 && w != 1 {
		return Vec3{x / w, y / w, z / w}
	}
	return Vec3{x, y, z}
}

// TransformDirection transforms a direction vector (ignores translation).
func (m Mat4) TransformDirection(v Vec3) Vec3 {
	return Vec3{
		m[0]*v.X + m[4]*v.Y + m[8]*v.Z,
		m[1]*v.X + m[5]*v.Y + m[9]*v.Z,
		m[2]*v.X + m[6]*v.Y + m[10]*v.Z,
	}
}

// AffineInverse returns the inverse of an affine transform (rotation, scale
// and translation only, bottom row 0 0 0 1). Returns identity if the upper
// 3x3 block is singular.
func (m Mat4) AffineInverse() Mat4 {
	// Upper 3x3 block, a{row}{col}.
	a00, a01, a02 := m[0], m[4], m[8]
	a10, a11, a12 := m[1], m[5], m[9]
	a20, a21, a22 := m[2], m[6], m[10]

	c00 := a11*a22 - a12*a21
	c01 := a12*a20 - a10*a22
	c02 := a10*a21 - a11*a20

	det := a00*c00 + a01*c01 + a02*c02
	if det == 0 {
		return Identity()
	}
	invDet := 1 / det

	b00 := c00 * invDet
	b01 := (a02*a21 - a01*a22) * invDet
	b02 := (a01*a12 - a02*a11) * invDet
	b10 := c01 * invDet
	b11 := (a00*a22 - a02*a20) * invDet
	b12 := (a02*a10 - a00*a12) * invDet
	b20 := c02 * invDet
	b21 := (a01*a20 - a00*a21) * invDet
	b22 := (a00*a11 - a01*a10) * invDet

	tx := -(b00*m[12] + b01*m[13] + b02*m[14])
	ty := -(b10*m[12] + b11*m[13] + b12*m[14])
	tz := -(b20*m[12] + b21*m[13] + b22*m[14])

	return Mat4{
		b00, b10, b20, 0,
		b01, b11, b21, 0,
		b02, b12, b22, 0,
		tx, ty, tz, 1,
	}
}

// Ptr returns a pointer to the first element (for GPU uniform uploads).
func (m *Mat4) Ptr() *float32 {
	return &m[0]
}
