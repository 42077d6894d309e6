package anim

import (
	"fmt"

	"github.com/Faultbox/skelkit/pkg/math3"
)

// NumericKind identifies the payload type of a Numeric value.
type NumericKind uint8

const (
	NumericReal NumericKind = iota
	NumericVec2
	NumericVec3
	NumericVec4
)

func (k NumericKind) String() string {
	switch k {
	case NumericReal:
		return "real"
	case NumericVec2:
		return "vec2"
	case NumericVec3:
		return "vec3"
	case NumericVec4:
		return "vec4"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Numeric is a tagged value animated by numeric tracks. Arithmetic between
// mismatched kinds panics, mixing kinds on one track is a programming error.
type Numeric struct {
	kind NumericKind
	v    [4]float32
}

// NewReal wraps a scalar.
func NewReal(v float32) Numeric {
	return Numeric{kind: NumericReal, v: [4]float32{v}}
}

// NewVec2 wraps a 2-vector.
func NewVec2(x, y float32) Numeric {
	return Numeric{kind: NumericVec2, v: [4]float32{x, y}}
}

// NewVec3 wraps a 3-vector.
func NewVec3(v math3.Vec3) Numeric {
	return Numeric{kind: NumericVec3, v: [4]float32{v.X, v.Y, v.Z}}
}

// NewVec4 wraps a 4-vector.
func NewVec4(x, y, z, w float32) Numeric {
	return Numeric{kind: NumericVec4, v: [4]float32{x, y, z, w}}
}

// Kind returns the payload type.
func (n Numeric) Kind() NumericKind { return n.kind }

// Real returns the scalar payload.
func (n Numeric) Real() float32 { return n.v[0] }

// Vec3 returns the 3-vector payload.
func (n Numeric) Vec3() math3.Vec3 { return math3.Vec3{X: n.v[0], Y: n.v[1], Z: n.v[2]} }

// Vec4 returns the raw components, valid for every kind.
func (n Numeric) Vec4() [4]float32 { return n.v }

func (n Numeric) checkKind(o Numeric) {
	if n.kind != o.kind {
		panic(fmt.Sprintf("numeric kind mismatch: %s and %s", n.kind, o.kind))
	}
}

// Add returns n + o componentwise.
func (n Numeric) Add(o Numeric) Numeric {
	n.checkKind(o)
	for i := range n.v {
		n.v[i] += o.v[i]
	}
	return n
}

// Sub returns n - o componentwise.
func (n Numeric) Sub(o Numeric) Numeric {
	n.checkKind(o)
	for i := range n.v {
		n.v[i] -= o.v[i]
	}
	return n
}

// Scale returns n scaled by s.
func (n Numeric) Scale(s float32) Numeric {
	for i := range n.v {
		n.v[i] *= s
	}
	return n
}

// AnimableValue is any property a numeric track can drive. Tracks hand the
// target weighted deltas, the target decides how to accumulate them.
type AnimableValue interface {
	ApplyDelta(delta Numeric)
}

// AnimableFloat drives a scalar through numeric tracks.
type AnimableFloat struct {
	Value float32
	base  float32
}

// NewAnimableFloat returns a float target with the given base value.
func NewAnimableFloat(base float32) *AnimableFloat {
	return &AnimableFloat{Value: base, base: base}
}

func (a *AnimableFloat) ApplyDelta(delta Numeric) { a.Value += delta.Real() }

// SetAsBase records the current value as the base.
func (a *AnimableFloat) SetAsBase() { a.base = a.Value }

// Reset restores the base value, call it before re-applying animations.
func (a *AnimableFloat) Reset() { a.Value = a.base }

// AnimableVec3 drives a 3-vector through numeric tracks.
type AnimableVec3 struct {
	Value math3.Vec3
	base  math3.Vec3
}

// NewAnimableVec3 returns a vector target with the given base value.
func NewAnimableVec3(base math3.Vec3) *AnimableVec3 {
	return &AnimableVec3{Value: base, base: base}
}

func (a *AnimableVec3) ApplyDelta(delta Numeric) { a.Value = a.Value.Add(delta.Vec3()) }

// SetAsBase records the current value as the base.
func (a *AnimableVec3) SetAsBase() { a.base = a.Value }

// Reset restores the base value.
func (a *AnimableVec3) Reset() { a.Value = a.base }
