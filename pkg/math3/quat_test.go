package math3

import (
	"testing"

	"github.com/chewxy/math32"
)

func TestQuatIdentity(t *testing.T) {
	q := QuatIdentity()
	if q.X != 0 || q.Y != 0 || q.Z != 0 || q.W != 1 {
		t.Errorf("Identity quaternion should be (0,0,0,1), got (%v,%v,%v,%v)", q.X, q.Y, q.Z, q.W)
	}
}

func TestQuatNormalize(t *testing.T) {
	q := Quat{X: 1, Y: 2, Z: 3, W: 4}
	n := q.Normalize()

	length := math32.Sqrt(n.X*n.X + n.Y*n.Y + n.Z*n.Z + n.W*n.W)
	if math32.Abs(length-1.0) > 0.0001 {
		t.Errorf("Normalized quaternion length should be 1, got %v", length)
	}
}

func TestQuatSlerp(t *testing.T) {
	q1 := QuatIdentity()
	q2 := QuatFromAxisAngle(Vec3{Y: 1}, math32.Pi/2)

	result0 := q1.Slerp(q2, 0, true)
	if math32.Abs(result0.W-q1.W) > 0.001 {
		t.Errorf("Slerp at t=0 should equal q1")
	}

	result1 := q1.Slerp(q2, 1, true)
	if math32.Abs(result1.W-q2.W) > 0.001 {
		t.Errorf("Slerp at t=1 should equal q2")
	}

	// For a 90 degree rotation, halfway should be 45 degrees
	result5 := q1.Slerp(q2, 0.5, true)
	expectedW := math32.Cos(math32.Pi / 8)
	if math32.Abs(result5.W-expectedW) > 0.01 {
		t.Errorf("Slerp at t=0.5: expected W ~%v, got %v", expectedW, result5.W)
	}
}

func TestQuatSlerpShortestPath(t *testing.T) {
	q1 := QuatFromAxisAngle(Vec3{Y: 1}, math32.Pi/4)
	// Same orientation as a small rotation, expressed with flipped sign
	q2 := QuatFromAxisAngle(Vec3{Y: 1}, math32.Pi/2)
	q2neg := Quat{X: -q2.X, Y: -q2.Y, Z: -q2.Z, W: -q2.W}

	short := q1.Slerp(q2neg, 0.5, true)
	want := QuatFromAxisAngle(Vec3{Y: 1}, 3*math32.Pi/8)
	if !short.ApproxEqual(want, 1e-3) {
		t.Errorf("shortest-path slerp should take the short arc, got %+v want %+v", short, want)
	}

	long := q1.Slerp(q2neg, 0.5, false)
	if long.ApproxEqual(want, 1e-3) {
		t.Error("non-shortest slerp should take the long arc for flipped input")
	}
}

func TestQuatNlerp(t *testing.T) {
	q1 := QuatIdentity()
	q2 := QuatFromAxisAngle(Vec3{Z: 1}, math32.Pi/2)

	mid := q1.Nlerp(q2, 0.5, true)
	length := math32.Sqrt(mid.Dot(mid))
	if math32.Abs(length-1) > 1e-4 {
		t.Errorf("nlerp result should be unit length, got %v", length)
	}

	// Nlerp follows the same arc as slerp for a 90 degree rotation, just at
	// non-constant speed; the midpoint coincides.
	want := QuatFromAxisAngle(Vec3{Z: 1}, math32.Pi/4)
	if !mid.ApproxEqual(want, 1e-3) {
		t.Errorf("nlerp midpoint: got %+v, want %+v", mid, want)
	}
}

func TestQuatMulRotate(t *testing.T) {
	// Two 45 degree turns equal one 90 degree turn
	half := QuatFromAxisAngle(Vec3{Y: 1}, math32.Pi/4)
	full := half.Mul(half)

	got := full.Rotate(Vec3{X: 1})
	want := Vec3{0, 0, -1}
	if !got.ApproxEqual(want, 1e-5) {
		t.Errorf("rotating X by 90deg around Y: got %v, want %v", got, want)
	}
}

func TestQuatInverse(t *testing.T) {
	q := QuatFromAxisAngle(Vec3{X: 1, Y: 1}.Normalize(), 1.1)
	inv := q.Inverse()
	id := q.Mul(inv)
	if !id.ApproxEqual(QuatIdentity(), 1e-5) {
		t.Errorf("q * q^-1 should be identity, got %+v", id)
	}
}

func TestQuatToAxisAngle(t *testing.T) {
	angle, axis := QuatFromAxisAngle(Vec3{Y: 1}, 1.2).ToAxisAngle()
	if math32.Abs(angle-1.2) > 1e-4 {
		t.Errorf("expected angle 1.2, got %v", angle)
	}
	if !axis.ApproxEqual(Vec3{Y: 1}, 1e-4) {
		t.Errorf("expected Y axis, got %v", axis)
	}

	angle, _ = QuatIdentity().ToAxisAngle()
	if angle != 0 {
		t.Errorf("identity should report zero angle, got %v", angle)
	}
}

func TestQuatExpLogRoundTrip(t *testing.T) {
	q := QuatFromAxisAngle(Vec3{X: 0.3, Y: 0.8, Z: 0.2}.Normalize(), 0.9)
	back := q.Log().Exp()
	if !back.ApproxEqual(q, 1e-4) {
		t.Errorf("exp(log(q)) should round-trip, got %+v want %+v", back, q)
	}
}

func TestQuatApproxEqual(t *testing.T) {
	q := QuatFromAxisAngle(Vec3{Y: 1}, 0.5)
	neg := Quat{X: -q.X, Y: -q.Y, Z: -q.Z, W: -q.W}
	if !q.ApproxEqual(neg, 1e-4) {
		t.Error("a quaternion and its negation describe the same rotation")
	}

	other := QuatFromAxisAngle(Vec3{Y: 1}, 0.6)
	if q.ApproxEqual(other, 1e-3) {
		t.Error("rotations 0.1 rad apart should not compare equal at 1e-3")
	}
}

func TestSquadEndpoints(t *testing.T) {
	p := QuatIdentity()
	q := QuatFromAxisAngle(Vec3{Y: 1}, math32.Pi/3)
	a := p
	b := q

	if got := Squad(0, p, a, b, q, true); !got.ApproxEqual(p, 1e-4) {
		t.Errorf("squad at t=0 should equal p, got %+v", got)
	}
	if got := Squad(1, p, a, b, q, true); !got.ApproxEqual(q, 1e-4) {
		t.Errorf("squad at t=1 should equal q, got %+v", got)
	}
}

func TestQuatToMat4(t *testing.T) {
	q := QuatFromAxisAngle(Vec3{Z: 1}, math32.Pi/2)
	m := q.ToMat4()
	got := m.TransformPoint(Vec3{X: 1})
	want := Vec3{0, 1, 0}
	if !got.ApproxEqual(want, 1e-5) {
		t.Errorf("matrix from quat should rotate X to Y, got %v", got)
	}
}
