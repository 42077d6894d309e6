package math3

import "github.com/chewxy/math32"

// SimpleSpline is a Catmull-Rom spline through a set of 3D points. Tangents
// are derived from neighbouring points; a closed loop (first point equal to
// last) wraps the end tangents.
type SimpleSpline struct {
	points   []Vec3
	tangents []Vec3
	autoCalc bool
}

// NewSimpleSpline returns a spline that recalculates tangents on every
// point change. Disable with SetAutoCalculate when batching points.
func NewSimpleSpline() *SimpleSpline {
	return &SimpleSpline{autoCalc: true}
}

// SetAutoCalculate toggles tangent recalculation on point changes. When
// disabled, call RecalcTangents after the last point is added.
func (s *SimpleSpline) SetAutoCalculate(on bool) {
	s.autoCalc = on
}

// AddPoint appends a control point.
func (s *SimpleSpline) AddPoint(p Vec3) {
	s.points = append(s.points, p)
	if s.autoCalc {
		s.RecalcTangents()
	}
}

// Clear removes all control points.
func (s *SimpleSpline) Clear() {
	s.points = s.points[:0]
	s.tangents = s.tangents[:0]
}

// PointCount returns the number of control points.
func (s *SimpleSpline) PointCount() int {
	return len(s.points)
}

// Point returns control point i.
func (s *SimpleSpline) Point(i int) Vec3 {
	return s.points[i]
}

// RecalcTangents rebuilds the tangent list from the current points.
// tangent[i] = 0.5 * (point[i+1] - point[i-1]), with one-sided tangents at
// open ends and wrapped neighbours when the spline is closed.
func (s *SimpleSpline) RecalcTangents() {
	n := len(s.points)
	if n < 2 {
		return
	}

	closed := s.points[0] == s.points[n-1]

	if cap(s.tangents) < n {
		s.tangents = make([]Vec3, n)
	}
	s.tangents = s.tangents[:n]

	for i := 0; i < n; i++ {
		switch {
		case i == 0:
			if closed {
				// points[n-1] duplicates points[0], use its neighbour
				s.tangents[i] = s.points[1].Sub(s.points[n-2]).Scale(0.5)
			} else {
				s.tangents[i] = s.points[1].Sub(s.points[0]).Scale(0.5)
			}
		case i == n-1:
			if closed {
				s.tangents[i] = s.tangents[0]
			} else {
				s.tangents[i] = s.points[i].Sub(s.points[i-1]).Scale(0.5)
			}
		default:
			s.tangents[i] = s.points[i+1].Sub(s.points[i-1]).Scale(0.5)
		}
	}
}

// Interpolate evaluates the whole spline at t in [0, 1].
func (s *SimpleSpline) Interpolate(t float32) Vec3 {
	seg := t * float32(len(s.points)-1)
	segIdx := math32.Floor(seg)
	return s.InterpolateSegment(int(segIdx), seg-segIdx)
}

// InterpolateSegment evaluates the Hermite segment starting at fromIndex at
// local parameter t in [0, 1]. Interpolating from the last point returns it
// unchanged.
func (s *SimpleSpline) InterpolateSegment(fromIndex int, t float32) Vec3 {
	if fromIndex+1 == len(s.points) {
		return s.points[fromIndex]
	}
	if t == 0 {
		return s.points[fromIndex]
	}
	if t == 1 {
		return s.points[fromIndex+1]
	}

	t2 := t * t
	t3 := t2 * t
	h1 := 2*t3 - 3*t2 + 1
	h2 := -2*t3 + 3*t2
	h3 := t3 - 2*t2 + t
	h4 := t3 - t2

	p1 := s.points[fromIndex]
	p2 := s.points[fromIndex+1]
	tan1 := s.tangents[fromIndex]
	tan2 := s.tangents[fromIndex+1]

	return p1.Scale(h1).Add(p2.Scale(h2)).Add(tan1.Scale(h3)).Add(tan2.Scale(h4))
}

// RotationalSpline interpolates smoothly through a set of rotations using
// spherical quadratic interpolation. Inner control quaternions follow
// exp(-0.25 * (log(inv(q)*next) + log(inv(q)*prev))) * q.
type RotationalSpline struct {
	points   []Quat
	tangents []Quat
	autoCalc bool
}

// NewRotationalSpline returns a spline that recalculates control
// quaternions on every point change.
func NewRotationalSpline() *RotationalSpline {
	return &RotationalSpline{autoCalc: true}
}

// SetAutoCalculate toggles control-point recalculation on point changes.
func (s *RotationalSpline) SetAutoCalculate(on bool) {
	s.autoCalc = on
}

// AddPoint appends a control rotation.
func (s *RotationalSpline) AddPoint(q Quat) {
	s.points = append(s.points, q)
	if s.autoCalc {
		s.RecalcTangents()
	}
}

// Clear removes all control rotations.
func (s *RotationalSpline) Clear() {
	s.points = s.points[:0]
	s.tangents = s.tangents[:0]
}

// PointCount returns the number of control rotations.
func (s *RotationalSpline) PointCount() int {
	return len(s.points)
}

// Point returns control rotation i.
func (s *RotationalSpline) Point(i int) Quat {
	return s.points[i]
}

// RecalcTangents rebuilds the inner control quaternions.
func (s *RotationalSpline) RecalcTangents() {
	n := len(s.points)
	if n < 2 {
		return
	}

	closed := s.points[0] == s.points[n-1]

	if cap(s.tangents) < n {
		s.tangents = make([]Quat, n)
	}
	s.tangents = s.tangents[:n]

	for i := 0; i < n; i++ {
		p := s.points[i]
		invp := p.Inverse()

		var part1, part2 Quat
		switch {
		case i == 0:
			part1 = invp.Mul(s.points[1]).Log()
			if closed {
				part2 = invp.Mul(s.points[n-2]).Log()
			} else {
				part2 = invp.Mul(p).Log()
			}
		case i == n-1:
			if closed {
				part1 = invp.Mul(s.points[1]).Log()
			} else {
				part1 = invp.Mul(p).Log()
			}
			part2 = invp.Mul(s.points[i-1]).Log()
		default:
			part1 = invp.Mul(s.points[i+1]).Log()
			part2 = invp.Mul(s.points[i-1]).Log()
		}

		preExp := part1.Add(part2).Scale(-0.25)
		s.tangents[i] = p.Mul(preExp.Exp())
	}
}

// InterpolateSegment evaluates the segment starting at fromIndex at local
// parameter t in [0, 1]. Interpolating from the last point returns it
// unchanged.
func (s *RotationalSpline) InterpolateSegment(fromIndex int, t float32, shortestPath bool) Quat {
	if fromIndex+1 == len(s.points) {
		return s.points[fromIndex]
	}
	if t == 0 {
		return s.points[fromIndex]
	}
	if t == 1 {
		return s.points[fromIndex+1]
	}

	p := s.points[fromIndex]
	q := s.points[fromIndex+1]
	a := s.tangents[fromIndex]
	b := s.tangents[fromIndex+1]

	return Squad(t, p, a, b, q, shortestPath)
}
