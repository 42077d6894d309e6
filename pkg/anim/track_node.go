package anim

import "github.com/Faultbox/skelkit/pkg/math3"

// transformTolerance bounds how far a transform component may sit from the
// identity and still count as identity, used by optimisation.
const transformTolerance = 1e-3

// Node is the mutable transform a node track drives. Bone implements it, the
// operations are additive so several animations can layer on one node.
type Node interface {
	// Translate moves the node by d in parent space.
	Translate(d math3.Vec3)
	// Rotate turns the node by q in local space.
	Rotate(q math3.Quat)
	// ScaleBy multiplies the node's scale componentwise by s.
	ScaleBy(s math3.Vec3)
}

// trackSplines holds the interpolation splines a node track builds for
// spline mode, one per transform component.
type trackSplines struct {
	position math3.SimpleSpline
	rotation math3.RotationalSpline
	scale    math3.SimpleSpline
}

// NodeTrack animates the transform of a node. Keyframe transforms apply on
// top of whatever state the node is in, blending resets nodes first.
type NodeTrack struct {
	baseTrack
	target Node

	splines           *trackSplines
	splineBuildNeeded bool
	useShortestPath   bool
}

func newNodeTrack(parent *Animation, handle int, target Node) *NodeTrack {
	return &NodeTrack{
		baseTrack:       baseTrack{handle: handle, parent: parent},
		target:          target,
		useShortestPath: true,
	}
}

// Target returns the bound node, nil when unbound.
func (t *NodeTrack) Target() Node { return t.target }

// SetTarget binds the node Apply drives.
func (t *NodeTrack) SetTarget(target Node) { t.target = target }

// UseShortestRotationPath reports whether rotation interpolation inverts
// quaternions to take the shorter arc.
func (t *NodeTrack) UseShortestRotationPath() bool { return t.useShortestPath }

// SetUseShortestRotationPath selects between the shorter and the literal
// rotation arc during interpolation.
func (t *NodeTrack) SetUseShortestRotationPath(use bool) { t.useShortestPath = use }

// CreateNodeKeyFrame adds an identity keyframe at the given time and returns
// it for transform assignment.
func (t *NodeTrack) CreateNodeKeyFrame(timePos float32) *TransformKeyFrame {
	kf := newTransformKeyFrame(t, timePos)
	t.insertKeyFrame(kf)
	t.keyFrameDataChanged()
	t.parent.keyFrameListChanged()
	return kf
}

// NodeKeyFrame returns the keyframe at the given index.
func (t *NodeTrack) NodeKeyFrame(index int) (*TransformKeyFrame, error) {
	kf, err := t.KeyFrameAt(index)
	if err != nil {
		return nil, err
	}
	return kf.(*TransformKeyFrame), nil
}

// RemoveKeyFrame removes the keyframe at the given index.
func (t *NodeTrack) RemoveKeyFrame(index int) error {
	if err := t.removeKeyFrameAt(index); err != nil {
		return err
	}
	t.keyFrameDataChanged()
	t.parent.keyFrameListChanged()
	return nil
}

// RemoveAllKeyFrames removes every keyframe.
func (t *NodeTrack) RemoveAllKeyFrames() {
	t.keyFrames = t.keyFrames[:0]
	t.keyFrameDataChanged()
	t.parent.keyFrameListChanged()
}

// InterpolatedKeyFrame fills out with the track's transform at ti, following
// the parent animation's interpolation modes.
func (t *NodeTrack) InterpolatedKeyFrame(ti TimeIndex, out *TransformKeyFrame) {
	if t.listener != nil && t.listener.InterpolatedKeyFrame(t, ti, out) {
		return
	}

	k1, k2, tt, firstKeyIndex := t.KeyFramesAtTime(ti)
	kf1 := k1.(*TransformKeyFrame)
	kf2 := k2.(*TransformKeyFrame)
	out.time = ti.TimePos()

	if tt == 0 {
		// Exactly on a keyframe.
		out.rotate = kf1.rotate
		out.translate = kf1.translate
		out.scale = kf1.scale
		return
	}

	switch t.parent.InterpolationMode() {
	case InterpolationLinear:
		if t.parent.RotationInterpolationMode() == RotationInterpolationSpherical {
			out.rotate = kf1.rotate.Slerp(kf2.rotate, tt, t.useShortestPath)
		} else {
			out.rotate = kf1.rotate.Nlerp(kf2.rotate, tt, t.useShortestPath)
		}
		out.translate = kf1.translate.Lerp(kf2.translate, tt)
		out.scale = kf1.scale.Lerp(kf2.scale, tt)
	case InterpolationSpline:
		if t.splineBuildNeeded {
			t.buildInterpolationSplines()
		}
		out.translate = t.splines.position.InterpolateSegment(firstKeyIndex, tt)
		out.rotate = t.splines.rotation.InterpolateSegment(firstKeyIndex, tt, t.useShortestPath)
		out.scale = t.splines.scale.InterpolateSegment(firstKeyIndex, tt)
	}
}

// Apply samples the track at ti and applies the weighted transform to the
// bound node.
func (t *NodeTrack) Apply(ti TimeIndex, weight, scale float32) error {
	t.ApplyToNode(t.target, ti, weight, scale)
	return nil
}

// ApplyToNode samples the track at ti and adds the weighted transform to
// node. Translation scales directly by weight, rotation re-interpolates
// from identity toward the sampled rotation, scale moves from unit toward
// the sampled scale.
func (t *NodeTrack) ApplyToNode(node Node, ti TimeIndex, weight, scl float32) {
	if len(t.keyFrames) == 0 || weight == 0 || node == nil {
		return
	}

	kf := TransformKeyFrame{scale: math3.UnitScale(), rotate: math3.QuatIdentity()}
	t.InterpolatedKeyFrame(ti, &kf)

	node.Translate(kf.translate.Scale(weight * scl))

	var rotate math3.Quat
	if t.parent.RotationInterpolationMode() == RotationInterpolationSpherical {
		rotate = math3.QuatIdentity().Slerp(kf.rotate, weight, t.useShortestPath)
	} else {
		rotate = math3.QuatIdentity().Nlerp(kf.rotate, weight, t.useShortestPath)
	}
	node.Rotate(rotate)

	scale := kf.scale
	if scale != math3.UnitScale() {
		if scl != 1 {
			scale = math3.UnitScale().Add(scale.Sub(math3.UnitScale()).Scale(scl))
		} else if weight != 1 {
			scale = math3.UnitScale().Add(scale.Sub(math3.UnitScale()).Scale(weight))
		}
	}
	node.ScaleBy(scale)
}

// buildInterpolationSplines rebuilds the component splines from the current
// keyframes. Tangents are recalculated once at the end.
func (t *NodeTrack) buildInterpolationSplines() {
	if t.splines == nil {
		t.splines = &trackSplines{}
	}
	sp := t.splines
	sp.position.SetAutoCalculate(false)
	sp.rotation.SetAutoCalculate(false)
	sp.scale.SetAutoCalculate(false)
	sp.position.Clear()
	sp.rotation.Clear()
	sp.scale.Clear()

	for _, kf := range t.keyFrames {
		tkf := kf.(*TransformKeyFrame)
		sp.position.AddPoint(tkf.translate)
		sp.rotation.AddPoint(tkf.rotate)
		sp.scale.AddPoint(tkf.scale)
	}
	sp.position.RecalcTangents()
	sp.rotation.RecalcTangents()
	sp.scale.RecalcTangents()

	t.splineBuildNeeded = false
}

func (t *NodeTrack) keyFrameDataChanged() { t.splineBuildNeeded = true }

// HasNonZeroKeyFrames reports whether any keyframe moves the node beyond
// the identity tolerance.
func (t *NodeTrack) HasNonZeroKeyFrames() bool {
	for _, kf := range t.keyFrames {
		tkf := kf.(*TransformKeyFrame)
		if !tkf.translate.ApproxEqual(math3.Vec3{}, transformTolerance) ||
			!tkf.scale.ApproxEqual(math3.UnitScale(), transformTolerance) ||
			!tkf.rotate.ApproxEqual(math3.QuatIdentity(), transformTolerance) {
			return true
		}
	}
	return false
}

// Optimise removes keyframes duplicating both neighbours, keeping two at
// each end of a constant run so interpolation still lands the boundaries.
func (t *NodeTrack) Optimise() {
	var toRemove []int
	var lastTrans, lastScale math3.Vec3
	var lastRot math3.Quat
	dupCount := 0
	first := true
	for i, kf := range t.keyFrames {
		tkf := kf.(*TransformKeyFrame)
		if !first && tkf.translate.ApproxEqual(lastTrans, transformTolerance) &&
			tkf.scale.ApproxEqual(lastScale, transformTolerance) &&
			tkf.rotate.ApproxEqual(lastRot, transformTolerance) {
			dupCount++
			// Only remove keyframes with identical neighbours on both
			// sides, so runs keep their first and last two frames.
			if dupCount == 4 {
				toRemove = append(toRemove, i-2)
				dupCount--
			}
		} else {
			first = false
			dupCount = 0
			lastTrans = tkf.translate
			lastScale = tkf.scale
			lastRot = tkf.rotate
		}
	}
	for i := len(toRemove) - 1; i >= 0; i-- {
		t.removeKeyFrameAt(toRemove[i])
	}
	if len(toRemove) > 0 {
		t.keyFrameDataChanged()
		t.parent.keyFrameListChanged()
	}
}

// applyBaseKeyFrame subtracts the base transform from every keyframe.
func (t *NodeTrack) applyBaseKeyFrame(base KeyFrame) {
	b := base.(*TransformKeyFrame)
	for _, kf := range t.keyFrames {
		tkf := kf.(*TransformKeyFrame)
		tkf.translate = tkf.translate.Sub(b.translate)
		tkf.rotate = b.rotate.Inverse().Mul(tkf.rotate)
		tkf.scale = tkf.scale.Mul(math3.UnitScale().Div(b.scale))
	}
	t.keyFrameDataChanged()
}

func (t *NodeTrack) cloneInto(dst *Animation) {
	clone, err := dst.CreateNodeTrack(t.handle, t.target)
	if err != nil {
		panic(err)
	}
	clone.useShortestPath = t.useShortestPath
	for _, kf := range t.keyFrames {
		src := kf.(*TransformKeyFrame)
		out := clone.CreateNodeKeyFrame(src.time)
		out.translate = src.translate
		out.rotate = src.rotate
		out.scale = src.scale
	}
}
