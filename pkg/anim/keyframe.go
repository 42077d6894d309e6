package anim

import "github.com/Faultbox/skelkit/pkg/math3"

// KeyFrame is a snapshot of a track's animated value at one point on the
// timeline. Concrete kinds are NumericKeyFrame, TransformKeyFrame,
// VertexMorphKeyFrame and VertexPoseKeyFrame.
type KeyFrame interface {
	// Time returns the keyframe's position on the timeline in seconds.
	Time() float32
}

// keyFrameListener is notified when a keyframe's data changes. Tracks
// implement it to invalidate derived state such as interpolation splines.
type keyFrameListener interface {
	keyFrameDataChanged()
}

// baseKeyFrame carries the timeline position and a non-owning reference to
// the track the keyframe belongs to. Keyframes used as interpolation outputs
// have no parent and never notify.
type baseKeyFrame struct {
	time   float32
	parent keyFrameListener
}

func (k *baseKeyFrame) Time() float32 { return k.time }

func (k *baseKeyFrame) notify() {
	if k.parent != nil {
		k.parent.keyFrameDataChanged()
	}
}

// NumericKeyFrame holds a single Numeric value.
type NumericKeyFrame struct {
	baseKeyFrame
	value Numeric
}

func newNumericKeyFrame(parent keyFrameListener, time float32) *NumericKeyFrame {
	return &NumericKeyFrame{baseKeyFrame: baseKeyFrame{time: time, parent: parent}}
}

// Value returns the stored value.
func (k *NumericKeyFrame) Value() Numeric { return k.value }

// SetValue replaces the stored value.
func (k *NumericKeyFrame) SetValue(v Numeric) {
	k.value = v
	k.notify()
}

// TransformKeyFrame holds a translation, a rotation and a scale for a node
// track. A fresh keyframe is the identity transform.
type TransformKeyFrame struct {
	baseKeyFrame
	translate math3.Vec3
	scale     math3.Vec3
	rotate    math3.Quat
}

// NewTransformKeyFrame returns a detached identity keyframe at the given
// time, suitable as an interpolation output.
func NewTransformKeyFrame(time float32) *TransformKeyFrame {
	return newTransformKeyFrame(nil, time)
}

func newTransformKeyFrame(parent keyFrameListener, time float32) *TransformKeyFrame {
	return &TransformKeyFrame{
		baseKeyFrame: baseKeyFrame{time: time, parent: parent},
		scale:        math3.UnitScale(),
		rotate:       math3.QuatIdentity(),
	}
}

// Translate returns the translation component.
func (k *TransformKeyFrame) Translate() math3.Vec3 { return k.translate }

// SetTranslate replaces the translation component.
func (k *TransformKeyFrame) SetTranslate(v math3.Vec3) {
	k.translate = v
	k.notify()
}

// Scale returns the scale component.
func (k *TransformKeyFrame) Scale() math3.Vec3 { return k.scale }

// SetScale replaces the scale component.
func (k *TransformKeyFrame) SetScale(v math3.Vec3) {
	k.scale = v
	k.notify()
}

// Rotation returns the rotation component.
func (k *TransformKeyFrame) Rotation() math3.Quat { return k.rotate }

// SetRotation replaces the rotation component.
func (k *TransformKeyFrame) SetRotation(q math3.Quat) {
	k.rotate = q
	k.notify()
}

// VertexMorphKeyFrame references a complete vertex buffer snapshot for
// morph animation.
type VertexMorphKeyFrame struct {
	baseKeyFrame
	buffer *VertexBuffer
}

func newVertexMorphKeyFrame(parent keyFrameListener, time float32) *VertexMorphKeyFrame {
	return &VertexMorphKeyFrame{baseKeyFrame: baseKeyFrame{time: time, parent: parent}}
}

// Buffer returns the referenced vertex buffer.
func (k *VertexMorphKeyFrame) Buffer() *VertexBuffer { return k.buffer }

// SetBuffer replaces the referenced vertex buffer.
func (k *VertexMorphKeyFrame) SetBuffer(b *VertexBuffer) {
	k.buffer = b
	k.notify()
}

// PoseRef pairs a pose index with an influence weight.
type PoseRef struct {
	PoseIndex int
	Influence float32
}

// VertexPoseKeyFrame holds a sparse list of pose references. The list stays
// in insertion order and is scanned linearly, pose counts are small.
type VertexPoseKeyFrame struct {
	baseKeyFrame
	poseRefs []PoseRef
}

func newVertexPoseKeyFrame(parent keyFrameListener, time float32) *VertexPoseKeyFrame {
	return &VertexPoseKeyFrame{baseKeyFrame: baseKeyFrame{time: time, parent: parent}}
}

// PoseReferences returns the pose reference list. Treat it as read-only.
func (k *VertexPoseKeyFrame) PoseReferences() []PoseRef { return k.poseRefs }

// AddPoseReference appends a pose reference.
func (k *VertexPoseKeyFrame) AddPoseReference(poseIndex int, influence float32) {
	k.poseRefs = append(k.poseRefs, PoseRef{PoseIndex: poseIndex, Influence: influence})
	k.notify()
}

// UpdatePoseReference changes the influence of an existing reference, or
// appends a new one if the pose is not referenced yet.
func (k *VertexPoseKeyFrame) UpdatePoseReference(poseIndex int, influence float32) {
	for i := range k.poseRefs {
		if k.poseRefs[i].PoseIndex == poseIndex {
			k.poseRefs[i].Influence = influence
			k.notify()
			return
		}
	}
	k.AddPoseReference(poseIndex, influence)
}

// RemovePoseReference removes the reference to the given pose, if present.
func (k *VertexPoseKeyFrame) RemovePoseReference(poseIndex int) {
	for i := range k.poseRefs {
		if k.poseRefs[i].PoseIndex == poseIndex {
			k.poseRefs = append(k.poseRefs[:i], k.poseRefs[i+1:]...)
			k.notify()
			return
		}
	}
}

// RemoveAllPoseReferences clears the reference list.
func (k *VertexPoseKeyFrame) RemoveAllPoseReferences() {
	k.poseRefs = k.poseRefs[:0]
	k.notify()
}

// applyBase rebases this keyframe against a base keyframe by subtracting
// the base influence of every pose both keyframes reference.
func (k *VertexPoseKeyFrame) applyBase(base *VertexPoseKeyFrame) {
	for i := range k.poseRefs {
		for _, b := range base.poseRefs {
			if b.PoseIndex == k.poseRefs[i].PoseIndex {
				k.poseRefs[i].Influence -= b.Influence
				break
			}
		}
	}
	k.notify()
}
