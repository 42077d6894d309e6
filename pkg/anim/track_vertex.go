package anim

import "fmt"

// VertexAnimationType selects how a vertex track animates its target.
type VertexAnimationType uint8

const (
	// VertexAnimationMorph interpolates whole vertex buffer snapshots.
	VertexAnimationMorph VertexAnimationType = iota + 1
	// VertexAnimationPose blends weighted sparse pose offsets.
	VertexAnimationPose
)

// VertexTargetMode selects between CPU blending and recording bindings for
// GPU blending.
type VertexTargetMode uint8

const (
	TargetSoftware VertexTargetMode = iota
	TargetHardware
)

// VertexTrack animates vertex data by morphing or pose blending. The
// animation type is fixed at creation, keyframe kinds must match it.
type VertexTrack struct {
	baseTrack
	animationType VertexAnimationType
	targetMode    VertexTargetMode
	target        *VertexData
	poses         []*Pose
}

func newVertexTrack(parent *Animation, handle int, animationType VertexAnimationType, target *VertexData) *VertexTrack {
	return &VertexTrack{
		baseTrack:     baseTrack{handle: handle, parent: parent},
		animationType: animationType,
		target:        target,
	}
}

// AnimationType returns the track's animation type.
func (t *VertexTrack) AnimationType() VertexAnimationType { return t.animationType }

// TargetMode returns the blending mode.
func (t *VertexTrack) TargetMode() VertexTargetMode { return t.targetMode }

// SetTargetMode selects software or hardware blending.
func (t *VertexTrack) SetTargetMode(mode VertexTargetMode) { t.targetMode = mode }

// Target returns the bound vertex data, nil when unbound.
func (t *VertexTrack) Target() *VertexData { return t.target }

// SetTarget binds the vertex data Apply drives.
func (t *VertexTrack) SetTarget(target *VertexData) { t.target = target }

// Poses returns the bound pose list.
func (t *VertexTrack) Poses() []*Pose { return t.poses }

// SetPoses binds the pose list referenced by pose keyframes.
func (t *VertexTrack) SetPoses(poses []*Pose) { t.poses = poses }

// CreateVertexMorphKeyFrame adds a morph keyframe at the given time. The
// track must be a morph track.
func (t *VertexTrack) CreateVertexMorphKeyFrame(timePos float32) (*VertexMorphKeyFrame, error) {
	if t.animationType != VertexAnimationMorph {
		return nil, fmt.Errorf("%w: morph keyframe on a pose track", ErrInvalidParameters)
	}
	kf := newVertexMorphKeyFrame(t, timePos)
	t.insertKeyFrame(kf)
	t.parent.keyFrameListChanged()
	return kf, nil
}

// CreateVertexPoseKeyFrame adds a pose keyframe at the given time. The track
// must be a pose track.
func (t *VertexTrack) CreateVertexPoseKeyFrame(timePos float32) (*VertexPoseKeyFrame, error) {
	if t.animationType != VertexAnimationPose {
		return nil, fmt.Errorf("%w: pose keyframe on a morph track", ErrInvalidParameters)
	}
	kf := newVertexPoseKeyFrame(t, timePos)
	t.insertKeyFrame(kf)
	t.parent.keyFrameListChanged()
	return kf, nil
}

// VertexMorphKeyFrame returns the morph keyframe at the given index.
func (t *VertexTrack) VertexMorphKeyFrame(index int) (*VertexMorphKeyFrame, error) {
	if t.animationType != VertexAnimationMorph {
		return nil, fmt.Errorf("%w: morph keyframe on a pose track", ErrInvalidParameters)
	}
	kf, err := t.KeyFrameAt(index)
	if err != nil {
		return nil, err
	}
	return kf.(*VertexMorphKeyFrame), nil
}

// VertexPoseKeyFrame returns the pose keyframe at the given index.
func (t *VertexTrack) VertexPoseKeyFrame(index int) (*VertexPoseKeyFrame, error) {
	if t.animationType != VertexAnimationPose {
		return nil, fmt.Errorf("%w: pose keyframe on a morph track", ErrInvalidParameters)
	}
	kf, err := t.KeyFrameAt(index)
	if err != nil {
		return nil, err
	}
	return kf.(*VertexPoseKeyFrame), nil
}

// RemoveKeyFrame removes the keyframe at the given index.
func (t *VertexTrack) RemoveKeyFrame(index int) error {
	if err := t.removeKeyFrameAt(index); err != nil {
		return err
	}
	t.parent.keyFrameListChanged()
	return nil
}

// RemoveAllKeyFrames removes every keyframe.
func (t *VertexTrack) RemoveAllKeyFrames() {
	t.keyFrames = t.keyFrames[:0]
	t.parent.keyFrameListChanged()
}

// InterpolatedKeyFrame fills out with the merged pose references at ti.
// Morph tracks carry no interpolable keyframe value, for them this is a
// no-op.
func (t *VertexTrack) InterpolatedKeyFrame(ti TimeIndex, out *VertexPoseKeyFrame) {
	if t.listener != nil && t.listener.InterpolatedKeyFrame(t, ti, out) {
		return
	}
	if t.animationType != VertexAnimationPose {
		return
	}
	k1, k2, tt, _ := t.KeyFramesAtTime(ti)
	out.time = ti.TimePos()
	mergePoseRefs(out, k1.(*VertexPoseKeyFrame), k2.(*VertexPoseKeyFrame), tt)
}

// mergePoseRefs fills out with the union of both keyframes' pose references.
// Poses in both keyframes interpolate between their influences, poses only
// in k2 ramp up from zero.
func mergePoseRefs(out *VertexPoseKeyFrame, k1, k2 *VertexPoseKeyFrame, t float32) {
	out.poseRefs = out.poseRefs[:0]
	for _, p1 := range k1.poseRefs {
		end := float32(0)
		for _, p2 := range k2.poseRefs {
			if p2.PoseIndex == p1.PoseIndex {
				end = p2.Influence
				break
			}
		}
		influence := p1.Influence + t*(end-p1.Influence)
		out.poseRefs = append(out.poseRefs, PoseRef{PoseIndex: p1.PoseIndex, Influence: influence})
	}
	for _, p2 := range k2.poseRefs {
		found := false
		for _, p1 := range k1.poseRefs {
			if p1.PoseIndex == p2.PoseIndex {
				found = true
				break
			}
		}
		if !found {
			out.poseRefs = append(out.poseRefs, PoseRef{PoseIndex: p2.PoseIndex, Influence: t * p2.Influence})
		}
	}
}

// Apply samples the track at ti and applies the result to the bound vertex
// data using the bound pose list.
func (t *VertexTrack) Apply(ti TimeIndex, weight, scale float32) error {
	return t.ApplyToVertexData(t.target, ti, weight, t.poses)
}

// ApplyToVertexData samples the track at ti and applies the result to data.
// Morph tracks interpolate buffer snapshots, pose tracks blend every
// referenced pose scaled by weight. poses resolves pose indices and is only
// read for pose tracks.
func (t *VertexTrack) ApplyToVertexData(data *VertexData, ti TimeIndex, weight float32, poses []*Pose) error {
	if len(t.keyFrames) == 0 || data == nil {
		return nil
	}

	k1, k2, tt, _ := t.KeyFramesAtTime(ti)

	if t.animationType == VertexAnimationMorph {
		kf1 := k1.(*VertexMorphKeyFrame)
		kf2 := k2.(*VertexMorphKeyFrame)
		if t.targetMode == TargetHardware {
			if len(data.hwSlots) == 0 {
				return fmt.Errorf("%w: no hardware animation slots allocated", ErrInvalidParameters)
			}
			// Keyframe 1 becomes the base stream, keyframe 2 the morph
			// target with the interpolation parameter.
			data.bindHardwareBase(kf1.buffer)
			data.hwSlots[0] = HardwareAnimation{Buffer: kf2.buffer, Parametric: tt}
			if data.hwUsed < 1 {
				data.hwUsed = 1
			}
			return nil
		}
		return softwareVertexMorph(tt, kf1.buffer, kf2.buffer, data)
	}

	merged := VertexPoseKeyFrame{}
	mergePoseRefs(&merged, k1.(*VertexPoseKeyFrame), k2.(*VertexPoseKeyFrame), tt)
	for _, ref := range merged.poseRefs {
		if ref.PoseIndex >= len(poses) {
			return fmt.Errorf("%w: pose index %d out of %d", ErrItemNotFound, ref.PoseIndex, len(poses))
		}
		t.applyPoseToVertexData(poses[ref.PoseIndex], data, ref.Influence*weight)
	}
	return nil
}

// applyPoseToVertexData applies one pose at the given influence, blending in
// software or recording a hardware binding.
func (t *VertexTrack) applyPoseToVertexData(pose *Pose, data *VertexData, influence float32) {
	if t.targetMode == TargetHardware {
		// Slots beyond the allocated count are dropped.
		slot := data.hwUsed
		data.hwUsed++
		if slot < len(data.hwSlots) {
			data.hwSlots[slot] = HardwareAnimation{
				Buffer:     pose.hardwareBuffer(len(data.Positions)),
				Parametric: influence,
			}
		}
		return
	}
	pose.Apply(influence, data)
}

// HasNonZeroKeyFrames reports whether any pose keyframe carries a non-zero
// influence. Morph tracks always count as non-zero.
func (t *VertexTrack) HasNonZeroKeyFrames() bool {
	if t.animationType != VertexAnimationPose {
		return true
	}
	for _, kf := range t.keyFrames {
		for _, ref := range kf.(*VertexPoseKeyFrame).poseRefs {
			if ref.Influence > 0 {
				return true
			}
		}
	}
	return false
}

// Optimise does nothing for vertex tracks.
func (t *VertexTrack) Optimise() {}

func (t *VertexTrack) keyFrameDataChanged() {}

// applyBaseKeyFrame subtracts the base keyframe's influences from every
// pose keyframe.
func (t *VertexTrack) applyBaseKeyFrame(base KeyFrame) {
	if t.animationType != VertexAnimationPose {
		return
	}
	b := base.(*VertexPoseKeyFrame)
	for _, kf := range t.keyFrames {
		kf.(*VertexPoseKeyFrame).applyBase(b)
	}
}

func (t *VertexTrack) cloneInto(dst *Animation) {
	clone, err := dst.CreateVertexTrack(t.handle, t.animationType, t.target)
	if err != nil {
		panic(err)
	}
	clone.targetMode = t.targetMode
	clone.poses = t.poses
	for _, kf := range t.keyFrames {
		switch src := kf.(type) {
		case *VertexMorphKeyFrame:
			out, _ := clone.CreateVertexMorphKeyFrame(src.time)
			out.buffer = src.buffer
		case *VertexPoseKeyFrame:
			out, _ := clone.CreateVertexPoseKeyFrame(src.time)
			out.poseRefs = append([]PoseRef(nil), src.poseRefs...)
		}
	}
}
