package anim

// NumericTrack animates a scalar or vector value through an AnimableValue
// target.
type NumericTrack struct {
	baseTrack
	target AnimableValue
}

func newNumericTrack(parent *Animation, handle int, target AnimableValue) *NumericTrack {
	return &NumericTrack{
		baseTrack: baseTrack{handle: handle, parent: parent},
		target:    target,
	}
}

// Target returns the bound animable value, nil when unbound.
func (t *NumericTrack) Target() AnimableValue { return t.target }

// SetTarget binds the animable value Apply drives.
func (t *NumericTrack) SetTarget(target AnimableValue) { t.target = target }

// CreateNumericKeyFrame adds a keyframe at the given time and returns it for
// value assignment.
func (t *NumericTrack) CreateNumericKeyFrame(timePos float32) *NumericKeyFrame {
	kf := newNumericKeyFrame(t, timePos)
	t.insertKeyFrame(kf)
	t.parent.keyFrameListChanged()
	return kf
}

// NumericKeyFrame returns the keyframe at the given index.
func (t *NumericTrack) NumericKeyFrame(index int) (*NumericKeyFrame, error) {
	kf, err := t.KeyFrameAt(index)
	if err != nil {
		return nil, err
	}
	return kf.(*NumericKeyFrame), nil
}

// RemoveKeyFrame removes the keyframe at the given index.
func (t *NumericTrack) RemoveKeyFrame(index int) error {
	if err := t.removeKeyFrameAt(index); err != nil {
		return err
	}
	t.parent.keyFrameListChanged()
	return nil
}

// RemoveAllKeyFrames removes every keyframe.
func (t *NumericTrack) RemoveAllKeyFrames() {
	t.keyFrames = t.keyFrames[:0]
	t.parent.keyFrameListChanged()
}

// InterpolatedKeyFrame fills out with the track's value at ti.
func (t *NumericTrack) InterpolatedKeyFrame(ti TimeIndex, out *NumericKeyFrame) {
	if t.listener != nil && t.listener.InterpolatedKeyFrame(t, ti, out) {
		return
	}
	k1, k2, tt, _ := t.KeyFramesAtTime(ti)
	out.time = ti.TimePos()
	v1 := k1.(*NumericKeyFrame).value
	if tt == 0 {
		// Exactly on a keyframe.
		out.value = v1
		return
	}
	diff := k2.(*NumericKeyFrame).value.Sub(v1)
	out.value = v1.Add(diff.Scale(tt))
}

// Apply samples the track at ti and applies the weighted value to the bound
// target.
func (t *NumericTrack) Apply(ti TimeIndex, weight, scale float32) error {
	t.ApplyToAnimable(t.target, ti, weight, scale)
	return nil
}

// ApplyToAnimable samples the track at ti and adds the result to target,
// scaled by weight and scale.
func (t *NumericTrack) ApplyToAnimable(target AnimableValue, ti TimeIndex, weight, scale float32) {
	if len(t.keyFrames) == 0 || weight == 0 || scale == 0 || target == nil {
		return
	}
	var kf NumericKeyFrame
	t.InterpolatedKeyFrame(ti, &kf)
	target.ApplyDelta(kf.value.Scale(weight * scale))
}

// HasNonZeroKeyFrames reports true, numeric tracks have no identity value
// to compare against.
func (t *NumericTrack) HasNonZeroKeyFrames() bool { return true }

// Optimise does nothing for numeric tracks.
func (t *NumericTrack) Optimise() {}

func (t *NumericTrack) keyFrameDataChanged() {}

func (t *NumericTrack) applyBaseKeyFrame(base KeyFrame) {}

func (t *NumericTrack) cloneInto(dst *Animation) {
	clone, err := dst.CreateNumericTrack(t.handle, t.target)
	if err != nil {
		panic(err)
	}
	for _, kf := range t.keyFrames {
		src := kf.(*NumericKeyFrame)
		clone.CreateNumericKeyFrame(src.time).SetValue(src.value)
	}
}
