package anim

import (
	"fmt"
	"sort"

	"github.com/chewxy/math32"
)

// TrackListener intercepts keyframe interpolation. When InterpolatedKeyFrame
// returns true the listener has filled out and the track's own interpolation
// is skipped. out is the concrete keyframe kind of the track.
type TrackListener interface {
	InterpolatedKeyFrame(track Track, ti TimeIndex, out KeyFrame) bool
}

// Track is one animated channel of an Animation. Concrete kinds are
// NumericTrack, NodeTrack and VertexTrack.
type Track interface {
	// Handle returns the track's identifier within its animation. Node
	// tracks use the bone handle.
	Handle() int
	// Parent returns the owning animation.
	Parent() *Animation
	// KeyFrameCount returns the number of keyframes.
	KeyFrameCount() int
	// KeyFrameAt returns the keyframe at the given index.
	KeyFrameAt(index int) (KeyFrame, error)
	// KeyFramesAtTime returns the keyframes bracketing the given time, the
	// interpolation parameter between them in [0,1), and the index of the
	// first keyframe. Times past the end wrap around to the start.
	KeyFramesAtTime(ti TimeIndex) (k1, k2 KeyFrame, t float32, firstKeyIndex int)
	// RemoveKeyFrame removes the keyframe at the given index.
	RemoveKeyFrame(index int) error
	// RemoveAllKeyFrames removes every keyframe.
	RemoveAllKeyFrames()
	// Apply samples the track at the given time and applies the result to
	// the track's bound target, scaled by weight.
	Apply(ti TimeIndex, weight, scale float32) error
	// HasNonZeroKeyFrames reports whether any keyframe would visibly move
	// the target.
	HasNonZeroKeyFrames() bool
	// Optimise drops keyframes that repeat their neighbours.
	Optimise()
	// SetListener installs an interpolation listener, nil removes it.
	SetListener(l TrackListener)

	keyFrameDataChanged()
	collectKeyFrameTimes(times []float32) []float32
	buildKeyFrameIndexMap(times []float32)
	applyBaseKeyFrame(base KeyFrame)
	cloneInto(dst *Animation)
}

// baseTrack carries the keyframe list shared by every track kind. Keyframes
// stay sorted by time.
type baseTrack struct {
	handle    int
	parent    *Animation
	keyFrames []KeyFrame
	listener  TrackListener

	// keyFrameIndexMap maps global keyframe time indices to local keyframe
	// indices, built by buildKeyFrameIndexMap.
	keyFrameIndexMap []int
}

func (t *baseTrack) Handle() int { return t.handle }

func (t *baseTrack) Parent() *Animation { return t.parent }

func (t *baseTrack) KeyFrameCount() int { return len(t.keyFrames) }

func (t *baseTrack) KeyFrameAt(index int) (KeyFrame, error) {
	if index < 0 || index >= len(t.keyFrames) {
		return nil, fmt.Errorf("%w: keyframe index %d out of %d", ErrItemNotFound, index, len(t.keyFrames))
	}
	return t.keyFrames[index], nil
}

func (t *baseTrack) SetListener(l TrackListener) { t.listener = l }

// insertKeyFrame places kf after any keyframes sharing its time, so freshly
// created keyframes keep creation order.
func (t *baseTrack) insertKeyFrame(kf KeyFrame) {
	i := sort.Search(len(t.keyFrames), func(n int) bool {
		return t.keyFrames[n].Time() > kf.Time()
	})
	t.keyFrames = append(t.keyFrames, nil)
	copy(t.keyFrames[i+1:], t.keyFrames[i:])
	t.keyFrames[i] = kf
}

func (t *baseTrack) removeKeyFrameAt(index int) error {
	if index < 0 || index >= len(t.keyFrames) {
		return fmt.Errorf("%w: keyframe index %d out of %d", ErrItemNotFound, index, len(t.keyFrames))
	}
	t.keyFrames = append(t.keyFrames[:index], t.keyFrames[index+1:]...)
	return nil
}

// KeyFramesAtTime implements the shared bracketing search. With a global
// key index on ti the precomputed index map answers directly, otherwise the
// time is wrapped into the animation's length and binary searched.
func (t *baseTrack) KeyFramesAtTime(ti TimeIndex) (KeyFrame, KeyFrame, float32, int) {
	timePos := ti.TimePos()

	var i int
	if ti.HasKeyIndex() {
		i = t.keyFrameIndexMap[ti.KeyIndex()]
	} else {
		total := t.parent.Length()
		if timePos > total && total > 0 {
			timePos = math32.Mod(timePos, total)
		}
		i = sort.Search(len(t.keyFrames), func(n int) bool {
			return t.keyFrames[n].Time() >= timePos
		})
	}

	var k2 KeyFrame
	var t2 float32
	if i == len(t.keyFrames) {
		// No keyframe at or after this time, wrap to the first one.
		k2 = t.keyFrames[0]
		t2 = t.parent.Length() + k2.Time()
		i--
	} else {
		k2 = t.keyFrames[i]
		t2 = k2.Time()
		// Step back unless the time lands exactly on this keyframe.
		if i != 0 && timePos < k2.Time() {
			i--
		}
	}

	k1 := t.keyFrames[i]
	t1 := k1.Time()
	if t1 == t2 {
		return k1, k2, 0, i
	}
	return k1, k2, (timePos - t1) / (t2 - t1), i
}

// collectKeyFrameTimes merges this track's keyframe times into the sorted
// unique list.
func (t *baseTrack) collectKeyFrameTimes(times []float32) []float32 {
	for _, kf := range t.keyFrames {
		tp := kf.Time()
		i := sort.Search(len(times), func(n int) bool { return times[n] >= tp })
		if i == len(times) || times[i] != tp {
			times = append(times, 0)
			copy(times[i+1:], times[i:])
			times[i] = tp
		}
	}
	return times
}

// buildKeyFrameIndexMap records, for every global keyframe time, the local
// index of the first keyframe at or after it. One extra slot at the end
// covers queries past the last global time.
func (t *baseTrack) buildKeyFrameIndexMap(times []float32) {
	t.keyFrameIndexMap = make([]int, len(times)+1)
	local := 0
	for g, gt := range times {
		for local < len(t.keyFrames) && t.keyFrames[local].Time() < gt {
			local++
		}
		t.keyFrameIndexMap[g] = local
	}
	t.keyFrameIndexMap[len(times)] = len(t.keyFrames)
}
