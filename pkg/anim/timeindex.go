package anim

// InvalidKeyIndex marks a TimeIndex that carries no global keyframe index.
const InvalidKeyIndex = -1

// TimeIndex is a sampling position on an animation timeline. When built by
// Animation.TimeIndexAt it also carries the index of the first global
// keyframe time at or after the position, which lets tracks skip their
// keyframe search.
type TimeIndex struct {
	timePos  float32
	keyIndex int
}

// NewTimeIndex returns a TimeIndex holding only a time position.
func NewTimeIndex(timePos float32) TimeIndex {
	return TimeIndex{timePos: timePos, keyIndex: InvalidKeyIndex}
}

// NewTimeIndexWithKey returns a TimeIndex with a precomputed global keyframe
// index.
func NewTimeIndexWithKey(timePos float32, keyIndex int) TimeIndex {
	return TimeIndex{timePos: timePos, keyIndex: keyIndex}
}

// TimePos returns the time position in seconds.
func (ti TimeIndex) TimePos() float32 { return ti.timePos }

// KeyIndex returns the global keyframe index, or InvalidKeyIndex if the
// index was never computed.
func (ti TimeIndex) KeyIndex() int { return ti.keyIndex }

// HasKeyIndex reports whether a global keyframe index is present.
func (ti TimeIndex) HasKeyIndex() bool { return ti.keyIndex != InvalidKeyIndex }
