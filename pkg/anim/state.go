package anim

import (
	"fmt"
	"sort"

	"github.com/chewxy/math32"
)

// AnimationState tracks the playback of one animation on one target: time
// position, weight, enabled and looping flags, and an optional per-bone
// blend mask. States live in an AnimationStateSet.
type AnimationState struct {
	name   string
	parent *AnimationStateSet

	timePos float32
	length  float32
	weight  float32
	enabled bool
	loop    bool

	// blendMask is indexed by bone handle, nil when masking is off.
	blendMask []float32
}

// Name returns the animation name this state drives.
func (s *AnimationState) Name() string { return s.name }

// Parent returns the owning state set.
func (s *AnimationState) Parent() *AnimationStateSet { return s.parent }

// TimePosition returns the playback position in seconds.
func (s *AnimationState) TimePosition() float32 { return s.timePos }

// SetTimePosition moves the playback position. Looping states wrap into
// [0,length), others clamp.
func (s *AnimationState) SetTimePosition(timePos float32) {
	if timePos == s.timePos {
		return
	}
	s.timePos = timePos
	if s.loop {
		if s.length != 0 {
			s.timePos = math32.Mod(s.timePos, s.length)
			if s.timePos < 0 {
				s.timePos += s.length
			}
		}
	} else {
		if s.timePos < 0 {
			s.timePos = 0
		} else if s.timePos > s.length {
			s.timePos = s.length
		}
	}
	if s.enabled {
		s.parent.notifyDirty()
	}
}

// AddTime advances the playback position by offset seconds.
func (s *AnimationState) AddTime(offset float32) {
	s.SetTimePosition(s.timePos + offset)
}

// HasEnded reports whether a non-looping state has reached its end.
func (s *AnimationState) HasEnded() bool {
	return s.timePos >= s.length && !s.loop
}

// Length returns the animation length this state assumes.
func (s *AnimationState) Length() float32 { return s.length }

// SetLength changes the assumed animation length.
func (s *AnimationState) SetLength(length float32) { s.length = length }

// Weight returns the blending weight.
func (s *AnimationState) Weight() float32 { return s.weight }

// SetWeight changes the blending weight.
func (s *AnimationState) SetWeight(weight float32) {
	s.weight = weight
	if s.enabled {
		s.parent.notifyDirty()
	}
}

// Enabled reports whether the state takes part in blending.
func (s *AnimationState) Enabled() bool { return s.enabled }

// SetEnabled adds or removes the state from the set's enabled list.
// Re-enabling moves the state to the back of the list.
func (s *AnimationState) SetEnabled(enabled bool) {
	s.enabled = enabled
	s.parent.notifyStateEnabled(s, enabled)
}

// Loop reports whether playback wraps at the animation end.
func (s *AnimationState) Loop() bool { return s.loop }

// SetLoop selects wrapping or clamping playback.
func (s *AnimationState) SetLoop(loop bool) { s.loop = loop }

// CreateBlendMask installs a per-bone weight mask of the given size with
// every entry at initialWeight. A mask that already exists is kept.
func (s *AnimationState) CreateBlendMask(size int, initialWeight float32) {
	if s.blendMask != nil {
		return
	}
	s.blendMask = make([]float32, size)
	for i := range s.blendMask {
		s.blendMask[i] = initialWeight
	}
}

// DestroyBlendMask removes the blend mask.
func (s *AnimationState) DestroyBlendMask() { s.blendMask = nil }

// HasBlendMask reports whether a blend mask is installed.
func (s *AnimationState) HasBlendMask() bool { return s.blendMask != nil }

// BlendMask returns the mask indexed by bone handle. Treat it as read-only.
func (s *AnimationState) BlendMask() []float32 { return s.blendMask }

// SetBlendMask replaces the whole mask.
func (s *AnimationState) SetBlendMask(mask []float32) {
	s.blendMask = mask
	if s.enabled {
		s.parent.notifyDirty()
	}
}

// SetBlendMaskEntry sets the mask weight for one bone handle. The mask must
// exist and cover the handle.
func (s *AnimationState) SetBlendMaskEntry(handle int, weight float32) {
	s.blendMask[handle] = weight
	if s.enabled {
		s.parent.notifyDirty()
	}
}

// BlendMaskEntry returns the mask weight for one bone handle.
func (s *AnimationState) BlendMaskEntry(handle int) float32 {
	return s.blendMask[handle]
}

// CopyStateFrom copies playback state from another animation state. The
// blend mask is not copied.
func (s *AnimationState) CopyStateFrom(other *AnimationState) {
	s.timePos = other.timePos
	s.length = other.length
	s.weight = other.weight
	s.loop = other.loop
	s.SetEnabled(other.enabled)
	s.parent.notifyDirty()
}

// AnimationStateSet owns the animation states of one animated target and
// tracks which are enabled, in enabling order. Blending applies enabled
// states in that order.
type AnimationStateSet struct {
	dirtyFrameNumber uint64
	states           map[string]*AnimationState
	enabledStates    []*AnimationState
}

// NewAnimationStateSet returns an empty state set.
func NewAnimationStateSet() *AnimationStateSet {
	return &AnimationStateSet{states: make(map[string]*AnimationState)}
}

// CreateAnimationState adds a state for the named animation.
func (set *AnimationStateSet) CreateAnimationState(name string, timePos, length, weight float32, enabled bool) (*AnimationState, error) {
	if _, ok := set.states[name]; ok {
		return nil, fmt.Errorf("%w: animation state named %q", ErrDuplicateItem, name)
	}
	s := &AnimationState{
		name:    name,
		parent:  set,
		timePos: timePos,
		length:  length,
		weight:  weight,
		enabled: enabled,
	}
	set.states[name] = s
	if enabled {
		set.enabledStates = append(set.enabledStates, s)
	}
	set.notifyDirty()
	return s, nil
}

// AnimationState returns the state for the named animation.
func (set *AnimationStateSet) AnimationState(name string) (*AnimationState, error) {
	s, ok := set.states[name]
	if !ok {
		return nil, fmt.Errorf("%w: animation state named %q", ErrItemNotFound, name)
	}
	return s, nil
}

// HasAnimationState reports whether a state exists for the named animation.
func (set *AnimationStateSet) HasAnimationState(name string) bool {
	_, ok := set.states[name]
	return ok
}

// RemoveAnimationState removes the state for the named animation, a no-op
// if it does not exist.
func (set *AnimationStateSet) RemoveAnimationState(name string) {
	s, ok := set.states[name]
	if !ok {
		return
	}
	set.removeEnabled(s)
	delete(set.states, name)
	set.notifyDirty()
}

// RemoveAllAnimationStates clears the set.
func (set *AnimationStateSet) RemoveAllAnimationStates() {
	set.states = make(map[string]*AnimationState)
	set.enabledStates = nil
	set.notifyDirty()
}

// AnimationStateCount returns the number of states.
func (set *AnimationStateSet) AnimationStateCount() int { return len(set.states) }

// AnimationStates returns every state sorted by name.
func (set *AnimationStateSet) AnimationStates() []*AnimationState {
	names := make([]string, 0, len(set.states))
	for n := range set.states {
		names = append(names, n)
	}
	sort.Strings(names)
	out := make([]*AnimationState, len(names))
	for i, n := range names {
		out[i] = set.states[n]
	}
	return out
}

// EnabledAnimationStates returns the enabled states in enabling order.
// Treat it as read-only.
func (set *AnimationStateSet) EnabledAnimationStates() []*AnimationState {
	return set.enabledStates
}

// HasEnabledAnimationState reports whether any state is enabled.
func (set *AnimationStateSet) HasEnabledAnimationState() bool {
	return len(set.enabledStates) > 0
}

// DirtyFrameNumber returns a counter that advances whenever an enabled
// state changes, callers compare it to skip re-blending unchanged sets.
func (set *AnimationStateSet) DirtyFrameNumber() uint64 { return set.dirtyFrameNumber }

func (set *AnimationStateSet) notifyDirty() { set.dirtyFrameNumber++ }

func (set *AnimationStateSet) notifyStateEnabled(s *AnimationState, enabled bool) {
	set.removeEnabled(s)
	if enabled {
		set.enabledStates = append(set.enabledStates, s)
	}
	set.notifyDirty()
}

func (set *AnimationStateSet) removeEnabled(s *AnimationState) {
	for i, e := range set.enabledStates {
		if e == s {
			set.enabledStates = append(set.enabledStates[:i], set.enabledStates[i+1:]...)
			return
		}
	}
}

// CopyMatchingState copies playback state into target for every state it
// holds, and mirrors the enabled list in this set's order. Every target
// state must exist here.
func (set *AnimationStateSet) CopyMatchingState(target *AnimationStateSet) error {
	for name, ts := range target.states {
		src, ok := set.states[name]
		if !ok {
			return fmt.Errorf("%w: animation state named %q", ErrItemNotFound, name)
		}
		ts.CopyStateFrom(src)
	}
	target.enabledStates = target.enabledStates[:0]
	for _, src := range set.enabledStates {
		ts, ok := target.states[src.name]
		if !ok {
			return fmt.Errorf("%w: animation state named %q", ErrItemNotFound, src.name)
		}
		target.enabledStates = append(target.enabledStates, ts)
	}
	return nil
}
