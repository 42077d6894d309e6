// Package anim implements keyframe animation: tracks of typed keyframes
// grouped into animations, skeletons of bones for the animations to drive,
// and the state machinery to blend several animations onto one target.
package anim

import (
	"fmt"
	"sort"
)

// InterpolationMode selects how node tracks interpolate between keyframes.
type InterpolationMode uint8

const (
	// InterpolationLinear blends each transform component linearly.
	InterpolationLinear InterpolationMode = iota
	// InterpolationSpline runs a Catmull-Rom spline through the keyframes.
	InterpolationSpline
)

func (m InterpolationMode) String() string {
	if m == InterpolationSpline {
		return "spline"
	}
	return "linear"
}

// RotationInterpolationMode selects how rotations interpolate in linear
// mode.
type RotationInterpolationMode uint8

const (
	// RotationInterpolationLinear lerps quaternions and renormalises. Fast,
	// but rotation speed varies slightly across the arc.
	RotationInterpolationLinear RotationInterpolationMode = iota
	// RotationInterpolationSpherical slerps quaternions, constant angular
	// velocity at higher cost.
	RotationInterpolationSpherical
)

func (m RotationInterpolationMode) String() string {
	if m == RotationInterpolationSpherical {
		return "spherical"
	}
	return "linear"
}

// Container resolves sibling animations by name. Skeleton implements it,
// base keyframe rebasing uses it to find the base animation.
type Container interface {
	Animation(name string) (*Animation, error)
}

// Animation is a named set of tracks sharing one timeline. Tracks are keyed
// by handle within their kind and kept in handle order.
type Animation struct {
	name   string
	length float32

	nodeTracks     map[int]*NodeTrack
	nodeTrackOrder []*NodeTrack

	numericTracks     map[int]*NumericTrack
	numericTrackOrder []*NumericTrack

	vertexTracks     map[int]*VertexTrack
	vertexTrackOrder []*VertexTrack

	interpolationMode         InterpolationMode
	rotationInterpolationMode RotationInterpolationMode

	// keyFrameTimes is the sorted union of every track's keyframe times,
	// rebuilt lazily when tracks change.
	keyFrameTimes      []float32
	keyFrameTimesDirty bool

	useBaseKeyFrame           bool
	baseKeyFrameTime          float32
	baseKeyFrameAnimationName string
	container                 Container
}

// NewAnimation returns an empty animation with the given timeline length in
// seconds.
func NewAnimation(name string, length float32) *Animation {
	return &Animation{
		name:          name,
		length:        length,
		nodeTracks:    make(map[int]*NodeTrack),
		numericTracks: make(map[int]*NumericTrack),
		vertexTracks:  make(map[int]*VertexTrack),
	}
}

// Name returns the animation name.
func (a *Animation) Name() string { return a.name }

// Length returns the timeline length in seconds.
func (a *Animation) Length() float32 { return a.length }

// SetLength changes the timeline length.
func (a *Animation) SetLength(length float32) { a.length = length }

// InterpolationMode returns the transform interpolation mode.
func (a *Animation) InterpolationMode() InterpolationMode { return a.interpolationMode }

// SetInterpolationMode selects linear or spline transform interpolation.
func (a *Animation) SetInterpolationMode(m InterpolationMode) { a.interpolationMode = m }

// RotationInterpolationMode returns the rotation interpolation mode.
func (a *Animation) RotationInterpolationMode() RotationInterpolationMode {
	return a.rotationInterpolationMode
}

// SetRotationInterpolationMode selects lerp or slerp rotation blending.
func (a *Animation) SetRotationInterpolationMode(m RotationInterpolationMode) {
	a.rotationInterpolationMode = m
}

// Container returns the animation family this animation belongs to, nil for
// standalone animations.
func (a *Animation) Container() Container { return a.container }

func (a *Animation) setContainer(c Container) { a.container = c }

// CreateNodeTrack adds a node track under the given handle. target may be
// nil for tracks applied through a skeleton.
func (a *Animation) CreateNodeTrack(handle int, target Node) (*NodeTrack, error) {
	if _, ok := a.nodeTracks[handle]; ok {
		return nil, fmt.Errorf("%w: node track with handle %d in animation %q", ErrDuplicateItem, handle, a.name)
	}
	t := newNodeTrack(a, handle, target)
	a.nodeTracks[handle] = t
	a.nodeTrackOrder = insertTrackOrdered(a.nodeTrackOrder, t)
	return t, nil
}

// CreateNumericTrack adds a numeric track under the given handle. target may
// be nil and bound later.
func (a *Animation) CreateNumericTrack(handle int, target AnimableValue) (*NumericTrack, error) {
	if _, ok := a.numericTracks[handle]; ok {
		return nil, fmt.Errorf("%w: numeric track with handle %d in animation %q", ErrDuplicateItem, handle, a.name)
	}
	t := newNumericTrack(a, handle, target)
	a.numericTracks[handle] = t
	a.numericTrackOrder = insertTrackOrdered(a.numericTrackOrder, t)
	return t, nil
}

// CreateVertexTrack adds a vertex track under the given handle with a fixed
// animation type. target may be nil and bound later.
func (a *Animation) CreateVertexTrack(handle int, animationType VertexAnimationType, target *VertexData) (*VertexTrack, error) {
	if _, ok := a.vertexTracks[handle]; ok {
		return nil, fmt.Errorf("%w: vertex track with handle %d in animation %q", ErrDuplicateItem, handle, a.name)
	}
	t := newVertexTrack(a, handle, animationType, target)
	a.vertexTracks[handle] = t
	a.vertexTrackOrder = insertTrackOrdered(a.vertexTrackOrder, t)
	return t, nil
}

// insertTrackOrdered keeps track slices sorted by handle.
func insertTrackOrdered[T Track](tracks []T, t T) []T {
	i := sort.Search(len(tracks), func(n int) bool { return tracks[n].Handle() > t.Handle() })
	tracks = append(tracks, t)
	copy(tracks[i+1:], tracks[i:])
	tracks[i] = t
	return tracks
}

func removeTrackOrdered[T Track](tracks []T, handle int) []T {
	for i, t := range tracks {
		if t.Handle() == handle {
			return append(tracks[:i], tracks[i+1:]...)
		}
	}
	return tracks
}

// NodeTrack returns the node track with the given handle.
func (a *Animation) NodeTrack(handle int) (*NodeTrack, error) {
	t, ok := a.nodeTracks[handle]
	if !ok {
		return nil, fmt.Errorf("%w: node track with handle %d in animation %q", ErrItemNotFound, handle, a.name)
	}
	return t, nil
}

// HasNodeTrack reports whether a node track exists under the given handle.
func (a *Animation) HasNodeTrack(handle int) bool {
	_, ok := a.nodeTracks[handle]
	return ok
}

// NumericTrack returns the numeric track with the given handle.
func (a *Animation) NumericTrack(handle int) (*NumericTrack, error) {
	t, ok := a.numericTracks[handle]
	if !ok {
		return nil, fmt.Errorf("%w: numeric track with handle %d in animation %q", ErrItemNotFound, handle, a.name)
	}
	return t, nil
}

// HasNumericTrack reports whether a numeric track exists under the given
// handle.
func (a *Animation) HasNumericTrack(handle int) bool {
	_, ok := a.numericTracks[handle]
	return ok
}

// VertexTrack returns the vertex track with the given handle.
func (a *Animation) VertexTrack(handle int) (*VertexTrack, error) {
	t, ok := a.vertexTracks[handle]
	if !ok {
		return nil, fmt.Errorf("%w: vertex track with handle %d in animation %q", ErrItemNotFound, handle, a.name)
	}
	return t, nil
}

// HasVertexTrack reports whether a vertex track exists under the given
// handle.
func (a *Animation) HasVertexTrack(handle int) bool {
	_, ok := a.vertexTracks[handle]
	return ok
}

// NodeTracks returns the node tracks in handle order. Treat it as read-only.
func (a *Animation) NodeTracks() []*NodeTrack { return a.nodeTrackOrder }

// NumericTracks returns the numeric tracks in handle order. Treat it as
// read-only.
func (a *Animation) NumericTracks() []*NumericTrack { return a.numericTrackOrder }

// VertexTracks returns the vertex tracks in handle order. Treat it as
// read-only.
func (a *Animation) VertexTracks() []*VertexTrack { return a.vertexTrackOrder }

// NodeTrackCount returns the number of node tracks.
func (a *Animation) NodeTrackCount() int { return len(a.nodeTracks) }

// NumericTrackCount returns the number of numeric tracks.
func (a *Animation) NumericTrackCount() int { return len(a.numericTracks) }

// VertexTrackCount returns the number of vertex tracks.
func (a *Animation) VertexTrackCount() int { return len(a.vertexTracks) }

// DestroyNodeTrack removes the node track with the given handle, a no-op if
// it does not exist.
func (a *Animation) DestroyNodeTrack(handle int) {
	if _, ok := a.nodeTracks[handle]; ok {
		delete(a.nodeTracks, handle)
		a.nodeTrackOrder = removeTrackOrdered(a.nodeTrackOrder, handle)
		a.keyFrameListChanged()
	}
}

// DestroyNumericTrack removes the numeric track with the given handle, a
// no-op if it does not exist.
func (a *Animation) DestroyNumericTrack(handle int) {
	if _, ok := a.numericTracks[handle]; ok {
		delete(a.numericTracks, handle)
		a.numericTrackOrder = removeTrackOrdered(a.numericTrackOrder, handle)
		a.keyFrameListChanged()
	}
}

// DestroyVertexTrack removes the vertex track with the given handle, a no-op
// if it does not exist.
func (a *Animation) DestroyVertexTrack(handle int) {
	if _, ok := a.vertexTracks[handle]; ok {
		delete(a.vertexTracks, handle)
		a.vertexTrackOrder = removeTrackOrdered(a.vertexTrackOrder, handle)
		a.keyFrameListChanged()
	}
}

// DestroyAllNodeTracks removes every node track.
func (a *Animation) DestroyAllNodeTracks() {
	a.nodeTracks = make(map[int]*NodeTrack)
	a.nodeTrackOrder = nil
	a.keyFrameListChanged()
}

// DestroyAllNumericTracks removes every numeric track.
func (a *Animation) DestroyAllNumericTracks() {
	a.numericTracks = make(map[int]*NumericTrack)
	a.numericTrackOrder = nil
	a.keyFrameListChanged()
}

// DestroyAllVertexTracks removes every vertex track.
func (a *Animation) DestroyAllVertexTracks() {
	a.vertexTracks = make(map[int]*VertexTrack)
	a.vertexTrackOrder = nil
	a.keyFrameListChanged()
}

// DestroyAllTracks removes every track of every kind.
func (a *Animation) DestroyAllTracks() {
	a.DestroyAllNodeTracks()
	a.DestroyAllNumericTracks()
	a.DestroyAllVertexTracks()
}

// keyFrameListChanged marks the global keyframe time list stale. Tracks call
// it whenever keyframes are added or removed.
func (a *Animation) keyFrameListChanged() { a.keyFrameTimesDirty = true }

// TimeIndexAt wraps timePos into the animation length and pairs it with the
// global keyframe index, so every track can skip its keyframe search.
func (a *Animation) TimeIndexAt(timePos float32) TimeIndex {
	if a.keyFrameTimesDirty {
		a.buildKeyFrameTimeList()
	}
	total := a.length
	for timePos > total && total > 0 {
		timePos -= total
	}
	i := sort.Search(len(a.keyFrameTimes), func(n int) bool { return a.keyFrameTimes[n] >= timePos })
	return NewTimeIndexWithKey(timePos, i)
}

func (a *Animation) buildKeyFrameTimeList() {
	a.keyFrameTimes = a.keyFrameTimes[:0]
	for _, t := range a.nodeTrackOrder {
		a.keyFrameTimes = t.collectKeyFrameTimes(a.keyFrameTimes)
	}
	for _, t := range a.numericTrackOrder {
		a.keyFrameTimes = t.collectKeyFrameTimes(a.keyFrameTimes)
	}
	for _, t := range a.vertexTrackOrder {
		a.keyFrameTimes = t.collectKeyFrameTimes(a.keyFrameTimes)
	}
	for _, t := range a.nodeTrackOrder {
		t.buildKeyFrameIndexMap(a.keyFrameTimes)
	}
	for _, t := range a.numericTrackOrder {
		t.buildKeyFrameIndexMap(a.keyFrameTimes)
	}
	for _, t := range a.vertexTrackOrder {
		t.buildKeyFrameIndexMap(a.keyFrameTimes)
	}
	a.keyFrameTimesDirty = false
}

// Apply samples every track at timePos and applies the weighted results to
// the tracks' bound targets.
func (a *Animation) Apply(timePos, weight, scale float32) error {
	if err := a.applyBaseKeyFrame(); err != nil {
		return err
	}
	ti := a.TimeIndexAt(timePos)
	for _, t := range a.nodeTrackOrder {
		t.Apply(ti, weight, scale)
	}
	for _, t := range a.numericTrackOrder {
		t.Apply(ti, weight, scale)
	}
	for _, t := range a.vertexTrackOrder {
		if err := t.Apply(ti, weight, scale); err != nil {
			return err
		}
	}
	return nil
}

// ApplyToSkeleton samples every node track at timePos and applies the
// weighted transforms to the skeleton's bones by handle. Handles with no
// bone are skipped.
func (a *Animation) ApplyToSkeleton(skel *Skeleton, timePos, weight, scale float32) error {
	if err := a.applyBaseKeyFrame(); err != nil {
		return err
	}
	ti := a.TimeIndexAt(timePos)
	for _, t := range a.nodeTrackOrder {
		b := skel.boneAt(t.Handle())
		if b == nil {
			continue
		}
		t.ApplyToNode(b, ti, weight, scale)
	}
	return nil
}

// ApplyToSkeletonWithMask is ApplyToSkeleton with a per-bone weight mask
// indexed by bone handle. The mask must cover every animated handle.
func (a *Animation) ApplyToSkeletonWithMask(skel *Skeleton, timePos, weight float32, blendMask []float32, scale float32) error {
	if err := a.applyBaseKeyFrame(); err != nil {
		return err
	}
	ti := a.TimeIndexAt(timePos)
	for _, t := range a.nodeTrackOrder {
		b := skel.boneAt(t.Handle())
		if b == nil {
			continue
		}
		t.ApplyToNode(b, ti, blendMask[b.Handle()]*weight, scale)
	}
	return nil
}

// ApplyToNode samples every node track at timePos and applies the weighted
// transforms to one node.
func (a *Animation) ApplyToNode(node Node, timePos, weight, scale float32) error {
	if err := a.applyBaseKeyFrame(); err != nil {
		return err
	}
	ti := a.TimeIndexAt(timePos)
	for _, t := range a.nodeTrackOrder {
		t.ApplyToNode(node, ti, weight, scale)
	}
	return nil
}

// ApplyToAnimable samples every numeric track at timePos and applies the
// weighted deltas to target.
func (a *Animation) ApplyToAnimable(target AnimableValue, timePos, weight, scale float32) error {
	if err := a.applyBaseKeyFrame(); err != nil {
		return err
	}
	ti := a.TimeIndexAt(timePos)
	for _, t := range a.numericTrackOrder {
		t.ApplyToAnimable(target, ti, weight, scale)
	}
	return nil
}

// ApplyToVertexData samples every vertex track at timePos and applies the
// results to data, resolving poses through each track's bound pose list.
func (a *Animation) ApplyToVertexData(data *VertexData, timePos, weight float32) error {
	if err := a.applyBaseKeyFrame(); err != nil {
		return err
	}
	ti := a.TimeIndexAt(timePos)
	for _, t := range a.vertexTrackOrder {
		if err := t.ApplyToVertexData(data, ti, weight, t.poses); err != nil {
			return err
		}
	}
	return nil
}

// Optimise drops redundant keyframes from every track. With
// discardIdentityNodeTracks, node tracks that never move their node are
// removed entirely.
func (a *Animation) Optimise(discardIdentityNodeTracks bool) {
	a.optimiseNodeTracks(discardIdentityNodeTracks)
	a.optimiseVertexTracks()
}

func (a *Animation) optimiseNodeTracks(discardIdentityTracks bool) {
	var destroy []int
	for _, t := range a.nodeTrackOrder {
		if discardIdentityTracks && !t.HasNonZeroKeyFrames() {
			destroy = append(destroy, t.Handle())
		} else {
			t.Optimise()
		}
	}
	for _, h := range destroy {
		a.DestroyNodeTrack(h)
	}
}

func (a *Animation) optimiseVertexTracks() {
	var destroy []int
	for _, t := range a.vertexTrackOrder {
		if !t.HasNonZeroKeyFrames() {
			destroy = append(destroy, t.Handle())
		} else {
			t.Optimise()
		}
	}
	for _, h := range destroy {
		a.DestroyVertexTrack(h)
	}
}

// collectIdentityNodeTrackHandles removes from handles every bone handle
// whose track moves its node, leaving only handles animated by identity
// tracks.
func (a *Animation) collectIdentityNodeTrackHandles(handles map[int]struct{}) {
	for _, t := range a.nodeTrackOrder {
		if t.HasNonZeroKeyFrames() {
			delete(handles, t.Handle())
		}
	}
}

// destroyNodeTracksIn removes every node track whose handle is in handles.
func (a *Animation) destroyNodeTracksIn(handles map[int]struct{}) {
	for h := range handles {
		a.DestroyNodeTrack(h)
	}
}

// Clone returns a deep copy of the animation under a new name. Bound
// targets are shared, keyframes are copied.
func (a *Animation) Clone(newName string) *Animation {
	clone := NewAnimation(newName, a.length)
	clone.interpolationMode = a.interpolationMode
	clone.rotationInterpolationMode = a.rotationInterpolationMode
	for _, t := range a.nodeTrackOrder {
		t.cloneInto(clone)
	}
	for _, t := range a.numericTrackOrder {
		t.cloneInto(clone)
	}
	for _, t := range a.vertexTrackOrder {
		t.cloneInto(clone)
	}
	clone.keyFrameListChanged()
	return clone
}

// SetUseBaseKeyFrame arranges for every track to be rebased against the
// given animation sampled at baseTime before the next apply. An empty
// baseAnimationName rebases against this animation itself. Rebasing runs
// once, the flag clears afterwards.
func (a *Animation) SetUseBaseKeyFrame(use bool, baseTime float32, baseAnimationName string) {
	a.useBaseKeyFrame = use
	a.baseKeyFrameTime = baseTime
	a.baseKeyFrameAnimationName = baseAnimationName
}

// UsesBaseKeyFrame reports whether a rebase is pending.
func (a *Animation) UsesBaseKeyFrame() bool { return a.useBaseKeyFrame }

// BaseKeyFrameTime returns the pending rebase sample time.
func (a *Animation) BaseKeyFrameTime() float32 { return a.baseKeyFrameTime }

// BaseKeyFrameAnimationName returns the pending rebase animation name,
// empty for self.
func (a *Animation) BaseKeyFrameAnimationName() string { return a.baseKeyFrameAnimationName }

// applyBaseKeyFrame performs the pending one-way rebase: each node and pose
// track has the base animation's value at the base time subtracted from all
// its keyframes.
func (a *Animation) applyBaseKeyFrame() error {
	if !a.useBaseKeyFrame {
		return nil
	}

	base := a
	if a.baseKeyFrameAnimationName != "" && a.container != nil {
		resolved, err := a.container.Animation(a.baseKeyFrameAnimationName)
		if err != nil {
			return fmt.Errorf("base keyframe animation: %w", err)
		}
		base = resolved
	}

	for _, t := range a.nodeTrackOrder {
		baseTrack := t
		if base != a {
			bt, err := base.NodeTrack(t.Handle())
			if err != nil {
				return fmt.Errorf("base keyframe track: %w", err)
			}
			baseTrack = bt
		}
		kf := newTransformKeyFrame(nil, a.baseKeyFrameTime)
		baseTrack.InterpolatedKeyFrame(base.TimeIndexAt(a.baseKeyFrameTime), kf)
		t.applyBaseKeyFrame(kf)
	}

	for _, t := range a.vertexTrackOrder {
		if t.AnimationType() != VertexAnimationPose {
			continue
		}
		baseTrack := t
		if base != a {
			bt, err := base.VertexTrack(t.Handle())
			if err != nil {
				return fmt.Errorf("base keyframe track: %w", err)
			}
			baseTrack = bt
		}
		kf := newVertexPoseKeyFrame(nil, a.baseKeyFrameTime)
		baseTrack.InterpolatedKeyFrame(base.TimeIndexAt(a.baseKeyFrameTime), kf)
		t.applyBaseKeyFrame(kf)
	}

	// Rebasing is a one-way translation.
	a.useBaseKeyFrame = false
	return nil
}
