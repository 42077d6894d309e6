package anim

import (
	"fmt"

	"github.com/Faultbox/skelkit/pkg/math3"
)

// MaxBones caps the number of bone handles a skeleton accepts, matching
// what skinning palettes can index.
const MaxBones = 256

// SkeletonBlendMode selects how several enabled animations combine.
type SkeletonBlendMode uint8

const (
	// BlendAverage normalises weights when they sum above one.
	BlendAverage SkeletonBlendMode = iota
	// BlendCumulative applies weights as given.
	BlendCumulative
)

func (m SkeletonBlendMode) String() string {
	if m == BlendCumulative {
		return "cumulative"
	}
	return "average"
}

// SkeletonProvider resolves skeletons by name, linked animation sources use
// it to find their skeleton.
type SkeletonProvider interface {
	SkeletonByName(name string) (*Skeleton, error)
}

// LinkedSkeletonAnimationSource borrows the animations of another skeleton
// with identical bone handles. Scale stretches the borrowed animations for
// proportionally different rigs.
type LinkedSkeletonAnimationSource struct {
	SkeletonName string
	Scale        float32

	// Skeleton is filled on first use through the provider and stays nil
	// while unresolved.
	Skeleton *Skeleton
}

// Skeleton is a bone hierarchy with the animations that drive it. Bones sit
// in a dense list indexed by handle, slots may be nil when handles were
// assigned with gaps.
type Skeleton struct {
	name string

	bones          []*Bone
	bonesByName    map[string]*Bone
	rootBones      []*Bone
	rootBonesDirty bool
	nextAutoHandle int

	animations     map[string]*Animation
	animationOrder []*Animation

	blendMode SkeletonBlendMode

	manualBones      map[*Bone]struct{}
	manualBonesDirty bool

	linkedSources []*LinkedSkeletonAnimationSource
	provider      SkeletonProvider
}

// NewSkeleton returns an empty skeleton.
func NewSkeleton(name string) *Skeleton {
	return &Skeleton{
		name:        name,
		bonesByName: make(map[string]*Bone),
		animations:  make(map[string]*Animation),
		manualBones: make(map[*Bone]struct{}),
	}
}

// Name returns the skeleton name.
func (s *Skeleton) Name() string { return s.name }

// BlendMode returns the animation blending mode.
func (s *Skeleton) BlendMode() SkeletonBlendMode { return s.blendMode }

// SetBlendMode selects averaged or cumulative blending.
func (s *Skeleton) SetBlendMode(m SkeletonBlendMode) { s.blendMode = m }

// SetProvider installs the resolver for linked skeleton sources.
func (s *Skeleton) SetProvider(p SkeletonProvider) { s.provider = p }

// CreateBone adds a root-less bone under the next automatic handle.
func (s *Skeleton) CreateBone(name string) (*Bone, error) {
	b, err := s.CreateBoneWithHandle(name, s.nextAutoHandle)
	if err != nil {
		return nil, err
	}
	s.nextAutoHandle++
	return b, nil
}

// CreateBoneWithHandle adds a bone under an explicit handle. The bone list
// grows to cover the handle, skipped slots stay nil.
func (s *Skeleton) CreateBoneWithHandle(name string, handle int) (*Bone, error) {
	if handle < 0 || handle >= MaxBones {
		return nil, fmt.Errorf("%w: bone handle %d outside [0,%d)", ErrInvalidParameters, handle, MaxBones)
	}
	if handle < len(s.bones) && s.bones[handle] != nil {
		return nil, fmt.Errorf("%w: bone with handle %d in skeleton %q", ErrDuplicateItem, handle, s.name)
	}
	if _, ok := s.bonesByName[name]; ok {
		return nil, fmt.Errorf("%w: bone named %q in skeleton %q", ErrDuplicateItem, name, s.name)
	}
	b := newBone(s, handle, name)
	for len(s.bones) <= handle {
		s.bones = append(s.bones, nil)
	}
	s.bones[handle] = b
	s.bonesByName[name] = b
	s.rootBonesDirty = true
	return b, nil
}

// BoneCount returns the bone list length, counting nil slots.
func (s *Skeleton) BoneCount() int { return len(s.bones) }

// Bone returns the bone at the given handle. The handle must be inside the
// bone list, slots skipped at creation return nil.
func (s *Skeleton) Bone(handle int) *Bone { return s.bones[handle] }

// Bones returns the bone list indexed by handle. Treat it as read-only.
func (s *Skeleton) Bones() []*Bone { return s.bones }

// boneAt is the tolerant lookup used while applying animations, handles
// outside the list behave like empty slots.
func (s *Skeleton) boneAt(handle int) *Bone {
	if handle < 0 || handle >= len(s.bones) {
		return nil
	}
	return s.bones[handle]
}

// HasBone reports whether a bone with the given name exists.
func (s *Skeleton) HasBone(name string) bool {
	_, ok := s.bonesByName[name]
	return ok
}

// BoneByName returns the bone with the given name.
func (s *Skeleton) BoneByName(name string) (*Bone, error) {
	b, ok := s.bonesByName[name]
	if !ok {
		return nil, fmt.Errorf("%w: bone named %q in skeleton %q", ErrItemNotFound, name, s.name)
	}
	return b, nil
}

// RootBones returns the parentless bones, derived lazily after hierarchy
// changes. Treat it as read-only.
func (s *Skeleton) RootBones() []*Bone {
	if s.rootBonesDirty {
		s.deriveRootBones()
	}
	return s.rootBones
}

// RootBone returns the first root bone.
func (s *Skeleton) RootBone() (*Bone, error) {
	roots := s.RootBones()
	if len(roots) == 0 {
		return nil, fmt.Errorf("%w: skeleton %q has no bones", ErrInvalidParameters, s.name)
	}
	return roots[0], nil
}

func (s *Skeleton) deriveRootBones() {
	s.rootBones = s.rootBones[:0]
	for _, b := range s.bones {
		if b != nil && b.parent == nil {
			s.rootBones = append(s.rootBones, b)
		}
	}
	s.rootBonesDirty = false
}

func (s *Skeleton) notifyHierarchyChanged() { s.rootBonesDirty = true }

func (s *Skeleton) notifyManualBoneStateChanged(b *Bone) {
	if b.manuallyControlled {
		s.manualBones[b] = struct{}{}
	} else {
		delete(s.manualBones, b)
	}
}

func (s *Skeleton) notifyManualBonesDirty() { s.manualBonesDirty = true }

// HasManualBones reports whether any bone is manually controlled.
func (s *Skeleton) HasManualBones() bool { return len(s.manualBones) > 0 }

// ManualBonesDirty reports whether a manual bone moved since the last
// transform update, callers use it to refresh even when animation state is
// unchanged.
func (s *Skeleton) ManualBonesDirty() bool { return s.manualBonesDirty }

// SetBindingPose fixes the current pose of every bone as the binding pose.
func (s *Skeleton) SetBindingPose() {
	s.UpdateTransforms()
	for _, b := range s.bones {
		if b != nil {
			b.SetBindingPose()
		}
	}
}

// Reset returns every bone to its binding pose. Manually controlled bones
// keep their state unless resetManualBones is set.
func (s *Skeleton) Reset(resetManualBones bool) {
	for _, b := range s.bones {
		if b == nil {
			continue
		}
		if !b.manuallyControlled || resetManualBones {
			b.ResetToInitialState()
		}
	}
}

// CreateAnimation adds an empty animation owned by this skeleton.
func (s *Skeleton) CreateAnimation(name string, length float32) (*Animation, error) {
	if _, ok := s.animations[name]; ok {
		return nil, fmt.Errorf("%w: animation named %q in skeleton %q", ErrDuplicateItem, name, s.name)
	}
	a := NewAnimation(name, length)
	a.setContainer(s)
	s.animations[name] = a
	s.animationOrder = append(s.animationOrder, a)
	return a, nil
}

// Animation returns the named animation, searching own animations first and
// linked sources after.
func (s *Skeleton) Animation(name string) (*Animation, error) {
	a, _ := s.animationImpl(name)
	if a == nil {
		return nil, fmt.Errorf("%w: animation named %q in skeleton %q", ErrItemNotFound, name, s.name)
	}
	return a, nil
}

// HasAnimation reports whether the named animation exists here or in a
// linked source.
func (s *Skeleton) HasAnimation(name string) bool {
	a, _ := s.animationImpl(name)
	return a != nil
}

// animationImpl is the tolerant lookup behind animation evaluation. It
// returns the linked source when the animation came from one, and nils on a
// miss.
func (s *Skeleton) animationImpl(name string) (*Animation, *LinkedSkeletonAnimationSource) {
	if a, ok := s.animations[name]; ok {
		return a, nil
	}
	for _, l := range s.linkedSources {
		s.resolveLinked(l)
		if l.Skeleton == nil {
			continue
		}
		if a, _ := l.Skeleton.animationImpl(name); a != nil {
			return a, l
		}
	}
	return nil, nil
}

func (s *Skeleton) resolveLinked(l *LinkedSkeletonAnimationSource) {
	if l.Skeleton != nil || s.provider == nil {
		return
	}
	if sk, err := s.provider.SkeletonByName(l.SkeletonName); err == nil {
		l.Skeleton = sk
	}
}

// RemoveAnimation removes an animation owned by this skeleton.
func (s *Skeleton) RemoveAnimation(name string) error {
	a, ok := s.animations[name]
	if !ok {
		return fmt.Errorf("%w: animation named %q in skeleton %q", ErrItemNotFound, name, s.name)
	}
	delete(s.animations, name)
	for i, o := range s.animationOrder {
		if o == a {
			s.animationOrder = append(s.animationOrder[:i], s.animationOrder[i+1:]...)
			break
		}
	}
	return nil
}

// AnimationCount returns the number of owned animations.
func (s *Skeleton) AnimationCount() int { return len(s.animationOrder) }

// Animations returns the owned animations in creation order. Treat it as
// read-only.
func (s *Skeleton) Animations() []*Animation { return s.animationOrder }

// AddLinkedSkeletonAnimationSource borrows animations from another skeleton
// with the same bone layout. Scale stretches the borrowed keyframe
// transforms for rigs of different proportions.
func (s *Skeleton) AddLinkedSkeletonAnimationSource(skeletonName string, scale float32) {
	s.linkedSources = append(s.linkedSources, &LinkedSkeletonAnimationSource{
		SkeletonName: skeletonName,
		Scale:        scale,
	})
}

// RemoveAllLinkedSkeletonAnimationSources drops every linked source.
func (s *Skeleton) RemoveAllLinkedSkeletonAnimationSources() { s.linkedSources = nil }

// LinkedSkeletonAnimationSources returns the linked sources. Treat it as
// read-only.
func (s *Skeleton) LinkedSkeletonAnimationSources() []*LinkedSkeletonAnimationSource {
	return s.linkedSources
}

// InitAnimationState fills set with a disabled state per available
// animation, including resolved linked sources.
func (s *Skeleton) InitAnimationState(set *AnimationStateSet) {
	set.RemoveAllAnimationStates()
	for _, a := range s.animationOrder {
		set.CreateAnimationState(a.name, 0, a.length, 1, false)
	}
	for _, l := range s.linkedSources {
		s.resolveLinked(l)
		if l.Skeleton == nil {
			continue
		}
		for _, a := range l.Skeleton.animationOrder {
			if !set.HasAnimationState(a.name) {
				set.CreateAnimationState(a.name, 0, a.length, 1, false)
			}
		}
	}
}

// SetAnimationState poses the skeleton from the enabled states in set. The
// skeleton resets to binding pose, then enabled animations apply in
// enabling order. In average mode weights summing above one are normalised.
// States naming animations this skeleton cannot resolve are skipped.
func (s *Skeleton) SetAnimationState(set *AnimationStateSet) error {
	s.Reset(false)

	weightFactor := float32(1)
	if s.blendMode == BlendAverage {
		var total float32
		for _, st := range set.EnabledAnimationStates() {
			if a, _ := s.animationImpl(st.Name()); a != nil {
				total += st.Weight()
			}
		}
		// Weights below one are allowed, animations may fade together.
		if total > 1 {
			weightFactor = 1 / total
		}
	}

	for _, st := range set.EnabledAnimationStates() {
		a, linked := s.animationImpl(st.Name())
		if a == nil {
			continue
		}
		scale := float32(1)
		if linked != nil {
			scale = linked.Scale
		}
		var err error
		if st.HasBlendMask() {
			err = a.ApplyToSkeletonWithMask(s, st.TimePosition(), st.Weight()*weightFactor, st.BlendMask(), scale)
		} else {
			err = a.ApplyToSkeleton(s, st.TimePosition(), st.Weight()*weightFactor, scale)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// UpdateTransforms recomputes every derived bone transform, parents before
// children.
func (s *Skeleton) UpdateTransforms() {
	for _, b := range s.RootBones() {
		b.update()
	}
	s.manualBonesDirty = false
}

// BoneMatrices fills out with the skinning matrix of every bone, indexed by
// handle. out must cover the bone list, nil slots produce identity.
func (s *Skeleton) BoneMatrices(out []math3.Mat4) {
	s.UpdateTransforms()
	for i, b := range s.bones {
		if b == nil {
			out[i] = math3.Identity()
			continue
		}
		out[i] = b.OffsetTransform()
	}
}

// OptimiseAllAnimations strips redundant keyframes from every animation.
// Unless preservingIdentityNodeTracks is set, node tracks that stay at the
// identity in every animation are removed entirely.
func (s *Skeleton) OptimiseAllAnimations(preservingIdentityNodeTracks bool) {
	if !preservingIdentityNodeTracks {
		// Start from every handle and strike out those that move in any
		// animation, the rest only ever hold identity tracks.
		identity := make(map[int]struct{}, len(s.bones))
		for h := range s.bones {
			identity[h] = struct{}{}
		}
		for _, a := range s.animationOrder {
			a.collectIdentityNodeTrackHandles(identity)
		}
		for _, a := range s.animationOrder {
			a.destroyNodeTracksIn(identity)
		}
	}
	for _, a := range s.animationOrder {
		a.Optimise(false)
	}
}

// Clone returns a deep copy of the skeleton under a new name. Bones,
// animations and linked sources are copied, the provider is shared.
func (s *Skeleton) Clone(newName string) *Skeleton {
	clone := NewSkeleton(newName)
	clone.blendMode = s.blendMode
	clone.provider = s.provider
	clone.nextAutoHandle = s.nextAutoHandle

	for _, b := range s.bones {
		if b == nil {
			continue
		}
		nb, err := clone.CreateBoneWithHandle(b.name, b.handle)
		if err != nil {
			panic(err)
		}
		nb.position = b.position
		nb.orientation = b.orientation
		nb.scale = b.scale
		nb.initialPosition = b.initialPosition
		nb.initialOrientation = b.initialOrientation
		nb.initialScale = b.initialScale
		nb.bindInversePosition = b.bindInversePosition
		nb.bindInverseOrientation = b.bindInverseOrientation
		nb.bindInverseScale = b.bindInverseScale
		nb.inheritOrientation = b.inheritOrientation
		nb.inheritScale = b.inheritScale
		if b.manuallyControlled {
			nb.SetManuallyControlled(true)
		}
	}
	for _, b := range s.bones {
		if b == nil || b.parent == nil {
			continue
		}
		parent := clone.bones[b.parent.handle]
		child := clone.bones[b.handle]
		child.parent = parent
		parent.children = append(parent.children, child)
	}
	clone.rootBonesDirty = true

	for _, a := range s.animationOrder {
		ca := a.Clone(a.name)
		ca.setContainer(clone)
		clone.animations[ca.name] = ca
		clone.animationOrder = append(clone.animationOrder, ca)
	}
	for _, l := range s.linkedSources {
		clone.AddLinkedSkeletonAnimationSource(l.SkeletonName, l.Scale)
	}
	return clone
}
