package anim

import (
	"fmt"

	"github.com/Faultbox/skelkit/pkg/math3"
)

// Bone is one node in a skeleton hierarchy. Local transform components are
// relative to the parent bone, derived components are model-space and
// cached until a local change dirties them. Bones are created through their
// skeleton, never directly.
type Bone struct {
	handle  int
	name    string
	creator *Skeleton

	parent   *Bone
	children []*Bone

	position    math3.Vec3
	orientation math3.Quat
	scale       math3.Vec3

	inheritOrientation bool
	inheritScale       bool

	initialPosition    math3.Vec3
	initialOrientation math3.Quat
	initialScale       math3.Vec3

	derivedPosition    math3.Vec3
	derivedOrientation math3.Quat
	derivedScale       math3.Vec3
	derivedDirty       bool

	bindInversePosition    math3.Vec3
	bindInverseOrientation math3.Quat
	bindInverseScale       math3.Vec3

	manuallyControlled bool
}

func newBone(creator *Skeleton, handle int, name string) *Bone {
	return &Bone{
		handle:                 handle,
		name:                   name,
		creator:                creator,
		orientation:            math3.QuatIdentity(),
		scale:                  math3.UnitScale(),
		inheritOrientation:     true,
		inheritScale:           true,
		initialOrientation:     math3.QuatIdentity(),
		initialScale:           math3.UnitScale(),
		derivedDirty:           true,
		bindInverseOrientation: math3.QuatIdentity(),
		bindInverseScale:       math3.UnitScale(),
	}
}

// Handle returns the bone's index in its skeleton.
func (b *Bone) Handle() int { return b.handle }

// Name returns the bone name.
func (b *Bone) Name() string { return b.name }

// Parent returns the parent bone, nil for roots.
func (b *Bone) Parent() *Bone { return b.parent }

// Children returns the child bones. Treat it as read-only.
func (b *Bone) Children() []*Bone { return b.children }

// CreateChild creates a bone through the skeleton and links it under this
// bone with the given local offset.
func (b *Bone) CreateChild(handle int, name string, translate math3.Vec3, rotate math3.Quat) (*Bone, error) {
	child, err := b.creator.CreateBoneWithHandle(name, handle)
	if err != nil {
		return nil, err
	}
	child.Translate(translate)
	child.Rotate(rotate)
	if err := b.AddChild(child); err != nil {
		return nil, err
	}
	return child, nil
}

// AddChild links an existing parentless bone under this bone.
func (b *Bone) AddChild(child *Bone) error {
	if child.parent != nil {
		return fmt.Errorf("%w: bone %q already has parent %q", ErrInvalidParameters, child.name, child.parent.name)
	}
	child.parent = b
	b.children = append(b.children, child)
	child.needUpdate()
	if b.creator != nil {
		b.creator.notifyHierarchyChanged()
	}
	return nil
}

// Position returns the local position.
func (b *Bone) Position() math3.Vec3 { return b.position }

// SetPosition replaces the local position.
func (b *Bone) SetPosition(v math3.Vec3) {
	b.position = v
	b.needUpdate()
}

// Orientation returns the local orientation.
func (b *Bone) Orientation() math3.Quat { return b.orientation }

// SetOrientation replaces the local orientation.
func (b *Bone) SetOrientation(q math3.Quat) {
	b.orientation = q
	b.needUpdate()
}

// Scale returns the local scale.
func (b *Bone) Scale() math3.Vec3 { return b.scale }

// SetScale replaces the local scale.
func (b *Bone) SetScale(v math3.Vec3) {
	b.scale = v
	b.needUpdate()
}

// Translate moves the bone by d in parent space.
func (b *Bone) Translate(d math3.Vec3) {
	b.position = b.position.Add(d)
	b.needUpdate()
}

// Rotate turns the bone by q in local space.
func (b *Bone) Rotate(q math3.Quat) {
	b.orientation = b.orientation.Mul(q)
	b.needUpdate()
}

// ScaleBy multiplies the local scale componentwise by s.
func (b *Bone) ScaleBy(s math3.Vec3) {
	b.scale = b.scale.Mul(s)
	b.needUpdate()
}

// InheritOrientation reports whether the bone combines its orientation with
// the parent's.
func (b *Bone) InheritOrientation() bool { return b.inheritOrientation }

// SetInheritOrientation toggles orientation inheritance.
func (b *Bone) SetInheritOrientation(inherit bool) {
	b.inheritOrientation = inherit
	b.needUpdate()
}

// InheritScale reports whether the bone combines its scale with the
// parent's.
func (b *Bone) InheritScale() bool { return b.inheritScale }

// SetInheritScale toggles scale inheritance.
func (b *Bone) SetInheritScale(inherit bool) {
	b.inheritScale = inherit
	b.needUpdate()
}

// ManuallyControlled reports whether the bone is excluded from animation
// resets.
func (b *Bone) ManuallyControlled() bool { return b.manuallyControlled }

// SetManuallyControlled hands the bone over to application control.
// Blending leaves manual bones alone unless a reset asks for them.
func (b *Bone) SetManuallyControlled(manual bool) {
	b.manuallyControlled = manual
	if b.creator != nil {
		b.creator.notifyManualBoneStateChanged(b)
	}
}

// SetInitialState snapshots the current local transform as the reset state.
func (b *Bone) SetInitialState() {
	b.initialPosition = b.position
	b.initialOrientation = b.orientation
	b.initialScale = b.scale
}

// InitialPosition returns the local position captured by SetInitialState.
func (b *Bone) InitialPosition() math3.Vec3 { return b.initialPosition }

// InitialOrientation returns the local orientation captured by
// SetInitialState.
func (b *Bone) InitialOrientation() math3.Quat { return b.initialOrientation }

// InitialScale returns the local scale captured by SetInitialState.
func (b *Bone) InitialScale() math3.Vec3 { return b.initialScale }

// ResetToInitialState restores the snapshot taken by SetInitialState.
func (b *Bone) ResetToInitialState() {
	b.position = b.initialPosition
	b.orientation = b.initialOrientation
	b.scale = b.initialScale
	b.needUpdate()
}

// SetBindingPose fixes the current pose as the binding pose: the reset
// state for animation and the reference the offset transform is relative
// to.
func (b *Bone) SetBindingPose() {
	b.SetInitialState()
	b.bindInversePosition = b.DerivedPosition().Scale(-1)
	b.bindInverseScale = math3.UnitScale().Div(b.DerivedScale())
	b.bindInverseOrientation = b.DerivedOrientation().Inverse()
}

// needUpdate dirties the derived transform of this bone and its subtree. A
// bone already dirty implies a dirty subtree, recursion stops there.
func (b *Bone) needUpdate() {
	if b.manuallyControlled && b.creator != nil {
		b.creator.notifyManualBonesDirty()
	}
	if b.derivedDirty {
		return
	}
	b.derivedDirty = true
	for _, c := range b.children {
		c.needUpdate()
	}
}

// DerivedPosition returns the model-space position.
func (b *Bone) DerivedPosition() math3.Vec3 {
	if b.derivedDirty {
		b.updateFromParent()
	}
	return b.derivedPosition
}

// DerivedOrientation returns the model-space orientation.
func (b *Bone) DerivedOrientation() math3.Quat {
	if b.derivedDirty {
		b.updateFromParent()
	}
	return b.derivedOrientation
}

// DerivedScale returns the model-space scale.
func (b *Bone) DerivedScale() math3.Vec3 {
	if b.derivedDirty {
		b.updateFromParent()
	}
	return b.derivedScale
}

func (b *Bone) updateFromParent() {
	if b.parent != nil {
		parentOrientation := b.parent.DerivedOrientation()
		if b.inheritOrientation {
			b.derivedOrientation = parentOrientation.Mul(b.orientation)
		} else {
			b.derivedOrientation = b.orientation
		}

		parentScale := b.parent.DerivedScale()
		if b.inheritScale {
			// Scales combine as equivalent axes, no shearing.
			b.derivedScale = parentScale.Mul(b.scale)
		} else {
			b.derivedScale = b.scale
		}

		// Position picks up the parent's orientation and scale.
		b.derivedPosition = parentOrientation.Rotate(parentScale.Mul(b.position))
		b.derivedPosition = b.derivedPosition.Add(b.parent.DerivedPosition())
	} else {
		b.derivedOrientation = b.orientation
		b.derivedPosition = b.position
		b.derivedScale = b.scale
	}
	b.derivedDirty = false
}

// update recomputes the derived transforms of this bone and its subtree,
// parents first.
func (b *Bone) update() {
	b.updateFromParent()
	for _, c := range b.children {
		c.update()
	}
}

// OffsetTransform returns the matrix mapping binding-pose model space to
// current model space, the per-bone matrix vertex skinning consumes.
func (b *Bone) OffsetTransform() math3.Mat4 {
	// Composing the current derived transform with the binding pose
	// inverse. Translation is relative to scale and rotation, so the bind
	// inverse position is carried through both.
	locScale := b.DerivedScale().Mul(b.bindInverseScale)
	locRotate := b.DerivedOrientation().Mul(b.bindInverseOrientation)
	locTranslate := b.DerivedPosition().Add(locRotate.Rotate(locScale.Mul(b.bindInversePosition)))
	return math3.TRS(locTranslate, locRotate, locScale)
}
