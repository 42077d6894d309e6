package anim

import (
	"fmt"

	"github.com/Faultbox/skelkit/pkg/math3"
)

// deltaTransform is the binding pose difference of one bone between two
// skeletons. Merged keyframes are shifted by it so derived transforms come
// out the same on the target rig.
type deltaTransform struct {
	translate  math3.Vec3
	rotate     math3.Quat
	scale      math3.Vec3
	isIdentity bool
}

// BuildBoneHandleMapByName maps source bone handles to this skeleton's
// handles by bone name. Source bones without a namesake here map to fresh
// handles past the current bone list, source slots holding no bone map to
// -1.
func (s *Skeleton) BuildBoneHandleMapByName(src *Skeleton) []int {
	m := make([]int, src.BoneCount())
	next := s.BoneCount()
	for h, b := range src.bones {
		if b == nil {
			m[h] = -1
			continue
		}
		if db, ok := s.bonesByName[b.name]; ok {
			m[h] = db.handle
		} else {
			m[h] = next
			next++
		}
	}
	return m
}

// MergeSkeletonAnimations copies animations from another skeleton into this
// one. boneHandleMap maps every source bone handle to a target handle,
// mapped handles past the current bone list cause the source bone to be
// cloned in. Keyframes are shifted by the binding pose difference of their
// bone so the merged animations pose the target rig like the source rig.
// animationNames selects which animations to copy, empty means all of them.
func (s *Skeleton) MergeSkeletonAnimations(src *Skeleton, boneHandleMap []int, animationNames []string) error {
	numSrcBones := src.BoneCount()

	if len(boneHandleMap) != numSrcBones {
		return fmt.Errorf("%w: bone handle map covers %d bones, source skeleton has %d",
			ErrInvalidParameters, len(boneHandleMap), numSrcBones)
	}

	// Source and target hierarchies must agree for shared bones: both
	// roots, or parents that map to each other.
	wasMissing := make([]bool, numSrcBones)
	missingBones := false
	for handle := 0; handle < numSrcBones; handle++ {
		srcBone := src.bones[handle]
		if srcBone == nil {
			continue
		}
		dstHandle := boneHandleMap[handle]
		dstBone := s.boneAt(dstHandle)
		if dstBone == nil {
			wasMissing[handle] = true
			missingBones = true
			continue
		}
		srcParent := srcBone.parent
		dstParent := dstBone.parent
		if (srcParent != nil || dstParent != nil) &&
			(srcParent == nil || dstParent == nil ||
				boneHandleMap[srcParent.handle] != dstParent.handle) {
			return fmt.Errorf("%w: hierarchy differs between bone %q and %q",
				ErrInvalidParameters, srcBone.name, dstBone.name)
		}
	}

	if missingBones {
		// Clone the missing bones with their source initial transforms.
		for handle := 0; handle < numSrcBones; handle++ {
			if !wasMissing[handle] {
				continue
			}
			srcBone := src.bones[handle]
			dstBone, err := s.CreateBoneWithHandle(srcBone.name, boneHandleMap[handle])
			if err != nil {
				return err
			}
			dstBone.SetPosition(srcBone.initialPosition)
			dstBone.SetOrientation(srcBone.initialOrientation)
			dstBone.SetScale(srcBone.initialScale)
			dstBone.SetInitialState()
		}

		// Link the clones to their parents.
		for handle := 0; handle < numSrcBones; handle++ {
			if !wasMissing[handle] {
				continue
			}
			srcBone := src.bones[handle]
			if srcBone.parent == nil {
				continue
			}
			dstParent := s.bones[boneHandleMap[srcBone.parent.handle]]
			if err := dstParent.AddChild(s.bones[boneHandleMap[handle]]); err != nil {
				return err
			}
		}

		s.notifyHierarchyChanged()
		s.Reset(true)
		s.SetBindingPose()
	}

	// For every shared bone the keyframes must be shifted by the binding
	// pose difference: dstKeyFrame = inverse(dstBind) * srcBind *
	// srcKeyFrame. Fresh clones bind identically, their delta is identity.
	deltas := make([]deltaTransform, numSrcBones)
	for handle := 0; handle < numSrcBones; handle++ {
		delta := &deltas[handle]
		srcBone := src.bones[handle]
		if srcBone == nil || wasMissing[handle] {
			delta.rotate = math3.QuatIdentity()
			delta.scale = math3.UnitScale()
			delta.isIdentity = true
			continue
		}
		dstBone := s.bones[boneHandleMap[handle]]
		delta.translate = srcBone.initialPosition.Sub(dstBone.initialPosition)
		delta.rotate = dstBone.initialOrientation.Inverse().Mul(srcBone.initialOrientation)
		delta.scale = srcBone.initialScale.Div(dstBone.initialScale)
		delta.isIdentity = delta.translate.ApproxEqual(math3.Vec3{}, transformTolerance) &&
			delta.scale.ApproxEqual(math3.UnitScale(), transformTolerance) &&
			delta.rotate.ApproxEqual(math3.QuatIdentity(), transformTolerance)
	}

	var srcAnimations []*Animation
	if len(animationNames) == 0 {
		srcAnimations = src.animationOrder
	} else {
		for _, name := range animationNames {
			a, linked := src.animationImpl(name)
			if a == nil || linked != nil {
				return fmt.Errorf("%w: animation named %q in skeleton %q", ErrItemNotFound, name, src.name)
			}
			srcAnimations = append(srcAnimations, a)
		}
	}

	for _, srcAnimation := range srcAnimations {
		dstAnimation, err := s.CreateAnimation(srcAnimation.name, srcAnimation.length)
		if err != nil {
			return err
		}
		dstAnimation.SetInterpolationMode(srcAnimation.interpolationMode)
		dstAnimation.SetRotationInterpolationMode(srcAnimation.rotationInterpolationMode)

		for handle := 0; handle < numSrcBones; handle++ {
			if src.bones[handle] == nil {
				continue
			}
			delta := &deltas[handle]
			dstHandle := boneHandleMap[handle]

			if srcAnimation.HasNodeTrack(handle) {
				srcTrack := srcAnimation.nodeTracks[handle]
				dstTrack, err := dstAnimation.CreateNodeTrack(dstHandle, s.bones[dstHandle])
				if err != nil {
					return err
				}
				dstTrack.SetUseShortestRotationPath(srcTrack.UseShortestRotationPath())

				for _, kf := range srcTrack.keyFrames {
					srcKeyFrame := kf.(*TransformKeyFrame)
					dstKeyFrame := dstTrack.CreateNodeKeyFrame(srcKeyFrame.time)
					if delta.isIdentity {
						dstKeyFrame.SetTranslate(srcKeyFrame.translate)
						dstKeyFrame.SetRotation(srcKeyFrame.rotate)
						dstKeyFrame.SetScale(srcKeyFrame.scale)
					} else {
						dstKeyFrame.SetTranslate(delta.translate.Add(srcKeyFrame.translate))
						dstKeyFrame.SetRotation(delta.rotate.Mul(srcKeyFrame.rotate))
						dstKeyFrame.SetScale(delta.scale.Mul(srcKeyFrame.scale))
					}
				}
			} else if !delta.isIdentity {
				// The source rig never animates this bone, a static track
				// holds the binding pose difference in place.
				dstTrack, err := dstAnimation.CreateNodeTrack(dstHandle, s.bones[dstHandle])
				if err != nil {
					return err
				}
				for _, t := range []float32{0, srcAnimation.length} {
					dstKeyFrame := dstTrack.CreateNodeKeyFrame(t)
					dstKeyFrame.SetTranslate(delta.translate)
					dstKeyFrame.SetRotation(delta.rotate)
					dstKeyFrame.SetScale(delta.scale)
				}
			}
		}
	}
	return nil
}
