package anim

import (
	"errors"
	"testing"

	"github.com/chewxy/math32"

	"github.com/Faultbox/skelkit/pkg/math3"
)

func TestBuildBoneHandleMapByName(t *testing.T) {
	src := NewSkeleton("src")
	src.CreateBone("hip")
	src.CreateBone("tail")
	src.CreateBoneWithHandle("prop", 3)

	dst := NewSkeleton("dst")
	dst.CreateBone("hip")
	dst.CreateBone("chest")

	m := dst.BuildBoneHandleMapByName(src)
	if len(m) != 4 {
		t.Fatalf("map length = %d, want 4", len(m))
	}
	if m[0] != 0 {
		t.Errorf("hip maps to %d, want 0", m[0])
	}
	// Unmatched source bones get fresh handles past the current list.
	if m[1] != 2 {
		t.Errorf("tail maps to %d, want 2", m[1])
	}
	if m[2] != -1 {
		t.Errorf("empty slot maps to %d, want -1", m[2])
	}
	if m[3] != 3 {
		t.Errorf("prop maps to %d, want 3", m[3])
	}
}

func TestMergeMapLengthMismatch(t *testing.T) {
	src := NewSkeleton("src")
	src.CreateBone("hip")
	src.CreateBone("tail")
	dst := NewSkeleton("dst")
	dst.CreateBone("hip")

	err := dst.MergeSkeletonAnimations(src, []int{0}, nil)
	if !errors.Is(err, ErrInvalidParameters) {
		t.Errorf("MergeSkeletonAnimations() error = %v, want ErrInvalidParameters", err)
	}
}

func TestMergeHierarchyMismatch(t *testing.T) {
	src := NewSkeleton("src")
	srcHip, _ := src.CreateBone("hip")
	srcTail, _ := src.CreateBone("tail")
	srcHip.AddChild(srcTail)
	src.SetBindingPose()

	dst := NewSkeleton("dst")
	dst.CreateBone("hip")
	dst.CreateBone("tail")
	dst.SetBindingPose()

	err := dst.MergeSkeletonAnimations(src, dst.BuildBoneHandleMapByName(src), nil)
	if !errors.Is(err, ErrInvalidParameters) {
		t.Errorf("MergeSkeletonAnimations() error = %v, want ErrInvalidParameters", err)
	}
}

func TestMergeIdenticalRigsCopiesVerbatim(t *testing.T) {
	src := NewSkeleton("src")
	srcHip, _ := src.CreateBone("hip")
	src.SetBindingPose()
	walk, _ := src.CreateAnimation("walk", 2)
	walk.SetInterpolationMode(InterpolationSpline)
	walk.SetRotationInterpolationMode(RotationInterpolationSpherical)
	track, _ := walk.CreateNodeTrack(0, srcHip)
	track.CreateNodeKeyFrame(0)
	track.CreateNodeKeyFrame(2).SetTranslate(math3.Vec3{X: 5})

	dst := NewSkeleton("dst")
	dst.CreateBone("hip")
	dst.SetBindingPose()

	if err := dst.MergeSkeletonAnimations(src, dst.BuildBoneHandleMapByName(src), nil); err != nil {
		t.Fatalf("MergeSkeletonAnimations() error = %v", err)
	}

	merged, err := dst.Animation("walk")
	if err != nil {
		t.Fatalf("merged animation missing: %v", err)
	}
	if merged.InterpolationMode() != InterpolationSpline ||
		merged.RotationInterpolationMode() != RotationInterpolationSpherical {
		t.Error("interpolation modes not carried over")
	}
	mergedTrack, err := merged.NodeTrack(0)
	if err != nil {
		t.Fatalf("merged track missing: %v", err)
	}
	if mergedTrack.KeyFrameCount() != 2 {
		t.Fatalf("merged KeyFrameCount() = %d, want 2", mergedTrack.KeyFrameCount())
	}
	kf, _ := mergedTrack.NodeKeyFrame(1)
	if !kf.Translate().ApproxEqual(math3.Vec3{X: 5}, 1e-6) {
		t.Errorf("merged keyframe translate = %v, want {5 0 0}", kf.Translate())
	}
}

func TestMergeShiftsKeyFramesByBindingDelta(t *testing.T) {
	rot := math3.QuatFromAxisAngle(math3.Vec3{Y: 1}, math32.Pi/2)

	src := NewSkeleton("src")
	srcHip, _ := src.CreateBone("hip")
	srcHip.SetPosition(math3.Vec3{Y: 1})
	srcHip.SetOrientation(rot)
	src.SetBindingPose()
	walk, _ := src.CreateAnimation("walk", 2)
	track, _ := walk.CreateNodeTrack(0, srcHip)
	track.CreateNodeKeyFrame(0)
	track.CreateNodeKeyFrame(2).SetTranslate(math3.Vec3{X: 5})

	dst := NewSkeleton("dst")
	dstHip, _ := dst.CreateBone("hip")
	dstHip.SetPosition(math3.Vec3{Y: 2})
	dst.SetBindingPose()

	if err := dst.MergeSkeletonAnimations(src, dst.BuildBoneHandleMapByName(src), nil); err != nil {
		t.Fatalf("MergeSkeletonAnimations() error = %v", err)
	}

	merged, _ := dst.Animation("walk")
	mergedTrack, _ := merged.NodeTrack(0)
	kf0, _ := mergedTrack.NodeKeyFrame(0)
	if !kf0.Translate().ApproxEqual(math3.Vec3{Y: -1}, 1e-5) {
		t.Errorf("keyframe 0 translate = %v, want {0 -1 0}", kf0.Translate())
	}
	if !kf0.Rotation().ApproxEqual(rot, 1e-4) {
		t.Errorf("keyframe 0 rotation = %v, want the source binding rotation", kf0.Rotation())
	}
	kf1, _ := mergedTrack.NodeKeyFrame(1)
	if !kf1.Translate().ApproxEqual(math3.Vec3{X: 5, Y: -1}, 1e-5) {
		t.Errorf("keyframe 1 translate = %v, want {5 -1 0}", kf1.Translate())
	}

	// Posing the target reproduces the source world transform.
	set := NewAnimationStateSet()
	dst.InitAnimationState(set)
	state, _ := set.AnimationState("walk")
	state.SetEnabled(true)
	state.SetTimePosition(2)
	if err := dst.SetAnimationState(set); err != nil {
		t.Fatalf("SetAnimationState() error = %v", err)
	}
	if got := dstHip.DerivedPosition(); !got.ApproxEqual(math3.Vec3{X: 5, Y: 1}, 1e-4) {
		t.Errorf("posed DerivedPosition() = %v, want {5 1 0}", got)
	}
	if got := dstHip.DerivedOrientation(); !got.ApproxEqual(rot, 1e-3) {
		t.Errorf("posed DerivedOrientation() = %v, want the source rotation", got)
	}
}

func TestMergeSynthesisesStaticTracks(t *testing.T) {
	src := NewSkeleton("src")
	srcHip, _ := src.CreateBone("hip")
	srcProp, _ := src.CreateBone("prop")
	srcProp.SetPosition(math3.Vec3{X: 3})
	src.SetBindingPose()
	walk, _ := src.CreateAnimation("walk", 2)
	track, _ := walk.CreateNodeTrack(0, srcHip)
	track.CreateNodeKeyFrame(0)
	track.CreateNodeKeyFrame(2).SetTranslate(math3.Vec3{X: 5})

	dst := NewSkeleton("dst")
	dst.CreateBone("hip")
	dstProp, _ := dst.CreateBone("prop")
	dstProp.SetPosition(math3.Vec3{X: 4})
	dst.SetBindingPose()

	if err := dst.MergeSkeletonAnimations(src, dst.BuildBoneHandleMapByName(src), nil); err != nil {
		t.Fatalf("MergeSkeletonAnimations() error = %v", err)
	}

	// The source never animates the prop, but its binding pose differs, so
	// the merged animation pins it with a constant track.
	merged, _ := dst.Animation("walk")
	staticTrack, err := merged.NodeTrack(1)
	if err != nil {
		t.Fatalf("static track missing: %v", err)
	}
	if staticTrack.KeyFrameCount() != 2 {
		t.Fatalf("static track KeyFrameCount() = %d, want 2", staticTrack.KeyFrameCount())
	}
	for i := 0; i < 2; i++ {
		kf, _ := staticTrack.NodeKeyFrame(i)
		if !kf.Translate().ApproxEqual(math3.Vec3{X: -1}, 1e-5) {
			t.Errorf("static keyframe %d translate = %v, want {-1 0 0}", i, kf.Translate())
		}
	}
	kf0, _ := staticTrack.NodeKeyFrame(0)
	kf1, _ := staticTrack.NodeKeyFrame(1)
	if kf0.Time() != 0 || kf1.Time() != 2 {
		t.Errorf("static keyframe times = %v, %v, want 0, 2", kf0.Time(), kf1.Time())
	}
}

func TestMergeIgnoresTinyBindingDifferences(t *testing.T) {
	src := NewSkeleton("src")
	srcHip, _ := src.CreateBone("hip")
	srcProp, _ := src.CreateBone("prop")
	srcProp.SetPosition(math3.Vec3{X: 3})
	src.SetBindingPose()
	walk, _ := src.CreateAnimation("walk", 2)
	track, _ := walk.CreateNodeTrack(0, srcHip)
	track.CreateNodeKeyFrame(0)
	track.CreateNodeKeyFrame(2).SetTranslate(math3.Vec3{X: 5})

	dst := NewSkeleton("dst")
	dst.CreateBone("hip")
	dstProp, _ := dst.CreateBone("prop")
	dstProp.SetPosition(math3.Vec3{X: 3.0005})
	dst.SetBindingPose()

	if err := dst.MergeSkeletonAnimations(src, dst.BuildBoneHandleMapByName(src), nil); err != nil {
		t.Fatalf("MergeSkeletonAnimations() error = %v", err)
	}
	merged, _ := dst.Animation("walk")
	if merged.HasNodeTrack(1) {
		t.Error("static track synthesised for a sub-tolerance binding difference")
	}
}

func TestMergeClonesMissingBones(t *testing.T) {
	src := NewSkeleton("src")
	srcHip, _ := src.CreateBone("hip")
	srcTail, _ := src.CreateBone("tail")
	srcHip.AddChild(srcTail)
	srcTail.SetPosition(math3.Vec3{Z: -2})
	src.SetBindingPose()
	walk, _ := src.CreateAnimation("walk", 2)
	track, _ := walk.CreateNodeTrack(1, srcTail)
	track.CreateNodeKeyFrame(0)
	track.CreateNodeKeyFrame(2).SetTranslate(math3.Vec3{X: 1})

	dst := NewSkeleton("dst")
	dst.CreateBone("hip")
	dst.SetBindingPose()

	if err := dst.MergeSkeletonAnimations(src, dst.BuildBoneHandleMapByName(src), nil); err != nil {
		t.Fatalf("MergeSkeletonAnimations() error = %v", err)
	}

	if dst.BoneCount() != 2 {
		t.Fatalf("BoneCount() after merge = %d, want 2", dst.BoneCount())
	}
	tail, err := dst.BoneByName("tail")
	if err != nil {
		t.Fatalf("cloned bone missing: %v", err)
	}
	if tail.Parent() == nil || tail.Parent().Name() != "hip" {
		t.Error("cloned bone not linked under its mapped parent")
	}
	if !tail.Position().ApproxEqual(math3.Vec3{Z: -2}, 1e-6) {
		t.Errorf("cloned bone position = %v, want {0 0 -2}", tail.Position())
	}

	// A fresh clone binds exactly like the source, keyframes copy verbatim.
	merged, _ := dst.Animation("walk")
	mergedTrack, err := merged.NodeTrack(1)
	if err != nil {
		t.Fatalf("merged track missing: %v", err)
	}
	kf, _ := mergedTrack.NodeKeyFrame(1)
	if !kf.Translate().ApproxEqual(math3.Vec3{X: 1}, 1e-6) {
		t.Errorf("merged keyframe translate = %v, want {1 0 0}", kf.Translate())
	}
}

func TestMergeNamedSubset(t *testing.T) {
	src := NewSkeleton("src")
	srcHip, _ := src.CreateBone("hip")
	src.SetBindingPose()
	for _, name := range []string{"walk", "run"} {
		a, _ := src.CreateAnimation(name, 2)
		at, _ := a.CreateNodeTrack(0, srcHip)
		at.CreateNodeKeyFrame(0)
		at.CreateNodeKeyFrame(2).SetTranslate(math3.Vec3{X: 1})
	}

	dst := NewSkeleton("dst")
	dst.CreateBone("hip")
	dst.SetBindingPose()
	m := dst.BuildBoneHandleMapByName(src)

	if err := dst.MergeSkeletonAnimations(src, m, []string{"walk"}); err != nil {
		t.Fatalf("MergeSkeletonAnimations() error = %v", err)
	}
	if !dst.HasAnimation("walk") || dst.HasAnimation("run") {
		t.Error("named subset not respected")
	}

	if err := dst.MergeSkeletonAnimations(src, m, []string{"swim"}); !errors.Is(err, ErrItemNotFound) {
		t.Errorf("unknown animation error = %v, want ErrItemNotFound", err)
	}

	// Merging the same animation twice collides with the first copy.
	if err := dst.MergeSkeletonAnimations(src, m, []string{"walk"}); !errors.Is(err, ErrDuplicateItem) {
		t.Errorf("repeated merge error = %v, want ErrDuplicateItem", err)
	}
}

func TestMergeRejectsLinkedAnimations(t *testing.T) {
	lib := NewSkeleton("lib")
	lib.CreateBone("hip")
	lib.CreateAnimation("wave", 1)

	src := NewSkeleton("src")
	src.CreateBone("hip")
	src.SetBindingPose()
	src.SetProvider(skeletonLibrary{"lib": lib})
	src.AddLinkedSkeletonAnimationSource("lib", 1)

	dst := NewSkeleton("dst")
	dst.CreateBone("hip")
	dst.SetBindingPose()

	err := dst.MergeSkeletonAnimations(src, dst.BuildBoneHandleMapByName(src), []string{"wave"})
	if !errors.Is(err, ErrItemNotFound) {
		t.Errorf("MergeSkeletonAnimations() error = %v, want ErrItemNotFound", err)
	}
}
