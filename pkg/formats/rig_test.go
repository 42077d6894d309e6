package formats

import (
	"errors"
	"testing"

	"github.com/Faultbox/skelkit/pkg/anim"
	"github.com/Faultbox/skelkit/pkg/math3"
)

func TestParseRig(t *testing.T) {
	doc := `
name: biped
blend_mode: cumulative
bones:
  - name: root
    position: [0, 1, 0]
  - name: arm
    parent: root
    position: [0.5, 0, 0]
    rotation: [0, 0, 0.247404, 0.968912]
    scale: [2, 2, 2]
    inherit_scale: false
animations:
  - name: wave
    length: 1.5
    rotation_interpolation: spherical
    tracks:
      - bone: arm
        keyframes:
          - time: 0
          - time: 1.5
            translate: [1, 0, 0]
            scale: [1.5, 1.5, 1.5]
`

	skel, err := ParseRig([]byte(doc))
	if err != nil {
		t.Fatalf("ParseRig failed: %v", err)
	}

	if skel.Name() != "biped" {
		t.Errorf("expected name 'biped', got %q", skel.Name())
	}
	if skel.BlendMode() != anim.BlendCumulative {
		t.Errorf("expected cumulative blend mode, got %v", skel.BlendMode())
	}
	if skel.BoneCount() != 2 {
		t.Fatalf("expected 2 bones, got %d", skel.BoneCount())
	}

	arm, err := skel.BoneByName("arm")
	if err != nil {
		t.Fatalf("arm bone missing: %v", err)
	}
	if arm.Parent() == nil || arm.Parent().Name() != "root" {
		t.Error("expected arm to be parented to root")
	}
	if arm.InheritScale() {
		t.Error("expected arm inherit scale to be false")
	}
	if !arm.InheritOrientation() {
		t.Error("expected arm inherit orientation to default to true")
	}
	if !arm.InitialScale().ApproxEqual(math3.Vec3{X: 2, Y: 2, Z: 2}, 1e-6) {
		t.Errorf("expected arm bind scale (2,2,2), got %v", arm.InitialScale())
	}

	a, err := skel.Animation("wave")
	if err != nil {
		t.Fatalf("wave animation missing: %v", err)
	}
	if a.Length() != 1.5 {
		t.Errorf("expected length 1.5, got %f", a.Length())
	}
	if a.RotationInterpolationMode() != anim.RotationInterpolationSpherical {
		t.Errorf("expected spherical rotation interpolation, got %v", a.RotationInterpolationMode())
	}

	track, err := a.NodeTrack(arm.Handle())
	if err != nil {
		t.Fatalf("track missing: %v", err)
	}
	if track.KeyFrameCount() != 2 {
		t.Fatalf("expected 2 keyframes, got %d", track.KeyFrameCount())
	}

	// Omitted keyframe fields fall back to no-delta values.
	k0, err := track.NodeKeyFrame(0)
	if err != nil {
		t.Fatalf("keyframe 0 missing: %v", err)
	}
	if k0.Translate() != (math3.Vec3{}) {
		t.Errorf("expected zero translate, got %v", k0.Translate())
	}
	if k0.Rotation() != math3.QuatIdentity() {
		t.Errorf("expected identity rotation, got %v", k0.Rotation())
	}
	if k0.Scale() != math3.UnitScale() {
		t.Errorf("expected unit scale, got %v", k0.Scale())
	}

	k1, err := track.NodeKeyFrame(1)
	if err != nil {
		t.Fatalf("keyframe 1 missing: %v", err)
	}
	if !k1.Translate().ApproxEqual(math3.Vec3{X: 1}, 1e-6) {
		t.Errorf("expected translate (1,0,0), got %v", k1.Translate())
	}
}

func TestParseRig_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{
			name: "invalid yaml",
			doc:  "name: [unclosed",
		},
		{
			name: "bad blend mode",
			doc:  "name: x\nblend_mode: maximum\nbones:\n  - name: root\n",
		},
		{
			name: "unnamed bone",
			doc:  "name: x\nbones:\n  - position: [1, 0, 0]\n",
		},
		{
			name: "unknown parent",
			doc:  "name: x\nbones:\n  - name: a\n    parent: missing\n",
		},
		{
			name: "child before parent",
			doc:  "name: x\nbones:\n  - name: a\n    parent: b\n  - name: b\n",
		},
		{
			name: "duplicate bone",
			doc:  "name: x\nbones:\n  - name: a\n  - name: a\n",
		},
		{
			name: "wrong vector arity",
			doc:  "name: x\nbones:\n  - name: a\n    position: [1, 2]\n",
		},
		{
			name: "bad interpolation",
			doc:  "name: x\nbones:\n  - name: a\nanimations:\n  - name: w\n    length: 1\n    interpolation: cubic\n",
		},
		{
			name: "track on unknown bone",
			doc:  "name: x\nbones:\n  - name: a\nanimations:\n  - name: w\n    length: 1\n    tracks:\n      - bone: nope\n        keyframes: []\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseRig([]byte(tt.doc)); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestRigRoundTrip(t *testing.T) {
	skel := buildTestSkeleton(t)

	data, err := WriteRig(skel)
	if err != nil {
		t.Fatalf("WriteRig failed: %v", err)
	}

	parsed, err := ParseRig(data)
	if err != nil {
		t.Fatalf("ParseRig of written document failed: %v", err)
	}

	if parsed.Name() != skel.Name() {
		t.Errorf("expected name %q, got %q", skel.Name(), parsed.Name())
	}
	if parsed.BlendMode() != skel.BlendMode() {
		t.Errorf("expected blend mode %v, got %v", skel.BlendMode(), parsed.BlendMode())
	}
	if parsed.BoneCount() != skel.BoneCount() {
		t.Fatalf("expected %d bones, got %d", skel.BoneCount(), parsed.BoneCount())
	}

	arm, err := parsed.BoneByName("arm")
	if err != nil {
		t.Fatalf("arm bone missing: %v", err)
	}
	orig, _ := skel.BoneByName("arm")
	if !arm.InitialPosition().ApproxEqual(orig.InitialPosition(), 1e-6) {
		t.Errorf("expected bind position %v, got %v", orig.InitialPosition(), arm.InitialPosition())
	}
	if !arm.InitialOrientation().ApproxEqual(orig.InitialOrientation(), 1e-5) {
		t.Errorf("expected bind orientation %v, got %v", orig.InitialOrientation(), arm.InitialOrientation())
	}
	if arm.InheritScale() != orig.InheritScale() {
		t.Error("inherit scale flag lost in round trip")
	}

	a, err := parsed.Animation("walk")
	if err != nil {
		t.Fatalf("walk animation missing: %v", err)
	}
	track, err := a.NodeTrack(arm.Handle())
	if err != nil {
		t.Fatalf("track missing: %v", err)
	}
	if track.UseShortestRotationPath() {
		t.Error("shortest path flag lost in round trip")
	}
	kf, err := track.NodeKeyFrame(1)
	if err != nil {
		t.Fatalf("keyframe 1 missing: %v", err)
	}
	if !kf.Translate().ApproxEqual(math3.Vec3{X: 1}, 1e-6) {
		t.Errorf("expected translate (1,0,0), got %v", kf.Translate())
	}
	if !kf.Scale().ApproxEqual(math3.Vec3{X: 1.5, Y: 1.5, Z: 1.5}, 1e-6) {
		t.Errorf("expected scale (1.5,1.5,1.5), got %v", kf.Scale())
	}
}

func TestParseRig_SentinelError(t *testing.T) {
	_, err := ParseRig([]byte("name: x\nblend_mode: maximum\n"))
	if !errors.Is(err, ErrInvalidRigDocument) {
		t.Errorf("expected ErrInvalidRigDocument, got %v", err)
	}
}
