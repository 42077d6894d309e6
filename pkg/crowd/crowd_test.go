package crowd

import (
	"math"
	"testing"

	"github.com/Faultbox/skelkit/pkg/anim"
	"github.com/Faultbox/skelkit/pkg/math3"
)

// buildProto returns a one-bone skeleton whose "walk" animation slides the
// root along +X by one unit per second.
func buildProto(t *testing.T) *anim.Skeleton {
	t.Helper()

	skel := anim.NewSkeleton("proto")
	root, err := skel.CreateBone("root")
	if err != nil {
		t.Fatalf("CreateBone failed: %v", err)
	}
	skel.SetBindingPose()

	walk, err := skel.CreateAnimation("walk", 1.0)
	if err != nil {
		t.Fatalf("CreateAnimation failed: %v", err)
	}
	track, err := walk.CreateNodeTrack(root.Handle(), root)
	if err != nil {
		t.Fatalf("CreateNodeTrack failed: %v", err)
	}
	track.CreateNodeKeyFrame(0).SetTranslate(math3.Vec3{})
	track.CreateNodeKeyFrame(1).SetTranslate(math3.Vec3{X: 1})

	return skel
}

func TestCrowdSpawn(t *testing.T) {
	proto := buildProto(t)
	c := New(Config{Workers: 1}, nil)

	a := c.Spawn(proto)
	b := c.Spawn(proto)

	if len(c.Actors()) != 2 {
		t.Fatalf("expected 2 actors, got %d", len(c.Actors()))
	}
	if a.Skeleton() == b.Skeleton() {
		t.Error("actors must not share a skeleton instance")
	}
	if a.Skeleton() == proto {
		t.Error("actor skeleton must be a clone, not the prototype")
	}
	if len(a.BoneMatrices()) != proto.BoneCount() {
		t.Errorf("expected %d bone matrices, got %d", proto.BoneCount(), len(a.BoneMatrices()))
	}
	if !a.States().HasAnimationState("walk") {
		t.Error("expected spawned actor to have a walk state")
	}
}

func TestCrowdAdvance(t *testing.T) {
	proto := buildProto(t)
	c := New(Config{Workers: 2}, nil)
	actor := c.Spawn(proto)

	st, err := actor.States().AnimationState("walk")
	if err != nil {
		t.Fatalf("AnimationState failed: %v", err)
	}
	st.SetEnabled(true)

	if err := c.Advance(0.5); err != nil {
		t.Fatalf("Advance failed: %v", err)
	}

	// Column-major, translation X in element 12.
	gotX := actor.BoneMatrices()[0][12]
	if math.Abs(float64(gotX-0.5)) > 1e-5 {
		t.Errorf("expected root translation X 0.5, got %v", gotX)
	}

	if err := c.Advance(0.25); err != nil {
		t.Fatalf("Advance failed: %v", err)
	}
	gotX = actor.BoneMatrices()[0][12]
	if math.Abs(float64(gotX-0.75)) > 1e-5 {
		t.Errorf("expected root translation X 0.75 after second frame, got %v", gotX)
	}
}

func TestCrowdActorIsolation(t *testing.T) {
	proto := buildProto(t)
	c := New(Config{Workers: 2}, nil)
	moving := c.Spawn(proto)
	idle := c.Spawn(proto)

	st, err := moving.States().AnimationState("walk")
	if err != nil {
		t.Fatalf("AnimationState failed: %v", err)
	}
	st.SetEnabled(true)

	if err := c.Advance(1.0); err != nil {
		t.Fatalf("Advance failed: %v", err)
	}

	if x := moving.BoneMatrices()[0][12]; math.Abs(float64(x-1)) > 1e-5 {
		t.Errorf("expected moving actor at X 1, got %v", x)
	}
	if x := idle.BoneMatrices()[0][12]; math.Abs(float64(x)) > 1e-5 {
		t.Errorf("expected idle actor unmoved, got X %v", x)
	}
}

func TestCrowdAdvanceEmpty(t *testing.T) {
	c := New(Config{}, nil)
	if err := c.Advance(0.1); err != nil {
		t.Fatalf("Advance on empty crowd failed: %v", err)
	}
}
