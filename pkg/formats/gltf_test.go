package formats

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/qmuntal/gltf"

	"github.com/Faultbox/skelkit/pkg/anim"
	"github.com/Faultbox/skelkit/pkg/math3"
)

func floatBytes(values ...float32) []byte {
	out := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(out[i*4:i*4+4], math.Float32bits(v))
	}
	return out
}

// buildTestDocument returns a two-joint skin with one animation: a
// translation channel on the arm joint and a morph weight channel on a face
// node outside the skin.
func buildTestDocument() *gltf.Document {
	var buf []byte
	buf = append(buf, floatBytes(0, 1)...)                 // key times
	buf = append(buf, floatBytes(0.5, 0, 0, 1.5, 0, 0)...) // arm translations (absolute)
	buf = append(buf, floatBytes(0.2, 0, 0.8, 0.4)...)     // morph weights, 2 targets

	return &gltf.Document{
		Nodes: []*gltf.Node{
			{Name: "root", Translation: [3]float32{0, 1, 0}, Children: []uint32{1}},
			{Name: "arm", Translation: [3]float32{0.5, 0, 0}},
			{Name: "face"},
		},
		Skins: []*gltf.Skin{
			{Name: "biped", Joints: []uint32{0, 1}},
		},
		Buffers: []*gltf.Buffer{
			{ByteLength: uint32(len(buf)), Data: buf},
		},
		BufferViews: []*gltf.BufferView{
			{Buffer: 0, ByteOffset: 0, ByteLength: 8},
			{Buffer: 0, ByteOffset: 8, ByteLength: 24},
			{Buffer: 0, ByteOffset: 32, ByteLength: 16},
		},
		Accessors: []*gltf.Accessor{
			{BufferView: gltf.Index(0), ComponentType: gltf.ComponentFloat, Count: 2, Type: gltf.AccessorScalar},
			{BufferView: gltf.Index(1), ComponentType: gltf.ComponentFloat, Count: 2, Type: gltf.AccessorVec3},
			{BufferView: gltf.Index(2), ComponentType: gltf.ComponentFloat, Count: 4, Type: gltf.AccessorScalar},
		},
		Animations: []*gltf.Animation{
			{
				Name: "walk",
				Samplers: []*gltf.AnimationSampler{
					{Input: gltf.Index(0), Output: gltf.Index(1), Interpolation: gltf.InterpolationLinear},
					{Input: gltf.Index(0), Output: gltf.Index(2), Interpolation: gltf.InterpolationLinear},
				},
				Channels: []*gltf.Channel{
					{
						Sampler: gltf.Index(0),
						Target:  gltf.ChannelTarget{Node: gltf.Index(1), Path: gltf.TRSTranslation},
					},
					{
						Sampler: gltf.Index(1),
						Target:  gltf.ChannelTarget{Node: gltf.Index(2), Path: gltf.TRSWeights},
					},
				},
			},
		},
	}
}

func TestImportGLTF(t *testing.T) {
	skel, err := ImportGLTF(buildTestDocument(), "")
	if err != nil {
		t.Fatalf("ImportGLTF failed: %v", err)
	}

	if skel.Name() != "biped" {
		t.Errorf("expected name 'biped', got %q", skel.Name())
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
	if !arm.InitialPosition().ApproxEqual(math3.Vec3{X: 0.5}, 1e-6) {
		t.Errorf("expected arm bind position (0.5,0,0), got %v", arm.InitialPosition())
	}
	if arm.InitialScale() != math3.UnitScale() {
		t.Errorf("expected unit bind scale for omitted node scale, got %v", arm.InitialScale())
	}

	a, err := skel.Animation("walk")
	if err != nil {
		t.Fatalf("walk animation missing: %v", err)
	}
	if a.Length() != 1 {
		t.Errorf("expected length 1, got %f", a.Length())
	}

	// Translation keys rebased against the binding pose.
	track, err := a.NodeTrack(arm.Handle())
	if err != nil {
		t.Fatalf("node track missing: %v", err)
	}
	if track.KeyFrameCount() != 2 {
		t.Fatalf("expected 2 keyframes, got %d", track.KeyFrameCount())
	}
	k0, _ := track.NodeKeyFrame(0)
	if !k0.Translate().ApproxEqual(math3.Vec3{}, 1e-6) {
		t.Errorf("expected zero delta at bind pose, got %v", k0.Translate())
	}
	k1, _ := track.NodeKeyFrame(1)
	if !k1.Translate().ApproxEqual(math3.Vec3{X: 1}, 1e-6) {
		t.Errorf("expected delta (1,0,0), got %v", k1.Translate())
	}

	// Morph weights become a pose track on the face node's index.
	vt, err := a.VertexTrack(2)
	if err != nil {
		t.Fatalf("vertex track missing: %v", err)
	}
	if vt.AnimationType() != anim.VertexAnimationPose {
		t.Errorf("expected pose track, got %v", vt.AnimationType())
	}
	pk0, err := vt.VertexPoseKeyFrame(0)
	if err != nil {
		t.Fatalf("pose keyframe 0 missing: %v", err)
	}
	refs := pk0.PoseReferences()
	if len(refs) != 2 {
		t.Fatalf("expected 2 pose references, got %d", len(refs))
	}
	if refs[0].Influence != 0.2 || refs[1].Influence != 0 {
		t.Errorf("expected influences (0.2, 0), got (%f, %f)", refs[0].Influence, refs[1].Influence)
	}
	pk1, err := vt.VertexPoseKeyFrame(1)
	if err != nil {
		t.Fatalf("pose keyframe 1 missing: %v", err)
	}
	refs = pk1.PoseReferences()
	if refs[0].Influence != 0.8 || refs[1].Influence != 0.4 {
		t.Errorf("expected influences (0.8, 0.4), got (%f, %f)", refs[0].Influence, refs[1].Influence)
	}
}

func TestImportGLTF_NoSkin(t *testing.T) {
	_, err := ImportGLTF(&gltf.Document{}, "")
	if !errors.Is(err, ErrNoSkin) {
		t.Errorf("expected ErrNoSkin, got %v", err)
	}
}

func TestImportGLTF_SkinByName(t *testing.T) {
	doc := buildTestDocument()
	doc.Skins = append(doc.Skins, &gltf.Skin{Name: "other", Joints: []uint32{0}})

	skel, err := ImportGLTF(doc, "other")
	if err != nil {
		t.Fatalf("ImportGLTF failed: %v", err)
	}
	if skel.Name() != "other" {
		t.Errorf("expected skin 'other', got %q", skel.Name())
	}
	if skel.BoneCount() != 1 {
		t.Errorf("expected 1 bone, got %d", skel.BoneCount())
	}

	if _, err := ImportGLTF(doc, "missing"); !errors.Is(err, ErrNoSkin) {
		t.Errorf("expected ErrNoSkin for unknown skin name, got %v", err)
	}
}

func TestImportGLTF_BadAccessor(t *testing.T) {
	doc := buildTestDocument()
	// Point the translation sampler past the buffer end.
	doc.BufferViews[1].ByteOffset = uint32(len(doc.Buffers[0].Data))

	_, err := ImportGLTF(doc, "")
	if !errors.Is(err, ErrInvalidGLTFData) {
		t.Errorf("expected ErrInvalidGLTFData, got %v", err)
	}
}

func TestImportGLTF_CubicSplineTakesValues(t *testing.T) {
	// One key, cubic spline: output holds in-tangent, value, out-tangent.
	buf := append(floatBytes(0), floatBytes(
		9, 9, 9, // in-tangent
		0.5, 2, 0, // value (absolute)
		9, 9, 9, // out-tangent
	)...)

	doc := &gltf.Document{
		Nodes: []*gltf.Node{
			{Name: "root", Translation: [3]float32{0.5, 0, 0}},
		},
		Skins: []*gltf.Skin{
			{Name: "s", Joints: []uint32{0}},
		},
		Buffers: []*gltf.Buffer{
			{ByteLength: uint32(len(buf)), Data: buf},
		},
		BufferViews: []*gltf.BufferView{
			{Buffer: 0, ByteOffset: 0, ByteLength: 4},
			{Buffer: 0, ByteOffset: 4, ByteLength: 36},
		},
		Accessors: []*gltf.Accessor{
			{BufferView: gltf.Index(0), ComponentType: gltf.ComponentFloat, Count: 1, Type: gltf.AccessorScalar},
			{BufferView: gltf.Index(1), ComponentType: gltf.ComponentFloat, Count: 3, Type: gltf.AccessorVec3},
		},
		Animations: []*gltf.Animation{
			{
				Name: "a",
				Samplers: []*gltf.AnimationSampler{
					{Input: gltf.Index(0), Output: gltf.Index(1), Interpolation: gltf.InterpolationCubicSpline},
				},
				Channels: []*gltf.Channel{
					{
						Sampler: gltf.Index(0),
						Target:  gltf.ChannelTarget{Node: gltf.Index(0), Path: gltf.TRSTranslation},
					},
				},
			},
		},
	}

	skel, err := ImportGLTF(doc, "")
	if err != nil {
		t.Fatalf("ImportGLTF failed: %v", err)
	}
	a, err := skel.Animation("a")
	if err != nil {
		t.Fatalf("animation missing: %v", err)
	}
	track, err := a.NodeTrack(0)
	if err != nil {
		t.Fatalf("track missing: %v", err)
	}
	kf, err := track.NodeKeyFrame(0)
	if err != nil {
		t.Fatalf("keyframe missing: %v", err)
	}
	// Middle element (0.5, 2, 0) minus bind position (0.5, 0, 0).
	if !kf.Translate().ApproxEqual(math3.Vec3{Y: 2}, 1e-6) {
		t.Errorf("expected delta (0,2,0), got %v", kf.Translate())
	}
}
