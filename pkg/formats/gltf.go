package formats

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/qmuntal/gltf"

	"github.com/Faultbox/skelkit/pkg/anim"
	"github.com/Faultbox/skelkit/pkg/math3"
)

// glTF import errors.
var (
	ErrNoSkin          = errors.New("glTF document has no skin")
	ErrInvalidGLTFData = errors.New("invalid glTF data")
)

// ImportGLTFFile imports the first skin of a glTF or GLB file as a skeleton.
func ImportGLTFFile(path string) (*anim.Skeleton, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening glTF file: %w", err)
	}
	return ImportGLTF(doc, "")
}

// ImportGLTFBytes imports a self-contained glTF or GLB byte stream. Assets
// with external buffer files need ImportGLTFFile.
func ImportGLTFBytes(data []byte) (*anim.Skeleton, error) {
	doc := new(gltf.Document)
	if err := gltf.NewDecoder(bytes.NewReader(data)).Decode(doc); err != nil {
		return nil, fmt.Errorf("decoding glTF data: %w", err)
	}
	return ImportGLTF(doc, "")
}

// ImportGLTF converts a glTF skin into a skeleton: joint nodes become bones
// with the node TRS as binding pose, and the document's animations become
// node tracks with keyframes rebased relative to the binding pose (glTF
// samples absolute node transforms, tracks store deltas). Morph weight
// channels become pose vertex tracks with one pose reference per target.
// CUBICSPLINE samplers keep their in-place values, STEP samplers their keys.
// skinName selects a skin by name, empty means the first.
func ImportGLTF(doc *gltf.Document, skinName string) (*anim.Skeleton, error) {
	skin, err := findSkin(doc, skinName)
	if err != nil {
		return nil, err
	}

	skel := anim.NewSkeleton(skin.Name)

	// Joint slot order defines bone handles.
	jointHandle := make(map[uint32]int, len(skin.Joints))
	for handle, nodeIndex := range skin.Joints {
		if int(nodeIndex) >= len(doc.Nodes) {
			return nil, fmt.Errorf("%w: joint %d references node %d of %d", ErrInvalidGLTFData, handle, nodeIndex, len(doc.Nodes))
		}
		node := doc.Nodes[nodeIndex]

		name := node.Name
		if name == "" || skel.HasBone(name) {
			name = fmt.Sprintf("joint_%d", handle)
		}
		b, err := skel.CreateBoneWithHandle(name, handle)
		if err != nil {
			return nil, fmt.Errorf("joint %d: %w", handle, err)
		}
		b.SetPosition(gltfTranslation(node))
		b.SetOrientation(gltfRotation(node))
		b.SetScale(gltfScale(node))

		jointHandle[nodeIndex] = handle
	}

	// Hierarchy: a joint whose node is a child of another joint's node gets
	// that bone as parent. Joints parented outside the skin stay roots.
	for nodeIndex, handle := range jointHandle {
		for _, child := range doc.Nodes[nodeIndex].Children {
			childHandle, ok := jointHandle[child]
			if !ok {
				continue
			}
			if err := skel.Bone(handle).AddChild(skel.Bone(childHandle)); err != nil {
				return nil, fmt.Errorf("linking joint %d: %w", childHandle, err)
			}
		}
	}

	skel.SetBindingPose()

	for i, ga := range doc.Animations {
		if err := importGLTFAnimation(doc, skel, jointHandle, ga, i); err != nil {
			return nil, fmt.Errorf("importing animation %d: %w", i, err)
		}
	}

	return skel, nil
}

func findSkin(doc *gltf.Document, skinName string) (*gltf.Skin, error) {
	if len(doc.Skins) == 0 {
		return nil, ErrNoSkin
	}
	if skinName == "" {
		return doc.Skins[0], nil
	}
	for _, skin := range doc.Skins {
		if skin.Name == skinName {
			return skin, nil
		}
	}
	return nil, fmt.Errorf("%w: no skin named %q", ErrNoSkin, skinName)
}

func importGLTFAnimation(doc *gltf.Document, skel *anim.Skeleton, jointHandle map[uint32]int, ga *gltf.Animation, index int) error {
	name := ga.Name
	if name == "" || skel.HasAnimation(name) {
		name = fmt.Sprintf("animation_%d", index)
	}

	// Animation length is the latest sampler key across all channels.
	var length float32
	for _, ch := range ga.Channels {
		sampler, err := channelSampler(ga, ch)
		if err != nil {
			return err
		}
		times, _, err := accessorFloats(doc, *sampler.Input)
		if err != nil {
			return fmt.Errorf("reading sampler input: %w", err)
		}
		if n := len(times); n > 0 && times[n-1] > length {
			length = times[n-1]
		}
	}

	a, err := skel.CreateAnimation(name, length)
	if err != nil {
		return err
	}

	// Keyframes get created on demand per bone so translation, rotation and
	// scale channels with distinct key times share one track.
	type trackKeys struct {
		track *anim.NodeTrack
		at    map[float32]*anim.TransformKeyFrame
	}
	tracks := make(map[int]*trackKeys)
	keyAt := func(handle int, time float32) (*anim.TransformKeyFrame, error) {
		tk, ok := tracks[handle]
		if !ok {
			track, err := a.CreateNodeTrack(handle, skel.Bone(handle))
			if err != nil {
				return nil, err
			}
			tk = &trackKeys{track: track, at: make(map[float32]*anim.TransformKeyFrame)}
			tracks[handle] = tk
		}
		kf, ok := tk.at[time]
		if !ok {
			kf = tk.track.CreateNodeKeyFrame(time)
			tk.at[time] = kf
		}
		return kf, nil
	}

	for ci, ch := range ga.Channels {
		if ch.Target.Node == nil {
			continue
		}
		sampler, err := channelSampler(ga, ch)
		if err != nil {
			return err
		}
		times, _, err := accessorFloats(doc, *sampler.Input)
		if err != nil {
			return fmt.Errorf("channel %d input: %w", ci, err)
		}
		values, components, err := accessorFloats(doc, *sampler.Output)
		if err != nil {
			return fmt.Errorf("channel %d output: %w", ci, err)
		}

		if ch.Target.Path == gltf.TRSWeights {
			if err := importWeightChannel(a, *ch.Target.Node, times, values, sampler.Interpolation); err != nil {
				return fmt.Errorf("channel %d: %w", ci, err)
			}
			continue
		}

		handle, ok := jointHandle[*ch.Target.Node]
		if !ok {
			// Channel animates a node outside the skin.
			continue
		}
		bone := skel.Bone(handle)

		// CUBICSPLINE stores in-tangent, value, out-tangent per key.
		stride, offset := 1, 0
		if sampler.Interpolation == gltf.InterpolationCubicSpline {
			stride, offset = 3, 1
		}
		if len(values) < len(times)*stride*components {
			return fmt.Errorf("%w: channel %d output has %d floats for %d keys", ErrInvalidGLTFData, ci, len(values), len(times))
		}

		for ki, time := range times {
			v := values[(ki*stride+offset)*components:]
			kf, err := keyAt(handle, time)
			if err != nil {
				return err
			}
			switch ch.Target.Path {
			case gltf.TRSTranslation:
				abs := math3.Vec3{X: v[0], Y: v[1], Z: v[2]}
				kf.SetTranslate(abs.Sub(bone.InitialPosition()))
			case gltf.TRSRotation:
				abs := math3.Quat{X: v[0], Y: v[1], Z: v[2], W: v[3]}
				kf.SetRotation(bone.InitialOrientation().Inverse().Mul(abs))
			case gltf.TRSScale:
				abs := math3.Vec3{X: v[0], Y: v[1], Z: v[2]}
				kf.SetScale(abs.Div(bone.InitialScale()))
			}
		}
	}

	return nil
}

// importWeightChannel turns a morph weight channel into a pose vertex track,
// one pose reference per morph target.
func importWeightChannel(a *anim.Animation, nodeIndex uint32, times, values []float32, interpolation gltf.Interpolation) error {
	if len(times) == 0 {
		return nil
	}
	stride, offset := 1, 0
	if interpolation == gltf.InterpolationCubicSpline {
		stride, offset = 3, 1
	}
	targets := len(values) / (len(times) * stride)
	if targets == 0 {
		return fmt.Errorf("%w: weight channel with no targets", ErrInvalidGLTFData)
	}

	track, err := a.CreateVertexTrack(int(nodeIndex), anim.VertexAnimationPose, nil)
	if err != nil {
		return err
	}
	for ki, time := range times {
		kf, err := track.CreateVertexPoseKeyFrame(time)
		if err != nil {
			return err
		}
		base := (ki*stride + offset) * targets
		for t := 0; t < targets; t++ {
			kf.AddPoseReference(t, values[base+t])
		}
	}
	return nil
}

func channelSampler(ga *gltf.Animation, ch *gltf.Channel) (*gltf.AnimationSampler, error) {
	if ch.Sampler == nil || int(*ch.Sampler) >= len(ga.Samplers) {
		return nil, fmt.Errorf("%w: channel without sampler", ErrInvalidGLTFData)
	}
	sampler := ga.Samplers[*ch.Sampler]
	if sampler.Input == nil || sampler.Output == nil {
		return nil, fmt.Errorf("%w: sampler without input or output", ErrInvalidGLTFData)
	}
	return sampler, nil
}

// accessorFloats reads a float accessor straight from the buffer bytes,
// honouring the buffer view stride. Returns the flat values and the
// component count per element.
func accessorFloats(doc *gltf.Document, index uint32) ([]float32, int, error) {
	if int(index) >= len(doc.Accessors) {
		return nil, 0, fmt.Errorf("%w: accessor %d of %d", ErrInvalidGLTFData, index, len(doc.Accessors))
	}
	acc := doc.Accessors[index]
	if acc.ComponentType != gltf.ComponentFloat {
		return nil, 0, fmt.Errorf("%w: accessor %d component type %d, want float", ErrInvalidGLTFData, index, acc.ComponentType)
	}

	var components int
	switch acc.Type {
	case gltf.AccessorScalar:
		components = 1
	case gltf.AccessorVec3:
		components = 3
	case gltf.AccessorVec4:
		components = 4
	default:
		return nil, 0, fmt.Errorf("%w: accessor %d type %v", ErrInvalidGLTFData, index, acc.Type)
	}

	if acc.BufferView == nil {
		// Sparse-only accessor, all zeroes.
		return make([]float32, int(acc.Count)*components), components, nil
	}
	if int(*acc.BufferView) >= len(doc.BufferViews) {
		return nil, 0, fmt.Errorf("%w: accessor %d buffer view %d of %d", ErrInvalidGLTFData, index, *acc.BufferView, len(doc.BufferViews))
	}
	bv := doc.BufferViews[*acc.BufferView]
	if int(bv.Buffer) >= len(doc.Buffers) {
		return nil, 0, fmt.Errorf("%w: buffer view references buffer %d of %d", ErrInvalidGLTFData, bv.Buffer, len(doc.Buffers))
	}
	data := doc.Buffers[bv.Buffer].Data

	elemSize := components * 4
	stride := int(bv.ByteStride)
	if stride == 0 {
		stride = elemSize
	}

	out := make([]float32, 0, int(acc.Count)*components)
	for i := 0; i < int(acc.Count); i++ {
		offset := int(bv.ByteOffset) + int(acc.ByteOffset) + i*stride
		if offset+elemSize > len(data) {
			return nil, 0, fmt.Errorf("%w: accessor %d element %d past buffer end", ErrInvalidGLTFData, index, i)
		}
		for c := 0; c < components; c++ {
			bits := binary.LittleEndian.Uint32(data[offset+c*4 : offset+c*4+4])
			out = append(out, math.Float32frombits(bits))
		}
	}
	return out, components, nil
}

// gltfTranslation, gltfRotation and gltfScale read a node's TRS with glTF
// defaults for zero values, so hand-built documents behave like parsed ones.
func gltfTranslation(n *gltf.Node) math3.Vec3 {
	return math3.Vec3{X: n.Translation[0], Y: n.Translation[1], Z: n.Translation[2]}
}

func gltfRotation(n *gltf.Node) math3.Quat {
	if n.Rotation == ([4]float32{}) {
		return math3.QuatIdentity()
	}
	return math3.Quat{X: n.Rotation[0], Y: n.Rotation[1], Z: n.Rotation[2], W: n.Rotation[3]}
}

func gltfScale(n *gltf.Node) math3.Vec3 {
	if n.Scale == ([3]float32{}) {
		return math3.UnitScale()
	}
	return math3.Vec3{X: n.Scale[0], Y: n.Scale[1], Z: n.Scale[2]}
}
