package formats

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Faultbox/skelkit/pkg/anim"
	"github.com/Faultbox/skelkit/pkg/math3"
)

// RIG format errors.
var (
	ErrInvalidRigDocument = errors.New("invalid RIG document")
)

// rigDoc is the YAML document layout. Bones reference parents by name and
// must appear before their children. Omitted rotation defaults to identity,
// omitted scale to unit.
type rigDoc struct {
	Name       string         `yaml:"name"`
	BlendMode  string         `yaml:"blend_mode,omitempty"`
	Bones      []rigBone      `yaml:"bones"`
	Animations []rigAnimation `yaml:"animations,omitempty"`
}

type rigBone struct {
	Name               string    `yaml:"name"`
	Parent             string    `yaml:"parent,omitempty"`
	Position           []float32 `yaml:"position,flow,omitempty"`
	Rotation           []float32 `yaml:"rotation,flow,omitempty"`
	Scale              []float32 `yaml:"scale,flow,omitempty"`
	InheritOrientation *bool     `yaml:"inherit_orientation,omitempty"`
	InheritScale       *bool     `yaml:"inherit_scale,omitempty"`
	Manual             bool      `yaml:"manual,omitempty"`
}

type rigAnimation struct {
	Name                  string     `yaml:"name"`
	Length                float32    `yaml:"length"`
	Interpolation         string     `yaml:"interpolation,omitempty"`
	RotationInterpolation string     `yaml:"rotation_interpolation,omitempty"`
	Tracks                []rigTrack `yaml:"tracks,omitempty"`
}

type rigTrack struct {
	Bone         string        `yaml:"bone"`
	ShortestPath *bool         `yaml:"shortest_path,omitempty"`
	KeyFrames    []rigKeyFrame `yaml:"keyframes"`
}

type rigKeyFrame struct {
	Time      float32   `yaml:"time"`
	Translate []float32 `yaml:"translate,flow,omitempty"`
	Rotate    []float32 `yaml:"rotate,flow,omitempty"`
	Scale     []float32 `yaml:"scale,flow,omitempty"`
}

// ParseRig parses a YAML rig document into a skeleton.
func ParseRig(data []byte) (*anim.Skeleton, error) {
	var doc rigDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRigDocument, err)
	}
	return buildRig(&doc)
}

// LoadRig parses a rig file from disk.
func LoadRig(path string) (*anim.Skeleton, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rig file: %w", err)
	}
	return ParseRig(data)
}

func buildRig(doc *rigDoc) (*anim.Skeleton, error) {
	skel := anim.NewSkeleton(doc.Name)

	switch doc.BlendMode {
	case "", "average":
		skel.SetBlendMode(anim.BlendAverage)
	case "cumulative":
		skel.SetBlendMode(anim.BlendCumulative)
	default:
		return nil, fmt.Errorf("%w: blend mode %q", ErrInvalidRigDocument, doc.BlendMode)
	}

	for i, rb := range doc.Bones {
		if rb.Name == "" {
			return nil, fmt.Errorf("%w: bone %d has no name", ErrInvalidRigDocument, i)
		}
		b, err := skel.CreateBone(rb.Name)
		if err != nil {
			return nil, fmt.Errorf("bone %d: %w", i, err)
		}

		pos, err := rigVec3(rb.Position, math3.Vec3{})
		if err != nil {
			return nil, fmt.Errorf("bone %q position: %w", rb.Name, err)
		}
		rot, err := rigQuat(rb.Rotation)
		if err != nil {
			return nil, fmt.Errorf("bone %q rotation: %w", rb.Name, err)
		}
		scale, err := rigVec3(rb.Scale, math3.UnitScale())
		if err != nil {
			return nil, fmt.Errorf("bone %q scale: %w", rb.Name, err)
		}
		b.SetPosition(pos)
		b.SetOrientation(rot)
		b.SetScale(scale)
		if rb.InheritOrientation != nil {
			b.SetInheritOrientation(*rb.InheritOrientation)
		}
		if rb.InheritScale != nil {
			b.SetInheritScale(*rb.InheritScale)
		}
		if rb.Manual {
			b.SetManuallyControlled(true)
		}

		if rb.Parent != "" {
			parent, err := skel.BoneByName(rb.Parent)
			if err != nil {
				return nil, fmt.Errorf("%w: bone %q parent %q not defined before it", ErrInvalidRigDocument, rb.Name, rb.Parent)
			}
			if err := parent.AddChild(b); err != nil {
				return nil, fmt.Errorf("bone %q: %w", rb.Name, err)
			}
		}
	}

	skel.SetBindingPose()

	for _, ra := range doc.Animations {
		if err := buildRigAnimation(skel, &ra); err != nil {
			return nil, fmt.Errorf("animation %q: %w", ra.Name, err)
		}
	}

	return skel, nil
}

func buildRigAnimation(skel *anim.Skeleton, ra *rigAnimation) error {
	a, err := skel.CreateAnimation(ra.Name, ra.Length)
	if err != nil {
		return err
	}

	switch ra.Interpolation {
	case "", "linear":
		a.SetInterpolationMode(anim.InterpolationLinear)
	case "spline":
		a.SetInterpolationMode(anim.InterpolationSpline)
	default:
		return fmt.Errorf("%w: interpolation %q", ErrInvalidRigDocument, ra.Interpolation)
	}
	switch ra.RotationInterpolation {
	case "", "linear":
		a.SetRotationInterpolationMode(anim.RotationInterpolationLinear)
	case "spherical":
		a.SetRotationInterpolationMode(anim.RotationInterpolationSpherical)
	default:
		return fmt.Errorf("%w: rotation interpolation %q", ErrInvalidRigDocument, ra.RotationInterpolation)
	}

	for _, rt := range ra.Tracks {
		bone, err := skel.BoneByName(rt.Bone)
		if err != nil {
			return err
		}
		track, err := a.CreateNodeTrack(bone.Handle(), bone)
		if err != nil {
			return err
		}
		if rt.ShortestPath != nil {
			track.SetUseShortestRotationPath(*rt.ShortestPath)
		}

		for i, rk := range rt.KeyFrames {
			translate, err := rigVec3(rk.Translate, math3.Vec3{})
			if err != nil {
				return fmt.Errorf("track %q keyframe %d translate: %w", rt.Bone, i, err)
			}
			rotate, err := rigQuat(rk.Rotate)
			if err != nil {
				return fmt.Errorf("track %q keyframe %d rotate: %w", rt.Bone, i, err)
			}
			scale, err := rigVec3(rk.Scale, math3.UnitScale())
			if err != nil {
				return fmt.Errorf("track %q keyframe %d scale: %w", rt.Bone, i, err)
			}
			kf := track.CreateNodeKeyFrame(rk.Time)
			kf.SetTranslate(translate)
			kf.SetRotation(rotate)
			kf.SetScale(scale)
		}
	}
	return nil
}

// WriteRig serializes a skeleton to a YAML rig document. Only node tracks
// are representable. Bone binding poses are written, not the current pose.
func WriteRig(skel *anim.Skeleton) ([]byte, error) {
	doc := rigDoc{
		Name: skel.Name(),
	}
	if skel.BlendMode() == anim.BlendCumulative {
		doc.BlendMode = "cumulative"
	}

	// Emit parents before children so the document parses back.
	for _, root := range skel.RootBones() {
		appendRigBones(&doc, root)
	}

	for _, a := range skel.Animations() {
		ra := rigAnimation{
			Name:   a.Name(),
			Length: a.Length(),
		}
		if a.InterpolationMode() == anim.InterpolationSpline {
			ra.Interpolation = "spline"
		}
		if a.RotationInterpolationMode() == anim.RotationInterpolationSpherical {
			ra.RotationInterpolation = "spherical"
		}
		for _, track := range a.NodeTracks() {
			bone := skel.Bone(track.Handle())
			if bone == nil {
				return nil, fmt.Errorf("animation %q track handle %d has no bone", a.Name(), track.Handle())
			}
			rt := rigTrack{Bone: bone.Name()}
			if !track.UseShortestRotationPath() {
				f := false
				rt.ShortestPath = &f
			}
			for i := 0; i < track.KeyFrameCount(); i++ {
				kf, err := track.NodeKeyFrame(i)
				if err != nil {
					return nil, err
				}
				rk := rigKeyFrame{Time: kf.Time()}
				if kf.Translate() != (math3.Vec3{}) {
					rk.Translate = vec3Slice(kf.Translate())
				}
				if kf.Rotation() != math3.QuatIdentity() {
					rk.Rotate = quatSlice(kf.Rotation())
				}
				if kf.Scale() != math3.UnitScale() {
					rk.Scale = vec3Slice(kf.Scale())
				}
				rt.KeyFrames = append(rt.KeyFrames, rk)
			}
			ra.Tracks = append(ra.Tracks, rt)
		}
		doc.Animations = append(doc.Animations, ra)
	}

	return yaml.Marshal(&doc)
}

// SaveRig serializes a skeleton to a rig file on disk.
func SaveRig(skel *anim.Skeleton, path string) error {
	data, err := WriteRig(skel)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func appendRigBones(doc *rigDoc, b *anim.Bone) {
	rb := rigBone{
		Name:   b.Name(),
		Manual: b.ManuallyControlled(),
	}
	if b.Parent() != nil {
		rb.Parent = b.Parent().Name()
	}
	if b.InitialPosition() != (math3.Vec3{}) {
		rb.Position = vec3Slice(b.InitialPosition())
	}
	if b.InitialOrientation() != math3.QuatIdentity() {
		rb.Rotation = quatSlice(b.InitialOrientation())
	}
	if b.InitialScale() != math3.UnitScale() {
		rb.Scale = vec3Slice(b.InitialScale())
	}
	if !b.InheritOrientation() {
		f := false
		rb.InheritOrientation = &f
	}
	if !b.InheritScale() {
		f := false
		rb.InheritScale = &f
	}
	doc.Bones = append(doc.Bones, rb)
	for _, c := range b.Children() {
		appendRigBones(doc, c)
	}
}

// rigVec3 converts an optional 3-element list, falling back to def when
// absent.
func rigVec3(v []float32, def math3.Vec3) (math3.Vec3, error) {
	switch len(v) {
	case 0:
		return def, nil
	case 3:
		return math3.Vec3{X: v[0], Y: v[1], Z: v[2]}, nil
	default:
		return math3.Vec3{}, fmt.Errorf("%w: expected 3 components, got %d", ErrInvalidRigDocument, len(v))
	}
}

// rigQuat converts an optional [x y z w] list, falling back to identity.
func rigQuat(v []float32) (math3.Quat, error) {
	switch len(v) {
	case 0:
		return math3.QuatIdentity(), nil
	case 4:
		return math3.Quat{X: v[0], Y: v[1], Z: v[2], W: v[3]}, nil
	default:
		return math3.Quat{}, fmt.Errorf("%w: expected 4 components, got %d", ErrInvalidRigDocument, len(v))
	}
}

func vec3Slice(v math3.Vec3) []float32 { return []float32{v.X, v.Y, v.Z} }
func quatSlice(q math3.Quat) []float32 { return []float32{q.X, q.Y, q.Z, q.W} }
