package formats

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Faultbox/skelkit/pkg/anim"
	"github.com/Faultbox/skelkit/pkg/math3"
)

// SKEL format errors.
var (
	ErrInvalidSkelMagic       = errors.New("invalid SKEL magic: expected 'SKEL'")
	ErrUnsupportedSkelVersion = errors.New("unsupported SKEL version")
	ErrTruncatedSkelData      = errors.New("truncated SKEL data")
	ErrMalformedSkelData      = errors.New("malformed SKEL data")
)

// SkelVersion represents the SKEL file version.
type SkelVersion uint16

// String returns the version as "Major.Minor".
func (v SkelVersion) String() string {
	major := v >> 8
	minor := v & 0xFF
	return fmt.Sprintf("%d.%d", major, minor)
}

const (
	skelMagic = "SKEL"

	// skelVersionCurrent is what WriteSkel emits. 1.1 added the blend mode
	// byte in the header, 1.0 files default to average blending.
	skelVersionCurrent SkelVersion = 0x101

	skelNameLength = 40
)

// ParseSkel parses a SKEL skeleton file from raw bytes.
//
// Layout: a 16-byte header (magic, version, bone and animation counts, blend
// mode), a 40-byte skeleton name, then bone records in handle order followed
// by animation records. All multi-byte values are little-endian.
func ParseSkel(data []byte) (*anim.Skeleton, error) {
	if len(data) < 16+skelNameLength {
		return nil, ErrTruncatedSkelData
	}

	if string(data[0:4]) != skelMagic {
		return nil, ErrInvalidSkelMagic
	}

	// Version is stored as Minor, Major (reversed)
	version := SkelVersion(uint16(data[5])<<8 | uint16(data[4]))
	if version < 0x100 || version > skelVersionCurrent {
		return nil, fmt.Errorf("%w: 0x%X", ErrUnsupportedSkelVersion, uint16(version))
	}

	boneCount := binary.LittleEndian.Uint16(data[6:8])
	animCount := binary.LittleEndian.Uint16(data[8:10])

	blendMode := anim.BlendAverage
	if version >= 0x101 {
		switch data[10] {
		case 0:
			blendMode = anim.BlendAverage
		case 1:
			blendMode = anim.BlendCumulative
		default:
			return nil, fmt.Errorf("%w: blend mode %d", ErrMalformedSkelData, data[10])
		}
	}

	if int(boneCount) > anim.MaxBones {
		return nil, fmt.Errorf("%w: %d bones exceeds limit %d", ErrMalformedSkelData, boneCount, anim.MaxBones)
	}

	r := bytes.NewReader(data[16:]) // Skip header

	name, err := readSkelName(r)
	if err != nil {
		return nil, fmt.Errorf("reading skeleton name: %w", err)
	}

	skel := anim.NewSkeleton(name)
	skel.SetBlendMode(blendMode)

	// Parse bones, remembering parent links for the second pass.
	parents := make([]int16, boneCount)
	for i := uint16(0); i < boneCount; i++ {
		parent, err := parseSkelBone(r, skel, int(i))
		if err != nil {
			return nil, fmt.Errorf("parsing bone %d: %w", i, err)
		}
		parents[i] = parent
	}

	// Link hierarchy once all bones exist.
	for i, parent := range parents {
		if parent < 0 {
			continue
		}
		if int(parent) >= int(boneCount) || int(parent) == i {
			return nil, fmt.Errorf("%w: bone %d has parent %d", ErrMalformedSkelData, i, parent)
		}
		if err := skel.Bone(int(parent)).AddChild(skel.Bone(i)); err != nil {
			return nil, fmt.Errorf("linking bone %d: %w", i, err)
		}
	}

	skel.SetBindingPose()

	// Parse animations
	for i := uint16(0); i < animCount; i++ {
		if err := parseSkelAnimation(r, skel, int(boneCount)); err != nil {
			return nil, fmt.Errorf("parsing animation %d: %w", i, err)
		}
	}

	return skel, nil
}

// ParseSkelFile parses a SKEL file from disk.
func ParseSkelFile(path string) (*anim.Skeleton, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading SKEL file: %w", err)
	}
	return ParseSkel(data)
}

// parseSkelBone reads one bone record and creates the bone under handle.
// Returns the parent handle (-1 for roots) for deferred linking.
func parseSkelBone(r *bytes.Reader, skel *anim.Skeleton, handle int) (int16, error) {
	name, err := readSkelName(r)
	if err != nil {
		return 0, err
	}

	var parent int16
	if err := binary.Read(r, binary.LittleEndian, &parent); err != nil {
		return 0, fmt.Errorf("%w: reading parent", ErrTruncatedSkelData)
	}

	var flags uint8
	if err := binary.Read(r, binary.LittleEndian, &flags); err != nil {
		return 0, fmt.Errorf("%w: reading flags", ErrTruncatedSkelData)
	}

	pos, err := readVec3(r)
	if err != nil {
		return 0, fmt.Errorf("reading position: %w", err)
	}
	rot, err := readQuat(r)
	if err != nil {
		return 0, fmt.Errorf("reading rotation: %w", err)
	}
	scale, err := readVec3(r)
	if err != nil {
		return 0, fmt.Errorf("reading scale: %w", err)
	}

	b, err := skel.CreateBoneWithHandle(name, handle)
	if err != nil {
		return 0, err
	}
	b.SetPosition(pos)
	b.SetOrientation(rot)
	b.SetScale(scale)
	b.SetInheritOrientation(flags&skelFlagInheritOrientation != 0)
	b.SetInheritScale(flags&skelFlagInheritScale != 0)
	if flags&skelFlagManual != 0 {
		b.SetManuallyControlled(true)
	}

	return parent, nil
}

// Bone record flag bits.
const (
	skelFlagInheritOrientation = 1 << 0
	skelFlagInheritScale       = 1 << 1
	skelFlagManual             = 1 << 2
)

// parseSkelAnimation reads one animation record with its node tracks.
func parseSkelAnimation(r *bytes.Reader, skel *anim.Skeleton, boneCount int) error {
	name, err := readSkelName(r)
	if err != nil {
		return err
	}

	var length float32
	if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
		return fmt.Errorf("%w: reading length", ErrTruncatedSkelData)
	}

	var interp, rotInterp uint8
	if err := binary.Read(r, binary.LittleEndian, &interp); err != nil {
		return fmt.Errorf("%w: reading interpolation mode", ErrTruncatedSkelData)
	}
	if err := binary.Read(r, binary.LittleEndian, &rotInterp); err != nil {
		return fmt.Errorf("%w: reading rotation interpolation mode", ErrTruncatedSkelData)
	}
	if interp > uint8(anim.InterpolationSpline) {
		return fmt.Errorf("%w: interpolation mode %d", ErrMalformedSkelData, interp)
	}
	if rotInterp > uint8(anim.RotationInterpolationSpherical) {
		return fmt.Errorf("%w: rotation interpolation mode %d", ErrMalformedSkelData, rotInterp)
	}

	var trackCount uint16
	if err := binary.Read(r, binary.LittleEndian, &trackCount); err != nil {
		return fmt.Errorf("%w: reading track count", ErrTruncatedSkelData)
	}

	a, err := skel.CreateAnimation(name, length)
	if err != nil {
		return err
	}
	a.SetInterpolationMode(anim.InterpolationMode(interp))
	a.SetRotationInterpolationMode(anim.RotationInterpolationMode(rotInterp))

	for i := uint16(0); i < trackCount; i++ {
		if err := parseSkelTrack(r, skel, a, boneCount); err != nil {
			return fmt.Errorf("parsing track %d: %w", i, err)
		}
	}

	return nil
}

// parseSkelTrack reads one node track record with its keyframes.
func parseSkelTrack(r *bytes.Reader, skel *anim.Skeleton, a *anim.Animation, boneCount int) error {
	var handle uint16
	if err := binary.Read(r, binary.LittleEndian, &handle); err != nil {
		return fmt.Errorf("%w: reading bone handle", ErrTruncatedSkelData)
	}
	if int(handle) >= boneCount {
		return fmt.Errorf("%w: track bone handle %d with %d bones", ErrMalformedSkelData, handle, boneCount)
	}

	var shortest uint8
	if err := binary.Read(r, binary.LittleEndian, &shortest); err != nil {
		return fmt.Errorf("%w: reading shortest path flag", ErrTruncatedSkelData)
	}

	var keyFrameCount uint32
	if err := binary.Read(r, binary.LittleEndian, &keyFrameCount); err != nil {
		return fmt.Errorf("%w: reading keyframe count", ErrTruncatedSkelData)
	}

	track, err := a.CreateNodeTrack(int(handle), skel.Bone(int(handle)))
	if err != nil {
		return err
	}
	track.SetUseShortestRotationPath(shortest != 0)

	for i := uint32(0); i < keyFrameCount; i++ {
		var time float32
		if err := binary.Read(r, binary.LittleEndian, &time); err != nil {
			return fmt.Errorf("%w: reading keyframe %d time", ErrTruncatedSkelData, i)
		}
		translate, err := readVec3(r)
		if err != nil {
			return fmt.Errorf("reading keyframe %d translate: %w", i, err)
		}
		rotate, err := readQuat(r)
		if err != nil {
			return fmt.Errorf("reading keyframe %d rotation: %w", i, err)
		}
		scale, err := readVec3(r)
		if err != nil {
			return fmt.Errorf("reading keyframe %d scale: %w", i, err)
		}

		kf := track.CreateNodeKeyFrame(time)
		kf.SetTranslate(translate)
		kf.SetRotation(rotate)
		kf.SetScale(scale)
	}

	return nil
}

// WriteSkel serializes a skeleton to SKEL bytes at the current version.
// Only node tracks are representable, numeric and vertex tracks are skipped.
// Bone binding poses are written, not the current pose.
func WriteSkel(skel *anim.Skeleton) ([]byte, error) {
	bones := skel.Bones()
	if len(bones) > anim.MaxBones {
		return nil, fmt.Errorf("%d bones exceeds limit %d", len(bones), anim.MaxBones)
	}
	for i, b := range bones {
		if b == nil {
			return nil, fmt.Errorf("bone slot %d is empty, sparse handles are not representable", i)
		}
	}

	var buf bytes.Buffer

	// Header
	buf.WriteString(skelMagic)
	buf.WriteByte(byte(skelVersionCurrent & 0xFF)) // minor
	buf.WriteByte(byte(skelVersionCurrent >> 8))   // major
	var counts [4]byte
	binary.LittleEndian.PutUint16(counts[0:2], uint16(len(bones)))
	binary.LittleEndian.PutUint16(counts[2:4], uint16(skel.AnimationCount()))
	buf.Write(counts[:])
	buf.WriteByte(byte(skel.BlendMode()))
	buf.Write(make([]byte, 5)) // reserved

	if err := writeSkelName(&buf, skel.Name()); err != nil {
		return nil, fmt.Errorf("writing skeleton name: %w", err)
	}

	for i, b := range bones {
		if err := writeSkelBone(&buf, b); err != nil {
			return nil, fmt.Errorf("writing bone %d: %w", i, err)
		}
	}

	for _, a := range skel.Animations() {
		if err := writeSkelAnimation(&buf, a); err != nil {
			return nil, fmt.Errorf("writing animation %q: %w", a.Name(), err)
		}
	}

	return buf.Bytes(), nil
}

// WriteSkelFile serializes a skeleton to a SKEL file on disk.
func WriteSkelFile(skel *anim.Skeleton, path string) error {
	data, err := WriteSkel(skel)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func writeSkelBone(buf *bytes.Buffer, b *anim.Bone) error {
	if err := writeSkelName(buf, b.Name()); err != nil {
		return err
	}

	parent := int16(-1)
	if b.Parent() != nil {
		parent = int16(b.Parent().Handle())
	}
	binary.Write(buf, binary.LittleEndian, parent)

	var flags uint8
	if b.InheritOrientation() {
		flags |= skelFlagInheritOrientation
	}
	if b.InheritScale() {
		flags |= skelFlagInheritScale
	}
	if b.ManuallyControlled() {
		flags |= skelFlagManual
	}
	buf.WriteByte(flags)

	writeVec3(buf, b.InitialPosition())
	writeQuat(buf, b.InitialOrientation())
	writeVec3(buf, b.InitialScale())
	return nil
}

func writeSkelAnimation(buf *bytes.Buffer, a *anim.Animation) error {
	if err := writeSkelName(buf, a.Name()); err != nil {
		return err
	}
	binary.Write(buf, binary.LittleEndian, a.Length())
	buf.WriteByte(byte(a.InterpolationMode()))
	buf.WriteByte(byte(a.RotationInterpolationMode()))
	binary.Write(buf, binary.LittleEndian, uint16(a.NodeTrackCount()))

	for _, track := range a.NodeTracks() {
		binary.Write(buf, binary.LittleEndian, uint16(track.Handle()))
		var shortest uint8
		if track.UseShortestRotationPath() {
			shortest = 1
		}
		buf.WriteByte(shortest)
		binary.Write(buf, binary.LittleEndian, uint32(track.KeyFrameCount()))

		for i := 0; i < track.KeyFrameCount(); i++ {
			kf, err := track.NodeKeyFrame(i)
			if err != nil {
				return err
			}
			binary.Write(buf, binary.LittleEndian, kf.Time())
			writeVec3(buf, kf.Translate())
			writeQuat(buf, kf.Rotation())
			writeVec3(buf, kf.Scale())
		}
	}
	return nil
}

// readSkelName reads a 40-byte null-terminated name.
func readSkelName(r *bytes.Reader) (string, error) {
	buf := make([]byte, skelNameLength)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("%w: reading name", ErrTruncatedSkelData)
	}

	// Find null terminator
	end := bytes.IndexByte(buf, 0)
	if end == -1 {
		end = skelNameLength
	}

	return string(buf[:end]), nil
}

// writeSkelName writes a 40-byte null-terminated name.
func writeSkelName(buf *bytes.Buffer, name string) error {
	if len(name) >= skelNameLength {
		return fmt.Errorf("name %q longer than %d bytes", name, skelNameLength-1)
	}
	out := make([]byte, skelNameLength)
	copy(out, name)
	buf.Write(out)
	return nil
}

func readVec3(r *bytes.Reader) (math3.Vec3, error) {
	var raw [3]float32
	if err := binary.Read(r, binary.LittleEndian, &raw); err != nil {
		return math3.Vec3{}, ErrTruncatedSkelData
	}
	return math3.Vec3{X: raw[0], Y: raw[1], Z: raw[2]}, nil
}

func writeVec3(buf *bytes.Buffer, v math3.Vec3) {
	binary.Write(buf, binary.LittleEndian, [3]float32{v.X, v.Y, v.Z})
}

func readQuat(r *bytes.Reader) (math3.Quat, error) {
	var raw [4]float32
	if err := binary.Read(r, binary.LittleEndian, &raw); err != nil {
		return math3.Quat{}, ErrTruncatedSkelData
	}
	return math3.Quat{X: raw[0], Y: raw[1], Z: raw[2], W: raw[3]}, nil
}

func writeQuat(buf *bytes.Buffer, q math3.Quat) {
	binary.Write(buf, binary.LittleEndian, [4]float32{q.X, q.Y, q.Z, q.W})
}
