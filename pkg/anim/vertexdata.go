package anim

import (
	"fmt"

	"github.com/Faultbox/skelkit/pkg/math3"
)

// VertexBuffer is an immutable snapshot of vertex positions, and optionally
// normals, referenced by morph keyframes and hardware pose bindings.
type VertexBuffer struct {
	Positions []math3.Vec3
	Normals   []math3.Vec3
}

// Clone returns a deep copy of the buffer.
func (b *VertexBuffer) Clone() *VertexBuffer {
	return &VertexBuffer{
		Positions: append([]math3.Vec3(nil), b.Positions...),
		Normals:   append([]math3.Vec3(nil), b.Normals...),
	}
}

// HardwareAnimation is one recorded GPU blend input, a buffer and the
// parametric weight the shader applies it with.
type HardwareAnimation struct {
	Buffer     *VertexBuffer
	Parametric float32
}

// VertexData is the working vertex stream vertex tracks write to. Software
// blending mutates Positions and Normals in place, hardware blending leaves
// them alone and records buffer bindings instead.
type VertexData struct {
	Positions []math3.Vec3
	Normals   []math3.Vec3

	hwBase  *VertexBuffer
	hwSlots []HardwareAnimation
	hwUsed  int
}

// RestoreFrom copies the buffer contents into the working stream, the usual
// per-frame reset before blending.
func (vd *VertexData) RestoreFrom(b *VertexBuffer) {
	if len(vd.Positions) != len(b.Positions) {
		vd.Positions = make([]math3.Vec3, len(b.Positions))
	}
	copy(vd.Positions, b.Positions)
	if len(vd.Normals) != len(b.Normals) {
		vd.Normals = make([]math3.Vec3, len(b.Normals))
	}
	copy(vd.Normals, b.Normals)
}

// AllocateHardwareAnimationSlots sizes the binding table for hardware
// blending. Bindings past the allocated count are dropped.
func (vd *VertexData) AllocateHardwareAnimationSlots(count int) {
	vd.hwSlots = make([]HardwareAnimation, count)
	vd.hwUsed = 0
}

// HardwareAnimationSlotCount returns the allocated binding slot count.
func (vd *VertexData) HardwareAnimationSlotCount() int { return len(vd.hwSlots) }

// HardwareAnimations returns the bindings recorded since the last reset.
func (vd *VertexData) HardwareAnimations() []HardwareAnimation {
	used := vd.hwUsed
	if used > len(vd.hwSlots) {
		used = len(vd.hwSlots)
	}
	return vd.hwSlots[:used]
}

// HardwareBaseBuffer returns the buffer bound as the base stream, nil until
// a hardware morph records one.
func (vd *VertexData) HardwareBaseBuffer() *VertexBuffer { return vd.hwBase }

// ResetHardwareAnimation clears recorded bindings, keeping the slot table.
func (vd *VertexData) ResetHardwareAnimation() {
	vd.hwUsed = 0
	vd.hwBase = nil
}

func (vd *VertexData) bindHardwareBase(b *VertexBuffer) { vd.hwBase = b }

// softwareVertexMorph overwrites the working positions with the linear blend
// of two buffer snapshots. Normals blend too when both snapshots carry them,
// renormalised after the lerp.
func softwareVertexMorph(t float32, b1, b2 *VertexBuffer, data *VertexData) error {
	if len(b1.Positions) != len(b2.Positions) || len(b1.Positions) != len(data.Positions) {
		return fmt.Errorf("%w: morph buffers hold %d and %d vertices, target holds %d",
			ErrInvalidParameters, len(b1.Positions), len(b2.Positions), len(data.Positions))
	}
	for i := range data.Positions {
		data.Positions[i] = b1.Positions[i].Lerp(b2.Positions[i], t)
	}
	if len(data.Normals) > 0 && len(b1.Normals) == len(data.Normals) && len(b2.Normals) == len(data.Normals) {
		for i := range data.Normals {
			data.Normals[i] = b1.Normals[i].Lerp(b2.Normals[i], t).Normalize()
		}
	}
	return nil
}
