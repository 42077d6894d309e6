package anim

import (
	"fmt"

	"github.com/Faultbox/skelkit/pkg/math3"
)

// Pose is a named set of sparse vertex offsets relative to a base vertex
// buffer. Pose tracks blend several poses at varying influences.
type Pose struct {
	name    string
	target  int
	offsets map[int]math3.Vec3
	normals map[int]math3.Vec3

	// hwBuffer is the cached dense form used for hardware binding,
	// invalidated whenever the offsets change.
	hwBuffer *VertexBuffer
	hwCount  int
}

// NewPose returns an empty pose affecting the vertex data identified by
// target.
func NewPose(target int, name string) *Pose {
	return &Pose{
		name:    name,
		target:  target,
		offsets: make(map[int]math3.Vec3),
		normals: make(map[int]math3.Vec3),
	}
}

// Name returns the pose name.
func (p *Pose) Name() string { return p.name }

// Target returns the handle of the vertex data this pose affects.
func (p *Pose) Target() int { return p.target }

// AddVertex records a position offset for one vertex. A pose carries normals
// for every vertex or for none, mixing is rejected.
func (p *Pose) AddVertex(index int, offset math3.Vec3) error {
	if len(p.normals) > 0 {
		return fmt.Errorf("%w: pose %q includes normals, add them for every vertex", ErrInvalidParameters, p.name)
	}
	p.offsets[index] = offset
	p.hwBuffer = nil
	return nil
}

// AddVertexWithNormal records position and normal offsets for one vertex.
func (p *Pose) AddVertexWithNormal(index int, offset, normal math3.Vec3) error {
	if len(p.offsets) > 0 && len(p.normals) == 0 {
		return fmt.Errorf("%w: pose %q started without normals, cannot mix", ErrInvalidParameters, p.name)
	}
	p.offsets[index] = offset
	p.normals[index] = normal
	p.hwBuffer = nil
	return nil
}

// RemoveVertex drops the offsets recorded for one vertex.
func (p *Pose) RemoveVertex(index int) {
	delete(p.offsets, index)
	delete(p.normals, index)
	p.hwBuffer = nil
}

// ClearVertices drops every recorded offset.
func (p *Pose) ClearVertices() {
	p.offsets = make(map[int]math3.Vec3)
	p.normals = make(map[int]math3.Vec3)
	p.hwBuffer = nil
}

// VertexOffsets returns the sparse position offsets. Treat it as read-only.
func (p *Pose) VertexOffsets() map[int]math3.Vec3 { return p.offsets }

// Normals returns the sparse normal offsets. Treat it as read-only.
func (p *Pose) Normals() map[int]math3.Vec3 { return p.normals }

// IncludesNormals reports whether the pose carries normal offsets.
func (p *Pose) IncludesNormals() bool { return len(p.normals) > 0 }

// Apply adds this pose's offsets to data, scaled by influence. Normals are
// offset without renormalising.
func (p *Pose) Apply(influence float32, data *VertexData) {
	if influence == 0 {
		return
	}
	for i, off := range p.offsets {
		data.Positions[i] = data.Positions[i].Add(off.Scale(influence))
	}
	if len(p.normals) > 0 && len(data.Normals) > 0 {
		for i, n := range p.normals {
			data.Normals[i] = data.Normals[i].Add(n.Scale(influence))
		}
	}
}

// hardwareBuffer returns the dense buffer form of the pose for the given
// vertex count, offsets for untouched vertices are zero.
func (p *Pose) hardwareBuffer(vertexCount int) *VertexBuffer {
	if p.hwBuffer != nil && p.hwCount == vertexCount {
		return p.hwBuffer
	}
	buf := &VertexBuffer{Positions: make([]math3.Vec3, vertexCount)}
	for i, off := range p.offsets {
		if i < vertexCount {
			buf.Positions[i] = off
		}
	}
	if len(p.normals) > 0 {
		buf.Normals = make([]math3.Vec3, vertexCount)
		for i, n := range p.normals {
			if i < vertexCount {
				buf.Normals[i] = n
			}
		}
	}
	p.hwBuffer = buf
	p.hwCount = vertexCount
	return buf
}

// Clone returns a deep copy of the pose.
func (p *Pose) Clone() *Pose {
	clone := NewPose(p.target, p.name)
	for i, off := range p.offsets {
		clone.offsets[i] = off
	}
	for i, n := range p.normals {
		clone.normals[i] = n
	}
	return clone
}
