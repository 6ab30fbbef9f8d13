package skinning

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Influences is the number of joint influences per vertex.
const Influences = 4

// MorphTarget is a named set of per-vertex displacements.
type MorphTarget struct {
	Name           string
	PositionDeltas []mgl32.Vec3
	NormalDeltas   []mgl32.Vec3
}

// Mesh is bind-pose geometry with optional skin data. Joints index into
// the model's skin matrices, not into the bone list.
type Mesh struct {
	Name      string
	Positions []mgl32.Vec3
	Normals   []mgl32.Vec3
	UVs       []mgl32.Vec2
	Indices   []uint32
	Joints    [][Influences]uint16
	Weights   [][Influences]float32
	Morphs    []MorphTarget
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int { return len(m.Positions) }

// HasSkin reports whether every vertex carries joint indices and weights.
func (m *Mesh) HasSkin() bool {
	n := len(m.Positions)
	return n > 0 && len(m.Joints) == n && len(m.Weights) == n
}

// ApplyMorphs writes base plus the weighted sum of target deltas into dst
// and returns it. Targets with a zero or missing weight are skipped, as are
// delta slices whose length does not match base.
func ApplyMorphs(dst, base []mgl32.Vec3, targets []MorphTarget, weights map[string]float32, normals bool) []mgl32.Vec3 {
	if cap(dst) < len(base) {
		dst = make([]mgl32.Vec3, len(base))
	}
	dst = dst[:len(base)]
	copy(dst, base)

	for _, t := range targets {
		w := weights[t.Name]
		if w == 0 {
			continue
		}
		deltas := t.PositionDeltas
		if normals {
			deltas = t.NormalDeltas
		}
		if len(deltas) != len(base) {
			continue
		}
		for i, d := range deltas {
			dst[i] = dst[i].Add(d.Mul(w))
		}
	}

	if normals {
		for i, n := range dst {
			if l := n.Len(); l > 1e-8 {
				dst[i] = n.Mul(1 / l)
			}
		}
	}
	return dst
}

// flatten3 appends v as xyz triples to dst[:0].
func flatten3(dst []float32, v []mgl32.Vec3) []float32 {
	dst = dst[:0]
	for _, p := range v {
		dst = append(dst, p[0], p[1], p[2])
	}
	return dst
}

func flatten2(dst []float32, v []mgl32.Vec2) []float32 {
	dst = dst[:0]
	for _, p := range v {
		dst = append(dst, p[0], p[1])
	}
	return dst
}

// MorphBuffer holds the morphed bind positions of one mesh for the GPU
// path, where blend shapes are applied before upload.
type MorphBuffer struct {
	mesh *Mesh
	pos  []mgl32.Vec3
	flat []float32
	last []float32 // weight per target at the last rebuild
}

// NewMorphBuffer returns nil for a mesh without morph targets.
func NewMorphBuffer(m *Mesh) *MorphBuffer {
	if len(m.Morphs) == 0 {
		return nil
	}
	return &MorphBuffer{mesh: m, last: make([]float32, len(m.Morphs))}
}

// Update rebuilds the positions if any target weight changed since the
// previous call. changed is false when the buffer is already current.
func (b *MorphBuffer) Update(weights map[string]float32) (positions []float32, changed bool) {
	for i, t := range b.mesh.Morphs {
		if w := weights[t.Name]; w != b.last[i] || b.flat == nil {
			changed = true
			b.last[i] = w
		}
	}
	if !changed {
		return b.flat, false
	}
	b.pos = ApplyMorphs(b.pos, b.mesh.Positions, b.mesh.Morphs, weights, false)
	b.flat = flatten3(b.flat, b.pos)
	return b.flat, true
}
