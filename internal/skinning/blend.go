package skinning

import (
	"github.com/go-gl/mathgl/mgl32"
)

// BlendMatrix returns the weighted average of the skin matrices named by
// joints, the same blend the skinned vertex shader performs. Influences
// with a non-positive weight or a joint outside skin are ignored. ok is
// false when no influence contributes, in which case the vertex is rigid.
func BlendMatrix(skin []mgl32.Mat4, joints [Influences]uint16, weights [Influences]float32) (m mgl32.Mat4, ok bool) {
	var total float32
	for i := 0; i < Influences; i++ {
		w := weights[i]
		j := int(joints[i])
		if !(w > 0) || j >= len(skin) {
			continue
		}
		s := skin[j]
		for k := range m {
			m[k] += w * s[k]
		}
		total += w
	}
	if total <= 0 {
		return mgl32.Ident4(), false
	}
	inv := 1 / total
	for k := range m {
		m[k] *= inv
	}
	return m, true
}
