package skinning

import (
	gomath "math"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/Faultbox/skinrig/internal/logger"
	"github.com/Faultbox/skinrig/pkg/math"
)

// DefaultExplosionThreshold is the largest distance, in model units, a
// skinned vertex may move away from its bind position. It assumes a
// metre-scale model; see ScaleThreshold for larger units.
const DefaultExplosionThreshold = 2.0

// ReferenceRadius is the bind-pose radius up to which a threshold applies
// unscaled. A metre-scale humanoid fits well inside it.
const ReferenceRadius = 2.0

// BindRadius returns half the diagonal of the bind-pose bounds of meshes.
func BindRadius(meshes []*Mesh) float32 {
	var lo, hi mgl32.Vec3
	first := true
	for _, m := range meshes {
		for _, p := range m.Positions {
			if first {
				lo, hi = p, p
				first = false
				continue
			}
			for i := 0; i < 3; i++ {
				lo[i] = min(lo[i], p[i])
				hi[i] = max(hi[i], p[i])
			}
		}
	}
	return hi.Sub(lo).Len() / 2
}

// ScaleThreshold grows threshold in proportion to a model whose bind
// radius exceeds ReferenceRadius, so centimetre rigs get the same slack
// as metre rigs. Smaller models keep threshold unchanged.
func ScaleThreshold(threshold, radius float32) float32 {
	if !(radius > ReferenceRadius) || gomath.IsInf(float64(radius), 0) {
		return threshold
	}
	return threshold * radius / ReferenceRadius
}

// CPUOptions configures a CPUSkinner.
type CPUOptions struct {
	ExplosionThreshold float32
	Policy             FallbackPolicy
}

// DefaultCPUOptions returns the options used when none are configured.
func DefaultCPUOptions() CPUOptions {
	return CPUOptions{
		ExplosionThreshold: DefaultExplosionThreshold,
		Policy:             FallbackPermanent,
	}
}

// Result summarizes one Skin call.
type Result struct {
	Skinned  int // vertices recomputed
	Kept     int // vertices left at their previous output
	Exploded int // vertices replaced by their bind position
	// Disabled is set once the mesh has been frozen in its bind pose.
	Disabled bool
}

// CPUSkinner deforms one mesh on the CPU. Output buffers are reused across
// calls and are flat xyz arrays ready for a position buffer upload.
type CPUSkinner struct {
	mesh *Mesh
	opts CPUOptions
	log  *zap.Logger

	bindPos  []mgl32.Vec3 // bind positions with morphs applied
	bindNorm []mgl32.Vec3

	positions []float32
	normals   []float32

	morphWeights []float32 // per target, as last applied
	disabled     bool
}

// NewCPUSkinner prepares a skinner for m. The output starts at the bind pose.
func NewCPUSkinner(m *Mesh, opts CPUOptions) *CPUSkinner {
	if opts.ExplosionThreshold <= 0 {
		opts.ExplosionThreshold = DefaultExplosionThreshold
	}
	s := &CPUSkinner{
		mesh: m,
		opts: opts,
		log:  logger.Named("skinning").With(zap.String("mesh", m.Name)),
	}
	s.bindPos = append([]mgl32.Vec3(nil), m.Positions...)
	if len(m.Normals) == len(m.Positions) {
		s.bindNorm = append([]mgl32.Vec3(nil), m.Normals...)
	}
	s.positions = flatten3(make([]float32, 0, 3*len(m.Positions)), s.bindPos)
	s.normals = flatten3(make([]float32, 0, 3*len(s.bindNorm)), s.bindNorm)
	s.morphWeights = make([]float32, len(m.Morphs))
	return s
}

// Mesh returns the mesh being skinned.
func (s *CPUSkinner) Mesh() *Mesh { return s.mesh }

// SetMorphWeights rebuilds the bind geometry from the mesh's morph targets
// and reports whether any target weight changed. It is a no-op for meshes
// without targets.
func (s *CPUSkinner) SetMorphWeights(weights map[string]float32) bool {
	changed := false
	for i, t := range s.mesh.Morphs {
		if w := weights[t.Name]; w != s.morphWeights[i] {
			s.morphWeights[i] = w
			changed = true
		}
	}
	if !changed {
		return false
	}
	s.bindPos = ApplyMorphs(s.bindPos, s.mesh.Positions, s.mesh.Morphs, weights, false)
	if s.bindNorm != nil {
		s.bindNorm = ApplyMorphs(s.bindNorm, s.mesh.Normals, s.mesh.Morphs, weights, true)
	}
	return true
}

// Skin deforms the mesh with skin. When mask is non-nil only vertices with
// a contributing influence on a joint j where mask[j] is set are
// recomputed; the rest keep their previous output.
func (s *CPUSkinner) Skin(skin []mgl32.Mat4, mask []bool) Result {
	var res Result

	if s.disabled || !s.mesh.HasSkin() {
		s.writeBindPose()
		res.Kept = len(s.bindPos)
		res.Disabled = s.disabled
		return res
	}

	limit := s.opts.ExplosionThreshold
	for v, p := range s.bindPos {
		joints := s.mesh.Joints[v]
		weights := s.mesh.Weights[v]

		if mask != nil && !touches(joints, weights, mask, len(skin)) {
			res.Kept++
			continue
		}

		var sumP, sumN mgl32.Vec3
		var total float32
		for i := 0; i < Influences; i++ {
			w := weights[i]
			j := int(joints[i])
			if !(w > 0) || j >= len(skin) {
				continue
			}
			sumP = sumP.Add(math.TransformPoint(skin[j], p).Mul(w))
			if s.bindNorm != nil {
				sumN = sumN.Add(math.TransformDirection(skin[j], s.bindNorm[v]).Mul(w))
			}
			total += w
		}

		o := 3 * v
		if total <= 0 {
			s.positions[o], s.positions[o+1], s.positions[o+2] = p[0], p[1], p[2]
			s.writeBindNormal(v)
			res.Skinned++
			continue
		}

		out := sumP.Mul(1 / total)
		if d := out.Sub(p).Len(); !(d <= limit) {
			res.Exploded++
			s.positions[o], s.positions[o+1], s.positions[o+2] = p[0], p[1], p[2]
			s.writeBindNormal(v)
			continue
		}
		s.positions[o], s.positions[o+1], s.positions[o+2] = out[0], out[1], out[2]

		if s.bindNorm != nil {
			if l := sumN.Len(); l > 1e-8 && l <= gomath.MaxFloat32 {
				n := sumN.Mul(1 / l)
				s.normals[o], s.normals[o+1], s.normals[o+2] = n[0], n[1], n[2]
			} else {
				s.writeBindNormal(v)
			}
		}
		res.Skinned++
	}

	if res.Exploded > 0 {
		s.log.Warn("vertex explosion",
			zap.Int("vertices", res.Exploded),
			zap.Float32("threshold", limit),
			zap.Stringer("policy", s.opts.Policy))
		if s.opts.Policy == FallbackPermanent {
			s.disabled = true
			s.writeBindPose()
			s.log.Warn("cpu skinning disabled for mesh")
		}
	}
	res.Disabled = s.disabled
	return res
}

// touches reports whether any contributing influence uses a masked joint.
func touches(joints [Influences]uint16, weights [Influences]float32, mask []bool, n int) bool {
	for i := 0; i < Influences; i++ {
		j := int(joints[i])
		if weights[i] > 0 && j < n && j < len(mask) && mask[j] {
			return true
		}
	}
	return false
}

func (s *CPUSkinner) writeBindPose() {
	s.positions = flatten3(s.positions, s.bindPos)
	s.normals = flatten3(s.normals, s.bindNorm)
}

func (s *CPUSkinner) writeBindNormal(v int) {
	if s.bindNorm == nil {
		return
	}
	n := s.bindNorm[v]
	o := 3 * v
	s.normals[o], s.normals[o+1], s.normals[o+2] = n[0], n[1], n[2]
}

// Positions returns the last output as xyz triples. The slice is reused.
func (s *CPUSkinner) Positions() []float32 { return s.positions }

// Normals returns the last output normals, empty when the mesh has none.
func (s *CPUSkinner) Normals() []float32 { return s.normals }

// Position returns the output position of vertex v.
func (s *CPUSkinner) Position(v int) mgl32.Vec3 {
	o := 3 * v
	return mgl32.Vec3{s.positions[o], s.positions[o+1], s.positions[o+2]}
}

// Disabled reports whether the mesh has been frozen after an explosion.
func (s *CPUSkinner) Disabled() bool { return s.disabled }
