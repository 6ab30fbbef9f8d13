// Package skin maps skin joints to skeleton bones and produces the per-joint
// skin matrices consumed by both skinning paths.
package skin

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/Faultbox/skinrig/internal/logger"
	"github.com/Faultbox/skinrig/internal/skeleton"
	"github.com/Faultbox/skinrig/pkg/math"
)

// MaxJoints is the capacity of the bone-matrix uniform array and of the
// CPU skin-matrix buffer.
const MaxJoints = 128

// DefaultTolerance bounds |IBM * bindWorld - I| per element at load.
const DefaultTolerance = 1e-3

// Load-time diagnostics. None of them prevents a model from loading.
var (
	ErrNoJoints            = errors.New("skin: no joints")
	ErrTooManyJoints       = errors.New("skin: joint count exceeds capacity")
	ErrMissingInverseBind  = errors.New("skin: missing inverse-bind matrix")
	ErrJointOutOfRange     = errors.New("skin: joint references unknown bone")
	ErrInverseBindMismatch = errors.New("skin: inverse-bind matrix does not invert bind pose")
)

// Options tune binding construction.
type Options struct {
	// MaxJoints caps the joint count; 0 means MaxJoints.
	MaxJoints int
	// Tolerance for the inverse-bind check; 0 means DefaultTolerance.
	Tolerance float32
}

// Report lists what was degraded while building a binding. Slices hold
// source joint indices.
type Report struct {
	SourceJoints int
	Truncated    []int
	MissingIBM   []int
	BadJoints    []int
	IBMMismatch  []int
}

// Degraded reports whether anything was truncated, defaulted or mismatched.
func (r Report) Degraded() bool {
	return len(r.Truncated) > 0 || len(r.MissingIBM) > 0 || len(r.BadJoints) > 0 || len(r.IBMMismatch) > 0
}

// Err folds the report into an error for callers that want one, or nil.
func (r Report) Err() error {
	var errs []error
	if r.SourceJoints == 0 {
		errs = append(errs, ErrNoJoints)
	}
	if n := len(r.Truncated); n > 0 {
		errs = append(errs, fmt.Errorf("%w: %d joints, %d dropped", ErrTooManyJoints, r.SourceJoints, n))
	}
	if n := len(r.MissingIBM); n > 0 {
		errs = append(errs, fmt.Errorf("%w: %d joints defaulted to identity", ErrMissingInverseBind, n))
	}
	if n := len(r.BadJoints); n > 0 {
		errs = append(errs, fmt.Errorf("%w: joints %v", ErrJointOutOfRange, r.BadJoints))
	}
	if n := len(r.IBMMismatch); n > 0 {
		errs = append(errs, fmt.Errorf("%w: joints %v", ErrInverseBindMismatch, r.IBMMismatch))
	}
	return errors.Join(errs...)
}

// Binding is a skin's joint list plus inverse-bind matrices, tied to one
// hierarchy. Its skin-matrix buffer is reused across ticks.
type Binding struct {
	h           *skeleton.Hierarchy
	jointToBone []int // -1 when the joint has no valid bone
	inverseBind []mgl32.Mat4
	skin        []mgl32.Mat4
}

// New builds a binding. It never fails outright: excess joints are dropped,
// missing inverse-bind matrices default to identity, joints naming unknown
// bones are pinned to an identity skin matrix. Everything degraded is listed
// in the returned Report and logged.
func New(h *skeleton.Hierarchy, jointToBone []int, inverseBind []mgl32.Mat4, opts Options) (*Binding, Report) {
	limit := opts.MaxJoints
	if limit <= 0 || limit > MaxJoints {
		limit = MaxJoints
	}
	tol := opts.Tolerance
	if tol <= 0 {
		tol = DefaultTolerance
	}

	rep := Report{SourceJoints: len(jointToBone)}
	count := len(jointToBone)
	if count > limit {
		for j := limit; j < count; j++ {
			rep.Truncated = append(rep.Truncated, j)
		}
		count = limit
	}

	b := &Binding{
		h:           h,
		jointToBone: make([]int, count),
		inverseBind: make([]mgl32.Mat4, count),
		skin:        make([]mgl32.Mat4, count),
	}

	for j := 0; j < count; j++ {
		b.skin[j] = mgl32.Ident4()

		bone := jointToBone[j]
		if bone < 0 || bone >= h.Len() {
			rep.BadJoints = append(rep.BadJoints, j)
			bone = -1
		}
		b.jointToBone[j] = bone

		if j < len(inverseBind) && math.IsFinite(inverseBind[j]) {
			b.inverseBind[j] = inverseBind[j]
		} else {
			rep.MissingIBM = append(rep.MissingIBM, j)
			b.inverseBind[j] = mgl32.Ident4()
			continue
		}

		if bone >= 0 {
			check := b.inverseBind[j].Mul4(h.BindWorld(bone))
			if !math.ApproxEqualMat4(check, mgl32.Ident4(), tol) {
				rep.IBMMismatch = append(rep.IBMMismatch, j)
			}
		}
	}

	if rep.Degraded() || rep.SourceJoints == 0 {
		logger.Named("skin").Warn("skin binding degraded",
			zap.Int("joints", rep.SourceJoints),
			zap.Int("truncated", len(rep.Truncated)),
			zap.Int("missingIBM", len(rep.MissingIBM)),
			zap.Ints("badJoints", rep.BadJoints),
			zap.Ints("ibmMismatch", rep.IBMMismatch),
		)
	}

	return b, rep
}

// ComputeSkinMatrices refreshes skin[j] = world(bone(j)) * IBM[j] from the
// hierarchy's current world matrices. Call after Hierarchy.Update. The
// returned slice is reused by the next call.
func (b *Binding) ComputeSkinMatrices() []mgl32.Mat4 {
	for j, bone := range b.jointToBone {
		if bone < 0 {
			continue
		}
		b.skin[j] = b.h.World(bone).Mul4(b.inverseBind[j])
	}
	return b.skin
}

// Matrices returns the skin matrices from the last ComputeSkinMatrices.
func (b *Binding) Matrices() []mgl32.Mat4 { return b.skin }

// JointCount returns the number of joints kept (at most MaxJoints).
func (b *Binding) JointCount() int { return len(b.jointToBone) }

// BoneOf returns the bone driving joint j, or -1.
func (b *Binding) BoneOf(j int) int { return b.jointToBone[j] }

// InverseBind returns the inverse-bind matrix of joint j.
func (b *Binding) InverseBind(j int) mgl32.Mat4 { return b.inverseBind[j] }

// JointMask marks the joints whose bone lies in the subtree rooted at bone.
// It is computed once and handed to the CPU skinner for restricted updates.
func (b *Binding) JointMask(bone int) []bool {
	mask := make([]bool, len(b.jointToBone))
	for j, jb := range b.jointToBone {
		if jb >= 0 && b.h.InSubtree(bone, jb) {
			mask[j] = true
		}
	}
	return mask
}
