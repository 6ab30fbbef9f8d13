// Package math provides transform helpers on top of mgl32 for skeletal animation.
//
// All matrices are column-major with column-vector composition (OpenGL/glTF):
// a point p is transformed as M * p, and parent * child composes a child
// transform into its parent's space.
package math

import (
	gomath "math"

	"github.com/go-gl/mathgl/mgl32"
)

// ComposeTRS builds T * R * S.
func ComposeTRS(t mgl32.Vec3, r mgl32.Quat, s mgl32.Vec3) mgl32.Mat4 {
	// Column-scaled rotation plus translation, same result as
	// Translate3D(t).Mul4(r.Mat4()).Mul4(Scale3D(s)) without two full products.
	m := r.Normalize().Mat4()
	for col := 0; col < 3; col++ {
		for row := 0; row < 3; row++ {
			m[col*4+row] *= s[col]
		}
	}
	m[12], m[13], m[14] = t[0], t[1], t[2]
	return m
}

// Decompose splits an affine matrix into translation, rotation and scale.
// Shear is not supported; a zero-length axis keeps scale 0 but is treated as 1
// when extracting the rotation.
func Decompose(m mgl32.Mat4) (t mgl32.Vec3, r mgl32.Quat, s mgl32.Vec3) {
	t = mgl32.Vec3{m[12], m[13], m[14]}

	s = mgl32.Vec3{
		mgl32.Vec3{m[0], m[1], m[2]}.Len(),
		mgl32.Vec3{m[4], m[5], m[6]}.Len(),
		mgl32.Vec3{m[8], m[9], m[10]}.Len(),
	}

	div := s
	for i := range div {
		if div[i] < 1e-6 {
			div[i] = 1
		}
	}

	rot := mgl32.Mat4{
		m[0] / div[0], m[1] / div[0], m[2] / div[0], 0,
		m[4] / div[1], m[5] / div[1], m[6] / div[1], 0,
		m[8] / div[2], m[9] / div[2], m[10] / div[2], 0,
		0, 0, 0, 1,
	}
	r = mgl32.Mat4ToQuat(rot).Normalize()
	return t, r, s
}

// TransformPoint applies m to p with w = 1 and no perspective divide.
func TransformPoint(m mgl32.Mat4, p mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{
		m[0]*p[0] + m[4]*p[1] + m[8]*p[2] + m[12],
		m[1]*p[0] + m[5]*p[1] + m[9]*p[2] + m[13],
		m[2]*p[0] + m[6]*p[1] + m[10]*p[2] + m[14],
	}
}

// TransformDirection applies the upper 3x3 of m to d (translation ignored).
func TransformDirection(m mgl32.Mat4, d mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{
		m[0]*d[0] + m[4]*d[1] + m[8]*d[2],
		m[1]*d[0] + m[5]*d[1] + m[9]*d[2],
		m[2]*d[0] + m[6]*d[1] + m[10]*d[2],
	}
}

// MaxAbsDiff returns the largest element-wise difference between a and b.
func MaxAbsDiff(a, b mgl32.Mat4) float32 {
	var worst float32
	for i := range a {
		d := a[i] - b[i]
		if d < 0 {
			d = -d
		}
		if d > worst {
			worst = d
		}
	}
	return worst
}

// ApproxEqualMat4 reports whether every element of a and b is within eps.
func ApproxEqualMat4(a, b mgl32.Mat4, eps float32) bool {
	return MaxAbsDiff(a, b) <= eps
}

// IsFinite reports whether m contains no NaN or Inf.
func IsFinite(m mgl32.Mat4) bool {
	for _, v := range m {
		f := float64(v)
		if gomath.IsNaN(f) || gomath.IsInf(f, 0) {
			return false
		}
	}
	return true
}

// LerpVec3 performs linear interpolation between two vectors.
func LerpVec3(a, b mgl32.Vec3, t float32) mgl32.Vec3 {
	return mgl32.Vec3{
		a[0] + t*(b[0]-a[0]),
		a[1] + t*(b[1]-a[1]),
		a[2] + t*(b[2]-a[2]),
	}
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
