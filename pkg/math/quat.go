package math

import (
	gomath "math"

	"github.com/go-gl/mathgl/mgl32"
)

var (
	// AxisX is the local right axis.
	AxisX = mgl32.Vec3{1, 0, 0}
	// AxisY is the local up axis.
	AxisY = mgl32.Vec3{0, 1, 0}
	// AxisZ is the local forward axis.
	AxisZ = mgl32.Vec3{0, 0, 1}
)

// QuatFromAxisAngleDeg creates a rotation of deg degrees about axis.
// A zero axis yields the identity rotation.
func QuatFromAxisAngleDeg(axis mgl32.Vec3, deg float32) mgl32.Quat {
	if axis.Len() < 1e-6 {
		return mgl32.QuatIdent()
	}
	return mgl32.QuatRotate(mgl32.DegToRad(deg), axis.Normalize())
}

// QuatFromYawPitch composes a yaw about +Y followed by a pitch about +X
// in the rotated frame (yaw * pitch). Angles are in radians.
func QuatFromYawPitch(yaw, pitch float32) mgl32.Quat {
	qy := mgl32.QuatRotate(yaw, AxisY)
	qp := mgl32.QuatRotate(pitch, AxisX)
	return qy.Mul(qp).Normalize()
}

// QuatFromArray converts glTF order (x, y, z, w) into an mgl32.Quat.
func QuatFromArray(q [4]float32) mgl32.Quat {
	return mgl32.Quat{W: q[3], V: mgl32.Vec3{q[0], q[1], q[2]}}
}

// QuatAngle returns the rotation angle of a unit quaternion in radians.
func QuatAngle(q mgl32.Quat) float32 {
	w := Clamp(absf(q.Normalize().W), 0, 1)
	return float32(2 * gomath.Acos(float64(w)))
}

func absf(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
