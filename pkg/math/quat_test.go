package math

import (
	gomath "math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestQuatFromAxisAngleDegZeroAxis(t *testing.T) {
	q := QuatFromAxisAngleDeg(mgl32.Vec3{}, 45)
	if q != mgl32.QuatIdent() {
		t.Errorf("zero axis should give identity, got %v", q)
	}
}

func TestQuatFromAxisAngleDeg(t *testing.T) {
	q := QuatFromAxisAngleDeg(AxisY, 90)
	p := q.Rotate(mgl32.Vec3{1, 0, 0})
	// +90 about Y maps +X to -Z
	if !p.ApproxEqualThreshold(mgl32.Vec3{0, 0, -1}, 1e-5) {
		t.Errorf("rotate +X by 90 about Y: got %v", p)
	}
}

func TestQuatFromYawPitch(t *testing.T) {
	q := QuatFromYawPitch(float32(gomath.Pi/2), 0)
	p := q.Rotate(AxisZ)
	if !p.ApproxEqualThreshold(mgl32.Vec3{1, 0, 0}, 1e-5) {
		t.Errorf("yaw 90 of +Z: got %v, want +X", p)
	}

	q = QuatFromYawPitch(0, float32(gomath.Pi/2))
	p = q.Rotate(AxisZ)
	if !p.ApproxEqualThreshold(mgl32.Vec3{0, -1, 0}, 1e-5) {
		t.Errorf("pitch 90 of +Z: got %v, want -Y", p)
	}
}

func TestQuatFromArray(t *testing.T) {
	q := QuatFromArray([4]float32{0, 0.7071068, 0, 0.7071068})
	if q.W != 0.7071068 || q.V[1] != 0.7071068 {
		t.Errorf("QuatFromArray: got %v", q)
	}
}

func TestQuatAngle(t *testing.T) {
	q := mgl32.QuatRotate(float32(gomath.Pi/3), AxisX)
	got := QuatAngle(q)
	if gomath.Abs(float64(got)-gomath.Pi/3) > 1e-4 {
		t.Errorf("QuatAngle: got %v, want %v", got, gomath.Pi/3)
	}
}
