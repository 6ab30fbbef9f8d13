package math

import (
	gomath "math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestComposeTRSMatchesProduct(t *testing.T) {
	tr := mgl32.Vec3{1, 2, 3}
	rot := mgl32.QuatRotate(0.7, mgl32.Vec3{0.3, 1, 0.2}.Normalize())
	sc := mgl32.Vec3{2, 0.5, 1.5}

	got := ComposeTRS(tr, rot, sc)
	want := mgl32.Translate3D(1, 2, 3).Mul4(rot.Mat4()).Mul4(mgl32.Scale3D(2, 0.5, 1.5))

	if !ApproxEqualMat4(got, want, 1e-5) {
		t.Errorf("ComposeTRS: max diff %v", MaxAbsDiff(got, want))
	}
}

func TestDecomposeRoundTrip(t *testing.T) {
	tr := mgl32.Vec3{-4, 0.25, 9}
	rot := mgl32.QuatRotate(1.1, mgl32.Vec3{1, 0, 1}.Normalize())
	sc := mgl32.Vec3{1, 2, 3}

	m := ComposeTRS(tr, rot, sc)
	gotT, gotR, gotS := Decompose(m)

	if !gotT.ApproxEqualThreshold(tr, 1e-5) {
		t.Errorf("translation: got %v, want %v", gotT, tr)
	}
	if !gotS.ApproxEqualThreshold(sc, 1e-5) {
		t.Errorf("scale: got %v, want %v", gotS, sc)
	}
	if !ApproxEqualMat4(gotR.Mat4(), rot.Mat4(), 1e-5) {
		t.Errorf("rotation: got %v, want %v", gotR, rot)
	}
}

func TestTransformPoint(t *testing.T) {
	m := mgl32.Translate3D(10, 20, 30)
	got := TransformPoint(m, mgl32.Vec3{1, 2, 3})
	want := mgl32.Vec3{11, 22, 33}
	if got != want {
		t.Errorf("TransformPoint: got %v, want %v", got, want)
	}
}

func TestTransformDirectionIgnoresTranslation(t *testing.T) {
	m := mgl32.Translate3D(10, 20, 30).Mul4(mgl32.Scale3D(2, 2, 2))
	got := TransformDirection(m, mgl32.Vec3{1, 0, 0})
	want := mgl32.Vec3{2, 0, 0}
	if got != want {
		t.Errorf("TransformDirection: got %v, want %v", got, want)
	}
}

func TestIsFinite(t *testing.T) {
	m := mgl32.Ident4()
	if !IsFinite(m) {
		t.Error("identity should be finite")
	}
	m[5] = float32(gomath.NaN())
	if IsFinite(m) {
		t.Error("NaN matrix reported finite")
	}
	m[5] = float32(gomath.Inf(1))
	if IsFinite(m) {
		t.Error("Inf matrix reported finite")
	}
}

func TestClamp(t *testing.T) {
	tests := []struct {
		v, want float32
	}{
		{-2, -1},
		{0.5, 0.5},
		{3, 1},
	}
	for _, tt := range tests {
		if got := Clamp(tt.v, -1, 1); got != tt.want {
			t.Errorf("Clamp(%v) = %v, want %v", tt.v, got, tt.want)
		}
	}
}
