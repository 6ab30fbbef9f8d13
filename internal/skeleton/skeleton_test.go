package skeleton

import (
	"errors"
	gomath "math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/skinrig/pkg/math"
)

func bone(name string, parent int, t mgl32.Vec3) BoneDesc {
	return BoneDesc{
		Name:        name,
		Parent:      parent,
		Translation: t,
		Rotation:    mgl32.QuatIdent(),
		Scale:       mgl32.Vec3{1, 1, 1},
	}
}

func TestChildWorldTranslation(t *testing.T) {
	h, err := New([]BoneDesc{
		bone("root", NoParent, mgl32.Vec3{}),
		bone("child", 0, mgl32.Vec3{0, 1, 0}),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	w := h.World(1)
	got := mgl32.Vec3{w[12], w[13], w[14]}
	if !got.ApproxEqualThreshold(mgl32.Vec3{0, 1, 0}, 1e-5) {
		t.Errorf("child world translation: got %v, want (0,1,0)", got)
	}
}

func TestWorldIsParentTimesLocal(t *testing.T) {
	descs := []BoneDesc{
		bone("hips", NoParent, mgl32.Vec3{0, 1, 0}),
		bone("spine", 0, mgl32.Vec3{0, 0.2, 0}),
		bone("chest", 1, mgl32.Vec3{0, 0.2, 0.05}),
		bone("head", 2, mgl32.Vec3{0, 0.3, 0}),
		bone("prop", NoParent, mgl32.Vec3{2, 0, 0}),
	}
	descs[1].Rotation = mgl32.QuatRotate(0.3, math.AxisX)
	descs[2].Scale = mgl32.Vec3{1.1, 1, 0.9}

	h, err := New(descs)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h.SetOverride(3, mgl32.QuatRotate(0.5, math.AxisY))
	h.Update()

	for i := 0; i < h.Len(); i++ {
		b := h.Bone(i)
		want := b.Local
		if b.Parent != NoParent {
			want = h.World(b.Parent).Mul4(b.Local)
		}
		if !math.ApproxEqualMat4(b.World, want, 1e-6) {
			t.Errorf("bone %s: world != parent*local (diff %v)", b.Name, math.MaxAbsDiff(b.World, want))
		}
	}
}

func TestOverrideReplacesBindRotation(t *testing.T) {
	descs := []BoneDesc{bone("root", NoParent, mgl32.Vec3{})}
	descs[0].Rotation = mgl32.QuatRotate(1.0, math.AxisZ)

	h, err := New(descs)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	override := mgl32.QuatRotate(0.25, math.AxisY)
	h.SetOverride(0, override)
	h.Update()

	if !math.ApproxEqualMat4(h.World(0), override.Mat4(), 1e-6) {
		t.Error("override should replace, not compose with, the bind rotation")
	}

	h.ClearOverride(0)
	h.Update()
	if !math.ApproxEqualMat4(h.World(0), descs[0].Rotation.Mat4(), 1e-6) {
		t.Error("clearing override should restore the bind rotation")
	}
}

func TestBindWorldIgnoresLaterOverrides(t *testing.T) {
	h, err := New([]BoneDesc{
		bone("root", NoParent, mgl32.Vec3{}),
		bone("arm", 0, mgl32.Vec3{1, 0, 0}),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	bind := h.BindWorld(1)

	h.SetOverride(0, mgl32.QuatRotate(float32(gomath.Pi/2), math.AxisZ))
	h.Update()

	if h.BindWorld(1) != bind {
		t.Error("bind world must not change after load")
	}
	if math.ApproxEqualMat4(h.World(1), bind, 1e-3) {
		t.Error("animated world should differ from bind world")
	}
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name    string
		descs   []BoneDesc
		wantErr error
	}{
		{
			name:    "empty",
			descs:   nil,
			wantErr: ErrEmpty,
		},
		{
			name: "dangling parent",
			descs: []BoneDesc{
				bone("root", NoParent, mgl32.Vec3{}),
				bone("child", 7, mgl32.Vec3{}),
			},
			wantErr: ErrDanglingParent,
		},
		{
			name: "negative parent other than root",
			descs: []BoneDesc{
				bone("root", NoParent, mgl32.Vec3{}),
				bone("child", -2, mgl32.Vec3{}),
			},
			wantErr: ErrDanglingParent,
		},
		{
			name: "self parent",
			descs: []BoneDesc{
				bone("loop", 0, mgl32.Vec3{}),
			},
			wantErr: ErrCycle,
		},
		{
			name: "two bone cycle",
			descs: []BoneDesc{
				bone("root", NoParent, mgl32.Vec3{}),
				bone("a", 2, mgl32.Vec3{}),
				bone("b", 1, mgl32.Vec3{}),
			},
			wantErr: ErrCycle,
		},
		{
			name: "valid forest",
			descs: []BoneDesc{
				bone("a", NoParent, mgl32.Vec3{}),
				bone("b", NoParent, mgl32.Vec3{}),
				bone("c", 1, mgl32.Vec3{}),
			},
			wantErr: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.descs)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestOrderParentsFirst(t *testing.T) {
	// Children listed before their parents in the source array.
	h, err := New([]BoneDesc{
		bone("hand", 2, mgl32.Vec3{}),
		bone("root", NoParent, mgl32.Vec3{}),
		bone("arm", 1, mgl32.Vec3{}),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	seen := make(map[int]bool)
	for _, i := range h.Order() {
		if p := h.Bone(i).Parent; p != NoParent && !seen[p] {
			t.Errorf("bone %d visited before parent %d", i, p)
		}
		seen[i] = true
	}
	if len(seen) != h.Len() {
		t.Errorf("order covers %d of %d bones", len(seen), h.Len())
	}
}

func TestSubtreeIndex(t *testing.T) {
	//   0 root
	//   ├── 1 spine
	//   │   ├── 2 neck
	//   │   │   └── 3 head
	//   │   └── 4 arm
	//   └── 5 leg
	h, err := New([]BoneDesc{
		bone("root", NoParent, mgl32.Vec3{}),
		bone("spine", 0, mgl32.Vec3{}),
		bone("neck", 1, mgl32.Vec3{}),
		bone("head", 2, mgl32.Vec3{}),
		bone("arm", 1, mgl32.Vec3{}),
		bone("leg", 0, mgl32.Vec3{}),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	tests := []struct {
		root int
		want map[int]bool
	}{
		{root: 2, want: map[int]bool{2: true, 3: true}},
		{root: 1, want: map[int]bool{1: true, 2: true, 3: true, 4: true}},
		{root: 5, want: map[int]bool{5: true}},
	}

	for _, tt := range tests {
		sub := h.Subtree(tt.root)
		if len(sub) != len(tt.want) {
			t.Errorf("subtree(%d): got %v", tt.root, sub)
		}
		for _, b := range sub {
			if !tt.want[b] {
				t.Errorf("subtree(%d) contains %d", tt.root, b)
			}
		}
		for b := 0; b < h.Len(); b++ {
			if h.InSubtree(tt.root, b) != tt.want[b] {
				t.Errorf("InSubtree(%d, %d) = %v", tt.root, b, !tt.want[b])
			}
		}
	}
}

func TestFindAndScale(t *testing.T) {
	h, err := New([]BoneDesc{
		bone("root", NoParent, mgl32.Vec3{}),
		bone("chest", 0, mgl32.Vec3{0, 1, 0}),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	i, ok := h.Find("chest")
	if !ok || i != 1 {
		t.Fatalf("Find(chest) = %d, %v", i, ok)
	}
	if _, ok := h.Find("tail"); ok {
		t.Error("Find should miss unknown names")
	}

	h.SetScale(i, mgl32.Vec3{1.05, 1.05, 1.05})
	h.Update()
	if got := h.World(i)[0]; gomath.Abs(float64(got)-1.05) > 1e-6 {
		t.Errorf("scaled world x axis: got %v", got)
	}
	h.ResetScale(i)
	if h.Bone(i).Scale != (mgl32.Vec3{1, 1, 1}) {
		t.Errorf("ResetScale: got %v", h.Bone(i).Scale)
	}
}

func TestZeroQuaternionTreatedAsIdentity(t *testing.T) {
	d := bone("root", NoParent, mgl32.Vec3{})
	d.Rotation = mgl32.Quat{}
	h, err := New([]BoneDesc{d})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !math.IsFinite(h.World(0)) || !math.ApproxEqualMat4(h.World(0), mgl32.Ident4(), 1e-6) {
		t.Errorf("zero quaternion should load as identity, got %v", h.World(0))
	}
}
