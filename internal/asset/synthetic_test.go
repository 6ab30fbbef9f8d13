package asset

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/skinrig/internal/skeleton"
	"github.com/Faultbox/skinrig/internal/skin"
)

func TestSyntheticIsConsistent(t *testing.T) {
	d := Synthetic()
	if err := d.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	h, err := skeleton.New(d.Bones)
	if err != nil {
		t.Fatalf("skeleton.New: %v", err)
	}
	if _, rep := skin.New(h, d.JointToBone, d.InverseBind, skin.Options{}); rep.Degraded() {
		t.Fatalf("binding degraded: %v", rep.Err())
	}

	for _, name := range []string{"Head", "Chest", "LeftUpperArm", "RightHand", "LeftIndexProximal"} {
		if _, ok := h.Find(name); !ok {
			t.Errorf("bone %q missing", name)
		}
	}

	for i := range d.Meshes {
		m := &d.Meshes[i]
		if !m.HasSkin() {
			t.Errorf("mesh %q has no skin", m.Name)
		}
		if len(m.Normals) != m.VertexCount() || len(m.UVs) != m.VertexCount() {
			t.Errorf("mesh %q attribute count mismatch", m.Name)
		}
		for v, w := range m.Weights {
			var sum float32
			for _, x := range w {
				sum += x
			}
			if absf(sum-1) > 1e-5 {
				t.Fatalf("mesh %q vertex %d weights sum to %v", m.Name, v, sum)
			}
		}
	}
}

func TestSyntheticBlinkTargets(t *testing.T) {
	d := Synthetic()
	eyes := -1
	for i := range d.Meshes {
		if d.Meshes[i].Name == "eyes" {
			eyes = i
		}
	}
	if eyes < 0 {
		t.Fatal("no eyes mesh")
	}
	m := d.Meshes[eyes]
	names := map[string]bool{}
	for _, mt := range m.Morphs {
		names[mt.Name] = true
		if len(mt.PositionDeltas) != m.VertexCount() {
			t.Errorf("target %q has %d deltas for %d vertices", mt.Name, len(mt.PositionDeltas), m.VertexCount())
		}
	}
	if !names["eyeBlinkLeft"] || !names["eyeBlinkRight"] {
		t.Errorf("targets: %v", names)
	}
}

func TestValidateRejectsBadIndex(t *testing.T) {
	d := Synthetic()
	d.Meshes[0].Indices = append(d.Meshes[0].Indices, 1<<20)
	if err := d.Validate(); err == nil {
		t.Error("expected index error")
	}

	if err := (&ModelData{}).Validate(); err != ErrNoMeshes {
		t.Errorf("got %v, want ErrNoMeshes", err)
	}
}

func TestBasisIsOrthonormal(t *testing.T) {
	for _, dir := range []mgl32.Vec3{{0, 1, 0}, {1, 0, 0}, {0, 0, 3}, {1, 1, 1}} {
		u, v := basis(dir)
		d := dir.Normalize()
		if absf(u.Len()-1) > 1e-5 || absf(v.Len()-1) > 1e-5 {
			t.Errorf("dir %v: not unit", dir)
		}
		if absf(u.Dot(d)) > 1e-5 || absf(v.Dot(d)) > 1e-5 || absf(u.Dot(v)) > 1e-5 {
			t.Errorf("dir %v: not orthogonal", dir)
		}
	}
}
