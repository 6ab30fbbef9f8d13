package gltfasset

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/Faultbox/skinrig/internal/skeleton"
	"github.com/Faultbox/skinrig/internal/skin"
	"github.com/Faultbox/skinrig/pkg/math"
)

func ptr(i int) *int { return &i }

// testDoc is a two-bone rig with a skinned body and a rigid hat on the head.
func testDoc() *gltf.Document {
	doc := gltf.NewDocument()

	bodyPos := modeler.WritePosition(doc, [][3]float32{{0, 0, 0}, {0.5, 1, 0}, {-0.5, 1, 0}})
	bodyIdx := modeler.WriteIndices(doc, []uint16{0, 1, 2})
	bodyJoints := modeler.WriteJoints(doc, [][4]uint16{{0, 0, 0, 0}, {1, 0, 0, 0}, {0, 1, 0, 0}})
	bodyWeights := modeler.WriteWeights(doc, [][4]float32{{1, 0, 0, 0}, {1, 0, 0, 0}, {0.5, 0.5, 0, 0}})
	blink := modeler.WritePosition(doc, [][3]float32{{0, 0, 0}, {0, -0.1, 0}, {0, 0, 0}})

	hatPos := modeler.WritePosition(doc, [][3]float32{{0, 0, 0}, {0.1, 0, 0}, {0, 0.1, 0}})

	ibm := modeler.WriteAccessor(doc, gltf.TargetNone, [][4][4]float32{
		{{1, 0, 0, 0}, {0, 1, 0, 0}, {0, 0, 1, 0}, {0, 0, 0, 1}},
		{{1, 0, 0, 0}, {0, 1, 0, 0}, {0, 0, 1, 0}, {0, -1, 0, 1}},
	})

	doc.Meshes = []*gltf.Mesh{
		{
			Name:   "body",
			Extras: map[string]any{"targetNames": []any{"eyeBlinkLeft"}},
			Primitives: []*gltf.Primitive{{
				Indices: ptr(bodyIdx),
				Attributes: gltf.PrimitiveAttributes{
					gltf.POSITION:  bodyPos,
					gltf.JOINTS_0:  bodyJoints,
					gltf.WEIGHTS_0: bodyWeights,
				},
				Targets: []gltf.PrimitiveAttributes{{gltf.POSITION: blink}},
			}},
		},
		{
			Name: "hat",
			Primitives: []*gltf.Primitive{{
				Attributes: gltf.PrimitiveAttributes{gltf.POSITION: hatPos},
			}},
		},
	}
	doc.Skins = []*gltf.Skin{{Joints: []int{0, 1}, InverseBindMatrices: ptr(ibm)}}
	doc.Nodes = []*gltf.Node{
		{Name: "Hips", Children: []int{1, 2}},
		{Name: "Head", Translation: [3]float64{0, 1, 0}, Children: []int{3}},
		{Name: "body", Mesh: ptr(0), Skin: ptr(0)},
		{Name: "hatNode", Mesh: ptr(1), Translation: [3]float64{0, 0.2, 0}},
	}
	doc.Scenes = []*gltf.Scene{{Nodes: []int{0}}}
	return doc
}

func TestConvert(t *testing.T) {
	d, err := Convert(testDoc(), "rig")
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}

	if len(d.Bones) != 4 {
		t.Fatalf("bones: got %d, want 4", len(d.Bones))
	}
	if d.Bones[1].Name != "Head" || d.Bones[1].Parent != 0 || d.Bones[3].Parent != 1 {
		t.Errorf("hierarchy: %+v", d.Bones)
	}
	if want := []int{0, 1, 3}; len(d.JointToBone) != 3 || d.JointToBone[2] != want[2] {
		t.Errorf("joints: got %v, want %v", d.JointToBone, want)
	}

	h, err := skeleton.New(d.Bones)
	if err != nil {
		t.Fatalf("skeleton.New: %v", err)
	}
	if _, rep := skin.New(h, d.JointToBone, d.InverseBind, skin.Options{}); rep.Degraded() {
		t.Errorf("binding degraded: %v", rep.Err())
	}

	if len(d.Meshes) != 2 {
		t.Fatalf("meshes: got %d, want 2", len(d.Meshes))
	}
	body, hat := d.Meshes[0], d.Meshes[1]

	if body.Name != "body" || !body.HasSkin() {
		t.Errorf("body: name %q, skinned %v", body.Name, body.HasSkin())
	}
	if len(body.Morphs) != 1 || body.Morphs[0].Name != "eyeBlinkLeft" {
		t.Errorf("morphs: %+v", body.Morphs)
	}
	if w := body.Weights[2]; w[0] != 0.5 || w[1] != 0.5 {
		t.Errorf("weights: %v", w)
	}

	if !hat.HasSkin() || hat.Joints[0][0] != 2 {
		t.Errorf("hat not bound to its rigid joint: %v", hat.Joints)
	}
	// Hat geometry is baked into model space.
	if got := hat.Positions[2]; !got.ApproxEqualThreshold(mgl32.Vec3{0, 1.3, 0}, 1e-6) {
		t.Errorf("hat vertex: got %v, want (0,1.3,0)", got)
	}
	if len(hat.Indices) != 3 {
		t.Errorf("generated indices: %v", hat.Indices)
	}
}

func TestConvertInverseBindLayout(t *testing.T) {
	d, err := Convert(testDoc(), "rig")
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	want := mgl32.Translate3D(0, -1, 0)
	if !math.ApproxEqualMat4(d.InverseBind[1], want, 1e-6) {
		t.Errorf("IBM[1]: got %v, want %v", d.InverseBind[1], want)
	}
}

func TestConvertRejectsSharedChild(t *testing.T) {
	doc := testDoc()
	doc.Nodes[2].Children = []int{3}
	if _, err := Convert(doc, "bad"); err == nil {
		t.Error("expected error for a node with two parents")
	}
}

func TestConvertBadAccessorIndex(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(doc *gltf.Document)
	}{
		{"inverse bind", func(doc *gltf.Document) { doc.Skins[0].InverseBindMatrices = ptr(99) }},
		{"position", func(doc *gltf.Document) { doc.Meshes[1].Primitives[0].Attributes[gltf.POSITION] = 99 }},
		{"indices", func(doc *gltf.Document) { doc.Meshes[0].Primitives[0].Indices = ptr(-1) }},
		{"weights", func(doc *gltf.Document) { doc.Meshes[0].Primitives[0].Attributes[gltf.WEIGHTS_0] = 42 }},
		{"morph target", func(doc *gltf.Document) { doc.Meshes[0].Primitives[0].Targets[0][gltf.POSITION] = 7000 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := testDoc()
			tt.mutate(doc)
			_, err := Convert(doc, "bad")
			if !errors.Is(err, ErrBadAccessor) {
				t.Errorf("Convert error = %v, want ErrBadAccessor", err)
			}
		})
	}
}

func TestConvertEmpty(t *testing.T) {
	if _, err := Convert(gltf.NewDocument(), "empty"); err == nil {
		t.Error("expected error for an empty document")
	}
}

func TestLoadBinaryRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rig.glb")
	if err := gltf.SaveBinary(testDoc(), path); err != nil {
		t.Fatalf("SaveBinary: %v", err)
	}

	d, err := Loader{}.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if d.Name != "rig" {
		t.Errorf("name: got %q, want rig", d.Name)
	}
	if len(d.Bones) != 4 || len(d.Meshes) != 2 || d.VertexCount() != 6 {
		t.Errorf("got %d bones, %d meshes, %d vertices", len(d.Bones), len(d.Meshes), d.VertexCount())
	}
}

func TestTargetNames(t *testing.T) {
	tests := []struct {
		name   string
		extras any
		want   []string
	}{
		{"map", map[string]any{"targetNames": []any{"a", "b"}}, []string{"a", "b"}},
		{"missing", map[string]any{"other": 1}, nil},
		{"nil", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := targetNames(tt.extras)
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("got %v, want %v", got, tt.want)
				}
			}
		})
	}
}
