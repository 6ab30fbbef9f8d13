package gltfasset

import (
	"path/filepath"
	"testing"
)

func TestSavePoseLoadsBack(t *testing.T) {
	meshes := []PosedMesh{
		{
			Name:      "tri",
			Positions: []float32{0, 0, 0, 1, 0, 0, 0, 2, 0},
			Normals:   []float32{0, 0, 1, 0, 0, 1, 0, 0, 1},
			Indices:   []uint32{0, 1, 2},
		},
		{
			Name:      "quad",
			Positions: []float32{0, 0, 1, 1, 0, 1, 1, 1, 1, 0, 1, 1},
			Indices:   []uint32{0, 1, 2, 0, 2, 3},
		},
	}
	path := filepath.Join(t.TempDir(), "pose.glb")
	if err := SavePose(path, "posed", meshes); err != nil {
		t.Fatalf("SavePose: %v", err)
	}

	d, err := Loader{}.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(d.Meshes) != 2 {
		t.Fatalf("meshes: got %d, want 2", len(d.Meshes))
	}
	if got := d.Meshes[0].Positions[2].Y(); got != 2 {
		t.Errorf("tri vertex 2 y = %v, want 2", got)
	}
	if got := len(d.Meshes[1].Indices); got != 6 {
		t.Errorf("quad indices = %d, want 6", got)
	}
}

func TestExportPoseRejectsBadPositions(t *testing.T) {
	if _, err := ExportPose("bad", []PosedMesh{{Name: "m", Positions: []float32{1, 2}}}); err == nil {
		t.Error("ExportPose with 2 floats: error = nil")
	}
}
