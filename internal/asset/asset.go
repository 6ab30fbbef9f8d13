// Package asset defines what a model loader hands the engine.
package asset

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/skinrig/internal/skeleton"
	"github.com/Faultbox/skinrig/internal/skinning"
)

// ErrNoMeshes is returned by Validate for a model without geometry.
var ErrNoMeshes = errors.New("asset: model has no meshes")

// ModelData is one loaded model. Inverse-bind matrices use column-vector
// composition: skin = world(JointToBone[j]) * InverseBind[j].
type ModelData struct {
	Name        string
	Bones       []skeleton.BoneDesc
	JointToBone []int
	InverseBind []mgl32.Mat4
	Meshes      []skinning.Mesh
}

// Loader reads a model from disk.
type Loader interface {
	Load(path string) (*ModelData, error)
}

// Validate checks the parts of d that the engine cannot degrade around.
// Per-joint problems are left to the skin binding report.
func (d *ModelData) Validate() error {
	if len(d.Meshes) == 0 {
		return ErrNoMeshes
	}
	for i := range d.Meshes {
		m := &d.Meshes[i]
		n := uint32(m.VertexCount())
		for k, idx := range m.Indices {
			if idx >= n {
				return fmt.Errorf("asset: mesh %q index %d refers to vertex %d of %d", m.Name, k, idx, n)
			}
		}
	}
	return nil
}

// VertexCount returns the total number of vertices over all meshes.
func (d *ModelData) VertexCount() int {
	n := 0
	for i := range d.Meshes {
		n += d.Meshes[i].VertexCount()
	}
	return n
}
