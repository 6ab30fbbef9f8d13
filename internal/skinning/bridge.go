package skinning

import (
	"github.com/go-gl/mathgl/mgl32"
)

// ProgramVariant selects which vertex stage a program is built with.
type ProgramVariant int

const (
	// VariantSkinned blends bind positions with the bone matrix array.
	VariantSkinned ProgramVariant = iota
	// VariantRigid draws positions as given.
	VariantRigid
)

func (v ProgramVariant) String() string {
	if v == VariantSkinned {
		return "skinned"
	}
	return "rigid"
}

// Program is a linked shader program owned by the bridge.
type Program uint32

// MeshHandle names the vertex buffers of one mesh.
type MeshHandle uint32

// MeshUpload is the flat vertex data of one mesh. Weights and Joints hold
// four entries per vertex and are all zero when the mesh has no skin.
type MeshUpload struct {
	Name      string
	Positions []float32
	Normals   []float32
	UVs       []float32
	Weights   []float32
	Joints    []int32
	Indices   []uint32
	// Dynamic marks position data that will be replaced every tick.
	Dynamic bool
}

// Bridge is the graphics backend the skinning engine draws through. All
// calls happen on the thread that owns the graphics context.
type Bridge interface {
	// CompileProgram builds a program whose bone array holds maxBones matrices.
	CompileProgram(name string, variant ProgramVariant, maxBones int) (Program, error)
	CreateMeshBuffers(m MeshUpload) (MeshHandle, error)
	// UpdatePositions replaces the position buffer of a mesh.
	UpdatePositions(h MeshHandle, positions []float32) error
	UploadSkinMatrices(p Program, mats []mgl32.Mat4)
	Draw(p Program, h MeshHandle, hasSkin bool)
	DeleteMesh(h MeshHandle)
	DeleteProgram(p Program)
}

// NewMeshUpload flattens m into the layout CreateMeshBuffers expects.
func NewMeshUpload(m *Mesh, dynamic bool) MeshUpload {
	n := m.VertexCount()
	up := MeshUpload{
		Name:      m.Name,
		Positions: flatten3(make([]float32, 0, 3*n), m.Positions),
		Indices:   m.Indices,
		Weights:   make([]float32, Influences*n),
		Joints:    make([]int32, Influences*n),
		Dynamic:   dynamic,
	}
	if len(m.Normals) == n {
		up.Normals = flatten3(make([]float32, 0, 3*n), m.Normals)
	} else {
		up.Normals = make([]float32, 3*n)
	}
	if len(m.UVs) == n {
		up.UVs = flatten2(make([]float32, 0, 2*n), m.UVs)
	} else {
		up.UVs = make([]float32, 2*n)
	}
	if m.HasSkin() {
		for v := 0; v < n; v++ {
			for i := 0; i < Influences; i++ {
				up.Weights[Influences*v+i] = m.Weights[v][i]
				up.Joints[Influences*v+i] = int32(m.Joints[v][i])
			}
		}
	}
	return up
}
