package gltfasset

import (
	"fmt"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
)

// PosedMesh is one deformed mesh in model space. Positions and Normals are
// flat xyz triples.
type PosedMesh struct {
	Name      string
	Positions []float32
	Normals   []float32
	Indices   []uint32
}

// ExportPose builds an unskinned document holding one node per mesh, so a
// pose computed on the CPU can be inspected in any glTF viewer.
func ExportPose(name string, meshes []PosedMesh) (*gltf.Document, error) {
	doc := gltf.NewDocument()
	root := &gltf.Node{Name: name}
	doc.Nodes = append(doc.Nodes, root)

	for _, pm := range meshes {
		if len(pm.Positions)%3 != 0 || len(pm.Positions) == 0 {
			return nil, fmt.Errorf("export %s: mesh %q has %d position floats", name, pm.Name, len(pm.Positions))
		}
		attrs := gltf.PrimitiveAttributes{
			gltf.POSITION: modeler.WritePosition(doc, triples(pm.Positions)),
		}
		if len(pm.Normals) == len(pm.Positions) {
			attrs[gltf.NORMAL] = modeler.WriteNormal(doc, triples(pm.Normals))
		}
		prim := &gltf.Primitive{Attributes: attrs}
		if len(pm.Indices) > 0 {
			prim.Indices = gltf.Index(modeler.WriteIndices(doc, pm.Indices))
		}

		doc.Meshes = append(doc.Meshes, &gltf.Mesh{Name: pm.Name, Primitives: []*gltf.Primitive{prim}})
		doc.Nodes = append(doc.Nodes, &gltf.Node{Name: pm.Name, Mesh: gltf.Index(len(doc.Meshes) - 1)})
		root.Children = append(root.Children, len(doc.Nodes)-1)
	}

	doc.Scenes = []*gltf.Scene{{Name: name, Nodes: []int{0}}}
	doc.Scene = gltf.Index(0)
	return doc, nil
}

// SavePose writes meshes to path as a binary glTF.
func SavePose(path, name string, meshes []PosedMesh) error {
	doc, err := ExportPose(name, meshes)
	if err != nil {
		return err
	}
	if err := gltf.SaveBinary(doc, path); err != nil {
		return fmt.Errorf("export %s: %w", path, err)
	}
	return nil
}

func triples(flat []float32) [][3]float32 {
	out := make([][3]float32, len(flat)/3)
	for i := range out {
		out[i] = [3]float32{flat[3*i], flat[3*i+1], flat[3*i+2]}
	}
	return out
}
