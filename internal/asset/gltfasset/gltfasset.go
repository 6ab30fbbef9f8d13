// Package gltfasset loads glTF 2.0 and GLB avatars into asset.ModelData.
package gltfasset

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"go.uber.org/zap"

	"github.com/Faultbox/skinrig/internal/asset"
	"github.com/Faultbox/skinrig/internal/logger"
	"github.com/Faultbox/skinrig/internal/skeleton"
	"github.com/Faultbox/skinrig/internal/skinning"
	"github.com/Faultbox/skinrig/pkg/math"
)

var (
	ErrNoNodes        = errors.New("gltf: document has no nodes")
	ErrMultipleParent = errors.New("gltf: node has more than one parent")
	ErrBadAccessor    = errors.New("gltf: accessor index out of range")
)

// Loader reads .gltf and .glb files. Only the first skin is used; meshes
// bound to other skins are skipped.
type Loader struct{}

var _ asset.Loader = Loader{}

// Load opens path and converts it.
func (Loader) Load(path string) (*asset.ModelData, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return Convert(doc, name)
}

// Convert turns every node into a bone, with bone i = node i. Skin joints
// map straight onto node indices. Meshes on nodes without a skin get an
// extra rigid joint bound to their node.
func Convert(doc *gltf.Document, name string) (*asset.ModelData, error) {
	log := logger.Named("gltf").With(zap.String("model", name))
	if len(doc.Nodes) == 0 {
		return nil, ErrNoNodes
	}

	bones, err := readBones(doc)
	if err != nil {
		return nil, err
	}
	h, err := skeleton.New(bones)
	if err != nil {
		return nil, fmt.Errorf("gltf %s: %w", name, err)
	}

	d := &asset.ModelData{Name: name, Bones: bones}

	skinIdx := -1
	if len(doc.Skins) > 0 {
		skinIdx = 0
		if len(doc.Skins) > 1 {
			log.Warn("multiple skins, using the first", zap.Int("skins", len(doc.Skins)))
		}
		if err := readSkin(doc, doc.Skins[0], d); err != nil {
			return nil, fmt.Errorf("gltf %s: %w", name, err)
		}
	}

	rigidJoint := make(map[int]uint16)
	for ni, node := range doc.Nodes {
		if node.Mesh == nil || *node.Mesh >= len(doc.Meshes) {
			continue
		}
		gm := doc.Meshes[*node.Mesh]

		skinned := node.Skin != nil && *node.Skin == skinIdx
		if node.Skin != nil && !skinned {
			log.Warn("mesh bound to an unused skin, skipping", zap.String("mesh", gm.Name))
			continue
		}

		var bindWorld mgl32.Mat4
		var joint uint16
		if !skinned {
			j, ok := rigidJoint[ni]
			if !ok {
				j = uint16(len(d.JointToBone))
				d.JointToBone = append(d.JointToBone, ni)
				d.InverseBind = padInverseBind(d.InverseBind, int(j))
				d.InverseBind = append(d.InverseBind, h.BindWorld(ni).Inv())
				rigidJoint[ni] = j
			}
			joint = j
			bindWorld = h.BindWorld(ni)
		}

		names := targetNames(gm.Extras)
		for pi, prim := range gm.Primitives {
			if prim.Mode != gltf.PrimitiveTriangles {
				log.Debug("skipping non-triangle primitive", zap.String("mesh", gm.Name), zap.Int("primitive", pi))
				continue
			}
			m, err := readPrimitive(doc, prim, names)
			if err != nil {
				return nil, fmt.Errorf("gltf %s mesh %q primitive %d: %w", name, gm.Name, pi, err)
			}
			m.Name = meshName(gm.Name, ni, pi, len(gm.Primitives))
			if !skinned {
				bakeRigid(&m, bindWorld, joint)
			}
			d.Meshes = append(d.Meshes, m)
		}
	}

	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("gltf %s: %w", name, err)
	}
	log.Info("model loaded",
		zap.Int("bones", len(d.Bones)),
		zap.Int("joints", len(d.JointToBone)),
		zap.Int("meshes", len(d.Meshes)),
		zap.Int("vertices", d.VertexCount()))
	return d, nil
}

func readBones(doc *gltf.Document) ([]skeleton.BoneDesc, error) {
	bones := make([]skeleton.BoneDesc, len(doc.Nodes))
	for i := range bones {
		bones[i].Parent = skeleton.NoParent
	}
	for i, node := range doc.Nodes {
		for _, c := range node.Children {
			if c < 0 || c >= len(bones) {
				return nil, fmt.Errorf("%w: node %d child %d", skeleton.ErrDanglingParent, i, c)
			}
			if bones[c].Parent != skeleton.NoParent {
				return nil, fmt.Errorf("%w: node %d", ErrMultipleParent, c)
			}
			bones[c].Parent = i
		}
	}

	for i, node := range doc.Nodes {
		b := &bones[i]
		b.Name = node.Name
		if b.Name == "" {
			b.Name = fmt.Sprintf("node%d", i)
		}

		if mat := node.MatrixOrDefault(); mat != gltf.DefaultMatrix {
			var m mgl32.Mat4
			for k, v := range mat {
				m[k] = float32(v)
			}
			b.Translation, b.Rotation, b.Scale = math.Decompose(m)
			continue
		}

		t := node.TranslationOrDefault()
		r := node.RotationOrDefault()
		s := node.ScaleOrDefault()
		b.Translation = mgl32.Vec3{float32(t[0]), float32(t[1]), float32(t[2])}
		b.Rotation = math.QuatFromArray([4]float32{float32(r[0]), float32(r[1]), float32(r[2]), float32(r[3])})
		b.Scale = mgl32.Vec3{float32(s[0]), float32(s[1]), float32(s[2])}
	}
	return bones, nil
}

func readSkin(doc *gltf.Document, s *gltf.Skin, d *asset.ModelData) error {
	d.JointToBone = append(d.JointToBone[:0], s.Joints...)
	if s.InverseBindMatrices == nil {
		return nil
	}
	acr, err := accessor(doc, *s.InverseBindMatrices)
	if err != nil {
		return fmt.Errorf("inverse bind matrices: %w", err)
	}
	raw, err := modeler.ReadAccessor(doc, acr, nil)
	if err != nil {
		return fmt.Errorf("inverse bind matrices: %w", err)
	}
	mats, ok := raw.([][4][4]float32)
	if !ok {
		return fmt.Errorf("inverse bind matrices: unexpected accessor data %T", raw)
	}
	d.InverseBind = make([]mgl32.Mat4, len(mats))
	for j, c := range mats {
		// Accessor data is column-major like mgl32.
		for col := 0; col < 4; col++ {
			for row := 0; row < 4; row++ {
				d.InverseBind[j][col*4+row] = c[col][row]
			}
		}
	}
	return nil
}

// padInverseBind fills missing matrices up to n with identity so an
// appended rigid joint lines up with its index.
func padInverseBind(ibm []mgl32.Mat4, n int) []mgl32.Mat4 {
	for len(ibm) < n {
		ibm = append(ibm, mgl32.Ident4())
	}
	return ibm
}

func readPrimitive(doc *gltf.Document, prim *gltf.Primitive, targetNames []string) (skinning.Mesh, error) {
	var m skinning.Mesh

	posIdx, ok := prim.Attributes[gltf.POSITION]
	if !ok {
		return m, errors.New("no POSITION attribute")
	}
	acr, err := accessor(doc, posIdx)
	if err != nil {
		return m, fmt.Errorf("read positions: %w", err)
	}
	pos, err := modeler.ReadPosition(doc, acr, nil)
	if err != nil {
		return m, fmt.Errorf("read positions: %w", err)
	}
	m.Positions = toVec3(pos)
	n := len(pos)

	if idx, ok := prim.Attributes[gltf.NORMAL]; ok {
		acr, err := accessor(doc, idx)
		if err != nil {
			return m, fmt.Errorf("read normals: %w", err)
		}
		normals, err := modeler.ReadNormal(doc, acr, nil)
		if err != nil {
			return m, fmt.Errorf("read normals: %w", err)
		}
		if len(normals) == n {
			m.Normals = toVec3(normals)
		}
	}

	if idx, ok := prim.Attributes[gltf.TEXCOORD_0]; ok {
		acr, err := accessor(doc, idx)
		if err != nil {
			return m, fmt.Errorf("read uvs: %w", err)
		}
		uvs, err := modeler.ReadTextureCoord(doc, acr, nil)
		if err != nil {
			return m, fmt.Errorf("read uvs: %w", err)
		}
		if len(uvs) == n {
			m.UVs = make([]mgl32.Vec2, n)
			for i, uv := range uvs {
				m.UVs[i] = mgl32.Vec2{uv[0], uv[1]}
			}
		}
	}

	if prim.Indices != nil {
		acr, err := accessor(doc, *prim.Indices)
		if err != nil {
			return m, fmt.Errorf("read indices: %w", err)
		}
		m.Indices, err = modeler.ReadIndices(doc, acr, nil)
		if err != nil {
			return m, fmt.Errorf("read indices: %w", err)
		}
	} else {
		m.Indices = make([]uint32, n)
		for i := range m.Indices {
			m.Indices[i] = uint32(i)
		}
	}

	jIdx, hasJ := prim.Attributes[gltf.JOINTS_0]
	wIdx, hasW := prim.Attributes[gltf.WEIGHTS_0]
	if hasJ && hasW {
		jAcr, err := accessor(doc, jIdx)
		if err != nil {
			return m, fmt.Errorf("read joints: %w", err)
		}
		wAcr, err := accessor(doc, wIdx)
		if err != nil {
			return m, fmt.Errorf("read weights: %w", err)
		}
		joints, err := modeler.ReadJoints(doc, jAcr, nil)
		if err != nil {
			return m, fmt.Errorf("read joints: %w", err)
		}
		weights, err := modeler.ReadWeights(doc, wAcr, nil)
		if err != nil {
			return m, fmt.Errorf("read weights: %w", err)
		}
		if len(joints) == n && len(weights) == n {
			m.Joints = make([][skinning.Influences]uint16, n)
			m.Weights = make([][skinning.Influences]float32, n)
			for i := range joints {
				m.Joints[i] = joints[i]
				m.Weights[i] = weights[i]
			}
		}
	}

	for ti, target := range prim.Targets {
		mt := skinning.MorphTarget{Name: fmt.Sprintf("target%d", ti)}
		if ti < len(targetNames) && targetNames[ti] != "" {
			mt.Name = targetNames[ti]
		}
		if idx, ok := target[gltf.POSITION]; ok {
			acr, err := accessor(doc, idx)
			if err != nil {
				return m, fmt.Errorf("read target %q: %w", mt.Name, err)
			}
			d, err := modeler.ReadPosition(doc, acr, nil)
			if err != nil {
				return m, fmt.Errorf("read target %q: %w", mt.Name, err)
			}
			mt.PositionDeltas = toVec3(d)
		}
		if idx, ok := target[gltf.NORMAL]; ok {
			acr, err := accessor(doc, idx)
			if err != nil {
				return m, fmt.Errorf("read target %q normals: %w", mt.Name, err)
			}
			d, err := modeler.ReadNormal(doc, acr, nil)
			if err != nil {
				return m, fmt.Errorf("read target %q normals: %w", mt.Name, err)
			}
			mt.NormalDeltas = toVec3(d)
		}
		m.Morphs = append(m.Morphs, mt)
	}
	return m, nil
}

func accessor(doc *gltf.Document, idx int) (*gltf.Accessor, error) {
	if idx < 0 || idx >= len(doc.Accessors) {
		return nil, fmt.Errorf("%w: %d of %d", ErrBadAccessor, idx, len(doc.Accessors))
	}
	return doc.Accessors[idx], nil
}

// bakeRigid moves node-local geometry into model space and binds every
// vertex fully to joint.
func bakeRigid(m *skinning.Mesh, world mgl32.Mat4, joint uint16) {
	for i, p := range m.Positions {
		m.Positions[i] = math.TransformPoint(world, p)
	}
	for i, nrm := range m.Normals {
		m.Normals[i] = math.TransformDirection(world, nrm).Normalize()
	}
	for ti := range m.Morphs {
		for i, d := range m.Morphs[ti].PositionDeltas {
			m.Morphs[ti].PositionDeltas[i] = math.TransformDirection(world, d)
		}
	}
	m.Joints = make([][skinning.Influences]uint16, len(m.Positions))
	m.Weights = make([][skinning.Influences]float32, len(m.Positions))
	for i := range m.Joints {
		m.Joints[i] = [skinning.Influences]uint16{joint}
		m.Weights[i] = [skinning.Influences]float32{1}
	}
}

// targetNames reads the conventional mesh.extras.targetNames array.
func targetNames(extras any) []string {
	var fields map[string]any
	switch e := extras.(type) {
	case map[string]any:
		fields = e
	case json.RawMessage:
		if err := json.Unmarshal(e, &fields); err != nil {
			return nil
		}
	default:
		return nil
	}
	list, ok := fields["targetNames"].([]any)
	if !ok {
		return nil
	}
	names := make([]string, len(list))
	for i, v := range list {
		names[i], _ = v.(string)
	}
	return names
}

func meshName(base string, node, prim, prims int) string {
	if base == "" {
		base = fmt.Sprintf("node%d", node)
	}
	if prims > 1 {
		return fmt.Sprintf("%s#%d", base, prim)
	}
	return base
}

func toVec3(src [][3]float32) []mgl32.Vec3 {
	out := make([]mgl32.Vec3, len(src))
	for i, v := range src {
		out[i] = v
	}
	return out
}
