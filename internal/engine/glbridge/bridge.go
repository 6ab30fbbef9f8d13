// Package glbridge implements the skinning backend on OpenGL 4.1 core.
package glbridge

import (
	"errors"
	"fmt"
	"strconv"
	"unsafe"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/Faultbox/skinrig/internal/engine/glbridge/shaders"
	"github.com/Faultbox/skinrig/internal/engine/shader"
	"github.com/Faultbox/skinrig/internal/logger"
	"github.com/Faultbox/skinrig/internal/skinning"
)

// Vertex attribute locations shared by both vertex stages.
const (
	attrPosition = 0
	attrNormal   = 1
	attrUV       = 2
	attrWeights  = 3
	attrJoints   = 4
)

// ErrUnknownMesh is returned for handles the bridge did not create.
var ErrUnknownMesh = errors.New("glbridge: unknown mesh handle")

type program struct {
	id         uint32
	variant    skinning.ProgramVariant
	maxBones   int
	locMVP     int32
	locModel   int32
	locBones   int32
	locCount   int32
	locSkin    int32
	locLight   int32
	locColor   int32
	locAmbient int32
}

type mesh struct {
	name     string
	vao      uint32
	vbo      [5]uint32
	ebo      uint32
	vertices int
	indices  int32
	dynamic  bool
}

// Bridge owns every GL object the skinning engine creates. It must only be
// used on the thread holding the GL context.
type Bridge struct {
	log      *zap.Logger
	programs map[skinning.Program]*program
	meshes   map[skinning.MeshHandle]*mesh
	nextMesh skinning.MeshHandle

	view, proj, model mgl32.Mat4
	lightDir          mgl32.Vec3
	ambient           mgl32.Vec3
	color             mgl32.Vec3
}

// New creates an empty bridge. gl.Init must already have run.
func New() *Bridge {
	return &Bridge{
		log:      logger.Named("glbridge"),
		programs: make(map[skinning.Program]*program),
		meshes:   make(map[skinning.MeshHandle]*mesh),
		view:     mgl32.Ident4(),
		proj:     mgl32.Ident4(),
		model:    mgl32.Ident4(),
		lightDir: mgl32.Vec3{0.3, 1, 0.6}.Normalize(),
		ambient:  mgl32.Vec3{0.35, 0.35, 0.4},
		color:    mgl32.Vec3{0.82, 0.74, 0.66},
	}
}

// SetCamera sets the view and projection used by subsequent draws.
func (b *Bridge) SetCamera(view, proj mgl32.Mat4) {
	b.view, b.proj = view, proj
}

// SetModel sets the model-to-world transform of the avatar.
func (b *Bridge) SetModel(m mgl32.Mat4) { b.model = m }

// SetLight sets the light direction (towards the light) and ambient term.
func (b *Bridge) SetLight(dir, ambient mgl32.Vec3) {
	if dir.Len() > 0 {
		b.lightDir = dir.Normalize()
	}
	b.ambient = ambient
}

// SetColor sets the surface color.
func (b *Bridge) SetColor(c mgl32.Vec3) { b.color = c }

// CompileProgram builds the skinned or rigid program.
func (b *Bridge) CompileProgram(name string, variant skinning.ProgramVariant, maxBones int) (skinning.Program, error) {
	vert := shaders.RigidVertexShader
	if variant == skinning.VariantSkinned {
		if maxBones <= 0 {
			return 0, fmt.Errorf("%s: bone array size %d", name, maxBones)
		}
		vert = shader.Define(shaders.SkinnedVertexShader, map[string]string{
			"MAX_BONES": strconv.Itoa(maxBones),
		})
	}

	id, err := shader.CompileProgram(name, vert, shaders.AvatarFragmentShader)
	if err != nil {
		return 0, err
	}

	p := &program{
		id:         id,
		variant:    variant,
		maxBones:   maxBones,
		locMVP:     shader.GetUniform(id, "uMVP"),
		locModel:   shader.GetUniform(id, "uModel"),
		locLight:   shader.GetUniform(id, "uLightDir"),
		locColor:   shader.GetUniform(id, "uColor"),
		locAmbient: shader.GetUniform(id, "uAmbient"),
		locBones:   -1,
		locCount:   -1,
		locSkin:    -1,
	}
	if variant == skinning.VariantSkinned {
		p.locBones = shader.GetUniform(id, "uBones[0]")
		p.locCount = shader.GetUniform(id, "uBoneCount")
		p.locSkin = shader.GetUniform(id, "uSkinning")
		if p.locBones < 0 {
			gl.DeleteProgram(id)
			return 0, fmt.Errorf("%s: bone array uniform not active", name)
		}
	}

	b.programs[skinning.Program(id)] = p
	b.log.Info("program compiled",
		zap.String("name", name),
		zap.Stringer("variant", variant),
		zap.Int("max_bones", maxBones),
	)
	return skinning.Program(id), nil
}

// CreateMeshBuffers uploads one mesh into its own VAO.
func (b *Bridge) CreateMeshBuffers(up skinning.MeshUpload) (skinning.MeshHandle, error) {
	n := len(up.Positions) / 3
	if n == 0 || len(up.Indices) == 0 {
		return 0, fmt.Errorf("mesh %q: no geometry", up.Name)
	}

	m := &mesh{
		name:     up.Name,
		vertices: n,
		indices:  int32(len(up.Indices)),
		dynamic:  up.Dynamic,
	}
	gl.GetError() // clear stale errors

	gl.GenVertexArrays(1, &m.vao)
	gl.BindVertexArray(m.vao)
	gl.GenBuffers(int32(len(m.vbo)), &m.vbo[0])

	posUsage := uint32(gl.STATIC_DRAW)
	if up.Dynamic {
		posUsage = gl.DYNAMIC_DRAW
	}
	floatAttrib(m.vbo[attrPosition], attrPosition, 3, up.Positions, posUsage)
	floatAttrib(m.vbo[attrNormal], attrNormal, 3, up.Normals, gl.STATIC_DRAW)
	floatAttrib(m.vbo[attrUV], attrUV, 2, up.UVs, gl.STATIC_DRAW)
	floatAttrib(m.vbo[attrWeights], attrWeights, 4, up.Weights, gl.STATIC_DRAW)

	if len(up.Joints) > 0 {
		gl.BindBuffer(gl.ARRAY_BUFFER, m.vbo[attrJoints])
		gl.BufferData(gl.ARRAY_BUFFER, len(up.Joints)*4, unsafe.Pointer(&up.Joints[0]), gl.STATIC_DRAW)
		gl.EnableVertexAttribArray(attrJoints)
		gl.VertexAttribIPointer(attrJoints, 4, gl.INT, 0, nil)
	}

	gl.GenBuffers(1, &m.ebo)
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, m.ebo)
	gl.BufferData(gl.ELEMENT_ARRAY_BUFFER, len(up.Indices)*4, unsafe.Pointer(&up.Indices[0]), gl.STATIC_DRAW)

	gl.BindVertexArray(0)

	if code := gl.GetError(); code != gl.NO_ERROR {
		b.deleteMesh(m)
		return 0, fmt.Errorf("mesh %q: buffer upload failed: gl error 0x%x", up.Name, code)
	}

	b.nextMesh++
	h := b.nextMesh
	b.meshes[h] = m
	b.log.Debug("mesh uploaded",
		zap.String("mesh", up.Name),
		zap.Int("vertices", n),
		zap.Int32("indices", m.indices),
	)
	return h, nil
}

// floatAttrib fills vbo and binds it to loc. Missing data leaves the
// attribute disabled, so the shader reads its constant default.
func floatAttrib(vbo uint32, loc uint32, size int32, data []float32, usage uint32) {
	if len(data) == 0 {
		return
	}
	gl.BindBuffer(gl.ARRAY_BUFFER, vbo)
	gl.BufferData(gl.ARRAY_BUFFER, len(data)*4, unsafe.Pointer(&data[0]), usage)
	gl.EnableVertexAttribArray(loc)
	gl.VertexAttribPointer(loc, size, gl.FLOAT, false, 0, nil)
}

// UpdatePositions replaces the position buffer of h in place.
func (b *Bridge) UpdatePositions(h skinning.MeshHandle, positions []float32) error {
	m, ok := b.meshes[h]
	if !ok {
		return ErrUnknownMesh
	}
	if len(positions) != 3*m.vertices {
		return fmt.Errorf("mesh %q: %d position floats, want %d", m.name, len(positions), 3*m.vertices)
	}
	gl.BindBuffer(gl.ARRAY_BUFFER, m.vbo[attrPosition])
	gl.BufferSubData(gl.ARRAY_BUFFER, 0, len(positions)*4, unsafe.Pointer(&positions[0]))
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	return nil
}

// UploadSkinMatrices loads mats into the bone array of p. Matrices past the
// array size are dropped.
func (b *Bridge) UploadSkinMatrices(p skinning.Program, mats []mgl32.Mat4) {
	prog, ok := b.programs[p]
	if !ok || prog.locBones < 0 {
		return
	}
	n := len(mats)
	if n > prog.maxBones {
		b.log.Warn("bone array overflow",
			zap.Int("matrices", n),
			zap.Int("max_bones", prog.maxBones),
		)
		n = prog.maxBones
	}
	gl.UseProgram(prog.id)
	if n > 0 {
		gl.UniformMatrix4fv(prog.locBones, int32(n), false, &mats[0][0])
	}
	gl.Uniform1i(prog.locCount, int32(n))
}

// Draw draws mesh h with program p. hasSkin selects blending in the
// skinned program; it has no effect on the rigid one.
func (b *Bridge) Draw(p skinning.Program, h skinning.MeshHandle, hasSkin bool) {
	prog, ok := b.programs[p]
	if !ok {
		return
	}
	m, ok := b.meshes[h]
	if !ok {
		return
	}

	mvp := b.proj.Mul4(b.view).Mul4(b.model)
	gl.UseProgram(prog.id)
	gl.UniformMatrix4fv(prog.locMVP, 1, false, &mvp[0])
	gl.UniformMatrix4fv(prog.locModel, 1, false, &b.model[0])
	gl.Uniform3f(prog.locLight, b.lightDir.X(), b.lightDir.Y(), b.lightDir.Z())
	gl.Uniform3f(prog.locAmbient, b.ambient.X(), b.ambient.Y(), b.ambient.Z())
	gl.Uniform3f(prog.locColor, b.color.X(), b.color.Y(), b.color.Z())
	if prog.locSkin >= 0 {
		skin := int32(0)
		if hasSkin {
			skin = 1
		}
		gl.Uniform1i(prog.locSkin, skin)
	}

	gl.BindVertexArray(m.vao)
	gl.DrawElements(gl.TRIANGLES, m.indices, gl.UNSIGNED_INT, nil)
	gl.BindVertexArray(0)
}

// DeleteMesh frees the buffers of h.
func (b *Bridge) DeleteMesh(h skinning.MeshHandle) {
	if m, ok := b.meshes[h]; ok {
		b.deleteMesh(m)
		delete(b.meshes, h)
	}
}

func (b *Bridge) deleteMesh(m *mesh) {
	if m.vao != 0 {
		gl.DeleteVertexArrays(1, &m.vao)
	}
	if m.vbo[0] != 0 {
		gl.DeleteBuffers(int32(len(m.vbo)), &m.vbo[0])
	}
	if m.ebo != 0 {
		gl.DeleteBuffers(1, &m.ebo)
	}
}

// DeleteProgram frees p.
func (b *Bridge) DeleteProgram(p skinning.Program) {
	if prog, ok := b.programs[p]; ok {
		gl.DeleteProgram(prog.id)
		delete(b.programs, p)
	}
}

// Close frees everything still owned by the bridge.
func (b *Bridge) Close() {
	for h := range b.meshes {
		b.DeleteMesh(h)
	}
	for p := range b.programs {
		b.DeleteProgram(p)
	}
}

var _ skinning.Bridge = (*Bridge)(nil)
