package skinning

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/Faultbox/skinrig/internal/logger"
)

// ErrNoProgram is returned when neither the skinned nor the rigid program
// could be built.
var ErrNoProgram = errors.New("skinning: no usable shader program")

type gpuMesh struct {
	mesh    int
	handle  MeshHandle
	hasSkin bool
}

// GPUSkinner owns the shader program and vertex buffers of one model. With
// the skinned program it blends on the device; with the rigid fallback it
// draws whatever positions were last uploaded.
type GPUSkinner struct {
	bridge   Bridge
	program  Program
	variant  ProgramVariant
	maxBones int
	meshes   []gpuMesh
	skipped  []string
	log      *zap.Logger
}

// GPUOptions configures Init.
type GPUOptions struct {
	// Name prefixes the program names handed to the bridge.
	Name     string
	MaxBones int
	// ForceRigid skips the skinned program entirely.
	ForceRigid bool
	// DynamicPositions marks position buffers for per-tick replacement.
	DynamicPositions bool
}

// InitGPU compiles the skinned program, falling back to the rigid one, and
// creates buffers for every mesh. A mesh whose buffers cannot be created
// is skipped; the others still draw.
func InitGPU(b Bridge, meshes []*Mesh, opts GPUOptions) (*GPUSkinner, error) {
	g := &GPUSkinner{
		bridge:   b,
		maxBones: opts.MaxBones,
		log:      logger.Named("skinning"),
	}

	var err error
	if !opts.ForceRigid {
		g.program, err = b.CompileProgram(opts.Name+"/skinned", VariantSkinned, opts.MaxBones)
		g.variant = VariantSkinned
	}
	if opts.ForceRigid || err != nil {
		if err != nil {
			g.log.Warn("skinned shader unavailable, using rigid shader", zap.Error(err))
		}
		var rerr error
		g.program, rerr = b.CompileProgram(opts.Name+"/rigid", VariantRigid, 0)
		if rerr != nil {
			return nil, fmt.Errorf("%w: %w", ErrNoProgram, errors.Join(err, rerr))
		}
		g.variant = VariantRigid
	}

	for i, m := range meshes {
		h, err := b.CreateMeshBuffers(NewMeshUpload(m, opts.DynamicPositions))
		if err != nil {
			g.log.Warn("mesh buffers failed, skipping mesh", zap.String("mesh", m.Name), zap.Error(err))
			g.skipped = append(g.skipped, m.Name)
			continue
		}
		g.meshes = append(g.meshes, gpuMesh{mesh: i, handle: h, hasSkin: m.HasSkin()})
	}

	g.log.Debug("gpu resources ready",
		zap.Stringer("variant", g.variant),
		zap.Int("meshes", len(g.meshes)),
		zap.Int("skipped", len(g.skipped)))
	return g, nil
}

// Skinned reports whether the device-side blend is active.
func (g *GPUSkinner) Skinned() bool { return g.variant == VariantSkinned }

// Variant returns the program variant in use.
func (g *GPUSkinner) Variant() ProgramVariant { return g.variant }

// Skipped returns the names of meshes that have no buffers.
func (g *GPUSkinner) Skipped() []string { return g.skipped }

// UpdatePositions replaces the positions of mesh index i, if it has buffers.
func (g *GPUSkinner) UpdatePositions(i int, positions []float32) error {
	if g.bridge == nil {
		return nil
	}
	for _, m := range g.meshes {
		if m.mesh == i {
			return g.bridge.UpdatePositions(m.handle, positions)
		}
	}
	return nil
}

// Draw uploads skin once (skinned program only) and issues one draw per
// mesh.
func (g *GPUSkinner) Draw(skin []mgl32.Mat4) {
	if g.bridge == nil {
		return
	}
	skinned := g.Skinned()
	if skinned {
		if len(skin) > g.maxBones && g.maxBones > 0 {
			skin = skin[:g.maxBones]
		}
		g.bridge.UploadSkinMatrices(g.program, skin)
	}
	for _, m := range g.meshes {
		g.bridge.Draw(g.program, m.handle, skinned && m.hasSkin)
	}
}

// Release frees every buffer and the program. It is safe to call twice.
func (g *GPUSkinner) Release() {
	if g.bridge == nil {
		return
	}
	for _, m := range g.meshes {
		g.bridge.DeleteMesh(m.handle)
	}
	g.bridge.DeleteProgram(g.program)
	g.meshes = nil
	g.bridge = nil
}
