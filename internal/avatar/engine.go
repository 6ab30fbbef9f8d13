package avatar

import (
	"fmt"
	"math/rand/v2"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/Faultbox/skinrig/internal/config"
	"github.com/Faultbox/skinrig/internal/logger"
	"github.com/Faultbox/skinrig/internal/pose"
	"github.com/Faultbox/skinrig/internal/skin"
	"github.com/Faultbox/skinrig/internal/skinning"
)

// Options selects and tunes the skinning path.
type Options struct {
	MaxJoints      int
	PreferGPU      bool
	CPUEnabled     bool
	CPU            skinning.CPUOptions
	// ScaleThreshold grows CPU.ExplosionThreshold with the model's size.
	ScaleThreshold bool
	RestrictedRoot string
	Pose           pose.Config
	// Rand drives blink timing; nil seeds from Pose.Seed.
	Rand *rand.Rand
}

// OptionsFromConfig maps the skinning and pose sections of cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		MaxJoints:  cfg.Skinning.MaxJoints,
		PreferGPU:  cfg.Skinning.PreferGPU,
		CPUEnabled: cfg.Skinning.CPUEnabled,
		CPU: skinning.CPUOptions{
			ExplosionThreshold: cfg.Skinning.ExplosionThreshold,
			Policy:             cfg.Skinning.Fallback,
		},
		ScaleThreshold: cfg.Skinning.ScaleThreshold,
		RestrictedRoot: cfg.Skinning.RestrictedRoot,
		Pose:           cfg.Pose,
	}
}

// Status exposes every degraded state of an engine.
type Status struct {
	Mode           skinning.Mode
	Report         skin.Report
	DisabledMeshes []string // frozen in bind pose after an explosion
	SkippedMeshes  []string // no GPU buffers
	Exploded       int      // vertices discarded over the engine's life
	Ticks          uint64
	Restricted     string
}

// Degraded reports whether anything is running below full quality.
func (s Status) Degraded() bool {
	if s.Mode == skinning.ModeNone {
		return true
	}
	return s.Report.Degraded() || len(s.DisabledMeshes) > 0 || len(s.SkippedMeshes) > 0
}

// Engine animates and draws one model. It is not safe for concurrent use;
// all calls belong on the frame loop's thread.
type Engine struct {
	model *Model
	layer *pose.Layer
	mode  skinning.Mode
	opts  Options

	cpu    []*skinning.CPUSkinner
	morphs []*skinning.MorphBuffer
	gpu    *skinning.GPUSkinner

	skinMats []mgl32.Mat4
	mask     []bool

	status Status
	log    *zap.Logger
}

// NewEngine picks the skinning mode once: GPU when the bridge builds the
// skinned program, otherwise CPU if enabled, otherwise rigid. A nil bridge
// runs headless. The natural pose is applied before the first tick.
func NewEngine(m *Model, bridge skinning.Bridge, opts Options) (*Engine, error) {
	e := &Engine{
		model: m,
		opts:  opts,
		log:   logger.Named("avatar").With(zap.String("model", m.Name)),
	}
	e.layer = pose.NewLayer(m.Hierarchy, opts.Pose, opts.Rand)

	if bridge != nil {
		maxBones := opts.MaxJoints
		if maxBones <= 0 || maxBones > skin.MaxJoints {
			maxBones = skin.MaxJoints
		}
		gpu, err := skinning.InitGPU(bridge, m.Meshes, skinning.GPUOptions{
			Name:             m.Name,
			MaxBones:         maxBones,
			ForceRigid:       !opts.PreferGPU,
			DynamicPositions: opts.CPUEnabled,
		})
		if err != nil {
			return nil, fmt.Errorf("model %s: %w", m.Name, err)
		}
		e.gpu = gpu
		e.status.SkippedMeshes = gpu.Skipped()
	}

	switch {
	case e.gpu != nil && e.gpu.Skinned():
		e.mode = skinning.ModeGPU
	case opts.CPUEnabled:
		e.mode = skinning.ModeCPU
		cpuOpts := opts.CPU
		if opts.ScaleThreshold {
			if cpuOpts.ExplosionThreshold <= 0 {
				cpuOpts.ExplosionThreshold = skinning.DefaultExplosionThreshold
			}
			radius := skinning.BindRadius(m.Meshes)
			cpuOpts.ExplosionThreshold = skinning.ScaleThreshold(cpuOpts.ExplosionThreshold, radius)
			e.log.Debug("explosion threshold",
				zap.Float32("bind_radius", radius),
				zap.Float32("threshold", cpuOpts.ExplosionThreshold))
		}
		e.cpu = make([]*skinning.CPUSkinner, len(m.Meshes))
		for i, mesh := range m.Meshes {
			e.cpu[i] = skinning.NewCPUSkinner(mesh, cpuOpts)
		}
	default:
		e.mode = skinning.ModeNone
	}
	e.status.Mode = e.mode

	// Outside the CPU path blend shapes still reach the draw through the
	// position buffers.
	if e.gpu != nil && e.mode != skinning.ModeCPU {
		e.morphs = make([]*skinning.MorphBuffer, len(m.Meshes))
		for i, mesh := range m.Meshes {
			e.morphs[i] = skinning.NewMorphBuffer(mesh)
		}
	}
	e.status.Report = m.Report

	if opts.RestrictedRoot != "" {
		if err := e.SetRestrictedRoot(opts.RestrictedRoot); err != nil {
			e.log.Warn("restricted update disabled", zap.Error(err))
		}
	}

	e.layer.ApplyBasePose()
	e.pose()
	e.deform(nil)

	e.log.Info("engine ready", zap.Stringer("mode", e.mode))
	return e, nil
}

// Tick advances the pose layer by in.Dt and recomputes the hierarchy, skin
// matrices and, on the CPU path, vertex positions.
func (e *Engine) Tick(in pose.Input) {
	e.layer.Tick(in)
	for k, v := range e.layer.BlendShapes() {
		e.model.BlendShapes[k] = v
	}
	e.pose()
	e.deform(e.mask)
	e.status.Ticks++
}

func (e *Engine) pose() {
	e.model.Hierarchy.Update()
	e.skinMats = e.model.Binding.ComputeSkinMatrices()
}

func (e *Engine) deform(mask []bool) {
	shapes := e.model.BlendShapes

	switch e.mode {
	case skinning.ModeCPU:
		for i, s := range e.cpu {
			wasDisabled := s.Disabled()
			morphed := s.SetMorphWeights(shapes)
			res := s.Skin(e.skinMats, mask)
			e.status.Exploded += res.Exploded
			if res.Disabled && !wasDisabled {
				e.status.DisabledMeshes = append(e.status.DisabledMeshes, s.Mesh().Name)
			}
			// A frozen mesh only changes when its blend shapes do.
			if e.gpu != nil && (!wasDisabled || morphed) {
				if err := e.gpu.UpdatePositions(i, s.Positions()); err != nil {
					e.log.Warn("position upload failed", zap.String("mesh", s.Mesh().Name), zap.Error(err))
				}
			}
		}
	default:
		for i, mb := range e.morphs {
			if mb == nil {
				continue
			}
			if pos, changed := mb.Update(shapes); changed {
				if err := e.gpu.UpdatePositions(i, pos); err != nil {
					e.log.Warn("morph upload failed", zap.String("mesh", e.model.Meshes[i].Name), zap.Error(err))
				}
			}
		}
	}
}

// Render draws the model with the data of the last tick. It does nothing
// when running headless.
func (e *Engine) Render() {
	if e.gpu != nil {
		e.gpu.Draw(e.skinMats)
	}
}

// SetRestrictedRoot limits CPU re-skinning to vertices influenced by the
// subtree under the named bone. An empty name skins every vertex again.
func (e *Engine) SetRestrictedRoot(name string) error {
	if name == "" {
		e.mask = nil
		e.status.Restricted = ""
		return nil
	}
	bone, ok := e.model.Hierarchy.Find(name)
	if !ok {
		return fmt.Errorf("restricted root %q: no such bone", name)
	}
	e.mask = e.model.Binding.JointMask(bone)
	e.status.Restricted = name
	return nil
}

// Mode returns the skinning mode chosen at construction.
func (e *Engine) Mode() skinning.Mode { return e.mode }

// Model returns the animated model.
func (e *Engine) Model() *Model { return e.model }

// Layer returns the pose layer.
func (e *Engine) Layer() *pose.Layer { return e.layer }

// SkinMatrices returns the matrices of the last tick.
func (e *Engine) SkinMatrices() []mgl32.Mat4 { return e.skinMats }

// Positions returns the CPU output of mesh i, or nil outside ModeCPU.
func (e *Engine) Positions(i int) []float32 {
	if e.mode != skinning.ModeCPU {
		return nil
	}
	return e.cpu[i].Positions()
}

// Normals returns the CPU-skinned normals of mesh i, or nil outside ModeCPU.
func (e *Engine) Normals(i int) []float32 {
	if e.mode != skinning.ModeCPU {
		return nil
	}
	return e.cpu[i].Normals()
}

// Status returns a snapshot of the engine's health.
func (e *Engine) Status() Status {
	s := e.status
	s.DisabledMeshes = append([]string(nil), s.DisabledMeshes...)
	return s
}

// Close releases the GPU resources. The engine must not be used afterwards.
func (e *Engine) Close() {
	if e.gpu != nil {
		e.gpu.Release()
		e.gpu = nil
	}
}
