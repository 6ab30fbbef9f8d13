package main

import (
	"fmt"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/veandco/go-sdl2/sdl"
	"go.uber.org/zap"

	"github.com/Faultbox/skinrig/internal/avatar"
	"github.com/Faultbox/skinrig/internal/config"
	"github.com/Faultbox/skinrig/internal/engine/camera"
	"github.com/Faultbox/skinrig/internal/engine/debug"
	"github.com/Faultbox/skinrig/internal/engine/glbridge"
	"github.com/Faultbox/skinrig/internal/engine/input"
	"github.com/Faultbox/skinrig/internal/engine/lighting"
	"github.com/Faultbox/skinrig/internal/engine/renderer"
	"github.com/Faultbox/skinrig/internal/engine/window"
	"github.com/Faultbox/skinrig/internal/logger"
	"github.com/Faultbox/skinrig/internal/pose"
	"github.com/Faultbox/skinrig/pkg/math"
)

// stateKeys switches the companion state.
var stateKeys = map[sdl.Scancode]pose.CompanionState{
	sdl.SCANCODE_1: pose.StateIdle,
	sdl.SCANCODE_2: pose.StateScanning,
	sdl.SCANCODE_3: pose.StateAlert,
	sdl.SCANCODE_4: pose.StateReminder,
}

type viewer struct {
	cfg      *config.Config
	win      *window.Window
	renderer *renderer.Renderer
	bridge   *glbridge.Bridge
	input    *input.Input
	camera   *camera.OrbitCamera
	engine   *avatar.Engine
	clock    *avatar.Clock
	shots    *debug.ScreenshotCapture
	capture  bool

	state      pose.CompanionState
	restricted bool
	log        *zap.Logger
}

func newViewer(cfg *config.Config) (*viewer, error) {
	v := &viewer{
		cfg:    cfg,
		input:  input.New(),
		camera: camera.NewOrbitCamera(),
		clock:  avatar.NewClock(cfg.Animation.TickHz, cfg.Animation.MaxCatchUp),
		log:    logger.Named("viewer"),
		shots:  debug.NewScreenshotCapture("screenshots", "skinrig"),
	}

	var err error
	v.win, err = window.New(window.Config{
		Title:      "Skinrig",
		Width:      cfg.Graphics.Width,
		Height:     cfg.Graphics.Height,
		Fullscreen: cfg.Graphics.Fullscreen,
		VSync:      cfg.Graphics.VSync,
	})
	if err != nil {
		return nil, err
	}

	w, h := v.win.DrawableSize()
	v.renderer, err = renderer.New(renderer.Config{
		Width:      w,
		Height:     h,
		ClearColor: [3]float32{0.12, 0.13, 0.16},
	})
	if err != nil {
		v.Close()
		return nil, err
	}
	v.bridge = glbridge.New()
	sun := lighting.DefaultSun()
	v.bridge.SetLight(sun.Direction(), sun.Ambient)

	opts := avatar.OptionsFromConfig(cfg)
	if budget := renderer.MaxSkinBones(); budget > 0 && budget < opts.MaxJoints {
		v.log.Info("bone array limited by uniform budget", zap.Int("max_bones", budget))
		opts.MaxJoints = budget
	}

	model, err := avatar.Load(cfg.Model.Path, opts.MaxJoints)
	if err != nil {
		v.Close()
		return nil, err
	}
	v.engine, err = avatar.NewEngine(model, v.bridge, opts)
	if err != nil {
		v.Close()
		return nil, err
	}
	v.restricted = cfg.Skinning.RestrictedRoot != ""

	v.camera.FOV = cfg.Graphics.FOV
	v.frameModel(model)
	return v, nil
}

// frameModel points the camera at the bind-pose bounds of every mesh.
func (v *viewer) frameModel(m *avatar.Model) {
	var pts []mgl32.Vec3
	for _, mesh := range m.Meshes {
		pts = append(pts, mesh.Positions...)
	}
	lo, hi := camera.Bounds(pts)
	v.camera.FitToBounds(lo, hi)
}

// Run drives the frame loop until the window closes. Animation advances on
// the fixed tick clock; drawing happens once per frame.
func (v *viewer) Run() error {
	frame := avatar.FrameInterval(v.cfg.Animation.RenderHz)
	last := time.Now()
	titleAt := last

	for {
		if v.input.Update() {
			return nil
		}
		if quit := v.handleEvents(); quit {
			return nil
		}

		now := time.Now()
		n := v.clock.Advance(now.Sub(last))
		last = now

		in := pose.Input{
			Dt:         v.clock.Step(),
			LookTarget: v.lookTarget(),
			State:      v.state,
		}
		for range n {
			v.engine.Tick(in)
		}

		v.draw()
		v.win.SwapBuffers()

		if now.Sub(titleAt) >= time.Second {
			titleAt = now
			v.win.SetTitle(v.title())
		}

		if !v.cfg.Graphics.VSync && frame > 0 {
			if spent := time.Since(now); spent < frame {
				time.Sleep(frame - spent)
			}
		}
	}
}

func (v *viewer) handleEvents() bool {
	for _, e := range v.input.Events() {
		switch e.Type {
		case input.EventWindowResize:
			v.renderer.Resize(v.win.DrawableSize())
		case input.EventMouseWheel:
			v.camera.HandleZoom(e.WheelY)
		case input.EventMouseMove:
			if v.input.ButtonHeld(sdl.BUTTON_RIGHT) {
				v.camera.HandleDrag(float32(e.RelX), float32(e.RelY))
			}
		case input.EventKeyDown:
			if e.Key == sdl.SCANCODE_ESCAPE {
				return true
			}
			if s, ok := stateKeys[e.Key]; ok && s != v.state {
				v.state = s
				v.log.Info("companion state", zap.Stringer("state", s))
			}
			switch e.Key {
			case sdl.SCANCODE_R:
				v.toggleRestricted()
			case sdl.SCANCODE_F12:
				v.capture = true
			}
		}
	}
	return false
}

// toggleRestricted limits CPU re-skinning to the head subtree.
func (v *viewer) toggleRestricted() {
	root := ""
	if !v.restricted {
		root = v.cfg.Skinning.RestrictedRoot
		if root == "" {
			root = v.cfg.Pose.Head.Bone
		}
	}
	if err := v.engine.SetRestrictedRoot(root); err != nil {
		v.log.Warn("restricted update", zap.Error(err))
		return
	}
	v.restricted = root != ""
}

// lookTarget maps the cursor to [0,1]^2 over the window.
func (v *viewer) lookTarget() mgl32.Vec2 {
	w, h := v.win.GetSize()
	if w <= 0 || h <= 0 {
		return mgl32.Vec2{0.5, 0.5}
	}
	x, y := v.input.MousePosition()
	return mgl32.Vec2{
		math.Clamp(float32(x)/float32(w), 0, 1),
		math.Clamp(float32(y)/float32(h), 0, 1),
	}
}

func (v *viewer) draw() {
	w, h := v.renderer.Size()
	v.bridge.SetCamera(v.camera.ViewMatrix(), v.camera.ProjectionMatrix(w, h))
	v.renderer.Begin()
	v.engine.Render()
	v.renderer.End()

	if v.capture {
		v.capture = false
		pixels, w, h := v.renderer.ReadPixels()
		path, err := v.shots.CaptureFromPixels(pixels, w, h)
		if err != nil {
			v.log.Warn("screenshot failed", zap.Error(err))
			return
		}
		v.log.Info("screenshot saved", zap.String("path", path))
	}
}

func (v *viewer) title() string {
	st := v.engine.Status()
	t := fmt.Sprintf("Skinrig - %s - %s - %s", v.engine.Model().Name, st.Mode, v.state)
	if st.Restricted != "" {
		t += " - restricted:" + st.Restricted
	}
	if st.Degraded() {
		t += " - degraded"
	}
	return t
}

// Close releases everything in reverse creation order.
func (v *viewer) Close() {
	if v.engine != nil {
		st := v.engine.Status()
		v.log.Info("engine status",
			zap.Uint64("ticks", st.Ticks),
			zap.Uint64("dropped_ticks", v.clock.Dropped()),
			zap.Int("exploded_vertices", st.Exploded),
			zap.Strings("disabled_meshes", st.DisabledMeshes),
		)
		v.engine.Close()
		v.engine = nil
	}
	if v.bridge != nil {
		v.bridge.Close()
		v.bridge = nil
	}
	if v.renderer != nil {
		v.renderer.Close()
		v.renderer = nil
	}
	if v.win != nil {
		v.win.Close()
		v.win = nil
	}
}
