package avatar

import (
	"errors"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/skinrig/internal/asset"
	"github.com/Faultbox/skinrig/internal/pose"
	"github.com/Faultbox/skinrig/internal/skeleton"
	"github.com/Faultbox/skinrig/internal/skin"
	"github.com/Faultbox/skinrig/internal/skinning"
)

type fakeBridge struct {
	failSkinned bool
	failRigid   bool

	next     uint32
	names    map[skinning.MeshHandle]string
	programs int
	uploads  int
	draws    int
	updates  map[string]int
}

func newFakeBridge() *fakeBridge {
	return &fakeBridge{names: map[skinning.MeshHandle]string{}, updates: map[string]int{}}
}

func (f *fakeBridge) CompileProgram(_ string, v skinning.ProgramVariant, _ int) (skinning.Program, error) {
	if (v == skinning.VariantSkinned && f.failSkinned) || (v == skinning.VariantRigid && f.failRigid) {
		return 0, errors.New("compile failed")
	}
	f.next++
	f.programs++
	return skinning.Program(f.next), nil
}

func (f *fakeBridge) CreateMeshBuffers(m skinning.MeshUpload) (skinning.MeshHandle, error) {
	f.next++
	f.names[skinning.MeshHandle(f.next)] = m.Name
	return skinning.MeshHandle(f.next), nil
}

func (f *fakeBridge) UpdatePositions(h skinning.MeshHandle, _ []float32) error {
	f.updates[f.names[h]]++
	return nil
}

func (f *fakeBridge) UploadSkinMatrices(skinning.Program, []mgl32.Mat4) { f.uploads++ }
func (f *fakeBridge) Draw(skinning.Program, skinning.MeshHandle, bool)  { f.draws++ }
func (f *fakeBridge) DeleteMesh(h skinning.MeshHandle)                  { delete(f.names, h) }
func (f *fakeBridge) DeleteProgram(skinning.Program)                    { f.programs-- }

func testOptions() Options {
	return Options{
		MaxJoints:  skin.MaxJoints,
		PreferGPU:  true,
		CPUEnabled: true,
		CPU:        skinning.DefaultCPUOptions(),
		Pose:       pose.DefaultConfig(),
		Rand:       rand.New(rand.NewPCG(7, 7)),
	}
}

func newTestModel(t *testing.T, d *asset.ModelData) *Model {
	t.Helper()
	m, err := NewModel(d, skin.MaxJoints)
	if err != nil {
		t.Fatalf("NewModel: %v", err)
	}
	return m
}

func meshIndex(t *testing.T, m *Model, name string) int {
	t.Helper()
	for i, mesh := range m.Meshes {
		if mesh.Name == name {
			return i
		}
	}
	t.Fatalf("mesh %q not found", name)
	return -1
}

func TestModeSelection(t *testing.T) {
	tests := []struct {
		name     string
		bridge   func() *fakeBridge
		mutate   func(*Options)
		wantMode skinning.Mode
		wantErr  bool
	}{
		{"headless cpu", nil, nil, skinning.ModeCPU, false},
		{"headless none", nil, func(o *Options) { o.CPUEnabled = false }, skinning.ModeNone, false},
		{"gpu", newFakeBridge, nil, skinning.ModeGPU, false},
		{"gpu not preferred", newFakeBridge, func(o *Options) { o.PreferGPU = false }, skinning.ModeCPU, false},
		{"shader failure falls back to cpu", func() *fakeBridge {
			fb := newFakeBridge()
			fb.failSkinned = true
			return fb
		}, nil, skinning.ModeCPU, false},
		{"shader failure without cpu is rigid", func() *fakeBridge {
			fb := newFakeBridge()
			fb.failSkinned = true
			return fb
		}, func(o *Options) { o.CPUEnabled = false }, skinning.ModeNone, false},
		{"no program at all", func() *fakeBridge {
			fb := newFakeBridge()
			fb.failSkinned = true
			fb.failRigid = true
			return fb
		}, nil, skinning.ModeNone, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := testOptions()
			if tt.mutate != nil {
				tt.mutate(&opts)
			}
			var bridge skinning.Bridge
			if tt.bridge != nil {
				bridge = tt.bridge()
			}
			e, err := NewEngine(newTestModel(t, asset.Synthetic()), bridge, opts)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewEngine: %v", err)
			}
			defer e.Close()
			if e.Mode() != tt.wantMode {
				t.Errorf("mode: got %v, want %v", e.Mode(), tt.wantMode)
			}
			if e.Status().Mode != tt.wantMode {
				t.Errorf("status mode: got %v", e.Status().Mode)
			}
		})
	}
}

func TestBasePoseLowersArms(t *testing.T) {
	m := newTestModel(t, asset.Synthetic())
	e, err := NewEngine(m, nil, testOptions())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	for _, side := range []string{"LeftArm", "RightArm"} {
		i := meshIndex(t, m, side)
		bind := m.Meshes[i].Positions
		pos := e.Positions(i)
		last := len(bind) - 1
		if dy := pos[3*last+1] - bind[last][1]; dy > -0.3 {
			t.Errorf("%s: hand end moved %v vertically, want well below bind", side, dy)
		}
	}
}

func TestCPUTickUploadsPositions(t *testing.T) {
	fb := newFakeBridge()
	opts := testOptions()
	opts.PreferGPU = false
	m := newTestModel(t, asset.Synthetic())
	e, err := NewEngine(m, fb, opts)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	defer e.Close()

	before := fb.updates["torso"]
	for range 3 {
		e.Tick(pose.Input{Dt: 1.0 / 30, LookTarget: mgl32.Vec2{0.5, 0.5}})
	}
	if got := fb.updates["torso"] - before; got != 3 {
		t.Errorf("torso uploads: got %d, want one per tick", got)
	}

	e.Render()
	if fb.uploads != 0 {
		t.Error("cpu mode uploaded skin matrices")
	}
	if fb.draws != len(m.Meshes) {
		t.Errorf("draws: got %d, want %d", fb.draws, len(m.Meshes))
	}
}

func TestGPUModeUploadsBlinkMorphs(t *testing.T) {
	fb := newFakeBridge()
	opts := testOptions()
	opts.Pose.Blink.MinInterval = 0.1
	opts.Pose.Blink.MaxInterval = 0.1
	m := newTestModel(t, asset.Synthetic())
	e, err := NewEngine(m, fb, opts)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	defer e.Close()

	for range 10 {
		e.Tick(pose.Input{Dt: 1.0 / 30})
		e.Render()
	}
	if fb.updates["eyes"] < 2 {
		t.Errorf("eye morph uploads: got %d, want several during a blink", fb.updates["eyes"])
	}
	if fb.updates["torso"] != 0 {
		t.Error("gpu mode streamed positions for a mesh without morphs")
	}
	if fb.uploads != 10 {
		t.Errorf("skin uploads: got %d, want one per frame", fb.uploads)
	}
}

func TestRestrictedRoot(t *testing.T) {
	opts := testOptions()
	opts.RestrictedRoot = "Head"
	m := newTestModel(t, asset.Synthetic())
	e, err := NewEngine(m, nil, opts)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	torso := meshIndex(t, m, "torso")
	head := meshIndex(t, m, "head")
	torsoBefore := slices.Clone(e.Positions(torso))
	headBefore := slices.Clone(e.Positions(head))

	for range 20 {
		e.Tick(pose.Input{Dt: 1.0 / 30, LookTarget: mgl32.Vec2{1, 0.5}})
	}

	if !slices.Equal(torsoBefore, e.Positions(torso)) {
		t.Error("torso re-skinned outside the restricted subtree")
	}
	if slices.Equal(headBefore, e.Positions(head)) {
		t.Error("head did not follow the look target")
	}
	if e.Status().Restricted != "Head" {
		t.Errorf("status restricted: %q", e.Status().Restricted)
	}

	if err := e.SetRestrictedRoot("Tail"); err == nil {
		t.Error("expected error for unknown bone")
	}
	if err := e.SetRestrictedRoot(""); err != nil {
		t.Errorf("clearing restriction: %v", err)
	}
}

func TestCorruptInverseBindIsContained(t *testing.T) {
	d := asset.Synthetic()
	hand := -1
	for i, b := range d.Bones {
		if b.Name == "LeftHand" {
			hand = i
		}
	}
	d.InverseBind[hand] = mgl32.Translate3D(500, 0, 0).Mul4(d.InverseBind[hand])

	m := newTestModel(t, d)
	if !slices.Contains(m.Report.IBMMismatch, hand) {
		t.Errorf("mismatch not reported: %+v", m.Report)
	}

	e, err := NewEngine(m, nil, testOptions())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	e.Tick(pose.Input{Dt: 1.0 / 30})

	st := e.Status()
	if !slices.Contains(st.DisabledMeshes, "LeftArm") {
		t.Errorf("disabled meshes: %v", st.DisabledMeshes)
	}
	if slices.Contains(st.DisabledMeshes, "RightArm") {
		t.Error("healthy mesh disabled")
	}
	if !st.Degraded() || st.Exploded == 0 {
		t.Errorf("status: %+v", st)
	}

	arm := meshIndex(t, m, "LeftArm")
	pos := e.Positions(arm)
	for v, p := range m.Meshes[arm].Positions {
		got := mgl32.Vec3{pos[3*v], pos[3*v+1], pos[3*v+2]}
		if got != p {
			t.Fatalf("vertex %d left bind pose: %v", v, got)
		}
	}
}

func blinkOptions() Options {
	opts := testOptions()
	opts.Pose.Blink.MinInterval = 0.1
	opts.Pose.Blink.MaxInterval = 0.1
	return opts
}

func TestFrozenMeshStillBlinks(t *testing.T) {
	d := asset.Synthetic()
	head := -1
	for i, b := range d.Bones {
		if b.Name == "Head" {
			head = i
		}
	}
	d.InverseBind[head] = mgl32.Translate3D(500, 0, 0).Mul4(d.InverseBind[head])

	fb := newFakeBridge()
	opts := blinkOptions()
	opts.PreferGPU = false
	m := newTestModel(t, d)
	e, err := NewEngine(m, fb, opts)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	defer e.Close()
	if !slices.Contains(e.Status().DisabledMeshes, "eyes") {
		t.Fatalf("eyes not frozen: %v", e.Status().DisabledMeshes)
	}

	eyesBefore, headBefore := fb.updates["eyes"], fb.updates["head"]
	for range 10 {
		e.Tick(pose.Input{Dt: 1.0 / 30})
	}
	if got := fb.updates["eyes"] - eyesBefore; got < 2 {
		t.Errorf("frozen eye uploads: got %d, want blink frames to reach the buffer", got)
	}
	if got := fb.updates["head"] - headBefore; got != 0 {
		t.Errorf("frozen head without morphs uploaded %d more times", got)
	}
}

func TestRigidModeUploadsBlinkMorphs(t *testing.T) {
	fb := newFakeBridge()
	fb.failSkinned = true
	opts := blinkOptions()
	opts.CPUEnabled = false
	e, err := NewEngine(newTestModel(t, asset.Synthetic()), fb, opts)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	defer e.Close()
	if e.Mode() != skinning.ModeNone {
		t.Fatalf("mode: got %v, want none", e.Mode())
	}

	before := fb.updates["eyes"]
	for range 10 {
		e.Tick(pose.Input{Dt: 1.0 / 30})
	}
	if fb.updates["eyes"]-before < 2 {
		t.Errorf("eye morph uploads: got %d, want several during a blink", fb.updates["eyes"]-before)
	}
	if fb.updates["torso"] != 0 {
		t.Error("rigid mode streamed positions for a mesh without morphs")
	}
}

func TestCloseReleasesResources(t *testing.T) {
	fb := newFakeBridge()
	e, err := NewEngine(newTestModel(t, asset.Synthetic()), fb, testOptions())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	e.Close()
	e.Close()
	if len(fb.names) != 0 || fb.programs != 0 {
		t.Errorf("leaked %d meshes, %d programs", len(fb.names), fb.programs)
	}
	e.Render()
	if fb.draws != 0 {
		t.Error("rendered after close")
	}
}

// centimetreSynthetic scales the synthetic rig to centimetre units.
func centimetreSynthetic(t *testing.T) *asset.ModelData {
	t.Helper()
	const k = 100
	d := asset.Synthetic()
	for i := range d.Bones {
		d.Bones[i].Translation = d.Bones[i].Translation.Mul(k)
	}
	for i := range d.Meshes {
		m := &d.Meshes[i]
		for v := range m.Positions {
			m.Positions[v] = m.Positions[v].Mul(k)
		}
		for _, mt := range m.Morphs {
			for v := range mt.PositionDeltas {
				mt.PositionDeltas[v] = mt.PositionDeltas[v].Mul(k)
			}
		}
	}
	h, err := skeleton.New(d.Bones)
	if err != nil {
		t.Fatalf("skeleton: %v", err)
	}
	for j, b := range d.JointToBone {
		d.InverseBind[j] = h.BindWorld(b).Inv()
	}
	return d
}

func TestCentimetreRigThreshold(t *testing.T) {
	tests := []struct {
		name         string
		scale        bool
		wantDisabled bool
	}{
		{"absolute threshold trips", false, true},
		{"scaled threshold holds", true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestModel(t, centimetreSynthetic(t))
			opts := testOptions()
			opts.ScaleThreshold = tt.scale
			e, err := NewEngine(m, nil, opts)
			if err != nil {
				t.Fatalf("NewEngine: %v", err)
			}
			for range 60 {
				e.Tick(pose.Input{Dt: 1.0 / 30})
			}
			st := e.Status()
			if got := len(st.DisabledMeshes) > 0; got != tt.wantDisabled {
				t.Errorf("disabled meshes: %v", st.DisabledMeshes)
			}
		})
	}
}
