// Package pose layers procedural animation on top of a skeleton: a one-time
// natural-stance correction plus per-tick head tracking, breathing,
// blinking and companion-state poses.
//
// Every driven bone has exactly one rotation source per tick. Overrides
// replace the bone's rotation; they are recomputed from the base rotation
// each tick and never accumulate.
package pose

import (
	gomath "math"
	"math/rand/v2"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/Faultbox/skinrig/internal/logger"
	"github.com/Faultbox/skinrig/internal/skeleton"
	"github.com/Faultbox/skinrig/pkg/math"
)

const noBone = -1

// Layer is the pose layer of one model.
type Layer struct {
	h   *skeleton.Hierarchy
	cfg Config
	rng *rand.Rand
	log *zap.Logger

	// base holds the rotation each bone returns to when no procedural
	// source drives it: the natural-pose override, or the bind rotation.
	base map[int]mgl32.Quat

	head  int
	chest int

	headTrack map[int]*HeadTrackState

	state     CompanionState
	stateTime float32
	time      float32

	breathPhase float32 // cycles

	blinkStart float32 // < 0 when not blinking
	nextBlink  float32

	shapes map[string]float32
}

// NewLayer resolves configured bone names against h. Missing bones are
// logged and their animations disabled. A nil rng is seeded from cfg.Seed.
func NewLayer(h *skeleton.Hierarchy, cfg Config, rng *rand.Rand) *Layer {
	if rng == nil {
		rng = rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	}
	l := &Layer{
		h:          h,
		cfg:        cfg,
		rng:        rng,
		log:        logger.Named("pose"),
		base:       make(map[int]mgl32.Quat),
		headTrack:  make(map[int]*HeadTrackState),
		blinkStart: -1,
		shapes: map[string]float32{
			cfg.Blink.Left:  0,
			cfg.Blink.Right: 0,
		},
	}

	l.head = l.resolve(cfg.Head.Bone, "head")
	l.chest = l.resolve(cfg.Breath.Bone, "breath")
	if l.head != noBone {
		l.headTrack[l.head] = &HeadTrackState{}
	}
	l.scheduleBlink()

	return l
}

func (l *Layer) resolve(name, role string) int {
	if name == "" {
		return noBone
	}
	i, ok := l.h.Find(name)
	if !ok {
		l.log.Warn("bone not found, animation disabled", zap.String("bone", name), zap.String("role", role))
		return noBone
	}
	return i
}

// ApplyBasePose installs the natural-stance overrides and records them as
// base rotations. Right-side bones get the negated angle of their left
// counterpart. It returns the number of bones posed.
func (l *Layer) ApplyBasePose() int {
	b := l.cfg.Base
	axis := mgl32.Vec3{b.Axis[0], b.Axis[1], b.Axis[2]}

	n := 0
	n += l.poseMirrored(b.UpperArms, axis, b.ArmAngle)
	n += l.poseMirrored(b.Hands, axis, b.HandAngle)
	for _, f := range b.Fingers {
		n += l.poseMirrored(f, axis, b.FingerAngle)
	}

	l.log.Debug("base pose applied", zap.Int("bones", n))
	return n
}

func (l *Layer) poseMirrored(pair SidePair, axis mgl32.Vec3, deg float32) int {
	n := 0
	for _, side := range []struct {
		name string
		sign float32
	}{
		{pair.Left, 1},
		{pair.Right, -1},
	} {
		if side.name == "" {
			continue
		}
		i, ok := l.h.Find(side.name)
		if !ok {
			l.log.Debug("base pose bone missing", zap.String("bone", side.name))
			continue
		}
		delta := math.QuatFromAxisAngleDeg(axis, side.sign*deg)
		q := l.h.Bone(i).Rotation.Mul(delta).Normalize()
		l.base[i] = q
		l.h.SetOverride(i, q)
		n++
	}
	return n
}

// BaseRotation returns the rotation bone i rests at between procedural
// updates.
func (l *Layer) BaseRotation(i int) mgl32.Quat {
	if q, ok := l.base[i]; ok {
		return q
	}
	return l.h.Bone(i).Rotation
}

// Tick advances every procedural animation by in.Dt and writes the
// resulting overrides, chest scale and blend-shape weights.
func (l *Layer) Tick(in Input) {
	dt := in.Dt
	if dt < 0 {
		dt = 0
	}
	l.time += dt

	if in.State != l.state {
		l.log.Debug("companion state changed",
			zap.Stringer("from", l.state), zap.Stringer("to", in.State))
		l.state = in.State
		l.stateTime = 0
	} else {
		l.stateTime += dt
	}

	l.tickHead(in)
	l.tickBreath(dt)
	l.tickBlink()
}

func (l *Layer) tickHead(in Input) {
	if l.head == noBone {
		return
	}
	st := l.headTrack[l.head]
	s := l.cfg.States

	var targetYaw, targetPitch, roll float32
	smoothing := l.cfg.Head.Smoothing

	switch l.state {
	case StateAlert:
		targetPitch = mgl32.DegToRad(s.AlertPitch)
		smoothing = s.AlertSmoothing
	case StateScanning:
		targetYaw = mgl32.DegToRad(s.ScanYaw) * sinCycle(l.stateTime, s.ScanPeriod)
	case StateReminder:
		targetPitch = mgl32.DegToRad(s.ReminderNod)
		roll = mgl32.DegToRad(s.ReminderTilt) * sinCycle(l.stateTime, s.ReminderPeriod)
	default:
		targetYaw, targetPitch = l.lookAngles(in.LookTarget)
	}

	smoothing = math.Clamp(smoothing, 0, 1)
	st.CurrentYaw += (targetYaw - st.CurrentYaw) * smoothing
	st.CurrentPitch += (targetPitch - st.CurrentPitch) * smoothing

	q := l.BaseRotation(l.head).Mul(math.QuatFromYawPitch(st.CurrentYaw, st.CurrentPitch))
	if roll != 0 {
		q = q.Mul(mgl32.QuatRotate(roll, math.AxisZ))
	}
	l.h.SetOverride(l.head, q)
}

// lookAngles maps a normalized look target to yaw/pitch within the head
// limits. The center of the screen is straight ahead.
func (l *Layer) lookAngles(target mgl32.Vec2) (yaw, pitch float32) {
	x := math.Clamp(target[0], 0, 1)
	y := math.Clamp(target[1], 0, 1)
	yaw = (x - 0.5) * 2 * mgl32.DegToRad(l.cfg.Head.MaxYaw)
	pitch = (y - 0.5) * 2 * mgl32.DegToRad(l.cfg.Head.MaxPitch)
	return yaw, pitch
}

func (l *Layer) tickBreath(dt float32) {
	if l.chest == noBone {
		return
	}
	period := l.cfg.Breath.Period
	if l.state == StateReminder && l.cfg.States.ReminderBreathScale > 0 {
		period *= l.cfg.States.ReminderBreathScale
	}
	if period > 0 {
		// Phase is accumulated so a period change does not jump the cycle.
		l.breathPhase += dt / period
		l.breathPhase -= float32(gomath.Floor(float64(l.breathPhase)))
	}
	d := l.cfg.Breath.Amplitude * sinCycle(l.breathPhase, 1)
	bind := l.h.Bone(l.chest).BindScale
	l.h.SetScale(l.chest, mgl32.Vec3{bind[0] * (1 + d), bind[1], bind[2] * (1 + d)})
}

func (l *Layer) tickBlink() {
	b := l.cfg.Blink
	var w float32

	if l.blinkStart < 0 && l.time >= l.nextBlink {
		l.blinkStart = l.time
	}
	if l.blinkStart >= 0 {
		p := float32(1)
		if b.Duration > 0 {
			p = (l.time - l.blinkStart) / b.Duration
		}
		if p >= 1 {
			l.blinkStart = -1
			l.scheduleBlink()
		} else {
			// Close over the first half, open over the second.
			w = 1 - float32(gomath.Abs(float64(2*p-1)))
		}
	}

	l.shapes[b.Left] = w
	l.shapes[b.Right] = w
}

func (l *Layer) scheduleBlink() {
	lo, hi := l.cfg.Blink.MinInterval, l.cfg.Blink.MaxInterval
	if hi < lo {
		lo, hi = hi, lo
	}
	l.nextBlink = l.time + lo + l.rng.Float32()*(hi-lo)
}

// sinCycle returns sin(2*pi*t/period), or 0 for a non-positive period.
func sinCycle(t, period float32) float32 {
	if period <= 0 {
		return 0
	}
	return float32(gomath.Sin(2 * gomath.Pi * float64(t/period)))
}

// BlendShapes returns the weights written by the last Tick. The map is
// owned by the layer.
func (l *Layer) BlendShapes() map[string]float32 { return l.shapes }

// HeadState returns the smoothing state of the tracked head bone.
func (l *Layer) HeadState() (HeadTrackState, bool) {
	if l.head == noBone {
		return HeadTrackState{}, false
	}
	return *l.headTrack[l.head], true
}

// HeadBone returns the tracked head bone index, or -1.
func (l *Layer) HeadBone() int { return l.head }

// State returns the active companion state.
func (l *Layer) State() CompanionState { return l.state }

// NextBlink returns the time, in layer seconds, of the next scheduled blink.
func (l *Layer) NextBlink() float32 { return l.nextBlink }

// Time returns the accumulated layer time in seconds.
func (l *Layer) Time() float32 { return l.time }
