package asset

import (
	gomath "math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/skinrig/internal/skeleton"
	"github.com/Faultbox/skinrig/internal/skinning"
	"github.com/Faultbox/skinrig/pkg/math"
)

type synthBone struct {
	name   string
	parent string
	offset mgl32.Vec3
}

// Humanoid rig in T-pose, +Y up, facing +Z, arms along ±X.
var synthBones = []synthBone{
	{"Hips", "", mgl32.Vec3{0, 0.95, 0}},
	{"Spine", "Hips", mgl32.Vec3{0, 0.1, 0}},
	{"Chest", "Spine", mgl32.Vec3{0, 0.15, 0}},
	{"Neck", "Chest", mgl32.Vec3{0, 0.25, 0}},
	{"Head", "Neck", mgl32.Vec3{0, 0.08, 0}},

	{"LeftUpperArm", "Chest", mgl32.Vec3{0.18, 0.2, 0}},
	{"LeftLowerArm", "LeftUpperArm", mgl32.Vec3{0.27, 0, 0}},
	{"LeftHand", "LeftLowerArm", mgl32.Vec3{0.25, 0, 0}},
	{"LeftIndexProximal", "LeftHand", mgl32.Vec3{0.08, 0, 0.02}},
	{"LeftMiddleProximal", "LeftHand", mgl32.Vec3{0.08, 0, 0}},
	{"RightUpperArm", "Chest", mgl32.Vec3{-0.18, 0.2, 0}},
	{"RightLowerArm", "RightUpperArm", mgl32.Vec3{-0.27, 0, 0}},
	{"RightHand", "RightLowerArm", mgl32.Vec3{-0.25, 0, 0}},
	{"RightIndexProximal", "RightHand", mgl32.Vec3{-0.08, 0, 0.02}},
	{"RightMiddleProximal", "RightHand", mgl32.Vec3{-0.08, 0, 0}},

	{"LeftUpperLeg", "Hips", mgl32.Vec3{0.1, -0.05, 0}},
	{"LeftLowerLeg", "LeftUpperLeg", mgl32.Vec3{0, -0.42, 0}},
	{"LeftFoot", "LeftLowerLeg", mgl32.Vec3{0, -0.42, 0}},
	{"RightUpperLeg", "Hips", mgl32.Vec3{-0.1, -0.05, 0}},
	{"RightLowerLeg", "RightUpperLeg", mgl32.Vec3{0, -0.42, 0}},
	{"RightFoot", "RightLowerLeg", mgl32.Vec3{0, -0.42, 0}},
}

// Synthetic returns a procedurally built humanoid: tube meshes skinned
// along the torso, arms and legs, a rigid head, and an eye mesh carrying
// eyeBlinkLeft/eyeBlinkRight morph targets.
func Synthetic() *ModelData {
	byName := make(map[string]int, len(synthBones))
	descs := make([]skeleton.BoneDesc, len(synthBones))
	for i, b := range synthBones {
		byName[b.name] = i
		parent := skeleton.NoParent
		if b.parent != "" {
			parent = byName[b.parent]
		}
		descs[i] = skeleton.BoneDesc{
			Name:        b.name,
			Parent:      parent,
			Translation: b.offset,
			Rotation:    mgl32.QuatIdent(),
			Scale:       mgl32.Vec3{1, 1, 1},
		}
	}

	h, err := skeleton.New(descs)
	if err != nil {
		panic("asset: synthetic rig invalid: " + err.Error())
	}

	d := &ModelData{
		Name:        "synthetic",
		Bones:       descs,
		JointToBone: make([]int, len(descs)),
		InverseBind: make([]mgl32.Mat4, len(descs)),
	}
	for j := range descs {
		d.JointToBone[j] = j
		d.InverseBind[j] = h.BindWorld(j).Inv()
	}

	pos := func(name string) mgl32.Vec3 {
		w := h.BindWorld(byName[name])
		return mgl32.Vec3{w[12], w[13], w[14]}
	}
	chain := func(names ...string) ([]mgl32.Vec3, []uint16) {
		p := make([]mgl32.Vec3, len(names))
		j := make([]uint16, len(names))
		for i, n := range names {
			p[i] = pos(n)
			j[i] = uint16(byName[n])
		}
		return p, j
	}

	torsoP, torsoJ := chain("Hips", "Spine", "Chest", "Neck")
	d.Meshes = append(d.Meshes, tube("torso", torsoP, torsoJ, 0.14, 12))

	for _, side := range []string{"Left", "Right"} {
		p, j := chain(side+"UpperArm", side+"LowerArm", side+"Hand", side+"MiddleProximal")
		d.Meshes = append(d.Meshes, tube(side+"Arm", p, j, 0.045, 8))
		p, j = chain(side+"UpperLeg", side+"LowerLeg", side+"Foot")
		d.Meshes = append(d.Meshes, tube(side+"Leg", p, j, 0.06, 8))
	}

	head := pos("Head")
	d.Meshes = append(d.Meshes,
		box("head", head.Add(mgl32.Vec3{0, 0.11, 0}), mgl32.Vec3{0.09, 0.12, 0.1}, uint16(byName["Head"])),
		eyes(head.Add(mgl32.Vec3{0, 0.13, 0.101}), uint16(byName["Head"])),
	)
	return d
}

// tube sweeps a ring of radius r along the points of a bone chain. Rings
// between two joints blend linearly from the first joint to the second.
func tube(name string, points []mgl32.Vec3, joints []uint16, r float32, sides int) skinning.Mesh {
	m := skinning.Mesh{Name: name}
	const steps = 3

	addRing := func(c, dir mgl32.Vec3, j [4]uint16, w [4]float32) {
		u, v := basis(dir)
		for s := 0; s < sides; s++ {
			a := 2 * gomath.Pi * float64(s) / float64(sides)
			n := u.Mul(float32(gomath.Cos(a))).Add(v.Mul(float32(gomath.Sin(a))))
			m.Positions = append(m.Positions, c.Add(n.Mul(r)))
			m.Normals = append(m.Normals, n)
			m.UVs = append(m.UVs, mgl32.Vec2{float32(s) / float32(sides), 0})
			m.Joints = append(m.Joints, j)
			m.Weights = append(m.Weights, w)
		}
	}

	rings := 0
	for k := 0; k+1 < len(points); k++ {
		a, b := points[k], points[k+1]
		dir := b.Sub(a)
		for i := 0; i < steps; i++ {
			t := float32(i) / steps
			addRing(math.LerpVec3(a, b, t), dir,
				[4]uint16{joints[k], joints[k+1]},
				[4]float32{1 - t, t})
			rings++
		}
	}
	last := len(points) - 1
	addRing(points[last], points[last].Sub(points[last-1]),
		[4]uint16{joints[last]}, [4]float32{1})
	rings++

	for ring := 0; ring+1 < rings; ring++ {
		for s := 0; s < sides; s++ {
			i0 := uint32(ring*sides + s)
			i1 := uint32(ring*sides + (s+1)%sides)
			i2 := i0 + uint32(sides)
			i3 := i1 + uint32(sides)
			m.Indices = append(m.Indices, i0, i2, i1, i1, i2, i3)
		}
	}
	return m
}

// basis returns two unit vectors perpendicular to dir and to each other.
func basis(dir mgl32.Vec3) (mgl32.Vec3, mgl32.Vec3) {
	d := dir.Normalize()
	ref := math.AxisZ
	if absf(d.Dot(ref)) > 0.9 {
		ref = math.AxisX
	}
	u := d.Cross(ref).Normalize()
	return u, d.Cross(u)
}

// box is an axis-aligned cuboid rigidly bound to one joint.
func box(name string, center, half mgl32.Vec3, joint uint16) skinning.Mesh {
	m := skinning.Mesh{Name: name}
	faces := []struct{ n, u, v mgl32.Vec3 }{
		{math.AxisX, math.AxisY, math.AxisZ},
		{math.AxisX.Mul(-1), math.AxisZ, math.AxisY},
		{math.AxisY, math.AxisZ, math.AxisX},
		{math.AxisY.Mul(-1), math.AxisX, math.AxisZ},
		{math.AxisZ, math.AxisX, math.AxisY},
		{math.AxisZ.Mul(-1), math.AxisY, math.AxisX},
	}
	scale := func(v mgl32.Vec3) mgl32.Vec3 { return mgl32.Vec3{v[0] * half[0], v[1] * half[1], v[2] * half[2]} }

	for _, f := range faces {
		base := uint32(len(m.Positions))
		c := center.Add(scale(f.n))
		for _, k := range [4][2]float32{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}} {
			p := c.Add(scale(f.u.Mul(k[0]))).Add(scale(f.v.Mul(k[1])))
			m.Positions = append(m.Positions, p)
			m.Normals = append(m.Normals, f.n)
			m.UVs = append(m.UVs, mgl32.Vec2{(k[0] + 1) / 2, (k[1] + 1) / 2})
			m.Joints = append(m.Joints, [4]uint16{joint})
			m.Weights = append(m.Weights, [4]float32{1})
		}
		m.Indices = append(m.Indices, base, base+1, base+2, base, base+2, base+3)
	}
	return m
}

// eyes are two quads on the face. Each blink target drops the upper edge
// of one eye onto its lower edge.
func eyes(center mgl32.Vec3, joint uint16) skinning.Mesh {
	m := skinning.Mesh{Name: "eyes"}
	const w, h = 0.02, 0.012
	left := skinning.MorphTarget{Name: "eyeBlinkLeft"}
	right := skinning.MorphTarget{Name: "eyeBlinkRight"}

	// The avatar faces +Z, so its left eye sits on +X.
	for _, side := range []float32{1, -1} {
		base := uint32(len(m.Positions))
		c := center.Add(mgl32.Vec3{side * 0.035, 0, 0})
		corners := []mgl32.Vec3{
			c.Add(mgl32.Vec3{-w, -h, 0}),
			c.Add(mgl32.Vec3{w, -h, 0}),
			c.Add(mgl32.Vec3{w, h, 0}),
			c.Add(mgl32.Vec3{-w, h, 0}),
		}
		uvs := [4]mgl32.Vec2{{0, 0}, {1, 0}, {1, 1}, {0, 1}}
		for k, p := range corners {
			m.Positions = append(m.Positions, p)
			m.Normals = append(m.Normals, math.AxisZ)
			m.UVs = append(m.UVs, uvs[k])
			m.Joints = append(m.Joints, [4]uint16{joint})
			m.Weights = append(m.Weights, [4]float32{1})

			var drop mgl32.Vec3
			if k >= 2 {
				drop = mgl32.Vec3{0, -2 * h, 0}
			}
			if side > 0 {
				left.PositionDeltas = append(left.PositionDeltas, drop)
				right.PositionDeltas = append(right.PositionDeltas, mgl32.Vec3{})
			} else {
				left.PositionDeltas = append(left.PositionDeltas, mgl32.Vec3{})
				right.PositionDeltas = append(right.PositionDeltas, drop)
			}
		}
		m.Indices = append(m.Indices, base, base+1, base+2, base, base+2, base+3)
	}
	m.Morphs = []skinning.MorphTarget{left, right}
	return m
}

func absf(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
