// Package skeleton holds the bone hierarchy of a skinned model and computes
// per-bone local and world transforms.
package skeleton

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/skinrig/pkg/math"
)

// Load-time validation errors.
var (
	ErrEmpty          = errors.New("skeleton: no bones")
	ErrDanglingParent = errors.New("skeleton: parent index out of range")
	ErrCycle          = errors.New("skeleton: cycle in bone hierarchy")
)

// NoParent marks a root bone.
const NoParent = -1

// BoneDesc is the loader-facing description of a bone in its bind pose.
type BoneDesc struct {
	Name        string
	Parent      int
	Translation mgl32.Vec3
	Rotation    mgl32.Quat
	Scale       mgl32.Vec3
}

// Bone is a node of the hierarchy. Local and World are derived by Update.
type Bone struct {
	Name   string
	Index  int
	Parent int

	Translation mgl32.Vec3
	Rotation    mgl32.Quat // bind rotation
	Scale       mgl32.Vec3 // current scale, see SetScale
	BindScale   mgl32.Vec3

	override    mgl32.Quat
	hasOverride bool

	Local mgl32.Mat4
	World mgl32.Mat4

	Children []int
}

// Override returns the animation rotation override, if one is installed.
func (b *Bone) Override() (mgl32.Quat, bool) {
	return b.override, b.hasOverride
}

// CurrentRotation is the rotation Update composes: the override when set,
// otherwise the bind rotation.
func (b *Bone) CurrentRotation() mgl32.Quat {
	if b.hasOverride {
		return b.override
	}
	return b.Rotation
}

// Hierarchy is a validated bone forest.
type Hierarchy struct {
	bones  []Bone
	roots  []int
	byName map[string]int

	// pre lists bones in depth-first pre-order; a bone's subtree occupies
	// pre[pos[b]:end[b]].
	pre []int
	pos []int
	end []int

	bindWorld []mgl32.Mat4
}

// New validates descs and builds the hierarchy. Bone indices are the
// positions in descs. A parent index outside [0, len) other than NoParent
// fails with ErrDanglingParent; any bone whose ancestry never reaches a
// root fails with ErrCycle.
func New(descs []BoneDesc) (*Hierarchy, error) {
	if len(descs) == 0 {
		return nil, ErrEmpty
	}

	n := len(descs)
	h := &Hierarchy{
		bones:  make([]Bone, n),
		byName: make(map[string]int, n),
		pos:    make([]int, n),
		end:    make([]int, n),
	}

	for i, d := range descs {
		parent := d.Parent
		switch {
		case parent == NoParent:
		case parent < 0 || parent >= n:
			return nil, fmt.Errorf("%w: bone %d (%q) parent %d of %d", ErrDanglingParent, i, d.Name, d.Parent, n)
		case parent == i:
			return nil, fmt.Errorf("%w: bone %d (%q) is its own parent", ErrCycle, i, d.Name)
		}

		rot := d.Rotation
		if rot.Len() < 1e-6 {
			rot = mgl32.QuatIdent()
		}

		h.bones[i] = Bone{
			Name:        d.Name,
			Index:       i,
			Parent:      parent,
			Translation: d.Translation,
			Rotation:    rot.Normalize(),
			Scale:       d.Scale,
			BindScale:   d.Scale,
			Local:       mgl32.Ident4(),
			World:       mgl32.Ident4(),
		}
		if _, dup := h.byName[d.Name]; !dup && d.Name != "" {
			h.byName[d.Name] = i
		}
	}

	for i := range h.bones {
		if p := h.bones[i].Parent; p == NoParent {
			h.roots = append(h.roots, i)
		} else {
			h.bones[p].Children = append(h.bones[p].Children, i)
		}
	}

	h.buildPreOrder()
	if len(h.pre) != n {
		return nil, fmt.Errorf("%w: %d of %d bones unreachable from a root", ErrCycle, n-len(h.pre), n)
	}

	h.Update()
	h.bindWorld = make([]mgl32.Mat4, n)
	for i := range h.bones {
		h.bindWorld[i] = h.bones[i].World
	}

	return h, nil
}

// buildPreOrder walks every root depth-first without recursion. Bones that
// sit on a parent cycle are never reached.
func (h *Hierarchy) buildPreOrder() {
	h.pre = make([]int, 0, len(h.bones))

	type frame struct{ bone, next int }
	stack := make([]frame, 0, 32)

	for _, root := range h.roots {
		h.pos[root] = len(h.pre)
		h.pre = append(h.pre, root)
		stack = append(stack, frame{bone: root})

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			children := h.bones[top.bone].Children
			if top.next < len(children) {
				child := children[top.next]
				top.next++
				h.pos[child] = len(h.pre)
				h.pre = append(h.pre, child)
				stack = append(stack, frame{bone: child})
				continue
			}
			h.end[top.bone] = len(h.pre)
			stack = stack[:len(stack)-1]
		}
	}
}

// Update recomputes Local and World for every bone, parents first.
func (h *Hierarchy) Update() {
	for _, i := range h.pre {
		b := &h.bones[i]
		b.Local = math.ComposeTRS(b.Translation, b.CurrentRotation(), b.Scale)
		if b.Parent == NoParent {
			b.World = b.Local
		} else {
			b.World = h.bones[b.Parent].World.Mul4(b.Local)
		}
	}
}

// Len returns the number of bones.
func (h *Hierarchy) Len() int { return len(h.bones) }

// Bone returns bone i. It panics if i is out of range.
func (h *Hierarchy) Bone(i int) *Bone { return &h.bones[i] }

// Roots returns the indices of root bones.
func (h *Hierarchy) Roots() []int { return h.roots }

// Order returns bone indices in parent-before-child order.
func (h *Hierarchy) Order() []int { return h.pre }

// Find looks a bone up by name.
func (h *Hierarchy) Find(name string) (int, bool) {
	i, ok := h.byName[name]
	return i, ok
}

// World returns the world matrix of bone i as of the last Update.
func (h *Hierarchy) World(i int) mgl32.Mat4 { return h.bones[i].World }

// BindWorld returns the bind-pose world matrix of bone i, captured at load.
func (h *Hierarchy) BindWorld(i int) mgl32.Mat4 { return h.bindWorld[i] }

// SetOverride installs an animation rotation that replaces the bind
// rotation of bone i until cleared.
func (h *Hierarchy) SetOverride(i int, q mgl32.Quat) {
	b := &h.bones[i]
	b.override = q.Normalize()
	b.hasOverride = true
}

// ClearOverride removes the override of bone i.
func (h *Hierarchy) ClearOverride(i int) {
	h.bones[i].hasOverride = false
}

// ClearOverrides removes every override.
func (h *Hierarchy) ClearOverrides() {
	for i := range h.bones {
		h.bones[i].hasOverride = false
	}
}

// SetScale replaces the current local scale of bone i.
func (h *Hierarchy) SetScale(i int, s mgl32.Vec3) {
	h.bones[i].Scale = s
}

// ResetScale restores the bind scale of bone i.
func (h *Hierarchy) ResetScale(i int) {
	h.bones[i].Scale = h.bones[i].BindScale
}

// SubtreeRange returns the half-open range of Order() covered by the subtree
// rooted at bone i (i included).
func (h *Hierarchy) SubtreeRange(i int) (start, end int) {
	return h.pos[i], h.end[i]
}

// Subtree returns bone i and all its descendants. The slice aliases
// internal storage and must not be modified.
func (h *Hierarchy) Subtree(i int) []int {
	return h.pre[h.pos[i]:h.end[i]]
}

// InSubtree reports whether bone b is root or one of its descendants.
func (h *Hierarchy) InSubtree(root, b int) bool {
	return h.pos[root] <= h.pos[b] && h.pos[b] < h.end[root]
}
