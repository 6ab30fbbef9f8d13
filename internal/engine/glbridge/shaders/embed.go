// Package shaders provides embedded GLSL shader sources.
package shaders

import _ "embed"

// SkinnedVertexShader blends bind-pose vertices with the bone matrix array.
// It expects MAX_BONES to be defined.
//
//go:embed skinned.vert
var SkinnedVertexShader string

// RigidVertexShader draws positions unchanged.
//
//go:embed rigid.vert
var RigidVertexShader string

// AvatarFragmentShader is a flat Lambert shade.
//
//go:embed avatar.frag
var AvatarFragmentShader string
