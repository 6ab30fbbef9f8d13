package skinning

import (
	"fmt"
	"strings"
)

// Mode is how a model's vertices are deformed. It is chosen once when the
// model is initialized and never changes afterwards.
type Mode int

const (
	// ModeNone draws every mesh rigidly in its bind pose.
	ModeNone Mode = iota
	// ModeCPU blends vertices on the CPU and streams positions to the GPU.
	ModeCPU
	// ModeGPU uploads skin matrices and blends in the vertex shader.
	ModeGPU
)

func (m Mode) String() string {
	switch m {
	case ModeNone:
		return "none"
	case ModeCPU:
		return "cpu"
	case ModeGPU:
		return "gpu"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// FallbackPolicy decides what happens to a mesh after a vertex explodes.
type FallbackPolicy int

const (
	// FallbackPermanent freezes the mesh in its bind pose for the rest of
	// the session.
	FallbackPermanent FallbackPolicy = iota
	// FallbackTransient only discards the exploded vertices for the
	// current tick and retries on the next one.
	FallbackTransient
)

func (p FallbackPolicy) String() string {
	switch p {
	case FallbackPermanent:
		return "permanent"
	case FallbackTransient:
		return "transient"
	default:
		return fmt.Sprintf("FallbackPolicy(%d)", int(p))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p FallbackPolicy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *FallbackPolicy) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "permanent", "":
		*p = FallbackPermanent
	case "transient":
		*p = FallbackTransient
	default:
		return fmt.Errorf("unknown fallback policy %q", text)
	}
	return nil
}
