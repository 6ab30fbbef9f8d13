// Package avatar ties a loaded model to its pose layer and skinning path
// and runs them on a fixed animation tick.
package avatar

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/skinrig/internal/asset"
	"github.com/Faultbox/skinrig/internal/logger"
	"github.com/Faultbox/skinrig/internal/skeleton"
	"github.com/Faultbox/skinrig/internal/skin"
	"github.com/Faultbox/skinrig/internal/skinning"
)

// Model is one avatar instance. Its hierarchy and skin-matrix buffer are
// never shared with another model.
type Model struct {
	Name      string
	Hierarchy *skeleton.Hierarchy
	Binding   *skin.Binding
	Report    skin.Report
	Meshes    []*skinning.Mesh
	// BlendShapes holds the morph weights written by the last tick.
	BlendShapes map[string]float32
}

// NewModel builds the hierarchy and skin binding for d. A broken hierarchy
// is fatal; skin problems only degrade the model and are kept in Report.
func NewModel(d *asset.ModelData, maxJoints int) (*Model, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	h, err := skeleton.New(d.Bones)
	if err != nil {
		return nil, fmt.Errorf("model %s: %w", d.Name, err)
	}

	b, rep := skin.New(h, d.JointToBone, d.InverseBind, skin.Options{MaxJoints: maxJoints})

	m := &Model{
		Name:        d.Name,
		Hierarchy:   h,
		Binding:     b,
		Report:      rep,
		Meshes:      make([]*skinning.Mesh, len(d.Meshes)),
		BlendShapes: make(map[string]float32),
	}
	for i := range d.Meshes {
		m.Meshes[i] = &d.Meshes[i]
		for _, t := range d.Meshes[i].Morphs {
			m.BlendShapes[t.Name] = 0
		}
	}

	logger.Named("avatar").Info("model ready",
		zap.String("model", m.Name),
		zap.Int("bones", h.Len()),
		zap.Int("joints", b.JointCount()),
		zap.Int("meshes", len(m.Meshes)),
		zap.Bool("degraded", rep.Degraded()))
	return m, nil
}
