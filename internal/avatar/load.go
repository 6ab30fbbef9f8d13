package avatar

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Faultbox/skinrig/internal/asset"
	"github.com/Faultbox/skinrig/internal/asset/gltfasset"
)

// loaders maps file extensions to model loaders.
var loaders = map[string]asset.Loader{
	".gltf": gltfasset.Loader{},
	".glb":  gltfasset.Loader{},
}

// LoadData reads the model at path. An empty path returns the built-in
// synthetic humanoid.
func LoadData(path string) (*asset.ModelData, error) {
	if path == "" {
		return asset.Synthetic(), nil
	}
	ext := strings.ToLower(filepath.Ext(path))
	l, ok := loaders[ext]
	if !ok {
		return nil, fmt.Errorf("model %s: unsupported format %q", path, ext)
	}
	return l.Load(path)
}

// Load reads the model at path and builds it.
func Load(path string, maxJoints int) (*Model, error) {
	d, err := LoadData(path)
	if err != nil {
		return nil, err
	}
	return NewModel(d, maxJoints)
}
