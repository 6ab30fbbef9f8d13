// Package lighting provides the key light for the avatar viewer.
package lighting

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Sun is a directional light given by angles in degrees.
type Sun struct {
	Longitude float32 // Rotation around Y (0-360)
	Latitude  float32 // Elevation from horizon (0-90)
	Ambient   mgl32.Vec3
}

// DefaultSun is a front-left key light, high enough to shade the face.
func DefaultSun() Sun {
	return Sun{Longitude: 30, Latitude: 50, Ambient: mgl32.Vec3{0.35, 0.35, 0.4}}
}

// Direction returns the normalized vector pointing towards the sun.
func (s Sun) Direction() mgl32.Vec3 {
	return SunDirection(s.Longitude, s.Latitude)
}

// SunDirection converts longitude/latitude angles to a light direction.
func SunDirection(longitude, latitude float32) mgl32.Vec3 {
	lonRad := float64(longitude) * math.Pi / 180.0
	latRad := float64(latitude) * math.Pi / 180.0

	x := float32(math.Cos(latRad) * math.Sin(lonRad))
	y := float32(math.Sin(latRad))
	z := float32(math.Cos(latRad) * math.Cos(lonRad))

	return mgl32.Vec3{x, y, z}
}
