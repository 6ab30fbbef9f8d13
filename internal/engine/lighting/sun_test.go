package lighting

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestSunDirection(t *testing.T) {
	tests := []struct {
		name     string
		lon, lat float32
		want     mgl32.Vec3
	}{
		{"front horizon", 0, 0, mgl32.Vec3{0, 0, 1}},
		{"right horizon", 90, 0, mgl32.Vec3{1, 0, 0}},
		{"zenith", 0, 90, mgl32.Vec3{0, 1, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SunDirection(tt.lon, tt.lat)
			if !got.ApproxEqualThreshold(tt.want, 1e-5) {
				t.Errorf("SunDirection(%v, %v) = %v, want %v", tt.lon, tt.lat, got, tt.want)
			}
		})
	}
}

func TestDefaultSunIsUnit(t *testing.T) {
	d := DefaultSun().Direction()
	if l := d.Len(); l < 0.9999 || l > 1.0001 {
		t.Errorf("|Direction()| = %v, want 1", l)
	}
}
