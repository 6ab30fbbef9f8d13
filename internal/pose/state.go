package pose

import (
	"fmt"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
)

// CompanionState selects which procedural pose set drives the head.
type CompanionState int

const (
	StateIdle CompanionState = iota
	StateScanning
	StateAlert
	StateReminder
)

var stateNames = [...]string{
	StateIdle:     "idle",
	StateScanning: "scanning",
	StateAlert:    "alert",
	StateReminder: "reminder",
}

func (s CompanionState) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("CompanionState(%d)", int(s))
}

// ParseCompanionState converts a name such as "alert" into a state.
func ParseCompanionState(name string) (CompanionState, error) {
	for i, n := range stateNames {
		if strings.EqualFold(n, strings.TrimSpace(name)) {
			return CompanionState(i), nil
		}
	}
	return StateIdle, fmt.Errorf("unknown companion state %q", name)
}

// MarshalText implements encoding.TextMarshaler (used by yaml).
func (s CompanionState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler (used by yaml).
func (s *CompanionState) UnmarshalText(text []byte) error {
	v, err := ParseCompanionState(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Input is what the frame loop hands the pose layer each animation tick.
type Input struct {
	// Dt is the time since the previous tick, in seconds.
	Dt float32
	// LookTarget is a normalized gaze point; (0,0) top-left, (1,1) bottom-right.
	LookTarget mgl32.Vec2
	State      CompanionState
}

// HeadTrackState is the smoothed head orientation of one bone, in radians.
type HeadTrackState struct {
	CurrentYaw   float32
	CurrentPitch float32
}
