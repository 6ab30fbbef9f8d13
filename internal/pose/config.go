package pose

// SidePair names a left/right bone pair.
type SidePair struct {
	Left  string `yaml:"left"`
	Right string `yaml:"right"`
}

// BaseConfig relaxes a T-pose into a standing pose. Angles are degrees about
// each bone's local Axis; the right side uses the negated angle.
type BaseConfig struct {
	UpperArms   SidePair   `yaml:"upper_arms"`
	Hands       SidePair   `yaml:"hands"`
	Fingers     []SidePair `yaml:"fingers"`
	ArmAngle    float32    `yaml:"arm_angle"`
	HandAngle   float32    `yaml:"hand_angle"`
	FingerAngle float32    `yaml:"finger_angle"`
	Axis        [3]float32 `yaml:"axis"`
}

// HeadConfig controls gaze tracking.
type HeadConfig struct {
	Bone      string  `yaml:"bone"`
	MaxYaw    float32 `yaml:"max_yaw"`
	MaxPitch  float32 `yaml:"max_pitch"`
	Smoothing float32 `yaml:"smoothing"`
}

// BreathConfig drives the chest scale.
type BreathConfig struct {
	Bone      string  `yaml:"bone"`
	Period    float32 `yaml:"period"`
	Amplitude float32 `yaml:"amplitude"`
}

// BlinkConfig drives the eye blend shapes.
type BlinkConfig struct {
	Left        string  `yaml:"left"`
	Right       string  `yaml:"right"`
	Duration    float32 `yaml:"duration"`
	MinInterval float32 `yaml:"min_interval"`
	MaxInterval float32 `yaml:"max_interval"`
}

// StatesConfig holds the head poses for non-idle companion states.
type StatesConfig struct {
	AlertPitch     float32 `yaml:"alert_pitch"`
	AlertSmoothing float32 `yaml:"alert_smoothing"`
	ScanYaw        float32 `yaml:"scan_yaw"`
	ScanPeriod     float32 `yaml:"scan_period"`
	ReminderNod    float32 `yaml:"reminder_nod"`
	ReminderTilt   float32 `yaml:"reminder_tilt"`
	ReminderPeriod float32 `yaml:"reminder_period"`
	// ReminderBreathScale stretches the breathing period while reminding.
	ReminderBreathScale float32 `yaml:"reminder_breath_scale"`
}

// Config is the full pose layer configuration. Durations are seconds,
// angles degrees.
type Config struct {
	Base   BaseConfig   `yaml:"base"`
	Head   HeadConfig   `yaml:"head"`
	Breath BreathConfig `yaml:"breath"`
	Blink  BlinkConfig  `yaml:"blink"`
	States StatesConfig `yaml:"states"`
	Seed   uint64       `yaml:"seed"`
}

// DefaultConfig uses humanoid bone names (LeftUpperArm, Head, Chest, ...).
func DefaultConfig() Config {
	return Config{
		Base: BaseConfig{
			UpperArms: SidePair{Left: "LeftUpperArm", Right: "RightUpperArm"},
			Hands:     SidePair{Left: "LeftHand", Right: "RightHand"},
			Fingers: []SidePair{
				{Left: "LeftIndexProximal", Right: "RightIndexProximal"},
				{Left: "LeftMiddleProximal", Right: "RightMiddleProximal"},
				{Left: "LeftRingProximal", Right: "RightRingProximal"},
				{Left: "LeftLittleProximal", Right: "RightLittleProximal"},
			},
			ArmAngle:    -75,
			HandAngle:   -10,
			FingerAngle: -15,
			Axis:        [3]float32{0, 0, 1},
		},
		Head: HeadConfig{
			Bone:      "Head",
			MaxYaw:    30,
			MaxPitch:  20,
			Smoothing: 0.15,
		},
		Breath: BreathConfig{
			Bone:      "Chest",
			Period:    4,
			Amplitude: 0.02,
		},
		Blink: BlinkConfig{
			Left:        "eyeBlinkLeft",
			Right:       "eyeBlinkRight",
			Duration:    0.15,
			MinInterval: 2,
			MaxInterval: 6,
		},
		States: StatesConfig{
			AlertPitch:          -12,
			AlertSmoothing:      0.4,
			ScanYaw:             25,
			ScanPeriod:          3,
			ReminderNod:         6,
			ReminderTilt:        8,
			ReminderPeriod:      2,
			ReminderBreathScale: 1.5,
		},
		Seed: 1,
	}
}
