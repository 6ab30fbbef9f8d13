package pose

import (
	"testing"

	"gopkg.in/yaml.v3"
)

func TestParseCompanionState(t *testing.T) {
	tests := []struct {
		in      string
		want    CompanionState
		wantErr bool
	}{
		{"idle", StateIdle, false},
		{"Alert", StateAlert, false},
		{" scanning ", StateScanning, false},
		{"reminder", StateReminder, false},
		{"sleep", StateIdle, true},
	}
	for _, tt := range tests {
		got, err := ParseCompanionState(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseCompanionState(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseCompanionState(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestCompanionStateYAML(t *testing.T) {
	var v struct {
		State CompanionState `yaml:"state"`
	}
	if err := yaml.Unmarshal([]byte("state: reminder\n"), &v); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if v.State != StateReminder {
		t.Errorf("got %v, want reminder", v.State)
	}

	out, err := yaml.Marshal(v)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(out) != "state: reminder\n" {
		t.Errorf("Marshal: got %q", out)
	}
}

func TestCompanionStateStringUnknown(t *testing.T) {
	if got := CompanionState(9).String(); got != "CompanionState(9)" {
		t.Errorf("got %q", got)
	}
}
