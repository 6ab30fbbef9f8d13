package shader

import (
	"strings"
	"testing"
)

func TestDefine(t *testing.T) {
	src := "#version 410 core\nvoid main() {}\n"
	got := Define(src, map[string]string{"MAX_BONES": "128"})

	lines := strings.Split(got, "\n")
	if lines[0] != "#version 410 core" {
		t.Errorf("version line moved: %q", lines[0])
	}
	if lines[1] != "#define MAX_BONES 128" {
		t.Errorf("define not inserted after version: %q", lines[1])
	}
	if !strings.HasSuffix(got, "void main() {}\n") {
		t.Errorf("body lost: %q", got)
	}
}

func TestDefineWithoutVersion(t *testing.T) {
	got := Define("void main() {}", map[string]string{"A": "1"})
	if !strings.HasPrefix(got, "#define A 1\n") {
		t.Errorf("got %q", got)
	}
	if Define("x", nil) != "x" {
		t.Error("empty defines changed source")
	}
}
