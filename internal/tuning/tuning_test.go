package tuning

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"blockphys/internal/physics"

	"github.com/go-gl/mathgl/mgl64"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "physics.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestLoadShippedFile(t *testing.T) {
	got, err := Load(filepath.Join("..", "..", "configs", "physics.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := Default()
	if got.TickRateHz != want.TickRateHz || got.KillHeight != want.KillHeight ||
		got.HitboxResolution != want.HitboxResolution || got.Acceleration != want.Acceleration {
		t.Errorf("shipped file differs from defaults: %+v", got)
	}
	if got.Policy().Gravity != (mgl64.Vec3{0, -17, 0}) {
		t.Errorf("Expected gravity (0,-17,0), got %v", got.Policy().Gravity)
	}
}

func TestLoadKeepsDefaults(t *testing.T) {
	path := writeFile(t, "kill_height: -30\nacceleration: cpu\n")
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.KillHeight != -30 {
		t.Errorf("Expected kill height -30, got %v", got.KillHeight)
	}
	if got.TickRateHz != 60 || !got.ForceWake || !got.KillHeightEnabled {
		t.Errorf("missing keys lost their defaults: %+v", got)
	}
	if cfg := got.EnvConfig(); cfg.Acceleration != physics.AccelCPU || cfg.MaxThreads != 8 {
		t.Errorf("unexpected env config %+v", cfg)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"tick rate", "tick_rate_hz: 0\n", "tick_rate_hz"},
		{"gravity", "gravity: [0, -17]\n", "gravity"},
		{"resolution", "hitbox_resolution: 0\n", "hitbox_resolution"},
		{"acceleration", "acceleration: quantum\n", "acceleration"},
		{"interpolation", "interpolation_ticks: -1\n", "interpolation_ticks"},
		{"syntax", "gravity: [0, \n", "physics.yaml"},
	}
	for _, tt := range tests {
		_, err := Load(writeFile(t, tt.body))
		if err == nil {
			t.Errorf("%s: expected an error", tt.name)
			continue
		}
		if !strings.Contains(err.Error(), tt.want) {
			t.Errorf("%s: error %q does not mention %q", tt.name, err, tt.want)
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestPolicyMapping(t *testing.T) {
	tu := Default()
	tu.KillHeightEnabled = false
	tu.Debug = true
	tu.InterpolationTicks = 3
	p := tu.Policy()
	if p.KillHeightEnabled || !p.Debug || p.InterpolationTicks != 3 || p.KillHeight != -10 {
		t.Errorf("unexpected policy %+v", p)
	}
}
