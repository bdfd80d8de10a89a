package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mixer.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "strategy: multirotor\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LoopRateHz != 200 {
		t.Errorf("LoopRateHz = %d, want default 200", cfg.LoopRateHz)
	}
	if cfg.Multirotor.Geometry != "4x" {
		t.Errorf("Geometry = %q, want default 4x", cfg.Multirotor.Geometry)
	}
	if cfg.Demand.MQTTBroker != "localhost" {
		t.Errorf("MQTTBroker = %q, want default localhost", cfg.Demand.MQTTBroker)
	}
	if cfg.StaleAfter() != 500*time.Millisecond {
		t.Errorf("StaleAfter = %v, want 500ms", cfg.StaleAfter())
	}
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
strategy: tiltrotor
loop_rate_hz: 400
multirotor:
  airmode: roll_pitch_yaw
demand:
  mqtt_broker: fc.local
  simulate: transition
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Strategy != "tiltrotor" {
		t.Errorf("Strategy = %q", cfg.Strategy)
	}
	if cfg.LoopRateHz != 400 {
		t.Errorf("LoopRateHz = %d, want 400", cfg.LoopRateHz)
	}
	if cfg.LoopPeriod() != 2500*time.Microsecond {
		t.Errorf("LoopPeriod = %v, want 2.5ms", cfg.LoopPeriod())
	}
	if cfg.Demand.MQTTBroker != "fc.local" {
		t.Errorf("MQTTBroker = %q", cfg.Demand.MQTTBroker)
	}
	if cfg.Demand.Simulate != "transition" {
		t.Errorf("Simulate = %q", cfg.Demand.Simulate)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad strategy", "strategy: quadplane\n"},
		{"bad airmode", "multirotor:\n  airmode: always\n"},
		{"bad loop rate", "loop_rate_hz: 5000\n"},
		{"bad idle", "multirotor:\n  idle_speed: 1.5\n"},
		{"bad profile", "demand:\n  simulate: loops\n"},
		{"bad yaml", "strategy: [\n"},
	}

	for _, tt := range tests {
		path := writeConfig(t, tt.content)
		if _, err := Load(path); err == nil {
			t.Errorf("%s: Load accepted", tt.name)
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Load of missing file must fail")
	}
}

func TestBuildMixerStrategies(t *testing.T) {
	cfg := Default()

	m, channels, err := buildMixer(cfg, fixedSource{})
	if err != nil {
		t.Fatalf("multirotor buildMixer: %v", err)
	}
	if channels != 4 {
		t.Errorf("multirotor channels = %d, want 4", channels)
	}
	if m == nil {
		t.Fatal("nil mixer")
	}

	cfg.Strategy = "tiltrotor"
	_, channels, err = buildMixer(cfg, fixedSource{})
	if err != nil {
		t.Fatalf("tiltrotor buildMixer: %v", err)
	}
	if channels != 7 {
		t.Errorf("tiltrotor channels = %d, want 7", channels)
	}
}

func TestBuildMixerFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quad.mix")
	if err := os.WriteFile(path, []byte("R: 6x 10000 10000 10000 1000\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := Default()
	cfg.Multirotor.MixerFile = path

	_, channels, err := buildMixer(cfg, fixedSource{})
	if err != nil {
		t.Fatalf("buildMixer: %v", err)
	}
	if channels != 6 {
		t.Errorf("channels = %d, want 6", channels)
	}
}

func TestBuildMixerUnknownGeometry(t *testing.T) {
	cfg := Default()
	cfg.Multirotor.Geometry = "16x"

	if _, _, err := buildMixer(cfg, fixedSource{}); err == nil {
		t.Error("unknown geometry accepted")
	}
}

type fixedSource struct{}

func (fixedSource) Control(group, index int) float64 { return 0 }
