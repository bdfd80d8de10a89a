package mixer

import (
	"bytes"
	"errors"
	"math"
	"testing"
)

func TestParseLineQuadX(t *testing.T) {
	reg := DefaultRegistry()
	buf := []byte("R: 4x 10000 10000 10000 5000\n")

	def, consumed, err := ParseLine(buf, reg)
	if err != nil {
		t.Fatalf("ParseLine: %v", err)
	}
	if consumed != len(buf) {
		t.Errorf("consumed = %d, want %d", consumed, len(buf))
	}
	if def.Geometry.Key != "4x" || def.Geometry.RotorCount() != 4 {
		t.Errorf("geometry = %q with %d rotors, want 4x with 4", def.Geometry.Key, def.Geometry.RotorCount())
	}
	if def.RollScale != 1.0 || def.PitchScale != 1.0 || def.YawScale != 1.0 {
		t.Errorf("scales = %v %v %v, want 1 1 1", def.RollScale, def.PitchScale, def.YawScale)
	}
	if def.IdleSpeed != 0.5 {
		t.Errorf("idle = %v, want 0.5", def.IdleSpeed)
	}

	// Idle 0.5 remaps to the middle of the output range.
	m := def.NewMixer(constantSource{})
	if math.Abs(m.idleSpeed) > 1e-12 {
		t.Errorf("mixer idle speed = %v, want 0", m.idleSpeed)
	}
}

func TestParseLineErrors(t *testing.T) {
	reg := DefaultRegistry()

	tests := []struct {
		name string
		in   []byte
		want error
	}{
		{"missing newline", []byte("R: 4x 10000 10000 10000 5000"), ErrMalformedInput},
		{"empty buffer", []byte(""), ErrMalformedInput},
		{"too few tokens", []byte("R: 4x 10000 10000\n"), ErrParse},
		{"too many tokens", []byte("R: 4x 1 2 3 4 5\n"), ErrParse},
		{"wrong tag", []byte("Z: 4x 10000 10000 10000 5000\n"), ErrParse},
		{"non-integer field", []byte("R: 4x 1.5 10000 10000 5000\n"), ErrParse},
		{"key too long", []byte("R: longkey64 1 2 3 4\n"), ErrParse},
		{"unknown geometry", []byte("R: zz 0 0 0 0\n"), ErrUnknownGeometry},
		{"oversized line", append(bytes.Repeat([]byte{' '}, maxLineLen+8), '\n'), ErrOverflow},
	}

	for _, tt := range tests {
		_, consumed, err := ParseLine(tt.in, reg)
		if !errors.Is(err, tt.want) {
			t.Errorf("%s: err = %v, want %v", tt.name, err, tt.want)
		}
		if consumed != 0 {
			t.Errorf("%s: consumed = %d, want 0 on failure", tt.name, consumed)
		}
	}
}

func TestParseLineAdvancesPastLine(t *testing.T) {
	reg := DefaultRegistry()
	buf := []byte("R: 4x 10000 10000 10000 0\nR: 6x 8000 8000 5000 1000\n")

	def, consumed, err := ParseLine(buf, reg)
	if err != nil {
		t.Fatalf("first ParseLine: %v", err)
	}
	if def.Geometry.Key != "4x" {
		t.Errorf("first geometry = %q, want 4x", def.Geometry.Key)
	}

	def, _, err = ParseLine(buf[consumed:], reg)
	if err != nil {
		t.Fatalf("second ParseLine: %v", err)
	}
	if def.Geometry.Key != "6x" {
		t.Errorf("second geometry = %q, want 6x", def.Geometry.Key)
	}
	if def.YawScale != 0.5 {
		t.Errorf("second yaw scale = %v, want 0.5", def.YawScale)
	}
}

func TestLoadDefinitions(t *testing.T) {
	reg := DefaultRegistry()
	buf := []byte("R: 4x 10000 10000 10000 0\nR: 8x 10000 10000 10000 1500\n")

	defs, err := LoadDefinitions(buf, reg)
	if err != nil {
		t.Fatalf("LoadDefinitions: %v", err)
	}
	if len(defs) != 2 {
		t.Fatalf("parsed %d definitions, want 2", len(defs))
	}
	if defs[1].Geometry.RotorCount() != 8 {
		t.Errorf("second rotor count = %d, want 8", defs[1].Geometry.RotorCount())
	}
}

func TestLoadDefinitionsStopsAtBadLine(t *testing.T) {
	reg := DefaultRegistry()
	buf := []byte("R: 4x 10000 10000 10000 0\nR: zz 0 0 0 0\n")

	defs, err := LoadDefinitions(buf, reg)
	if !errors.Is(err, ErrUnknownGeometry) {
		t.Fatalf("err = %v, want ErrUnknownGeometry", err)
	}
	if len(defs) != 1 {
		t.Errorf("parsed %d definitions before failure, want 1", len(defs))
	}
}
