package mixer

import (
	"bytes"
	"errors"
	"strconv"
)

// Parse failures. All of them are recoverable: the input position is left
// unadvanced and the caller may retry on a corrected line.
var (
	ErrMalformedInput  = errors.New("mixer: definition line not newline-terminated")
	ErrParse           = errors.New("mixer: definition line did not parse")
	ErrOverflow        = errors.New("mixer: definition line exceeds buffer limit")
	ErrUnknownGeometry = errors.New("mixer: unknown geometry key")
)

// maxLineLen bounds a single definition line. Real definitions are well
// under this; anything longer indicates a corrupt buffer.
const maxLineLen = 160

// maxGeometryKeyLen bounds the geometry key field.
const maxGeometryKeyLen = 7

// scaleDivisor converts the integer fields of a definition line to floats:
// each integer carries four decimal digits of precision.
const scaleDivisor = 10000.0

// Definition is a validated multirotor mixer configuration parsed from a
// text definition line.
type Definition struct {
	Geometry   *Geometry
	RollScale  float64
	PitchScale float64
	YawScale   float64
	IdleSpeed  float64
}

// ParseLine parses one multirotor definition of the form
//
//	R: <geometry-key> <roll*1e4> <pitch*1e4> <yaw*1e4> <idle*1e4>\n
//
// from the start of buf and resolves the geometry against reg. On success it
// returns the definition and the number of bytes consumed, so repeated calls
// can walk a buffer holding a sequence of definitions. On failure the
// consumed count is 0.
func ParseLine(buf []byte, reg *Registry) (Definition, int, error) {
	// A definition must be a complete, newline-terminated line.
	nl := bytes.IndexByte(buf, '\n')
	if nl < 0 {
		return Definition{}, 0, ErrMalformedInput
	}
	if nl >= maxLineLen {
		return Definition{}, 0, ErrOverflow
	}
	line := buf[:nl]

	fields := bytes.Fields(line)
	if len(fields) != 6 || string(fields[0]) != "R:" {
		return Definition{}, 0, ErrParse
	}

	key := string(fields[1])
	if len(key) > maxGeometryKeyLen {
		return Definition{}, 0, ErrParse
	}

	var scaled [4]int
	for i := range scaled {
		v, err := strconv.Atoi(string(fields[2+i]))
		if err != nil {
			return Definition{}, 0, ErrParse
		}
		scaled[i] = v
	}

	geom := reg.Lookup(key)
	if geom == nil {
		return Definition{}, 0, ErrUnknownGeometry
	}

	def := Definition{
		Geometry:   geom,
		RollScale:  float64(scaled[0]) / scaleDivisor,
		PitchScale: float64(scaled[1]) / scaleDivisor,
		YawScale:   float64(scaled[2]) / scaleDivisor,
		IdleSpeed:  float64(scaled[3]) / scaleDivisor,
	}

	return def, nl + 1, nil
}

// LoadDefinitions parses every definition line in buf, in order. It stops at
// the first failure and returns the definitions parsed so far along with the
// error, mirroring how a mixer file is loaded at startup.
func LoadDefinitions(buf []byte, reg *Registry) ([]Definition, error) {
	var defs []Definition
	for len(bytes.TrimSpace(buf)) > 0 {
		def, consumed, err := ParseLine(buf, reg)
		if err != nil {
			return defs, err
		}
		defs = append(defs, def)
		buf = buf[consumed:]
	}
	return defs, nil
}

// NewMixer constructs a multirotor mixer from the definition, bound to the
// resolved geometry.
func (d Definition) NewMixer(source ControlSource) *MultirotorMixer {
	return NewMultirotorMixer(source, d.Geometry, d.RollScale, d.PitchScale, d.YawScale, d.IdleSpeed)
}
