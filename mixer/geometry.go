package mixer

// Rotor holds the per-rotor sensitivity of each control axis, defined by the
// airframe geometry. A positive Roll means this rotor speeds up for positive
// roll demand.
type Rotor struct {
	Roll   float64
	Pitch  float64
	Yaw    float64
	Thrust float64
}

// Geometry is an immutable rotor layout, keyed by a short identifier.
type Geometry struct {
	Key    string
	Rotors []Rotor
}

// RotorCount returns the number of rotors in the geometry.
func (g *Geometry) RotorCount() int {
	return len(g.Rotors)
}

// Registry maps geometry keys to rotor tables. It is built once at startup
// and never mutated; mixers borrow rotor slices from it for their lifetime.
type Registry struct {
	geometries map[string]*Geometry
}

// NewRegistry builds a registry from the given geometries.
func NewRegistry(geometries ...*Geometry) *Registry {
	r := &Registry{geometries: make(map[string]*Geometry, len(geometries))}
	for _, g := range geometries {
		r.geometries[g.Key] = g
	}
	return r
}

// Lookup returns the geometry for key, or nil if unknown.
func (r *Registry) Lookup(key string) *Geometry {
	return r.geometries[key]
}

// Keys returns the registered geometry keys.
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.geometries))
	for k := range r.geometries {
		keys = append(keys, k)
	}
	return keys
}

// DefaultRegistry returns the standard normalized geometry tables.
func DefaultRegistry() *Registry {
	return NewRegistry(
		&Geometry{Key: "4x", Rotors: []Rotor{
			{-0.707107, 0.707107, 1.000000, 1.000000},
			{0.707107, -0.707107, 1.000000, 1.000000},
			{0.707107, 0.707107, -1.000000, 1.000000},
			{-0.707107, -0.707107, -1.000000, 1.000000},
		}},
		&Geometry{Key: "4+", Rotors: []Rotor{
			{-1.000000, 0.000000, 1.000000, 1.000000},
			{1.000000, 0.000000, 1.000000, 1.000000},
			{0.000000, 1.000000, -1.000000, 1.000000},
			{0.000000, -1.000000, -1.000000, 1.000000},
		}},
		&Geometry{Key: "4w", Rotors: []Rotor{
			{-0.500000, 0.707107, 1.000000, 1.000000},
			{0.500000, -0.707107, 1.000000, 1.000000},
			{0.500000, 0.707107, -1.000000, 1.000000},
			{-0.500000, -0.707107, -1.000000, 1.000000},
		}},
		&Geometry{Key: "6x", Rotors: []Rotor{
			{-1.000000, 0.000000, -1.000000, 1.000000},
			{1.000000, 0.000000, 1.000000, 1.000000},
			{0.500000, 0.866025, -1.000000, 1.000000},
			{-0.500000, -0.866025, 1.000000, 1.000000},
			{-0.500000, 0.866025, 1.000000, 1.000000},
			{0.500000, -0.866025, -1.000000, 1.000000},
		}},
		&Geometry{Key: "6+", Rotors: []Rotor{
			{0.000000, -1.000000, -1.000000, 1.000000},
			{0.000000, 1.000000, 1.000000, 1.000000},
			{0.866025, 0.500000, -1.000000, 1.000000},
			{-0.866025, -0.500000, 1.000000, 1.000000},
			{0.866025, -0.500000, 1.000000, 1.000000},
			{-0.866025, 0.500000, -1.000000, 1.000000},
		}},
		&Geometry{Key: "8x", Rotors: []Rotor{
			{-0.382683, 0.923880, 1.000000, 1.000000},
			{0.382683, -0.923880, 1.000000, 1.000000},
			{-0.923880, 0.382683, -1.000000, 1.000000},
			{-0.382683, -0.923880, -1.000000, 1.000000},
			{0.382683, 0.923880, -1.000000, 1.000000},
			{0.923880, -0.382683, -1.000000, 1.000000},
			{0.923880, 0.382683, 1.000000, 1.000000},
			{-0.923880, -0.382683, 1.000000, 1.000000},
		}},
	)
}
