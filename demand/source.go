package demand

import (
	"log"
	"sync"
	"time"

	"vtol-mixer/mixer"
)

// SetpointProvider is what the Source needs from a collector. Narrowed to an
// interface so tests can feed canned setpoints.
type SetpointProvider interface {
	Latest() (Setpoint, time.Duration)
}

// Source adapts the collector to the mixer's control input. When the link
// goes stale it fails safe: moments drop to zero and thrust ramps down so
// the vehicle descends instead of flying away on the last commanded attitude.
type Source struct {
	provider   SetpointProvider
	staleAfter time.Duration
	rampOver   time.Duration

	mu         sync.Mutex
	staleSince time.Time
	wasStale   bool
}

// NewSource wraps provider with the staleness failsafe. staleAfter bounds
// the acceptable setpoint age; after that thrust ramps to zero over rampOver.
func NewSource(provider SetpointProvider, staleAfter, rampOver time.Duration) *Source {
	return &Source{
		provider:   provider,
		staleAfter: staleAfter,
		rampOver:   rampOver,
	}
}

// Control implements mixer.ControlSource.
func (s *Source) Control(group, index int) float64 {
	if group != mixer.GroupAttitude {
		return 0
	}

	sp, age := s.provider.Latest()
	stale := age > s.staleAfter
	s.trackStale(stale)

	if !stale {
		switch index {
		case mixer.IndexRoll:
			return sp.Roll
		case mixer.IndexPitch:
			return sp.Pitch
		case mixer.IndexYaw:
			return sp.Yaw
		case mixer.IndexThrust:
			return sp.Thrust
		case mixer.IndexTilt:
			return sp.Tilt
		case mixer.IndexAirspeed:
			return sp.Airspeed
		}
		return 0
	}

	// Stale link: moments zero, thrust decays from the last good value.
	switch index {
	case mixer.IndexThrust:
		overrun := age - s.staleAfter
		if s.rampOver <= 0 || overrun >= s.rampOver {
			return 0
		}
		return sp.Thrust * (1 - overrun.Seconds()/s.rampOver.Seconds())
	case mixer.IndexTilt:
		// Hold the tilt command, a snap to hover mid-transition is worse
		// than finishing the descent at the current configuration.
		return sp.Tilt
	case mixer.IndexAirspeed:
		return sp.Airspeed
	}
	return 0
}

func (s *Source) trackStale(stale bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if stale && !s.wasStale {
		s.staleSince = time.Now()
		log.Printf("[Demand] Setpoint link stale, failsafe active")
	} else if !stale && s.wasStale {
		log.Printf("[Demand] Setpoint link recovered after %s", time.Since(s.staleSince).Round(time.Millisecond))
	}
	s.wasStale = stale
}

// Stale reports whether the failsafe is currently active.
func (s *Source) Stale() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wasStale
}
