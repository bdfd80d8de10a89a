package actuator

// PWM pulse width limits in microseconds, the usual RC servo range.
const (
	MinPulseWidthUS = 1000.0
	MaxPulseWidthUS = 2000.0
)

// Mapper converts normalized mixer outputs in [-1, 1] to PWM pulse widths.
// Channels marked disarmed get the failsafe pulse instead of their value.
type Mapper struct {
	channels      int
	failsafePulse float64
	armed         bool
}

func NewMapper(channels int) *Mapper {
	return &Mapper{
		channels:      channels,
		failsafePulse: MinPulseWidthUS,
	}
}

// SetFailsafePulse overrides the pulse written while disarmed. Servo
// channels usually want mid-stick (1500) rather than the motor floor.
func (m *Mapper) SetFailsafePulse(us float64) {
	m.failsafePulse = us
}

func (m *Mapper) Arm()    { m.armed = true }
func (m *Mapper) Disarm() { m.armed = false }

func (m *Mapper) Armed() bool { return m.armed }

func (m *Mapper) Channels() int { return m.channels }

// Map fills pulses with one pulse width per channel. Outputs beyond the
// normalized range clip at the pulse limits.
func (m *Mapper) Map(outputs []float64, pulses []float64) {
	for i := 0; i < m.channels && i < len(pulses); i++ {
		if !m.armed {
			pulses[i] = m.failsafePulse
			continue
		}
		out := outputs[i]
		if out < -1 {
			out = -1
		} else if out > 1 {
			out = 1
		}
		pulses[i] = mapRange(out, -1, 1, MinPulseWidthUS, MaxPulseWidthUS)
	}
}

// Helper function to map a value from one range to another. Multiply before
// dividing so the integer instantiations keep their precision.
func mapRange[T uint16 | uint32 | float64](value, fromMin, fromMax, toMin, toMax T) T {
	return (value-fromMin)*(toMax-toMin)/(fromMax-fromMin) + toMin
}
