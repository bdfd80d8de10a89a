package demand

import (
	"sync"
	"time"
)

// Setpoint is one normalized attitude demand frame received from the
// flight controller link
type Setpoint struct {
	Timestamp time.Time
	Roll      float64
	Pitch     float64
	Yaw       float64
	Thrust    float64
	Tilt      float64
	Airspeed  float64
}

// Statistics tracks setpoint link performance metrics
type Statistics struct {
	mu                sync.RWMutex
	FramesReceived    int64
	ParseSuccesses    int64
	ParseFailures     int64
	FramesDropped     int64
	LastUpdate        time.Time
	StartTime         time.Time
}

func NewStatistics() *Statistics {
	return &Statistics{
		StartTime:  time.Now(),
		LastUpdate: time.Now(),
	}
}

func (s *Statistics) RecordFrame(success bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.FramesReceived++
	if success {
		s.ParseSuccesses++
	} else {
		s.ParseFailures++
	}
	s.LastUpdate = time.Now()
}

func (s *Statistics) RecordDrop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.FramesDropped++
}

func (s *Statistics) GetSnapshot() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	successRate := 0.0
	if s.FramesReceived > 0 {
		successRate = float64(s.ParseSuccesses) / float64(s.FramesReceived) * 100.0
	}

	uptime := time.Since(s.StartTime)
	framesPerSec := 0.0
	if uptime.Seconds() > 0 {
		framesPerSec = float64(s.FramesReceived) / uptime.Seconds()
	}

	return map[string]interface{}{
		"frames_received": s.FramesReceived,
		"parse_successes": s.ParseSuccesses,
		"parse_failures":  s.ParseFailures,
		"frames_dropped":  s.FramesDropped,
		"success_rate":    successRate,
		"uptime_seconds":  uptime.Seconds(),
		"frames_per_sec":  framesPerSec,
		"last_update":     s.LastUpdate,
	}
}

// Config holds setpoint collector configuration
type Config struct {
	MQTTBroker      string
	MQTTPort        int
	MQTTUsername    string
	MQTTPassword    string
	MQTTTopic       string
	UseTLS          bool
	InsecureSkipTLS bool
	QueueSize       int
	StaleAfter      time.Duration
}

func DefaultConfig() Config {
	return Config{
		MQTTBroker: "localhost",
		MQTTPort:   1883,
		MQTTTopic:  "fc/attitude/setpoint",
		UseTLS:     false,
		QueueSize:  256,
		StaleAfter: 500 * time.Millisecond,
	}
}
