package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the daemon configuration, loaded from YAML.
type Config struct {
	Strategy   string `yaml:"strategy"` // "multirotor" or "tiltrotor"
	LoopRateHz int    `yaml:"loop_rate_hz"`
	HTTPAddr   string `yaml:"http_addr"`
	BufferSize int    `yaml:"buffer_size"`

	Multirotor MultirotorConfig `yaml:"multirotor"`
	Demand     DemandConfig     `yaml:"demand"`
	Actuator   ActuatorConfig   `yaml:"actuator"`
	Log        LogConfig        `yaml:"log"`
}

// MultirotorConfig selects and tunes the rotor table. A mixer file takes
// precedence over the inline geometry settings when both are given.
type MultirotorConfig struct {
	MixerFile    string  `yaml:"mixer_file"`
	Geometry     string  `yaml:"geometry"`
	RollScale    float64 `yaml:"roll_scale"`
	PitchScale   float64 `yaml:"pitch_scale"`
	YawScale     float64 `yaml:"yaw_scale"`
	IdleSpeed    float64 `yaml:"idle_speed"`
	Airmode      string  `yaml:"airmode"` // "disabled", "roll_pitch", "roll_pitch_yaw"
	ThrustFactor float64 `yaml:"thrust_factor"`
	SlewRate     float64 `yaml:"slew_rate"` // max normalized output change per second, 0 = off
}

type DemandConfig struct {
	MQTTBroker      string `yaml:"mqtt_broker"`
	MQTTPort        int    `yaml:"mqtt_port"`
	MQTTUsername    string `yaml:"mqtt_username"`
	MQTTPassword    string `yaml:"mqtt_password"`
	MQTTTopic       string `yaml:"mqtt_topic"`
	UseTLS          bool   `yaml:"use_tls"`
	InsecureSkipTLS bool   `yaml:"insecure_skip_tls"`
	QueueSize       int    `yaml:"queue_size"`
	StaleAfterMs    int    `yaml:"stale_after_ms"`
	RampOverMs      int    `yaml:"ramp_over_ms"`
	Simulate        string `yaml:"simulate"` // "", "hover", "circuit", "transition"
}

type ActuatorConfig struct {
	Topic           string  `yaml:"topic"`
	FailsafePulseUS float64 `yaml:"failsafe_pulse_us"`
	SlewRate        float64 `yaml:"slew_rate"` // tilt servo rate limit, tiltrotor only
}

type LogConfig struct {
	EnableCSV bool   `yaml:"enable_csv"`
	CSVPath   string `yaml:"csv_path"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Strategy:   "multirotor",
		LoopRateHz: 200,
		HTTPAddr:   ":8080",
		BufferSize: 36000, // 3 minutes at 200 Hz

		Multirotor: MultirotorConfig{
			Geometry:   "4x",
			RollScale:  1.0,
			PitchScale: 1.0,
			YawScale:   1.0,
			IdleSpeed:  0.1,
			Airmode:    "disabled",
		},
		Demand: DemandConfig{
			MQTTBroker:   "localhost",
			MQTTPort:     1883,
			MQTTTopic:    "fc/attitude/setpoint",
			QueueSize:    256,
			StaleAfterMs: 500,
			RampOverMs:   2000,
		},
		Actuator: ActuatorConfig{
			Topic:           "fc/actuator/outputs",
			FailsafePulseUS: 1000,
			SlewRate:        1.0,
		},
		Log: LogConfig{
			EnableCSV: false,
			CSVPath:   "data/flight_log.csv",
		},
	}
}

// Load reads the YAML configuration from path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(&c)
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func applyDefaults(c *Config) {
	d := Default()
	if c.Strategy == "" {
		c.Strategy = d.Strategy
	}
	if c.LoopRateHz == 0 {
		c.LoopRateHz = d.LoopRateHz
	}
	if c.HTTPAddr == "" {
		c.HTTPAddr = d.HTTPAddr
	}
	if c.BufferSize == 0 {
		c.BufferSize = d.BufferSize
	}
	if c.Multirotor.Geometry == "" {
		c.Multirotor.Geometry = d.Multirotor.Geometry
	}
	if c.Multirotor.RollScale == 0 && c.Multirotor.PitchScale == 0 && c.Multirotor.YawScale == 0 {
		c.Multirotor.RollScale = d.Multirotor.RollScale
		c.Multirotor.PitchScale = d.Multirotor.PitchScale
		c.Multirotor.YawScale = d.Multirotor.YawScale
	}
	if c.Multirotor.Airmode == "" {
		c.Multirotor.Airmode = d.Multirotor.Airmode
	}
	if c.Demand.MQTTBroker == "" {
		c.Demand.MQTTBroker = d.Demand.MQTTBroker
	}
	if c.Demand.MQTTPort == 0 {
		c.Demand.MQTTPort = d.Demand.MQTTPort
	}
	if c.Demand.MQTTTopic == "" {
		c.Demand.MQTTTopic = d.Demand.MQTTTopic
	}
	if c.Demand.QueueSize == 0 {
		c.Demand.QueueSize = d.Demand.QueueSize
	}
	if c.Demand.StaleAfterMs == 0 {
		c.Demand.StaleAfterMs = d.Demand.StaleAfterMs
	}
	if c.Demand.RampOverMs == 0 {
		c.Demand.RampOverMs = d.Demand.RampOverMs
	}
	if c.Actuator.Topic == "" {
		c.Actuator.Topic = d.Actuator.Topic
	}
	if c.Actuator.FailsafePulseUS == 0 {
		c.Actuator.FailsafePulseUS = d.Actuator.FailsafePulseUS
	}
	if c.Log.CSVPath == "" {
		c.Log.CSVPath = d.Log.CSVPath
	}
}

func (c *Config) validate() error {
	switch c.Strategy {
	case "multirotor", "tiltrotor":
	default:
		return fmt.Errorf("unknown strategy %q", c.Strategy)
	}
	switch c.Multirotor.Airmode {
	case "disabled", "roll_pitch", "roll_pitch_yaw":
	default:
		return fmt.Errorf("unknown airmode %q", c.Multirotor.Airmode)
	}
	if c.LoopRateHz < 1 || c.LoopRateHz > 1000 {
		return fmt.Errorf("loop_rate_hz %d out of range [1, 1000]", c.LoopRateHz)
	}
	if c.Multirotor.IdleSpeed < 0 || c.Multirotor.IdleSpeed > 1 {
		return fmt.Errorf("idle_speed %v out of range [0, 1]", c.Multirotor.IdleSpeed)
	}
	switch c.Demand.Simulate {
	case "", "hover", "circuit", "transition":
	default:
		return fmt.Errorf("unknown simulation profile %q", c.Demand.Simulate)
	}
	return nil
}

// LoopPeriod returns the mix cycle period.
func (c *Config) LoopPeriod() time.Duration {
	return time.Second / time.Duration(c.LoopRateHz)
}

// StaleAfter returns the setpoint staleness threshold.
func (c *Config) StaleAfter() time.Duration {
	return time.Duration(c.Demand.StaleAfterMs) * time.Millisecond
}

// RampOver returns the failsafe thrust ramp duration.
func (c *Config) RampOver() time.Duration {
	return time.Duration(c.Demand.RampOverMs) * time.Millisecond
}
