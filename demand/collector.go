package demand

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Collector subscribes to the flight controller setpoint topic and keeps the
// most recent demand frame available for the mixing loop. Frames arrive as
// JSON over MQTT; the mixing loop polls Latest at its own rate.
type Collector struct {
	config    Config
	client    mqtt.Client
	stats     *Statistics
	setpoints chan Setpoint
	done      chan struct{}

	mu     sync.RWMutex
	latest Setpoint
}

func NewCollector(config Config) *Collector {
	return &Collector{
		config:    config,
		stats:     NewStatistics(),
		setpoints: make(chan Setpoint, config.QueueSize),
		done:      make(chan struct{}),
	}
}

func (c *Collector) Start() error {
	log.Printf("[Demand] Starting collector...")
	log.Printf("[Demand] Config: Broker=%s:%d Topic=%s", c.config.MQTTBroker, c.config.MQTTPort, c.config.MQTTTopic)

	// Setup MQTT client options
	opts := mqtt.NewClientOptions()

	protocol := "tcp"
	if c.config.UseTLS {
		protocol = "tls"
	}
	brokerURL := fmt.Sprintf("%s://%s:%d", protocol, c.config.MQTTBroker, c.config.MQTTPort)
	opts.AddBroker(brokerURL)

	clientID := fmt.Sprintf("vtol-mixer-%d", time.Now().Unix())
	opts.SetClientID(clientID)

	if c.config.MQTTUsername != "" {
		opts.SetUsername(c.config.MQTTUsername)
		opts.SetPassword(c.config.MQTTPassword)
	}

	if c.config.UseTLS {
		tlsConfig := &tls.Config{
			InsecureSkipVerify: c.config.InsecureSkipTLS,
		}
		opts.SetTLSConfig(tlsConfig)
	}

	// Connection settings
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(30 * time.Second)

	// Callbacks
	opts.OnConnect = c.onConnect
	opts.OnConnectionLost = c.onConnectionLost
	opts.OnReconnecting = c.onReconnecting

	c.client = mqtt.NewClient(opts)

	log.Printf("[MQTT] Connecting to %s as %s...", brokerURL, clientID)

	token := c.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return fmt.Errorf("MQTT connect timeout")
	}
	if token.Error() != nil {
		return fmt.Errorf("MQTT connect failed: %w", token.Error())
	}

	go c.updateWorker()
	go c.statsReporter()

	log.Printf("[Demand] Collector started successfully")
	return nil
}

func (c *Collector) Stop() {
	log.Printf("[Demand] Stopping collector...")
	close(c.done)

	if c.client != nil && c.client.IsConnected() {
		c.client.Disconnect(1000)
	}

	successRate := 0.0
	if c.stats.FramesReceived > 0 {
		successRate = float64(c.stats.ParseSuccesses) / float64(c.stats.FramesReceived) * 100.0
	}

	log.Printf("[Demand] Collector stopped - received %d frames (%.1f%% parse success)",
		c.stats.FramesReceived, successRate)
}

func (c *Collector) onConnect(client mqtt.Client) {
	log.Printf("[MQTT] Connected successfully")

	token := client.Subscribe(c.config.MQTTTopic, 0, c.onMessage)
	if !token.WaitTimeout(5 * time.Second) {
		log.Printf("[MQTT] Subscribe timeout for %s", c.config.MQTTTopic)
		return
	}
	if token.Error() != nil {
		log.Printf("[MQTT] Subscribe error: %v", token.Error())
		return
	}

	log.Printf("[MQTT] Subscribed to %s", c.config.MQTTTopic)
}

func (c *Collector) onConnectionLost(client mqtt.Client, err error) {
	log.Printf("[MQTT] Connection lost: %v (will auto-reconnect)", err)
}

func (c *Collector) onReconnecting(client mqtt.Client, opts *mqtt.ClientOptions) {
	log.Printf("[MQTT] Reconnecting...")
}

func (c *Collector) onMessage(client mqtt.Client, msg mqtt.Message) {
	sp, ok := ParseSetpoint(msg.Payload())
	c.stats.RecordFrame(ok)
	if !ok {
		return
	}

	select {
	case c.setpoints <- sp:
		// Success
	case <-c.done:
		return
	default:
		// Queue full, drop the frame (the loop only wants the latest)
		c.stats.RecordDrop()
	}
}

// ParseSetpoint parses one JSON demand frame. The roll/pitch/yaw moments and
// tilt are normalized to [-1, 1], thrust and airspeed to [0, 1]; values
// outside those ranges fail the frame so a corrupt message can never command
// an actuator. Missing optional fields (tilt, airspeed) default to zero.
func ParseSetpoint(data []byte) (Setpoint, bool) {
	var payload map[string]interface{}
	if err := json.Unmarshal(data, &payload); err != nil {
		// Not JSON, skip
		return Setpoint{}, false
	}

	sp := Setpoint{Timestamp: time.Now()}

	if ts, ok := payload["ts"].(float64); ok {
		sp.Timestamp = time.Unix(0, int64(ts)*1e6)
	} else if ts, ok := payload["timestamp"].(float64); ok {
		sp.Timestamp = time.Unix(0, int64(ts)*1e6)
	}

	var ok bool
	if sp.Roll, ok = demandField(payload, "roll", -1, 1); !ok {
		return Setpoint{}, false
	}
	if sp.Pitch, ok = demandField(payload, "pitch", -1, 1); !ok {
		return Setpoint{}, false
	}
	if sp.Yaw, ok = demandField(payload, "yaw", -1, 1); !ok {
		return Setpoint{}, false
	}
	if sp.Thrust, ok = demandField(payload, "thrust", 0, 1); !ok {
		return Setpoint{}, false
	}

	// Fixed-wing demands are optional on pure multirotor frames
	if v, present := payload["tilt"]; present {
		f, isNum := v.(float64)
		if !isNum || f < -1 || f > 1 {
			return Setpoint{}, false
		}
		sp.Tilt = f
	}
	if v, present := payload["airspeed"]; present {
		f, isNum := v.(float64)
		if !isNum || f < 0 || f > 1 {
			return Setpoint{}, false
		}
		sp.Airspeed = f
	}

	return sp, true
}

func demandField(payload map[string]interface{}, key string, min, max float64) (float64, bool) {
	v, present := payload[key]
	if !present {
		return 0, false
	}
	f, isNum := v.(float64)
	if !isNum || f < min || f > max {
		return 0, false
	}
	return f, true
}

func (c *Collector) updateWorker() {
	log.Printf("[Demand] Update worker started")

	for {
		select {
		case sp := <-c.setpoints:
			c.mu.Lock()
			c.latest = sp
			c.mu.Unlock()

		case <-c.done:
			log.Printf("[Demand] Update worker stopped")
			return
		}
	}
}

func (c *Collector) statsReporter() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			stats := c.stats.GetSnapshot()
			log.Printf("[Demand] Stats: %d frames, %.1f frames/s, %.1f%% success, %d dropped",
				stats["frames_received"],
				stats["frames_per_sec"],
				stats["success_rate"],
				stats["frames_dropped"])

		case <-c.done:
			return
		}
	}
}

// Latest returns the most recent setpoint and its age.
func (c *Collector) Latest() (Setpoint, time.Duration) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.latest, time.Since(c.latest.Timestamp)
}

func (c *Collector) Stats() *Statistics {
	return c.stats
}

// Client exposes the MQTT client so the actuator publisher can reuse the
// broker connection.
func (c *Collector) Client() mqtt.Client {
	return c.client
}

func (c *Collector) IsConnected() bool {
	return c.client != nil && c.client.IsConnected()
}
