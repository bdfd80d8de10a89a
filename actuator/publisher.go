package actuator

import (
	"encoding/json"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Frame is one set of actuator commands on the wire.
type Frame struct {
	Timestamp int64     `json:"ts_ms"`
	Armed     bool      `json:"armed"`
	PulsesUS  []float64 `json:"pulses_us"`
	Outputs   []float64 `json:"outputs"`
}

// Publisher ships actuator frames to the output bridge over MQTT. It shares
// the demand collector's client so one broker connection serves both
// directions of the link.
type Publisher struct {
	client mqtt.Client
	topic  string
}

func NewPublisher(client mqtt.Client, topic string) *Publisher {
	return &Publisher{
		client: client,
		topic:  topic,
	}
}

// Publish sends one frame, fire and forget. The next cycle supersedes a lost
// frame anyway, so there is no retry.
func (p *Publisher) Publish(armed bool, outputs, pulses []float64) {
	if p.client == nil || !p.client.IsConnected() {
		return
	}

	frame := Frame{
		Timestamp: time.Now().UnixMilli(),
		Armed:     armed,
		PulsesUS:  pulses,
		Outputs:   outputs,
	}

	payload, err := json.Marshal(frame)
	if err != nil {
		log.Printf("[Actuator] Frame marshal failed: %v", err)
		return
	}

	p.client.Publish(p.topic, 0, false, payload)
}
