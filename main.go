package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"vtol-mixer/actuator"
	"vtol-mixer/demand"
	"vtol-mixer/mixer"
	"vtol-mixer/sim"
	"vtol-mixer/storage"
)

// MixerServer owns the mixing loop and serves its state over HTTP.
type MixerServer struct {
	config    *Config
	collector *demand.Collector
	provider  demand.SetpointProvider
	source    *demand.Source
	mix       mixer.Mixer
	buffer    *storage.RingBuffer
	csvWriter *storage.CSVWriter
	mapper    *actuator.Mapper
	publisher *actuator.Publisher

	upgrader websocket.Upgrader

	mu     sync.RWMutex
	latest storage.MixRecord
}

func NewMixerServer(cfg *Config) (*MixerServer, error) {
	collector := demand.NewCollector(demand.Config{
		MQTTBroker:      cfg.Demand.MQTTBroker,
		MQTTPort:        cfg.Demand.MQTTPort,
		MQTTUsername:    cfg.Demand.MQTTUsername,
		MQTTPassword:    cfg.Demand.MQTTPassword,
		MQTTTopic:       cfg.Demand.MQTTTopic,
		UseTLS:          cfg.Demand.UseTLS,
		InsecureSkipTLS: cfg.Demand.InsecureSkipTLS,
		QueueSize:       cfg.Demand.QueueSize,
		StaleAfter:      cfg.StaleAfter(),
	})

	var provider demand.SetpointProvider = collector
	if cfg.Demand.Simulate != "" {
		provider = sim.NewGenerator(sim.Profile(cfg.Demand.Simulate))
	}
	source := demand.NewSource(provider, cfg.StaleAfter(), cfg.RampOver())

	mix, channels, err := buildMixer(cfg, source)
	if err != nil {
		return nil, err
	}

	mapper := actuator.NewMapper(channels)
	mapper.SetFailsafePulse(cfg.Actuator.FailsafePulseUS)

	s := &MixerServer{
		config:    cfg,
		collector: collector,
		provider:  provider,
		source:    source,
		mix:       mix,
		buffer:    storage.NewRingBuffer(cfg.BufferSize),
		mapper:    mapper,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	if cfg.Log.EnableCSV {
		s.csvWriter = storage.NewCSVWriter(cfg.Log.CSVPath)
	}

	return s, nil
}

// buildMixer constructs the allocation strategy the config asks for and
// returns it with its output channel count.
func buildMixer(cfg *Config, source mixer.ControlSource) (mixer.Mixer, int, error) {
	if cfg.Strategy == "tiltrotor" {
		return mixer.NewTiltRotorAllocator(source, mixer.DefaultAirframe()), mixer.TiltRotorChannels, nil
	}

	reg := mixer.DefaultRegistry()

	var def mixer.Definition
	if cfg.Multirotor.MixerFile != "" {
		buf, err := os.ReadFile(cfg.Multirotor.MixerFile)
		if err != nil {
			return nil, 0, fmt.Errorf("read mixer file: %w", err)
		}
		defs, err := mixer.LoadDefinitions(buf, reg)
		if err != nil {
			return nil, 0, fmt.Errorf("parse mixer file: %w", err)
		}
		if len(defs) == 0 {
			return nil, 0, fmt.Errorf("mixer file %s holds no definitions", cfg.Multirotor.MixerFile)
		}
		def = defs[0]
		log.Printf("[Mixer] Loaded geometry %s from %s", def.Geometry.Key, cfg.Multirotor.MixerFile)
	} else {
		geom := reg.Lookup(cfg.Multirotor.Geometry)
		if geom == nil {
			return nil, 0, fmt.Errorf("unknown geometry %q (have %v)", cfg.Multirotor.Geometry, reg.Keys())
		}
		def = mixer.Definition{
			Geometry:   geom,
			RollScale:  cfg.Multirotor.RollScale,
			PitchScale: cfg.Multirotor.PitchScale,
			YawScale:   cfg.Multirotor.YawScale,
			IdleSpeed:  cfg.Multirotor.IdleSpeed,
		}
	}

	m := def.NewMixer(source)
	m.SetAirmode(parseAirmode(cfg.Multirotor.Airmode))
	m.SetThrustFactor(cfg.Multirotor.ThrustFactor)

	return m, m.RotorCount(), nil
}

func parseAirmode(name string) mixer.Airmode {
	switch name {
	case "roll_pitch":
		return mixer.AirmodeRollPitch
	case "roll_pitch_yaw":
		return mixer.AirmodeRollPitchYaw
	default:
		return mixer.AirmodeDisabled
	}
}

// runLoop is the fixed-rate mix cycle. Each tick pulls the current demands
// through the mixer, maps the result to PWM and records the cycle.
func (s *MixerServer) runLoop(ctx context.Context) error {
	period := s.config.LoopPeriod()
	slewRate := s.config.Multirotor.SlewRate
	if s.config.Strategy == "tiltrotor" {
		slewRate = s.config.Actuator.SlewRate
	}

	log.Printf("[Mixer] Loop running at %d Hz (%s strategy, %d channels)",
		s.config.LoopRateHz, s.config.Strategy, s.mapper.Channels())

	outputs := make([]float64, mixer.MaxRotorCount)
	pulses := make([]float64, s.mapper.Channels())

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if slewRate > 0 {
				s.mix.SetSlewLimit(slewRate * period.Seconds())
			}

			n := s.mix.Mix(outputs)
			if n == 0 {
				continue
			}

			sp, _ := s.provider.Latest()
			rec := storage.MixRecord{
				Timestamp:  time.Now(),
				Strategy:   s.config.Strategy,
				Roll:       sp.Roll,
				Pitch:      sp.Pitch,
				Yaw:        sp.Yaw,
				Thrust:     sp.Thrust,
				Tilt:       sp.Tilt,
				Airspeed:   sp.Airspeed,
				Outputs:    append([]float64(nil), outputs[:n]...),
				Saturation: s.mix.Saturation(),
				Stale:      s.source.Stale(),
			}

			s.mapper.Map(rec.Outputs, pulses)
			if s.publisher != nil {
				s.publisher.Publish(s.mapper.Armed(), rec.Outputs, pulses)
			}

			s.buffer.Push(rec)
			if s.csvWriter != nil {
				s.csvWriter.WriteRecord(rec)
			}

			s.mu.Lock()
			s.latest = rec
			s.mu.Unlock()

		case <-ctx.Done():
			log.Printf("[Mixer] Loop stopped")
			return ctx.Err()
		}
	}
}

// HTTP handlers

func (s *MixerServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"strategy":  s.config.Strategy,
		"armed":     s.mapper.Armed(),
		"stale":     s.source.Stale(),
		"connected": s.collector.IsConnected(),
		"collector": s.collector.Stats().GetSnapshot(),
		"buffer":    s.buffer.GetStats(),
	})
}

func (s *MixerServer) handleOutputs(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	rec := s.latest
	s.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(recordJSON(rec))
}

func (s *MixerServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	n := 100
	if q := r.URL.Query().Get("n"); q != "" {
		fmt.Sscanf(q, "%d", &n)
	}
	if n < 1 {
		n = 1
	} else if n > s.buffer.Capacity() {
		n = s.buffer.Capacity()
	}

	records := s.buffer.GetRecent(n)
	out := make([]map[string]interface{}, len(records))
	for i, rec := range records {
		out[i] = recordJSON(rec)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}

func (s *MixerServer) handleArm(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST required", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Armed bool `json:"armed"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if req.Armed && s.source.Stale() {
		http.Error(w, "refusing to arm on a stale setpoint link", http.StatusConflict)
		return
	}

	if req.Armed {
		s.mapper.Arm()
		log.Printf("[Mixer] Armed")
	} else {
		s.mapper.Disarm()
		log.Printf("[Mixer] Disarmed")
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"armed": s.mapper.Armed()})
}

// handleStream pushes the latest mix record over a websocket at a fixed rate.
func (s *MixerServer) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[WS] Upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	log.Printf("[WS] Client connected from %s", r.RemoteAddr)

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for range ticker.C {
		s.mu.RLock()
		rec := s.latest
		s.mu.RUnlock()

		if err := conn.WriteJSON(recordJSON(rec)); err != nil {
			log.Printf("[WS] Client %s gone: %v", r.RemoteAddr, err)
			return
		}
	}
}

func recordJSON(rec storage.MixRecord) map[string]interface{} {
	return map[string]interface{}{
		"ts_ms":    rec.Timestamp.UnixMilli(),
		"strategy": rec.Strategy,
		"setpoint": map[string]float64{
			"roll":     rec.Roll,
			"pitch":    rec.Pitch,
			"yaw":      rec.Yaw,
			"thrust":   rec.Thrust,
			"tilt":     rec.Tilt,
			"airspeed": rec.Airspeed,
		},
		"outputs":   rec.Outputs,
		"saturated": rec.Saturation.Saturated(),
		"stale":     rec.Stale,
	}
}

func main() {
	configPath := "mixer.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	cfg, err := Load(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Printf("[Config] %s not found, using defaults", configPath)
			cfg = Default()
		} else {
			log.Fatalf("Config load failed: %v", err)
		}
	}

	server, err := NewMixerServer(cfg)
	if err != nil {
		log.Fatalf("Mixer setup failed: %v", err)
	}

	if cfg.Demand.Simulate == "" {
		if err := server.collector.Start(); err != nil {
			log.Printf("[WARN] Demand collector failed to start: %v", err)
			log.Printf("[WARN] Running without a live setpoint link")
		} else {
			defer server.collector.Stop()
			server.publisher = actuator.NewPublisher(server.collector.Client(), cfg.Actuator.Topic)
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", server.handleStatus)
	mux.HandleFunc("/api/outputs", server.handleOutputs)
	mux.HandleFunc("/api/history", server.handleHistory)
	mux.HandleFunc("/api/arm", server.handleArm)
	mux.HandleFunc("/ws", server.handleStream)

	httpServer := &http.Server{Addr: cfg.HTTPAddr, Handler: mux}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return server.runLoop(ctx)
	})

	g.Go(func() error {
		log.Printf("[HTTP] Serving on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("Server failed: %v", err)
	}

	if server.csvWriter != nil {
		server.csvWriter.Close()
	}

	log.Printf("[Mixer] Shutdown complete")
}
