package emitter

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/e7canasta/movie-playback/internal/config"
)

// queueSize bounds events waiting for the publisher goroutine.
const queueSize = 256

// MQTTEmitter publishes events to an MQTT broker
//
// Thread-safety:
//   - Emit may be called from any goroutine (non-blocking, drops when full)
//   - A single publisher goroutine owns the client after Connect
type MQTTEmitter struct {
	cfg    config.Events
	logger *slog.Logger
	client mqtt.Client

	queue chan Event
	done  chan struct{}
	wg    sync.WaitGroup
	once  sync.Once

	mu        sync.RWMutex
	published map[string]uint64 // count per topic
	dropped   uint64
	errors    uint64
	connected bool
}

// New returns the emitter described by cfg: Nop when no broker is set,
// otherwise a connected MQTTEmitter.
func New(ctx context.Context, cfg config.Events, logger *slog.Logger) (Emitter, error) {
	if cfg.Broker == "" {
		return Nop{}, nil
	}
	e := NewMQTTEmitter(cfg, logger)
	if err := e.Connect(ctx, DefaultBackoff()); err != nil {
		return nil, err
	}
	return e, nil
}

// NewMQTTEmitter creates a new, unconnected MQTT emitter
func NewMQTTEmitter(cfg config.Events, logger *slog.Logger) *MQTTEmitter {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}
	return &MQTTEmitter{
		cfg:       cfg,
		logger:    logger,
		queue:     make(chan Event, queueSize),
		done:      make(chan struct{}),
		published: make(map[string]uint64),
	}
}

// Connect establishes the broker connection, retrying with exponential
// backoff, and starts the publisher goroutine.
func (e *MQTTEmitter) Connect(ctx context.Context, backoff Backoff) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(e.cfg.Broker)
	opts.SetClientID(e.cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(backoff.MaxDelay)
	opts.SetConnectTimeout(e.cfg.ConnectTimeout)

	opts.OnConnect = func(mqtt.Client) {
		e.setConnected(true)
		e.logger.Info("emitter: mqtt connection established",
			"broker", e.cfg.Broker,
			"client_id", e.cfg.ClientID,
		)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		e.setConnected(false)
		e.logger.Warn("emitter: mqtt connection lost, will auto-reconnect",
			"error", err,
			"broker", e.cfg.Broker,
		)
	}

	e.client = mqtt.NewClient(opts)

	err := retry(ctx, backoff, e.logger, func() error {
		token := e.client.Connect()
		if !token.WaitTimeout(e.cfg.ConnectTimeout) {
			return fmt.Errorf("mqtt connection timeout")
		}
		return token.Error()
	})
	if err != nil {
		return fmt.Errorf("emitter: mqtt connection failed: %w", err)
	}
	e.setConnected(true)

	e.wg.Add(1)
	go e.run()
	return nil
}

// Emit implements Emitter. The event is dropped when the queue is full.
func (e *MQTTEmitter) Emit(ev Event) {
	select {
	case <-e.done:
		return
	default:
	}
	select {
	case e.queue <- ev:
	default:
		e.mu.Lock()
		e.dropped++
		e.mu.Unlock()
		e.logger.Debug("emitter: dropping event, queue full", "type", ev.Type, "movie_id", ev.MovieID)
	}
}

func (e *MQTTEmitter) run() {
	defer e.wg.Done()
	for {
		select {
		case ev := <-e.queue:
			if err := e.publish(ev); err != nil {
				e.logger.Debug("emitter: publish failed", "type", ev.Type, "error", err)
			}
		case <-e.done:
			return
		}
	}
}

// Topic returns the topic an event is published to: <topic>/<type>.
func (e *MQTTEmitter) Topic(ev Event) string {
	return fmt.Sprintf("%s/%s", e.cfg.Topic, ev.Type)
}

func (e *MQTTEmitter) publish(ev Event) error {
	if !e.isConnected() {
		e.countError()
		return fmt.Errorf("mqtt not connected")
	}

	payload, err := ev.Encode()
	if err != nil {
		e.countError()
		return err
	}

	topic := e.Topic(ev)
	token := e.client.Publish(topic, e.cfg.QoS, false, payload)
	if !token.WaitTimeout(2 * time.Second) {
		e.countError()
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		e.countError()
		return fmt.Errorf("publish failed: %w", err)
	}

	e.mu.Lock()
	e.published[topic]++
	e.mu.Unlock()
	return nil
}

// Close stops the publisher and disconnects.
func (e *MQTTEmitter) Close() error {
	e.once.Do(func() {
		close(e.done)
		e.wg.Wait()
		if e.client != nil && e.client.IsConnected() {
			e.client.Disconnect(250) // 250ms grace period
			e.logger.Info("emitter: mqtt disconnected")
		}
		e.setConnected(false)
	})
	return nil
}

// Stats contains emitter statistics
type Stats struct {
	Connected bool
	Published map[string]uint64
	Dropped   uint64
	Errors    uint64
}

// Stats returns emitter statistics
func (e *MQTTEmitter) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	published := make(map[string]uint64, len(e.published))
	for k, v := range e.published {
		published[k] = v
	}
	return Stats{
		Connected: e.connected,
		Published: published,
		Dropped:   e.dropped,
		Errors:    e.errors,
	}
}

func (e *MQTTEmitter) setConnected(v bool) {
	e.mu.Lock()
	e.connected = v
	e.mu.Unlock()
}

func (e *MQTTEmitter) isConnected() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.connected
}

func (e *MQTTEmitter) countError() {
	e.mu.Lock()
	e.errors++
	e.mu.Unlock()
}
