package bridge

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// HealthStatus represents the operational status of the bridge.
type HealthStatus string

const (
	// HealthHealthy indicates the bridge is operating normally.
	HealthHealthy HealthStatus = "healthy"

	// HealthDegraded indicates the broker or the vendor API is unreachable.
	HealthDegraded HealthStatus = "degraded"

	// HealthStarting indicates the bridge has not completed a poll yet.
	HealthStarting HealthStatus = "starting"

	// HealthStopping indicates the bridge is shutting down.
	HealthStopping HealthStatus = "stopping"
)

// defaultHealthInterval is used when no interval is configured.
const defaultHealthInterval = 30 * time.Second

// Stats are the bridge counters reported in health messages.
type Stats struct {
	Devices         int       `json:"devices"`
	PollsOK         uint64    `json:"polls_ok"`
	PollsFailed     uint64    `json:"polls_failed"`
	CommandsSent    uint64    `json:"commands_sent"`
	CommandsFailed  uint64    `json:"commands_failed"`
	CommandsSkipped uint64    `json:"commands_skipped"`
	LastPoll        time.Time `json:"last_poll,omitzero"`

	// LastPollOK is true when the latest poll cycle fetched at least one robot.
	LastPollOK bool `json:"last_poll_ok"`
}

// HealthMessage is the retained JSON published on the health topic.
type HealthMessage struct {
	Status        HealthStatus `json:"status"`
	Reason        string       `json:"reason,omitempty"`
	Version       string       `json:"version"`
	Timestamp     time.Time    `json:"timestamp"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	MQTTConnected bool         `json:"mqtt_connected"`
	Stats         Stats        `json:"stats"`
}

// HealthPublisher is the interface for publishing health messages.
// This is typically implemented by an MQTT client.
type HealthPublisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
}

// HealthReporterConfig holds configuration for the health reporter.
type HealthReporterConfig struct {
	// Topic is where health messages are published, retained.
	Topic string
	QoS   byte

	Version string

	// Interval is how often to publish health status.
	// Default: 30 seconds.
	Interval time.Duration

	Publisher HealthPublisher

	// Stats supplies the current bridge counters.
	Stats func() Stats

	Logger Logger
}

// HealthReporter manages periodic health status reporting.
type HealthReporter struct {
	topic     string
	qos       byte
	version   string
	startTime time.Time
	interval  time.Duration
	publisher HealthPublisher
	stats     func() Stats
	logger    Logger

	// Shutdown coordination (stopOnce prevents double-close panics)
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewHealthReporter creates a new health reporter. Call Start to begin
// reporting.
func NewHealthReporter(cfg HealthReporterConfig) *HealthReporter {
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultHealthInterval
	}
	stats := cfg.Stats
	if stats == nil {
		stats = func() Stats { return Stats{} }
	}

	return &HealthReporter{
		topic:     cfg.Topic,
		qos:       cfg.QoS,
		version:   cfg.Version,
		startTime: time.Now(),
		interval:  interval,
		publisher: cfg.Publisher,
		stats:     stats,
		logger:    orNop(cfg.Logger),
		done:      make(chan struct{}),
	}
}

// Start begins periodic health reporting until ctx is cancelled or Stop is called.
func (h *HealthReporter) Start(ctx context.Context) {
	h.wg.Add(1)
	go h.reportLoop(ctx)
}

// Stop halts reporting and publishes a final "stopping" status.
// Safe to call multiple times.
func (h *HealthReporter) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		h.wg.Wait()

		//nolint:errcheck // Best-effort during shutdown, nothing we can do if it fails
		h.publish(h.message(HealthStopping, "bridge stopping"))
	})
}

// Snapshot returns the current health without publishing it.
func (h *HealthReporter) Snapshot() HealthMessage {
	status, reason := h.determineStatus()
	return h.message(status, reason)
}

// PublishNow publishes the current health status immediately.
func (h *HealthReporter) PublishNow() error {
	return h.publish(h.Snapshot())
}

func (h *HealthReporter) reportLoop(ctx context.Context) {
	defer h.wg.Done()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	if err := h.PublishNow(); err != nil {
		h.logger.Error("failed to publish initial health", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case <-ticker.C:
			if err := h.PublishNow(); err != nil {
				h.logger.Error("failed to publish health", "error", err)
			}
		}
	}
}

// determineStatus evaluates the current bridge status.
func (h *HealthReporter) determineStatus() (HealthStatus, string) {
	if h.publisher == nil || !h.publisher.IsConnected() {
		return HealthDegraded, "MQTT disconnected"
	}

	stats := h.stats()
	if stats.LastPoll.IsZero() {
		return HealthStarting, "waiting for first poll"
	}
	if !stats.LastPollOK {
		return HealthDegraded, "vendor API unreachable"
	}

	return HealthHealthy, ""
}

func (h *HealthReporter) message(status HealthStatus, reason string) HealthMessage {
	connected := h.publisher != nil && h.publisher.IsConnected()
	now := time.Now().UTC()
	return HealthMessage{
		Status:        status,
		Reason:        reason,
		Version:       h.version,
		Timestamp:     now,
		UptimeSeconds: int64(now.Sub(h.startTime).Seconds()),
		MQTTConnected: connected,
		Stats:         h.stats(),
	}
}

func (h *HealthReporter) publish(msg HealthMessage) error {
	if h.publisher == nil || h.topic == "" {
		return nil
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	return h.publisher.Publish(h.topic, payload, h.qos, true)
}
