package bridge

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/litterbridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/litterbridge/internal/litterrobot"
)

// Bridge operation constants.
const (
	// DefaultPollInterval is the time between poll cycles.
	DefaultPollInterval = 30 * time.Second

	// DefaultChannelBuffer is the capacity of the data and command channels.
	DefaultChannelBuffer = 64

	// commandTimeout bounds one vendor dispatch.
	commandTimeout = 15 * time.Second

	// recordTimeout bounds one journal write.
	recordTimeout = 5 * time.Second
)

// Command outcomes recorded in the journal.
const (
	OutcomeSent    = "sent"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped"
)

// Logger is the logging surface used by the bridge.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// MQTTClient is the interface for MQTT operations.
// This allows mocking in tests and flexibility in implementation.
type MQTTClient interface {
	// Publish sends a message to a topic.
	Publish(topic string, payload []byte, qos byte, retained bool) error

	// Subscribe registers a handler for a topic.
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error

	// IsConnected returns true if connected to the broker.
	IsConnected() bool
}

// StateSource reads robot state and sends commands. *litterrobot.Source
// satisfies it.
type StateSource interface {
	FetchOne(ctx context.Context, key litterrobot.DeviceKey) (litterrobot.DeviceState, error)
	Send(ctx context.Context, cmd litterrobot.Command) (string, error)
}

// StateRecorder stores state snapshots as telemetry.
// It is optional - if nil, states are only published to MQTT.
type StateRecorder interface {
	WriteDeviceState(slug string, st litterrobot.DeviceState)
}

// CommandRecord describes the handling of one inbound command.
type CommandRecord struct {
	Command  litterrobot.Command
	Wire     string
	Outcome  string
	Err      error
	Duration time.Duration
	At       time.Time
}

// CommandJournal persists command records.
// It is optional - if nil, outcomes are only logged.
type CommandJournal interface {
	RecordCommand(ctx context.Context, rec CommandRecord) error
}

// Options holds configuration for creating a bridge.
type Options struct {
	MQTT    MQTTClient
	Topics  mqtt.Topics
	Source  StateSource
	Devices *litterrobot.DeviceMap

	// QoS for state, discovery, command and health topics. The zero value
	// is QoS 0; config defaults to 1.
	QoS       byte
	Discovery DiscoveryOptions

	// PollInterval defaults to DefaultPollInterval.
	PollInterval time.Duration

	// HealthInterval defaults to 30 seconds.
	HealthInterval time.Duration

	// ChannelBuffer defaults to DefaultChannelBuffer.
	ChannelBuffer int

	Version string
	Logger  Logger

	Recorder StateRecorder
	Journal  CommandJournal
}

// Bridge orchestrates polling the vendor API into MQTT state topics and
// dispatching MQTT commands to the vendor API.
//
// Three goroutines run between Start and Stop:
//   - the poller fetches every robot each interval into the data channel
//   - the publisher drains the data channel into the sink
//   - the dispatcher drains the command channel into the source
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	source       StateSource
	sink         *Sink
	devices      *litterrobot.DeviceMap
	health       *HealthReporter
	recorder     StateRecorder
	journal      CommandJournal
	pollInterval time.Duration
	logger       Logger

	data     chan litterrobot.DeviceState
	commands chan litterrobot.Command

	pollsOK         atomic.Uint64
	pollsFailed     atomic.Uint64
	commandsSent    atomic.Uint64
	commandsFailed  atomic.Uint64
	commandsSkipped atomic.Uint64
	lastPoll        atomic.Int64
	lastPollOK      atomic.Bool

	// Shutdown coordination
	mu       sync.Mutex
	cancel   context.CancelFunc
	group    *errgroup.Group
	stopOnce sync.Once
}

// NewBridge creates a new bridge instance.
// Call Start() to begin operation.
func NewBridge(opts Options) (*Bridge, error) {
	if opts.Source == nil {
		return nil, fmt.Errorf("source is required")
	}

	pollInterval := opts.PollInterval
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	buffer := opts.ChannelBuffer
	if buffer <= 0 {
		buffer = DefaultChannelBuffer
	}

	b := &Bridge{
		source:       opts.Source,
		devices:      opts.Devices,
		recorder:     opts.Recorder, // May be nil (optional)
		journal:      opts.Journal,  // May be nil (optional)
		pollInterval: pollInterval,
		logger:       orNop(opts.Logger),
		data:         make(chan litterrobot.DeviceState, buffer),
		commands:     make(chan litterrobot.Command, buffer),
	}

	sink, err := NewSink(SinkOptions{
		MQTT:      opts.MQTT,
		Topics:    opts.Topics,
		Devices:   opts.Devices,
		QoS:       opts.QoS,
		Discovery: opts.Discovery,
		Version:   opts.Version,
		Commands:  b.commands,
		Logger:    opts.Logger,
	})
	if err != nil {
		return nil, err
	}
	b.sink = sink

	b.health = NewHealthReporter(HealthReporterConfig{
		Topic:     opts.Topics.Health(),
		QoS:       opts.QoS,
		Version:   opts.Version,
		Interval:  opts.HealthInterval,
		Publisher: opts.MQTT,
		Stats:     b.Stats,
		Logger:    opts.Logger,
	})

	return b, nil
}

// Start subscribes to command topics, publishes discovery and launches the
// poller, publisher and dispatcher. It returns once they are running.
func (b *Bridge) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cancel != nil {
		return fmt.Errorf("bridge already started")
	}

	runCtx, cancel := context.WithCancel(ctx)

	if err := b.sink.Start(runCtx); err != nil {
		cancel()
		return fmt.Errorf("starting sink: %w", err)
	}

	if err := b.sink.PublishDiscovery(runCtx); err != nil {
		b.logger.Warn("discovery incomplete", "error", err)
	}

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error { return b.pollLoop(gctx) })
	g.Go(func() error { return b.publishLoop(gctx) })
	g.Go(func() error { return b.dispatchLoop(gctx) })

	b.health.Start(gctx)

	b.cancel = cancel
	b.group = g

	b.logger.Info("bridge started",
		"devices", b.devices.Len(),
		"poll_interval", b.pollInterval.String(),
	)
	return nil
}

// Stop cancels in-flight vendor requests and waits for the bridge
// goroutines to exit. Safe to call multiple times.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		b.mu.Lock()
		cancel, g := b.cancel, b.group
		b.mu.Unlock()

		if cancel == nil {
			return
		}
		cancel()
		if err := g.Wait(); err != nil {
			b.logger.Warn("bridge goroutine exited with error", "error", err)
		}
		b.health.Stop()

		b.logger.Info("bridge stopped")
	})
}

// Stats returns the bridge counters.
func (b *Bridge) Stats() Stats {
	s := Stats{
		Devices:         b.devices.Len(),
		PollsOK:         b.pollsOK.Load(),
		PollsFailed:     b.pollsFailed.Load(),
		CommandsSent:    b.commandsSent.Load(),
		CommandsFailed:  b.commandsFailed.Load(),
		CommandsSkipped: b.commandsSkipped.Load(),
		LastPollOK:      b.lastPollOK.Load(),
	}
	if ns := b.lastPoll.Load(); ns != 0 {
		s.LastPoll = time.Unix(0, ns).UTC()
	}
	return s
}

// Health returns the current health snapshot.
func (b *Bridge) Health() HealthMessage {
	return b.health.Snapshot()
}

func (b *Bridge) pollLoop(ctx context.Context) error {
	ticker := time.NewTicker(b.pollInterval)
	defer ticker.Stop()

	for {
		b.pollOnce(ctx)

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// pollOnce fetches every configured robot. Failures are skipped until the
// next cycle.
func (b *Bridge) pollOnce(ctx context.Context) {
	ok := 0
	for _, key := range b.devices.Keys() {
		st, err := b.source.FetchOne(ctx, key)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			b.pollsFailed.Add(1)
			continue
		}
		b.pollsOK.Add(1)
		ok++

		select {
		case b.data <- st:
		case <-ctx.Done():
			return
		}
	}

	b.lastPoll.Store(time.Now().UnixNano())
	b.lastPollOK.Store(ok > 0)
	b.logger.Debug("poll cycle complete", "fetched", ok, "devices", b.devices.Len())
}

func (b *Bridge) publishLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case st := <-b.data:
			b.handleState(ctx, st)
		}
	}
}

func (b *Bridge) handleState(ctx context.Context, st litterrobot.DeviceState) {
	if err := b.sink.PublishState(ctx, st); err != nil && ctx.Err() == nil {
		b.logger.Warn("state publish incomplete", "external_id", st.ExternalID, "error", err)
	}

	if b.recorder != nil {
		if key, ok := b.devices.ByExternalID(st.ExternalID); ok {
			b.recorder.WriteDeviceState(key.Slug, st)
		}
	}
}

func (b *Bridge) dispatchLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case cmd := <-b.commands:
			b.dispatch(ctx, cmd)
		}
	}
}

// dispatch sends one command and records its outcome. Kinds without a wire
// form are acknowledged and logged only.
func (b *Bridge) dispatch(ctx context.Context, cmd litterrobot.Command) {
	start := time.Now()

	sendCtx, cancel := context.WithTimeout(ctx, commandTimeout)
	wire, err := b.source.Send(sendCtx, cmd)
	cancel()

	rec := CommandRecord{
		Command:  cmd,
		Wire:     wire,
		Err:      err,
		Duration: time.Since(start),
		At:       start.UTC(),
	}

	switch {
	case err != nil:
		rec.Outcome = OutcomeFailed
		b.commandsFailed.Add(1)
		b.logger.Warn("command failed",
			"device", cmd.Device.Slug,
			"kind", cmd.Kind.String(),
			"class", litterrobot.Classify(err),
			"error", err,
		)
	case wire == "":
		rec.Outcome = OutcomeSkipped
		b.commandsSkipped.Add(1)
		b.logger.Info("command acknowledged, not forwarded",
			"device", cmd.Device.Slug,
			"kind", cmd.Kind.String(),
			"value", cmd.Value(),
		)
	default:
		rec.Outcome = OutcomeSent
		b.commandsSent.Add(1)
		b.logger.Info("command sent",
			"device", cmd.Device.Slug,
			"kind", cmd.Kind.String(),
			"value", cmd.Value(),
			"duration_ms", rec.Duration.Milliseconds(),
		)
	}

	b.record(ctx, rec)
}

func (b *Bridge) record(ctx context.Context, rec CommandRecord) {
	if b.journal == nil {
		return
	}

	// Outlive cancellation so the last command before shutdown is still journalled.
	recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()

	if err := b.journal.RecordCommand(recCtx, rec); err != nil {
		b.logger.Error("failed to journal command", "device", rec.Command.Device.Slug, "error", err)
	}
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

func orNop(l Logger) Logger {
	if l == nil {
		return nopLogger{}
	}
	return l
}
