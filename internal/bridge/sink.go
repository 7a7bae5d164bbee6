package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/nerrad567/litterbridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/litterbridge/internal/litterrobot"
)

// SinkOptions configures a Sink.
type SinkOptions struct {
	MQTT    MQTTClient
	Topics  mqtt.Topics
	Devices *litterrobot.DeviceMap

	// QoS applies to every publish and subscription, 0 included.
	QoS byte

	Discovery DiscoveryOptions

	// Version is reported as sw_version in discovery descriptors.
	Version string

	// Commands receives every decoded inbound command.
	Commands chan<- litterrobot.Command

	Logger Logger
}

// Sink translates between robot state/commands and MQTT topics.
//
// Thread Safety: All methods are safe for concurrent use.
type Sink struct {
	mqtt      MQTTClient
	topics    mqtt.Topics
	devices   *litterrobot.DeviceMap
	qos       byte
	discovery DiscoveryOptions
	version   string
	commands  chan<- litterrobot.Command
	logger    Logger
}

// NewSink validates options and creates a Sink.
func NewSink(opts SinkOptions) (*Sink, error) {
	if opts.MQTT == nil {
		return nil, fmt.Errorf("MQTT client is required")
	}
	if opts.Devices == nil {
		return nil, fmt.Errorf("device map is required")
	}
	if opts.Commands == nil {
		return nil, fmt.Errorf("command channel is required")
	}
	if opts.Topics.Prefix() == "" {
		return nil, fmt.Errorf("topic prefix is required")
	}

	return &Sink{
		mqtt:      opts.MQTT,
		topics:    opts.Topics,
		devices:   opts.Devices,
		qos:       opts.QoS,
		discovery: opts.Discovery,
		version:   opts.Version,
		commands:  opts.Commands,
		logger:    orNop(opts.Logger),
	}, nil
}

// Start subscribes to the command topic of every writable field of every
// configured device. Decoded commands are delivered until ctx is cancelled.
func (s *Sink) Start(ctx context.Context) error {
	handler := func(topic string, payload []byte) {
		s.handleMessage(ctx, topic, payload)
	}

	count := 0
	for _, key := range s.devices.Keys() {
		for _, f := range WritableFields() {
			topic := s.topics.Command(key.Slug, f.Name)
			if err := s.mqtt.Subscribe(topic, s.qos, handler); err != nil {
				return fmt.Errorf("subscribe %s: %w", topic, err)
			}
			count++
		}
	}

	s.logger.Info("subscribed to command topics", "topics", count)
	return nil
}

// handleMessage decodes one inbound command and queues it. It blocks only
// while the command channel is full.
func (s *Sink) handleMessage(ctx context.Context, topic string, payload []byte) {
	slug, name, ok := s.topics.ParseCommand(topic)
	if !ok {
		s.logger.Debug("ignoring message on unexpected topic", "topic", topic)
		return
	}

	key, ok := s.devices.BySlug(slug)
	if !ok {
		s.logger.Debug("ignoring command for unknown device", "device", slug)
		return
	}

	f, ok := LookupField(name)
	if !ok || !f.Writable() {
		s.logger.Debug("ignoring command for read-only or unknown field", "device", slug, "field", name)
		return
	}

	cmd := DecodeCommand(key, f, payload)
	s.logger.Debug("command received",
		"device", slug,
		"kind", cmd.Kind.String(),
		"value", cmd.Value(),
	)

	select {
	case s.commands <- cmd:
	case <-ctx.Done():
		s.logger.Warn("dropping command during shutdown", "device", slug, "kind", cmd.Kind.String())
	}
}

// PublishState publishes every field of st to its retained state topic.
// The publishes run concurrently and are all awaited; failures are logged
// and returned joined. A state for an unconfigured robot is skipped.
func (s *Sink) PublishState(ctx context.Context, st litterrobot.DeviceState) error {
	key, ok := s.devices.ByExternalID(st.ExternalID)
	if !ok {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	fields := Fields()
	errs := make([]error, len(fields))

	var wg sync.WaitGroup
	for i, f := range fields {
		wg.Add(1)
		go func(i int, f Field) {
			defer wg.Done()
			topic := s.topics.State(key.Slug, f.Name)
			if err := s.mqtt.Publish(topic, []byte(f.Value(st)), s.qos, true); err != nil {
				s.logger.Warn("state publish failed", "topic", topic, "error", err)
				errs[i] = fmt.Errorf("%s: %w", topic, err)
			}
		}(i, f)
	}
	wg.Wait()

	return errors.Join(errs...)
}
