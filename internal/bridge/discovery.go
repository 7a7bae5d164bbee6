package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nerrad567/litterbridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/litterbridge/internal/litterrobot"
)

// DiscoveryOptions controls publication of discovery descriptors.
type DiscoveryOptions struct {
	Enabled bool

	// Prefix is the discovery root, e.g. "homeassistant".
	Prefix string

	// NodeID prefixes every entity's object path.
	NodeID string

	Model        string
	Manufacturer string
}

// Descriptor is the retained discovery payload for one field of one robot.
type Descriptor struct {
	UniqueID          string           `json:"unique_id"`
	Name              string           `json:"name"`
	StateTopic        string           `json:"state_topic"`
	CommandTopic      string           `json:"command_topic,omitempty"`
	PayloadOn         string           `json:"payload_on,omitempty"`
	PayloadOff        string           `json:"payload_off,omitempty"`
	Icon              string           `json:"icon,omitempty"`
	DeviceClass       string           `json:"device_class,omitempty"`
	AvailabilityTopic string           `json:"availability_topic"`
	Device            DescriptorDevice `json:"device"`
}

// DescriptorDevice groups entities under one robot.
type DescriptorDevice struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Model        string   `json:"model,omitempty"`
	SWVersion    string   `json:"sw_version,omitempty"`
	Manufacturer string   `json:"manufacturer,omitempty"`
}

// descriptorFor builds the descriptor for field f of robot key. Only switches
// get a command topic; switches and binary sensors carry ON/OFF payloads.
func (s *Sink) descriptorFor(key litterrobot.DeviceKey, f Field) Descriptor {
	d := Descriptor{
		UniqueID:          key.Slug + "_" + f.Name,
		Name:              key.DisplayName() + " " + f.Label,
		StateTopic:        s.topics.State(key.Slug, f.Name),
		Icon:              f.Icon,
		DeviceClass:       f.DeviceClass,
		AvailabilityTopic: s.topics.Availability(),
		Device: DescriptorDevice{
			Identifiers:  []string{s.discovery.NodeID + "_" + key.Slug, key.ExternalID},
			Name:         key.DisplayName(),
			Model:        s.discovery.Model,
			SWVersion:    s.version,
			Manufacturer: s.discovery.Manufacturer,
		},
	}

	switch f.Entity {
	case EntitySwitch:
		d.CommandTopic = s.topics.Command(key.Slug, f.Name)
		d.PayloadOn, d.PayloadOff = PayloadOn, PayloadOff
	case EntityBinarySensor:
		d.PayloadOn, d.PayloadOff = PayloadOn, PayloadOff
	}

	return d
}

// discoveryTopic returns the config topic for field f of robot key.
func (s *Sink) discoveryTopic(key litterrobot.DeviceKey, f Field) string {
	return mqtt.DiscoveryConfig(s.discovery.Prefix, string(f.Entity), s.discovery.NodeID+"_"+key.Slug, f.Name)
}

// PublishDiscovery publishes a retained descriptor for every field of every
// configured robot. It is a no-op when discovery is disabled. Failures are
// logged and returned joined; they never stop the bridge.
func (s *Sink) PublishDiscovery(ctx context.Context) error {
	if !s.discovery.Enabled {
		return nil
	}

	var errs []error
	published := 0
	for _, key := range s.devices.Keys() {
		for _, f := range Fields() {
			if err := ctx.Err(); err != nil {
				return err
			}

			topic := s.discoveryTopic(key, f)
			payload, err := json.Marshal(s.descriptorFor(key, f))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", topic, err))
				continue
			}

			if err := s.mqtt.Publish(topic, payload, s.qos, true); err != nil {
				s.logger.Warn("discovery publish failed", "topic", topic, "error", err)
				errs = append(errs, fmt.Errorf("%s: %w", topic, err))
				continue
			}
			published++
		}
	}

	s.logger.Info("discovery published", "descriptors", published, "failed", len(errs))
	return errors.Join(errs...)
}
