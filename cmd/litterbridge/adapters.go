package main

import (
	"context"

	"github.com/nerrad567/litterbridge/internal/bridge"
	"github.com/nerrad567/litterbridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/litterbridge/internal/journal"
)

// mqttBridgeAdapter adapts the infrastructure MQTT client to bridge.MQTTClient.
// The bridge's handlers return nothing; the infrastructure client's return an error.
type mqttBridgeAdapter struct {
	client *mqtt.Client
}

func (a *mqttBridgeAdapter) Publish(topic string, payload []byte, qos byte, retained bool) error {
	return a.client.Publish(topic, payload, qos, retained)
}

func (a *mqttBridgeAdapter) Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error {
	return a.client.Subscribe(topic, qos, func(t string, p []byte) error {
		handler(t, p)
		return nil
	})
}

func (a *mqttBridgeAdapter) IsConnected() bool {
	return a.client.IsConnected()
}

// journalAdapter stores bridge command records in the journal repository.
type journalAdapter struct {
	repo journal.Repository
}

func (a *journalAdapter) RecordCommand(ctx context.Context, rec bridge.CommandRecord) error {
	return a.repo.Create(ctx, journalEntry(rec))
}

func journalEntry(rec bridge.CommandRecord) *journal.Entry {
	e := &journal.Entry{
		DeviceSlug:  rec.Command.Device.Slug,
		ExternalID:  rec.Command.Device.ExternalID,
		Kind:        rec.Command.Kind.String(),
		Payload:     rec.Command.Value(),
		WireCommand: rec.Wire,
		Outcome:     rec.Outcome,
		DurationMS:  rec.Duration.Milliseconds(),
		CreatedAt:   rec.At,
	}
	if rec.Err != nil {
		e.Error = rec.Err.Error()
	}
	return e
}
