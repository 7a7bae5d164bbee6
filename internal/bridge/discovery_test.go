package bridge

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testDiscovery = DiscoveryOptions{
	Enabled:      true,
	Prefix:       "homeassistant",
	NodeID:       "litterbridge",
	Model:        "Litter-Robot 3 Connect",
	Manufacturer: "Whisker",
}

func TestPublishDiscovery_Disabled(t *testing.T) {
	client := NewMockMQTTClient()
	sink, _ := newTestSink(t, client, DiscoveryOptions{Prefix: "homeassistant"})

	require.NoError(t, sink.PublishDiscovery(context.Background()))
	assert.Empty(t, client.GetPublished())
}

func TestPublishDiscovery(t *testing.T) {
	client := NewMockMQTTClient()
	sink, _ := newTestSink(t, client, testDiscovery)

	require.NoError(t, sink.PublishDiscovery(context.Background()))

	published := client.GetPublished()
	require.Len(t, published, 22, "11 per device")
	for _, p := range published {
		assert.True(t, p.Retained, "%s not retained", p.Topic)
	}

	tests := []struct {
		topic           string
		wantCommand     string
		wantPayloadOn   string
		wantIcon        string
		wantDeviceClass string
	}{
		{
			topic:         "homeassistant/switch/litterbridge_upstairs/night_light/config",
			wantCommand:   "litterrobot/set/upstairs/night_light",
			wantPayloadOn: "ON",
			wantIcon:      "mdi:lightbulb-night",
		},
		{
			topic:           "homeassistant/binary_sensor/litterbridge_upstairs/fault/config",
			wantPayloadOn:   "ON",
			wantDeviceClass: "problem",
		},
		{
			// Writable but not a switch: no command topic advertised.
			topic:    "homeassistant/sensor/litterbridge_garage/wait_time/config",
			wantIcon: "mdi:timer-outline",
		},
	}

	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			payloads := client.PublishedTo(tt.topic)
			require.Len(t, payloads, 1)

			var d Descriptor
			require.NoError(t, json.Unmarshal([]byte(payloads[0]), &d))
			assert.Equal(t, tt.wantCommand, d.CommandTopic)
			assert.Equal(t, tt.wantPayloadOn, d.PayloadOn)
			assert.Equal(t, tt.wantIcon, d.Icon)
			assert.Equal(t, tt.wantDeviceClass, d.DeviceClass)
			assert.Equal(t, "litterrobot/bridge/status", d.AvailabilityTopic)
		})
	}
}

func TestDescriptorFor(t *testing.T) {
	sink, _ := newTestSink(t, NewMockMQTTClient(), testDiscovery)
	f, _ := LookupField("panel_lock")

	d := sink.descriptorFor(upstairs, f)

	assert.Equal(t, "upstairs_panel_lock", d.UniqueID)
	assert.Equal(t, "Upstairs Panel Lock", d.Name)
	assert.Equal(t, "litterrobot/upstairs/panel_lock", d.StateTopic)
	assert.Equal(t, "Upstairs", d.Device.Name)
	assert.Equal(t, "Litter-Robot 3 Connect", d.Device.Model)
	assert.Equal(t, "Whisker", d.Device.Manufacturer)
	assert.Equal(t, "1.2.3", d.Device.SWVersion)
	require.NotEmpty(t, d.Device.Identifiers)
	assert.Equal(t, "litterbridge_upstairs", d.Device.Identifiers[0])
}

func TestPublishDiscovery_FailuresAreCollected(t *testing.T) {
	client := NewMockMQTTClient()
	client.FailPublish("homeassistant/sensor/litterbridge_upstairs/sleep/config")
	sink, _ := newTestSink(t, client, testDiscovery)

	err := sink.PublishDiscovery(context.Background())
	require.ErrorIs(t, err, errMockPublish)
	assert.Len(t, client.GetPublished(), 21)
}
