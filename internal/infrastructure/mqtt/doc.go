// Package mqtt provides MQTT broker connectivity for the bridge.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions, restored after every reconnect
//   - Availability via a retained "online" message and an "offline" Last Will
//   - Topic naming for device state, commands and discovery
//
// # Topic layout
//
//	litterrobot/upstairs/unit_status          state, retained
//	litterrobot/set/upstairs/night_light      command
//	litterrobot/bridge/status                 online / offline
//	homeassistant/switch/<node>/<object>/config  discovery descriptor
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT, mqtt.Hooks{Logger: log})
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(client.Topics().Command("upstairs", "power"), 1,
//	    func(topic string, payload []byte) error {
//	        return handleCommand(topic, payload)
//	    })
//
// Tests that need a live broker are behind the "integration" build tag.
package mqtt
