package mqtt

import (
	"fmt"
	"strings"
)

// Topic segments under the configured prefix.
//
//	{prefix}/{slug}/{field}          device state (retained)
//	{prefix}/set/{slug}/{field}      device commands
//	{prefix}/bridge/status           availability: "online" / "offline" (retained)
//	{prefix}/bridge/health           bridge health JSON (retained)
const (
	segmentCommand = "set"
	segmentBridge  = "bridge"
)

// Topics builds the bridge's MQTT topics under a prefix.
// Using these helpers keeps topic naming consistent across the codebase.
//
//	topics := mqtt.NewTopics("litterrobot")
//	topics.State("upstairs", "unit_status")
//	// Returns: "litterrobot/upstairs/unit_status"
type Topics struct {
	prefix string
}

// NewTopics returns a builder for the given prefix. Trailing slashes are trimmed.
func NewTopics(prefix string) Topics {
	return Topics{prefix: strings.TrimRight(prefix, "/")}
}

// Prefix returns the configured topic prefix.
func (t Topics) Prefix() string {
	return t.prefix
}

// State returns the state topic for one field of a device.
//
// Example: litterrobot/upstairs/night_light
func (t Topics) State(slug, field string) string {
	return fmt.Sprintf("%s/%s/%s", t.prefix, slug, field)
}

// Command returns the command topic for one writable field of a device.
//
// Example: litterrobot/set/upstairs/night_light
func (t Topics) Command(slug, field string) string {
	return fmt.Sprintf("%s/%s/%s/%s", t.prefix, segmentCommand, slug, field)
}

// ParseCommand splits a command topic into slug and field.
// ok is false for anything that is not exactly {prefix}/set/{slug}/{field}.
func (t Topics) ParseCommand(topic string) (slug, field string, ok bool) {
	rest, found := strings.CutPrefix(topic, t.prefix+"/"+segmentCommand+"/")
	if !found {
		return "", "", false
	}
	slug, field, found = strings.Cut(rest, "/")
	if !found || slug == "" || field == "" || strings.Contains(field, "/") {
		return "", "", false
	}
	return slug, field, true
}

// Availability returns the bridge availability topic (LWT target).
//
// Example: litterrobot/bridge/status
func (t Topics) Availability() string {
	return fmt.Sprintf("%s/%s/status", t.prefix, segmentBridge)
}

// Health returns the bridge health topic.
//
// Example: litterrobot/bridge/health
func (t Topics) Health() string {
	return fmt.Sprintf("%s/%s/health", t.prefix, segmentBridge)
}

// DiscoveryConfig returns the discovery descriptor topic for one entity.
//
// Example: homeassistant/switch/litterbridge_upstairs/night_light/config
func DiscoveryConfig(discoveryPrefix, component, nodeID, objectID string) string {
	return fmt.Sprintf("%s/%s/%s/%s/config", discoveryPrefix, component, nodeID, objectID)
}
