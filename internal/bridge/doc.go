// Package bridge connects the vendor API source to MQTT.
//
// The Sink owns topic naming: each robot publishes 11 retained state topics
// under {prefix}/{slug}/{field} and listens for commands on
// {prefix}/set/{slug}/{field} for its six writable fields. Discovery
// descriptors announce every field to a home-automation platform.
//
// The Bridge runs the poll loop and the command dispatcher, joined to the
// Sink by two buffered channels, and reports health on
// {prefix}/bridge/health.
package bridge
