package mqtt

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/litterbridge/internal/infrastructure/config"
)

// Logger is the subset of logging.Logger the client reports through.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Hooks are fixed at Connect so the first connection is observed too.
// Every field is optional.
type Hooks struct {
	Logger Logger

	// OnConnect runs after the initial connect and every reconnect, once
	// command routes are restored and "online" has been published.
	OnConnect func()

	// OnDisconnect runs when the broker connection drops.
	OnDisconnect func(err error)
}

// MessageHandler receives one inbound message. Paho calls it on its own
// goroutine. A returned error is logged, and a panic is recovered and logged.
type MessageHandler func(topic string, payload []byte) error

// route is one command subscription, replayed after every reconnect.
type route struct {
	qos     byte
	handler MessageHandler
}

// Client is the bridge's broker connection. It owns the availability topic:
// "online" on every connect, "offline" on Close, and "offline" as the Last
// Will when the process dies.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Client struct {
	paho   pahomqtt.Client
	cfg    config.MQTTConfig
	topics Topics
	hooks  Hooks

	up atomic.Bool

	routesMu sync.Mutex
	routes   map[string]route
}

// Connect dials the broker and waits for the first CONNACK.
// Paho keeps reconnecting on its own afterwards.
func Connect(cfg config.MQTTConfig, hooks Hooks) (*Client, error) {
	c := newClient(cfg, hooks)

	opts := buildClientOptions(cfg)
	configureLWT(opts, c.topics)
	opts.SetOnConnectHandler(func(pahomqtt.Client) { c.connected() })
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { c.lost(err) })

	c.paho = pahomqtt.NewClient(opts)
	token := c.paho.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		return nil, fmt.Errorf("%w: no CONNACK within %v", ErrConnectionFailed, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	// The on-connect handler is asynchronous and may still be pending.
	c.up.Store(true)
	return c, nil
}

func newClient(cfg config.MQTTConfig, hooks Hooks) *Client {
	return &Client{
		cfg:    cfg,
		topics: NewTopics(cfg.TopicPrefix),
		hooks:  hooks,
		routes: make(map[string]route),
	}
}

func (c *Client) connected() {
	c.up.Store(true)

	c.routesMu.Lock()
	for topic, r := range c.routes {
		c.paho.Subscribe(topic, r.qos, c.deliver(r.handler))
	}
	c.routesMu.Unlock()

	c.announce(PayloadOnline)

	if c.hooks.OnConnect != nil {
		c.hooks.OnConnect()
	}
}

func (c *Client) lost(err error) {
	c.up.Store(false)

	if c.hooks.Logger != nil {
		c.hooks.Logger.Warn("MQTT connection lost", "error", err)
	}
	if c.hooks.OnDisconnect != nil {
		c.hooks.OnDisconnect(err)
	}
}

// announce publishes a retained availability payload without waiting.
func (c *Client) announce(payload string) pahomqtt.Token {
	return c.paho.Publish(c.topics.Availability(), c.QoS(), true, payload)
}

// Close publishes "offline", gives it a moment to flush and disconnects.
// A client that never connected closes cleanly.
func (c *Client) Close() error {
	if c.paho == nil {
		return nil
	}
	if c.IsConnected() {
		c.announce(PayloadOffline).WaitTimeout(defaultPublishTimeout)
	}
	c.paho.Disconnect(defaultDisconnectQuiesce)
	c.up.Store(false)
	return nil
}

// HealthCheck returns ErrNotConnected while the broker is unreachable.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mqtt health check: %w", err)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected reports the last known connection state.
func (c *Client) IsConnected() bool {
	return c.up.Load() && c.paho != nil && c.paho.IsConnected()
}

// Topics returns the topic builder bound to the configured prefix.
func (c *Client) Topics() Topics {
	return c.topics
}

// QoS returns the configured QoS level.
func (c *Client) QoS() byte {
	return byte(c.cfg.QoS)
}

func (c *Client) deliver(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		dispatchMessage(c.hooks.Logger, handler, msg.Topic(), msg.Payload())
	}
}

// dispatchMessage runs handler and turns a panic or an error into a log entry.
func dispatchMessage(logger Logger, handler MessageHandler, topic string, payload []byte) {
	defer func() {
		if r := recover(); r != nil && logger != nil {
			logger.Error("MQTT handler panic recovered", "topic", topic, "panic", r)
		}
	}()

	if err := handler(topic, payload); err != nil && logger != nil {
		logger.Warn("MQTT handler returned error", "topic", topic, "error", err)
	}
}
