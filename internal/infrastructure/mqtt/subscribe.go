package mqtt

import "fmt"

// Subscribe routes messages on topic to handler. MQTT wildcards are allowed.
// The route is remembered and replayed after every reconnect; a subscribe
// the broker rejects is not remembered.
//
//	err := client.Subscribe(client.Topics().Command("upstairs", "power"), 1,
//	    func(topic string, payload []byte) error {
//	        return handleCommand(topic, payload)
//	    })
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	if err := checkTopic(topic, qos); err != nil {
		return err
	}
	if handler == nil {
		return fmt.Errorf("%w: nil handler for %s", ErrSubscribeFailed, topic)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	c.routesMu.Lock()
	c.routes[topic] = route{qos: qos, handler: handler}
	c.routesMu.Unlock()

	if err := await(c.paho.Subscribe(topic, qos, c.deliver(handler)), ErrSubscribeFailed); err != nil {
		c.routesMu.Lock()
		delete(c.routes, topic)
		c.routesMu.Unlock()
		return err
	}
	return nil
}
