package mqtt

import (
	"fmt"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// maxPayloadSize caps one outbound message at 1 MiB.
const maxPayloadSize = 1 << 20

// Publish sends payload and waits for the broker to acknowledge it.
// State and discovery topics are published retained; commands never are.
//
//	err := client.Publish(client.Topics().State("upstairs", "unit_status"), []byte("RDY"), 1, true)
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if err := checkTopic(topic, qos); err != nil {
		return err
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: %d byte payload exceeds %d", ErrPublishFailed, len(payload), maxPayloadSize)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	return await(c.paho.Publish(topic, qos, retained, payload), ErrPublishFailed)
}

// checkTopic validates the arguments shared by Publish and Subscribe.
func checkTopic(topic string, qos byte) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	return nil
}

// await waits for token and reports a timeout or a broker error as kind.
func await(token pahomqtt.Token, kind error) error {
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: no ack within %v", kind, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", kind, err)
	}
	return nil
}
