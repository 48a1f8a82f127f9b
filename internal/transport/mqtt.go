package transport

import (
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTClient connects to a real broker via the paho client. One shared
// connection serves the whole fleet; paho serializes publishes internally.
type MQTTClient struct {
	client  mqtt.Client
	qos     byte
	timeout time.Duration
}

// MQTTOptions tunes the broker connection.
type MQTTOptions struct {
	BrokerURL string
	ClientID  string
	Username  string
	Password  string
	// PublishTimeout bounds how long a publish waits for the broker ack.
	PublishTimeout time.Duration
}

// NewMQTTClient connects to the broker with auto-reconnect enabled.
func NewMQTTClient(o MQTTOptions) (*MQTTClient, error) {
	if o.PublishTimeout <= 0 {
		o.PublishTimeout = 10 * time.Second
	}
	opts := mqtt.NewClientOptions().
		AddBroker(o.BrokerURL).
		SetClientID(o.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(2 * time.Second).
		SetMaxReconnectInterval(30 * time.Second).
		SetOrderMatters(false)
	if o.Username != "" {
		opts.SetUsername(o.Username)
		opts.SetPassword(o.Password)
	}
	c := mqtt.NewClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connect to %s: %w", o.BrokerURL, token.Error())
	}
	return &MQTTClient{client: c, qos: 0, timeout: o.PublishTimeout}, nil
}

// Publish sends a message and waits for the client ack.
func (c *MQTTClient) Publish(topic string, payload []byte) error {
	token := c.client.Publish(topic, c.qos, false, payload)
	if !token.WaitTimeout(c.timeout) {
		return fmt.Errorf("publish to %s: timeout after %s", topic, c.timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

// Subscribe registers a handler for a topic filter (MQTT wildcards allowed).
func (c *MQTTClient) Subscribe(topic string, handler MessageHandler) error {
	token := c.client.Subscribe(topic, c.qos, func(_ mqtt.Client, msg mqtt.Message) {
		handler(msg.Topic(), msg.Payload())
	})
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("subscribe to %s: %w", topic, token.Error())
	}
	return nil
}

// Unsubscribe removes a subscription.
func (c *MQTTClient) Unsubscribe(topic string) error {
	token := c.client.Unsubscribe(topic)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("unsubscribe from %s: %w", topic, token.Error())
	}
	return nil
}

// Close disconnects from the broker, allowing in-flight work to finish.
func (c *MQTTClient) Close() {
	c.client.Disconnect(250)
}
