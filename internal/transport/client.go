// Package transport wraps publish/subscribe access to the message broker.
package transport

// MessageHandler receives messages delivered for a subscription.
type MessageHandler func(topic string, payload []byte)

// Client is the broker-facing interface used by simulators and the fleet.
// Publish must be safe to call concurrently from many device timers.
type Client interface {
	Publish(topic string, payload []byte) error
	Subscribe(topic string, handler MessageHandler) error
	Unsubscribe(topic string) error
	Close()
}

// Hooks receives transport-level counters, e.g. for the metrics collector.
type Hooks struct {
	OnPublish func(topic string, size int)
	OnReceive func(topic string, size int)
	OnError   func(err error)
}

// Counting decorates a Client with counter hooks.
type Counting struct {
	inner Client
	hooks Hooks
}

// NewCounting wraps client so that publishes, deliveries, and errors are
// reported through hooks.
func NewCounting(client Client, hooks Hooks) *Counting {
	return &Counting{inner: client, hooks: hooks}
}

func (c *Counting) Publish(topic string, payload []byte) error {
	err := c.inner.Publish(topic, payload)
	if err != nil {
		if c.hooks.OnError != nil {
			c.hooks.OnError(err)
		}
		return err
	}
	if c.hooks.OnPublish != nil {
		c.hooks.OnPublish(topic, len(payload))
	}
	return nil
}

func (c *Counting) Subscribe(topic string, handler MessageHandler) error {
	wrapped := handler
	if c.hooks.OnReceive != nil {
		wrapped = func(t string, p []byte) {
			c.hooks.OnReceive(t, len(p))
			handler(t, p)
		}
	}
	return c.inner.Subscribe(topic, wrapped)
}

func (c *Counting) Unsubscribe(topic string) error {
	return c.inner.Unsubscribe(topic)
}

func (c *Counting) Close() {
	c.inner.Close()
}
