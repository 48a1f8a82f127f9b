package transport

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"
)

// LogClient decorates a Client and prints every published message as a
// JSON line, for print-only runs and debugging.
type LogClient struct {
	inner Client
	out   io.Writer
	now   func() time.Time
}

type logLine struct {
	Topic   string          `json:"topic"`
	Payload json.RawMessage `json:"payload"`
	TS      time.Time       `json:"ts"`
}

// NewLogClient wraps client, echoing publishes to os.Stdout.
func NewLogClient(client Client) *LogClient {
	return &LogClient{inner: client, out: os.Stdout, now: time.Now}
}

func (c *LogClient) Publish(topic string, payload []byte) error {
	line := logLine{Topic: topic, TS: c.now().UTC()}
	if json.Valid(payload) {
		line.Payload = json.RawMessage(payload)
	} else {
		quoted, _ := json.Marshal(string(payload))
		line.Payload = quoted
	}
	data, _ := json.Marshal(line)
	fmt.Fprintln(c.out, string(data))
	return c.inner.Publish(topic, payload)
}

func (c *LogClient) Subscribe(topic string, handler MessageHandler) error {
	return c.inner.Subscribe(topic, handler)
}

func (c *LogClient) Unsubscribe(topic string) error {
	return c.inner.Unsubscribe(topic)
}

func (c *LogClient) Close() {
	c.inner.Close()
}
