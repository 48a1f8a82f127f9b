package transport

import (
	"strings"
	"sync"
)

// MemoryBroker is an in-process pub/sub broker used by tests and
// print-only runs. It supports single-level "+" wildcards in filters.
type MemoryBroker struct {
	mu   sync.RWMutex
	subs []*memorySub
}

type memorySub struct {
	owner   *MemoryClient
	filter  string
	handler MessageHandler
}

// NewMemoryBroker returns an empty in-process broker.
func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{}
}

// Client returns a new connection to the broker.
func (b *MemoryBroker) Client() *MemoryClient {
	return &MemoryClient{broker: b}
}

func (b *MemoryBroker) publish(topic string, payload []byte) {
	b.mu.RLock()
	var matched []MessageHandler
	for _, s := range b.subs {
		if topicMatches(s.filter, topic) {
			matched = append(matched, s.handler)
		}
	}
	b.mu.RUnlock()
	// Handlers run outside the lock so they may publish again.
	for _, h := range matched {
		h(topic, payload)
	}
}

func (b *MemoryBroker) subscribe(c *MemoryClient, filter string, handler MessageHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, &memorySub{owner: c, filter: filter, handler: handler})
}

func (b *MemoryBroker) unsubscribe(c *MemoryClient, filter string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	kept := b.subs[:0]
	for _, s := range b.subs {
		if s.owner == c && s.filter == filter {
			continue
		}
		kept = append(kept, s)
	}
	b.subs = kept
}

func (b *MemoryBroker) disconnect(c *MemoryClient) {
	b.mu.Lock()
	defer b.mu.Unlock()
	kept := b.subs[:0]
	for _, s := range b.subs {
		if s.owner == c {
			continue
		}
		kept = append(kept, s)
	}
	b.subs = kept
}

// topicMatches reports whether a published topic matches a filter with
// optional "+" single-level wildcards.
func topicMatches(filter, topic string) bool {
	if filter == topic {
		return true
	}
	fp := strings.Split(filter, "/")
	tp := strings.Split(topic, "/")
	if len(fp) != len(tp) {
		return false
	}
	for i := range fp {
		if fp[i] == "+" {
			continue
		}
		if fp[i] != tp[i] {
			return false
		}
	}
	return true
}

// MemoryClient is one connection to a MemoryBroker.
type MemoryClient struct {
	broker *MemoryBroker
	closed sync.Once
}

func (c *MemoryClient) Publish(topic string, payload []byte) error {
	c.broker.publish(topic, payload)
	return nil
}

func (c *MemoryClient) Subscribe(topic string, handler MessageHandler) error {
	c.broker.subscribe(c, topic, handler)
	return nil
}

func (c *MemoryClient) Unsubscribe(topic string) error {
	c.broker.unsubscribe(c, topic)
	return nil
}

func (c *MemoryClient) Close() {
	c.closed.Do(func() { c.broker.disconnect(c) })
}
