package pubsub

import (
	"context"
	"sync"
)

// Memory is the in-process bus. Topic handlers live in a registry inside this
// process only; there is no cross-process delivery. Suitable for
// single-instance deployments and tests.
type Memory struct {
	mu       sync.RWMutex
	next     int
	handlers map[string]map[int]Handler
}

// NewMemory creates an empty in-process bus.
func NewMemory() *Memory {
	return &Memory{handlers: make(map[string]map[int]Handler)}
}

// Subscribe registers a handler for the exact topic string.
func (m *Memory) Subscribe(topic string, h Handler) (Unsubscribe, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.next
	m.next++
	if m.handlers[topic] == nil {
		m.handlers[topic] = make(map[int]Handler)
	}
	m.handlers[topic][id] = h

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if hs, ok := m.handlers[topic]; ok {
			delete(hs, id)
			if len(hs) == 0 {
				delete(m.handlers, topic)
			}
		}
	}, nil
}

// Publish delivers to every handler currently subscribed to the topic. The
// payload goes through the same JSON encoding as the broker-backed bus.
func (m *Memory) Publish(_ context.Context, topic string, message any) error {
	data, err := encode(message)
	if err != nil {
		return err
	}

	m.mu.RLock()
	hs := make([]Handler, 0, len(m.handlers[topic]))
	for _, h := range m.handlers[topic] {
		hs = append(hs, h)
	}
	m.mu.RUnlock()

	for _, h := range hs {
		h(data)
	}
	return nil
}

// Close is a no-op; the in-process bus holds no connection.
func (m *Memory) Close() error { return nil }
