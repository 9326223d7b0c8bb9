// Package pubsub provides a uniform publish/subscribe bridge over either an
// in-process event bus or a shared Redis broker. Callers always speak the
// same Bus interface; which transport backs it is decided once at startup.
//
// Delivery is best-effort, at most once. There is no replay and no
// acknowledgment from subscribers.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
)

// Handler receives the JSON-encoded payload published on a topic. Payloads
// are serialized in both bus modes so subscriber code cannot tell the
// transports apart.
type Handler func(payload []byte)

// Unsubscribe removes a previously registered handler. Calling it more than
// once is harmless.
type Unsubscribe func()

// Bus is the pub/sub bridge contract shared by both implementations.
type Bus interface {
	// Subscribe registers a handler for the exact topic string. It is safe
	// to call concurrently with Publish.
	Subscribe(topic string, h Handler) (Unsubscribe, error)

	// Publish delivers the JSON encoding of message to every current
	// subscriber of the topic. Fire and forget.
	Publish(ctx context.Context, topic string, message any) error

	// Close releases any underlying broker connection.
	Close() error
}

func encode(message any) ([]byte, error) {
	data, err := json.Marshal(message)
	if err != nil {
		return nil, fmt.Errorf("pubsub encode: %w", err)
	}
	return data, nil
}
