package pubsub

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// topicPrefix namespaces every channel so unrelated traffic on a shared
// broker cannot collide with ours.
const topicPrefix = "swgestor:"

// Redis is the broker-backed bus. One publisher client and one dedicated
// subscriber connection are opened per process and reused for its lifetime.
// Messages travel as JSON; anything else arriving on our channels is dropped,
// since pub/sub delivery is best-effort.
type Redis struct {
	client *redis.Client
	sub    *redis.PubSub
	log    zerolog.Logger

	mu       sync.RWMutex
	next     int
	handlers map[string]map[int]Handler

	cancel context.CancelFunc
	done   chan struct{}
}

// NewRedis connects to the broker at redisURL and starts the receive loop.
func NewRedis(ctx context.Context, redisURL string, log zerolog.Logger) (*Redis, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	r := &Redis{
		client:   client,
		sub:      client.Subscribe(loopCtx),
		log:      log,
		handlers: make(map[string]map[int]Handler),
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go r.receive()
	return r, nil
}

// receive dispatches broker messages to the handlers registered for the
// message's channel.
func (r *Redis) receive() {
	defer close(r.done)

	for msg := range r.sub.Channel() {
		r.mu.RLock()
		hs := make([]Handler, 0, len(r.handlers[msg.Channel]))
		for _, h := range r.handlers[msg.Channel] {
			hs = append(hs, h)
		}
		r.mu.RUnlock()

		if len(hs) == 0 {
			r.log.Debug().Str("channel", msg.Channel).Msg("pubsub message without local subscriber dropped")
			continue
		}
		for _, h := range hs {
			h([]byte(msg.Payload))
		}
	}
}

// Subscribe registers a handler and, for the first handler on a topic,
// subscribes the shared broker connection to the namespaced channel.
func (r *Redis) Subscribe(topic string, h Handler) (Unsubscribe, error) {
	full := topicPrefix + topic

	r.mu.Lock()
	id := r.next
	r.next++
	first := r.handlers[full] == nil
	if first {
		r.handlers[full] = make(map[int]Handler)
	}
	r.handlers[full][id] = h
	r.mu.Unlock()

	if first {
		if err := r.sub.Subscribe(context.Background(), full); err != nil {
			r.removeHandler(full, id)
			return nil, err
		}
	}

	return func() {
		if last := r.removeHandler(full, id); last {
			if err := r.sub.Unsubscribe(context.Background(), full); err != nil {
				r.log.Debug().Err(err).Str("channel", full).Msg("broker unsubscribe failed")
			}
		}
	}, nil
}

// removeHandler drops a handler and reports whether it was the topic's last.
func (r *Redis) removeHandler(full string, id int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	hs, ok := r.handlers[full]
	if !ok {
		return false
	}
	delete(hs, id)
	if len(hs) == 0 {
		delete(r.handlers, full)
		return true
	}
	return false
}

// Publish sends the JSON encoding of message to the namespaced channel.
func (r *Redis) Publish(ctx context.Context, topic string, message any) error {
	data, err := encode(message)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, topicPrefix+topic, data).Err()
}

// Close tears down the subscriber loop and the broker connection.
func (r *Redis) Close() error {
	r.cancel()
	_ = r.sub.Close()
	<-r.done
	return r.client.Close()
}
