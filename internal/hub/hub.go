// Package hub coordinates realtime connections: room membership, broadcast
// delivery of chat and notification events, and connection cleanup. Broadcast
// always travels through the pub/sub bridge, so events published by another
// process sharing the same broker reach local connections the same way
// locally sent ones do.
package hub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/swgestor/backend/internal/chat"
	"github.com/swgestor/backend/internal/metrics"
	"github.com/swgestor/backend/internal/pubsub"
	"github.com/swgestor/backend/internal/store"
)

// Hub manages realtime client connections and their room membership. The
// membership index is bidirectional: rooms map to their member sets and each
// client tracks the rooms it joined, both updated atomically under one mutex.
type Hub struct {
	bus   pubsub.Bus
	store store.Messages
	log   zerolog.Logger

	mu      sync.RWMutex
	clients map[*Client]struct{}
	rooms   map[string]map[*Client]struct{}
	subs    map[string][]pubsub.Unsubscribe

	register   chan *Client
	unregister chan *Client

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a Hub that persists chat through messages and broadcasts
// through bus.
func New(bus pubsub.Bus, messages store.Messages, log zerolog.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		bus:        bus,
		store:      messages,
		log:        log,
		clients:    make(map[*Client]struct{}),
		rooms:      make(map[string]map[*Client]struct{}),
		subs:       make(map[string][]pubsub.Unsubscribe),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// Register hands a new connection to the hub, which launches its pumps.
func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.ctx.Done():
	}
}

// Run is the hub's main event loop. Call it in its own goroutine; it returns
// when Shutdown is invoked.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case c := <-h.register:
			if c == nil {
				continue
			}
			h.mu.Lock()
			c.closed = false
			h.clients[c] = struct{}{}
			count := len(h.clients)
			h.mu.Unlock()

			metrics.WebsocketConnections.Inc()
			h.log.Info().Str("addr", c.addr).Int("clients", count).Msg("client connected")

			h.wg.Add(2)
			go func() {
				defer h.wg.Done()
				c.writePump()
			}()
			go func() {
				defer h.wg.Done()
				c.readPump()
			}()

		case c := <-h.unregister:
			h.drop(c)
		}
	}
}

// Join adds the connection to the room's delivery set and acknowledges with
// a "joined" event to that connection only. An empty room is ignored.
func (h *Hub) Join(c *Client, room string) {
	if room == "" {
		return
	}

	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{}
	c.rooms[room] = struct{}{}
	if _, subscribed := h.subs[room]; !subscribed {
		h.subscribeRoomLocked(room)
	}
	h.mu.Unlock()

	if payload, err := marshalEnvelope(EventJoined, "", roomPayload{Room: room}); err == nil {
		h.safeSend(c, payload)
	}
}

// Leave removes the connection from the room's delivery set. An empty room
// is ignored.
func (h *Hub) Leave(c *Client, room string) {
	if room == "" {
		return
	}

	h.mu.Lock()
	delete(c.rooms, room)
	unsubs := h.removeMemberLocked(c, room)
	h.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
}

// SendChat validates and persists a message, then publishes it on the room's
// chat topic. Persistence strictly precedes broadcast: a message that failed
// to persist is never broadcast. Publish failures are logged only; pub/sub
// delivery is best-effort.
func (h *Hub) SendChat(ctx context.Context, req chat.SendRequest) (chat.Message, error) {
	msg, err := h.store.Append(ctx, req)
	if err != nil {
		return chat.Message{}, err
	}
	metrics.ChatMessagesTotal.Inc()

	if err := h.bus.Publish(ctx, chat.ChatTopic(msg.Room), msg); err != nil {
		h.log.Warn().Err(err).Str("room", msg.Room).Msg("chat publish failed")
	}
	return msg, nil
}

// Notify validates a notification and publishes it on the room's notify
// topic. Nothing is persisted.
func (h *Hub) Notify(ctx context.Context, n chat.Notification) (chat.Notification, error) {
	if err := chat.ValidateNotification(&n); err != nil {
		return chat.Notification{}, err
	}
	metrics.NotificationsTotal.Inc()

	if err := h.bus.Publish(ctx, chat.NotifyTopic(n.Room), n); err != nil {
		h.log.Warn().Err(err).Str("room", n.Room).Msg("notify publish failed")
	}
	return n, nil
}

// History returns the room's recent transcript, oldest first.
func (h *Hub) History(ctx context.Context, room string, limit int) ([]chat.Message, error) {
	return h.store.History(ctx, room, limit)
}

// subscribeRoomLocked wires the room's chat and notify topics into local
// delivery. Called with the mutex held by the first join of a room, so a
// room's topics are subscribed exactly once per process while it has members.
func (h *Hub) subscribeRoomLocked(room string) {
	var unsubs []pubsub.Unsubscribe

	chatUnsub, err := h.bus.Subscribe(chat.ChatTopic(room), func(payload []byte) {
		h.fanout(room, EventChatNew, payload)
	})
	if err != nil {
		h.log.Warn().Err(err).Str("room", room).Msg("chat topic subscription failed")
	} else {
		unsubs = append(unsubs, chatUnsub)
	}

	notifyUnsub, err := h.bus.Subscribe(chat.NotifyTopic(room), func(payload []byte) {
		h.fanout(room, EventNotify, payload)
	})
	if err != nil {
		h.log.Warn().Err(err).Str("room", room).Msg("notify topic subscription failed")
	} else {
		unsubs = append(unsubs, notifyUnsub)
	}

	h.subs[room] = unsubs
}

// removeMemberLocked drops the client from a room and, when the room loses
// its last local member, returns the topic unsubscriptions to run once the
// mutex is released.
func (h *Hub) removeMemberLocked(c *Client, room string) []pubsub.Unsubscribe {
	members, ok := h.rooms[room]
	if !ok {
		return nil
	}
	delete(members, c)
	if len(members) > 0 {
		return nil
	}
	delete(h.rooms, room)
	unsubs := h.subs[room]
	delete(h.subs, room)
	return unsubs
}

// fanout wraps a bus payload in its event envelope and delivers it to every
// current member of the room, the sender included. Malformed payloads are
// dropped: pub/sub is best-effort and a broken frame must not surface to any
// client.
func (h *Hub) fanout(room, event string, payload []byte) {
	if !json.Valid(payload) {
		h.log.Debug().Str("room", room).Str("event", event).Msg("malformed pubsub payload dropped")
		return
	}

	frame, err := json.Marshal(Envelope{Event: event, Data: payload})
	if err != nil {
		return
	}

	h.mu.RLock()
	members := make([]*Client, 0, len(h.rooms[room]))
	for c := range h.rooms[room] {
		members = append(members, c)
	}
	h.mu.RUnlock()

	var failed []*Client
	for _, c := range members {
		if !h.safeSend(c, frame) {
			failed = append(failed, c)
		}
	}
	h.evict(failed)
}

// safeSend queues a frame on the client's send channel without blocking.
// It reports false for unregistered, closed, or saturated clients.
func (h *Hub) safeSend(c *Client, frame []byte) bool {
	defer func() {
		if r := recover(); r != nil {
			h.log.Warn().Interface("panic", r).Msg("recovered sending to client")
		}
	}()

	h.mu.RLock()
	defer h.mu.RUnlock()

	if _, ok := h.clients[c]; !ok || c.closed {
		return false
	}

	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// evict removes clients whose send buffers are full and closes their
// channels.
func (h *Hub) evict(failed []*Client) {
	if len(failed) == 0 {
		return
	}

	var toClose []chan []byte
	var unsubs []pubsub.Unsubscribe

	h.mu.Lock()
	for _, c := range failed {
		if _, ok := h.clients[c]; !ok {
			continue
		}
		for room := range c.rooms {
			unsubs = append(unsubs, h.removeMemberLocked(c, room)...)
		}
		delete(h.clients, c)
		c.closed = true
		toClose = append(toClose, c.send)
		h.log.Info().Str("addr", c.addr).Msg("client evicted: send buffer full")
	}
	h.mu.Unlock()

	metrics.WebsocketConnections.Sub(float64(len(toClose)))
	for _, ch := range toClose {
		close(ch)
	}
	for _, unsub := range unsubs {
		unsub()
	}
}

// drop unregisters a disconnected client, implicitly leaving every room it
// had joined.
func (h *Hub) drop(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	var unsubs []pubsub.Unsubscribe
	for room := range c.rooms {
		unsubs = append(unsubs, h.removeMemberLocked(c, room)...)
	}
	delete(h.clients, c)
	c.closed = true
	count := len(h.clients)
	h.mu.Unlock()

	close(c.send)
	metrics.WebsocketConnections.Dec()
	h.log.Info().Str("addr", c.addr).Int("clients", count).Msg("client disconnected")

	for _, unsub := range unsubs {
		unsub()
	}
}

// shutdownClients closes every active connection during hub shutdown.
func (h *Hub) shutdownClients() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		if c.conn != nil {
			if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
				h.log.Warn().Err(err).Str("addr", c.addr).Msg("error closing client connection")
			}
		}
	}
	h.log.Info().Int("clients", len(clients)).Msg("closed client connections")
}

// Shutdown stops the hub and waits for client goroutines to finish, up to
// the timeout.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.cancel()
	<-h.done

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.log.Info().Msg("hub shutdown complete")
		return nil
	case <-time.After(timeout):
		h.log.Warn().Msg("hub shutdown timed out")
		return context.DeadlineExceeded
	}
}
