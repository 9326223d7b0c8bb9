package hub

import (
	"encoding/json"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/swgestor/backend/internal/chat"
)

const (
	pongWait       = 60 * time.Second
	pingInterval   = 54 * time.Second
	writeWait      = 10 * time.Second
	sendBufferSize = 256
)

// ClientOptions tune a single realtime connection.
type ClientOptions struct {
	MaxMessageSize int64
	RateBurst      int
	RateRefill     time.Duration
}

func (o ClientOptions) withDefaults() ClientOptions {
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = 4096
	}
	if o.RateBurst <= 0 {
		o.RateBurst = 5
	}
	if o.RateRefill <= 0 {
		o.RateRefill = time.Second
	}
	return o
}

// Client is one realtime connection. It tracks the rooms this connection has
// joined; the hub keeps the reverse index. Lifetime of the membership equals
// the lifetime of the connection.
type Client struct {
	conn    *websocket.Conn
	send    chan []byte
	hub     *Hub
	addr    string
	closed  bool
	rooms   map[string]struct{}
	limiter *rateLimiter
	opts    ClientOptions
}

// NewClient wraps an upgraded websocket connection. Register it with the hub
// to start its pumps.
func NewClient(conn *websocket.Conn, h *Hub, addr string, opts ClientOptions) *Client {
	opts = opts.withDefaults()
	if conn != nil {
		conn.SetReadLimit(opts.MaxMessageSize)
	}
	return &Client{
		conn:    conn,
		send:    make(chan []byte, sendBufferSize),
		hub:     h,
		addr:    addr,
		rooms:   make(map[string]struct{}),
		limiter: newRateLimiter(opts.RateBurst, opts.RateRefill),
		opts:    opts,
	}
}

func (c *Client) setupReadConnection() {
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.hub.log.Warn().Err(err).Str("addr", c.addr).Msg("setting read deadline")
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
}

// handleReadError reports whether the read loop should stop.
func (c *Client) handleReadError(err error) bool {
	if err == nil {
		return false
	}

	log := c.hub.log
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		log.Info().Str("addr", c.addr).Int64("limit", c.opts.MaxMessageSize).Msg("frame exceeded read limit")
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure):
		log.Debug().Str("addr", c.addr).Msg("client closed connection")
	case errors.Is(err, io.EOF), isExpectedCloseError(err):
		log.Debug().Str("addr", c.addr).Msg("connection closed")
	default:
		log.Warn().Err(err).Str("addr", c.addr).Msg("websocket read error")
	}
	return true
}

// handleFrame decodes one inbound envelope and dispatches it. Protocol errors
// are tolerated: a frame that cannot be understood is ignored.
func (c *Client) handleFrame(raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		c.hub.log.Debug().Str("addr", c.addr).Msg("unparseable frame ignored")
		return
	}

	switch env.Event {
	case EventJoin:
		var p roomPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return
		}
		c.hub.Join(c, p.Room)

	case EventLeave:
		var p roomPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return
		}
		c.hub.Leave(c, p.Room)

	case EventChatSend:
		c.handleChatSend(env)

	default:
		c.hub.log.Debug().Str("addr", c.addr).Str("event", env.Event).Msg("unknown event ignored")
	}
}

// handleChatSend runs the send pipeline and always answers through the ack
// envelope, success or not.
func (c *Client) handleChatSend(env Envelope) {
	var req chat.SendRequest
	if err := json.Unmarshal(env.Data, &req); err != nil {
		c.ack(env.ID, Ack{OK: false, Error: "malformed chat payload"})
		return
	}

	msg, err := c.hub.SendChat(c.hub.ctx, req)
	if err != nil {
		c.ack(env.ID, Ack{OK: false, Error: err.Error()})
		return
	}
	c.ack(env.ID, Ack{OK: true, Msg: &msg})
}

func (c *Client) ack(id string, a Ack) {
	frame, err := marshalEnvelope(EventAck, id, a)
	if err != nil {
		return
	}
	c.hub.safeSend(c, frame)
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.ctx.Done():
		}
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			c.hub.log.Debug().Err(err).Str("addr", c.addr).Msg("closing connection in read pump")
		}
	}()

	c.setupReadConnection()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if c.handleReadError(err) {
				return
			}
		}

		if !c.limiter.allow() {
			c.hub.log.Info().Str("addr", c.addr).Msg("rate limit exceeded; frame discarded")
			continue
		}

		c.handleFrame(raw)
	}
}

// isExpectedCloseError reports whether an error is part of normal connection
// teardown.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	s := err.Error()
	return strings.Contains(s, "use of closed network connection") ||
		strings.Contains(s, "websocket: close sent") ||
		strings.Contains(s, "broken pipe")
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			c.hub.log.Debug().Err(err).Str("addr", c.addr).Msg("closing connection in write pump")
		}
	}()

	for {
		select {
		case frame, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
