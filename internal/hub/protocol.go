package hub

import (
	"encoding/json"

	"github.com/swgestor/backend/internal/chat"
)

// Realtime wire protocol. Every frame is a JSON envelope; the event name
// selects the payload shape.
//
// Client to server:
//
//	{event:"join",      data:{room}}
//	{event:"leave",     data:{room}}
//	{event:"chat:send", id?, data:{room,user,message}}
//
// Server to client:
//
//	{event:"joined",   data:{room}}
//	{event:"ack",      id, data:{ok, msg|error}}
//	{event:"chat:new", data:<Message>}
//	{event:"notify",   data:<Notification>}
const (
	EventJoin     = "join"
	EventLeave    = "leave"
	EventChatSend = "chat:send"
	EventJoined   = "joined"
	EventAck      = "ack"
	EventChatNew  = "chat:new"
	EventNotify   = "notify"
)

// Envelope frames every message on the realtime connection.
type Envelope struct {
	Event string          `json:"event"`
	ID    string          `json:"id,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type roomPayload struct {
	Room string `json:"room"`
}

// Ack answers a chat:send. On success Msg carries the persisted message; on
// failure Error carries a non-empty description.
type Ack struct {
	OK    bool          `json:"ok"`
	Msg   *chat.Message `json:"msg,omitempty"`
	Error string        `json:"error,omitempty"`
}

func marshalEnvelope(event, id string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, ID: id, Data: raw})
}
