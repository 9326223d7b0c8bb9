// Package chat defines the message and notification payloads exchanged
// between the store, the realtime hub, and the HTTP API, together with the
// validation rules they must satisfy.
package chat

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// ErrValidation marks payloads that violate length, presence, or enum
// constraints. Boundary code matches it with errors.Is to map the failure to
// a client error instead of a server one.
var ErrValidation = errors.New("invalid payload")

// Rooms are opaque identifiers: "global" or "project:<projectId>".
const RoomGlobal = "global"

// Message is a single persisted chat entry. Messages are immutable once
// created; the store never updates or deletes them.
type Message struct {
	ID        string    `json:"id"`
	Room      string    `json:"room"`
	User      string    `json:"user"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

// SendRequest carries the client-supplied fields of a chat message.
type SendRequest struct {
	Room    string `json:"room" validate:"required,min=1,max=120"`
	User    string `json:"user" validate:"required,min=1,max=80"`
	Message string `json:"message" validate:"required,min=1,max=1000"`
}

// Notification is a transient broadcast payload. It is never persisted.
type Notification struct {
	Room  string    `json:"room" validate:"required,min=1,max=120"`
	Type  string    `json:"type" validate:"omitempty,oneof=info success warning error"`
	Title string    `json:"title" validate:"required,min=1,max=120"`
	Body  string    `json:"body" validate:"max=500"`
	TS    time.Time `json:"ts"`
}

var validate = validator.New()

// ValidateSend checks a send request against the message constraints.
func ValidateSend(req SendRequest) error {
	if err := validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %s", ErrValidation, err.Error())
	}
	return nil
}

// ValidateNotification checks a notification and applies its defaults: the
// type falls back to "info" and the timestamp is stamped if unset.
func ValidateNotification(n *Notification) error {
	if err := validate.Struct(n); err != nil {
		return fmt.Errorf("%w: %s", ErrValidation, err.Error())
	}
	if n.Type == "" {
		n.Type = "info"
	}
	if n.TS.IsZero() {
		n.TS = time.Now().UTC()
	}
	return nil
}
