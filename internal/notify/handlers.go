// Package notify is the notification/chat service: REST endpoints for
// history, sending, and ad-hoc notifications, plus the websocket entry into
// the realtime hub.
package notify

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/swgestor/backend/internal/chat"
	"github.com/swgestor/backend/internal/httpx"
	"github.com/swgestor/backend/internal/hub"
)

// ServiceName identifies this service in health payloads.
const ServiceName = "notifications"

// Handler serves the REST and realtime endpoints. Both entry points drive
// the same hub, so a REST-triggered send reaches connected clients exactly
// like a websocket one.
type Handler struct {
	hub  *hub.Hub
	log  zerolog.Logger
	opts hub.ClientOptions
}

// NewHandler wires the service handlers to the hub.
func NewHandler(h *hub.Hub, log zerolog.Logger) *Handler {
	return &Handler{hub: h, log: log}
}

// Health reports liveness and the service identity.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	httpx.JSON(w, http.StatusOK, map[string]any{"ok": true, "service": ServiceName})
}

// History returns the room's transcript, oldest first, bounded by the limit
// query parameter (clamped to 1..100, default 30).
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	room := chi.URLParam(r, "room")

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}

	messages, err := h.hub.History(r.Context(), room, limit)
	if err != nil {
		h.log.Error().Err(err).Str("room", room).Msg("history read failed")
		httpx.Error(w, http.StatusInternalServerError, "history unavailable", err.Error())
		return
	}
	if messages == nil {
		messages = []chat.Message{}
	}
	httpx.JSON(w, http.StatusOK, messages)
}

// SendChat persists a message and broadcasts it to the room, returning the
// created message.
func (h *Handler) SendChat(w http.ResponseWriter, r *http.Request) {
	var req chat.SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid payload", err.Error())
		return
	}

	msg, err := h.hub.SendChat(r.Context(), req)
	if err != nil {
		if errors.Is(err, chat.ErrValidation) {
			httpx.Error(w, http.StatusBadRequest, "invalid payload", err.Error())
			return
		}
		h.log.Error().Err(err).Str("room", req.Room).Msg("chat send failed")
		httpx.Error(w, http.StatusInternalServerError, "message not stored", err.Error())
		return
	}
	httpx.JSON(w, http.StatusCreated, msg)
}

// Notify broadcasts a transient notification to the room. Nothing is
// persisted.
func (h *Handler) Notify(w http.ResponseWriter, r *http.Request) {
	var n chat.Notification
	if err := json.NewDecoder(r.Body).Decode(&n); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid payload", err.Error())
		return
	}

	if _, err := h.hub.Notify(r.Context(), n); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid payload", err.Error())
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]bool{"ok": true})
}
