package notify

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/swgestor/backend/internal/httpx"
	"github.com/swgestor/backend/internal/hub"
)

// Websocket upgrades the request and hands the connection to the hub, which
// launches its read and write pumps.
func (h *Handler) Websocket(origin httpx.OriginChecker) http.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     origin.Check,
	}

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.log.Warn().Err(err).Str("remote_addr", r.RemoteAddr).Msg("websocket upgrade failed")
			return
		}

		client := hub.NewClient(conn, h.hub, r.RemoteAddr, h.opts)
		h.hub.Register(client)
	}
}
