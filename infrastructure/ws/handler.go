package ws

import (
	"log/slog"
	"net/http"
	"strings"

	"chat-hub/domain"
	apperrors "chat-hub/errors"
	"chat-hub/runtime"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

// Handler upgrades HTTP requests to websocket sessions and binds them to the
// coordinator's connection lifecycle.
type Handler struct {
	log         *slog.Logger
	coordinator *runtime.Coordinator
	upgrader    websocket.Upgrader
	bufferSize  int
	frameRate   rate.Limit
	frameBurst  int
}

func NewHandler(log *slog.Logger, coordinator *runtime.Coordinator,
	bufferSize int, frameRate rate.Limit, frameBurst int) *Handler {
	return &Handler{
		log:         log,
		coordinator: coordinator,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		bufferSize: bufferSize,
		frameRate:  frameRate,
		frameBurst: frameBurst,
	}
}

// ServeHTTP authenticates and registers the connection before any pump
// starts, so the first events a client sees are already addressed to its
// verified identity. A rejected credential closes the socket after a single
// error envelope; no state is mutated.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	credential := bearerToken(r)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("upgrade failed", "error", err)
		return
	}

	connID := domain.ConnectionID(uuid.NewString())
	limiter := rate.NewLimiter(h.frameRate, h.frameBurst)
	client := newClient(connID, conn, h.coordinator, limiter, h.bufferSize, h.log)

	identity, err := h.coordinator.Connect(r.Context(), connID, credential, client)
	if err != nil {
		conn.WriteJSON(errorEnvelope(apperrors.Code(err), err.Error()))
		conn.Close()
		return
	}
	h.log.Info("session open", "connection_id", connID, "identity_id", identity.ID)

	go client.writePump()
	client.readPump(r.Context())
}

// bearerToken extracts the credential from the Authorization header, falling
// back to the token query parameter for browser websocket clients that
// cannot set headers.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return token
	}
	return r.URL.Query().Get("token")
}
