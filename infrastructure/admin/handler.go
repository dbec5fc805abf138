// Package admin exposes the coordinator's operational surface over HTTP:
// presence counters and forced eviction. Intended for internal tooling,
// not end users; bind it to a separate listener or behind auth middleware.
package admin

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"chat-hub/domain"
	"chat-hub/runtime"
)

type Handler struct {
	log         *slog.Logger
	coordinator *runtime.Coordinator
}

func NewHandler(log *slog.Logger, coordinator *runtime.Coordinator) *Handler {
	return &Handler{log: log, coordinator: coordinator}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /admin/online", h.online)
	mux.HandleFunc("GET /admin/rooms/{room}/participants", h.participants)
	mux.HandleFunc("GET /admin/identities/{identity}/sessions", h.sessions)
	mux.HandleFunc("POST /admin/rooms/{room}/evict/{identity}", h.forceLeave)
}

func (h *Handler) online(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]int{"online": h.coordinator.OnlineCount()})
}

func (h *Handler) participants(w http.ResponseWriter, r *http.Request) {
	roomID := domain.RoomID(r.PathValue("room"))
	writeJSON(w, map[string]int{"participants": h.coordinator.RoomParticipantCount(roomID)})
}

func (h *Handler) sessions(w http.ResponseWriter, r *http.Request) {
	id := domain.IdentityID(r.PathValue("identity"))
	writeJSON(w, map[string]int{"sessions": h.coordinator.SessionCount(id)})
}

func (h *Handler) forceLeave(w http.ResponseWriter, r *http.Request) {
	roomID := domain.RoomID(r.PathValue("room"))
	id := domain.IdentityID(r.PathValue("identity"))

	var body struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Reason == "" {
		http.Error(w, "reason is required", http.StatusBadRequest)
		return
	}

	h.coordinator.ForceLeave(r.Context(), id, roomID, body.Reason)
	h.log.Info("forced leave", "room_id", roomID, "identity_id", id, "reason", body.Reason)
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
