package gateway

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vaultrun/netcode/internal/room"
)

// RoomInfo is the GET /rooms/{code} body.
type RoomInfo struct {
	SessionID string `json:"session_id"`
	RoomCode  string `json:"room_code"`
	GameState string `json:"game_state"`
	Occupancy int    `json:"occupancy"`
	Capacity  int    `json:"capacity"`
	Joinable  bool   `json:"joinable"`
}

// handleRoomLookup lets a client check a code before opening a websocket.
func (g *Service) handleRoomLookup(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	sess, err := g.registry.ResolveCode(code)
	switch {
	case errors.Is(err, room.ErrInvalidCode):
		writeError(w, http.StatusBadRequest, "invalid room code")
		return
	case errors.Is(err, room.ErrNotFound):
		writeError(w, http.StatusNotFound, "room not found")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}

	v, err := sess.View(r.Context())
	if err != nil {
		// Disposed between lookup and view.
		writeError(w, http.StatusNotFound, "room not found")
		return
	}

	writeJSON(w, http.StatusOK, RoomInfo{
		SessionID: v.SessionID.String(),
		RoomCode:  v.RoomCode,
		GameState: v.GameState.String(),
		Occupancy: v.Occupancy,
		Capacity:  v.Capacity,
		Joinable:  v.Occupancy < v.Capacity,
	})
}
