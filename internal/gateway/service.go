package gateway

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/vaultrun/netcode/internal/session"
)

// Service exposes the gateway over HTTP: the websocket endpoint plus the
// small JSON surface around it.
type Service struct {
	registry *session.Registry
	cfg      ConnConfig
	upgrader websocket.Upgrader
	started  time.Time
	open     atomic.Int64
}

func NewService(registry *session.Registry, cfg ConnConfig) *Service {
	return &Service{
		registry: registry,
		cfg:      cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin:     cfg.CheckOrigin,
		},
		started: time.Now(),
	}
}

// Routes registers the gateway endpoints.
func (g *Service) Routes(r chi.Router) {
	r.Get("/ws", g.handleWS)
	r.Get("/rooms/{code}", g.handleRoomLookup)
	r.Get("/health", g.handleHealth)
	r.Get("/stats", g.handleStats)
}

func (g *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// StatsResponse is the GET /stats body.
type StatsResponse struct {
	Sessions    int   `json:"sessions"`
	Players     int   `json:"players"`
	Connections int64 `json:"connections"`
	UptimeSec   int64 `json:"uptime_sec"`
}

func (g *Service) handleStats(w http.ResponseWriter, r *http.Request) {
	sessions, players := g.registry.Totals(r.Context())
	writeJSON(w, http.StatusOK, StatsResponse{
		Sessions:    sessions,
		Players:     players,
		Connections: g.open.Load(),
		UptimeSec:   int64(time.Since(g.started).Seconds()),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write json response failed")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
