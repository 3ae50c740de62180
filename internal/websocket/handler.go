package websocket

import (
	"net/http"
	"strings"

	"github.com/dennisdiepolder/monti/frontdesk/internal/auth"
	"github.com/dennisdiepolder/monti/frontdesk/internal/config"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// newUpgrader accepts same-host requests and the configured dashboard origins
func newUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			for _, allowed := range allowedOrigins {
				if allowed == "*" || strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// Handler handles dashboard WebSocket upgrade requests
type Handler struct {
	hub      *Hub
	config   *config.Config
	upgrader websocket.Upgrader
	logger   zerolog.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(hub *Hub, cfg *config.Config, logger zerolog.Logger) *Handler {
	return &Handler{
		hub:      hub,
		config:   cfg,
		upgrader: newUpgrader(cfg.AllowedOrigins),
		logger:   logger,
	}
}

// ServeHTTP handles WebSocket upgrade requests
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to upgrade connection")
		return
	}

	user := ""
	if claims, ok := auth.GetUserFromContext(r.Context()); ok {
		user = claims.Email
	}

	client := NewClient(h.hub, conn, h.config, h.logger, user)
	h.hub.join <- client
	client.Start()
}
