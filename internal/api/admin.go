package api

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/dennisdiepolder/monti/frontdesk/internal/auth"
	"github.com/dennisdiepolder/monti/frontdesk/internal/types"
	"github.com/dennisdiepolder/monti/frontdesk/internal/weekly"
	"github.com/rs/zerolog"
)

// WindowResetter clears the record window and re-aggregates
type WindowResetter interface {
	ResetWindow(ctx context.Context) types.Dashboard
}

// AdminHandler handles local resets and proxies simulator control requests
type AdminHandler struct {
	simURL string
	window WindowResetter
	weekly *weekly.Store
	logger zerolog.Logger
	client *http.Client
}

// NewAdminHandler creates a new AdminHandler. simURL may be empty when no
// feed simulator runs next to the server.
func NewAdminHandler(simURL string, window WindowResetter, store *weekly.Store, logger zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		simURL: simURL,
		window: window,
		weekly: store,
		logger: logger.With().Str("component", "admin_handler").Logger(),
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// RequireAdmin middleware, only admin role allowed
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := auth.GetUserFromContext(r.Context())
		if !ok || !auth.HasRole(claims, auth.RoleAdmin) {
			writeError(w, http.StatusForbidden, "admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ResetWindow drops every cached record
// POST /api/admin/reset-window
func (h *AdminHandler) ResetWindow(w http.ResponseWriter, r *http.Request) {
	dash := h.window.ResetWindow(r.Context())

	h.logger.Info().Str("by", actor(r)).Msg("record window reset via admin")

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "record window reset",
		"state":   dash.State,
	})
}

// WipeWeekly deletes the weekly counter and every persisted week
// DELETE /api/admin/weekly
func (h *AdminHandler) WipeWeekly(w http.ResponseWriter, r *http.Request) {
	if err := h.weekly.Reset(r.Context()); err != nil {
		h.logger.Error().Err(err).Msg("failed to wipe weekly store")
		writeError(w, http.StatusInternalServerError, "failed to wipe weekly store")
		return
	}

	h.logger.Info().Str("by", actor(r)).Msg("weekly store wiped via admin")

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "weekly store wiped",
	})
}

// proxyToSim forwards a request to the feed simulator and copies the response back
func (h *AdminHandler) proxyToSim(w http.ResponseWriter, r *http.Request, method, path string) {
	if h.simURL == "" {
		writeError(w, http.StatusServiceUnavailable, "feed simulator not configured")
		return
	}
	url := h.simURL + path

	var body io.Reader
	if r.Body != nil && method == http.MethodPost {
		body = r.Body
	}

	req, err := http.NewRequestWithContext(r.Context(), method, url, body)
	if err != nil {
		h.logger.Error().Err(err).Str("path", path).Msg("failed to create proxy request")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		h.logger.Error().Err(err).Str("url", url).Msg("failed to reach feed simulator")
		writeError(w, http.StatusBadGateway, "feed simulator unavailable")
		return
	}
	defer resp.Body.Close()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)
	io.Copy(w, resp.Body)
}

// GetSimStatus proxies GET /status to the simulator
func (h *AdminHandler) GetSimStatus(w http.ResponseWriter, r *http.Request) {
	h.proxyToSim(w, r, http.MethodGet, "/status")
}

// StartSim proxies POST /start to the simulator
func (h *AdminHandler) StartSim(w http.ResponseWriter, r *http.Request) {
	h.proxyToSim(w, r, http.MethodPost, "/start")
}

// StopSim proxies POST /stop to the simulator
func (h *AdminHandler) StopSim(w http.ResponseWriter, r *http.Request) {
	h.proxyToSim(w, r, http.MethodPost, "/stop")
}

// SetSimRate proxies POST /rate to the simulator
func (h *AdminHandler) SetSimRate(w http.ResponseWriter, r *http.Request) {
	h.proxyToSim(w, r, http.MethodPost, "/rate")
}

func actor(r *http.Request) string {
	if claims, ok := auth.GetUserFromContext(r.Context()); ok {
		return claims.Email
	}
	return ""
}
