package websocket

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/dennisdiepolder/monti/frontdesk/internal/config"
	"github.com/dennisdiepolder/monti/frontdesk/internal/ingestion"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// feedUpgrader is the upgrader for telephony feed connections (internal service)
var feedUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// FeedHandler accepts a live CDR stream over a websocket. Every text
// message carries one or more lines.
type FeedHandler struct {
	processor ingestion.RecordProcessor
	config    *config.Config
	logger    zerolog.Logger
}

// NewFeedHandler creates a new FeedHandler
func NewFeedHandler(processor ingestion.RecordProcessor, cfg *config.Config, logger zerolog.Logger) *FeedHandler {
	return &FeedHandler{
		processor: processor,
		config:    cfg,
		logger:    logger.With().Str("component", "feed_ws").Logger(),
	}
}

// ServeHTTP upgrades the connection and reads lines until the feed disconnects
func (h *FeedHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := feedUpgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to upgrade feed connection")
		return
	}

	logger := h.logger.With().Str("feed_id", uuid.New().String()).Logger()
	logger.Info().Str("remote", r.RemoteAddr).Msg("feed connected")

	go h.readLoop(conn, logger)
}

func (h *FeedHandler) readLoop(conn *websocket.Conn, logger zerolog.Logger) {
	defer conn.Close()

	conn.SetReadLimit(1024 * 1024)
	conn.SetReadDeadline(time.Now().Add(h.config.PongWait))
	conn.SetPingHandler(func(data string) error {
		conn.SetReadDeadline(time.Now().Add(h.config.PongWait))
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(h.config.WriteWait))
	})

	lines, accepted := 0, 0
	for {
		msgType, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn().Err(err).Msg("feed read error")
			}
			break
		}
		conn.SetReadDeadline(time.Now().Add(h.config.PongWait))
		if msgType != websocket.TextMessage {
			continue
		}

		for _, line := range strings.Split(string(message), "\n") {
			if strings.TrimSpace(line) == "" {
				continue
			}
			lines++
			if h.processor.ProcessLine(context.Background(), line) {
				accepted++
			}
		}
	}

	logger.Info().Int("lines", lines).Int("accepted", accepted).Msg("feed disconnected")
}
