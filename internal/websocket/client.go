package websocket

import (
	"time"

	"github.com/dennisdiepolder/monti/frontdesk/internal/config"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// snapshotQueueSize bounds how far a viewer may lag before it is dropped
const snapshotQueueSize = 16

// Client is one dashboard viewer connected over a websocket
type Client struct {
	id     string
	user   string // authenticated email, for logs
	hub    *Hub
	conn   *websocket.Conn
	queue  chan []byte
	config *config.Config
	logger zerolog.Logger
}

// NewClient creates a new Client
func NewClient(hub *Hub, conn *websocket.Conn, cfg *config.Config, logger zerolog.Logger, user string) *Client {
	clientID := uuid.New().String()
	return &Client{
		id:     clientID,
		user:   user,
		hub:    hub,
		conn:   conn,
		queue:  make(chan []byte, snapshotQueueSize),
		config: cfg,
		logger: logger.With().Str("client_id", clientID).Logger(),
	}
}

// offer queues a snapshot without blocking and reports whether it fit
func (c *Client) offer(snapshot []byte) bool {
	select {
	case c.queue <- snapshot:
		return true
	default:
		return false
	}
}

// Start runs the connection pumps
func (c *Client) Start() {
	go c.writeLoop()
	go c.readLoop()
}

// readLoop keeps the read deadline alive through pongs. Viewers never send
// anything the server acts on.
func (c *Client) readLoop() {
	defer func() {
		c.hub.leave <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.config.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error().Err(err).Msg("websocket read error")
			}
			return
		}
	}
}

// writeLoop sends snapshots and pings. When several snapshots are queued only
// the newest is written.
func (c *Client) writeLoop() {
	ping := time.NewTicker(c.config.PingPeriod)
	defer func() {
		ping.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case snapshot, ok := <-c.queue:
			c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, c.newest(snapshot)); err != nil {
				c.logger.Debug().Err(err).Msg("snapshot write failed")
				return
			}

		case <-ping.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// newest drains the snapshots already queued behind snapshot and returns the
// last one. A closed queue is noticed on the next receive.
func (c *Client) newest(snapshot []byte) []byte {
	for n := len(c.queue); n > 0; n-- {
		next, ok := <-c.queue
		if !ok {
			break
		}
		snapshot = next
	}
	return snapshot
}
