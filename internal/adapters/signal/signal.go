// Package signal is the websocket boundary: it upgrades connections, pumps
// frames, decodes tagged inbound payloads and forwards well-typed events to
// the coordinator. One read loop per connection keeps that connection's
// events in issue order.
package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/relaykit/chatrelay/internal/app"
	"github.com/relaykit/chatrelay/internal/core"
)

var ErrBackpressure = errors.New("backpressure")

type Controller struct {
	Coord      *app.Coordinator
	ReadLimit  int64
	PingPeriod time.Duration
	Limiter    *MessageRateLimiter
}

func NewController(coord *app.Coordinator, readLimit int64, pingPeriod time.Duration, limiter *MessageRateLimiter) *Controller {
	return &Controller{
		Coord:      coord,
		ReadLimit:  readLimit,
		PingPeriod: pingPeriod,
		Limiter:    limiter,
	}
}

// WsConn is the transport endpoint owned by this adapter. TrySend never
// blocks; a full outbox is reported as backpressure and the broadcaster
// decides what happens to the recipient.
type WsConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *WsConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleWS upgrades the request and registers a fresh, unauthenticated
// session. Each websocket gets its own session id; the browser-scoped
// client token only travels in logs for correlation.
func (ctl *Controller) HandleWS(ctx context.Context, c *gin.Context) {
	sid := core.SessionID(uuid.NewString())
	log.Info().Str("module", "signal").Str("sid", string(sid)).
		Str("client_token", c.GetString("client_token")).Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	conn := &WsConn{
		conn: ws,
		send: make(chan core.Frame, 32),
	}
	ctl.Coord.Registry.AddConnection(sid, conn)

	connCtx, cancel := context.WithCancel(ctx)
	go ctl.writePump(connCtx, conn)
	go ctl.readPump(connCtx, cancel, sid, conn)
}
