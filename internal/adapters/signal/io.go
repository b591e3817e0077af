package signal

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/relaykit/chatrelay/internal/core"
	"github.com/relaykit/chatrelay/internal/domain"
)

const writeWait = 5 * time.Second

func (ctl *Controller) writePump(ctx context.Context, c *WsConn) {
	ticker := time.NewTicker(ctl.PingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if !ok {
				log.Warn().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump owns the session lifecycle end: when the loop exits for any
// reason, disconnect cleanup runs exactly once, after the last in-flight
// handler for this connection has returned.
func (ctl *Controller) readPump(ctx context.Context, cancel context.CancelFunc, sid core.SessionID, c *WsConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump closing")
		ctl.Coord.Disconnect(context.Background(), sid)
		if ctl.Limiter != nil {
			ctl.Limiter.Forget(sid)
		}
		cancel()
		c.Close()
	}()

	c.conn.SetReadLimit(ctl.ReadLimit)
	readWait := ctl.PingPeriod * 2
	_ = c.conn.SetReadDeadline(time.Now().Add(readWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(readWait))
	})

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump ctx done")
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Error().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("readPump read error")
				}
				return
			}
			ctl.handleFrame(ctx, sid, c, data)
		}
	}
}

func (ctl *Controller) handleFrame(ctx context.Context, sid core.SessionID, c *WsConn, data []byte) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad json")
		ctl.sendError(c, "bad_payload")
		return
	}

	switch env.Type {
	case "authenticate":
		ctl.handleAuthenticate(ctx, sid, c, data)
	case "join_room":
		ctl.handleJoinRoom(ctx, sid, c, data)
	case "leave_room":
		ctl.handleLeaveRoom(ctx, sid, c, data)
	case "send_message":
		ctl.handleSendMessage(ctx, sid, c, data)
	case "get_rooms":
		ctl.handleGetRooms(ctx, sid, c)
	case "create_room":
		ctl.handleCreateRoom(ctx, sid, c, data)
	case "ping":
		ctl.handlePing(c)
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown event")
		ctl.sendError(c, "unknown event type")
	}
}

func (ctl *Controller) sendJSON(c *WsConn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	_ = c.TrySend(b)
}

// sendError reports a connection-scoped failure to the originating
// connection only. No state was mutated, nothing is broadcast.
func (ctl *Controller) sendError(c *WsConn, message string) {
	ctl.sendJSON(c, core.NewErrorEvent(message))
}

// errMessage translates coordinator errors into wire text. Unexpected
// errors stay opaque to the client.
func errMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrNotAuthenticated):
		return "not authenticated"
	case errors.Is(err, domain.ErrAlreadyMember):
		return "already a member of this room"
	case errors.Is(err, domain.ErrNotMember):
		return "not a member of this room"
	case errors.Is(err, domain.ErrRoomNotFound):
		return "room not found"
	case errors.Is(err, domain.ErrIdentityConflict):
		return "connection already authenticated as another user"
	case errors.Is(err, domain.ErrAuthenticationFailed):
		return "authentication failed"
	case errors.Is(err, domain.ErrDurableWrite):
		return "storage error, try again"
	default:
		return "internal error"
	}
}
