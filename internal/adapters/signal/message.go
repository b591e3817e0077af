package signal

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/relaykit/chatrelay/internal/core"
	"github.com/relaykit/chatrelay/internal/domain"
)

const maxMessageLen = 4096

func (ctl *Controller) handleSendMessage(ctx context.Context, sid core.SessionID, c *WsConn, data []byte) {
	var p struct {
		Type   string `json:"type"`
		RoomID string `json:"roomId"`
		Text   string `json:"text"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad send_message payload")
		ctl.sendError(c, "bad_payload")
		return
	}
	if p.RoomID == "" {
		ctl.sendError(c, "invalid room id")
		return
	}
	if strings.TrimSpace(p.Text) == "" {
		ctl.sendError(c, "empty message")
		return
	}
	if len(p.Text) > maxMessageLen {
		ctl.sendError(c, "message too long")
		return
	}

	if ctl.Limiter != nil && !ctl.Limiter.Allow(sid) {
		log.Warn().Str("module", "signal").Str("sid", string(sid)).Msg("send rate limited")
		ctl.sendError(c, "sending too fast, slow down")
		return
	}

	if _, err := ctl.Coord.SendMessage(ctx, sid, domain.RoomID(p.RoomID), p.Text); err != nil {
		ctl.sendError(c, errMessage(err))
	}
}
