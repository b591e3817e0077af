package signal

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/relaykit/chatrelay/internal/core"
	"github.com/relaykit/chatrelay/internal/domain"
)

func (ctl *Controller) handleJoinRoom(ctx context.Context, sid core.SessionID, c *WsConn, data []byte) {
	var p struct {
		Type   string `json:"type"`
		RoomID string `json:"roomId"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad join_room payload")
		ctl.sendError(c, "bad_payload")
		return
	}
	if p.RoomID == "" || len(p.RoomID) > domain.MaxRoomNameLen {
		ctl.sendError(c, "invalid room id")
		return
	}

	if err := ctl.Coord.JoinRoom(ctx, sid, domain.RoomID(p.RoomID)); err != nil {
		ctl.sendError(c, errMessage(err))
	}
}

func (ctl *Controller) handleLeaveRoom(ctx context.Context, sid core.SessionID, c *WsConn, data []byte) {
	var p struct {
		Type   string `json:"type"`
		RoomID string `json:"roomId"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad leave_room payload")
		ctl.sendError(c, "bad_payload")
		return
	}
	if p.RoomID == "" {
		ctl.sendError(c, "invalid room id")
		return
	}

	if err := ctl.Coord.LeaveRoom(ctx, sid, domain.RoomID(p.RoomID)); err != nil {
		ctl.sendError(c, errMessage(err))
	}
}

func (ctl *Controller) handleCreateRoom(ctx context.Context, sid core.SessionID, c *WsConn, data []byte) {
	var p struct {
		Type string `json:"type"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad create_room payload")
		ctl.sendError(c, "bad_payload")
		return
	}
	if p.Name == "" {
		ctl.sendError(c, "empty room name")
		return
	}
	raw := p.Name
	if len(raw) > domain.MaxRoomNameLen {
		raw = raw[:domain.MaxRoomNameLen]
	}

	if _, err := ctl.Coord.CreateRoom(ctx, sid, domain.RoomName(raw)); err != nil {
		ctl.sendError(c, errMessage(err))
	}
}

func (ctl *Controller) handleGetRooms(ctx context.Context, sid core.SessionID, c *WsConn) {
	rooms, err := ctl.Coord.ListRooms(ctx)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("list rooms")
		ctl.sendError(c, "storage error, try again")
		return
	}
	ctl.sendJSON(c, core.NewRoomsList(rooms))
}
