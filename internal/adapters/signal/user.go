package signal

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/relaykit/chatrelay/internal/core"
	"github.com/relaykit/chatrelay/internal/domain"
)

// handleAuthenticate trusts the externally-verified identity assertion and
// binds it to this connection. Payload is validated here so the coordinator
// only ever sees well-formed users.
func (ctl *Controller) handleAuthenticate(ctx context.Context, sid core.SessionID, c *WsConn, data []byte) {
	var p struct {
		Type string `json:"type"`
		User struct {
			ID       string `json:"id"`
			Name     string `json:"name"`
			Email    string `json:"email"`
			PhotoURL string `json:"photoURL"`
		} `json:"user"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad authenticate payload")
		ctl.sendError(c, "bad_payload")
		return
	}

	user, err := domain.NewUser(domain.UserID(p.User.ID), p.User.Name)
	if err != nil {
		ctl.sendError(c, err.Error())
		return
	}
	user.Email = p.User.Email
	user.PhotoURL = p.User.PhotoURL

	if err := ctl.Coord.Authenticate(ctx, sid, *user); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("authenticate rejected")
		ctl.sendError(c, errMessage(err))
		return
	}
}
