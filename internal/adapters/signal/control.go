package signal

import "github.com/relaykit/chatrelay/internal/core"

func (ctl *Controller) handlePing(c *WsConn) {
	ctl.sendJSON(c, core.NewPong())
}
