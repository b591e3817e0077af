package app

import (
	"github.com/relaykit/chatrelay/internal/core"
	"github.com/relaykit/chatrelay/internal/domain"
)

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	KickConnection
)

// Policy decides what to do with a recipient whose outbox rejected a
// delivery. Dropped deliveries are never an error for the sender either way.
type Policy interface {
	OnDroppedRecipient(roomID domain.RoomID, sid core.SessionID) BackpressureAction
}

// SimplePolicy closes connections that cannot keep up; their read loop then
// runs the normal disconnect cleanup.
type SimplePolicy struct{}

func (SimplePolicy) OnDroppedRecipient(domain.RoomID, core.SessionID) BackpressureAction {
	return KickConnection
}
