package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/relaykit/chatrelay/internal/core"
	"github.com/relaykit/chatrelay/internal/domain"
)

// SendMessage appends durably, then fans out to the room's live members,
// sender included. The per-room lock is held across append and delivery:
// two sends whose appends complete in order O1 then O2 are delivered to
// every common member in that order. Cross-room order is not guaranteed.
//
// A connection must have joined the room on THIS connection to post, even
// if the room predates it.
func (c *Coordinator) SendMessage(ctx context.Context, sid core.SessionID, roomID domain.RoomID, text string) (*domain.Message, error) {
	user, ok := c.Registry.IdentityOf(sid)
	if !ok {
		return nil, domain.ErrNotAuthenticated
	}
	if !c.Registry.IsMember(sid, roomID) {
		return nil, domain.ErrNotMember
	}

	lock := c.lockRoom(roomID)
	lock.Lock()
	defer lock.Unlock()

	msg := domain.Message{
		ID:        uuid.NewString(),
		Text:      text,
		User:      *user,
		RoomID:    roomID,
		Timestamp: time.Now().UTC(),
	}
	if err := c.Store.AppendMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDurableWrite, err)
	}

	res := c.Broadcast.Deliver(roomID, core.NewMessageReceived(msg))
	c.applyPolicy(roomID, res)
	return &msg, nil
}
