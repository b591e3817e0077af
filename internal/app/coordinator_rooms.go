package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/relaykit/chatrelay/internal/core"
	"github.com/relaykit/chatrelay/internal/domain"
)

// JoinRoom admits the connection into a room. Room ids are caller-supplied
// free text: joining an unknown id creates the room with name = id. The
// connection layer enforces strict idempotency (AlreadyMember), even though
// the durable layer would silently no-op: a reconnecting identity whose old
// membership row survived gets an implicit rejoin, a double join on one
// connection gets a user-visible rejection.
//
// The registry is mutated only after the durable writes confirm, so it never
// claims a membership the store denied.
func (c *Coordinator) JoinRoom(ctx context.Context, sid core.SessionID, roomID domain.RoomID) error {
	user, ok := c.Registry.IdentityOf(sid)
	if !ok {
		return domain.ErrNotAuthenticated
	}
	if c.Registry.IsMember(sid, roomID) {
		return domain.ErrAlreadyMember
	}

	room, err := c.Store.GetRoom(ctx, roomID)
	if errors.Is(err, domain.ErrRoomNotFound) {
		room = &domain.Room{ID: roomID, Name: domain.RoomName(roomID), CreatedAt: time.Now().UTC()}
		if err = c.Store.CreateRoom(ctx, *room); err != nil {
			return fmt.Errorf("%w: create room: %v", domain.ErrDurableWrite, err)
		}
		log.Info().Str("module", "app.coordinator").Str("room", string(roomID)).Msg("room created on join")
	} else if err != nil {
		return fmt.Errorf("%w: get room: %v", domain.ErrDurableWrite, err)
	}

	if err := c.Store.InsertMembershipIfAbsent(ctx, roomID, user.ID); err != nil {
		return fmt.Errorf("%w: insert membership: %v", domain.ErrDurableWrite, err)
	}
	c.Registry.RecordJoin(sid, roomID)

	_, members, messages, err := c.Store.GetRoomWithMembersAndMessages(ctx, roomID, c.RecentMessages)
	if err != nil {
		// Membership is already established; a failed snapshot read must not
		// roll it back. The joiner gets an empty snapshot instead.
		log.Error().Err(err).Str("module", "app.coordinator").Str("room", string(roomID)).Msg("room snapshot read failed")
	}

	if err := c.Broadcast.DeliverTo(sid, core.NewRoomJoined(*room, members, messages)); err != nil {
		log.Warn().Err(err).Str("module", "app.coordinator").Str("sid", string(sid)).Msg("snapshot delivery dropped")
	}
	res := c.Broadcast.Deliver(roomID, core.NewUserJoined(*user, roomID), sid)
	c.applyPolicy(roomID, res)

	log.Info().Str("module", "app.coordinator").Str("sid", string(sid)).
		Str("user", string(user.ID)).Str("room", string(roomID)).Msg("joined room")
	return nil
}

// LeaveRoom requires connection-level membership; leaving a room not joined
// is NotMember, with no durable mutation. Membership in other rooms is
// untouched.
func (c *Coordinator) LeaveRoom(ctx context.Context, sid core.SessionID, roomID domain.RoomID) error {
	user, ok := c.Registry.IdentityOf(sid)
	if !ok {
		return domain.ErrNotAuthenticated
	}
	if !c.Registry.IsMember(sid, roomID) {
		return domain.ErrNotMember
	}

	if err := c.Store.DeleteMembership(ctx, roomID, user.ID); err != nil {
		return fmt.Errorf("%w: delete membership: %v", domain.ErrDurableWrite, err)
	}
	c.Registry.RecordLeave(sid, roomID)

	if err := c.Broadcast.DeliverTo(sid, core.NewRoomLeft(roomID)); err != nil {
		log.Warn().Err(err).Str("module", "app.coordinator").Str("sid", string(sid)).Msg("leave ack dropped")
	}
	res := c.Broadcast.Deliver(roomID, core.NewUserLeft(*user, roomID), sid)
	c.applyPolicy(roomID, res)

	log.Info().Str("module", "app.coordinator").Str("sid", string(sid)).
		Str("user", string(user.ID)).Str("room", string(roomID)).Msg("left room")
	return nil
}

// CreateRoom makes a room explicitly, with a generated id. The creator gets
// room_created; every live connection gets a room_added summary.
func (c *Coordinator) CreateRoom(ctx context.Context, sid core.SessionID, name domain.RoomName) (*domain.Room, error) {
	room := domain.Room{
		ID:        domain.RoomID(uuid.NewString()),
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	if err := c.Store.CreateRoom(ctx, room); err != nil {
		return nil, fmt.Errorf("%w: create room: %v", domain.ErrDurableWrite, err)
	}

	// sid is empty when the room comes in over REST; there is no socket to ack.
	if sid != "" {
		if err := c.Broadcast.DeliverTo(sid, core.NewRoomCreated(room)); err != nil {
			log.Warn().Err(err).Str("module", "app.coordinator").Str("sid", string(sid)).Msg("room_created ack dropped")
		}
	}
	c.Broadcast.DeliverAll(core.NewRoomAdded(domain.RoomSummary{
		ID:        room.ID,
		Name:      room.Name,
		UserCount: 0,
		CreatedAt: room.CreatedAt,
	}))

	log.Info().Str("module", "app.coordinator").Str("room", string(room.ID)).Str("name", string(name)).Msg("room created")
	return &room, nil
}

// ListRooms is read-only and needs no authentication; counts come from the
// durable membership rows.
func (c *Coordinator) ListRooms(ctx context.Context) ([]domain.RoomSummary, error) {
	return c.Store.ListRoomsWithCounts(ctx)
}
