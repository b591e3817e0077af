package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/relaykit/chatrelay/internal/core"
	"github.com/relaykit/chatrelay/internal/domain"
	"github.com/relaykit/chatrelay/internal/store"
)

// Coordinator is the single authority allowed to mutate the connection
// registry and the durable store. It holds no membership state of its own;
// it validates inbound events against the registry, confirms durable writes
// first, then mutates the registry and hands fan-out to the broadcaster.
//
// Per-connection ordering is the transport's job (one read loop per
// connection); across connections operations interleave freely.
type Coordinator struct {
	Store     store.Store
	Registry  *core.Registry
	Broadcast *core.Broadcaster
	Policy    Policy

	// RecentMessages caps the message history sent in a room_joined
	// snapshot. <= 0 means full history.
	RecentMessages int

	mu        sync.Mutex
	roomLocks map[domain.RoomID]*sync.Mutex
}

func NewCoordinator(st store.Store, reg *core.Registry, cast *core.Broadcaster) *Coordinator {
	return &Coordinator{
		Store:     st,
		Registry:  reg,
		Broadcast: cast,
		Policy:    SimplePolicy{},
		roomLocks: make(map[domain.RoomID]*sync.Mutex),
	}
}

// Authenticate upserts the identity durably, then binds it to the
// connection. Binding the same identity again is an idempotent refresh; a
// conflicting identity on a bound connection is rejected. The durable write
// happens first so a store failure leaves the connection unauthenticated.
func (c *Coordinator) Authenticate(ctx context.Context, sid core.SessionID, user domain.User) error {
	if err := c.Store.UpsertIdentity(ctx, user, string(sid)); err != nil {
		log.Error().Err(err).Str("module", "app.coordinator").Str("sid", string(sid)).Msg("identity upsert failed")
		return fmt.Errorf("%w: %v", domain.ErrAuthenticationFailed, err)
	}
	if err := c.Registry.BindIdentity(sid, &user); err != nil {
		return err
	}
	log.Info().Str("module", "app.coordinator").Str("sid", string(sid)).Str("user", string(user.ID)).Msg("authenticated")
	return nil
}

// Disconnect destroys the session and cleans up each room it had joined:
// durable membership delete plus a leave notice to the remaining members.
// One room's failed cleanup is logged and skipped, never fails the rest;
// a later reconnect reconciles via insert-or-ignore membership writes.
func (c *Coordinator) Disconnect(ctx context.Context, sid core.SessionID) {
	user, rooms := c.Registry.DropConnection(sid)
	if user == nil {
		return
	}
	for _, roomID := range rooms {
		if err := c.Store.DeleteMembership(ctx, roomID, user.ID); err != nil {
			log.Error().Err(err).Str("module", "app.coordinator").
				Str("room", string(roomID)).Str("user", string(user.ID)).
				Msg("membership cleanup failed, continuing with other rooms")
		}
		res := c.Broadcast.Deliver(roomID, core.NewUserLeft(*user, roomID))
		c.applyPolicy(roomID, res)
	}
	log.Info().Str("module", "app.coordinator").Str("sid", string(sid)).Int("rooms", len(rooms)).Msg("disconnected")
}

// lockRoom returns the per-room mutex that serializes message append and
// delivery, so two sends to one room reach every common member in append
// order. Locks are never removed; a room that existed once stays cheap.
func (c *Coordinator) lockRoom(roomID domain.RoomID) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.roomLocks[roomID]
	if !ok {
		l = &sync.Mutex{}
		c.roomLocks[roomID] = l
	}
	return l
}

func (c *Coordinator) applyPolicy(roomID domain.RoomID, res core.PublishResult) {
	if c.Policy == nil {
		return
	}
	for _, sid := range res.Dropped {
		if c.Policy.OnDroppedRecipient(roomID, sid) == KickConnection {
			if conn, ok := c.Registry.ConnOf(sid); ok {
				conn.Close()
			}
		}
	}
}
