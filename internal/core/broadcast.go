package core

import (
	"encoding/json"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/relaykit/chatrelay/internal/domain"
)

// PublishResult reports delivery stats/backpressure to the coordinator.
type PublishResult struct {
	SentTo  int
	Dropped []SessionID
}

// Broadcaster fans an event out to the connections currently registered in
// a room. The member set is read at call time, never captured earlier.
// Delivery is fire-and-forget per recipient: one slow or dead connection
// never blocks the rest and never surfaces as an error to the caller.
type Broadcaster struct {
	reg *Registry
}

func NewBroadcaster(reg *Registry) *Broadcaster {
	return &Broadcaster{reg: reg}
}

// Deliver sends event to every live member of roomID except those listed
// in exclude (the joiner/leaver, who gets a distinct acknowledgement).
func (b *Broadcaster) Deliver(roomID domain.RoomID, event any, exclude ...SessionID) PublishResult {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("module", "core.broadcast").Msg("marshal event")
		return PublishResult{}
	}
	res := PublishResult{}
	for _, m := range b.reg.MembersOf(roomID) {
		if lo.Contains(exclude, m.SID) {
			continue
		}
		if err := m.Conn.TrySend(data); err != nil {
			res.Dropped = append(res.Dropped, m.SID)
			continue
		}
		res.SentTo++
	}
	log.Debug().Str("module", "core.broadcast").Str("room", string(roomID)).
		Int("sent_to", res.SentTo).Int("dropped", len(res.Dropped)).Msg("room fan-out")
	return res
}

// DeliverAll sends event to every live connection, used for global room
// announcements.
func (b *Broadcaster) DeliverAll(event any) PublishResult {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("module", "core.broadcast").Msg("marshal event")
		return PublishResult{}
	}
	res := PublishResult{}
	for _, m := range b.reg.Sessions() {
		if err := m.Conn.TrySend(data); err != nil {
			res.Dropped = append(res.Dropped, m.SID)
			continue
		}
		res.SentTo++
	}
	return res
}

// DeliverTo sends event to a single connection (acks, snapshots, errors).
func (b *Broadcaster) DeliverTo(sid SessionID, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	conn, ok := b.reg.ConnOf(sid)
	if !ok {
		return ErrNoConnection
	}
	return conn.TrySend(data)
}
