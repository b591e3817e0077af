package core

import (
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/relaykit/chatrelay/internal/domain"
)

// session is the volatile per-connection record: bound identity plus the
// set of rooms joined on this connection. Destroyed on disconnect.
type session struct {
	identity *domain.User
	rooms    map[domain.RoomID]struct{}
	conn     SignalConnection
}

// MemberConn is a fan-out target: a live connection and its identity.
type MemberConn struct {
	SID  SessionID
	Conn SignalConnection
	User *domain.User
}

// Registry exclusively owns connection sessions. It keeps a forward map
// (session -> joined rooms) and a reverse index (room -> sessions); both
// are mutated under one lock per call so readers never observe a
// half-applied join or leave.
type Registry struct {
	mu       sync.RWMutex
	sessions map[SessionID]*session
	byRoom   map[domain.RoomID]map[SessionID]struct{}
	byUser   map[domain.UserID]SessionID
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[SessionID]*session),
		byRoom:   make(map[domain.RoomID]map[SessionID]struct{}),
		byUser:   make(map[domain.UserID]SessionID),
	}
}

// AddConnection creates an unauthenticated session for a fresh connection.
func (r *Registry) AddConnection(sid SessionID, conn SignalConnection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sid] = &session{
		rooms: make(map[domain.RoomID]struct{}),
		conn:  conn,
	}
	log.Info().Str("module", "core.registry").Str("sid", string(sid)).Msg("connection added")
}

// BindIdentity attaches an identity to a session. Binding the same id again
// is an idempotent refresh; a different id on an already-bound connection is
// rejected. If the identity was live on another connection, the newer
// connection wins the binding.
func (r *Registry) BindIdentity(sid SessionID, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sid]
	if !ok {
		return domain.ErrNotAuthenticated
	}
	if s.identity != nil && s.identity.ID != user.ID {
		return domain.ErrIdentityConflict
	}
	s.identity = user
	r.byUser[user.ID] = sid
	log.Info().Str("module", "core.registry").Str("sid", string(sid)).Str("user", string(user.ID)).Msg("identity bound")
	return nil
}

func (r *Registry) IdentityOf(sid SessionID) (*domain.User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[sid]
	if !ok || s.identity == nil {
		return nil, false
	}
	return s.identity, true
}

func (r *Registry) ConnOf(sid SessionID) (SignalConnection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[sid]
	if !ok {
		return nil, false
	}
	return s.conn, true
}

// RecordJoin inserts roomID into the session's room set and the reverse
// index in one step. Returns false (no-op) if already present.
func (r *Registry) RecordJoin(sid SessionID, roomID domain.RoomID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sid]
	if !ok {
		return false
	}
	if _, joined := s.rooms[roomID]; joined {
		return false
	}
	s.rooms[roomID] = struct{}{}
	if r.byRoom[roomID] == nil {
		r.byRoom[roomID] = make(map[SessionID]struct{})
	}
	r.byRoom[roomID][sid] = struct{}{}
	return true
}

// RecordLeave removes roomID from both maps. Returns false if not present.
func (r *Registry) RecordLeave(sid SessionID, roomID domain.RoomID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sid]
	if !ok {
		return false
	}
	if _, joined := s.rooms[roomID]; !joined {
		return false
	}
	delete(s.rooms, roomID)
	r.dropFromIndex(sid, roomID)
	return true
}

func (r *Registry) IsMember(sid SessionID, roomID domain.RoomID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[sid]
	if !ok {
		return false
	}
	_, joined := s.rooms[roomID]
	return joined
}

// RoomsOf returns the rooms joined on this connection.
func (r *Registry) RoomsOf(sid SessionID) []domain.RoomID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[sid]
	if !ok {
		return nil
	}
	return lo.Keys(s.rooms)
}

// MembersOf answers "who is live in room R" from the reverse index,
// O(room size) rather than O(all connections).
func (r *Registry) MembersOf(roomID domain.RoomID) []MemberConn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	members := r.byRoom[roomID]
	out := make([]MemberConn, 0, len(members))
	for sid := range members {
		if s, ok := r.sessions[sid]; ok {
			out = append(out, MemberConn{SID: sid, Conn: s.conn, User: s.identity})
		}
	}
	return out
}

// Sessions returns every live connection, for global fan-out.
func (r *Registry) Sessions() []MemberConn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]MemberConn, 0, len(r.sessions))
	for sid, s := range r.sessions {
		out = append(out, MemberConn{SID: sid, Conn: s.conn, User: s.identity})
	}
	return out
}

// DropConnection atomically removes the session and returns its identity and
// the rooms it had joined, for durable cleanup and leave notifications.
func (r *Registry) DropConnection(sid SessionID) (*domain.User, []domain.RoomID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sid]
	if !ok {
		return nil, nil
	}
	rooms := lo.Keys(s.rooms)
	for _, roomID := range rooms {
		r.dropFromIndex(sid, roomID)
	}
	if s.identity != nil && r.byUser[s.identity.ID] == sid {
		delete(r.byUser, s.identity.ID)
	}
	delete(r.sessions, sid)
	log.Info().Str("module", "core.registry").Str("sid", string(sid)).Int("rooms", len(rooms)).Msg("connection dropped")
	return s.identity, rooms
}

// dropFromIndex must be called with r.mu held.
func (r *Registry) dropFromIndex(sid SessionID, roomID domain.RoomID) {
	if members, ok := r.byRoom[roomID]; ok {
		delete(members, sid)
		if len(members) == 0 {
			delete(r.byRoom, roomID)
		}
	}
}
