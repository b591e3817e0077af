package core

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/relaykit/chatrelay/internal/domain"
)

type fakeConn struct {
	mu     sync.Mutex
	frames []Frame
	failed bool
	closed bool
}

func (f *fakeConn) TrySend(fr Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failed {
		return errors.New("connection down")
	}
	f.frames = append(f.frames, fr)
	return nil
}

func (f *fakeConn) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeConn) sent() []Frame {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Frame, len(f.frames))
	copy(out, f.frames)
	return out
}

func addSession(t *testing.T, r *Registry, sid SessionID, userID domain.UserID) *fakeConn {
	t.Helper()
	conn := &fakeConn{}
	r.AddConnection(sid, conn)
	if userID != "" {
		user, err := domain.NewUser(userID, "user "+string(userID))
		require.NoError(t, err)
		require.NoError(t, r.BindIdentity(sid, user))
	}
	return conn
}

func sidsOf(members []MemberConn) []SessionID {
	out := make([]SessionID, 0, len(members))
	for _, m := range members {
		out = append(out, m.SID)
	}
	return out
}

func TestRecordJoinIsIdempotent(t *testing.T) {
	req := require.New(t)
	r := NewRegistry()
	addSession(t, r, "c1", "u1")

	req.True(r.RecordJoin("c1", "room-a"))
	req.False(r.RecordJoin("c1", "room-a"))

	req.Len(r.MembersOf("room-a"), 1)
	req.ElementsMatch([]domain.RoomID{"room-a"}, r.RoomsOf("c1"))
}

func TestRecordLeaveOfUnjoinedRoomIsNoop(t *testing.T) {
	req := require.New(t)
	r := NewRegistry()
	addSession(t, r, "c1", "u1")

	req.False(r.RecordLeave("c1", "room-a"))
	req.Empty(r.MembersOf("room-a"))
}

func TestMultiRoomMembershipIsolation(t *testing.T) {
	req := require.New(t)
	r := NewRegistry()
	addSession(t, r, "c1", "u1")

	req.True(r.RecordJoin("c1", "room-a"))
	req.True(r.RecordJoin("c1", "room-b"))
	req.True(r.RecordLeave("c1", "room-a"))

	req.Empty(r.MembersOf("room-a"))
	req.ElementsMatch([]SessionID{"c1"}, sidsOf(r.MembersOf("room-b")))
	req.ElementsMatch([]domain.RoomID{"room-b"}, r.RoomsOf("c1"))
}

func TestBindIdentityConflict(t *testing.T) {
	req := require.New(t)
	r := NewRegistry()
	addSession(t, r, "c1", "u1")

	same, err := domain.NewUser("u1", "same user again")
	req.NoError(err)
	req.NoError(r.BindIdentity("c1", same))

	other, err := domain.NewUser("u2", "someone else")
	req.NoError(err)
	req.ErrorIs(r.BindIdentity("c1", other), domain.ErrIdentityConflict)

	bound, ok := r.IdentityOf("c1")
	req.True(ok)
	req.Equal(domain.UserID("u1"), bound.ID)
}

func TestDropConnectionReturnsJoinedRooms(t *testing.T) {
	req := require.New(t)
	r := NewRegistry()
	addSession(t, r, "c1", "u1")
	addSession(t, r, "c2", "u2")

	r.RecordJoin("c1", "room-a")
	r.RecordJoin("c1", "room-b")
	r.RecordJoin("c2", "room-a")

	user, rooms := r.DropConnection("c1")
	req.NotNil(user)
	req.Equal(domain.UserID("u1"), user.ID)
	req.ElementsMatch([]domain.RoomID{"room-a", "room-b"}, rooms)

	req.ElementsMatch([]SessionID{"c2"}, sidsOf(r.MembersOf("room-a")))
	req.Empty(r.MembersOf("room-b"))
	_, ok := r.IdentityOf("c1")
	req.False(ok)

	user, rooms = r.DropConnection("c1")
	req.Nil(user)
	req.Nil(rooms)
}

// The reverse index must stay exactly consistent with the per-connection
// forward sets, including under concurrent joins and leaves from many
// connections.
func TestForwardAndReverseIndexStayConsistent(t *testing.T) {
	req := require.New(t)
	r := NewRegistry()

	const conns = 16
	const rooms = 8
	var wg sync.WaitGroup
	for i := 0; i < conns; i++ {
		sid := SessionID(fmt.Sprintf("c%d", i))
		addSession(t, r, sid, domain.UserID(fmt.Sprintf("u%d", i)))
		wg.Add(1)
		go func(sid SessionID, n int) {
			defer wg.Done()
			for j := 0; j < rooms; j++ {
				roomID := domain.RoomID(fmt.Sprintf("room-%d", j))
				r.RecordJoin(sid, roomID)
				if (n+j)%2 == 0 {
					r.RecordLeave(sid, roomID)
				}
			}
		}(sid, i)
	}
	wg.Wait()

	// Forward view: collect every (room, sid) pair from RoomsOf.
	forward := make(map[string]bool)
	for i := 0; i < conns; i++ {
		sid := SessionID(fmt.Sprintf("c%d", i))
		for _, roomID := range r.RoomsOf(sid) {
			forward[string(roomID)+"/"+string(sid)] = true
		}
	}
	// Reverse view: the same pairs from MembersOf.
	reverse := make(map[string]bool)
	for j := 0; j < rooms; j++ {
		roomID := domain.RoomID(fmt.Sprintf("room-%d", j))
		for _, m := range r.MembersOf(roomID) {
			reverse[string(roomID)+"/"+string(m.SID)] = true
		}
	}
	req.Equal(forward, reverse)
}
