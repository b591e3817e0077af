package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/relaykit/chatrelay/internal/domain"
)

func eventTypes(t *testing.T, conn *fakeConn) []string {
	t.Helper()
	var out []string
	for _, f := range conn.sent() {
		var env struct {
			Type string `json:"type"`
		}
		require.NoError(t, json.Unmarshal(f, &env))
		out = append(out, env.Type)
	}
	return out
}

func TestDeliverFansOutToRoomMembersOnly(t *testing.T) {
	req := require.New(t)
	r := NewRegistry()
	b := NewBroadcaster(r)

	c1 := addSession(t, r, "c1", "u1")
	c2 := addSession(t, r, "c2", "u2")
	c3 := addSession(t, r, "c3", "u3")
	r.RecordJoin("c1", "room-a")
	r.RecordJoin("c2", "room-a")
	r.RecordJoin("c3", "room-b")

	res := b.Deliver("room-a", NewUserJoined(domain.User{ID: "u9", Name: "nine"}, "room-a"))
	req.Equal(2, res.SentTo)
	req.Empty(res.Dropped)

	req.Equal([]string{"user_joined"}, eventTypes(t, c1))
	req.Equal([]string{"user_joined"}, eventTypes(t, c2))
	req.Empty(eventTypes(t, c3))
}

func TestDeliverExcludesOriginator(t *testing.T) {
	req := require.New(t)
	r := NewRegistry()
	b := NewBroadcaster(r)

	c1 := addSession(t, r, "c1", "u1")
	c2 := addSession(t, r, "c2", "u2")
	r.RecordJoin("c1", "room-a")
	r.RecordJoin("c2", "room-a")

	res := b.Deliver("room-a", NewUserLeft(domain.User{ID: "u1", Name: "one"}, "room-a"), "c1")
	req.Equal(1, res.SentTo)
	req.Empty(eventTypes(t, c1))
	req.Equal([]string{"user_left"}, eventTypes(t, c2))
}

func TestDeliverSurvivesDeadRecipient(t *testing.T) {
	req := require.New(t)
	r := NewRegistry()
	b := NewBroadcaster(r)

	c1 := addSession(t, r, "c1", "u1")
	c2 := addSession(t, r, "c2", "u2")
	c3 := addSession(t, r, "c3", "u3")
	c2.failed = true
	for _, sid := range []SessionID{"c1", "c2", "c3"} {
		r.RecordJoin(sid, "room-a")
	}

	res := b.Deliver("room-a", NewPong())
	req.Equal(2, res.SentTo)
	req.Equal([]SessionID{"c2"}, res.Dropped)
	req.Len(c1.sent(), 1)
	req.Len(c3.sent(), 1)
}

func TestDeliverAllReachesEverySession(t *testing.T) {
	req := require.New(t)
	r := NewRegistry()
	b := NewBroadcaster(r)

	c1 := addSession(t, r, "c1", "u1")
	c2 := addSession(t, r, "c2", "")
	r.RecordJoin("c1", "room-a")

	res := b.DeliverAll(NewRoomAdded(domain.RoomSummary{ID: "room-z", Name: "z"}))
	req.Equal(2, res.SentTo)
	req.Equal([]string{"room_added"}, eventTypes(t, c1))
	req.Equal([]string{"room_added"}, eventTypes(t, c2))
}

func TestDeliverToUnknownSession(t *testing.T) {
	r := NewRegistry()
	b := NewBroadcaster(r)
	require.ErrorIs(t, b.DeliverTo("ghost", NewPong()), ErrNoConnection)
}
