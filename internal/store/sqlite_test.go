package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/relaykit/chatrelay/internal/domain"
)

func newTestStore(t *testing.T) *SQLite {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "chat.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestUpsertIdentityReplaces(t *testing.T) {
	req := require.New(t)
	s := newTestStore(t)
	ctx := context.Background()

	u := domain.User{ID: "u1", Name: "Alice", PhotoURL: "https://example.com/a.png"}
	req.NoError(s.UpsertIdentity(ctx, u, "conn-1"))

	u.Name = "Alice B"
	req.NoError(s.UpsertIdentity(ctx, u, "conn-2"))

	got, err := s.GetIdentity(ctx, "u1")
	req.NoError(err)
	req.Equal("Alice B", got.Name)
	req.Equal("https://example.com/a.png", got.PhotoURL)

	req.NoError(s.DeleteIdentity(ctx, "u1"))
	_, err = s.GetIdentity(ctx, "u1")
	req.ErrorIs(err, domain.ErrIdentityNotFound)
}

func TestGetRoomNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetRoom(context.Background(), "nope")
	require.ErrorIs(t, err, domain.ErrRoomNotFound)
}

func TestMembershipInsertIsIgnoreOnDuplicate(t *testing.T) {
	req := require.New(t)
	s := newTestStore(t)
	ctx := context.Background()

	req.NoError(s.UpsertIdentity(ctx, domain.User{ID: "u1", Name: "Alice"}, ""))
	req.NoError(s.CreateRoom(ctx, domain.Room{ID: "r1", Name: "r1", CreatedAt: time.Now().UTC()}))

	req.NoError(s.InsertMembershipIfAbsent(ctx, "r1", "u1"))
	// Same identity reconnecting must not error.
	req.NoError(s.InsertMembershipIfAbsent(ctx, "r1", "u1"))

	members, err := s.ListMembers(ctx, "r1")
	req.NoError(err)
	req.Len(members, 1)
	req.Equal(domain.UserID("u1"), members[0].ID)

	req.NoError(s.DeleteMembership(ctx, "r1", "u1"))
	members, err = s.ListMembers(ctx, "r1")
	req.NoError(err)
	req.Empty(members)

	// Deleting an absent row is a no-op, not an error.
	req.NoError(s.DeleteMembership(ctx, "r1", "u1"))
}

func TestListMessagesChronologicalWithLimit(t *testing.T) {
	req := require.New(t)
	s := newTestStore(t)
	ctx := context.Background()

	author := domain.User{ID: "u1", Name: "Alice"}
	req.NoError(s.UpsertIdentity(ctx, author, ""))
	req.NoError(s.CreateRoom(ctx, domain.Room{ID: "r1", Name: "r1", CreatedAt: time.Now().UTC()}))

	base := time.Now().UTC().Truncate(time.Second)
	for i := 0; i < 5; i++ {
		req.NoError(s.AppendMessage(ctx, domain.Message{
			ID:        uuid.NewString(),
			Text:      fmt.Sprintf("message %d", i),
			User:      author,
			RoomID:    "r1",
			Timestamp: base.Add(time.Duration(i) * time.Second),
		}))
	}

	all, err := s.ListMessages(ctx, "r1", 0)
	req.NoError(err)
	req.Len(all, 5)
	for i := 0; i < 4; i++ {
		req.False(all[i].Timestamp.After(all[i+1].Timestamp))
	}
	req.Equal("message 0", all[0].Text)
	req.Equal("message 4", all[4].Text)

	// Limit keeps the most recent messages, still oldest first.
	recent, err := s.ListMessages(ctx, "r1", 2)
	req.NoError(err)
	req.Len(recent, 2)
	req.Equal("message 3", recent[0].Text)
	req.Equal("message 4", recent[1].Text)
}

func TestListRoomsWithCounts(t *testing.T) {
	req := require.New(t)
	s := newTestStore(t)
	ctx := context.Background()

	req.NoError(s.UpsertIdentity(ctx, domain.User{ID: "u1", Name: "Alice"}, ""))
	req.NoError(s.UpsertIdentity(ctx, domain.User{ID: "u2", Name: "Bob"}, ""))
	req.NoError(s.CreateRoom(ctx, domain.Room{ID: "r1", Name: "general", CreatedAt: time.Now().UTC()}))
	req.NoError(s.CreateRoom(ctx, domain.Room{ID: "r2", Name: "random", CreatedAt: time.Now().UTC().Add(time.Second)}))
	req.NoError(s.InsertMembershipIfAbsent(ctx, "r1", "u1"))
	req.NoError(s.InsertMembershipIfAbsent(ctx, "r1", "u2"))

	summaries, err := s.ListRoomsWithCounts(ctx)
	req.NoError(err)
	req.Len(summaries, 2)

	byID := map[domain.RoomID]domain.RoomSummary{}
	for _, rs := range summaries {
		byID[rs.ID] = rs
	}
	req.Equal(2, byID["r1"].UserCount)
	req.Equal(0, byID["r2"].UserCount)
	req.Equal(domain.RoomName("general"), byID["r1"].Name)
}

func TestGetRoomWithMembersAndMessages(t *testing.T) {
	req := require.New(t)
	s := newTestStore(t)
	ctx := context.Background()

	author := domain.User{ID: "u1", Name: "Alice"}
	req.NoError(s.UpsertIdentity(ctx, author, ""))
	req.NoError(s.CreateRoom(ctx, domain.Room{ID: "r1", Name: "general", CreatedAt: time.Now().UTC()}))
	req.NoError(s.InsertMembershipIfAbsent(ctx, "r1", "u1"))
	req.NoError(s.AppendMessage(ctx, domain.Message{
		ID: uuid.NewString(), Text: "hello", User: author, RoomID: "r1", Timestamp: time.Now().UTC(),
	}))

	room, members, messages, err := s.GetRoomWithMembersAndMessages(ctx, "r1", 50)
	req.NoError(err)
	req.Equal(domain.RoomID("r1"), room.ID)
	req.Len(members, 1)
	req.Len(messages, 1)
	req.Equal("hello", messages[0].Text)
	req.Equal(domain.UserID("u1"), messages[0].User.ID)
}
