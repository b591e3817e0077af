// Package store is the durable record of identities, rooms, memberships and
// messages. The coordinator is the only writer; reads on the same connection
// observe earlier writes (read-your-writes).
package store

import (
	"context"

	"github.com/relaykit/chatrelay/internal/domain"
)

type Store interface {
	// UpsertIdentity creates or replaces the identity row and records which
	// live connection currently carries it.
	UpsertIdentity(ctx context.Context, user domain.User, connectionID string) error
	GetIdentity(ctx context.Context, id domain.UserID) (*domain.User, error)
	DeleteIdentity(ctx context.Context, id domain.UserID) error

	CreateRoom(ctx context.Context, room domain.Room) error
	GetRoom(ctx context.Context, id domain.RoomID) (*domain.Room, error)
	// GetRoomWithMembersAndMessages returns the room, its durable members and
	// up to msgLimit most recent messages in chronological order.
	// msgLimit <= 0 means no limit.
	GetRoomWithMembersAndMessages(ctx context.Context, id domain.RoomID, msgLimit int) (*domain.Room, []domain.User, []domain.Message, error)
	ListRoomsWithCounts(ctx context.Context) ([]domain.RoomSummary, error)

	// InsertMembershipIfAbsent is insert-or-ignore: the same identity
	// reconnecting and rejoining must not error.
	InsertMembershipIfAbsent(ctx context.Context, roomID domain.RoomID, userID domain.UserID) error
	DeleteMembership(ctx context.Context, roomID domain.RoomID, userID domain.UserID) error
	ListMembers(ctx context.Context, roomID domain.RoomID) ([]domain.User, error)

	AppendMessage(ctx context.Context, msg domain.Message) error
	ListMessages(ctx context.Context, roomID domain.RoomID, limit int) ([]domain.Message, error)

	Close() error
}
