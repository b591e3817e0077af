package domain

import "time"

type (
	RoomName string
	RoomID   string
)

const MaxRoomNameLen = 64

// Room is immutable after creation. Joining an unknown room id creates it
// with name = id; an explicit create gets a generated id.
type Room struct {
	ID        RoomID    `json:"id"`
	Name      RoomName  `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// RoomSummary is the listing view: room meta plus durable member count.
type RoomSummary struct {
	ID        RoomID    `json:"id"`
	Name      RoomName  `json:"name"`
	UserCount int       `json:"userCount"`
	CreatedAt time.Time `json:"createdAt"`
}

// Membership is the durable fact that an identity belongs to a room,
// independent of whether it currently has a live connection.
type Membership struct {
	RoomID   RoomID    `json:"roomId"`
	UserID   UserID    `json:"userId"`
	JoinedAt time.Time `json:"joinedAt"`
}

// Message is append-only, ordered by Timestamp ascending within a room.
type Message struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	User      User      `json:"user"`
	RoomID    RoomID    `json:"roomId"`
	Timestamp time.Time `json:"timestamp"`
}
