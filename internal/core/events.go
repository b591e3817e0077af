package core

import "github.com/relaykit/chatrelay/internal/domain"

// Outbound event envelopes. The Type field is the wire discriminator;
// constructors keep the tag next to the shape so adapters never hand-write it.

type RoomJoined struct {
	Type     string           `json:"type"`
	Room     domain.Room      `json:"room"`
	Users    []domain.User    `json:"users"`
	Messages []domain.Message `json:"messages"`
}

func NewRoomJoined(room domain.Room, users []domain.User, messages []domain.Message) RoomJoined {
	if users == nil {
		users = []domain.User{}
	}
	if messages == nil {
		messages = []domain.Message{}
	}
	return RoomJoined{Type: "room_joined", Room: room, Users: users, Messages: messages}
}

type UserJoined struct {
	Type   string        `json:"type"`
	User   domain.User   `json:"user"`
	RoomID domain.RoomID `json:"roomId"`
}

func NewUserJoined(user domain.User, roomID domain.RoomID) UserJoined {
	return UserJoined{Type: "user_joined", User: user, RoomID: roomID}
}

type UserLeft struct {
	Type   string        `json:"type"`
	User   domain.User   `json:"user"`
	RoomID domain.RoomID `json:"roomId"`
}

func NewUserLeft(user domain.User, roomID domain.RoomID) UserLeft {
	return UserLeft{Type: "user_left", User: user, RoomID: roomID}
}

type MessageReceived struct {
	Type string `json:"type"`
	domain.Message
}

func NewMessageReceived(msg domain.Message) MessageReceived {
	return MessageReceived{Type: "message_received", Message: msg}
}

// RoomLeft acknowledges a leave to the leaver; the room gets UserLeft.
type RoomLeft struct {
	Type   string        `json:"type"`
	RoomID domain.RoomID `json:"roomId"`
}

func NewRoomLeft(roomID domain.RoomID) RoomLeft {
	return RoomLeft{Type: "room_left", RoomID: roomID}
}

type RoomsList struct {
	Type  string               `json:"type"`
	Rooms []domain.RoomSummary `json:"rooms"`
}

func NewRoomsList(rooms []domain.RoomSummary) RoomsList {
	if rooms == nil {
		rooms = []domain.RoomSummary{}
	}
	return RoomsList{Type: "rooms_list", Rooms: rooms}
}

type RoomCreated struct {
	Type string      `json:"type"`
	Room domain.Room `json:"room"`
}

func NewRoomCreated(room domain.Room) RoomCreated {
	return RoomCreated{Type: "room_created", Room: room}
}

type RoomAdded struct {
	Type string             `json:"type"`
	Room domain.RoomSummary `json:"room"`
}

func NewRoomAdded(room domain.RoomSummary) RoomAdded {
	return RoomAdded{Type: "room_added", Room: room}
}

type ErrorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func NewErrorEvent(message string) ErrorEvent {
	return ErrorEvent{Type: "error", Message: message}
}

type Pong struct {
	Type string `json:"type"`
}

func NewPong() Pong {
	return Pong{Type: "pong"}
}
