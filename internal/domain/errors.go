package domain

import "errors"

// Connection-scoped error kinds. None of these is fatal to the process;
// adapters translate them into an error event on the originating connection.
var (
	ErrNotAuthenticated     = errors.New("not authenticated")
	ErrAlreadyMember        = errors.New("already a member of this room")
	ErrNotMember            = errors.New("not a member of this room")
	ErrRoomNotFound         = errors.New("room not found")
	ErrIdentityNotFound     = errors.New("identity not found")
	ErrIdentityConflict     = errors.New("identity already bound to this connection")
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrDurableWrite         = errors.New("durable write failed")
)
