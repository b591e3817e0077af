package core

import "errors"

// ErrNoConnection means the target session is already gone.
var ErrNoConnection = errors.New("no such connection")

// Frame is a raw encoded payload handed to a transport.
type Frame []byte

// SessionID identifies one live connection. One browser tab, one SessionID.
type SessionID string

// SignalConnection abstracts the per-connection messaging transport.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}
