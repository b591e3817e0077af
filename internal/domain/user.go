// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"

	"github.com/google/uuid"
)

const (
	MaxUserIDLen   = 64
	MaxUserNameLen = 64
)

var (
	ErrUserNameTooLong = errors.New("user name too long")
	ErrUserNameEmpty   = errors.New("user name empty")
	ErrUserIDTooLong   = errors.New("user id too long")
)

type UserID string

// User is an authenticated identity, independent of any live connection.
// Identity assertion is verified upstream; we only carry it.
type User struct {
	ID       UserID `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	PhotoURL string `json:"photoURL,omitempty"`
}

// NewUser is a tiny helper to avoid ad-hoc struct literals in adapters.
// An empty id gets a generated one (guest identities).
func NewUser(id UserID, name string) (*User, error) {
	if id == "" {
		id = UserID(uuid.NewString())
	}
	u := &User{ID: id}
	if len(u.ID) > MaxUserIDLen {
		return nil, ErrUserIDTooLong
	}
	if err := u.SetName(name); err != nil {
		return nil, err
	}
	return u, nil
}

func (u *User) SetName(name string) error {
	if len(name) == 0 {
		return ErrUserNameEmpty
	}
	if len(name) > MaxUserNameLen {
		return ErrUserNameTooLong
	}
	u.Name = name
	return nil
}
