package calendar

import (
	"errors"

	"github.com/google/uuid"
)

var (
	ErrMissingCaller = errors.New("caller id is required")
	ErrUnknownRole   = errors.New("unknown caller role")
)

// Роль вызывающего. Личность устанавливается выше по стеку, здесь ей доверяем.
type Role string

const (
	RoleParent   Role = "parent"
	RoleProvider Role = "provider"
	RoleAdmin    Role = "admin"
)

// Caller: пара (callerId, role) от слоя сессий.
type Caller struct {
	ID   uuid.UUID
	Role Role
}

// ParseCaller проверяет пару, переданную транспортом.
func ParseCaller(id string, role string) (Caller, error) {
	uid, err := uuid.Parse(id)
	if err != nil || uid == uuid.Nil {
		return Caller{}, ErrMissingCaller
	}
	switch r := Role(role); r {
	case RoleParent, RoleProvider, RoleAdmin:
		return Caller{ID: uid, Role: r}, nil
	default:
		return Caller{}, ErrUnknownRole
	}
}
