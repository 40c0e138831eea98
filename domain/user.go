package domain

import (
	"time"

	"github.com/google/uuid"
)

// User mirrors the account attributes the provisioning core consumes.
type User struct {
	ID          uuid.UUID
	Username    string // lower-cased, immutable once the OS account exists
	IsActive    bool
	IsSuperuser bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func NewUser(username string, superuser bool) User {
	return User{
		ID:          uuid.New(),
		Username:    username,
		IsActive:    true,
		IsSuperuser: superuser,
	}
}

// NeedsOSAccount reports whether the user gets a shell account on the host.
// Administrators manage the host directly and never get one.
func (u *User) NeedsOSAccount() bool {
	return !u.IsSuperuser
}
