package models

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleContractor Role = "contractor"
	RoleOfficer    Role = "officer"
	RoleAuditor    Role = "auditor"
)

func (r Role) Valid() bool {
	switch r {
	case RoleContractor, RoleOfficer, RoleAuditor:
		return true
	}
	return false
}

// Privileged roles need the registration code to sign up.
func (r Role) Privileged() bool {
	return r == RoleOfficer || r == RoleAuditor
}

type User struct {
	Versioned
	ID           uuid.UUID  `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	PhoneNumber  *string    `json:"phoneNumber,omitempty"`
	PasswordHash string     `json:"-"`
	Role         Role       `json:"role"`
	LastLoginAt  *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

func (u *User) GetID() string { return u.ID.String() }
