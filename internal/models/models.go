package models

import (
	"time"
)

type Role string

const (
	RoleStandard Role = "standard"
	RoleAdmin    Role = "admin"
)

func (r Role) Valid() bool {
	return r == RoleStandard || r == RoleAdmin
}

// User is the persisted account record. PasswordHash never leaves the
// service in JSON.
type User struct {
	ID           string    `json:"id" bson:"-"`
	Names        string    `json:"names" bson:"names"`
	Surname      string    `json:"surname" bson:"surname"`
	Email        string    `json:"email" bson:"email"`
	PasswordHash string    `json:"-" bson:"passwordHash"`
	Role         Role      `json:"role" bson:"role"`
	Avatar       string    `json:"avatar,omitempty" bson:"avatar,omitempty"`
	Deleted      bool      `json:"deleted" bson:"deleted"`
	CreatedAt    time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt" bson:"updatedAt"`
}

func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// PendingRegistration is the payload of an activation token. It is never
// stored; it becomes a User when the token is redeemed.
type PendingRegistration struct {
	Names        string `json:"names"`
	Surname      string `json:"surname"`
	Email        string `json:"email"`
	PasswordHash string `json:"passwordHash"`
}

type ProfileUpdate struct {
	Names   string
	Surname string
	Avatar  string
}
