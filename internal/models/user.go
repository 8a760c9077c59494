package models

import (
	"time"
)

// Role is the authorization level of a user.
type Role string

const (
	RoleSeller Role = "seller"
	RoleAdmin  Role = "admin"
)

// User is an identity record. The password hash never leaves the store.
type User struct {
	Base         `bson:",inline"`
	Name         string     `bson:"name" json:"name"`
	Email        string     `bson:"email" json:"email"`
	PasswordHash string     `bson:"password" json:"-"`
	Role         Role       `bson:"role" json:"role"`
	Deleted      bool       `bson:"deleted" json:"-"` // Soft delete flag
	DeletedAt    *time.Time `bson:"deleted_at,omitempty" json:"-"`
	CreatedAt    time.Time  `bson:"created_at" json:"createdAt"`
	UpdatedAt    time.Time  `bson:"updated_at" json:"updatedAt"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
