package models

import "time"

// Roles carried in the token "role" claim.
const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// User is an account. Email is the login identity and token subject.
type User struct {
	ID           int64     `bson:"_id" json:"id,string"`
	Username     string    `bson:"username" json:"userName"`
	Email        string    `bson:"email" json:"email"` // unique, lower-cased
	PasswordHash string    `bson:"passwordHash" json:"-"`
	Role         string    `bson:"role" json:"role"`
	AuthType     string    `bson:"authType,omitempty" json:"authType,omitempty"` // LOCAL | GOOGLE
	CreatedAt    time.Time `bson:"createdAt" json:"createdAt"`
}

// IsAdmin reports whether the user holds the admin capability.
func (u *User) IsAdmin() bool { return u != nil && u.Role == RoleAdmin }
