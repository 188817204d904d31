package model

import "time"

// User represents a registered account as it is exposed outside the
// credential path. It never carries the password hash or salt.
//
// Email is stored lower-cased and is unique across accounts.
// Active=false is the soft-removal path: users are never hard-deleted and a
// disabled account cannot log in.
type User struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Active    bool      `json:"active"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
}

// Credentials is what the login path reads for an email address.
type Credentials struct {
	UserID string
	Hash   string
	Salt   string
	Active bool
}
