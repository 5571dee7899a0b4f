// Package model defines the data structures used throughout the application.
package model

import "time"

// Identity holds the credentials a user signs in with. It is a value held
// by User rather than behaviour mixed into it, so the credential store can
// work with it without knowing anything else about the account.
type Identity struct {
	Username     string `json:"username"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
}

// User represents a registered account. Deleting a User removes every Plant
// it owns (and, through them, their care events and journal entries).
type User struct {
	ID        string    `json:"id"`
	Identity  Identity  `json:"identity"`
	CreatedAt time.Time `json:"createdAt"`
}

// Session is a server-side record of a signed-in browser. The session token
// handed to the client references it by ID so that signing out can revoke the
// token before it expires.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Expired reports whether the session is no longer valid at t.
func (s *Session) Expired(t time.Time) bool {
	return !t.Before(s.ExpiresAt)
}
