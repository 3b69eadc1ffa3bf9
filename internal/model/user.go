// Package model defines the data structures used throughout the application.
// In Go, we use structs to represent our data, similar to classes in other languages,
// but without inheritance. Go favours composition over inheritance.
package model

import "time"

// User represents a registered account.
//
// Users sign in with email + password. Email and username are both unique;
// email is stored lower-cased so lookups are case-insensitive.
//
// GitHubID is nil for accounts that never used "Sign in with GitHub".
// A pointer keeps the NULL distinct from the zero value, which matters
// because the column is UNIQUE: many rows may be NULL, but only one may be 0.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	PasswordHash string    `json:"-"` // bcrypt hash, never serialized
	GitHubID     *int64    `json:"-"`
	IsActive     bool      `json:"-"`
	IsStaff      bool      `json:"-"`
	IsSuperuser  bool      `json:"-"`
	CreatedAt    time.Time `json:"-"`
	UpdatedAt    time.Time `json:"-"`
}

// UnusablePasswordPrefix marks a password hash that can never match.
// Accounts created through GitHub login get one until the owner sets a
// password through the reset flow.
const UnusablePasswordPrefix = "!"

// HasUsablePassword reports whether the account can log in with a password.
func (u *User) HasUsablePassword() bool {
	return u.PasswordHash != "" && u.PasswordHash[:1] != UnusablePasswordPrefix
}

// UserSummary is the public listing shape: a user plus the IDs of the
// snippets they own.
type UserSummary struct {
	ID         string
	Username   string
	SnippetIDs []string
}
