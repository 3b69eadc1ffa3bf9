package model

import "time"

// PasswordResetToken is a pending password reset.
//
// Only the sha256 hash of the secret is stored; the secret itself exists
// only in the email sent to the user. IPAddress and UserAgent record who
// asked for the reset.
type PasswordResetToken struct {
	ID        string
	UserID    string
	TokenHash string
	IPAddress string
	UserAgent string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired reports whether the token is past its expiry at now.
func (t *PasswordResetToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// RevokedToken is a JWT that was invalidated before its natural expiry
// (logout). Rows are useless once ExpiresAt passes and get purged.
type RevokedToken struct {
	JTI       string
	UserID    string
	ExpiresAt time.Time
	RevokedAt time.Time
}
