package domain

import "time"

// Session is a persisted refresh-token grant tied to the device that logged in.
// The raw refresh token is never stored; TokenHash holds its SHA-256 digest.
// Sessions are immutable: rotation and revocation delete rows, they never
// update them in place.
type Session struct {
	ID         string
	OwnerID    string
	TokenHash  string
	DeviceID   string
	DeviceName string
	IPAddress  string
	UserAgent  string
	ExpiresAt  time.Time
	CreatedAt  time.Time
}

// Expired reports whether the session's grant has lapsed at the given instant.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}
