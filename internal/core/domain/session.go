package domain

import "time"

// Session is a stored login. The bearer token itself is never kept, only its digest.
type Session struct {
	ID        string
	UserID    string
	TokenHash string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// IsActive is true strictly before ExpiresAt.
func (s Session) IsActive(at time.Time) bool {
	return s.ExpiresAt.After(at)
}

// Remaining is the lifetime left at at, or zero once expired.
func (s Session) Remaining(at time.Time) time.Duration {
	return max(s.ExpiresAt.Sub(at), 0)
}

// IssuedSession pairs a new session with the raw token handed to the client.
type IssuedSession struct {
	Session
	Token string
}
