package domain

import "time"

// Event types. The message bus uses them as topic suffixes.
const (
	EventUserRegistered         = "user.registered"
	EventEmailVerified          = "user.email.verified"
	EventPasswordChanged        = "user.password.changed"
	EventPasswordResetRequested = "user.password.reset_requested"
	EventSessionRevoked         = "session.revoked"
)

// Event is an account lifecycle fact. The header travels in the message
// envelope; the event value itself is the JSON payload.
type Event interface {
	Type() string
	Header() EventHeader
}

// EventHeader identifies an event and the account it concerns. UserID is the
// partition key so one account's events stay ordered.
type EventHeader struct {
	ID         string    `json:"-"`
	UserID     string    `json:"-"`
	OccurredAt time.Time `json:"-"`
}

func (h EventHeader) Header() EventHeader { return h }

type UserRegisteredEvent struct {
	EventHeader
	Email              string `json:"email"`
	Name               string `json:"name"`
	RegistrationMethod string `json:"registration_method"`
	UserAgent          string `json:"user_agent,omitempty"`
}

func (UserRegisteredEvent) Type() string { return EventUserRegistered }

type EmailVerifiedEvent struct {
	EventHeader
}

func (EmailVerifiedEvent) Type() string { return EventEmailVerified }

type PasswordChangedEvent struct {
	EventHeader
	ChangedBy       string  `json:"changed_by"`
	SessionsRevoked int     `json:"sessions_revoked"`
	IPAddress       *string `json:"ip_address,omitempty"`
}

func (PasswordChangedEvent) Type() string { return EventPasswordChanged }

// PasswordResetRequestedEvent is emitted for known accounts only.
type PasswordResetRequestedEvent struct {
	EventHeader
	MaskedDestination string    `json:"masked_destination,omitempty"`
	IPAddress         *string   `json:"ip_address,omitempty"`
	ExpiresAt         time.Time `json:"expires_at"`
	DeliverySucceeded bool      `json:"delivery_succeeded"`
}

func (PasswordResetRequestedEvent) Type() string { return EventPasswordResetRequested }

// SessionRevokedEvent covers single logout (SessionID set) and logout of
// every session (SessionsRevoked counts them).
type SessionRevokedEvent struct {
	EventHeader
	SessionID       string  `json:"session_id,omitempty"`
	Reason          string  `json:"reason"`
	SessionsRevoked int     `json:"sessions_revoked"`
	IPAddress       *string `json:"ip_address,omitempty"`
}

func (SessionRevokedEvent) Type() string { return EventSessionRevoked }
