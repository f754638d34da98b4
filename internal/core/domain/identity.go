package domain

import "time"

// OAuthProviderGoogle identifies accounts linked through Google sign-in.
const OAuthProviderGoogle = "google"

// User mirrors the persisted representation in the users table.
type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash *string
	Phone        *string
	Bio          *string

	OAuthProvider *string
	OAuthID       *string
	OAuthEmail    *string

	IsVerified bool
	IsActive   bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// HasPassword reports whether the account can sign in with a local password.
func (u User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

// IsLinkedTo reports whether the account is bound to the given external identity.
func (u User) IsLinkedTo(provider, subject string) bool {
	return u.OAuthProvider != nil && u.OAuthID != nil &&
		*u.OAuthProvider == provider && *u.OAuthID == subject
}

// ProfileUpdate carries optional profile field changes. Nil fields are left untouched.
type ProfileUpdate struct {
	Name  *string
	Phone *string
	Bio   *string
}

// IsEmpty reports whether the update changes nothing.
func (p ProfileUpdate) IsEmpty() bool {
	return p.Name == nil && p.Phone == nil && p.Bio == nil
}

// ExternalIdentity is what an OAuth identity provider reports about the signed-in account.
type ExternalIdentity struct {
	Provider      string
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
}

// PasswordContext carries user attributes that a password must not resemble.
type PasswordContext struct {
	Name  *string
	Email *string
	Phone *string
}
