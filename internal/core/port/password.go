package port

import "github.com/komiwalnut/AuthentiCute/internal/core/domain"

// PasswordPolicyValidator rejects passwords that are too short, too long or
// too guessable for the account described by ctx.
type PasswordPolicyValidator interface {
	Validate(password string, ctx domain.PasswordContext) error
}

// PasswordHasher produces self-describing hashes. NeedsRehash reports hashes
// made with parameters other than the current ones so they can be upgraded
// after a successful login.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encoded string) (bool, error)
	NeedsRehash(encoded string) bool
}
