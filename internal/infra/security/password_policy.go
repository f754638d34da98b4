package security

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	zxcvbn "github.com/nbutton23/zxcvbn-go"

	"github.com/komiwalnut/AuthentiCute/internal/core/domain"
	"github.com/komiwalnut/AuthentiCute/internal/core/port"
)

// Rule names reported in PolicyViolation.
const (
	RuleMinLength        = "min_length"
	RuleMaxLength        = "max_length"
	RuleCharacterClasses = "character_classes"
	RuleStrength         = "weak_password"
)

// maxStrengthScore is the top of the zxcvbn scale.
const maxStrengthScore = 4

// PolicyViolation names the first rule a password failed.
type PolicyViolation struct {
	Rule    string
	Message string
}

func (v *PolicyViolation) Error() string {
	return v.Message
}

// PasswordPolicyConfig holds the thresholds applied to new passwords.
type PasswordPolicyConfig struct {
	MinLength           int
	MaxLength           int
	MinCharacterClasses int
	MinStrengthScore    int
}

// DefaultPasswordPolicyConfig returns the built-in thresholds.
func DefaultPasswordPolicyConfig() PasswordPolicyConfig {
	return PasswordPolicyConfig{
		MinLength:           8,
		MaxLength:           128,
		MinCharacterClasses: 2,
		MinStrengthScore:    2,
	}
}

// PasswordPolicy checks length, character variety and estimated strength.
// The account's name, email and phone are fed to the estimator so passwords
// built from them score low.
type PasswordPolicy struct {
	cfg PasswordPolicyConfig
}

var _ port.PasswordPolicyValidator = (*PasswordPolicy)(nil)

// NewPasswordPolicy builds a policy from cfg. Unset lengths fall back to the
// defaults and the strength score is capped at the top of the scale.
func NewPasswordPolicy(cfg PasswordPolicyConfig) *PasswordPolicy {
	defaults := DefaultPasswordPolicyConfig()
	if cfg.MinLength <= 0 {
		cfg.MinLength = defaults.MinLength
	}
	if cfg.MaxLength <= 0 {
		cfg.MaxLength = defaults.MaxLength
	}
	cfg.MinStrengthScore = min(cfg.MinStrengthScore, maxStrengthScore)
	return &PasswordPolicy{cfg: cfg}
}

// Validate returns a *PolicyViolation for the first rule password breaks.
func (p *PasswordPolicy) Validate(password string, account domain.PasswordContext) error {
	length := utf8.RuneCountInString(password)
	switch {
	case length < p.cfg.MinLength:
		return &PolicyViolation{
			Rule:    RuleMinLength,
			Message: fmt.Sprintf("password must be at least %d characters long", p.cfg.MinLength),
		}
	case length > p.cfg.MaxLength:
		return &PolicyViolation{
			Rule:    RuleMaxLength,
			Message: fmt.Sprintf("password must be at most %d characters long", p.cfg.MaxLength),
		}
	}

	if characterClasses(password) < p.cfg.MinCharacterClasses {
		return &PolicyViolation{
			Rule:    RuleCharacterClasses,
			Message: fmt.Sprintf("password must include at least %d character types", p.cfg.MinCharacterClasses),
		}
	}

	if p.cfg.MinStrengthScore > 0 {
		if zxcvbn.PasswordStrength(password, accountInputs(account)).Score < p.cfg.MinStrengthScore {
			return &PolicyViolation{
				Rule:    RuleStrength,
				Message: "password is too weak; choose a more complex value",
			}
		}
	}
	return nil
}

// characterClasses counts which of upper, lower, digit and symbol occur.
func characterClasses(password string) int {
	var seen [4]bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			seen[0] = true
		case unicode.IsLower(r):
			seen[1] = true
		case unicode.IsDigit(r):
			seen[2] = true
		case unicode.IsSymbol(r) || unicode.IsPunct(r):
			seen[3] = true
		}
	}
	n := 0
	for _, ok := range seen {
		if ok {
			n++
		}
	}
	return n
}

func accountInputs(account domain.PasswordContext) []string {
	inputs := make([]string, 0, 4)
	for _, value := range []*string{account.Name, account.Email, account.Phone} {
		if value == nil {
			continue
		}
		if trimmed := strings.TrimSpace(*value); trimmed != "" {
			inputs = append(inputs, trimmed)
		}
	}
	if account.Email != nil {
		if local, _, ok := strings.Cut(*account.Email, "@"); ok && local != "" {
			inputs = append(inputs, local)
		}
	}
	return inputs
}
