package auth

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/tendant/simple-idm-otp/pkg/domain"
)

// PasswordPolicy defines password complexity requirements.
type PasswordPolicy struct {
	MinLength        int
	RequireUppercase bool
	RequireLowercase bool
	RequireNumber    bool
	RequireSpecial   bool
}

// DefaultPasswordPolicy requires 8 characters with an uppercase letter, a
// number and a special character.
func DefaultPasswordPolicy() *PasswordPolicy {
	return &PasswordPolicy{
		MinLength:        8,
		RequireUppercase: true,
		RequireNumber:    true,
		RequireSpecial:   true,
	}
}

type charClass struct {
	label string
	match func(rune) bool
}

var (
	upperClass   = charClass{"1 uppercase letter", unicode.IsUpper}
	lowerClass   = charClass{"1 lowercase letter", unicode.IsLower}
	numberClass  = charClass{"1 number", unicode.IsDigit}
	specialClass = charClass{"1 special character", isSpecial}
)

func isSpecial(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsSpace(r)
}

func (p *PasswordPolicy) classes() []charClass {
	var out []charClass
	if p.RequireUppercase {
		out = append(out, upperClass)
	}
	if p.RequireLowercase {
		out = append(out, lowerClass)
	}
	if p.RequireNumber {
		out = append(out, numberClass)
	}
	if p.RequireSpecial {
		out = append(out, specialClass)
	}
	return out
}

// ValidatePassword checks password against every requirement at once. A
// failure is a *domain.ValidationError on the "password" field whose message
// names the whole policy, so the client can show it verbatim.
func (p *PasswordPolicy) ValidatePassword(password string) error {
	if p == nil {
		return nil
	}

	ok := utf8.RuneCountInString(password) >= p.MinLength
	for _, c := range p.classes() {
		if !strings.ContainsFunc(password, c.match) {
			ok = false
		}
	}
	if ok {
		return nil
	}
	return domain.NewValidationError("password", p.Requirements())
}

// Requirements describes the policy, e.g. "must be at least 8 characters with
// 1 uppercase letter, 1 number, 1 special character".
func (p *PasswordPolicy) Requirements() string {
	var labels []string
	for _, c := range p.classes() {
		labels = append(labels, c.label)
	}

	switch {
	case p.MinLength > 0 && len(labels) > 0:
		return fmt.Sprintf("must be at least %d characters with %s", p.MinLength, strings.Join(labels, ", "))
	case p.MinLength > 0:
		return fmt.Sprintf("must be at least %d characters", p.MinLength)
	case len(labels) > 0:
		return "must contain " + strings.Join(labels, ", ")
	}
	return "has no requirements"
}
