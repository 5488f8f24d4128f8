package auth

import (
	"net/mail"
	"regexp"
	"strings"

	"github.com/tendant/simple-idm-otp/pkg/domain"
)

const maxEmailLength = 254

var disposableDomains = map[string]struct{}{
	"10minutemail.com":  {},
	"guerrillamail.com": {},
	"mailinator.com":    {},
	"tempmail.com":      {},
	"throwaway.email":   {},
	"yopmail.com":       {},
}

// strictEmail accepts only dotted-atom local parts and hostname domains.
var strictEmail = regexp.MustCompile(`^[a-zA-Z0-9.!#$%&'*+/=?^_` + "`" + `{|}~-]+@[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$`)

// EmailRules decides which addresses may own an account.
type EmailRules struct {
	// Strict rejects addresses that parse but carry display names, quoted
	// local parts or IP literals.
	Strict bool
	// BlockDisposable rejects well-known throwaway mail domains.
	BlockDisposable bool
}

// Normalize validates raw and returns its canonical form. Failures are
// *domain.ValidationError on the "email" field.
func (r EmailRules) Normalize(raw string) (string, error) {
	email := NormalizeEmail(raw)
	switch {
	case email == "":
		return "", domain.NewValidationError("email", "required")
	case len(email) > maxEmailLength:
		return "", domain.NewValidationError("email", "too long")
	}

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", domain.NewValidationError("email", "invalid format")
	}
	if r.Strict && !strictEmail.MatchString(email) {
		return "", domain.NewValidationError("email", "invalid format")
	}
	if r.BlockDisposable {
		if _, blocked := disposableDomains[emailDomain(email)]; blocked {
			return "", domain.NewValidationError("email", "disposable addresses are not allowed")
		}
	}
	return email, nil
}

// NormalizeEmail lowercases and trims an address. Lookups and uniqueness
// both use this form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func localPart(email string) string {
	if i := strings.LastIndex(email, "@"); i > 0 {
		return email[:i]
	}
	return email
}

func emailDomain(email string) string {
	if i := strings.LastIndex(email, "@"); i >= 0 {
		return email[i+1:]
	}
	return ""
}
