package credential

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MinPasswordLength is the minimum accepted password length (in runes).
const MinPasswordLength = 8

// symbolSet is the fixed punctuation set accepted as "special characters".
const symbolSet = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"

// emailRe matches the conventional local@domain.tld shape:
// non-empty local part, domain containing at least one dot, TLD of 2+ letters.
var emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[A-Za-z]{2,}$`)

// ValidateEmail reports whether email has a plausible address shape.
// It is purely syntactic; deliverability is the remote provider's problem.
func ValidateEmail(email string) bool {
	email = strings.TrimSpace(email)
	if email == "" {
		return false
	}
	return emailRe.MatchString(email)
}

// ValidatePassword checks password strength and returns the first violated
// rule, in a fixed order: length, uppercase, lowercase, digit, symbol.
// Returns nil when all five rules pass. It does not mutate input.
func ValidatePassword(password string) error {
	// Count characters (runes), not bytes, to be user-friendly.
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}

	var hasUpper, hasLower, hasDigit, hasSymbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case strings.ContainsRune(symbolSet, r):
			hasSymbol = true
		}
	}

	switch {
	case !hasUpper:
		return ErrPasswordNeedsUpper
	case !hasLower:
		return ErrPasswordNeedsLower
	case !hasDigit:
		return ErrPasswordNeedsDigit
	case !hasSymbol:
		return ErrPasswordNeedsSymbol
	}
	return nil
}
