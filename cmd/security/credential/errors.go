package credential

import "errors"

// Public, stable errors for callers. ValidatePassword returns the first
// violated rule only, so callers can surface one actionable reason at a time.
var (
	ErrPasswordTooShort    = errors.New("password too short")
	ErrPasswordNeedsUpper  = errors.New("password needs an uppercase letter")
	ErrPasswordNeedsLower  = errors.New("password needs a lowercase letter")
	ErrPasswordNeedsDigit  = errors.New("password needs a digit")
	ErrPasswordNeedsSymbol = errors.New("password needs a special character")
)

// Reason maps a validation error to the short user-facing reason string.
// Unknown errors fall back to a generic message.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrPasswordTooShort):
		return "too short"
	case errors.Is(err, ErrPasswordNeedsUpper):
		return "needs uppercase"
	case errors.Is(err, ErrPasswordNeedsLower):
		return "needs lowercase"
	case errors.Is(err, ErrPasswordNeedsDigit):
		return "needs digit"
	case errors.Is(err, ErrPasswordNeedsSymbol):
		return "needs special character"
	default:
		return "invalid password"
	}
}
