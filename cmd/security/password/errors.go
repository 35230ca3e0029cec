package password

import "errors"

// Public, stable errors for callers.
var (
	ErrPasswordTooLong = errors.New("password too long")
	ErrInvalidHash     = errors.New("invalid password hash")
	ErrParams          = errors.New("invalid argon2id params")
)
